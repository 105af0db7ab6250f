package webgpu

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend/swtlas"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// buffer pairs a wgpu buffer with a host shadow. Flushed ranges of host-visible buffers
// are uploaded from the shadow on the next submit; device-local shadows follow recorded
// copies so acceleration structure builds can read instance records on the host.
type buffer struct {
	owner   *webgpuBackend
	desc    backend.BufferDescriptor
	gpu     *wgpu.Buffer
	shadow  []byte
	address uint64

	// flushLo and flushHi bound the pending upload; guarded by owner.mu.
	flushLo, flushHi uint64

	once sync.Once
}

var _ backend.Buffer = &buffer{}

func (b *buffer) Label() string         { return b.desc.Label }
func (b *buffer) Size() uint64          { return b.desc.Size }
func (b *buffer) DeviceAddress() uint64 { return b.address }

func (b *buffer) Mapped() []byte {
	if b.desc.Location != backend.MemoryHostToDevice {
		return nil
	}
	return b.shadow
}

func (b *buffer) Flush(offset, size uint64) {
	if b.desc.Location != backend.MemoryHostToDevice || size == 0 || offset >= b.desc.Size {
		return
	}
	b.owner.markDirty(b, offset, min(offset+size, b.desc.Size))
}

func (b *buffer) Release() {
	b.once.Do(func() {
		b.owner.forget(b)
		b.gpu.Release()
	})
}

// image is a sampled texture and its view.
type image struct {
	desc    backend.ImageDescriptor
	texture *wgpu.Texture
	view    *wgpu.TextureView

	once sync.Once
}

var _ backend.Image = &image{}

func (i *image) Label() string           { return i.desc.Label }
func (i *image) Kind() backend.ImageKind { return i.desc.Kind }

func (i *image) Release() {
	i.once.Do(func() {
		i.view.Release()
		i.texture.Release()
	})
}

// accelerationStructure is a bottom-level box or a software top-level tree.
// Top-level nodes live in a storage buffer grown on demand.
type accelerationStructure struct {
	owner   *webgpuBackend
	desc    backend.AccelerationStructureDescriptor
	address uint64

	bounds common.AABB
	tree   *swtlas.Tree
	nodes  *wgpu.Buffer

	once sync.Once
}

var _ backend.AccelerationStructure = &accelerationStructure{}

func (a *accelerationStructure) Label() string                             { return a.desc.Label }
func (a *accelerationStructure) Level() backend.AccelerationStructureLevel { return a.desc.Level }
func (a *accelerationStructure) DeviceAddress() uint64                     { return a.address }

func (a *accelerationStructure) ScratchSize() uint64 {
	if a.desc.Level == backend.LevelBottom {
		return 0
	}
	return uint64(a.desc.MaxInstances) * 4
}

func (a *accelerationStructure) Release() {
	a.once.Do(func() {
		a.owner.forgetAccel(a)
		if a.nodes != nil {
			a.nodes.Release()
		}
	})
}

func boundsToAABB(b backend.Bounds) common.AABB {
	return common.AABB{Min: mgl32.Vec3(b.Min), Max: mgl32.Vec3(b.Max)}
}

// descriptorSet keeps binding contents on the host. Single-element buffer and
// acceleration structure bindings are mirrored into a wgpu bind group, rebuilt
// after each write; binding arrays have no core WebGPU equivalent and stay host-side.
type descriptorSet struct {
	owner    *webgpuBackend
	desc     backend.DescriptorSetDescriptor
	elements map[uint32][]any

	layout    *wgpu.BindGroupLayout
	bindGroup *wgpu.BindGroup

	once sync.Once
}

var _ backend.DescriptorSet = &descriptorSet{}

func (d *descriptorSet) Label() string { return d.desc.Label }

// BindGroup returns the wgpu bind group mirroring the set's single-element bindings,
// or nil until every such binding has been written.
func (d *descriptorSet) BindGroup() *wgpu.BindGroup {
	return d.bindGroup
}

func (d *descriptorSet) Release() {
	d.once.Do(func() {
		if d.bindGroup != nil {
			d.bindGroup.Release()
		}
		if d.layout != nil {
			d.layout.Release()
		}
	})
}

// recorder records commands and replays them on Submit.
type recorder struct {
	encoder  *wgpu.CommandEncoder
	commands []command
	done     bool
}

type command struct {
	copySrc, copyDst       *buffer
	copySrcOff, copyDstOff uint64
	copySize               uint64

	barrier *backend.MemoryBarrier
	build   *backend.BuildInfo
}

var _ backend.CommandRecorder = &recorder{}

func (r *recorder) CopyBuffer(src backend.Buffer, srcOffset uint64, dst backend.Buffer, dstOffset uint64, size uint64) {
	r.commands = append(r.commands, command{
		copySrc:    src.(*buffer),
		copySrcOff: srcOffset,
		copyDst:    dst.(*buffer),
		copyDstOff: dstOffset,
		copySize:   size,
	})
}

func (r *recorder) PipelineBarrier(b backend.MemoryBarrier) {
	r.commands = append(r.commands, command{barrier: &b})
}

func (r *recorder) BuildAccelerationStructure(info backend.BuildInfo) {
	r.commands = append(r.commands, command{build: &info})
}

func (r *recorder) Discard() {
	if r.done {
		return
	}
	r.done = true
	r.commands = nil
	r.encoder.Release()
}

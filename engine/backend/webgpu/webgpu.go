// Package webgpu implements backend.Backend on cogentcore/webgpu. WebGPU exposes no
// ray-tracing acceleration structures, so top-level structures are built on the host
// with swtlas and uploaded as storage buffers; device addresses are virtual handles.
//
// WebGPU has no binding arrays, so bindings declared with Count > 1 (the bindless vertex,
// index, material-index and texture tables) are tracked but left out of bind groups.
// Shaders on this backend reach those tables only through device addresses.
package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend/swtlas"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// InstanceRecordSize is the size of one top-level instance record read by builds.
const InstanceRecordSize = 64

type webgpuBackend struct {
	mu *sync.Mutex

	forceFallbackAdapter bool
	deviceLabel          string

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	nextAddress uint64
	// dirty holds host-visible buffers with ranges flushed since the last submit.
	dirty  map[*buffer]struct{}
	accels map[uint64]*accelerationStructure

	bindlessWarning sync.Once
}

var _ backend.Backend = &webgpuBackend{}

// NewBackend acquires an adapter and device without a presentation surface.
//
// Parameters:
//   - options: functional options to configure the backend
//
// Returns:
//   - backend.Backend: the backend
//   - error: error if no adapter or device could be acquired
func NewBackend(options ...BackendBuilderOption) (backend.Backend, error) {
	b := &webgpuBackend{
		mu:          &sync.Mutex{},
		deviceLabel: "Ray Tracing Device",
		nextAddress: 0x10000,
		dirty:       make(map[*buffer]struct{}),
		accels:      make(map[uint64]*accelerationStructure),
	}
	for _, opt := range options {
		opt(b)
	}

	b.instance = wgpu.CreateInstance(nil)
	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
	})
	if err != nil {
		b.instance.Release()
		return nil, fmt.Errorf("webgpu: request adapter: %w", err)
	}
	b.adapter = a

	limits := wgpu.DefaultLimits()
	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: b.deviceLabel,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		b.adapter.Release()
		b.instance.Release()
		return nil, fmt.Errorf("webgpu: request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	common.Logger().Info("webgpu: device acquired", "label", b.deviceLabel, "fallback", b.forceFallbackAdapter)
	return b, nil
}

func (b *webgpuBackend) allocAddress(size uint64) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	addr := b.nextAddress
	b.nextAddress += common.AlignUp(max(size, 1), 256)
	return addr
}

func (b *webgpuBackend) forget(buf *buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.dirty, buf)
}

// markDirty widens buf's pending upload range to cover [offset, end).
func (b *webgpuBackend) markDirty(buf *buffer, offset, end uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.dirty[buf]; !ok {
		buf.flushLo, buf.flushHi = offset, end
		b.dirty[buf] = struct{}{}
		return
	}
	buf.flushLo = min(buf.flushLo, offset)
	buf.flushHi = max(buf.flushHi, end)
}

// takeDirty returns the pending upload ranges and clears them.
func (b *webgpuBackend) takeDirty() []flushRange {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]flushRange, 0, len(b.dirty))
	for buf := range b.dirty {
		out = append(out, flushRange{buf: buf, lo: buf.flushLo, hi: buf.flushHi})
	}
	clear(b.dirty)
	return out
}

type flushRange struct {
	buf    *buffer
	lo, hi uint64
}

func (b *webgpuBackend) forgetAccel(a *accelerationStructure) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.accels, a.address)
}

func toWGPUUsage(u backend.BufferUsage) wgpu.BufferUsage {
	usage := wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	if u&(backend.BufferUsageStorage|backend.BufferUsageAccelerationStructureInput) != 0 {
		usage |= wgpu.BufferUsageStorage
	}
	if u&backend.BufferUsageUniform != 0 {
		usage |= wgpu.BufferUsageUniform
	}
	if u&backend.BufferUsageVertex != 0 {
		usage |= wgpu.BufferUsageVertex
	}
	if u&backend.BufferUsageIndex != 0 {
		usage |= wgpu.BufferUsageIndex
	}
	return usage
}

func (b *webgpuBackend) CreateBuffer(desc backend.BufferDescriptor) (backend.Buffer, error) {
	size := common.AlignUp(max(desc.Size, 4), 4)
	gpu, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             size,
		Usage:            toWGPUUsage(desc.Usage),
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create buffer %q: %w", desc.Label, err)
	}
	buf := &buffer{
		owner:   b,
		desc:    desc,
		gpu:     gpu,
		shadow:  make([]byte, size)[:desc.Size:size],
		address: b.allocAddress(size),
	}
	return buf, nil
}

func (b *webgpuBackend) CreateImage(desc backend.ImageDescriptor) (backend.Image, error) {
	layers := uint32(1)
	viewDim := wgpu.TextureViewDimension2D
	if desc.Kind == backend.ImageCube {
		layers = 6
		viewDim = wgpu.TextureViewDimensionCube
	}
	size := wgpu.Extent3D{
		Width:              max(desc.Width, 1),
		Height:             max(desc.Height, 1),
		DepthOrArrayLayers: layers,
	}
	t, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create image %q: %w", desc.Label, err)
	}
	view, err := t.CreateView(&wgpu.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          wgpu.TextureFormatRGBA8Unorm,
		Dimension:       viewDim,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: layers,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("webgpu: create image view %q: %w", desc.Label, err)
	}
	if len(desc.Pixels) > 0 {
		err = b.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Aspect:   wgpu.TextureAspectAll,
				Texture:  t,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: 0},
			},
			desc.Pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  4 * size.Width,
				RowsPerImage: size.Height,
			},
			&size,
		)
		if err != nil {
			view.Release()
			t.Release()
			return nil, fmt.Errorf("webgpu: upload image %q: %w", desc.Label, err)
		}
	}
	return &image{desc: desc, texture: t, view: view}, nil
}

func (b *webgpuBackend) CreateAccelerationStructure(desc backend.AccelerationStructureDescriptor) (backend.AccelerationStructure, error) {
	a := &accelerationStructure{
		owner:   b,
		desc:    desc,
		address: b.allocAddress(256),
		bounds:  boundsToAABB(desc.Bounds),
	}
	b.mu.Lock()
	b.accels[a.address] = a
	b.mu.Unlock()
	return a, nil
}

func (b *webgpuBackend) CreateDescriptorSet(desc backend.DescriptorSetDescriptor) (backend.DescriptorSet, error) {
	return &descriptorSet{
		owner:    b,
		desc:     desc,
		elements: make(map[uint32][]any),
	}, nil
}

func (b *webgpuBackend) UpdateDescriptorSets(writes []backend.DescriptorWrite) error {
	touched := make(map[*descriptorSet]struct{})
	for _, w := range writes {
		set, ok := w.Set.(*descriptorSet)
		if !ok {
			return fmt.Errorf("webgpu: descriptor set %T not created by this backend", w.Set)
		}
		if err := set.apply(w); err != nil {
			return err
		}
		touched[set] = struct{}{}
	}
	for set := range touched {
		if err := b.rebuildBindGroup(set); err != nil {
			return err
		}
	}
	return nil
}

func (d *descriptorSet) binding(n uint32) (backend.DescriptorBinding, bool) {
	for _, bd := range d.desc.Bindings {
		if bd.Binding == n {
			return bd, true
		}
	}
	return backend.DescriptorBinding{}, false
}

func (d *descriptorSet) apply(w backend.DescriptorWrite) error {
	layout, ok := d.binding(w.Binding)
	if !ok {
		return fmt.Errorf("webgpu: set %q has no binding %d", d.desc.Label, w.Binding)
	}
	var elems []any
	switch {
	case w.AccelerationStructure != nil:
		elems = []any{w.AccelerationStructure}
	case w.Images != nil:
		for _, img := range w.Images {
			elems = append(elems, img)
		}
	default:
		for _, buf := range w.Buffers {
			elems = append(elems, buf)
		}
	}
	end := int(w.FirstElement) + len(elems)
	if end > int(max(layout.Count, 1)) {
		return fmt.Errorf("webgpu: set %q binding %d: %d elements exceed capacity %d", d.desc.Label, w.Binding, end, layout.Count)
	}
	cur := d.elements[w.Binding]
	if len(cur) < end {
		grown := make([]any, end)
		copy(grown, cur)
		cur = grown
	}
	copy(cur[w.FirstElement:], elems)
	d.elements[w.Binding] = cur
	return nil
}

func (b *webgpuBackend) rebuildBindGroup(d *descriptorSet) error {
	var layoutEntries []wgpu.BindGroupLayoutEntry
	var entries []wgpu.BindGroupEntry
	for _, bd := range d.desc.Bindings {
		if bd.Count > 1 {
			b.bindlessWarning.Do(func() {
				common.Logger().Warn("webgpu: binding arrays are unsupported, bindless tables get no bind group",
					"set", d.desc.Label, "binding", bd.Binding, "count", bd.Count)
			})
			continue
		}
		elems := d.elements[bd.Binding]
		if len(elems) == 0 || elems[0] == nil {
			return nil
		}
		le := wgpu.BindGroupLayoutEntry{Binding: bd.Binding, Visibility: wgpu.ShaderStageCompute}
		e := wgpu.BindGroupEntry{Binding: bd.Binding}
		switch v := elems[0].(type) {
		case *buffer:
			le.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}
			if bd.Kind == backend.DescriptorUniformBuffer {
				le.Buffer.Type = wgpu.BufferBindingTypeUniform
			}
			e.Buffer, e.Offset, e.Size = v.gpu, 0, wgpu.WholeSize
		case *accelerationStructure:
			if v.nodes == nil {
				return nil
			}
			le.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}
			e.Buffer, e.Offset, e.Size = v.nodes, 0, wgpu.WholeSize
		case *image:
			dim := wgpu.TextureViewDimension2D
			if v.desc.Kind == backend.ImageCube {
				dim = wgpu.TextureViewDimensionCube
			}
			le.Texture = wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat, ViewDimension: dim}
			e.TextureView = v.view
		default:
			return fmt.Errorf("webgpu: set %q binding %d holds foreign resource %T", d.desc.Label, bd.Binding, v)
		}
		layoutEntries = append(layoutEntries, le)
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil
	}

	if d.layout == nil {
		layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   d.desc.Label,
			Entries: layoutEntries,
		})
		if err != nil {
			return fmt.Errorf("webgpu: create bind group layout %q: %w", d.desc.Label, err)
		}
		d.layout = layout
	}
	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   d.desc.Label,
		Layout:  d.layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("webgpu: create bind group %q: %w", d.desc.Label, err)
	}
	if d.bindGroup != nil {
		d.bindGroup.Release()
	}
	d.bindGroup = bg
	return nil
}

func (b *webgpuBackend) BeginCommands() (backend.CommandRecorder, error) {
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("webgpu: create command encoder: %w", err)
	}
	return &recorder{encoder: encoder}, nil
}

func (b *webgpuBackend) Submit(cmd backend.CommandRecorder) error {
	rec, ok := cmd.(*recorder)
	if !ok {
		return fmt.Errorf("webgpu: recorder %T not created by this backend", cmd)
	}
	if rec.done {
		return fmt.Errorf("webgpu: recorder already submitted or discarded")
	}
	defer rec.Discard()

	// Queue writes must be 4-byte aligned; shadows are padded to a multiple of 4.
	for _, r := range b.takeDirty() {
		lo := r.lo &^ 3
		hi := min(common.AlignUp(r.hi, 4), uint64(cap(r.buf.shadow)))
		if err := b.queue.WriteBuffer(r.buf.gpu, lo, r.buf.shadow[lo:hi:cap(r.buf.shadow)]); err != nil {
			return fmt.Errorf("webgpu: flush %q: %w", r.buf.desc.Label, err)
		}
	}

	for _, c := range rec.commands {
		switch {
		case c.copySrc != nil:
			if err := rec.encoder.CopyBufferToBuffer(c.copySrc.gpu, c.copySrcOff, c.copyDst.gpu, c.copyDstOff, c.copySize); err != nil {
				return fmt.Errorf("webgpu: copy %q -> %q: %w", c.copySrc.desc.Label, c.copyDst.desc.Label, err)
			}
			copy(c.copyDst.shadow[c.copyDstOff:c.copyDstOff+c.copySize], c.copySrc.shadow[c.copySrcOff:c.copySrcOff+c.copySize])
		case c.barrier != nil:
			// wgpu tracks buffer hazards between commands itself.
		case c.build != nil:
			if err := b.buildTopLevel(*c.build); err != nil {
				return err
			}
		}
	}

	cb, err := rec.encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("webgpu: finish command encoder: %w", err)
	}
	defer cb.Release()
	b.queue.Submit(cb)
	return nil
}

// buildTopLevel reads instance records from the host shadow of the instance buffer,
// builds or refits the software tree and uploads its nodes.
func (b *webgpuBackend) buildTopLevel(info backend.BuildInfo) error {
	dst, ok := info.Dst.(*accelerationStructure)
	if !ok {
		return fmt.Errorf("webgpu: acceleration structure %T not created by this backend", info.Dst)
	}
	instances, ok := info.Instances.(*buffer)
	if !ok {
		return fmt.Errorf("webgpu: instance buffer %T not created by this backend", info.Instances)
	}
	if uint64(info.InstanceCount)*InstanceRecordSize > uint64(len(instances.shadow)) {
		return fmt.Errorf("webgpu: %d instances overflow buffer %q", info.InstanceCount, instances.desc.Label)
	}

	bounds := make([]common.AABB, info.InstanceCount)
	b.mu.Lock()
	for i := range bounds {
		bounds[i] = b.instanceBounds(instances.shadow[i*InstanceRecordSize:])
	}
	b.mu.Unlock()

	if info.Mode == backend.BuildModeUpdate && dst.tree != nil {
		if err := dst.tree.Refit(bounds); err != nil {
			return fmt.Errorf("webgpu: refit %q: %w", dst.desc.Label, err)
		}
	} else {
		dst.tree = swtlas.Build(bounds)
	}

	data := dst.tree.Marshal()
	if len(data) == 0 {
		return nil
	}
	if dst.nodes == nil || dst.nodes.GetSize() < uint64(len(data)) {
		if dst.nodes != nil {
			dst.nodes.Release()
		}
		nodes, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: dst.desc.Label + " Nodes",
			Size:  common.AlignUp(uint64(len(data)), 256),
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("webgpu: create node buffer %q: %w", dst.desc.Label, err)
		}
		dst.nodes = nodes
	}
	if err := b.queue.WriteBuffer(dst.nodes, 0, data); err != nil {
		return fmt.Errorf("webgpu: upload nodes %q: %w", dst.desc.Label, err)
	}
	return nil
}

// instanceBounds decodes one instance record and returns the world bounds of its
// bottom-level structure. Caller holds b.mu.
func (b *webgpuBackend) instanceBounds(rec []byte) common.AABB {
	m := mgl32.Ident4()
	for r := range 3 {
		for c := range 4 {
			m.Set(r, c, math.Float32frombits(binary.LittleEndian.Uint32(rec[(r*4+c)*4:])))
		}
	}
	ref := binary.LittleEndian.Uint64(rec[56:])
	blas, ok := b.accels[ref]
	if !ok || blas.bounds.Empty() {
		p := m.Col(3).Vec3()
		return common.AABB{Min: p, Max: p}
	}
	return blas.bounds.Transform(m)
}

func (b *webgpuBackend) WaitIdle() error {
	b.device.Poll(true, nil)
	return nil
}

func (b *webgpuBackend) Release() {
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.instance.Release()
	common.Logger().Info("webgpu: device released", "label", b.deviceLabel)
}

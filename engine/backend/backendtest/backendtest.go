// Package backendtest provides an in-memory backend.Backend that records every call,
// for tests of packages that drive GPU work.
package backendtest

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
)

// CommandKind identifies a recorded command.
type CommandKind uint8

const (
	CommandCopy CommandKind = iota
	CommandBarrier
	CommandBuild
)

// Command is one recorded command.
type Command struct {
	Kind CommandKind

	CopySrc       backend.Buffer
	CopySrcOffset uint64
	CopyDst       backend.Buffer
	CopyDstOffset uint64
	CopySize      uint64

	Barrier backend.MemoryBarrier
	Build   backend.BuildInfo
}

// Backend records resource creation, descriptor writes and submitted commands.
// All buffers get host memory so tests can inspect device-local contents after Submit.
type Backend struct {
	mu sync.Mutex

	nextAddress uint64

	Buffers                []*Buffer
	Images                 []*Image
	AccelerationStructures []*AccelerationStructure
	DescriptorSets         []*DescriptorSet

	// WriteBatches holds one entry per UpdateDescriptorSets call.
	WriteBatches [][]backend.DescriptorWrite
	// Submitted holds the commands of every submitted recorder, in submission order.
	Submitted [][]Command
	// WaitIdleCalls counts WaitIdle invocations.
	WaitIdleCalls int
	// Released is set by Release.
	Released bool

	// FailCreateBuffer, when set, is returned by the next CreateBuffer call and then cleared.
	FailCreateBuffer error
	// FailSubmit, when set, is returned by the next Submit call and then cleared. The
	// recorder is left unsubmitted.
	FailSubmit error
}

var _ backend.Backend = &Backend{}

// New returns an empty recording backend.
func New() *Backend {
	return &Backend{nextAddress: 0x10000}
}

func (b *Backend) address(size uint64) uint64 {
	addr := b.nextAddress
	b.nextAddress += (size + 0xff) &^ 0xff
	if size == 0 {
		b.nextAddress += 0x100
	}
	return addr
}

func (b *Backend) CreateBuffer(desc backend.BufferDescriptor) (backend.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.FailCreateBuffer; err != nil {
		b.FailCreateBuffer = nil
		return nil, err
	}
	buf := &Buffer{
		desc:    desc,
		data:    make([]byte, desc.Size),
		address: b.address(desc.Size),
	}
	b.Buffers = append(b.Buffers, buf)
	return buf, nil
}

func (b *Backend) CreateImage(desc backend.ImageDescriptor) (backend.Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	img := &Image{desc: desc}
	b.Images = append(b.Images, img)
	return img, nil
}

func (b *Backend) CreateAccelerationStructure(desc backend.AccelerationStructureDescriptor) (backend.AccelerationStructure, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	as := &AccelerationStructure{
		desc:    desc,
		address: b.address(256),
	}
	b.AccelerationStructures = append(b.AccelerationStructures, as)
	return as, nil
}

func (b *Backend) CreateDescriptorSet(desc backend.DescriptorSetDescriptor) (backend.DescriptorSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := &DescriptorSet{
		desc:     desc,
		Bindings: make(map[uint32][]any),
	}
	b.DescriptorSets = append(b.DescriptorSets, set)
	return set, nil
}

func (b *Backend) UpdateDescriptorSets(writes []backend.DescriptorWrite) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range writes {
		set, ok := w.Set.(*DescriptorSet)
		if !ok {
			return fmt.Errorf("backendtest: descriptor set %T not created by this backend", w.Set)
		}
		if err := set.apply(w); err != nil {
			return err
		}
	}
	batch := make([]backend.DescriptorWrite, len(writes))
	copy(batch, writes)
	b.WriteBatches = append(b.WriteBatches, batch)
	return nil
}

func (b *Backend) BeginCommands() (backend.CommandRecorder, error) {
	return &Recorder{}, nil
}

func (b *Backend) Submit(cmd backend.CommandRecorder) error {
	rec, ok := cmd.(*Recorder)
	if !ok {
		return fmt.Errorf("backendtest: recorder %T not created by this backend", cmd)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.FailSubmit; err != nil {
		b.FailSubmit = nil
		return err
	}
	if rec.submitted {
		return fmt.Errorf("backendtest: recorder submitted twice")
	}
	if rec.discarded {
		return fmt.Errorf("backendtest: recorder was discarded")
	}
	rec.submitted = true
	for _, c := range rec.Commands {
		if c.Kind != CommandCopy {
			continue
		}
		src := c.CopySrc.(*Buffer)
		dst := c.CopyDst.(*Buffer)
		copy(dst.data[c.CopyDstOffset:c.CopyDstOffset+c.CopySize], src.data[c.CopySrcOffset:c.CopySrcOffset+c.CopySize])
	}
	b.Submitted = append(b.Submitted, rec.Commands)
	for _, buf := range b.Buffers {
		buf.resetFlushed()
	}
	return nil
}

func (b *Backend) WaitIdle() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.WaitIdleCalls++
	return nil
}

func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Released = true
}

// DescriptorWriteCount returns the total number of descriptor writes across all batches.
func (b *Backend) DescriptorWriteCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, batch := range b.WriteBatches {
		n += len(batch)
	}
	return n
}

// LiveBuffers returns the buffers that have not been released.
func (b *Backend) LiveBuffers() []*Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*Buffer
	for _, buf := range b.Buffers {
		if !buf.Released() {
			out = append(out, buf)
		}
	}
	return out
}

// Recorder is the CommandRecorder handed out by Backend.
type Recorder struct {
	Commands  []Command
	submitted bool
	discarded bool
}

var _ backend.CommandRecorder = &Recorder{}

func (r *Recorder) CopyBuffer(src backend.Buffer, srcOffset uint64, dst backend.Buffer, dstOffset uint64, size uint64) {
	r.Commands = append(r.Commands, Command{
		Kind:          CommandCopy,
		CopySrc:       src,
		CopySrcOffset: srcOffset,
		CopyDst:       dst,
		CopyDstOffset: dstOffset,
		CopySize:      size,
	})
}

func (r *Recorder) PipelineBarrier(b backend.MemoryBarrier) {
	r.Commands = append(r.Commands, Command{Kind: CommandBarrier, Barrier: b})
}

func (r *Recorder) BuildAccelerationStructure(info backend.BuildInfo) {
	r.Commands = append(r.Commands, Command{Kind: CommandBuild, Build: info})
}

func (r *Recorder) Discard() {
	if !r.submitted {
		r.discarded = true
	}
}

// Discarded reports whether the recorder was dropped without being submitted.
func (r *Recorder) Discarded() bool { return r.discarded }

// Buffer is a host-memory buffer.
type Buffer struct {
	mu       sync.Mutex
	desc     backend.BufferDescriptor
	data     []byte
	address  uint64
	released bool

	// flushLo and flushHi bound the bytes flushed since the last submit; empty when equal.
	flushLo, flushHi uint64
}

var _ backend.Buffer = &Buffer{}

func (b *Buffer) Label() string         { return b.desc.Label }
func (b *Buffer) Size() uint64          { return b.desc.Size }
func (b *Buffer) DeviceAddress() uint64 { return b.address }

// Descriptor returns the descriptor the buffer was created with.
func (b *Buffer) Descriptor() backend.BufferDescriptor { return b.desc }

// Bytes returns the buffer contents regardless of memory location.
func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) Mapped() []byte {
	if b.desc.Location != backend.MemoryHostToDevice {
		return nil
	}
	return b.data
}

func (b *Buffer) Flush(offset, size uint64) {
	if b.desc.Location != backend.MemoryHostToDevice || size == 0 || offset >= b.desc.Size {
		return
	}
	end := min(offset+size, b.desc.Size)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flushLo == b.flushHi {
		b.flushLo, b.flushHi = offset, end
		return
	}
	b.flushLo = min(b.flushLo, offset)
	b.flushHi = max(b.flushHi, end)
}

// Flushed returns the byte range [lo, hi) flushed since the last submit.
func (b *Buffer) Flushed() (lo, hi uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLo, b.flushHi
}

func (b *Buffer) resetFlushed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLo, b.flushHi = 0, 0
}

func (b *Buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
}

// Released reports whether Release was called.
func (b *Buffer) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// Image is a recorded image.
type Image struct {
	desc     backend.ImageDescriptor
	released bool
}

var _ backend.Image = &Image{}

func (i *Image) Label() string           { return i.desc.Label }
func (i *Image) Kind() backend.ImageKind { return i.desc.Kind }
func (i *Image) Release()                { i.released = true }

// Released reports whether Release was called.
func (i *Image) Released() bool { return i.released }

// AccelerationStructure is a recorded acceleration structure.
type AccelerationStructure struct {
	desc     backend.AccelerationStructureDescriptor
	address  uint64
	released bool
}

var _ backend.AccelerationStructure = &AccelerationStructure{}

func (a *AccelerationStructure) Label() string                             { return a.desc.Label }
func (a *AccelerationStructure) Level() backend.AccelerationStructureLevel { return a.desc.Level }
func (a *AccelerationStructure) DeviceAddress() uint64                     { return a.address }
func (a *AccelerationStructure) ScratchSize() uint64                       { return 1024 }
func (a *AccelerationStructure) Release()                                  { a.released = true }

// Released reports whether Release was called.
func (a *AccelerationStructure) Released() bool { return a.released }

// DescriptorSet keeps the current contents of each binding.
type DescriptorSet struct {
	desc     backend.DescriptorSetDescriptor
	released bool

	// Bindings maps a binding number to its elements.
	Bindings map[uint32][]any
}

var _ backend.DescriptorSet = &DescriptorSet{}

func (d *DescriptorSet) Label() string { return d.desc.Label }
func (d *DescriptorSet) Release()      { d.released = true }

func (d *DescriptorSet) apply(w backend.DescriptorWrite) error {
	var layout *backend.DescriptorBinding
	for i := range d.desc.Bindings {
		if d.desc.Bindings[i].Binding == w.Binding {
			layout = &d.desc.Bindings[i]
			break
		}
	}
	if layout == nil {
		return fmt.Errorf("backendtest: set %q has no binding %d", d.desc.Label, w.Binding)
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
		return fmt.Errorf("backendtest: set %q binding %d: write of %d elements exceeds capacity %d", d.desc.Label, w.Binding, end, layout.Count)
	}
	cur := d.Bindings[w.Binding]
	if len(cur) < end {
		grown := make([]any, end)
		copy(grown, cur)
		cur = grown
	}
	copy(cur[w.FirstElement:], elems)
	d.Bindings[w.Binding] = cur
	return nil
}

// Package backend defines the GPU capabilities the scene synchronizer consumes.
// Implementations live in subpackages: webgpu drives a real device and backendtest
// records every call in memory.
package backend

import "errors"

// ErrReleased is returned when a released resource is used.
var ErrReleased = errors.New("backend: resource already released")

// Releasable is any GPU resource whose lifetime is managed explicitly.
type Releasable interface {
	// Release frees the resource. Calling Release more than once is a no-op.
	Release()
}

// Buffer is a linear GPU allocation.
type Buffer interface {
	Releasable

	// Label returns the debug label given at creation.
	Label() string

	// Size returns the allocation size in bytes.
	Size() uint64

	// Mapped returns the persistently mapped host view of a MemoryHostToDevice buffer,
	// or nil for device-local memory. Writes reach the device at the next submit once
	// their range is passed to Flush.
	//
	// Returns:
	//   - []byte: the host view, Size() bytes long
	Mapped() []byte

	// Flush marks a written range of the host view for upload at the next submit.
	// Ranges past Size() are clamped. A no-op for device-local memory.
	//
	// Parameters:
	//   - offset: first written byte
	//   - size: number of written bytes
	Flush(offset, size uint64)

	// DeviceAddress returns the address shaders and acceleration structure builds use to reach the buffer.
	DeviceAddress() uint64
}

// Image is a sampled 2D texture or cube map.
type Image interface {
	Releasable

	// Label returns the debug label given at creation.
	Label() string

	// Kind returns whether the image is 2D or a cube map.
	Kind() ImageKind
}

// AccelerationStructure is a bottom- or top-level ray-tracing acceleration structure.
type AccelerationStructure interface {
	Releasable

	// Label returns the debug label given at creation.
	Label() string

	// Level returns whether the structure holds geometry or instances.
	Level() AccelerationStructureLevel

	// DeviceAddress returns the handle instance records use to reference a bottom-level structure.
	DeviceAddress() uint64

	// ScratchSize returns the scratch memory a build of this structure needs, in bytes.
	ScratchSize() uint64
}

// DescriptorSet is a group of bindings that shaders access by index.
type DescriptorSet interface {
	Releasable

	// Label returns the debug label given at creation.
	Label() string
}

// CommandRecorder records GPU commands for one frame.
type CommandRecorder interface {
	// CopyBuffer copies size bytes from src at srcOffset to dst at dstOffset.
	CopyBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64)

	// PipelineBarrier makes the memory accesses in SrcAccess visible to DstAccess.
	PipelineBarrier(b MemoryBarrier)

	// BuildAccelerationStructure records a top-level build or update.
	BuildAccelerationStructure(info BuildInfo)

	// Discard drops the recorded commands without submitting them and frees the recorder.
	// Discarding a submitted or discarded recorder is a no-op.
	Discard()
}

// Backend creates GPU resources and submits recorded work.
type Backend interface {
	// CreateBuffer allocates a buffer.
	//
	// Parameters:
	//   - desc: size, usage and memory location
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: error if allocation fails
	CreateBuffer(desc BufferDescriptor) (Buffer, error)

	// CreateImage allocates an image and uploads its pixels, if any.
	//
	// Parameters:
	//   - desc: image shape and initial contents
	//
	// Returns:
	//   - Image: the new image
	//   - error: error if allocation fails
	CreateImage(desc ImageDescriptor) (Image, error)

	// CreateAccelerationStructure allocates an acceleration structure. Top-level structures
	// hold no valid data until the first build is recorded.
	//
	// Parameters:
	//   - desc: level, flags and capacity
	//
	// Returns:
	//   - AccelerationStructure: the new structure
	//   - error: error if allocation fails
	CreateAccelerationStructure(desc AccelerationStructureDescriptor) (AccelerationStructure, error)

	// CreateDescriptorSet allocates a descriptor set with the given layout.
	//
	// Parameters:
	//   - desc: the binding layout
	//
	// Returns:
	//   - DescriptorSet: the new set
	//   - error: error if allocation fails
	CreateDescriptorSet(desc DescriptorSetDescriptor) (DescriptorSet, error)

	// UpdateDescriptorSets applies all writes in one batch.
	//
	// Parameters:
	//   - writes: the descriptor writes to apply
	//
	// Returns:
	//   - error: error if a write targets an unknown binding or exceeds its capacity
	UpdateDescriptorSets(writes []DescriptorWrite) error

	// BeginCommands starts recording a frame's commands.
	//
	// Returns:
	//   - CommandRecorder: the recorder
	//   - error: error if recording cannot start
	BeginCommands() (CommandRecorder, error)

	// Submit submits a recorder's commands to the device queue. The recorder must not be reused.
	//
	// Parameters:
	//   - cmd: the recorder returned by BeginCommands
	//
	// Returns:
	//   - error: error if submission fails
	Submit(cmd CommandRecorder) error

	// WaitIdle blocks until the device has finished all submitted work.
	//
	// Returns:
	//   - error: error if the device is lost
	WaitIdle() error

	// Release destroys the device. All resources must be released first.
	Release()
}

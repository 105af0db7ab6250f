package backend

// BufferUsage describes how a buffer will be bound. Values may be combined.
type BufferUsage uint32

const (
	BufferUsageStorage BufferUsage = 1 << iota
	BufferUsageUniform
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageTransferSrc
	BufferUsageTransferDst
	// BufferUsageAccelerationStructureInput marks buffers read by acceleration structure builds.
	BufferUsageAccelerationStructureInput
	// BufferUsageDeviceAddress marks buffers whose device address is queried.
	BufferUsageDeviceAddress
)

// MemoryLocation selects where buffer memory lives.
type MemoryLocation uint8

const (
	// MemoryDeviceLocal is only reachable by the device.
	MemoryDeviceLocal MemoryLocation = iota
	// MemoryHostToDevice is persistently mapped and written by the host each frame.
	MemoryHostToDevice
)

// AccessFlags is a set of memory access kinds used in barriers.
type AccessFlags uint32

const (
	AccessTransferWrite AccessFlags = 1 << iota
	AccessAccelerationStructureRead
	AccessAccelerationStructureWrite
	AccessShaderRead
)

// PipelineStage is a set of pipeline stages used in barriers.
type PipelineStage uint32

const (
	StageTransfer PipelineStage = 1 << iota
	StageAccelerationStructureBuild
	StageRayTracingShader
)

// AccelerationStructureLevel distinguishes bottom-level (geometry) from top-level (instance) structures.
type AccelerationStructureLevel uint8

const (
	LevelBottom AccelerationStructureLevel = iota
	LevelTop
)

// BuildFlags configure how an acceleration structure is built.
type BuildFlags uint32

const (
	BuildPreferFastTrace BuildFlags = 1 << iota
	BuildAllowUpdate
)

// BuildMode selects a full build or an in-place refit.
type BuildMode uint8

const (
	BuildModeBuild BuildMode = iota
	BuildModeUpdate
)

// String returns a readable build mode name.
func (m BuildMode) String() string {
	if m == BuildModeUpdate {
		return "update"
	}
	return "build"
}

// ImageKind distinguishes 2D textures from cube maps.
type ImageKind uint8

const (
	Image2D ImageKind = iota
	ImageCube
)

// DescriptorKind is the resource type held by a descriptor binding.
type DescriptorKind uint8

const (
	DescriptorStorageBuffer DescriptorKind = iota
	DescriptorUniformBuffer
	DescriptorSampledImage
	DescriptorAccelerationStructure
)

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label    string
	Size     uint64
	Usage    BufferUsage
	Location MemoryLocation
}

// ImageDescriptor describes an image to create.
type ImageDescriptor struct {
	Label  string
	Kind   ImageKind
	Width  uint32
	Height uint32
	// Pixels holds tightly packed RGBA8 data, one face after another for cube maps. May be nil.
	Pixels []byte
}

// AccelerationStructureDescriptor describes an acceleration structure to create.
type AccelerationStructureDescriptor struct {
	Label string
	Level AccelerationStructureLevel
	Flags BuildFlags
	// MaxInstances bounds a top-level structure.
	MaxInstances uint32
	// Bounds is the local-space extent of a bottom-level structure's geometry.
	Bounds Bounds
}

// Bounds is a plain min/max box kept free of math library types so the interface stays minimal.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// DescriptorBinding declares one binding of a descriptor set layout.
type DescriptorBinding struct {
	Binding uint32
	Kind    DescriptorKind
	// Count is the number of array elements. Bindless tables use the table capacity.
	Count uint32
}

// DescriptorSetDescriptor describes a descriptor set to create.
type DescriptorSetDescriptor struct {
	Label    string
	Bindings []DescriptorBinding
}

// DescriptorWrite replaces a contiguous run of elements in one binding of a set.
// Exactly one of Buffers, Images or AccelerationStructure is used, matching the binding kind.
type DescriptorWrite struct {
	Set                   DescriptorSet
	Binding               uint32
	FirstElement          uint32
	Buffers               []Buffer
	Images                []Image
	AccelerationStructure AccelerationStructure
}

// MemoryBarrier orders memory access between two sets of pipeline stages.
type MemoryBarrier struct {
	SrcAccess AccessFlags
	DstAccess AccessFlags
	SrcStage  PipelineStage
	DstStage  PipelineStage
}

// BuildInfo describes a top-level acceleration structure build or update.
type BuildInfo struct {
	Dst  AccelerationStructure
	Mode BuildMode
	// Instances holds InstanceCount 64-byte instance records on the device.
	Instances     Buffer
	InstanceCount uint32
	Scratch       Buffer
}

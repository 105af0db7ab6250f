package scene

import (
	"encoding/binary"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUInstance is the per-instance record read by hit shaders through the instance
// custom index. Size: 144 bytes (std430 aligned).
type GPUInstance struct {
	Model     mgl32.Mat4 // offset   0: world transform (mat4)
	Normal    mgl32.Mat4 // offset  64: normal transform (mat4)
	MeshIndex uint32     // offset 128: bindless mesh slot (uint)
	_pad      [3]uint32  // offset 132: padding to 16-byte alignment
}

// GPUInstanceSize is the size of a marshaled GPUInstance in bytes.
const GPUInstanceSize = int(unsafe.Sizeof(GPUInstance{}))

// Size returns the size of the GPUInstance struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (144)
func (g *GPUInstance) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the record into buf, which must hold Size() bytes.
//
// Parameters:
//   - buf: destination
func (g *GPUInstance) Marshal(buf []byte) {
	off := common.PutMat4(buf, g.Model)
	off += common.PutMat4(buf[off:], g.Normal)
	binary.LittleEndian.PutUint32(buf[off:], g.MeshIndex)
	clear(buf[off+4 : off+16])
}

// Instance flags of a top-level instance record.
const (
	TLASInstanceTriangleFacingCullDisable uint32 = 0x1
	TLASInstanceMaskAll                   uint32 = 0xFF
)

// GPUTLASInstance is a top-level acceleration structure instance in the
// VkAccelerationStructureInstanceKHR layout. Size: 64 bytes.
type GPUTLASInstance struct {
	Transform [12]float32 // offset  0: row-major 3x4 object-to-world
	// CustomIndexMask packs the instance custom index (low 24 bits) and visibility mask (high 8 bits).
	CustomIndexMask uint32 // offset 48
	// SBTOffsetFlags packs the shader binding table offset (low 24 bits) and instance flags (high 8 bits).
	SBTOffsetFlags uint32 // offset 52
	// Reference is the device address of the bottom-level structure.
	Reference uint64 // offset 56
}

// GPUTLASInstanceSize is the size of a marshaled GPUTLASInstance in bytes.
const GPUTLASInstanceSize = int(unsafe.Sizeof(GPUTLASInstance{}))

// NewGPUTLASInstance packs the instance at index with world transform model referencing blasAddress.
//
// Parameters:
//   - index: instance index, stored as the custom index
//   - model: world transform
//   - blasAddress: device address of the mesh's bottom-level structure
//
// Returns:
//   - GPUTLASInstance: the packed record
func NewGPUTLASInstance(index uint32, model mgl32.Mat4, blasAddress uint64) GPUTLASInstance {
	return GPUTLASInstance{
		Transform:       common.RowMajor3x4(model),
		CustomIndexMask: index&0xFFFFFF | TLASInstanceMaskAll<<24,
		SBTOffsetFlags:  TLASInstanceTriangleFacingCullDisable << 24,
		Reference:       blasAddress,
	}
}

// Marshal serializes the record into buf, which must hold GPUTLASInstanceSize bytes.
func (g *GPUTLASInstance) Marshal(buf []byte) {
	off := common.PutFloats(buf, g.Transform[:]...)
	binary.LittleEndian.PutUint32(buf[off:], g.CustomIndexMask)
	binary.LittleEndian.PutUint32(buf[off+4:], g.SBTOffsetFlags)
	binary.LittleEndian.PutUint64(buf[off+8:], g.Reference)
}

// GPUMaterialIndex maps one submesh of an instance to its triangles and material.
// Size: 8 bytes (uvec2).
type GPUMaterialIndex struct {
	PrimitiveOffset uint32 // offset 0: first triangle of the submesh
	MaterialSlot    uint32 // offset 4: bindless material slot
}

// GPUMaterialIndexSize is the size of a marshaled GPUMaterialIndex in bytes.
const GPUMaterialIndexSize = int(unsafe.Sizeof(GPUMaterialIndex{}))

// Marshal serializes the record into buf, which must hold GPUMaterialIndexSize bytes.
func (g *GPUMaterialIndex) Marshal(buf []byte) {
	binary.LittleEndian.PutUint32(buf, g.PrimitiveOffset)
	binary.LittleEndian.PutUint32(buf[4:], g.MaterialSlot)
}

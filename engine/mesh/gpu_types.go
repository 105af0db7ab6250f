package mesh

import (
	"encoding/binary"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-rt/common"
)

// GPUVertex is the GPU-aligned vertex read by hit shaders through the bindless vertex table.
// Size: 64 bytes (std430 aligned, no padding required).
type GPUVertex struct {
	Position [3]float32 // offset  0: model-space position (12 bytes)
	Normal   [3]float32 // offset 12: vertex normal (12 bytes)
	TexCoord [2]float32 // offset 24: UV texture coordinate (8 bytes)
	Color    [4]float32 // offset 32: per-vertex RGBA color (16 bytes)
	Tangent  [4]float32 // offset 48: tangent (xyz) + handedness (w) (16 bytes)
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes (64)
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the vertex into buf, which must hold Size() bytes.
//
// Parameters:
//   - buf: destination
func (g *GPUVertex) Marshal(buf []byte) {
	off := common.PutFloats(buf, g.Position[:]...)
	off += common.PutFloats(buf[off:], g.Normal[:]...)
	off += common.PutFloats(buf[off:], g.TexCoord[:]...)
	off += common.PutFloats(buf[off:], g.Color[:]...)
	common.PutFloats(buf[off:], g.Tangent[:]...)
}

// marshalIndices writes 32-bit little endian indices into buf.
func marshalIndices(buf []byte, indices []uint32) {
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
}

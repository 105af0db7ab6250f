package light

import (
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// GPULight is the GPU-aligned light record stored in the scene light buffer.
// Size: 64 bytes (four vec4, std430 aligned).
//
// Layout for punctual lights:
//   - Data0: type, color rgb
//   - Data1: direction xyz, intensity
//   - Data2: position xyz, radius
//   - Data3: cos(inner cone), cos(outer cone), unused, unused
//
// Area lights reinterpret the first two vectors as integers:
//   - Data0: type, mesh instance index, material slot, primitive offset
//   - Data1: primitive count, unused...
type GPULight struct {
	Data0 [4]float32 // offset  0
	Data1 [4]float32 // offset 16
	Data2 [4]float32 // offset 32
	Data3 [4]float32 // offset 48
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight into buf, which must hold Size() bytes.
// Area records keep their integer fields bit-exact.
//
// Parameters:
//   - buf: destination
func (g *GPULight) Marshal(buf []byte) {
	common.PutFloats(buf[0:], g.Data0[:]...)
	common.PutFloats(buf[16:], g.Data1[:]...)
	common.PutFloats(buf[32:], g.Data2[:]...)
	common.PutFloats(buf[48:], g.Data3[:]...)
}

// Type returns the light type stored in the record.
func (g *GPULight) Type() LightType {
	return LightType(g.Data0[0])
}

// NewDirectional packs a directional light. forward is the direction the light travels.
//
// Parameters:
//   - color: linear RGB color
//   - intensity: radiance scale
//   - forward: world-space travel direction
//   - radius: angular radius of the sun disc
//
// Returns:
//   - GPULight: the packed record
func NewDirectional(color mgl32.Vec3, intensity float32, forward mgl32.Vec3, radius float32) GPULight {
	return GPULight{
		Data0: [4]float32{float32(LightTypeDirectional), color[0], color[1], color[2]},
		Data1: [4]float32{forward[0], forward[1], forward[2], intensity},
		Data2: [4]float32{0, 0, 0, radius},
	}
}

// NewPoint packs a point light.
//
// Parameters:
//   - color: linear RGB color
//   - intensity: radiance scale
//   - position: world-space position
//   - radius: emitter sphere radius
//
// Returns:
//   - GPULight: the packed record
func NewPoint(color mgl32.Vec3, intensity float32, position mgl32.Vec3, radius float32) GPULight {
	return GPULight{
		Data0: [4]float32{float32(LightTypePoint), color[0], color[1], color[2]},
		Data1: [4]float32{0, 0, 0, intensity},
		Data2: [4]float32{position[0], position[1], position[2], radius},
	}
}

// NewSpot packs a spot light. Cone angles are given in degrees and stored as cosines.
//
// Parameters:
//   - color: linear RGB color
//   - intensity: radiance scale
//   - forward: world-space cone axis
//   - position: world-space position
//   - radius: emitter radius
//   - innerDeg: full-intensity cone half-angle in degrees
//   - outerDeg: cutoff cone half-angle in degrees
//
// Returns:
//   - GPULight: the packed record
func NewSpot(color mgl32.Vec3, intensity float32, forward, position mgl32.Vec3, radius, innerDeg, outerDeg float32) GPULight {
	return GPULight{
		Data0: [4]float32{float32(LightTypeSpot), color[0], color[1], color[2]},
		Data1: [4]float32{forward[0], forward[1], forward[2], intensity},
		Data2: [4]float32{position[0], position[1], position[2], radius},
		Data3: [4]float32{math32.Cos(mgl32.DegToRad(innerDeg)), math32.Cos(mgl32.DegToRad(outerDeg)), 0, 0},
	}
}

// NewEnvironment packs the environment entry.
//
// Returns:
//   - GPULight: the packed record
func NewEnvironment() GPULight {
	return GPULight{Data0: [4]float32{float32(LightTypeEnvironmentMap)}}
}

// NewArea packs an area light covering the triangles of one submesh of one mesh instance.
// The integer fields are stored bit-exact.
//
// Parameters:
//   - instance: mesh instance index in the frame's instance buffer
//   - materialSlot: material table slot of the emissive material
//   - primitiveOffset: first triangle of the submesh
//   - primitiveCount: number of triangles
//
// Returns:
//   - GPULight: the packed record
func NewArea(instance, materialSlot, primitiveOffset, primitiveCount uint32) GPULight {
	return GPULight{
		Data0: [4]float32{float32(LightTypeArea), math.Float32frombits(instance), math.Float32frombits(materialSlot), math.Float32frombits(primitiveOffset)},
		Data1: [4]float32{math.Float32frombits(primitiveCount)},
	}
}

// AreaFields decodes the integer fields of an area record.
//
// Returns:
//   - instance, materialSlot, primitiveOffset, primitiveCount
func (g *GPULight) AreaFields() (uint32, uint32, uint32, uint32) {
	return math.Float32bits(g.Data0[1]), math.Float32bits(g.Data0[2]), math.Float32bits(g.Data0[3]), math.Float32bits(g.Data1[0])
}

package material

import (
	"encoding/binary"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// NoTexture marks an unbound texture slot in GPUMaterial.
const NoTexture int32 = -1

// GPUMaterial is the GPU-aligned material record stored in the scene material buffer.
// Size: 80 bytes (std430 aligned).
type GPUMaterial struct {
	TextureIndices0   [4]int32   // offset  0: albedo, normal, roughness, metallic texture slots (ivec4)
	TextureIndices1   [4]int32   // offset 16: emissive slot, unused, roughness channel, metallic channel (ivec4)
	Albedo            [4]float32 // offset 32: linear albedo RGB, alpha (vec4)
	Emissive          [4]float32 // offset 48: linear emissive RGB, strength (vec4)
	RoughnessMetallic [4]float32 // offset 64: roughness, metallic, unused, unused (vec4)
}

// Size returns the size of the GPUMaterial struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPUMaterial) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterial into buf, which must hold Size() bytes.
//
// Parameters:
//   - buf: destination
func (g *GPUMaterial) Marshal(buf []byte) {
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(g.TextureIndices0[i]))
		binary.LittleEndian.PutUint32(buf[16+i*4:], uint32(g.TextureIndices1[i]))
	}
	common.PutFloats(buf[32:], g.Albedo[:]...)
	common.PutFloats(buf[48:], g.Emissive[:]...)
	common.PutFloats(buf[64:], g.RoughnessMetallic[:]...)
}

// NewGPUMaterial packs m. slot maps a bound texture to its bindless slot; unbound
// textures pack as NoTexture and the authored fallback values are used instead.
//
// Parameters:
//   - m: the material
//   - slot: texture slot lookup
//
// Returns:
//   - GPUMaterial: the packed record
func NewGPUMaterial(m Material, slot func(texture.Texture) int32) GPUMaterial {
	index := func(t texture.Texture) int32 {
		if t == nil {
			return NoTexture
		}
		return slot(t)
	}
	albedo := m.Albedo()
	linearAlbedo := common.SRGBToLinear(mgl32.Vec3{albedo[0], albedo[1], albedo[2]})
	emissive := m.Emissive()
	linearEmissive := common.SRGBToLinear(mgl32.Vec3{emissive[0], emissive[1], emissive[2]})

	return GPUMaterial{
		TextureIndices0: [4]int32{
			index(m.AlbedoTexture()),
			index(m.NormalTexture()),
			index(m.RoughnessTexture()),
			index(m.MetallicTexture()),
		},
		TextureIndices1: [4]int32{
			index(m.EmissiveTexture()),
			NoTexture,
			int32(m.RoughnessChannel()),
			int32(m.MetallicChannel()),
		},
		Albedo:            [4]float32{linearAlbedo[0], linearAlbedo[1], linearAlbedo[2], albedo[3]},
		Emissive:          [4]float32{linearEmissive[0], linearEmissive[1], linearEmissive[2], emissive[3]},
		RoughnessMetallic: [4]float32{m.Roughness(), m.Metallic(), 0, 0},
	}
}

// Package material describes physically based surface materials referenced by mesh submeshes.
package material

import (
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
)

// Channel selects one component of a packed texture.
type Channel int32

const (
	ChannelR Channel = iota
	ChannelG
	ChannelB
	ChannelA
)

// material is the implementation of the Material interface.
type material struct {
	name             string
	albedo           [4]float32
	emissive         [4]float32
	roughness        float32
	metallic         float32
	albedoTexture    texture.Texture
	normalTexture    texture.Texture
	roughnessTexture texture.Texture
	metallicTexture  texture.Texture
	emissiveTexture  texture.Texture
	roughnessChannel Channel
	metallicChannel  Channel
}

// Material defines a surface: texture references and the authored fallback values
// used where a texture is absent. The Material value itself is its identity for
// deduplication into the scene's material table.
//
// Colors are authored display-encoded; the scene converts them to linear when packing.
// Changing values on a material already in use requires a forced scene update.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// Albedo retrieves the base RGBA color used when no albedo texture is bound.
	//
	// Returns:
	//   - [4]float32: the albedo color
	Albedo() [4]float32

	// Emissive retrieves the emitted RGB color with its strength in the fourth component.
	//
	// Returns:
	//   - [4]float32: emissive color and strength
	Emissive() [4]float32

	// Roughness retrieves the roughness factor (0 smooth, 1 rough).
	Roughness() float32

	// Metallic retrieves the metallic factor (0 dielectric, 1 metal).
	Metallic() float32

	AlbedoTexture() texture.Texture
	NormalTexture() texture.Texture
	RoughnessTexture() texture.Texture
	MetallicTexture() texture.Texture
	EmissiveTexture() texture.Texture

	// RoughnessChannel retrieves the channel of RoughnessTexture holding roughness.
	RoughnessChannel() Channel

	// MetallicChannel retrieves the channel of MetallicTexture holding metalness.
	MetallicChannel() Channel

	// Textures retrieves the bound textures in packing order: albedo, normal,
	// roughness, metallic, emissive. Unbound entries are nil.
	//
	// Returns:
	//   - [5]texture.Texture: the texture references
	Textures() [5]texture.Texture

	// IsEmissive reports whether surfaces using this material emit light, either
	// through an emissive texture or a non-zero emissive color and strength.
	//
	// Returns:
	//   - bool: true if the material emits light
	IsEmissive() bool

	// SetAlbedo sets the base RGBA color.
	//
	// Parameters:
	//   - c: the albedo color
	SetAlbedo(c [4]float32)

	// SetEmissive sets the emitted color and strength.
	//
	// Parameters:
	//   - c: emissive RGB and strength
	SetEmissive(c [4]float32)
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
// Defaults: white albedo, roughness 1, metallic 0, no emission, roughness in the
// green channel and metalness in the blue channel.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		albedo:           [4]float32{1, 1, 1, 1},
		roughness:        1.0,
		metallic:         0.0,
		roughnessChannel: ChannelG,
		metallicChannel:  ChannelB,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) Albedo() [4]float32 {
	return m.albedo
}

func (m *material) Emissive() [4]float32 {
	return m.emissive
}

func (m *material) Roughness() float32 {
	return m.roughness
}

func (m *material) Metallic() float32 {
	return m.metallic
}

func (m *material) AlbedoTexture() texture.Texture {
	return m.albedoTexture
}

func (m *material) NormalTexture() texture.Texture {
	return m.normalTexture
}

func (m *material) RoughnessTexture() texture.Texture {
	return m.roughnessTexture
}

func (m *material) MetallicTexture() texture.Texture {
	return m.metallicTexture
}

func (m *material) EmissiveTexture() texture.Texture {
	return m.emissiveTexture
}

func (m *material) RoughnessChannel() Channel {
	return m.roughnessChannel
}

func (m *material) MetallicChannel() Channel {
	return m.metallicChannel
}

func (m *material) Textures() [5]texture.Texture {
	return [5]texture.Texture{m.albedoTexture, m.normalTexture, m.roughnessTexture, m.metallicTexture, m.emissiveTexture}
}

func (m *material) IsEmissive() bool {
	if m.emissiveTexture != nil {
		return true
	}
	if m.emissive[3] <= 0 {
		return false
	}
	return m.emissive[0] > 0 || m.emissive[1] > 0 || m.emissive[2] > 0
}

func (m *material) SetAlbedo(c [4]float32) {
	m.albedo = c
}

func (m *material) SetEmissive(c [4]float32) {
	m.emissive = c
}

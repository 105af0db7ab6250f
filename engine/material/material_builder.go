package material

import "github.com/Carmen-Shannon/oxy-rt/engine/texture"

// MaterialBuilderOption is a functional option for configuring a Material via NewMaterial.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the material name.
//
// Parameters:
//   - name: the material identifier
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithAlbedo is an option builder that sets the display-encoded base RGBA color.
//
// Parameters:
//   - c: the albedo color
//
// Returns:
//   - MaterialBuilderOption: a function that applies the albedo option to a material
func WithAlbedo(c [4]float32) MaterialBuilderOption {
	return func(m *material) {
		m.albedo = c
	}
}

// WithEmissive is an option builder that sets the emitted RGB color and its strength.
//
// Parameters:
//   - rgb: the display-encoded emissive color
//   - strength: the emission strength multiplier
//
// Returns:
//   - MaterialBuilderOption: a function that applies the emissive option to a material
func WithEmissive(rgb [3]float32, strength float32) MaterialBuilderOption {
	return func(m *material) {
		m.emissive = [4]float32{rgb[0], rgb[1], rgb[2], strength}
	}
}

// WithRoughness is an option builder that sets the roughness factor.
//
// Parameters:
//   - r: the roughness factor
//
// Returns:
//   - MaterialBuilderOption: a function that applies the roughness option to a material
func WithRoughness(r float32) MaterialBuilderOption {
	return func(m *material) {
		m.roughness = r
	}
}

// WithMetallic is an option builder that sets the metallic factor.
//
// Parameters:
//   - v: the metallic factor
//
// Returns:
//   - MaterialBuilderOption: a function that applies the metallic option to a material
func WithMetallic(v float32) MaterialBuilderOption {
	return func(m *material) {
		m.metallic = v
	}
}

// WithAlbedoTexture is an option builder that binds the albedo texture.
func WithAlbedoTexture(t texture.Texture) MaterialBuilderOption {
	return func(m *material) {
		m.albedoTexture = t
	}
}

// WithNormalTexture is an option builder that binds the tangent-space normal map.
func WithNormalTexture(t texture.Texture) MaterialBuilderOption {
	return func(m *material) {
		m.normalTexture = t
	}
}

// WithRoughnessTexture is an option builder that binds the roughness texture and the channel holding roughness.
//
// Parameters:
//   - t: the texture
//   - ch: the channel to sample
//
// Returns:
//   - MaterialBuilderOption: a function that applies the option to a material
func WithRoughnessTexture(t texture.Texture, ch Channel) MaterialBuilderOption {
	return func(m *material) {
		m.roughnessTexture = t
		m.roughnessChannel = ch
	}
}

// WithMetallicTexture is an option builder that binds the metallic texture and the channel holding metalness.
//
// Parameters:
//   - t: the texture
//   - ch: the channel to sample
//
// Returns:
//   - MaterialBuilderOption: a function that applies the option to a material
func WithMetallicTexture(t texture.Texture, ch Channel) MaterialBuilderOption {
	return func(m *material) {
		m.metallicTexture = t
		m.metallicChannel = ch
	}
}

// WithEmissiveTexture is an option builder that binds the emissive texture.
func WithEmissiveTexture(t texture.Texture) MaterialBuilderOption {
	return func(m *material) {
		m.emissiveTexture = t
	}
}

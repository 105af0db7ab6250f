// Package light defines the light kinds understood by the path tracer and their packed records.
package light

// LightType identifies the kind of light source. Values are shared with shaders.
type LightType uint32

const (
	// LightTypeDirectional represents a light with no position, only direction,
	// such as the sun. Its radius is the angular size of the disc.
	LightTypeDirectional LightType = iota

	// LightTypeSpot represents a light emitting in a cone from a position along a direction.
	LightTypeSpot

	// LightTypePoint represents a light emitting in all directions from a position.
	LightTypePoint

	// LightTypeEnvironmentMap represents the distant environment: an image-based
	// probe, or the sky model when the scene only has directional lights.
	LightTypeEnvironmentMap

	// LightTypeArea represents the triangles of an emissive submesh.
	LightTypeArea
)

// String returns a readable light type name.
func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypeSpot:
		return "spot"
	case LightTypePoint:
		return "point"
	case LightTypeEnvironmentMap:
		return "environment"
	case LightTypeArea:
		return "area"
	}
	return "unknown"
}

// Defaults applied to newly created light nodes.
const (
	DefaultIntensity = 1.0

	DefaultDirectionalRadius = 0.1

	DefaultSpotInnerConeDegrees = 40.0
	DefaultSpotOuterConeDegrees = 50.0
	DefaultSpotRadius           = 5.0

	DefaultPointRadius = 5.0
)

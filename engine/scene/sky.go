package scene

import (
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
	"github.com/go-gl/mathgl/mgl32"
)

// SkyModel is the analytic sky used as the environment when the scene has directional
// lights but no image-based lighting probe.
type SkyModel interface {
	// Update records the work that regenerates the sky cube map for a sun direction.
	//
	// Parameters:
	//   - cmd: the frame's command recorder
	//   - sunDirection: unit vector pointing from the scene towards the sun
	Update(cmd backend.CommandRecorder, sunDirection mgl32.Vec3)

	// Cubemap returns the cube map the sky renders into.
	Cubemap() backend.Image
}

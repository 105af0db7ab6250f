// Package camera derives projection and view matrices for camera nodes and packs the camera uniform.
package camera

import (
	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Defaults applied to newly created camera nodes.
const (
	DefaultNear           = 1.0
	DefaultFar            = 1000.0
	DefaultFovDegrees     = 60.0
	DefaultFocalLength    = 8.0
	DefaultApertureRadius = 0.1
)

// Projection returns the perspective projection for a vertical field of view in degrees.
//
// Parameters:
//   - fovDeg: vertical field of view in degrees
//   - viewport: the render target size, used for the aspect ratio
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Projection(fovDeg float32, viewport common.Extent2D, near, far float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(fovDeg), viewport.Aspect(), near, far)
}

// View returns the view matrix for a camera whose world transform (without scale) is world.
//
// Parameters:
//   - world: the camera's global transform without scale
//
// Returns:
//   - mgl32.Mat4: the view matrix
func View(world mgl32.Mat4) mgl32.Mat4 {
	return world.Inv()
}

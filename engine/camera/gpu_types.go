package camera

import (
	"unsafe"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUCameraUniform is the GPU-aligned camera uniform read by ray generation.
// Size: 288 bytes (std140 / std430 aligned).
type GPUCameraUniform struct {
	ViewInverse       mgl32.Mat4 // offset   0: camera-to-world (mat4)
	ProjectionInverse mgl32.Mat4 // offset  64: clip-to-camera (mat4)
	View              mgl32.Mat4 // offset 128: world-to-camera (mat4)
	Projection        mgl32.Mat4 // offset 192: camera-to-clip (mat4)
	Position          [4]float32 // offset 256: world-space position, w unused (vec4)
	Lens              [4]float32 // offset 272: focal length, aperture radius, near, far (vec4)
}

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (288)
func (g *GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	off := common.PutMat4(buf, g.ViewInverse)
	off += common.PutMat4(buf[off:], g.ProjectionInverse)
	off += common.PutMat4(buf[off:], g.View)
	off += common.PutMat4(buf[off:], g.Projection)
	off += common.PutFloats(buf[off:], g.Position[:]...)
	common.PutFloats(buf[off:], g.Lens[:]...)
	return buf
}

// NewGPUCameraUniform packs the matrices and lens parameters of a camera.
//
// Parameters:
//   - view: world-to-camera matrix
//   - projection: camera-to-clip matrix
//   - position: world-space position
//   - focalLength: focus distance
//   - apertureRadius: thin-lens aperture radius
//   - near: near plane
//   - far: far plane
//
// Returns:
//   - GPUCameraUniform: the packed uniform
func NewGPUCameraUniform(view, projection mgl32.Mat4, position mgl32.Vec3, focalLength, apertureRadius, near, far float32) GPUCameraUniform {
	return GPUCameraUniform{
		ViewInverse:       view.Inv(),
		ProjectionInverse: projection.Inv(),
		View:              view,
		Projection:        projection,
		Position:          [4]float32{position[0], position[1], position[2], 1},
		Lens:              [4]float32{focalLength, apertureRadius, near, far},
	}
}

package scene

import (
	"github.com/Carmen-Shannon/oxy-rt/engine/material"
	"github.com/Carmen-Shannon/oxy-rt/engine/mesh"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// NodeBuilderOption configures a node at creation. Options that do not apply to the
// node's kind are ignored.
type NodeBuilderOption func(*node)

// WithEnabled sets the initial enabled flag. Nodes start enabled.
func WithEnabled(enabled bool) NodeBuilderOption {
	return func(n *node) {
		n.enabled = enabled
	}
}

// WithPosition sets the local position.
func WithPosition(p mgl32.Vec3) NodeBuilderOption {
	return func(n *node) {
		if n.xf != nil {
			n.xf.position = p
		}
	}
}

// WithOrientation sets the local orientation.
func WithOrientation(q mgl32.Quat) NodeBuilderOption {
	return func(n *node) {
		if n.xf != nil {
			n.xf.orientation = q.Normalize()
		}
	}
}

// WithScale sets the local scale.
func WithScale(s mgl32.Vec3) NodeBuilderOption {
	return func(n *node) {
		if n.xf != nil {
			n.xf.scale = s
		}
	}
}

// WithLocalTransform decomposes m into the local position, orientation and scale.
func WithLocalTransform(m mgl32.Mat4) NodeBuilderOption {
	return func(n *node) {
		if n.xf != nil {
			n.xf.setFromMatrix(m)
		}
	}
}

// WithColor sets a light's linear RGB color.
func WithColor(c mgl32.Vec3) NodeBuilderOption {
	return func(n *node) {
		if n.light != nil {
			n.light.color = c
		}
	}
}

// WithIntensity sets a light's intensity.
func WithIntensity(i float32) NodeBuilderOption {
	return func(n *node) {
		if n.light != nil {
			n.light.intensity = i
		}
	}
}

// WithRadius sets a light's radius.
func WithRadius(r float32) NodeBuilderOption {
	return func(n *node) {
		if n.light != nil {
			n.light.radius = r
		}
	}
}

// WithConeAngles sets a spot light's inner and outer cone half-angles in degrees.
func WithConeAngles(innerDeg, outerDeg float32) NodeBuilderOption {
	return func(n *node) {
		if n.light != nil && n.kind == KindSpotLight {
			n.light.innerDeg = innerDeg
			n.light.outerDeg = outerDeg
		}
	}
}

// WithFov sets a camera's vertical field of view in degrees.
func WithFov(deg float32) NodeBuilderOption {
	return func(n *node) {
		if n.camera != nil {
			n.camera.fovDeg = deg
		}
	}
}

// WithNearFar sets a camera's clip distances.
func WithNearFar(near, far float32) NodeBuilderOption {
	return func(n *node) {
		if n.camera != nil {
			n.camera.near = near
			n.camera.far = far
		}
	}
}

// WithFocalLength sets a camera's focus distance.
func WithFocalLength(f float32) NodeBuilderOption {
	return func(n *node) {
		if n.camera != nil {
			n.camera.focalLength = f
		}
	}
}

// WithApertureRadius sets a camera's aperture radius.
func WithApertureRadius(r float32) NodeBuilderOption {
	return func(n *node) {
		if n.camera != nil {
			n.camera.apertureRadius = r
		}
	}
}

// WithMesh attaches a mesh to a mesh node.
func WithMesh(m mesh.Mesh) NodeBuilderOption {
	return func(n *node) {
		if n.mesh != nil {
			n.mesh.mesh = m
		}
	}
}

// WithMaterialOverride sets a mesh node's material override.
func WithMaterialOverride(m material.Material) NodeBuilderOption {
	return func(n *node) {
		if n.mesh != nil {
			n.mesh.override = m
		}
	}
}

// WithImage sets an IBL probe's environment cube map.
func WithImage(t texture.Texture) NodeBuilderOption {
	return func(n *node) {
		if n.ibl != nil {
			n.ibl.image = t
		}
	}
}

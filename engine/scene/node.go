package scene

import (
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
	"github.com/Carmen-Shannon/oxy-rt/engine/material"
	"github.com/Carmen-Shannon/oxy-rt/engine/mesh"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// NodeID is the stable identity of a node within its scene. IDs are assigned
// monotonically by the scene and never reused.
type NodeID uint64

// NodeKind tags the variant a node holds.
type NodeKind uint8

const (
	KindRoot NodeKind = iota
	KindGroup
	KindMesh
	KindDirectionalLight
	KindSpotLight
	KindPointLight
	KindCamera
	KindIBL
)

// String returns a readable kind name.
func (k NodeKind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindGroup:
		return "group"
	case KindMesh:
		return "mesh"
	case KindDirectionalLight:
		return "directional-light"
	case KindSpotLight:
		return "spot-light"
	case KindPointLight:
		return "point-light"
	case KindCamera:
		return "camera"
	case KindIBL:
		return "ibl"
	}
	return "unknown"
}

// HasTransform reports whether nodes of this kind carry a transform.
func (k NodeKind) HasTransform() bool {
	return k != KindIBL
}

// IsLight reports whether the kind is one of the punctual light kinds.
func (k NodeKind) IsLight() bool {
	return k == KindDirectionalLight || k == KindSpotLight || k == KindPointLight
}

const noSlot int32 = -1

// node is one arena slot. Exactly one payload pointer matching kind is set;
// xf is set for every kind with a transform.
type node struct {
	id       NodeID
	name     string
	kind     NodeKind
	enabled  bool
	parent   int32
	children []int32

	// hierarchyDirty marks a structural change under or at this node.
	hierarchyDirty bool
	// paramsDirty marks a light parameter change that must reach the light buffer.
	paramsDirty bool

	xf     *transform
	mesh   *meshPayload
	light  *lightPayload
	camera *cameraPayload
	ibl    *iblPayload
}

type meshPayload struct {
	mesh     mesh.Mesh
	override material.Material
	// materialIndices holds one (primitive offset, material slot) pair per submesh.
	materialIndices backend.Buffer
}

type lightPayload struct {
	color     mgl32.Vec3
	intensity float32
	radius    float32
	innerDeg  float32
	outerDeg  float32
}

type cameraPayload struct {
	fovDeg         float32
	near           float32
	far            float32
	focalLength    float32
	apertureRadius float32

	projection mgl32.Mat4
	view       mgl32.Mat4
}

type iblPayload struct {
	image texture.Texture
}

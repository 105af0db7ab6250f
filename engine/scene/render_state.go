package scene

import (
	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
)

// SceneState tells the registrar and synchronizer how much of the frame's GPU data must be redone.
type SceneState uint8

const (
	// SceneStateReady means nothing changed: only the per-instance records are rewritten.
	SceneStateReady SceneState = iota
	// SceneStateTransformsUpdated means transforms or light parameters changed:
	// records are rewritten and the TLAS is refit.
	SceneStateTransformsUpdated
	// SceneStateHierarchyUpdated means the visible set changed: resources are
	// re-registered, descriptors rewritten and the TLAS rebuilt.
	SceneStateHierarchyUpdated
)

// String returns a readable state name.
func (s SceneState) String() string {
	switch s {
	case SceneStateReady:
		return "ready"
	case SceneStateTransformsUpdated:
		return "transforms-updated"
	case SceneStateHierarchyUpdated:
		return "hierarchy-updated"
	}
	return "unknown"
}

// Initial capacities reserved for the per-frame lists so traversal does not reallocate.
const (
	reservedMeshes = 1024
	reservedLights = 100
)

// RenderState is the frame-scoped aggregate filled by traversal. It references nodes,
// never owns them, and is reset at the start of every frame. The renderer reads it only
// after Scene.Update returns.
type RenderState struct {
	Meshes            []MeshNode
	DirectionalLights []LightNode
	SpotLights        []LightNode
	PointLights       []LightNode

	// Camera is the first enabled camera in traversal order.
	Camera CameraNode
	// IBL is the first enabled image-based lighting probe in traversal order.
	IBL IBLNode

	Viewport common.Extent2D
	Cmd      backend.CommandRecorder

	// structureChanged and transformsChanged are the two independent change flags
	// raised during traversal; State is derived from them.
	structureChanged  bool
	transformsChanged bool

	State SceneState

	// Bindings exposes the descriptor sets valid for this frame once the scene has updated.
	Bindings Bindings
}

// NewRenderState returns a state with list capacity reserved.
func NewRenderState() *RenderState {
	return &RenderState{
		Meshes:            make([]MeshNode, 0, reservedMeshes),
		DirectionalLights: make([]LightNode, 0, reservedLights),
		SpotLights:        make([]LightNode, 0, reservedLights),
		PointLights:       make([]LightNode, 0, reservedLights),
	}
}

// Setup clears the state for a new frame.
//
// Parameters:
//   - viewport: the render target size, used for camera aspect ratios
//   - cmd: the command recorder of this frame
func (r *RenderState) Setup(viewport common.Extent2D, cmd backend.CommandRecorder) {
	r.Meshes = r.Meshes[:0]
	r.DirectionalLights = r.DirectionalLights[:0]
	r.SpotLights = r.SpotLights[:0]
	r.PointLights = r.PointLights[:0]
	r.Camera = CameraNode{}
	r.IBL = IBLNode{}
	r.Viewport = viewport
	r.Cmd = cmd
	r.structureChanged = false
	r.transformsChanged = false
	r.State = SceneStateReady
	r.Bindings = Bindings{}
}

// StructureChanged reports whether the frame saw a structural change.
func (r *RenderState) StructureChanged() bool {
	return r.structureChanged
}

// TransformsChanged reports whether the frame saw a transform or light parameter change.
func (r *RenderState) TransformsChanged() bool {
	return r.transformsChanged
}

func (r *RenderState) resolveState() {
	switch {
	case r.structureChanged:
		r.State = SceneStateHierarchyUpdated
	case r.transformsChanged:
		r.State = SceneStateTransformsUpdated
	default:
		r.State = SceneStateReady
	}
}

// Bindings are the GPU resources a ray generation dispatch binds for one frame.
type Bindings struct {
	// Scene holds material (0), instance (1) and light (2) buffers, the TLAS (3) and the environment map (4).
	Scene backend.DescriptorSet
	// VertexBuffers, IndexBuffers and MaterialIndices are bindless buffer tables at binding 0,
	// indexed by mesh slot (vertices, indices) and instance index (material indices).
	VertexBuffers   backend.DescriptorSet
	IndexBuffers    backend.DescriptorSet
	MaterialIndices backend.DescriptorSet
	// Textures is the bindless texture table at binding 0, indexed by texture slot.
	Textures backend.DescriptorSet

	TLAS       backend.AccelerationStructure
	LightCount uint32
}

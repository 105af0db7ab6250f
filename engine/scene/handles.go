package scene

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
	"github.com/Carmen-Shannon/oxy-rt/engine/camera"
	"github.com/Carmen-Shannon/oxy-rt/engine/material"
	"github.com/Carmen-Shannon/oxy-rt/engine/mesh"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Node is a handle to a node in a scene's arena. Handles are small values; a handle whose
// node was removed resolves to nothing and its accessors return zero values.
//
// Handles must not be used concurrently with Scene.Update.
type Node struct {
	g  *graph
	id NodeID
}

func (n Node) slot() (int32, bool) {
	if n.g == nil {
		return noSlot, false
	}
	return n.g.lookup(n.id)
}

func (n Node) node() *node {
	if n.g == nil {
		return nil
	}
	return n.g.get(n.id)
}

func (n Node) handle(slot int32) Node {
	return Node{g: n.g, id: n.g.slots[slot].id}
}

func staleHandle(op string, id NodeID) {
	common.Logger().Warn("scene: stale node handle", "op", op, "id", id)
}

// ID returns the node's scene-unique identity.
func (n Node) ID() NodeID {
	return n.id
}

// Valid reports whether the handle refers to a live node.
func (n Node) Valid() bool {
	_, ok := n.slot()
	return ok
}

// Name returns the display name.
func (n Node) Name() string {
	if p := n.node(); p != nil {
		return p.name
	}
	return ""
}

// SetName renames the node.
func (n Node) SetName(name string) {
	if p := n.node(); p != nil {
		p.name = name
	}
}

// Kind returns the variant tag.
func (n Node) Kind() NodeKind {
	if p := n.node(); p != nil {
		return p.kind
	}
	return KindGroup
}

// Enabled reports whether the node and its subtree take part in traversal.
func (n Node) Enabled() bool {
	if p := n.node(); p != nil {
		return p.enabled
	}
	return false
}

// SetEnabled toggles the node. Enabling or disabling changes the visible set, so it
// counts as a structural change.
func (n Node) SetEnabled(enabled bool) {
	p := n.node()
	if p == nil {
		staleHandle("SetEnabled", n.id)
		return
	}
	if p.enabled == enabled {
		return
	}
	p.enabled = enabled
	p.hierarchyDirty = true
}

// Parent returns the parent, or an invalid handle for roots and detached nodes.
func (n Node) Parent() Node {
	slot, ok := n.slot()
	if !ok || n.g.slots[slot].parent == noSlot {
		return Node{}
	}
	return n.handle(n.g.slots[slot].parent)
}

// Children returns handles to the direct children in order.
func (n Node) Children() []Node {
	slot, ok := n.slot()
	if !ok {
		return nil
	}
	children := n.g.slots[slot].children
	out := make([]Node, len(children))
	for i, c := range children {
		out[i] = n.handle(c)
	}
	return out
}

// AddChild attaches a detached node as the last child of n.
//
// Parameters:
//   - child: a node created by the same scene and not yet attached
//
// Returns:
//   - error: ErrNodeNotFound, ErrWrongScene, ErrAlreadyParented or ErrCycle
func (n Node) AddChild(child Node) error {
	parent, ok := n.slot()
	if !ok {
		return fmt.Errorf("add child to %d: %w", n.id, ErrNodeNotFound)
	}
	if child.g != n.g {
		return ErrWrongScene
	}
	c, ok := child.slot()
	if !ok {
		return fmt.Errorf("add child %d: %w", child.id, ErrNodeNotFound)
	}
	return n.g.addChild(parent, c)
}

// RemoveChild destroys the first direct child named name together with its subtree.
// Material-index buffers owned by the subtree are released after the device finishes the
// frames that may still read them. Meshes and images stay with their owner.
//
// Parameters:
//   - name: the child's name
//
// Returns:
//   - error: ErrNodeNotFound if n is stale or has no such child
func (n Node) RemoveChild(name string) error {
	slot, ok := n.slot()
	if !ok {
		return fmt.Errorf("remove child %q: %w", name, ErrNodeNotFound)
	}
	if !n.g.removeChild(slot, name) {
		return fmt.Errorf("remove child %q from %q: %w", name, n.g.slots[slot].name, ErrNodeNotFound)
	}
	return nil
}

// FindChild returns the first descendant named name, depth-first.
//
// Parameters:
//   - name: the node name
//
// Returns:
//   - Node: the match
//   - bool: whether a match was found
func (n Node) FindChild(name string) (Node, bool) {
	return n.find(func(p *node) bool { return p.name == name })
}

// FindChildKind returns the first descendant of the given kind, depth-first.
func (n Node) FindChildKind(kind NodeKind) (Node, bool) {
	return n.find(func(p *node) bool { return p.kind == kind })
}

func (n Node) find(pred func(*node) bool) (Node, bool) {
	slot, ok := n.slot()
	if !ok {
		return Node{}, false
	}
	found := n.g.find(slot, pred)
	if found == noSlot {
		return Node{}, false
	}
	return n.handle(found), true
}

// AsTransform narrows the handle to a transform-bearing node.
func (n Node) AsTransform() (TransformNode, bool) {
	p := n.node()
	if p == nil || p.xf == nil {
		return TransformNode{}, false
	}
	return TransformNode{n}, true
}

// AsMesh narrows the handle to a mesh node.
func (n Node) AsMesh() (MeshNode, bool) {
	p := n.node()
	if p == nil || p.kind != KindMesh {
		return MeshNode{}, false
	}
	return MeshNode{TransformNode{n}}, true
}

// AsLight narrows the handle to a directional, spot or point light.
func (n Node) AsLight() (LightNode, bool) {
	p := n.node()
	if p == nil || !p.kind.IsLight() {
		return LightNode{}, false
	}
	return LightNode{TransformNode{n}}, true
}

// AsCamera narrows the handle to a camera.
func (n Node) AsCamera() (CameraNode, bool) {
	p := n.node()
	if p == nil || p.kind != KindCamera {
		return CameraNode{}, false
	}
	return CameraNode{TransformNode{n}}, true
}

// AsIBL narrows the handle to an image-based lighting probe.
func (n Node) AsIBL() (IBLNode, bool) {
	p := n.node()
	if p == nil || p.kind != KindIBL {
		return IBLNode{}, false
	}
	return IBLNode{n}, true
}

// TransformNode is a handle to a node carrying a local transform. Scale applies to the
// node itself and is never inherited by children.
type TransformNode struct {
	Node
}

func (t TransformNode) xf() *transform {
	if p := t.node(); p != nil {
		return p.xf
	}
	return nil
}

// mutate applies f to the local transform and flags the subtree dirty.
func (t TransformNode) mutate(op string, f func(*transform)) {
	slot, ok := t.slot()
	if !ok || t.g.slots[slot].xf == nil {
		staleHandle(op, t.id)
		return
	}
	f(t.g.slots[slot].xf)
	t.g.markTransformDirty(slot)
}

// Position returns the local position.
func (t TransformNode) Position() mgl32.Vec3 {
	if x := t.xf(); x != nil {
		return x.position
	}
	return mgl32.Vec3{}
}

// SetPosition sets the local position.
func (t TransformNode) SetPosition(p mgl32.Vec3) {
	t.mutate("SetPosition", func(x *transform) { x.position = p })
}

// Orientation returns the local orientation.
func (t TransformNode) Orientation() mgl32.Quat {
	if x := t.xf(); x != nil {
		return x.orientation
	}
	return mgl32.QuatIdent()
}

// SetOrientation sets the local orientation. q is normalized.
func (t TransformNode) SetOrientation(q mgl32.Quat) {
	t.mutate("SetOrientation", func(x *transform) { x.orientation = q.Normalize() })
}

// Scale returns the local scale.
func (t TransformNode) Scale() mgl32.Vec3 {
	if x := t.xf(); x != nil {
		return x.scale
	}
	return mgl32.Vec3{1, 1, 1}
}

// SetScale sets the local non-uniform scale.
func (t TransformNode) SetScale(s mgl32.Vec3) {
	t.mutate("SetScale", func(x *transform) { x.scale = s })
}

// Move offsets the local position by d.
func (t TransformNode) Move(d mgl32.Vec3) {
	t.mutate("Move", func(x *transform) { x.position = x.position.Add(d) })
}

// RotateEulerYXZ applies a rotation of yaw (y), pitch (x) and roll (z) degrees in the
// node's local frame.
func (t TransformNode) RotateEulerYXZ(degrees mgl32.Vec3) {
	delta := common.EulerYXZ(degToRad(degrees))
	t.mutate("RotateEulerYXZ", func(x *transform) { x.orientation = x.orientation.Mul(delta).Normalize() })
}

// RotateEulerXYZ applies a rotation of pitch (x), yaw (y) and roll (z) degrees in the
// node's local frame.
func (t TransformNode) RotateEulerXYZ(degrees mgl32.Vec3) {
	delta := common.EulerXYZ(degToRad(degrees))
	t.mutate("RotateEulerXYZ", func(x *transform) { x.orientation = x.orientation.Mul(delta).Normalize() })
}

// SetOrientationFromEulerYXZ replaces the orientation with yaw*pitch*roll given in degrees.
func (t TransformNode) SetOrientationFromEulerYXZ(degrees mgl32.Vec3) {
	q := common.EulerYXZ(degToRad(degrees))
	t.mutate("SetOrientationFromEulerYXZ", func(x *transform) { x.orientation = q })
}

// SetOrientationFromEulerXYZ replaces the orientation with pitch*yaw*roll given in degrees.
func (t TransformNode) SetOrientationFromEulerXYZ(degrees mgl32.Vec3) {
	q := common.EulerXYZ(degToRad(degrees))
	t.mutate("SetOrientationFromEulerXYZ", func(x *transform) { x.orientation = q })
}

// SetFromLocalTransform decomposes m into position, orientation and scale. Shear and
// projective components are dropped, so the operation is lossy for non-TRS matrices.
func (t TransformNode) SetFromLocalTransform(m mgl32.Mat4) {
	t.mutate("SetFromLocalTransform", func(x *transform) { x.setFromMatrix(m) })
}

// SetFromGlobalTransform sets the local transform so the node's global transform
// becomes m, under the same lossy decomposition as SetFromLocalTransform.
func (t TransformNode) SetFromGlobalTransform(m mgl32.Mat4) {
	slot, ok := t.slot()
	if !ok || t.g.slots[slot].xf == nil {
		staleHandle("SetFromGlobalTransform", t.id)
		return
	}
	local := t.g.parentWorldWithoutScale(slot).Inv().Mul4(m)
	t.g.slots[slot].xf.setFromMatrix(local)
	t.g.markTransformDirty(slot)
}

// LocalTransform returns translate*rotate*scale.
func (t TransformNode) LocalTransform() mgl32.Mat4 {
	if x := t.xf(); x != nil {
		local, _ := x.matrices()
		return local
	}
	return mgl32.Ident4()
}

// LocalTransformWithoutScale returns translate*rotate.
func (t TransformNode) LocalTransformWithoutScale() mgl32.Mat4 {
	if x := t.xf(); x != nil {
		_, noScale := x.matrices()
		return noScale
	}
	return mgl32.Ident4()
}

// PrevLocalTransform returns the local transform as it was before the last recomputation.
func (t TransformNode) PrevLocalTransform() mgl32.Mat4 {
	if x := t.xf(); x != nil {
		return x.prevLocal
	}
	return mgl32.Ident4()
}

// GlobalTransform returns the world transform: every transform ancestor's
// translate*rotate composed with this node's full local transform.
func (t TransformNode) GlobalTransform() mgl32.Mat4 {
	slot, ok := t.slot()
	if !ok || t.g.slots[slot].xf == nil {
		return mgl32.Ident4()
	}
	return t.g.world(slot)
}

// GlobalTransformWithoutScale returns the world translate*rotate.
func (t TransformNode) GlobalTransformWithoutScale() mgl32.Mat4 {
	slot, ok := t.slot()
	if !ok || t.g.slots[slot].xf == nil {
		return mgl32.Ident4()
	}
	return t.g.worldWithoutScale(slot)
}

// GlobalPosition returns the world-space position.
func (t TransformNode) GlobalPosition() mgl32.Vec3 {
	return t.GlobalTransformWithoutScale().Col(3).Vec3()
}

// NormalMatrix returns the matrix that transforms normals to world space. Scale is
// excluded, so it is the global transform without scale.
func (t TransformNode) NormalMatrix() mgl32.Mat4 {
	return t.GlobalTransformWithoutScale()
}

// Forward returns the local +Z axis rotated by the local orientation.
func (t TransformNode) Forward() mgl32.Vec3 {
	return t.Orientation().Rotate(mgl32.Vec3{0, 0, 1})
}

// Up returns the local +Y axis rotated by the local orientation.
func (t TransformNode) Up() mgl32.Vec3 {
	return t.Orientation().Rotate(mgl32.Vec3{0, 1, 0})
}

// Left returns the local +X axis rotated by the local orientation.
func (t TransformNode) Left() mgl32.Vec3 {
	return t.Orientation().Rotate(mgl32.Vec3{1, 0, 0})
}

// MeshNode is a handle to a mesh instance.
type MeshNode struct {
	TransformNode
}

func (m MeshNode) payload() *meshPayload {
	if p := m.node(); p != nil {
		return p.mesh
	}
	return nil
}

// Mesh returns the attached mesh, or nil.
func (m MeshNode) Mesh() mesh.Mesh {
	if p := m.payload(); p != nil {
		return p.mesh
	}
	return nil
}

// SetMesh attaches a mesh. The node's material-index buffer is recreated to match the
// new submesh count and the old buffer is released once the device is idle. The mesh
// stays owned by the caller, who may attach it again after detaching it.
//
// Parameters:
//   - msh: the mesh, or nil to detach
//
// Returns:
//   - error: error if the material-index buffer cannot be allocated
func (m MeshNode) SetMesh(msh mesh.Mesh) error {
	slot, ok := m.slot()
	if !ok {
		return fmt.Errorf("set mesh on %d: %w", m.id, ErrNodeNotFound)
	}
	return m.g.setMesh(slot, msh)
}

// MaterialOverride returns the material replacing every submesh's authored material, or nil.
func (m MeshNode) MaterialOverride() material.Material {
	if p := m.payload(); p != nil {
		return p.override
	}
	return nil
}

// SetMaterialOverride replaces every submesh's material. Pass nil to restore the authored materials.
// Materials hold no GPU resources and their textures are owned by the caller, so removing
// the node releases nothing on the material's behalf.
func (m MeshNode) SetMaterialOverride(mat material.Material) {
	p := m.node()
	if p == nil {
		staleHandle("SetMaterialOverride", m.id)
		return
	}
	if p.mesh.override == mat {
		return
	}
	p.mesh.override = mat
	p.hierarchyDirty = true
}

// Material returns the effective material of a submesh: the override if set, else the authored one.
func (m MeshNode) Material(submesh int) material.Material {
	p := m.payload()
	if p == nil {
		return nil
	}
	return p.effectiveMaterial(submesh)
}

// MaterialIndicesBuffer returns the per-instance buffer of (primitive offset, material slot)
// pairs, one per submesh, written by the registrar. Nil while no mesh is attached.
func (m MeshNode) MaterialIndicesBuffer() backend.Buffer {
	if p := m.payload(); p != nil {
		return p.materialIndices
	}
	return nil
}

func (p *meshPayload) effectiveMaterial(submesh int) material.Material {
	if p.override != nil {
		return p.override
	}
	if p.mesh == nil {
		return nil
	}
	return p.mesh.SubMeshMaterial(submesh)
}

// LightNode is a handle to a directional, spot or point light. Directional and spot
// lights shine along Forward.
type LightNode struct {
	TransformNode
}

func (l LightNode) payload() *lightPayload {
	if p := l.node(); p != nil {
		return p.light
	}
	return nil
}

// setParam applies f and flags the light record for rewriting.
func (l LightNode) setParam(op string, f func(*lightPayload)) {
	p := l.node()
	if p == nil || p.light == nil {
		staleHandle(op, l.id)
		return
	}
	f(p.light)
	p.paramsDirty = true
}

// Color returns the linear RGB color.
func (l LightNode) Color() mgl32.Vec3 {
	if p := l.payload(); p != nil {
		return p.color
	}
	return mgl32.Vec3{}
}

// SetColor sets the linear RGB color.
func (l LightNode) SetColor(c mgl32.Vec3) {
	l.setParam("SetColor", func(p *lightPayload) { p.color = c })
}

// Intensity returns the radiance scale.
func (l LightNode) Intensity() float32 {
	if p := l.payload(); p != nil {
		return p.intensity
	}
	return 0
}

// SetIntensity sets the radiance scale.
func (l LightNode) SetIntensity(i float32) {
	l.setParam("SetIntensity", func(p *lightPayload) { p.intensity = i })
}

// Radius returns the falloff radius, or the angular disc radius for directional lights.
func (l LightNode) Radius() float32 {
	if p := l.payload(); p != nil {
		return p.radius
	}
	return 0
}

// SetRadius sets the falloff radius.
func (l LightNode) SetRadius(r float32) {
	l.setParam("SetRadius", func(p *lightPayload) { p.radius = r })
}

// ConeAngles returns the inner and outer cone half-angles in degrees. Zero for non-spot lights.
func (l LightNode) ConeAngles() (float32, float32) {
	if p := l.payload(); p != nil {
		return p.innerDeg, p.outerDeg
	}
	return 0, 0
}

// SetConeAngles sets the spot cone half-angles in degrees. Ignored for other light kinds.
func (l LightNode) SetConeAngles(innerDeg, outerDeg float32) {
	if l.Kind() != KindSpotLight {
		return
	}
	l.setParam("SetConeAngles", func(p *lightPayload) {
		p.innerDeg = innerDeg
		p.outerDeg = outerDeg
	})
}

// CameraNode is a handle to a perspective camera. The camera looks down -Forward.
type CameraNode struct {
	TransformNode
}

func (c CameraNode) payload() *cameraPayload {
	if p := c.node(); p != nil {
		return p.camera
	}
	return nil
}

func (c CameraNode) set(op string, f func(*cameraPayload)) {
	p := c.payload()
	if p == nil {
		staleHandle(op, c.id)
		return
	}
	f(p)
}

// Fov returns the vertical field of view in degrees.
func (c CameraNode) Fov() float32 {
	if p := c.payload(); p != nil {
		return p.fovDeg
	}
	return 0
}

// SetFov sets the vertical field of view in degrees.
func (c CameraNode) SetFov(deg float32) {
	c.set("SetFov", func(p *cameraPayload) { p.fovDeg = deg })
}

// NearFar returns the clip distances.
func (c CameraNode) NearFar() (float32, float32) {
	if p := c.payload(); p != nil {
		return p.near, p.far
	}
	return 0, 0
}

// SetNearFar sets the clip distances.
func (c CameraNode) SetNearFar(near, far float32) {
	c.set("SetNearFar", func(p *cameraPayload) {
		p.near = near
		p.far = far
	})
}

// FocalLength returns the thin-lens focus distance.
func (c CameraNode) FocalLength() float32 {
	if p := c.payload(); p != nil {
		return p.focalLength
	}
	return 0
}

// SetFocalLength sets the thin-lens focus distance.
func (c CameraNode) SetFocalLength(f float32) {
	c.set("SetFocalLength", func(p *cameraPayload) { p.focalLength = f })
}

// ApertureRadius returns the thin-lens aperture radius.
func (c CameraNode) ApertureRadius() float32 {
	if p := c.payload(); p != nil {
		return p.apertureRadius
	}
	return 0
}

// SetApertureRadius sets the thin-lens aperture radius. Zero gives a pinhole camera.
func (c CameraNode) SetApertureRadius(r float32) {
	c.set("SetApertureRadius", func(p *cameraPayload) { p.apertureRadius = r })
}

// Projection returns the projection computed by the last traversal.
func (c CameraNode) Projection() mgl32.Mat4 {
	if p := c.payload(); p != nil {
		return p.projection
	}
	return mgl32.Ident4()
}

// View returns the view matrix computed by the last traversal.
func (c CameraNode) View() mgl32.Mat4 {
	if p := c.payload(); p != nil {
		return p.view
	}
	return mgl32.Ident4()
}

// CameraForward returns the viewing direction, the negated Forward axis.
func (c CameraNode) CameraForward() mgl32.Vec3 {
	return c.Forward().Mul(-1)
}

// CameraLeft returns the negated Left axis.
func (c CameraNode) CameraLeft() mgl32.Vec3 {
	return c.Left().Mul(-1)
}

// updateMatrices derives projection and view for the current viewport.
func (c CameraNode) updateMatrices(slot int32, viewport common.Extent2D) {
	p := c.g.slots[slot].camera
	p.projection = camera.Projection(p.fovDeg, viewport, p.near, p.far)
	p.view = camera.View(c.g.worldWithoutScale(slot))
}

// IBLNode is a handle to an image-based lighting probe. It has no transform.
type IBLNode struct {
	Node
}

// Image returns the environment cube map, or nil.
func (i IBLNode) Image() texture.Texture {
	if p := i.node(); p != nil && p.ibl != nil {
		return p.ibl.image
	}
	return nil
}

// SetImage sets the environment cube map. The image stays owned by the caller.
func (i IBLNode) SetImage(t texture.Texture) {
	slot, ok := i.slot()
	if !ok {
		staleHandle("SetImage", i.id)
		return
	}
	i.g.setImage(slot, t)
}

func degToRad(v mgl32.Vec3) mgl32.Vec3 {
	const k = math32.Pi / 180
	return mgl32.Vec3{v[0] * k, v[1] * k, v[2] * k}
}

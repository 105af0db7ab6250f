package scene

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
	"github.com/Carmen-Shannon/oxy-rt/engine/camera"
	"github.com/Carmen-Shannon/oxy-rt/engine/light"
	"github.com/Carmen-Shannon/oxy-rt/engine/mesh"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrNodeNotFound is returned when a handle or name does not resolve to a live node.
	ErrNodeNotFound = errors.New("scene: node not found")
	// ErrCycle is returned when attaching a node under itself or one of its descendants.
	ErrCycle = errors.New("scene: attaching node would create a cycle")
	// ErrAlreadyParented is returned when attaching a node that already has a parent.
	ErrAlreadyParented = errors.New("scene: node already has a parent")
	// ErrWrongScene is returned when a handle from another scene is passed in.
	ErrWrongScene = errors.New("scene: node belongs to another scene")
)

// graph is the node arena. Slots are reused through the free list; NodeIDs are not.
type graph struct {
	slots  []node
	free   []int32
	byID   map[NodeID]int32
	nextID NodeID

	backend  backend.Backend
	releases *releaseQueue
}

func newGraph(b backend.Backend, releases *releaseQueue) *graph {
	return &graph{
		byID:     make(map[NodeID]int32),
		backend:  b,
		releases: releases,
	}
}

// alloc creates a detached node of the given kind with its kind's defaults.
func (g *graph) alloc(name string, kind NodeKind) int32 {
	g.nextID++
	n := node{
		id:      g.nextID,
		name:    name,
		kind:    kind,
		enabled: true,
		parent:  noSlot,
	}
	if kind.HasTransform() {
		n.xf = newTransform()
	}
	switch kind {
	case KindMesh:
		n.mesh = &meshPayload{}
	case KindDirectionalLight:
		n.light = &lightPayload{color: mgl32.Vec3{1, 1, 1}, intensity: light.DefaultIntensity, radius: light.DefaultDirectionalRadius}
	case KindSpotLight:
		n.light = &lightPayload{
			color:     mgl32.Vec3{1, 1, 1},
			intensity: light.DefaultIntensity,
			radius:    light.DefaultSpotRadius,
			innerDeg:  light.DefaultSpotInnerConeDegrees,
			outerDeg:  light.DefaultSpotOuterConeDegrees,
		}
	case KindPointLight:
		n.light = &lightPayload{color: mgl32.Vec3{1, 1, 1}, intensity: light.DefaultIntensity, radius: light.DefaultPointRadius}
	case KindCamera:
		n.camera = &cameraPayload{
			fovDeg:         camera.DefaultFovDegrees,
			near:           camera.DefaultNear,
			far:            camera.DefaultFar,
			focalLength:    camera.DefaultFocalLength,
			apertureRadius: camera.DefaultApertureRadius,
			projection:     mgl32.Ident4(),
			view:           mgl32.Ident4(),
		}
	case KindIBL:
		n.ibl = &iblPayload{}
	}

	var slot int32
	if len(g.free) > 0 {
		slot = g.free[len(g.free)-1]
		g.free = g.free[:len(g.free)-1]
		g.slots[slot] = n
	} else {
		slot = int32(len(g.slots))
		g.slots = append(g.slots, n)
	}
	g.byID[n.id] = slot
	return slot
}

func (g *graph) lookup(id NodeID) (int32, bool) {
	slot, ok := g.byID[id]
	return slot, ok
}

func (g *graph) get(id NodeID) *node {
	slot, ok := g.byID[id]
	if !ok {
		return nil
	}
	return &g.slots[slot]
}

// addChild attaches the detached node child as the last child of parent.
func (g *graph) addChild(parent, child int32) error {
	if g.slots[child].parent != noSlot {
		return fmt.Errorf("attach %q: %w", g.slots[child].name, ErrAlreadyParented)
	}
	for p := parent; p != noSlot; p = g.slots[p].parent {
		if p == child {
			return fmt.Errorf("attach %q under %q: %w", g.slots[child].name, g.slots[parent].name, ErrCycle)
		}
	}
	if g.slots[child].kind == KindRoot {
		return fmt.Errorf("attach root %q: %w", g.slots[child].name, ErrCycle)
	}
	p := &g.slots[parent]
	p.children = append(p.children, child)
	p.hierarchyDirty = true
	g.slots[child].parent = parent
	// The global transform of the subtree now depends on new ancestors.
	g.markTransformDirty(child)
	return nil
}

// removeChild destroys the first direct child of parent named name and its subtree.
func (g *graph) removeChild(parent int32, name string) bool {
	p := &g.slots[parent]
	for i, c := range p.children {
		if g.slots[c].name != name {
			continue
		}
		p.children = append(p.children[:i], p.children[i+1:]...)
		p.hierarchyDirty = true
		g.destroy(c)
		return true
	}
	return false
}

// destroy runs the cleanup hook on every node of the subtree rooted at slot and frees the slots.
// Scene-owned GPU payloads are queued for deferred release, never released immediately.
// Meshes, material overrides and IBL images belong to the caller; the node only drops its reference.
func (g *graph) destroy(slot int32) {
	for _, c := range g.slots[slot].children {
		g.destroy(c)
	}
	n := &g.slots[slot]
	if n.mesh != nil && n.mesh.materialIndices != nil {
		g.releases.push(n.mesh.materialIndices)
	}
	common.Logger().Debug("scene: node destroyed", "id", n.id, "name", n.name, "kind", n.kind)
	delete(g.byID, n.id)
	g.slots[slot] = node{parent: noSlot}
	g.free = append(g.free, slot)
}

// destroyDetached destroys a node that was never attached. Attached nodes go through removeChild.
func (g *graph) destroyDetached(slot int32) {
	if g.slots[slot].parent != noSlot {
		return
	}
	g.destroy(slot)
}

// find returns the first descendant of slot, depth-first in child order, matching pred.
func (g *graph) find(slot int32, pred func(*node) bool) int32 {
	for _, c := range g.slots[slot].children {
		if pred(&g.slots[c]) {
			return c
		}
		if found := g.find(c, pred); found != noSlot {
			return found
		}
	}
	return noSlot
}

// setMesh swaps the mesh of a mesh node and recreates its material-index buffer.
func (g *graph) setMesh(slot int32, m mesh.Mesh) error {
	p := g.slots[slot].mesh
	if p.mesh == m {
		return nil
	}
	var indices backend.Buffer
	if m != nil {
		count := max(len(m.SubMeshes()), 1)
		buf, err := g.backend.CreateBuffer(backend.BufferDescriptor{
			Label:    fmt.Sprintf("%s material indices", g.slots[slot].name),
			Size:     uint64(count * GPUMaterialIndexSize),
			Usage:    backend.BufferUsageStorage | backend.BufferUsageDeviceAddress,
			Location: backend.MemoryHostToDevice,
		})
		if err != nil {
			return fmt.Errorf("scene: create material index buffer for %q: %w", g.slots[slot].name, err)
		}
		indices = buf
	}
	if p.materialIndices != nil {
		g.releases.push(p.materialIndices)
	}
	p.mesh = m
	p.materialIndices = indices
	g.slots[slot].hierarchyDirty = true
	return nil
}

func (g *graph) setImage(slot int32, t texture.Texture) {
	p := g.slots[slot].ibl
	if p.image == t {
		return
	}
	p.image = t
	g.slots[slot].hierarchyDirty = true
}

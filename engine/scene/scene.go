// Package scene holds the node graph of a ray-traced scene and synchronizes it with the
// GPU once per frame: traversal fills a RenderState, the registrar deduplicates meshes,
// materials and textures into bindless tables, and the top-level acceleration structure
// is built or refit from the visible mesh instances.
package scene

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
	"github.com/Carmen-Shannon/oxy-rt/engine/config"
	"github.com/Carmen-Shannon/oxy-rt/engine/light"
	"github.com/Carmen-Shannon/oxy-rt/engine/material"
	"github.com/Carmen-Shannon/oxy-rt/engine/profiler"
)

// ErrRootRemoval is returned by Scene.Remove for the current root. Use SetRoot instead.
var ErrRootRemoval = errors.New("scene: cannot remove the root node")

// Profiler scopes recorded by Update.
const (
	ScopeGather = "Gather Render State"
	ScopeUpload = "Upload GPU Resources"
)

// Scene owns a node graph and the GPU resources that mirror it.
//
// A Scene is single-writer: graph mutation and Update must happen on the same goroutine,
// and the renderer may read the bindings only after Update returns.
type Scene interface {
	// Name returns the name of the scene.
	//
	// Returns:
	//   - string: the scene name
	Name() string

	// Path returns the file the scene was loaded from, if any.
	//
	// Returns:
	//   - string: the path, or empty
	Path() string

	// Root returns the root node.
	//
	// Returns:
	//   - TransformNode: the root
	Root() TransformNode

	// SetRoot replaces the root. The old root's subtree is destroyed and its material-index
	// buffers are released once the device is idle.
	//
	// Parameters:
	//   - root: a detached node created with NewRoot
	//
	// Returns:
	//   - error: ErrNodeNotFound, ErrWrongScene or ErrAlreadyParented
	SetRoot(root TransformNode) error

	// NewRoot creates a detached root node for SetRoot.
	//
	// Parameters:
	//   - name: the node name
	//   - options: node options
	//
	// Returns:
	//   - TransformNode: the new node
	NewRoot(name string, options ...NodeBuilderOption) TransformNode

	// NewGroup creates a detached transform-only node.
	//
	// Parameters:
	//   - name: the node name
	//   - options: node options
	//
	// Returns:
	//   - TransformNode: the new node
	NewGroup(name string, options ...NodeBuilderOption) TransformNode

	// NewMesh creates a detached mesh instance. WithMesh attaches its mesh.
	//
	// Parameters:
	//   - name: the node name
	//   - options: node options
	//
	// Returns:
	//   - MeshNode: the new node
	//   - error: error if the material-index buffer cannot be allocated
	NewMesh(name string, options ...NodeBuilderOption) (MeshNode, error)

	// NewDirectionalLight creates a detached directional light shining along Forward.
	NewDirectionalLight(name string, options ...NodeBuilderOption) LightNode

	// NewSpotLight creates a detached spot light shining along Forward.
	NewSpotLight(name string, options ...NodeBuilderOption) LightNode

	// NewPointLight creates a detached point light.
	NewPointLight(name string, options ...NodeBuilderOption) LightNode

	// NewCamera creates a detached perspective camera.
	NewCamera(name string, options ...NodeBuilderOption) CameraNode

	// NewIBL creates a detached image-based lighting probe. WithImage sets its cube map.
	NewIBL(name string, options ...NodeBuilderOption) IBLNode

	// Remove destroys a node and its subtree, detaching it from its parent first.
	//
	// Parameters:
	//   - n: the node to destroy
	//
	// Returns:
	//   - error: ErrNodeNotFound, ErrWrongScene or ErrRootRemoval
	Remove(n Node) error

	// FindNode returns the root if it is named name, else the first descendant named name.
	//
	// Parameters:
	//   - name: the node name
	//
	// Returns:
	//   - Node: the match
	//   - bool: whether a match was found
	FindNode(name string) (Node, bool)

	// FindCamera returns the first camera, depth-first.
	//
	// Returns:
	//   - CameraNode: the camera
	//   - bool: whether a camera was found
	FindCamera() (CameraNode, bool)

	// ForceUpdate makes the next Update take the full re-registration path.
	ForceUpdate()

	// Update traverses the graph into state and synchronizes the GPU resources. state
	// must have been Setup for this frame.
	//
	// Parameters:
	//   - state: the frame's render state
	//
	// Returns:
	//   - error: ErrCapacityExceeded or a backend failure; the scene must be rebuilt
	Update(state *RenderState) error

	// Bindings returns the descriptor sets and TLAS of the scene. LightCount is the count
	// written by the last Update.
	//
	// Returns:
	//   - Bindings: the bindings
	Bindings() Bindings

	// LastBuildMode returns the mode of the most recent TLAS build and whether any build was recorded.
	LastBuildMode() (backend.BuildMode, bool)

	// Abandon reports that the commands recorded by the last Update were never submitted.
	// The next Update takes the full path and builds the TLAS from scratch, since the
	// device never received the recorded build.
	Abandon()

	// Release waits for the device, then releases every GPU resource the scene and its
	// nodes own. Meshes and images are left to their owner. The scene must not be used afterwards.
	Release()
}

type sceneSets struct {
	scene           backend.DescriptorSet
	vertexBuffers   backend.DescriptorSet
	indexBuffers    backend.DescriptorSet
	materialIndices backend.DescriptorSet
	textures        backend.DescriptorSet
}

func (s sceneSets) all() []backend.DescriptorSet {
	return []backend.DescriptorSet{s.scene, s.vertexBuffers, s.indexBuffers, s.materialIndices, s.textures}
}

// scene is the implementation of the Scene interface.
type scene struct {
	name string
	path string

	backend  backend.Backend
	graph    *graph
	root     int32
	releases *releaseQueue
	registry *registry

	capacity           config.Capacity
	releaseWorkers     int
	sky                SkyModel
	skyWarned          bool
	defaultEnvironment backend.Image
	ownsEnvironment    bool
	defaultMaterial    material.Material
	profiler           *profiler.Profiler

	forceUpdate bool

	materialBuffer backend.Buffer
	instanceBuffer backend.Buffer
	lightBuffer    backend.Buffer
	tlas           *tlasSync
	sets           sceneSets

	areaLights uint32
	lightCount uint32

	released bool
}

var _ Scene = &scene{}

// NewScene creates a scene with an empty root and allocates its GPU buffers, descriptor
// sets and top-level acceleration structure. The first Update always takes the full path.
//
// Parameters:
//   - b: the backend (must not be nil)
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
//   - error: error if a GPU resource cannot be created
func NewScene(b backend.Backend, name string, options ...SceneBuilderOption) (Scene, error) {
	if b == nil {
		panic("scene: NewScene requires a non-nil Backend")
	}
	s := &scene{
		name:           name,
		backend:        b,
		registry:       newRegistry(),
		capacity:       config.Default().Capacity,
		releaseWorkers: config.DefaultReleaseWorkers,
		forceUpdate:    true,
	}
	for _, option := range options {
		option(s)
	}
	if s.defaultMaterial == nil {
		s.defaultMaterial = material.NewMaterial(material.WithName("default"))
	}
	s.releases = newReleaseQueue(s.releaseWorkers)
	s.graph = newGraph(b, s.releases)
	s.root = s.graph.alloc("Root", KindRoot)

	if err := s.createResources(); err != nil {
		s.releaseResources()
		return nil, err
	}
	common.Logger().Info("scene: created", "name", name, "max_instances", s.capacity.MaxMeshInstances,
		"max_materials", s.capacity.MaxMaterials, "max_textures", s.capacity.MaxTextures, "max_lights", s.capacity.MaxLights)
	return s, nil
}

func (s *scene) createResources() error {
	var err error
	host := func(label string, size uint64) (backend.Buffer, error) {
		buf, err := s.backend.CreateBuffer(backend.BufferDescriptor{
			Label:    s.name + " " + label,
			Size:     size,
			Usage:    backend.BufferUsageStorage,
			Location: backend.MemoryHostToDevice,
		})
		if err != nil {
			return nil, fmt.Errorf("scene: create %s buffer: %w", label, err)
		}
		return buf, nil
	}
	var mat material.GPUMaterial
	var lgt light.GPULight
	if s.materialBuffer, err = host("material", uint64(s.capacity.MaxMaterials)*uint64(mat.Size())); err != nil {
		return err
	}
	if s.instanceBuffer, err = host("instance", uint64(s.capacity.MaxMeshInstances)*uint64(GPUInstanceSize)); err != nil {
		return err
	}
	if s.lightBuffer, err = host("light", uint64(s.capacity.MaxLights)*uint64(lgt.Size())); err != nil {
		return err
	}
	if s.tlas, err = newTLASSync(s.backend, s.name, s.capacity.MaxMeshInstances); err != nil {
		return err
	}

	if s.defaultEnvironment == nil {
		s.defaultEnvironment, err = s.backend.CreateImage(backend.ImageDescriptor{
			Label:  s.name + " default environment",
			Kind:   backend.ImageCube,
			Width:  1,
			Height: 1,
			Pixels: make([]byte, 6*4),
		})
		if err != nil {
			return fmt.Errorf("scene: create default environment: %w", err)
		}
		s.ownsEnvironment = true
	}

	set := func(label string, bindings ...backend.DescriptorBinding) (backend.DescriptorSet, error) {
		ds, err := s.backend.CreateDescriptorSet(backend.DescriptorSetDescriptor{Label: s.name + " " + label, Bindings: bindings})
		if err != nil {
			return nil, fmt.Errorf("scene: create %s descriptor set: %w", label, err)
		}
		return ds, nil
	}
	if s.sets.scene, err = set("scene",
		backend.DescriptorBinding{Binding: BindingMaterials, Kind: backend.DescriptorStorageBuffer, Count: 1},
		backend.DescriptorBinding{Binding: BindingInstances, Kind: backend.DescriptorStorageBuffer, Count: 1},
		backend.DescriptorBinding{Binding: BindingLights, Kind: backend.DescriptorStorageBuffer, Count: 1},
		backend.DescriptorBinding{Binding: BindingTLAS, Kind: backend.DescriptorAccelerationStructure, Count: 1},
		backend.DescriptorBinding{Binding: BindingEnvironment, Kind: backend.DescriptorSampledImage, Count: 1},
	); err != nil {
		return err
	}
	instances := s.capacity.MaxMeshInstances
	if s.sets.vertexBuffers, err = set("vertex buffers", backend.DescriptorBinding{Kind: backend.DescriptorStorageBuffer, Count: instances}); err != nil {
		return err
	}
	if s.sets.indexBuffers, err = set("index buffers", backend.DescriptorBinding{Kind: backend.DescriptorStorageBuffer, Count: instances}); err != nil {
		return err
	}
	if s.sets.materialIndices, err = set("material indices", backend.DescriptorBinding{Kind: backend.DescriptorStorageBuffer, Count: instances}); err != nil {
		return err
	}
	if s.sets.textures, err = set("textures", backend.DescriptorBinding{Kind: backend.DescriptorSampledImage, Count: s.capacity.MaxTextures}); err != nil {
		return err
	}

	// The scene set's buffers and TLAS never change, so they are written once.
	err = s.backend.UpdateDescriptorSets([]backend.DescriptorWrite{
		{Set: s.sets.scene, Binding: BindingMaterials, Buffers: []backend.Buffer{s.materialBuffer}},
		{Set: s.sets.scene, Binding: BindingInstances, Buffers: []backend.Buffer{s.instanceBuffer}},
		{Set: s.sets.scene, Binding: BindingLights, Buffers: []backend.Buffer{s.lightBuffer}},
		{Set: s.sets.scene, Binding: BindingTLAS, AccelerationStructure: s.tlas.as},
	})
	if err != nil {
		return fmt.Errorf("scene: write static descriptors: %w", err)
	}
	return nil
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Path() string {
	return s.path
}

func (s *scene) Root() TransformNode {
	return TransformNode{Node{g: s.graph, id: s.graph.slots[s.root].id}}
}

func (s *scene) SetRoot(root TransformNode) error {
	if root.g != s.graph {
		return ErrWrongScene
	}
	slot, ok := root.slot()
	if !ok {
		return fmt.Errorf("set root %d: %w", root.id, ErrNodeNotFound)
	}
	if slot == s.root {
		return nil
	}
	if s.graph.slots[slot].parent != noSlot {
		return fmt.Errorf("set root %q: %w", s.graph.slots[slot].name, ErrAlreadyParented)
	}
	s.graph.destroy(s.root)
	s.root = slot
	s.graph.slots[slot].hierarchyDirty = true
	s.graph.markTransformDirty(slot)
	return nil
}

func (s *scene) newNode(name string, kind NodeKind, options []NodeBuilderOption) (Node, *node) {
	slot := s.graph.alloc(name, kind)
	n := &s.graph.slots[slot]
	for _, option := range options {
		option(n)
	}
	return Node{g: s.graph, id: n.id}, n
}

func (s *scene) NewRoot(name string, options ...NodeBuilderOption) TransformNode {
	h, _ := s.newNode(name, KindRoot, options)
	return TransformNode{h}
}

func (s *scene) NewGroup(name string, options ...NodeBuilderOption) TransformNode {
	h, _ := s.newNode(name, KindGroup, options)
	return TransformNode{h}
}

func (s *scene) NewMesh(name string, options ...NodeBuilderOption) (MeshNode, error) {
	h, n := s.newNode(name, KindMesh, options)
	// WithMesh only records the mesh; attaching it allocates and counts references.
	m := n.mesh.mesh
	n.mesh.mesh = nil
	slot, _ := h.slot()
	if err := s.graph.setMesh(slot, m); err != nil {
		s.graph.destroyDetached(slot)
		return MeshNode{}, err
	}
	return MeshNode{TransformNode{h}}, nil
}

func (s *scene) NewDirectionalLight(name string, options ...NodeBuilderOption) LightNode {
	h, _ := s.newNode(name, KindDirectionalLight, options)
	return LightNode{TransformNode{h}}
}

func (s *scene) NewSpotLight(name string, options ...NodeBuilderOption) LightNode {
	h, _ := s.newNode(name, KindSpotLight, options)
	return LightNode{TransformNode{h}}
}

func (s *scene) NewPointLight(name string, options ...NodeBuilderOption) LightNode {
	h, _ := s.newNode(name, KindPointLight, options)
	return LightNode{TransformNode{h}}
}

func (s *scene) NewCamera(name string, options ...NodeBuilderOption) CameraNode {
	h, _ := s.newNode(name, KindCamera, options)
	return CameraNode{TransformNode{h}}
}

func (s *scene) NewIBL(name string, options ...NodeBuilderOption) IBLNode {
	h, n := s.newNode(name, KindIBL, options)
	img := n.ibl.image
	n.ibl.image = nil
	slot, _ := h.slot()
	s.graph.setImage(slot, img)
	return IBLNode{h}
}

func (s *scene) Remove(n Node) error {
	if n.g != s.graph {
		return ErrWrongScene
	}
	slot, ok := n.slot()
	if !ok {
		return fmt.Errorf("remove %d: %w", n.id, ErrNodeNotFound)
	}
	if slot == s.root {
		return ErrRootRemoval
	}
	g := s.graph
	if p := g.slots[slot].parent; p != noSlot {
		parent := &g.slots[p]
		for i, c := range parent.children {
			if c == slot {
				parent.children = append(parent.children[:i], parent.children[i+1:]...)
				break
			}
		}
		parent.hierarchyDirty = true
	}
	g.destroy(slot)
	return nil
}

func (s *scene) FindNode(name string) (Node, bool) {
	root := s.Root().Node
	if s.graph.slots[s.root].name == name {
		return root, true
	}
	return root.FindChild(name)
}

func (s *scene) FindCamera() (CameraNode, bool) {
	root := s.Root().Node
	if cam, ok := root.AsCamera(); ok {
		return cam, true
	}
	n, ok := root.FindChildKind(KindCamera)
	if !ok {
		return CameraNode{}, false
	}
	return n.AsCamera()
}

func (s *scene) ForceUpdate() {
	s.forceUpdate = true
}

func (s *scene) Bindings() Bindings {
	return Bindings{
		Scene:           s.sets.scene,
		VertexBuffers:   s.sets.vertexBuffers,
		IndexBuffers:    s.sets.indexBuffers,
		MaterialIndices: s.sets.materialIndices,
		Textures:        s.sets.textures,
		TLAS:            s.tlas.as,
		LightCount:      s.lightCount,
	}
}

func (s *scene) LastBuildMode() (backend.BuildMode, bool) {
	return s.tlas.lastMode, s.tlas.built
}

func (s *scene) Abandon() {
	s.forceUpdate = true
	s.tlas.invalidate()
	common.Logger().Debug("scene: frame abandoned", "scene", s.name)
}

func (s *scene) Update(state *RenderState) error {
	if s.released {
		return backend.ErrReleased
	}

	s.profiler.BeginScope(ScopeGather)
	s.graph.visit(s.root, state)
	// Pending releases wait for the idle point of a full pass.
	if s.forceUpdate || s.releases.Len() > 0 {
		state.structureChanged = true
		s.forceUpdate = false
	}
	state.resolveState()
	s.updateSky(state)
	s.profiler.EndScope(ScopeGather)

	s.profiler.BeginScope(ScopeUpload)
	err := s.upload(state)
	s.profiler.EndScope(ScopeUpload)
	if err != nil {
		// Tables may be half written; the next frame starts over from a full pass.
		s.forceUpdate = true
		return err
	}
	state.Bindings = s.Bindings()
	return nil
}

// updateSky regenerates the sky when it is the environment: directional lights and no probe image.
func (s *scene) updateSky(state *RenderState) {
	if state.IBL.Image() != nil || len(state.DirectionalLights) == 0 {
		return
	}
	if s.sky == nil {
		if !s.skyWarned {
			common.Logger().Warn("scene: directional lights without a sky model, using the default environment", "scene", s.name)
			s.skyWarned = true
		}
		return
	}
	s.sky.Update(state.Cmd, state.DirectionalLights[0].Forward().Mul(-1))
}

func (s *scene) upload(state *RenderState) error {
	if state.State == SceneStateHierarchyUpdated {
		// Tables and payloads may still be read by frames in flight.
		if err := s.backend.WaitIdle(); err != nil {
			return fmt.Errorf("scene: wait idle: %w", err)
		}
		s.releases.drain()
		if err := s.register(state); err != nil {
			return err
		}
	}
	if state.State != SceneStateReady {
		if err := s.writeLights(state); err != nil {
			return err
		}
	}
	s.writeInstances(state)
	if state.State != SceneStateReady {
		mode := s.tlas.record(state.Cmd, uint32(len(state.Meshes)))
		common.Logger().Debug("scene: tlas recorded", "mode", mode, "instances", len(state.Meshes), "state", state.State)
	}
	return nil
}

func (s *scene) Release() {
	if s.released {
		return
	}
	s.released = true
	if err := s.backend.WaitIdle(); err != nil {
		common.Logger().Warn("scene: wait idle before release failed", "scene", s.name, "err", err)
	}
	// Detached nodes were never attached under the root, so every tree is destroyed.
	g := s.graph
	var roots []int32
	for _, slot := range g.byID {
		if g.slots[slot].parent == noSlot {
			roots = append(roots, slot)
		}
	}
	for _, slot := range roots {
		g.destroy(slot)
	}
	s.releases.drain()
	s.releaseResources()
	common.Logger().Info("scene: released", "name", s.name)
}

func (s *scene) releaseResources() {
	for _, ds := range s.sets.all() {
		if ds != nil {
			ds.Release()
		}
	}
	if s.tlas != nil {
		s.tlas.release()
	}
	for _, buf := range []backend.Buffer{s.lightBuffer, s.instanceBuffer, s.materialBuffer} {
		if buf != nil {
			buf.Release()
		}
	}
	if s.ownsEnvironment && s.defaultEnvironment != nil {
		s.defaultEnvironment.Release()
	}
}

package scene

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-rt/engine/light"
	"github.com/Carmen-Shannon/oxy-rt/engine/material"
	"github.com/Carmen-Shannon/oxy-rt/engine/mesh"
	"github.com/Carmen-Shannon/oxy-rt/engine/profiler"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lightType(buf []byte, i int) light.LightType {
	return light.LightType(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*64:])))
}

func TestNewSceneWritesStaticDescriptors(t *testing.T) {
	b, s := newTestScene(t)

	require.Len(t, b.WriteBatches, 1)
	assert.Len(t, b.WriteBatches[0], 4)
	assert.Len(t, b.DescriptorSets, 5)
	set := s.Bindings().Scene.(*backendtest.DescriptorSet)
	assert.Equal(t, s.Bindings().TLAS, set.Bindings[BindingTLAS][0])
	assert.Equal(t, uint64(1024*GPUInstanceSize), sceneBuffer(t, s, BindingInstances).Size())
	assert.Equal(t, uint64(4096*80), sceneBuffer(t, s, BindingMaterials).Size())
	assert.Equal(t, uint64(100000*64), sceneBuffer(t, s, BindingLights).Size())
}

func TestNewSceneWrapsBackendFailure(t *testing.T) {
	b := backendtest.New()
	b.FailCreateBuffer = assert.AnError
	_, err := NewScene(b, "broken")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDeduplicatesMeshes(t *testing.T) {
	b, s := newTestScene(t)
	meshA := quad(t, b, "A", nil)
	meshB := quad(t, b, "B", nil)
	addMesh(t, s, s.Root().Node, "a1", meshA)
	addMesh(t, s, s.Root().Node, "a2", meshA)
	addMesh(t, s, s.Root().Node, "b", meshB)

	state := frame(t, b, s)
	require.Len(t, state.Meshes, 3)
	assert.Equal(t, SceneStateHierarchyUpdated, state.State)

	bindings := s.Bindings()
	assert.Equal(t, 2, tableLen(bindings.VertexBuffers))
	assert.Equal(t, 2, tableLen(bindings.IndexBuffers))
	assert.Equal(t, 3, tableLen(bindings.MaterialIndices))
	assert.Equal(t, meshA.VertexBuffer(), bindings.VertexBuffers.(*backendtest.DescriptorSet).Bindings[0][0])
	assert.Equal(t, meshB.IndexBuffer(), bindings.IndexBuffers.(*backendtest.DescriptorSet).Bindings[0][1])

	records := sceneBuffer(t, s, BindingInstances).Bytes()
	for i, want := range []uint32{0, 0, 1} {
		assert.Equal(t, want, binary.LittleEndian.Uint32(records[i*GPUInstanceSize+128:]), "instance %d", i)
	}
}

func TestSecondPassIsIdempotent(t *testing.T) {
	b, s := newTestScene(t)
	red := material.NewMaterial(material.WithName("red"), material.WithAlbedo([4]float32{1, 0, 0, 1}))
	meshA := quad(t, b, "A", nil, red)
	meshB := quad(t, b, "B", nil)
	addMesh(t, s, s.Root().Node, "a1", meshA, WithPosition(mgl32.Vec3{1, 0, 0}))
	addMesh(t, s, s.Root().Node, "a2", meshA)
	addMesh(t, s, s.Root().Node, "b", meshB)

	frame(t, b, s)
	instances := bytes.Clone(sceneBuffer(t, s, BindingInstances).Bytes()[:3*GPUInstanceSize])
	materials := bytes.Clone(sceneBuffer(t, s, BindingMaterials).Bytes()[:2*80])
	writes := b.DescriptorWriteCount()

	state := frame(t, b, s)
	assert.Equal(t, SceneStateReady, state.State)
	assert.Equal(t, instances, sceneBuffer(t, s, BindingInstances).Bytes()[:3*GPUInstanceSize])
	assert.Equal(t, writes, b.DescriptorWriteCount())
	assert.Empty(t, commandsOf(b, backendtest.CommandBuild))

	// A forced full pass re-derives the same slots and writes nothing.
	s.ForceUpdate()
	state = frame(t, b, s)
	assert.Equal(t, SceneStateHierarchyUpdated, state.State)
	assert.Equal(t, instances, sceneBuffer(t, s, BindingInstances).Bytes()[:3*GPUInstanceSize])
	assert.Equal(t, materials, sceneBuffer(t, s, BindingMaterials).Bytes()[:2*80])
	assert.Equal(t, writes, b.DescriptorWriteCount())
}

func TestMaterialOverrideAndTextures(t *testing.T) {
	b, s := newTestScene(t)
	img, err := b.CreateImage(backend.ImageDescriptor{Label: "albedo", Kind: backend.Image2D, Width: 1, Height: 1})
	require.NoError(t, err)
	albedo := texture.NewTexture(img, texture.WithName("albedo"))
	textured := material.NewMaterial(material.WithAlbedoTexture(albedo), material.WithNormalTexture(albedo))
	plain := material.NewMaterial()

	m := quad(t, b, "m", []mesh.SubMesh{
		{MaterialIndex: 0, BaseIndex: 0, IndexCount: 3},
		{MaterialIndex: 0, BaseIndex: 3, IndexCount: 3},
	}, plain)
	n := addMesh(t, s, s.Root().Node, "n", m, WithMaterialOverride(textured))

	frame(t, b, s)
	assert.Equal(t, textured, n.Material(1))
	assert.Equal(t, 1, tableLen(s.Bindings().Textures))

	mats := sceneBuffer(t, s, BindingMaterials).Bytes()
	assert.Equal(t, int32(0), int32(binary.LittleEndian.Uint32(mats[0:])))
	assert.Equal(t, int32(0), int32(binary.LittleEndian.Uint32(mats[4:])))
	assert.Equal(t, material.NoTexture, int32(binary.LittleEndian.Uint32(mats[8:])))

	pairs := n.MaterialIndicesBuffer().Mapped()
	assert.Equal(t, []uint32{0, 0, 1, 0}, []uint32{
		binary.LittleEndian.Uint32(pairs[0:]),
		binary.LittleEndian.Uint32(pairs[4:]),
		binary.LittleEndian.Uint32(pairs[8:]),
		binary.LittleEndian.Uint32(pairs[12:]),
	})

	n.SetMaterialOverride(nil)
	state := frame(t, b, s)
	assert.Equal(t, SceneStateHierarchyUpdated, state.State)
	assert.Equal(t, plain, n.Material(1))
}

func TestAreaLightPerEmissiveSubmesh(t *testing.T) {
	b, s := newTestScene(t)
	glow := material.NewMaterial(material.WithName("glow"), material.WithEmissive([3]float32{1, 1, 1}, 5))
	plain := material.NewMaterial(material.WithName("plain"))
	m := quad(t, b, "m", []mesh.SubMesh{
		{MaterialIndex: 0, BaseIndex: 0, IndexCount: 3},
		{MaterialIndex: 1, BaseIndex: 3, IndexCount: 3},
	}, plain, glow)
	addMesh(t, s, s.Root().Node, "first", m)
	addMesh(t, s, s.Root().Node, "second", m)

	state := frame(t, b, s)
	assert.Equal(t, uint32(2), state.Bindings.LightCount)

	lights := sceneBuffer(t, s, BindingLights).Bytes()
	for i := range 2 {
		var rec light.GPULight
		for j := range 4 {
			rec.Data0[j] = math.Float32frombits(binary.LittleEndian.Uint32(lights[i*64+j*4:]))
			rec.Data1[j] = math.Float32frombits(binary.LittleEndian.Uint32(lights[i*64+16+j*4:]))
		}
		require.Equal(t, light.LightTypeArea, rec.Type())
		instance, slot, offset, count := rec.AreaFields()
		assert.Equal(t, uint32(i), instance)
		assert.Equal(t, uint32(1), slot)
		assert.Equal(t, uint32(1), offset)
		assert.Equal(t, uint32(1), count)
	}
}

func TestNoEmissiveMaterialsNoLightsWithProbe(t *testing.T) {
	b, s := newTestScene(t)
	img, err := b.CreateImage(backend.ImageDescriptor{Label: "env", Kind: backend.ImageCube, Width: 1, Height: 1})
	require.NoError(t, err)
	probe := s.NewIBL("probe", WithImage(texture.NewTexture(img)))
	require.NoError(t, s.Root().AddChild(probe.Node))
	addMesh(t, s, s.Root().Node, "m", quad(t, b, "m", nil))

	state := frame(t, b, s)
	assert.Equal(t, uint32(1), state.Bindings.LightCount)
	assert.Equal(t, light.LightTypeEnvironmentMap, lightType(sceneBuffer(t, s, BindingLights).Bytes(), 0))
	assert.Equal(t, probe.ID(), state.IBL.ID())

	set := s.Bindings().Scene.(*backendtest.DescriptorSet)
	assert.Equal(t, img, set.Bindings[BindingEnvironment][0])
}

func TestEmptySceneHasNoLights(t *testing.T) {
	b, s := newTestScene(t)
	state := frame(t, b, s)
	assert.Zero(t, state.Bindings.LightCount)

	// The default environment is bound when neither a probe nor the sky applies.
	set := s.Bindings().Scene.(*backendtest.DescriptorSet)
	require.Len(t, set.Bindings[BindingEnvironment], 1)
	assert.Equal(t, backend.ImageCube, set.Bindings[BindingEnvironment][0].(backend.Image).Kind())
}

type recordingSky struct {
	cubemap backend.Image
	suns    []mgl32.Vec3
}

func (r *recordingSky) Update(_ backend.CommandRecorder, sun mgl32.Vec3) { r.suns = append(r.suns, sun) }
func (r *recordingSky) Cubemap() backend.Image                            { return r.cubemap }

func TestLightOrderAndSky(t *testing.T) {
	b := backendtest.New()
	skyImage, err := b.CreateImage(backend.ImageDescriptor{Label: "sky", Kind: backend.ImageCube})
	require.NoError(t, err)
	sky := &recordingSky{cubemap: skyImage}
	s, err := NewScene(b, "lit", WithSkyModel(sky))
	require.NoError(t, err)

	root := s.Root()
	spot := s.NewSpotLight("spot", WithPosition(mgl32.Vec3{0, 3, 0}), WithConeAngles(30, 60))
	point := s.NewPointLight("point", WithPosition(mgl32.Vec3{1, 2, 3}), WithIntensity(4))
	sun := s.NewDirectionalLight("sun", WithColor(mgl32.Vec3{1, 0.5, 0.25}))
	for _, n := range []Node{spot.Node, point.Node, sun.Node} {
		require.NoError(t, root.AddChild(n))
	}

	state := frame(t, b, s)
	assert.Equal(t, uint32(4), state.Bindings.LightCount)
	lights := sceneBuffer(t, s, BindingLights).Bytes()
	assert.Equal(t, light.LightTypeEnvironmentMap, lightType(lights, 0))
	assert.Equal(t, light.LightTypeDirectional, lightType(lights, 1))
	assert.Equal(t, light.LightTypePoint, lightType(lights, 2))
	assert.Equal(t, light.LightTypeSpot, lightType(lights, 3))

	pointRec := light.NewPoint(mgl32.Vec3{1, 1, 1}, 4, mgl32.Vec3{1, 2, 3}, light.DefaultPointRadius)
	want := make([]byte, 64)
	pointRec.Marshal(want)
	assert.Equal(t, want, lights[2*64:3*64])

	require.Len(t, sky.suns, 1)
	approxVec(t, mgl32.Vec3{0, 0, -1}, sky.suns[0], 1e-5)
	set := s.Bindings().Scene.(*backendtest.DescriptorSet)
	assert.Equal(t, skyImage, set.Bindings[BindingEnvironment][0])

	// A parameter change rewrites the light record and refits.
	point.SetIntensity(8)
	state = frame(t, b, s)
	assert.Equal(t, SceneStateTransformsUpdated, state.State)
	assert.Equal(t, float32(8), math.Float32frombits(binary.LittleEndian.Uint32(lights[2*64+28:])))
}

func TestRemovedNodeAbsentFromNextFrame(t *testing.T) {
	b, s := newTestScene(t)
	m := quad(t, b, "m", nil)
	addMesh(t, s, s.Root().Node, "keep", quad(t, b, "other", nil))
	removed := addMesh(t, s, s.Root().Node, "gone", m)
	frame(t, b, s)
	indices := removed.MaterialIndicesBuffer().(*backendtest.Buffer)

	require.NoError(t, s.Root().RemoveChild("gone"))
	// Nothing is released until the device is idle.
	assert.False(t, indices.Released())
	assert.False(t, m.VertexBuffer().(*backendtest.Buffer).Released())

	idle := b.WaitIdleCalls
	state := frame(t, b, s)
	require.Len(t, state.Meshes, 1)
	assert.Equal(t, "keep", state.Meshes[0].Name())
	assert.Equal(t, SceneStateHierarchyUpdated, state.State)
	assert.Equal(t, idle+1, b.WaitIdleCalls)
	assert.True(t, indices.Released())
	assert.False(t, m.VertexBuffer().(*backendtest.Buffer).Released())
}

func TestRemovedMeshCanBeAttachedAgain(t *testing.T) {
	b, s := newTestScene(t)
	meshA := quad(t, b, "A", nil)
	first := addMesh(t, s, s.Root().Node, "a1", meshA)
	frame(t, b, s)
	firstIndices := first.MaterialIndicesBuffer().(*backendtest.Buffer)

	require.NoError(t, s.Root().RemoveChild("a1"))
	state := frame(t, b, s)
	require.Empty(t, state.Meshes)
	assert.True(t, firstIndices.Released())

	second := addMesh(t, s, s.Root().Node, "a2", meshA)
	state = frame(t, b, s)
	require.Len(t, state.Meshes, 1)

	vbo := s.Bindings().VertexBuffers.(*backendtest.DescriptorSet).Bindings[0][0].(*backendtest.Buffer)
	ibo := s.Bindings().IndexBuffers.(*backendtest.DescriptorSet).Bindings[0][0].(*backendtest.Buffer)
	assert.Equal(t, meshA.VertexBuffer(), backend.Buffer(vbo))
	assert.False(t, vbo.Released())
	assert.False(t, ibo.Released())
	assert.False(t, meshA.AccelerationStructure().(*backendtest.AccelerationStructure).Released())

	indices := s.Bindings().MaterialIndices.(*backendtest.DescriptorSet).Bindings[0][0].(*backendtest.Buffer)
	assert.Equal(t, second.MaterialIndicesBuffer(), backend.Buffer(indices))
	assert.False(t, indices.Released())

	builds := commandsOf(b, backendtest.CommandBuild)
	require.Len(t, builds, 1)
	assert.Equal(t, uint32(1), builds[0].Build.InstanceCount)
	records := sceneBuffer(t, s, BindingInstances).Bytes()
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(records[128:]))
}

func TestSharedMeshSurvivesPartialRemoval(t *testing.T) {
	b, s := newTestScene(t)
	m := quad(t, b, "m", nil)
	addMesh(t, s, s.Root().Node, "one", m)
	addMesh(t, s, s.Root().Node, "two", m)
	frame(t, b, s)

	require.NoError(t, s.Root().RemoveChild("one"))
	frame(t, b, s)
	assert.False(t, m.VertexBuffer().(*backendtest.Buffer).Released())

	// Removing the last user and re-attaching before the next frame keeps it alive.
	require.NoError(t, s.Root().RemoveChild("two"))
	addMesh(t, s, s.Root().Node, "three", m)
	frame(t, b, s)
	assert.False(t, m.VertexBuffer().(*backendtest.Buffer).Released())
}

func TestSetMeshReplacesMaterialIndexBuffer(t *testing.T) {
	b, s := newTestScene(t)
	first := quad(t, b, "first", nil)
	second := quad(t, b, "second", []mesh.SubMesh{
		{BaseIndex: 0, IndexCount: 3},
		{BaseIndex: 3, IndexCount: 3},
	})
	n := addMesh(t, s, s.Root().Node, "n", first)
	frame(t, b, s)
	old := n.MaterialIndicesBuffer().(*backendtest.Buffer)

	require.NoError(t, n.SetMesh(second))
	assert.Equal(t, uint64(2*GPUMaterialIndexSize), n.MaterialIndicesBuffer().Size())
	frame(t, b, s)
	assert.True(t, old.Released())
	assert.False(t, first.VertexBuffer().(*backendtest.Buffer).Released())
}

func TestSetMeshAllocationFailure(t *testing.T) {
	b, s := newTestScene(t)
	n, err := s.NewMesh("n")
	require.NoError(t, err)
	b.FailCreateBuffer = assert.AnError
	assert.ErrorIs(t, n.SetMesh(quadNoFail(t, b)), assert.AnError)
	assert.Nil(t, n.Mesh())
}

// quadNoFail uploads a mesh while preserving a pending FailCreateBuffer.
func quadNoFail(t *testing.T, b *backendtest.Backend) mesh.Mesh {
	pending := b.FailCreateBuffer
	b.FailCreateBuffer = nil
	m := quad(t, b, "q", nil)
	b.FailCreateBuffer = pending
	return m
}

func TestCapacityExceeded(t *testing.T) {
	t.Run("instances", func(t *testing.T) {
		b, s := newTestScene(t, WithMaxMeshInstances(1))
		m := quad(t, b, "m", nil)
		addMesh(t, s, s.Root().Node, "a", m)
		addMesh(t, s, s.Root().Node, "b", m)
		_, err := tryFrame(b, s)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	})
	t.Run("materials", func(t *testing.T) {
		b, s := newTestScene(t, WithMaxMaterials(1))
		addMesh(t, s, s.Root().Node, "a", quad(t, b, "a", nil, material.NewMaterial()))
		addMesh(t, s, s.Root().Node, "b", quad(t, b, "b", nil, material.NewMaterial()))
		_, err := tryFrame(b, s)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	})
	t.Run("textures", func(t *testing.T) {
		b, s := newTestScene(t, WithMaxTextures(1))
		img1, _ := b.CreateImage(backend.ImageDescriptor{Label: "1"})
		img2, _ := b.CreateImage(backend.ImageDescriptor{Label: "2"})
		mat := material.NewMaterial(
			material.WithAlbedoTexture(texture.NewTexture(img1)),
			material.WithNormalTexture(texture.NewTexture(img2)),
		)
		addMesh(t, s, s.Root().Node, "a", quad(t, b, "a", nil, mat))
		_, err := tryFrame(b, s)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	})
	t.Run("lights", func(t *testing.T) {
		b, s := newTestScene(t, WithMaxLights(1))
		require.NoError(t, s.Root().AddChild(s.NewPointLight("p1").Node))
		require.NoError(t, s.Root().AddChild(s.NewPointLight("p2").Node))
		_, err := tryFrame(b, s)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	})
}

func TestFailedFrameRetriesFullPass(t *testing.T) {
	b, s := newTestScene(t, WithMaxMeshInstances(1))
	m := quad(t, b, "m", nil)
	addMesh(t, s, s.Root().Node, "a", m)
	addMesh(t, s, s.Root().Node, "b", m)
	_, err := tryFrame(b, s)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	require.NoError(t, s.Root().RemoveChild("b"))
	state := frame(t, b, s)
	assert.Equal(t, SceneStateHierarchyUpdated, state.State)
	assert.Len(t, state.Meshes, 1)
}

func TestAbandonedFrameRebuildsTLAS(t *testing.T) {
	b, s := newTestScene(t)
	n := addMesh(t, s, s.Root().Node, "n", quad(t, b, "m", nil))
	frame(t, b, s)

	// Record a refit, then drop the recorder instead of submitting it.
	n.Move(mgl32.Vec3{1, 0, 0})
	cmd, err := b.BeginCommands()
	require.NoError(t, err)
	state := NewRenderState()
	state.Setup(testViewport, cmd)
	require.NoError(t, s.Update(state))
	mode, _ := s.LastBuildMode()
	require.Equal(t, backend.BuildModeUpdate, mode)
	cmd.Discard()
	s.Abandon()

	_, built := s.LastBuildMode()
	assert.False(t, built)
	state = frame(t, b, s)
	assert.Equal(t, SceneStateHierarchyUpdated, state.State)
	builds := commandsOf(b, backendtest.CommandBuild)
	require.Len(t, builds, 1)
	assert.Equal(t, backend.BuildModeBuild, builds[0].Build.Mode)

	n.Move(mgl32.Vec3{1, 0, 0})
	frame(t, b, s)
	builds = commandsOf(b, backendtest.CommandBuild)
	require.Len(t, builds, 1)
	assert.Equal(t, backend.BuildModeUpdate, builds[0].Build.Mode)
}

func TestUpdateFlushesWrittenRanges(t *testing.T) {
	b, s := newTestScene(t)
	m := quad(t, b, "m", nil)
	addMesh(t, s, s.Root().Node, "a", m)
	addMesh(t, s, s.Root().Node, "b", m)
	require.NoError(t, s.Root().AddChild(s.NewPointLight("lamp").Node))

	cmd, err := b.BeginCommands()
	require.NoError(t, err)
	state := NewRenderState()
	state.Setup(testViewport, cmd)
	require.NoError(t, s.Update(state))

	lo, hi := sceneBuffer(t, s, BindingInstances).Flushed()
	assert.Equal(t, uint64(0), lo)
	assert.Equal(t, uint64(2*GPUInstanceSize), hi)
	lo, hi = sceneBuffer(t, s, BindingLights).Flushed()
	assert.Equal(t, uint64(0), lo)
	assert.Equal(t, uint64(64), hi)
	lo, hi = sceneBuffer(t, s, BindingMaterials).Flushed()
	assert.Equal(t, uint64(0), lo)
	assert.Equal(t, uint64(80), hi)

	require.NoError(t, b.Submit(cmd))
	lo, hi = sceneBuffer(t, s, BindingInstances).Flushed()
	assert.Equal(t, lo, hi)
}

func TestBuildModeTransitions(t *testing.T) {
	b, s := newTestScene(t)
	m := quad(t, b, "m", nil)
	first := addMesh(t, s, s.Root().Node, "first", m)

	_, built := s.LastBuildMode()
	assert.False(t, built)

	frame(t, b, s)
	builds := commandsOf(b, backendtest.CommandBuild)
	require.Len(t, builds, 1)
	assert.Equal(t, backend.BuildModeBuild, builds[0].Build.Mode)
	assert.Equal(t, uint32(1), builds[0].Build.InstanceCount)

	// Nothing changed: no GPU work for the TLAS.
	frame(t, b, s)
	assert.Empty(t, commandsOf(b, backendtest.CommandBuild))
	assert.Empty(t, commandsOf(b, backendtest.CommandCopy))

	// Transform only: refit.
	first.Move(mgl32.Vec3{0, 1, 0})
	state := frame(t, b, s)
	assert.Equal(t, SceneStateTransformsUpdated, state.State)
	builds = commandsOf(b, backendtest.CommandBuild)
	require.Len(t, builds, 1)
	assert.Equal(t, backend.BuildModeUpdate, builds[0].Build.Mode)

	// Structural change with the same instance count: refit.
	first.SetMaterialOverride(material.NewMaterial())
	state = frame(t, b, s)
	assert.Equal(t, SceneStateHierarchyUpdated, state.State)
	mode, _ := s.LastBuildMode()
	assert.Equal(t, backend.BuildModeUpdate, mode)

	// Instance count changed: rebuild.
	addMesh(t, s, s.Root().Node, "second", m)
	frame(t, b, s)
	mode, _ = s.LastBuildMode()
	assert.Equal(t, backend.BuildModeBuild, mode)

	first.SetEnabled(false)
	state = frame(t, b, s)
	assert.Len(t, state.Meshes, 1)
	mode, _ = s.LastBuildMode()
	assert.Equal(t, backend.BuildModeBuild, mode)
}

func TestTLASCommandOrderAndInstanceRecords(t *testing.T) {
	b, s := newTestScene(t)
	m := quad(t, b, "m", nil)
	addMesh(t, s, s.Root().Node, "n", m, WithPosition(mgl32.Vec3{1, 2, 3}))
	frame(t, b, s)

	cmds := b.Submitted[len(b.Submitted)-1]
	require.Len(t, cmds, 4)
	assert.Equal(t, backendtest.CommandCopy, cmds[0].Kind)
	assert.Equal(t, backendtest.CommandBarrier, cmds[1].Kind)
	assert.Equal(t, backend.AccessTransferWrite, cmds[1].Barrier.SrcAccess)
	assert.Equal(t, backend.StageAccelerationStructureBuild, cmds[1].Barrier.DstStage)
	assert.Equal(t, backendtest.CommandBuild, cmds[2].Kind)
	assert.Equal(t, backendtest.CommandBarrier, cmds[3].Kind)
	assert.Equal(t, backend.AccessAccelerationStructureWrite, cmds[3].Barrier.SrcAccess)
	assert.NotZero(t, cmds[3].Barrier.DstStage&backend.StageRayTracingShader)

	assert.Equal(t, uint64(GPUTLASInstanceSize), cmds[0].CopySize)
	record := cmds[2].Build.Instances.(*backendtest.Buffer).Bytes()[:GPUTLASInstanceSize]
	f := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(record[i*4:])) }
	assert.Equal(t, []float32{1, 2, 3}, []float32{f(3), f(7), f(11)})
	assert.Equal(t, uint32(0xFF)<<24, binary.LittleEndian.Uint32(record[48:]))
	assert.Equal(t, TLASInstanceTriangleFacingCullDisable<<24, binary.LittleEndian.Uint32(record[52:]))
	assert.Equal(t, m.AccelerationStructure().DeviceAddress(), binary.LittleEndian.Uint64(record[56:]))
}

func TestCameraAndProbeSelection(t *testing.T) {
	b, s := newTestScene(t)
	first := s.NewCamera("first", WithEnabled(false))
	second := s.NewCamera("second")
	third := s.NewCamera("third")
	probeA := s.NewIBL("a")
	probeB := s.NewIBL("b")
	for _, n := range []Node{first.Node, second.Node, third.Node, probeA.Node, probeB.Node} {
		require.NoError(t, s.Root().AddChild(n))
	}

	state := frame(t, b, s)
	assert.Equal(t, second.ID(), state.Camera.ID())
	assert.Equal(t, probeA.ID(), state.IBL.ID())
	// Later cameras still get their matrices.
	assert.NotEqual(t, mgl32.Ident4(), third.Projection())
	assert.Equal(t, mgl32.Ident4(), first.Projection())
}

func TestDisabledSubtreeIsSkipped(t *testing.T) {
	b, s := newTestScene(t)
	g := s.NewGroup("g")
	require.NoError(t, s.Root().AddChild(g.Node))
	addMesh(t, s, g.Node, "m", quad(t, b, "m", nil))
	require.NoError(t, g.AddChild(s.NewPointLight("p").Node))

	state := frame(t, b, s)
	assert.Len(t, state.Meshes, 1)
	assert.Len(t, state.PointLights, 1)

	g.SetEnabled(false)
	state = frame(t, b, s)
	assert.Equal(t, SceneStateHierarchyUpdated, state.State)
	assert.Empty(t, state.Meshes)
	assert.Empty(t, state.PointLights)
}

func TestProfilerScopes(t *testing.T) {
	p := profiler.NewProfiler()
	b, s := newTestScene(t, WithProfiler(p))
	frame(t, b, s)
	frame(t, b, s)
	assert.Equal(t, 2, p.Scope(ScopeGather).Calls)
	assert.Equal(t, 2, p.Scope(ScopeUpload).Calls)
}

func TestReleaseFreesEverything(t *testing.T) {
	b, s := newTestScene(t, WithReleaseWorkers(3))
	m := quad(t, b, "m", nil)
	addMesh(t, s, s.Root().Node, "n", m)
	detached, err := s.NewMesh("detached", WithMesh(quad(t, b, "d", nil)))
	require.NoError(t, err)
	frame(t, b, s)

	s.Release()
	s.Release()
	assert.False(t, detached.Valid())
	assert.True(t, s.Bindings().TLAS.(*backendtest.AccelerationStructure).Released())
	// Only the caller's meshes survive the scene.
	for _, buf := range b.LiveBuffers() {
		assert.Contains(t, []string{"m Vertices", "m Indices", "d Vertices", "d Indices"}, buf.Label())
	}
	assert.Len(t, b.LiveBuffers(), 4)
	_, err = tryFrame(b, s)
	assert.ErrorIs(t, err, backend.ErrReleased)
}

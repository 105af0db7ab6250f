package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/engine/backend/backendtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddChildRejectsCyclesAndSecondParents(t *testing.T) {
	_, s := newTestScene(t)
	a := s.NewGroup("a")
	b := s.NewGroup("b")
	require.NoError(t, a.AddChild(b.Node))

	assert.ErrorIs(t, b.AddChild(a.Node), ErrCycle)
	assert.ErrorIs(t, a.AddChild(a.Node), ErrCycle)
	assert.ErrorIs(t, s.Root().AddChild(b.Node), ErrAlreadyParented)
	assert.ErrorIs(t, a.AddChild(s.Root().Node), ErrCycle)

	_, other := newTestScene(t)
	assert.ErrorIs(t, other.Root().AddChild(a.Node), ErrWrongScene)
}

func TestNodeIDsArePerScene(t *testing.T) {
	_, s1 := newTestScene(t)
	_, s2 := newTestScene(t)
	a := s1.NewGroup("a")
	b := s1.NewGroup("b")
	c := s2.NewGroup("c")

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.ID(), c.ID())
}

func TestFindChildIsDepthFirst(t *testing.T) {
	_, s := newTestScene(t)
	g1 := s.NewGroup("g1")
	deep := s.NewGroup("target")
	shallow := s.NewGroup("target")
	require.NoError(t, s.Root().AddChild(g1.Node))
	require.NoError(t, g1.AddChild(deep.Node))
	require.NoError(t, s.Root().AddChild(shallow.Node))

	found, ok := s.Root().FindChild("target")
	require.True(t, ok)
	assert.Equal(t, deep.ID(), found.ID())

	_, ok = s.Root().FindChild("missing")
	assert.False(t, ok)

	root, ok := s.FindNode("Root")
	require.True(t, ok)
	assert.Equal(t, KindRoot, root.Kind())
}

func TestFindCamera(t *testing.T) {
	_, s := newTestScene(t)
	_, ok := s.FindCamera()
	assert.False(t, ok)

	g := s.NewGroup("g")
	cam := s.NewCamera("cam")
	require.NoError(t, s.Root().AddChild(g.Node))
	require.NoError(t, g.AddChild(cam.Node))

	found, ok := s.FindCamera()
	require.True(t, ok)
	assert.Equal(t, cam.ID(), found.ID())
	assert.Equal(t, KindCamera, found.Kind())
}

func TestRemoveChildInvalidatesSubtree(t *testing.T) {
	_, s := newTestScene(t)
	g := s.NewGroup("g")
	child := s.NewPointLight("light")
	require.NoError(t, s.Root().AddChild(g.Node))
	require.NoError(t, g.AddChild(child.Node))

	require.NoError(t, s.Root().RemoveChild("g"))
	assert.False(t, g.Valid())
	assert.False(t, child.Valid())
	assert.Empty(t, child.Name())
	assert.Empty(t, s.Root().Children())

	assert.ErrorIs(t, s.Root().RemoveChild("g"), ErrNodeNotFound)

	// Slots are reused but stale handles never resolve to the new node.
	n := s.NewGroup("new")
	assert.NotEqual(t, g.ID(), n.ID())
	assert.False(t, g.Valid())
	assert.True(t, n.Valid())
}

func TestRemoveDetachesFromParent(t *testing.T) {
	_, s := newTestScene(t)
	a := s.NewGroup("a")
	b := s.NewGroup("b")
	require.NoError(t, s.Root().AddChild(a.Node))
	require.NoError(t, a.AddChild(b.Node))

	require.NoError(t, s.Remove(b.Node))
	assert.Empty(t, a.Children())
	assert.ErrorIs(t, s.Remove(b.Node), ErrNodeNotFound)
	assert.ErrorIs(t, s.Remove(s.Root().Node), ErrRootRemoval)
}

func TestAsNarrowing(t *testing.T) {
	_, s := newTestScene(t)
	spot := s.NewSpotLight("spot")
	probe := s.NewIBL("probe")

	_, ok := spot.Node.AsLight()
	assert.True(t, ok)
	_, ok = spot.Node.AsCamera()
	assert.False(t, ok)
	_, ok = probe.Node.AsTransform()
	assert.False(t, ok)
	_, ok = probe.Node.AsIBL()
	assert.True(t, ok)
}

func TestNodeDefaults(t *testing.T) {
	_, s := newTestScene(t)

	dir := s.NewDirectionalLight("sun")
	assert.InDelta(t, 0.1, dir.Radius(), 1e-6)
	assert.InDelta(t, 1, dir.Intensity(), 1e-6)

	spot := s.NewSpotLight("spot")
	inner, outer := spot.ConeAngles()
	assert.Equal(t, float32(40), inner)
	assert.Equal(t, float32(50), outer)
	assert.Equal(t, float32(5), spot.Radius())

	point := s.NewPointLight("point")
	assert.Equal(t, float32(5), point.Radius())
	point.SetConeAngles(1, 2)
	inner, outer = point.ConeAngles()
	assert.Zero(t, inner)
	assert.Zero(t, outer)

	cam := s.NewCamera("cam")
	near, far := cam.NearFar()
	assert.Equal(t, float32(1), near)
	assert.Equal(t, float32(1000), far)
	assert.Equal(t, float32(60), cam.Fov())
	assert.Equal(t, float32(8), cam.FocalLength())
	assert.InDelta(t, 0.1, cam.ApertureRadius(), 1e-6)
}

func TestSetRootDestroysOldTree(t *testing.T) {
	b := backendtest.New()
	s, err := NewScene(b, "test")
	require.NoError(t, err)
	m := quad(t, b, "m", nil)
	old := addMesh(t, s, s.Root().Node, "mesh", m)
	frame(t, b, s)

	root := s.NewRoot("next")
	require.NoError(t, s.SetRoot(root))
	assert.False(t, old.Valid())
	assert.Equal(t, root.ID(), s.Root().ID())

	state := frame(t, b, s)
	assert.Empty(t, state.Meshes)
	// The mesh belongs to the caller.
	assert.False(t, m.VertexBuffer().(*backendtest.Buffer).Released())
}

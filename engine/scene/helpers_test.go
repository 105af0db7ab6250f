package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-rt/engine/material"
	"github.com/Carmen-Shannon/oxy-rt/engine/mesh"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

var testViewport = common.Extent2D{Width: 800, Height: 600}

func newTestScene(t *testing.T, options ...SceneBuilderOption) (*backendtest.Backend, Scene) {
	t.Helper()
	b := backendtest.New()
	s, err := NewScene(b, "test", options...)
	require.NoError(t, err)
	return b, s
}

// frame runs one Update on a fresh recorder and submits it.
func frame(t *testing.T, b *backendtest.Backend, s Scene) *RenderState {
	t.Helper()
	state, err := tryFrame(b, s)
	require.NoError(t, err)
	return state
}

func tryFrame(b *backendtest.Backend, s Scene) (*RenderState, error) {
	cmd, err := b.BeginCommands()
	if err != nil {
		return nil, err
	}
	state := NewRenderState()
	state.Setup(testViewport, cmd)
	if err := s.Update(state); err != nil {
		return state, err
	}
	return state, b.Submit(cmd)
}

// quad uploads a two-triangle mesh. Each submesh covers one triangle.
func quad(t *testing.T, b backend.Backend, name string, subMeshes []mesh.SubMesh, mats ...material.Material) mesh.Mesh {
	t.Helper()
	verts := []mesh.GPUVertex{
		{Position: [3]float32{0, 0, 0}},
		{Position: [3]float32{1, 0, 0}},
		{Position: [3]float32{1, 1, 0}},
		{Position: [3]float32{0, 1, 0}},
	}
	idx := []uint32{0, 1, 2, 0, 2, 3}
	opts := []mesh.MeshBuilderOption{mesh.WithMaterials(mats...)}
	if subMeshes != nil {
		opts = append(opts, mesh.WithSubMeshes(subMeshes...))
	}
	m, err := mesh.Upload(b, name, verts, idx, opts...)
	require.NoError(t, err)
	return m
}

func addMesh(t *testing.T, s Scene, parent Node, name string, m mesh.Mesh, options ...NodeBuilderOption) MeshNode {
	t.Helper()
	n, err := s.NewMesh(name, append([]NodeBuilderOption{WithMesh(m)}, options...)...)
	require.NoError(t, err)
	require.NoError(t, parent.AddChild(n.Node))
	return n
}

func sceneBuffer(t *testing.T, s Scene, binding uint32) *backendtest.Buffer {
	t.Helper()
	set := s.Bindings().Scene.(*backendtest.DescriptorSet)
	require.Len(t, set.Bindings[binding], 1)
	return set.Bindings[binding][0].(*backendtest.Buffer)
}

func tableLen(s backend.DescriptorSet) int {
	return len(s.(*backendtest.DescriptorSet).Bindings[0])
}

func commandsOf(b *backendtest.Backend, kind backendtest.CommandKind) []backendtest.Command {
	var out []backendtest.Command
	last := b.Submitted[len(b.Submitted)-1]
	for _, c := range last {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// approxMat compares element-wise with an absolute tolerance.
func approxMat(t *testing.T, want, got mgl32.Mat4) {
	t.Helper()
	require.InDeltaSlice(t, want[:], got[:], 1e-4, "want %v\ngot  %v", want, got)
}

func approxVec(t *testing.T, want, got mgl32.Vec3, delta float64) {
	t.Helper()
	require.InDeltaSlice(t, want[:], got[:], delta, "want %v\ngot  %v", want, got)
}

package swtlas

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitBoxAt(x, y, z float32) common.AABB {
	c := mgl32.Vec3{x, y, z}
	return common.AABB{Min: c.Sub(mgl32.Vec3{0.5, 0.5, 0.5}), Max: c.Add(mgl32.Vec3{0.5, 0.5, 0.5})}
}

func leafInstances(t *Tree) []uint32 {
	var out []uint32
	for _, n := range t.Nodes {
		if n.Leaf() {
			first := int(-n.A - 1)
			out = append(out, t.Order[first:first+int(n.B)]...)
		}
	}
	return out
}

func TestBuildEmpty(t *testing.T) {
	tree := Build(nil)
	assert.Empty(t, tree.Nodes)
	assert.True(t, tree.Bounds().Empty())
	assert.Empty(t, tree.Marshal())
}

func TestBuildCoversEveryInstanceOnce(t *testing.T) {
	var bounds []common.AABB
	for i := range 9 {
		bounds = append(bounds, unitBoxAt(float32(i*3), float32(i%2), 0))
	}
	tree := Build(bounds)

	assert.ElementsMatch(t, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8}, leafInstances(tree))
	root := tree.Bounds()
	approxVec(t, mgl32.Vec3{-0.5, -0.5, -0.5}, root.Min, 1e-5)
	approxVec(t, mgl32.Vec3{24.5, 1.5, 0.5}, root.Max, 1e-5)

	for i, n := range tree.Nodes {
		if !n.Leaf() {
			assert.Greater(t, n.A, int32(i))
			assert.Greater(t, n.B, int32(i))
		}
	}
	assert.Len(t, tree.Marshal(), len(tree.Nodes)*NodeSize+9*4)
}

func TestRefitKeepsTopology(t *testing.T) {
	bounds := []common.AABB{unitBoxAt(0, 0, 0), unitBoxAt(5, 0, 0), unitBoxAt(10, 0, 0), unitBoxAt(15, 0, 0)}
	tree := Build(bounds)
	topology := make([][2]int32, len(tree.Nodes))
	for i, n := range tree.Nodes {
		topology[i] = [2]int32{n.A, n.B}
	}

	bounds[3] = unitBoxAt(15, 20, 0)
	require.NoError(t, tree.Refit(bounds))

	for i, n := range tree.Nodes {
		assert.Equal(t, topology[i], [2]int32{n.A, n.B})
	}
	assert.InDelta(t, 20.5, tree.Bounds().Max[1], 1e-6)
}

func TestRefitRejectsCountChange(t *testing.T) {
	tree := Build([]common.AABB{unitBoxAt(0, 0, 0)})
	err := tree.Refit([]common.AABB{unitBoxAt(0, 0, 0), unitBoxAt(1, 0, 0)})
	assert.ErrorIs(t, err, ErrInstanceCountChanged)
}

func approxVec(t *testing.T, want, got mgl32.Vec3, delta float64) {
	t.Helper()
	assert.InDeltaSlice(t, want[:], got[:], delta)
}

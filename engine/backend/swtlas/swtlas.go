// Package swtlas builds and refits a top-level bounding volume hierarchy over
// instance bounds on the CPU, for devices without hardware acceleration structures.
package swtlas

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrInstanceCountChanged is returned by Refit when the instance count differs from the built tree.
var ErrInstanceCountChanged = errors.New("swtlas: refit requires the instance count of the last build")

// NodeSize is the encoded size of one Node in bytes.
const NodeSize = 32

// Node is one tree node. For an interior node A and B are the left and right
// child indices (always > 0). For a leaf A is -(first+1) into Tree.Order and B
// is the number of instances in the leaf.
type Node struct {
	Min mgl32.Vec3
	A   int32
	Max mgl32.Vec3
	B   int32
}

// Leaf reports whether n is a leaf.
func (n Node) Leaf() bool {
	return n.A < 0
}

// Tree is a flattened hierarchy in pre-order. Children always follow their parent.
type Tree struct {
	Nodes []Node
	// Order lists instance indices in leaf order.
	Order []uint32
}

// maxLeafSize is the largest number of instances kept in one leaf.
const maxLeafSize = 2

// Build constructs a tree over bounds using a median split on the widest centroid axis.
//
// Parameters:
//   - bounds: world-space bounds, one per instance
//
// Returns:
//   - *Tree: the built tree (no nodes when bounds is empty)
func Build(bounds []common.AABB) *Tree {
	t := &Tree{
		Nodes: make([]Node, 0, max(2*len(bounds)-1, 0)),
		Order: make([]uint32, len(bounds)),
	}
	for i := range t.Order {
		t.Order[i] = uint32(i)
	}
	if len(bounds) == 0 {
		return t
	}
	t.build(bounds, 0, len(bounds))
	return t
}

func (t *Tree) build(bounds []common.AABB, start, end int) int32 {
	idx := int32(len(t.Nodes))
	t.Nodes = append(t.Nodes, Node{})

	box := common.EmptyAABB()
	centroids := common.EmptyAABB()
	for _, i := range t.Order[start:end] {
		box = box.Union(bounds[i])
		centroids = centroids.GrowPoint(bounds[i].Center())
	}

	if end-start <= maxLeafSize {
		t.Nodes[idx] = Node{Min: box.Min, A: -int32(start) - 1, Max: box.Max, B: int32(end - start)}
		return idx
	}

	extent := centroids.Max.Sub(centroids.Min)
	axis := 0
	if extent[1] > extent[axis] {
		axis = 1
	}
	if extent[2] > extent[axis] {
		axis = 2
	}
	span := t.Order[start:end]
	sort.SliceStable(span, func(a, b int) bool {
		return bounds[span[a]].Center()[axis] < bounds[span[b]].Center()[axis]
	})
	mid := start + (end-start)/2

	left := t.build(bounds, start, mid)
	right := t.build(bounds, mid, end)
	t.Nodes[idx] = Node{Min: box.Min, A: left, Max: box.Max, B: right}
	return idx
}

// Refit recomputes node bounds for moved instances while keeping the topology.
//
// Parameters:
//   - bounds: world-space bounds, one per instance, same count as the last build
//
// Returns:
//   - error: ErrInstanceCountChanged if the count differs
func (t *Tree) Refit(bounds []common.AABB) error {
	if len(bounds) != len(t.Order) {
		return fmt.Errorf("%w: built %d, got %d", ErrInstanceCountChanged, len(t.Order), len(bounds))
	}
	for i := len(t.Nodes) - 1; i >= 0; i-- {
		n := &t.Nodes[i]
		box := common.EmptyAABB()
		if n.Leaf() {
			first := int(-n.A - 1)
			for _, inst := range t.Order[first : first+int(n.B)] {
				box = box.Union(bounds[inst])
			}
		} else {
			left, right := t.Nodes[n.A], t.Nodes[n.B]
			box = box.Union(common.AABB{Min: left.Min, Max: left.Max})
			box = box.Union(common.AABB{Min: right.Min, Max: right.Max})
		}
		n.Min, n.Max = box.Min, box.Max
	}
	return nil
}

// Bounds returns the root bounds, or an empty box for an empty tree.
func (t *Tree) Bounds() common.AABB {
	if len(t.Nodes) == 0 {
		return common.EmptyAABB()
	}
	return common.AABB{Min: t.Nodes[0].Min, Max: t.Nodes[0].Max}
}

// Marshal encodes the nodes followed by the leaf order for upload.
//
// Returns:
//   - []byte: NodeSize bytes per node, then 4 bytes per instance
func (t *Tree) Marshal() []byte {
	buf := make([]byte, len(t.Nodes)*NodeSize+len(t.Order)*4)
	off := 0
	for _, n := range t.Nodes {
		off += common.PutFloats(buf[off:], n.Min[0], n.Min[1], n.Min[2])
		putInt32(buf[off:], n.A)
		off += 4
		off += common.PutFloats(buf[off:], n.Max[0], n.Max[1], n.Max[2])
		putInt32(buf[off:], n.B)
		off += 4
	}
	for _, o := range t.Order {
		putInt32(buf[off:], int32(o))
		off += 4
	}
	return buf
}

func putInt32(buf []byte, v int32) {
	u := uint32(v)
	buf[0], buf[1], buf[2], buf[3] = byte(u), byte(u>>8), byte(u>>16), byte(u>>24)
}

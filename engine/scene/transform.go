package scene

import (
	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/go-gl/mathgl/mgl32"
)

// transform is the local transform record embedded in transform-bearing nodes.
// local and localNoScale are valid only while dirty is false.
type transform struct {
	position    mgl32.Vec3
	orientation mgl32.Quat
	scale       mgl32.Vec3

	local        mgl32.Mat4
	localNoScale mgl32.Mat4
	prevLocal    mgl32.Mat4

	dirty bool
}

func newTransform() *transform {
	return &transform{
		orientation:  mgl32.QuatIdent(),
		scale:        mgl32.Vec3{1, 1, 1},
		local:        mgl32.Ident4(),
		localNoScale: mgl32.Ident4(),
		prevLocal:    mgl32.Ident4(),
		dirty:        true,
	}
}

// compose returns translate*rotate*scale and translate*rotate from the components.
func (t *transform) compose() (mgl32.Mat4, mgl32.Mat4) {
	tr := mgl32.Translate3D(t.position[0], t.position[1], t.position[2]).Mul4(t.orientation.Mat4())
	return tr.Mul4(mgl32.Scale3D(t.scale[0], t.scale[1], t.scale[2])), tr
}

// matrices returns the local matrices, composing them on the fly while dirty so a
// query never observes a stale cache and never writes one.
func (t *transform) matrices() (mgl32.Mat4, mgl32.Mat4) {
	if t.dirty {
		return t.compose()
	}
	return t.local, t.localNoScale
}

// recompute refreshes the cache and keeps the previous local matrix. Reports whether anything was recomputed.
func (t *transform) recompute() bool {
	if !t.dirty {
		return false
	}
	t.prevLocal = t.local
	t.local, t.localNoScale = t.compose()
	t.dirty = false
	return true
}

func (t *transform) setFromMatrix(m mgl32.Mat4) {
	t.position, t.orientation, t.scale = common.DecomposeAffine(m)
}

// markTransformDirty flags the node at slot and every descendant.
func (g *graph) markTransformDirty(slot int32) {
	n := &g.slots[slot]
	if n.xf != nil {
		n.xf.dirty = true
	}
	for _, c := range n.children {
		g.markTransformDirty(c)
	}
}

// transformAncestor returns the nearest ancestor carrying a transform, or noSlot.
func (g *graph) transformAncestor(slot int32) int32 {
	for p := g.slots[slot].parent; p != noSlot; p = g.slots[p].parent {
		if g.slots[p].xf != nil {
			return p
		}
	}
	return noSlot
}

// parentWorldWithoutScale composes translate*rotate of every transform ancestor.
// Scale is never inherited.
func (g *graph) parentWorldWithoutScale(slot int32) mgl32.Mat4 {
	p := g.transformAncestor(slot)
	if p == noSlot {
		return mgl32.Ident4()
	}
	return g.worldWithoutScale(p)
}

func (g *graph) worldWithoutScale(slot int32) mgl32.Mat4 {
	_, noScale := g.slots[slot].xf.matrices()
	return g.parentWorldWithoutScale(slot).Mul4(noScale)
}

func (g *graph) world(slot int32) mgl32.Mat4 {
	local, _ := g.slots[slot].xf.matrices()
	return g.parentWorldWithoutScale(slot).Mul4(local)
}

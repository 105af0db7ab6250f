// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Extent2D is a width and height in pixels, used for the render viewport.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Aspect returns Width / Height, or 1 when the extent has no height.
//
// Returns:
//   - float32: the aspect ratio
func (e Extent2D) Aspect() float32 {
	if e.Height == 0 {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

// AABB is an axis-aligned bounding box. An empty box has Min > Max on every axis.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// EmptyAABB returns a box that contains nothing; growing it by any point yields that point.
//
// Returns:
//   - AABB: the empty box
func EmptyAABB() AABB {
	inf := math32.Inf(1)
	return AABB{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// Empty reports whether the box contains no points.
//
// Returns:
//   - bool: true if Min exceeds Max on any axis
func (b AABB) Empty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// GrowPoint returns the smallest box containing b and p.
//
// Parameters:
//   - p: the point to include
//
// Returns:
//   - AABB: the grown box
func (b AABB) GrowPoint(p mgl32.Vec3) AABB {
	for i := range 3 {
		b.Min[i] = math32.Min(b.Min[i], p[i])
		b.Max[i] = math32.Max(b.Max[i], p[i])
	}
	return b
}

// Union returns the smallest box containing both boxes.
//
// Parameters:
//   - o: the other box
//
// Returns:
//   - AABB: the union
func (b AABB) Union(o AABB) AABB {
	if o.Empty() {
		return b
	}
	return b.GrowPoint(o.Min).GrowPoint(o.Max)
}

// Center returns the midpoint of the box.
//
// Returns:
//   - mgl32.Vec3: the center point
func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Transform returns the box enclosing all eight corners of b after applying m.
//
// Parameters:
//   - m: the affine transform to apply
//
// Returns:
//   - AABB: the transformed bounds
func (b AABB) Transform(m mgl32.Mat4) AABB {
	if b.Empty() {
		return b
	}
	out := EmptyAABB()
	for i := range 8 {
		corner := mgl32.Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			corner[0] = b.Max[0]
		}
		if i&2 != 0 {
			corner[1] = b.Max[1]
		}
		if i&4 != 0 {
			corner[2] = b.Max[2]
		}
		out = out.GrowPoint(mgl32.TransformCoordinate(corner, m))
	}
	return out
}

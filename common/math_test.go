package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestSRGBToLinear(t *testing.T) {
	got := SRGBToLinear(mgl32.Vec3{0, 0.5, 1})
	assert.InDelta(t, 0, got[0], 1e-6)
	assert.InDelta(t, 0.21764, got[1], 1e-4)
	assert.InDelta(t, 1, got[2], 1e-6)
}

func TestDecomposeAffineRoundTrip(t *testing.T) {
	pos := mgl32.Vec3{1, -2, 3}
	rot := mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{0, 1, 0})
	scale := mgl32.Vec3{2, 3, 4}

	gotPos, gotRot, gotScale := DecomposeAffine(ComposeTRS(pos, rot, scale))

	approxVec(t, pos, gotPos, 1e-5)
	approxVec(t, scale, gotScale, 1e-5)
	approxMat(t, rot.Mat4(), gotRot.Mat4(), 1e-5)
}

func TestDecomposeAffineIgnoresProjectiveRowAndShear(t *testing.T) {
	m := mgl32.Translate3D(5, 6, 7)
	m.Set(3, 0, 0.25) // projective row
	m.Set(0, 1, 0.5)  // shear x by y

	pos, rot, scale := DecomposeAffine(m)

	approxVec(t, mgl32.Vec3{5, 6, 7}, pos, 1e-5)
	approxMat(t, mgl32.Ident4(), rot.Mat4(), 1e-5)
	assert.InDelta(t, 1, scale[0], 1e-5)
	assert.InDelta(t, 1, scale[2], 1e-5)
}

func TestEulerYXZMatchesComposition(t *testing.T) {
	euler := mgl32.Vec3{0.3, 1.1, -0.4}
	want := mgl32.HomogRotate3DY(euler[1]).Mul4(mgl32.HomogRotate3DX(euler[0])).Mul4(mgl32.HomogRotate3DZ(euler[2]))
	approxMat(t, want, EulerYXZ(euler).Mat4(), 1e-5)
}

func TestRowMajor3x4(t *testing.T) {
	m := mgl32.Translate3D(1, 2, 3)
	rows := RowMajor3x4(m)
	assert.Equal(t, [12]float32{
		1, 0, 0, 1,
		0, 1, 0, 2,
		0, 0, 1, 3,
	}, rows)
}

func TestAABBTransform(t *testing.T) {
	box := AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	got := box.Transform(mgl32.Translate3D(10, 0, 0).Mul4(mgl32.Scale3D(2, 1, 1)))
	approxVec(t, mgl32.Vec3{8, -1, -1}, got.Min, 1e-5)
	approxVec(t, mgl32.Vec3{12, 1, 1}, got.Max, 1e-5)
	assert.True(t, EmptyAABB().Empty())
	assert.Equal(t, box, EmptyAABB().Union(box))
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(256), AlignUp(1, 256))
	assert.Equal(t, uint64(256), AlignUp(256, 256))
	assert.Equal(t, uint64(0), AlignUp(0, 4))
}

func approxVec(t *testing.T, want, got mgl32.Vec3, delta float64) {
	t.Helper()
	assert.InDeltaSlice(t, want[:], got[:], delta)
}

func approxMat(t *testing.T, want, got mgl32.Mat4, delta float64) {
	t.Helper()
	assert.InDeltaSlice(t, want[:], got[:], delta)
}

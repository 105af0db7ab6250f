package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestProjectionMatchesPerspectiveFormula(t *testing.T) {
	p := Projection(60, common.Extent2D{Width: 800, Height: 600}, 1, 1000)

	f := 1 / math32.Tan(mgl32.DegToRad(60)/2)
	aspect := float32(800) / 600
	assert.InDelta(t, f/aspect, p.At(0, 0), 1e-5)
	assert.InDelta(t, f, p.At(1, 1), 1e-5)
	assert.InDelta(t, (1000+1)/(1-1000.0), p.At(2, 2), 1e-5)
	assert.InDelta(t, 2*1000*1/(1-1000.0), p.At(2, 3), 1e-4)
	assert.InDelta(t, -1, p.At(3, 2), 1e-6)
	assert.InDelta(t, 0, p.At(3, 3), 1e-6)
}

func TestViewOfIdentityIsIdentity(t *testing.T) {
	approxMat(t, mgl32.Ident4(), View(mgl32.Ident4()), 1e-5)
	v := View(mgl32.Translate3D(0, 0, 5))
	approxVec(t, mgl32.Vec3{}, mgl32.TransformCoordinate(mgl32.Vec3{0, 0, 5}, v), 1e-5)
}

func TestGPUCameraUniform(t *testing.T) {
	view := mgl32.Translate3D(1, 2, 3)
	g := NewGPUCameraUniform(view, mgl32.Ident4(), mgl32.Vec3{-1, -2, -3}, 8, 0.1, 1, 1000)
	assert.Equal(t, 288, g.Size())
	assert.Len(t, g.Marshal(), 288)
	approxMat(t, mgl32.Translate3D(-1, -2, -3), g.ViewInverse, 1e-5)
	assert.Equal(t, [4]float32{8, 0.1, 1, 1000}, g.Lens)
}

func approxVec(t *testing.T, want, got mgl32.Vec3, delta float64) {
	t.Helper()
	assert.InDeltaSlice(t, want[:], got[:], delta)
}

func approxMat(t *testing.T, want, got mgl32.Mat4, delta float64) {
	t.Helper()
	assert.InDeltaSlice(t, want[:], got[:], delta)
}

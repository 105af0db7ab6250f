package light

import (
	"encoding/binary"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestNewSpotStoresConeCosines(t *testing.T) {
	g := NewSpot(mgl32.Vec3{1, 1, 1}, 2, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 2, 3}, 5, 60, 90)
	assert.Equal(t, LightTypeSpot, g.Type())
	assert.InDelta(t, 0.5, g.Data3[0], 1e-6)
	assert.InDelta(t, 0, g.Data3[1], 1e-6)
	assert.Equal(t, [4]float32{1, 2, 3, 5}, g.Data2)
	assert.Equal(t, float32(2), g.Data1[3])
}

func TestNewAreaKeepsIntegersBitExact(t *testing.T) {
	g := NewArea(7, 3, 100, 42)
	inst, mat, off, count := g.AreaFields()
	assert.Equal(t, []uint32{7, 3, 100, 42}, []uint32{inst, mat, off, count})
	assert.Equal(t, LightTypeArea, g.Type())

	buf := make([]byte, g.Size())
	g.Marshal(buf)
	assert.Equal(t, 64, len(buf))
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(buf[4:]))
	assert.Equal(t, uint32(42), binary.LittleEndian.Uint32(buf[16:]))
}

func TestDirectionalAndPointLayout(t *testing.T) {
	d := NewDirectional(mgl32.Vec3{1, 0.5, 0.25}, 3, mgl32.Vec3{0, -1, 0}, 0.1)
	assert.Equal(t, [4]float32{0, 1, 0.5, 0.25}, d.Data0)
	assert.Equal(t, [4]float32{0, -1, 0, 3}, d.Data1)
	assert.Equal(t, [4]float32{0, 0, 0, 0.1}, d.Data2)

	p := NewPoint(mgl32.Vec3{1, 1, 1}, 1, mgl32.Vec3{4, 5, 6}, 5)
	assert.Equal(t, LightTypePoint, p.Type())
	assert.Equal(t, [4]float32{4, 5, 6, 5}, p.Data2)

	assert.Equal(t, LightTypeEnvironmentMap, (&GPULight{Data0: NewEnvironment().Data0}).Type())
	assert.Equal(t, "area", LightTypeArea.String())
}

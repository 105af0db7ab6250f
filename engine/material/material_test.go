package material

import (
	"encoding/binary"
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTexture(t *testing.T, b *backendtest.Backend, name string) texture.Texture {
	t.Helper()
	img, err := b.CreateImage(backend.ImageDescriptor{Label: name, Width: 1, Height: 1})
	require.NoError(t, err)
	return texture.NewTexture(img)
}

func TestIsEmissive(t *testing.T) {
	b := backendtest.New()
	assert.False(t, NewMaterial().IsEmissive())
	assert.False(t, NewMaterial(WithEmissive([3]float32{1, 1, 1}, 0)).IsEmissive())
	assert.True(t, NewMaterial(WithEmissive([3]float32{1, 0.5, 0}, 4)).IsEmissive())
	assert.True(t, NewMaterial(WithEmissiveTexture(newTexture(t, b, "glow"))).IsEmissive())
}

func TestNewGPUMaterial(t *testing.T) {
	b := backendtest.New()
	albedoTex := newTexture(t, b, "albedo")
	roughTex := newTexture(t, b, "orm")
	m := NewMaterial(
		WithAlbedo([4]float32{0.5, 1, 0, 0.25}),
		WithAlbedoTexture(albedoTex),
		WithRoughnessTexture(roughTex, ChannelG),
		WithMetallicTexture(roughTex, ChannelB),
		WithRoughness(0.3),
		WithMetallic(0.7),
	)
	slots := map[texture.Texture]int32{albedoTex: 4, roughTex: 9}

	g := NewGPUMaterial(m, func(tex texture.Texture) int32 { return slots[tex] })

	assert.Equal(t, [4]int32{4, NoTexture, 9, 9}, g.TextureIndices0)
	assert.Equal(t, [4]int32{NoTexture, NoTexture, int32(ChannelG), int32(ChannelB)}, g.TextureIndices1)
	assert.InDelta(t, 0.21764, g.Albedo[0], 1e-4)
	assert.InDelta(t, 1, g.Albedo[1], 1e-6)
	assert.InDelta(t, 0.25, g.Albedo[3], 1e-6)
	assert.Equal(t, [4]float32{0.3, 0.7, 0, 0}, g.RoughnessMetallic)

	buf := make([]byte, g.Size())
	g.Marshal(buf)
	assert.Equal(t, 80, g.Size())
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(buf[0:]))
	assert.Equal(t, uint32(0xffffffff), binary.LittleEndian.Uint32(buf[4:]))
}

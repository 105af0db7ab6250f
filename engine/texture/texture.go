// Package texture wraps sampled GPU images produced by asset loaders.
package texture

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
)

// texture is the implementation of the Texture interface.
type texture struct {
	name  string
	image backend.Image
	once  sync.Once
}

// Texture is a sampled image shared between materials. The Texture value itself
// is its identity: two materials referencing the same Texture share one bindless slot.
type Texture interface {
	// Name retrieves the texture identifier.
	//
	// Returns:
	//   - string: the texture name
	Name() string

	// Image retrieves the GPU image backing the texture.
	//
	// Returns:
	//   - backend.Image: the image
	Image() backend.Image

	// Cube reports whether the texture is a cube map.
	//
	// Returns:
	//   - bool: true for cube maps
	Cube() bool

	// Release frees the GPU image. Subsequent calls are no-ops.
	Release()
}

var _ Texture = &texture{}

// NewTexture wraps img. NewTexture panics if img is nil.
//
// Parameters:
//   - img: the GPU image
//   - options: functional options to configure the texture
//
// Returns:
//   - Texture: the texture
func NewTexture(img backend.Image, options ...TextureBuilderOption) Texture {
	if img == nil {
		panic("texture: NewTexture requires a non-nil image")
	}
	t := &texture{
		name:  img.Label(),
		image: img,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

func (t *texture) Name() string {
	return t.name
}

func (t *texture) Image() backend.Image {
	return t.image
}

func (t *texture) Cube() bool {
	return t.image.Kind() == backend.ImageCube
}

func (t *texture) Release() {
	t.once.Do(t.image.Release)
}

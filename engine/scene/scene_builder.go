package scene

import (
	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
	"github.com/Carmen-Shannon/oxy-rt/engine/config"
	"github.com/Carmen-Shannon/oxy-rt/engine/material"
	"github.com/Carmen-Shannon/oxy-rt/engine/profiler"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithCapacity sets every table capacity at once, typically from a loaded config.
// Zero fields keep their defaults.
//
// Parameters:
//   - c: the capacities
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCapacity(c config.Capacity) SceneBuilderOption {
	return func(s *scene) {
		s.capacity.MaxMeshInstances = common.Coalesce(c.MaxMeshInstances, s.capacity.MaxMeshInstances)
		s.capacity.MaxMaterials = common.Coalesce(c.MaxMaterials, s.capacity.MaxMaterials)
		s.capacity.MaxTextures = common.Coalesce(c.MaxTextures, s.capacity.MaxTextures)
		s.capacity.MaxLights = common.Coalesce(c.MaxLights, s.capacity.MaxLights)
	}
}

// WithMaxMeshInstances bounds the number of visible mesh instances per frame.
//
// Parameters:
//   - n: the instance limit
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithMaxMeshInstances(n uint32) SceneBuilderOption {
	return func(s *scene) {
		s.capacity.MaxMeshInstances = max(n, 1)
	}
}

// WithMaxMaterials bounds the number of distinct materials.
func WithMaxMaterials(n uint32) SceneBuilderOption {
	return func(s *scene) {
		s.capacity.MaxMaterials = max(n, 1)
	}
}

// WithMaxTextures bounds the number of distinct textures.
func WithMaxTextures(n uint32) SceneBuilderOption {
	return func(s *scene) {
		s.capacity.MaxTextures = max(n, 1)
	}
}

// WithMaxLights bounds the number of light records, area lights included.
func WithMaxLights(n uint32) SceneBuilderOption {
	return func(s *scene) {
		s.capacity.MaxLights = max(n, 1)
	}
}

// WithSkyModel sets the sky used as the environment for scenes lit by directional lights.
//
// Parameters:
//   - sky: the sky model
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithSkyModel(sky SkyModel) SceneBuilderOption {
	return func(s *scene) {
		s.sky = sky
	}
}

// WithDefaultEnvironment sets the cube map bound when neither a probe nor the sky applies.
// The scene does not take ownership of img. Without this option the scene creates a black one.
func WithDefaultEnvironment(img backend.Image) SceneBuilderOption {
	return func(s *scene) {
		s.defaultEnvironment = img
	}
}

// WithDefaultMaterial sets the material used for submeshes that have none.
func WithDefaultMaterial(m material.Material) SceneBuilderOption {
	return func(s *scene) {
		if m != nil {
			s.defaultMaterial = m
		}
	}
}

// WithReleaseWorkers sets how many workers release deferred GPU resources.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithReleaseWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		s.releaseWorkers = max(n, 1)
	}
}

// WithProfiler times the traversal and upload phases of Update under the scopes
// "Gather Render State" and "Upload GPU Resources".
func WithProfiler(p *profiler.Profiler) SceneBuilderOption {
	return func(s *scene) {
		s.profiler = p
	}
}

// WithPath records the file the scene was loaded from.
func WithPath(path string) SceneBuilderOption {
	return func(s *scene) {
		s.path = path
	}
}

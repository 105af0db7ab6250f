// Package config loads engine settings from TOML files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/pelletier/go-toml/v2"
)

// Default capacities. Textures are sized at four per material.
const (
	DefaultMaxMeshInstances = 1024
	DefaultMaxMaterials     = 4096
	DefaultMaxTextures      = 4 * DefaultMaxMaterials
	DefaultMaxLights        = 100000
	DefaultReleaseWorkers   = 2
)

// ErrInvalid is returned for settings that cannot be used.
var ErrInvalid = errors.New("config: invalid setting")

// Capacity bounds the per-scene GPU tables.
type Capacity struct {
	MaxMeshInstances uint32 `toml:"max_mesh_instances"`
	MaxMaterials     uint32 `toml:"max_materials"`
	MaxTextures      uint32 `toml:"max_textures"`
	MaxLights        uint32 `toml:"max_lights"`
}

// Viewport is the initial render size.
type Viewport struct {
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

// Release configures the deferred GPU resource release queue.
type Release struct {
	Workers int `toml:"workers"`
}

// Log configures the engine logger.
type Log struct {
	// Level is one of debug, info, warn, error. Empty disables logging.
	Level string `toml:"level"`
}

// Config is the root of an engine settings file.
type Config struct {
	Capacity Capacity `toml:"capacity"`
	Viewport Viewport `toml:"viewport"`
	Release  Release  `toml:"release"`
	Log      Log      `toml:"log"`
}

// Default returns the built-in settings.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	return Config{
		Capacity: Capacity{
			MaxMeshInstances: DefaultMaxMeshInstances,
			MaxMaterials:     DefaultMaxMaterials,
			MaxTextures:      DefaultMaxTextures,
			MaxLights:        DefaultMaxLights,
		},
		Viewport: Viewport{Width: 1280, Height: 720},
		Release:  Release{Workers: DefaultReleaseWorkers},
	}
}

// Parse decodes TOML settings. Keys absent from data keep their defaults.
//
// Parameters:
//   - data: TOML document
//
// Returns:
//   - Config: the settings
//   - error: error if the document is malformed or a value is invalid
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Capacity = cfg.Capacity.withDefaults()
	if cfg.Release.Workers < 1 {
		return Config{}, fmt.Errorf("%w: release.workers must be at least 1, got %d", ErrInvalid, cfg.Release.Workers)
	}
	if _, err := cfg.Log.SlogLevel(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and decodes a TOML settings file.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Config: the settings
//   - error: error if the file cannot be read or decoded
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

func (c Capacity) withDefaults() Capacity {
	return Capacity{
		MaxMeshInstances: common.Coalesce(c.MaxMeshInstances, DefaultMaxMeshInstances),
		MaxMaterials:     common.Coalesce(c.MaxMaterials, DefaultMaxMaterials),
		MaxTextures:      common.Coalesce(c.MaxTextures, DefaultMaxTextures),
		MaxLights:        common.Coalesce(c.MaxLights, DefaultMaxLights),
	}
}

// SlogLevel maps Level to a slog level. An empty Level maps to debug; check Enabled first.
//
// Returns:
//   - slog.Level: the level
//   - error: ErrInvalid for an unknown level name
func (l Log) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "", "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: log.level %q", ErrInvalid, l.Level)
}

// Enabled reports whether a log level was configured.
func (l Log) Enabled() bool {
	return l.Level != ""
}

package engine

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/profiler"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	"github.com/Carmen-Shannon/oxy-rt/engine/scene"
)

// engine implements the Engine interface.
type engine struct {
	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	renderer renderer.Renderer
	viewport common.Extent2D

	profiler         *profiler.Profiler
	profilingEnabled bool

	tickCallback func(deltaTime float32)
	dispatch     renderer.DispatchFunc

	scenes map[int]scene.Scene

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        uint64        // 0 = run until Quit
	frames           uint64
}

// Engine runs the frame loop: each frame it calls the tick callback, then renders every
// registered scene in ascending key order.
//
// The tick callback, scene mutation and rendering all happen on the goroutine that calls
// Run, which is what a Scene requires of its writer.
type Engine interface {
	// Renderer returns the renderer that draws every scene.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// SetViewport changes the render size from the next frame on.
	//
	// Parameters:
	//   - viewport: the new size
	SetViewport(viewport common.Extent2D)

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickCallback registers the function called at the start of each frame.
	// Use this for scene mutation, animation and input processing.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetDispatch registers the function that records ray tracing work for each scene.
	//
	// Parameters:
	//   - dispatch: the dispatch callback (nil renders without dispatching)
	SetDispatch(dispatch renderer.DispatchFunc)

	// SetRenderFrameLimit sets an optional frame rate cap in frames per second.
	// Pass 0 to uncap the loop (default).
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddScene registers a scene at the given z-index key.
	// Scenes are rendered in ascending key order.
	//
	// Parameters:
	//   - key: the z-index determining render order (lower renders first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key. The scene is not released.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key.
	// Returns nil if no scene exists at that key.
	//
	// Parameters:
	//   - key: the z-index of the scene to retrieve
	//
	// Returns:
	//   - scene.Scene: the scene at the key, or nil if not found
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	//
	// Returns:
	//   - map[int]scene.Scene: a copy of the scenes map
	Scenes() map[int]scene.Scene

	// Frames returns the number of completed frames.
	Frames() uint64

	// Run runs the frame loop on the calling goroutine until Quit is called, the frame
	// budget set by WithMaxFrames is spent, or a frame fails.
	//
	// Returns:
	//   - error: the first frame error, nil on a requested stop
	Run() error

	// Quit stops the loop after the current frame.
	// Safe to call multiple times and from any goroutine; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine that renders with r.
//
// Parameters:
//   - r: the renderer (must not be nil)
//   - options: functional options for engine configuration (profiling, frame limits, scenes)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(r renderer.Renderer, options ...EngineBuilderOption) Engine {
	if r == nil {
		panic("engine: NewEngine requires a non-nil Renderer")
	}
	e := &engine{
		quitChannel: make(chan struct{}),
		renderer:    r,
		viewport:    common.Extent2D{Width: 1280, Height: 720},
		scenes:      make(map[int]scene.Scene),
		profiler:    profiler.NewProfiler(),
	}

	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) SetViewport(viewport common.Extent2D) {
	e.viewport = viewport
}

func (e *engine) Run() error {
	last := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return nil
		default:
		}

		start := time.Now()
		dt := float32(start.Sub(last).Seconds())
		last = start

		if e.tickCallback != nil {
			e.tickCallback(dt)
		}
		if err := e.renderScenes(); err != nil {
			common.Logger().Error("engine: frame failed", "frame", e.frames, "err", err)
			e.signalQuit()
			return err
		}
		e.frames++

		if e.profilingEnabled {
			e.profiler.Tick()
		}
		if e.maxFrames > 0 && e.frames >= e.maxFrames {
			e.signalQuit()
		}

		// Frame rate limiting
		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// renderScenes renders every registered scene in ascending z-index order.
func (e *engine) renderScenes() error {
	for _, k := range slices.Sorted(maps.Keys(e.scenes)) {
		s := e.scenes[k]
		if err := e.renderer.Frame(s, e.viewport, e.dispatch); err != nil {
			return fmt.Errorf("engine: scene %d (%s): %w", k, s.Name(), err)
		}
	}
	return nil
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to stop the loop.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetDispatch(dispatch renderer.DispatchFunc) {
	e.dispatch = dispatch
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameDuration(fps)
}

func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	return maps.Clone(e.scenes)
}

func (e *engine) Frames() uint64 {
	return e.frames
}

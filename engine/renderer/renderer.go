package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
	"github.com/Carmen-Shannon/oxy-rt/engine/camera"
	"github.com/Carmen-Shannon/oxy-rt/engine/profiler"
	"github.com/Carmen-Shannon/oxy-rt/engine/scene"
)

// ScopeDispatch is the profiler scope around the caller's dispatch callback.
const ScopeDispatch = "Dispatch Rays"

// ErrNoViewport is returned by Frame for a zero-sized viewport.
var ErrNoViewport = errors.New("renderer: viewport has zero area")

// FrameBindings is everything a ray generation dispatch binds for one frame.
type FrameBindings struct {
	scene.Bindings

	// Camera is the uniform buffer holding a camera.GPUCameraUniform for the active camera.
	// It keeps the previous contents when the scene has no enabled camera.
	Camera backend.Buffer

	Viewport common.Extent2D
	State    scene.SceneState
	// Cmd is the frame's command recorder; the dispatch is recorded after the TLAS build.
	Cmd backend.CommandRecorder
	// Frame counts frames rendered by this renderer, starting at 0.
	Frame uint64
}

// DispatchFunc records the ray tracing work of one frame.
type DispatchFunc func(FrameBindings) error

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	label    string
	backend  backend.Backend
	profiler *profiler.Profiler

	state        *scene.RenderState
	cameraBuffer backend.Buffer
	frames       uint64
	cameraWarned bool
	released     bool
}

// Renderer drives frames: it lets a Scene synchronize its GPU resources and hands the
// resulting bindings to the caller's dispatch.
//
// Frame calls are serialized; Scene mutation must still happen between frames on the
// goroutine that calls Frame.
type Renderer interface {
	// Frame renders one frame of s. It begins command recording, updates the scene,
	// uploads the active camera, records the caller's dispatch and submits.
	//
	// Parameters:
	//   - s: the scene to render
	//   - viewport: the render target size
	//   - dispatch: records ray tracing work against the frame's bindings (may be nil)
	//
	// Returns:
	//   - error: the scene update, dispatch or submission error; nothing is submitted on error
	Frame(s scene.Scene, viewport common.Extent2D, dispatch DispatchFunc) error

	// CameraBuffer returns the camera uniform buffer.
	//
	// Returns:
	//   - backend.Buffer: the uniform buffer
	CameraBuffer() backend.Buffer

	// Frames returns the number of frames submitted.
	//
	// Returns:
	//   - uint64: the frame count
	Frames() uint64

	// Release frees the renderer's GPU resources. Scenes are released by their owner.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer on the given backend.
//
// Parameters:
//   - b: the backend (must not be nil)
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: error if the camera uniform buffer cannot be created
func NewRenderer(b backend.Backend, options ...RendererBuilderOption) (Renderer, error) {
	if b == nil {
		panic("renderer: NewRenderer requires a non-nil Backend")
	}
	r := &renderer{
		mu:      &sync.Mutex{},
		label:   "renderer",
		backend: b,
		state:   scene.NewRenderState(),
	}
	for _, option := range options {
		option(r)
	}

	var u camera.GPUCameraUniform
	buf, err := b.CreateBuffer(backend.BufferDescriptor{
		Label:    r.label + " camera",
		Size:     uint64(u.Size()),
		Usage:    backend.BufferUsageUniform,
		Location: backend.MemoryHostToDevice,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: create camera buffer: %w", err)
	}
	r.cameraBuffer = buf
	return r, nil
}

func (r *renderer) Frame(s scene.Scene, viewport common.Extent2D, dispatch DispatchFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return backend.ErrReleased
	}
	if viewport.Width == 0 || viewport.Height == 0 {
		return ErrNoViewport
	}

	cmd, err := r.backend.BeginCommands()
	if err != nil {
		return fmt.Errorf("renderer: begin commands: %w", err)
	}
	r.state.Setup(viewport, cmd)
	if err := s.Update(r.state); err != nil {
		cmd.Discard()
		return fmt.Errorf("renderer: update scene %q: %w", s.Name(), err)
	}
	if err := r.finish(s, viewport, cmd, dispatch); err != nil {
		// The scene recorded a build the device never got.
		cmd.Discard()
		s.Abandon()
		return err
	}
	r.frames++
	r.profiler.Tick()
	return nil
}

// finish uploads the camera, runs the dispatch and submits the frame.
func (r *renderer) finish(s scene.Scene, viewport common.Extent2D, cmd backend.CommandRecorder, dispatch DispatchFunc) error {
	r.uploadCamera(s)

	if dispatch != nil {
		r.profiler.BeginScope(ScopeDispatch)
		err := dispatch(FrameBindings{
			Bindings: r.state.Bindings,
			Camera:   r.cameraBuffer,
			Viewport: viewport,
			State:    r.state.State,
			Cmd:      cmd,
			Frame:    r.frames,
		})
		r.profiler.EndScope(ScopeDispatch)
		if err != nil {
			return fmt.Errorf("renderer: dispatch: %w", err)
		}
	}

	if err := r.backend.Submit(cmd); err != nil {
		return fmt.Errorf("renderer: submit: %w", err)
	}
	return nil
}

// uploadCamera packs the frame's active camera into the uniform buffer.
func (r *renderer) uploadCamera(s scene.Scene) {
	cam := r.state.Camera
	if !cam.Valid() {
		if !r.cameraWarned {
			common.Logger().Warn("renderer: scene has no enabled camera", "scene", s.Name())
			r.cameraWarned = true
		}
		return
	}
	near, far := cam.NearFar()
	u := camera.NewGPUCameraUniform(cam.View(), cam.Projection(), cam.GlobalPosition(), cam.FocalLength(), cam.ApertureRadius(), near, far)
	copy(r.cameraBuffer.Mapped(), u.Marshal())
	r.cameraBuffer.Flush(0, r.cameraBuffer.Size())
}

func (r *renderer) CameraBuffer() backend.Buffer {
	return r.cameraBuffer
}

func (r *renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true
	r.cameraBuffer.Release()
}

// Package engine drives frames: it applies queued actions to the scene, advances
// animation, keeps the raytracer in sync with the scene, dispatches rays, waits for the
// session, and either presents the frame in a window or hands it back to the caller.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/game_object"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rt/engine/log"
	"github.com/Carmen-Shannon/oxy-rt/engine/profiler"
	"github.com/Carmen-Shannon/oxy-rt/engine/raytracing"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	"github.com/Carmen-Shannon/oxy-rt/engine/scene"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
	"github.com/Carmen-Shannon/oxy-rt/engine/window"
)

var logger = log.New("engine")

// ErrNoWindow is returned by Run when the engine was built without a window or renderer.
var ErrNoWindow = errors.New("engine has no window to present to")

const actionQueueSize = 64

// engine implements the Engine interface.
type engine struct {
	mu sync.Mutex

	session gpu.Session
	scene   scene.Scene
	rt      raytracing.Raytracer
	rtOpts  []raytracing.RaytracerBuilderOption

	window   window.Window
	renderer renderer.Renderer

	textures texture.Library
	texture  *texture.Texture

	actions chan Action
	keyMap  map[uint32]Action

	selected game_object.GameObject
	paused   bool
	setUp    bool
	frames   uint64

	profiler         *profiler.Profiler
	profilingEnabled bool

	tickCallback     func(deltaTime float32)
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	quitChannel chan struct{}
	quitOnce    sync.Once
}

// Engine owns one scene and the raytracer that renders it.
type Engine interface {
	// Session returns the GPU session every resource is created on.
	Session() gpu.Session

	// Scene returns the rendered scene.
	Scene() scene.Scene

	// Raytracer returns the raytracer bound to the scene.
	Raytracer() raytracing.Raytracer

	// Textures returns the engine's texture library.
	Textures() texture.Library

	// Window returns the window, or nil when rendering headless.
	Window() window.Window

	// Profiler returns the frame profiler.
	Profiler() *profiler.Profiler

	// EnableProfiler enables periodic profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables periodic profiling output.
	DisableProfiler()

	// Selected returns the object keyboard actions apply to, or nil for an empty scene.
	Selected() game_object.GameObject

	// Enqueue queues an action for the start of the next frame. Actions beyond the queue
	// capacity are dropped with a warning.
	//
	// Parameters:
	//   - a: the action to apply
	Enqueue(a Action)

	// HandleKey enqueues the action bound to a key code; unbound keys are ignored.
	//
	// Parameters:
	//   - keyCode: virtual key code as reported by the window
	HandleKey(keyCode uint32)

	// SetTickCallback registers a function called after each frame's scene update and
	// before the raytracer syncs, for game logic that edits the scene.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional frame rate cap for Run. Pass 0 to uncap.
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// RenderFrame runs one frame: drains queued actions, updates the scene, syncs the
	// raytracer, dispatches rays, and waits for the session to finish.
	//
	// Parameters:
	//   - dt: seconds since the previous frame
	//
	// Returns:
	//   - *image.RGBA: the finished frame
	//   - error: any error from setup, sync, dispatch, or the session
	RenderFrame(dt float32) (*image.RGBA, error)

	// Frames returns the number of frames rendered.
	Frames() uint64

	// Run renders and presents frames until the window closes or Quit is called.
	// Must be called from the main thread.
	//
	// Returns:
	//   - error: ErrNoWindow, or the first frame error
	Run() error

	// Quit stops Run after the current frame. Safe to call multiple times.
	Quit()

	// Release frees the raytracer, textures and presenter. The session and scene stay with the caller.
	Release()
}

var _ Engine = &engine{}

// NewEngine creates an Engine rendering s on session.
// The raytracer resolution follows the scene camera.
//
// Parameters:
//   - session: the GPU session to render on
//   - s: the scene to render
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: gpu.ErrUnsupportedHardware or an allocation error from the raytracer
func NewEngine(session gpu.Session, s scene.Scene, options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		session:     session,
		scene:       s,
		actions:     make(chan Action, actionQueueSize),
		keyMap:      DefaultKeyMap,
		profiler:    profiler.NewProfiler(),
		quitChannel: make(chan struct{}),
	}
	for _, opt := range options {
		opt(e)
	}

	width, height := s.Camera().Resolution()
	opts := append([]raytracing.RaytracerBuilderOption{raytracing.WithResolution(width, height)}, e.rtOpts...)
	rt, err := raytracing.NewRaytracer(session, opts...)
	if err != nil {
		return nil, fmt.Errorf("create raytracer: %w", err)
	}
	e.rt = rt

	e.textures = texture.NewLibrary(session)
	if e.texture == nil {
		tex, err := e.textures.Load("checker", common.Checkerboard(64, 8, [4]uint8{235, 235, 235, 255}, [4]uint8{40, 40, 40, 255}))
		if err != nil {
			rt.Release()
			return nil, fmt.Errorf("load default texture: %w", err)
		}
		e.texture = tex
	}

	if objs := s.Objects(); len(objs) > 0 {
		e.selected = objs[0]
	}

	if e.window != nil {
		e.window.SetKeyDownCallback(e.HandleKey)
		e.window.SetScrollCallback(func(delta float32) {
			if delta > 0 {
				e.Enqueue(ActionZoomIn)
			} else if delta < 0 {
				e.Enqueue(ActionZoomOut)
			}
		})
		e.window.SetResizeCallback(e.resize)
	}
	return e, nil
}

func (e *engine) Session() gpu.Session {
	return e.session
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) Raytracer() raytracing.Raytracer {
	return e.rt
}

func (e *engine) Textures() texture.Library {
	return e.textures
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

func (e *engine) Selected() game_object.GameObject {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

func (e *engine) Enqueue(a Action) {
	select {
	case e.actions <- a:
	default:
		logger.Warningf("action queue full, dropping %s", a)
	}
}

func (e *engine) HandleKey(keyCode uint32) {
	if a, ok := e.keyMap[keyCode]; ok {
		e.Enqueue(a)
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

func (e *engine) RenderFrame(dt float32) (*image.RGBA, error) {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.drainActions()
	if e.paused {
		dt = 0
	}
	e.scene.Update(dt)
	if e.tickCallback != nil {
		e.tickCallback(dt)
	}

	if !e.setUp {
		if err := e.rt.Setup(e.scene); err != nil {
			return nil, fmt.Errorf("set up raytracer: %w", err)
		}
		e.setUp = true
	} else if err := e.rt.Sync(e.scene); err != nil {
		return nil, fmt.Errorf("sync raytracer: %w", err)
	}

	if err := e.rt.UploadConstants(e.scene.Camera(), e.scene.Light()); err != nil {
		return nil, err
	}
	if err := e.rt.RecordDispatch(); err != nil {
		return nil, err
	}
	if err := e.session.Flush(context.Background()); err != nil {
		return nil, fmt.Errorf("frame %d: %w", e.frames, err)
	}
	e.rt.Retire()

	img, err := e.rt.Image()
	if err != nil {
		return nil, err
	}
	e.frames++
	e.profiler.Frame(time.Since(start), e.rt.Stats())
	if e.profilingEnabled {
		e.profiler.Tick()
	}
	return img, nil
}

// drainActions applies every queued action. Caller must hold the mutex.
func (e *engine) drainActions() {
	for {
		select {
		case a := <-e.actions:
			e.apply(a)
		default:
			return
		}
	}
}

// apply performs one action. Caller must hold the mutex.
func (e *engine) apply(a Action) {
	logger.Debugf("action: %s", a)
	cam := e.scene.Camera()

	switch a {
	case ActionSelectNext:
		e.selectNext()
	case ActionToggleTexture:
		if e.selected == nil {
			return
		}
		if e.selected.Texture() == nil {
			e.selected.SetTexture(e.texture)
		} else {
			e.selected.SetTexture(nil)
		}
	case ActionToggleReflection:
		if e.selected != nil {
			e.selected.Material().ToggleReflection()
		}
	case ActionToggleOutline:
		if e.selected != nil {
			e.selected.Material().ToggleOutline()
		}
	case ActionToggleShadows:
		e.scene.Light().ToggleShadows()
	case ActionToggleShadowRayType:
		e.rt.SetShadowRayType(!e.rt.ShadowRayType())
	case ActionCycleSampler:
		e.rt.SetSampler(e.rt.Sampler().Next())
		logger.Noticef("sampler: %s", e.rt.Sampler())
	case ActionToggleBackground:
		cam.ToggleBackground()
	case ActionRemoveSelected:
		e.removeSelected()
	case ActionTogglePause:
		e.paused = !e.paused
	case ActionOrbitLeft, ActionOrbitRight, ActionOrbitUp, ActionOrbitDown, ActionZoomIn, ActionZoomOut:
		ctrl := cam.Controller()
		if ctrl == nil {
			return
		}
		switch a {
		case ActionOrbitLeft:
			ctrl.OrbitLeft()
		case ActionOrbitRight:
			ctrl.OrbitRight()
		case ActionOrbitUp:
			ctrl.OrbitUp()
		case ActionOrbitDown:
			ctrl.OrbitDown()
		case ActionZoomIn:
			ctrl.Zoom(1)
		case ActionZoomOut:
			ctrl.Zoom(-1)
		}
	}
	e.updateTitle()
}

// selectNext moves the selection to the object after the current one in slot order.
// Caller must hold the mutex.
func (e *engine) selectNext() {
	objs := e.scene.Objects()
	if len(objs) == 0 {
		e.selected = nil
		return
	}
	next := 0
	if e.selected != nil {
		for i, obj := range objs {
			if obj.ID() == e.selected.ID() {
				next = (i + 1) % len(objs)
				break
			}
		}
	}
	e.selected = objs[next]
}

// removeSelected removes the selected object from the scene and selects the next one.
// Caller must hold the mutex.
func (e *engine) removeSelected() {
	if e.selected == nil {
		return
	}
	removed := e.scene.Remove(e.selected.ID())
	e.selected = nil
	if removed != nil {
		logger.Noticef("removed %s", removed.Name())
		// the previous frame has completed, nothing in flight reads its material
		removed.Release()
	}
	e.selectNext()
}

// updateTitle shows the selection and toggles in the window title. Caller must hold the mutex.
func (e *engine) updateTitle() {
	if e.window == nil {
		return
	}
	name := "-"
	if e.selected != nil {
		name = e.selected.Name()
	}
	e.window.SetTitle(fmt.Sprintf("oxy-rt | %s | shadows %t | shadow rays %t | sampler %s",
		name, e.scene.Light().Shadows(), e.rt.ShadowRayType(), e.rt.Sampler()))
}

// resize follows the window framebuffer. Runs on the window thread between frames.
func (e *engine) resize(width, height int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scene.Camera().SetResolution(uint32(width), uint32(height))
	if err := e.rt.Resize(uint32(width), uint32(height)); err != nil {
		logger.Errorf("resize to %dx%d: %v", width, height, err)
		e.signalQuit()
		return
	}
	if e.renderer != nil {
		e.renderer.Resize(width, height)
	}
}

func (e *engine) Run() error {
	if e.window == nil || e.renderer == nil {
		return ErrNoWindow
	}

	var runErr error
	last := time.Now()
	e.mu.Lock()
	e.updateTitle()
	e.mu.Unlock()

	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quitChannel:
			_ = e.window.Close()
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now

		img, err := e.RenderFrame(dt)
		if err == nil {
			err = e.renderer.Present(img)
		}
		if err != nil {
			logger.Errorf("frame failed: %v", err)
			runErr = err
			e.signalQuit()
			return
		}

		e.mu.Lock()
		limit := e.renderFrameLimit
		e.mu.Unlock()
		if limit > 0 {
			if remaining := limit - time.Since(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	})
	e.window.ProcessMessages()
	return runErr
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel. Uses sync.Once so the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.renderer != nil {
		e.renderer.Release()
		e.renderer = nil
	}
	e.rt.Release()
	e.textures.Release()
}

// Package renderer presents ray-traced frames in a window. The image produced by the
// software ray-tracing session is uploaded into a WebGPU texture each frame and drawn
// onto the window surface with a single fullscreen triangle.
package renderer

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/engine/log"
	"github.com/Carmen-Shannon/oxy-rt/engine/window"
)

var logger = log.New("renderer")

// ErrEmptyFrame is returned when Present receives an image with no pixels.
var ErrEmptyFrame = errors.New("frame has no pixels")

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	filter               FilterMode

	width, height int
	frames        uint64
}

// Renderer blits finished frames onto a window surface.
type Renderer interface {
	// Resize reconfigures the surface for a new window size.
	// This should be called from the window's resize callback.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// Present uploads img and draws it over the whole surface. The frame texture is
	// recreated whenever the image size changes.
	//
	// Parameters:
	//   - img: the finished frame
	//
	// Returns:
	//   - error: ErrEmptyFrame, or an error if the surface could not be acquired
	Present(img *image.RGBA) error

	// SetPresentMode changes the surface present mode; it applies from the next Resize.
	//
	// Parameters:
	//   - mode: the new PresentMode
	SetPresentMode(mode PresentMode)

	// Frames returns the number of frames presented so far.
	Frames() uint64

	// Release frees the GPU objects owned by the renderer.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer bound to the surface of w.
// Panics if no adapter or device is available, as there is nothing to present with.
//
// Parameters:
//   - backendType: the GPU backend to present with
//   - w: the window whose surface receives the frames
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the newly created renderer
func NewRenderer(backendType RendererBackendType, w window.Window, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
	}

	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend = newWGPURendererBackend(w.SurfaceDescriptor(), r.forceFallbackAdapter, r.filter)
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	r.width, r.height = w.Width(), w.Height()
	r.backend.ConfigureSurface(r.width, r.height)
	logger.Infof("presenting to %dx%d surface", r.width, r.height)
	return r
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if width <= 0 || height <= 0 {
		return
	}
	r.width, r.height = width, height
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Present(img *image.RGBA) error {
	if img == nil || img.Rect.Empty() {
		return ErrEmptyFrame
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	size := img.Rect.Size()
	if err := r.backend.UploadFrame(img.Pix, img.Stride, uint32(size.X), uint32(size.Y)); err != nil {
		return fmt.Errorf("upload frame: %w", err)
	}
	if err := r.backend.Blit(); err != nil {
		return fmt.Errorf("blit frame: %w", err)
	}
	r.frames++
	return nil
}

func (r *renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.Release()
}

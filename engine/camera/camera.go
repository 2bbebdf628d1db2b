package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
)

// Background modes understood by the miss program.
const (
	BackgroundSky   float32 = 0
	BackgroundSolid float32 = 1
)

type cameraImpl struct {
	mu sync.Mutex

	up common.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	width, height  uint32
	backgroundMode float32

	viewMatrix              common.Mat4
	projectionMatrix        common.Mat4
	inverseViewMatrix       common.Mat4
	inverseProjectionMatrix common.Mat4

	controller CameraController
}

// Camera holds perspective settings and derives the inverse matrices the ray-generation
// program uses to turn a launch index into a primary ray.
type Camera interface {
	// Position returns the eye position, or the origin without a controller.
	Position() common.Vec3

	Fov() float32
	Aspect() float32
	Near() float32
	Far() float32

	// Resolution returns the image size the camera renders into.
	Resolution() (width, height uint32)

	// SetResolution sets the image size and the aspect ratio derived from it.
	//
	// Parameters:
	//   - width, height: image size in pixels
	SetResolution(width, height uint32)

	// SetFov sets the vertical field of view in radians.
	SetFov(fov float32)

	// BackgroundMode returns the miss program background selector.
	BackgroundMode() float32

	// ToggleBackground switches between the sky gradient and the solid background.
	ToggleBackground()

	ViewMatrix() common.Mat4
	ProjectionMatrix() common.Mat4
	InverseViewMatrix() common.Mat4
	InverseProjectionMatrix() common.Mat4

	// Controller returns the attached CameraController, or nil.
	Controller() CameraController

	// SetController attaches a controller.
	SetController(ctrl CameraController)

	// Update recomputes the matrices from the controller. Call once per frame.
	Update()

	// GPU returns the constant buffer contents for the current state.
	GPU() GPUCamera
}

var _ Camera = &cameraImpl{}

// NewCamera creates a Camera with a 45 degree field of view.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		up:     common.Vec3{0, 1, 0},
		fov:    45.0 * (math.Pi / 180.0),
		aspect: 1.0,
		near:   0.1,
		far:    1000.0,
		width:  1,
		height: 1,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Position() common.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return common.Vec3{}
	}
	return c.controller.Position()
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Resolution() (uint32, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *cameraImpl) SetResolution(width, height uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setResolution(width, height)
	c.updateMatrices()
}

func (c *cameraImpl) setResolution(width, height uint32) {
	c.width, c.height = max(width, 1), max(height, 1)
	c.aspect = float32(c.width) / float32(c.height)
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) BackgroundMode() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backgroundMode
}

func (c *cameraImpl) ToggleBackground() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backgroundMode == BackgroundSky {
		c.backgroundMode = BackgroundSolid
	} else {
		c.backgroundMode = BackgroundSky
	}
}

func (c *cameraImpl) ViewMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) InverseViewMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseViewMatrix
}

func (c *cameraImpl) InverseProjectionMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseProjectionMatrix
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
	c.updateMatrices()
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatrices()
}

func (c *cameraImpl) GPU() GPUCamera {
	c.mu.Lock()
	defer c.mu.Unlock()
	return GPUCamera{
		InvView:        c.inverseViewMatrix,
		InvProj:        c.inverseProjectionMatrix,
		RX:             float32(c.width),
		RY:             float32(c.height),
		BackgroundMode: c.backgroundMode,
	}
}

// updateMatrices recalculates every matrix. Without a controller the eye sits at the
// origin looking down -Z. Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	eye, target := common.Vec3{}, common.Vec3{0, 0, -1}
	if c.controller != nil {
		eye, target = c.controller.Position(), c.controller.Target()
	}

	common.LookAt(c.viewMatrix[:], eye, target, c.up)
	common.Perspective(c.projectionMatrix[:], c.fov, c.aspect, c.near, c.far)
	common.Invert4(c.inverseViewMatrix[:], c.viewMatrix[:])
	common.Invert4(c.inverseProjectionMatrix[:], c.projectionMatrix[:])
}

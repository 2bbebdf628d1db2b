package camera

// CameraBuilderOption is a functional option for configuring a Camera.
type CameraBuilderOption func(*cameraImpl)

// WithFov sets the camera's vertical field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithResolution sets the output image size; the aspect ratio follows from it.
//
// Parameters:
//   - width, height: image size in pixels
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's resolution
func WithResolution(width, height uint32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.setResolution(width, height)
	}
}

// WithClipPlanes sets the near and far plane distances.
//
// Parameters:
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: a function that sets the clip planes
func WithClipPlanes(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
		c.far = far
	}
}

// WithBackgroundMode sets the initial miss program background selector.
//
// Parameters:
//   - mode: BackgroundSky or BackgroundSolid
//
// Returns:
//   - CameraBuilderOption: a function that sets the background mode
func WithBackgroundMode(mode float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.backgroundMode = mode
	}
}

// WithController attaches a controller to the camera.
//
// Parameters:
//   - ctrl: the controller to attach
//
// Returns:
//   - CameraBuilderOption: functional option to set the controller
func WithController(ctrl CameraController) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.controller = ctrl
	}
}

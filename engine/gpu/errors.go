package gpu

import "errors"

var (
	// ErrUnsupportedHardware is returned when the session lacks the ray-tracing capability tier.
	ErrUnsupportedHardware = errors.New("device does not support ray tracing")
	// ErrOutOfMemory is returned when an allocation would exceed the session's memory budget.
	ErrOutOfMemory = errors.New("out of device memory")
	// ErrDeviceLost is returned once a submitted command list failed on the device timeline.
	ErrDeviceLost = errors.New("device lost")
	// ErrInvalidAddress is returned when a device address does not resolve to a live resource.
	ErrInvalidAddress = errors.New("invalid device address")
	// ErrNotMappable is returned when the CPU writes into a buffer outside the upload heap.
	ErrNotMappable = errors.New("buffer is not CPU visible")
	// ErrReleased is returned when a released resource is used.
	ErrReleased = errors.New("resource released")
	// ErrUnknownShader is returned for a shader export or hit group the pipeline does not define.
	ErrUnknownShader = errors.New("unknown shader export")
	// ErrInvalidDescriptor is returned for out-of-range or empty descriptor heap slots.
	ErrInvalidDescriptor = errors.New("invalid descriptor")
)

package raytracing

import "errors"

var (
	// ErrNotSetUp is returned by frame operations called before Setup.
	ErrNotSetUp = errors.New("raytracer is not set up")
	// ErrSlotMismatch is returned by debug checks when an instance's hit group index does
	// not point at its own object's record.
	ErrSlotMismatch = errors.New("instance and shader table disagree on object order")
)

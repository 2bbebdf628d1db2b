package accel

import "github.com/Carmen-Shannon/oxy-rt/engine/gpu"

// TopLevelBuilderOption is a function that configures a TopLevelStructure during construction.
type TopLevelBuilderOption func(*topLevelImpl)

// WithLabel sets the debug label used for the structure's buffers.
//
// Parameters:
//   - label: the label prefix
//
// Returns:
//   - TopLevelBuilderOption: a function that applies the label to a topLevelImpl
func WithLabel(label string) TopLevelBuilderOption {
	return func(t *topLevelImpl) {
		t.label = label
	}
}

// WithInstanceFlags sets the flags written into every instance descriptor.
// The default treats counter-clockwise triangles as front facing.
//
// Parameters:
//   - flags: the instance flags
//
// Returns:
//   - TopLevelBuilderOption: a function that applies the flags to a topLevelImpl
func WithInstanceFlags(flags gpu.InstanceFlags) TopLevelBuilderOption {
	return func(t *topLevelImpl) {
		t.flags = flags
	}
}

package gpu

import "runtime"

const (
	defaultMemoryBudget       = 1 << 30
	defaultDescriptorCapacity = 64
	defaultQueueDepth         = 8
)

// SessionBuilderOption configures a software session.
type SessionBuilderOption func(*softwareSession)

// WithLabel sets the backend label reported in Capabilities.
//
// Parameters:
//   - label: the backend name
//
// Returns:
//   - SessionBuilderOption: a function that applies the label
func WithLabel(label string) SessionBuilderOption {
	return func(s *softwareSession) {
		s.caps.Backend = label
	}
}

// WithWorkers sets how many goroutines execute ray-generation rows in parallel.
//
// Parameters:
//   - n: worker count; values below 1 keep the default of runtime.NumCPU()
//
// Returns:
//   - SessionBuilderOption: a function that applies the worker count
func WithWorkers(n int) SessionBuilderOption {
	return func(s *softwareSession) {
		if n > 0 {
			s.caps.Workers = n
		}
	}
}

// WithMemoryBudget caps the bytes all live buffers may occupy. Zero disables the cap.
//
// Parameters:
//   - bytes: the budget
//
// Returns:
//   - SessionBuilderOption: a function that applies the budget
func WithMemoryBudget(bytes uint64) SessionBuilderOption {
	return func(s *softwareSession) {
		s.caps.MemoryBudget = bytes
	}
}

// WithDescriptorCapacity sets the number of shader-visible descriptor heap slots.
//
// Parameters:
//   - slots: slot count
//
// Returns:
//   - SessionBuilderOption: a function that applies the capacity
func WithDescriptorCapacity(slots int) SessionBuilderOption {
	return func(s *softwareSession) {
		if slots > 0 {
			s.caps.DescriptorCapacity = slots
		}
	}
}

// WithTier overrides the ray-tracing tier the session reports. TierNotSupported makes
// the session refuse ray-tracing pipelines, mirroring a device without ray tracing.
//
// Parameters:
//   - tier: the tier to report
//
// Returns:
//   - SessionBuilderOption: a function that applies the tier
func WithTier(tier RaytracingTier) SessionBuilderOption {
	return func(s *softwareSession) {
		s.caps.Tier = tier
	}
}

// WithRecursionLimit lowers the deepest TraceRay nesting pipelines may declare.
//
// Parameters:
//   - depth: 1 to MaxRecursionDepthLimit
//
// Returns:
//   - SessionBuilderOption: a function that applies the limit
func WithRecursionLimit(depth uint32) SessionBuilderOption {
	return func(s *softwareSession) {
		if depth >= 1 && depth <= MaxRecursionDepthLimit {
			s.caps.MaxRecursionDepth = depth
		}
	}
}

func defaultCapabilities() Capabilities {
	return Capabilities{
		Backend:              "software",
		Tier:                 TierEmulated,
		MaxRecursionDepth:    MaxRecursionDepthLimit,
		ShaderIdentifierSize: ShaderIdentifierSize,
		DescriptorIncrement:  DescriptorIncrement,
		DescriptorCapacity:   defaultDescriptorCapacity,
		MemoryBudget:         defaultMemoryBudget,
		Workers:              runtime.NumCPU(),
	}
}

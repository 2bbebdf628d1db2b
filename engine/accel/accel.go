// Package accel records bottom-level and top-level acceleration-structure builds on a gpu.Session.
package accel

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
)

var (
	// ErrRefitBeforeBuild is returned when a top-level refit is requested before any build.
	ErrRefitBeforeBuild = errors.New("accel: refit before the top-level structure was built")

	// ErrInstanceCountChanged is returned when a refit would change the instance count.
	// The caller must rebuild instead.
	ErrInstanceCountChanged = errors.New("accel: instance count changed since the last build")
)

// allocate creates the result and scratch buffers a build needs.
func allocate(session gpu.Session, label string, resultSize, scratchSize uint64) (result, scratch gpu.Buffer, err error) {
	result, err = session.CreateBuffer(gpu.BufferDescriptor{
		Label: label + " result",
		Size:  resultSize,
		Heap:  gpu.HeapTypeDefault,
		Usage: gpu.BufferUsageAccelerationStructure,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("allocate %s result: %w", label, err)
	}
	scratch, err = session.CreateBuffer(gpu.BufferDescriptor{
		Label: label + " scratch",
		Size:  scratchSize,
		Heap:  gpu.HeapTypeDefault,
		Usage: gpu.BufferUsageUnorderedAccess,
	})
	if err != nil {
		result.Release()
		return nil, nil, fmt.Errorf("allocate %s scratch: %w", label, err)
	}
	return result, scratch, nil
}

package gpu

import (
	"context"
	"fmt"
	"sync"
)

// Fence is a monotonically increasing completion counter signalled by the device timeline.
type Fence interface {
	// Completed returns the highest value the device has signalled.
	Completed() uint64

	// Wait blocks until the fence reaches value or ctx is done.
	// Pass context.Background() for an infinite wait.
	//
	// Parameters:
	//   - ctx: cancellation for the wait
	//   - value: the fence value to wait for
	//
	// Returns:
	//   - error: ctx.Err(), or ErrDeviceLost wrapping the failure that stopped the timeline
	Wait(ctx context.Context, value uint64) error
}

type fence struct {
	mu        sync.Mutex
	completed uint64
	lost      error
	changed   chan struct{}
}

var _ Fence = &fence{}

func newFence() *fence {
	return &fence{changed: make(chan struct{})}
}

func (f *fence) Completed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// signal advances the fence. A non-nil cause marks the device lost; every waiter,
// current and future, observes the loss.
func (f *fence) signal(value uint64, cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value > f.completed {
		f.completed = value
	}
	if cause != nil && f.lost == nil {
		f.lost = cause
	}
	close(f.changed)
	f.changed = make(chan struct{})
}

func (f *fence) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost != nil {
		return fmt.Errorf("%w: %w", ErrDeviceLost, f.lost)
	}
	return nil
}

func (f *fence) Wait(ctx context.Context, value uint64) error {
	for {
		f.mu.Lock()
		if f.lost != nil {
			lost := f.lost
			f.mu.Unlock()
			return fmt.Errorf("%w: %w", ErrDeviceLost, lost)
		}
		if f.completed >= value {
			f.mu.Unlock()
			return nil
		}
		changed := f.changed
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

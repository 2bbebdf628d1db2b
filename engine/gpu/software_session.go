package gpu

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-rt/engine/log"
)

type softwareSession struct {
	mu         sync.Mutex
	caps       Capabilities
	memory     *deviceMemory
	heap       *descriptorHeap
	fence      *fence
	programs   *programRegistry
	structures *structureStore
	pool       worker.DynamicWorkerPool
	list       *commandList
	nextValue  uint64
	queue      chan submission
	done       chan struct{}
	released   bool
	logger     log.Logger
}

type submission struct {
	commands []command
	value    uint64
}

var _ Session = &softwareSession{}

// NewSoftwareSession creates a session whose device timeline runs on a goroutine and
// whose ray dispatches fan out over a worker pool.
//
// Parameters:
//   - options: variadic list of SessionBuilderOption functions to configure the session
//
// Returns:
//   - Session: the running session
func NewSoftwareSession(options ...SessionBuilderOption) Session {
	s := &softwareSession{
		caps:   defaultCapabilities(),
		logger: log.New("gpu"),
	}
	for _, option := range options {
		option(s)
	}

	s.memory = newDeviceMemory(s.caps.MemoryBudget)
	s.heap = newDescriptorHeap(s.caps.DescriptorCapacity)
	s.fence = newFence()
	s.programs = newProgramRegistry()
	s.structures = newStructureStore()
	s.pool = worker.NewDynamicWorkerPool(s.caps.Workers, 256, time.Second)
	s.list = &commandList{}
	s.queue = make(chan submission, defaultQueueDepth)
	s.done = make(chan struct{})

	go s.timeline()

	s.logger.Infof("session %q ready: tier %s, %d workers, %d descriptor slots", s.caps.Backend, s.caps.Tier, s.caps.Workers, s.caps.DescriptorCapacity)
	return s
}

func (s *softwareSession) Capabilities() Capabilities {
	return s.caps
}

func (s *softwareSession) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	b, err := s.memory.alloc(s, desc)
	if err != nil {
		return nil, err
	}
	s.logger.Debugf("buffer %q: %d bytes at 0x%x (%s heap)", desc.Label, desc.Size, b.base, desc.Heap)
	return b, nil
}

func (s *softwareSession) CreateTexture(desc TextureDescriptor, pixels []byte) (Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture %q: zero dimension %dx%d", desc.Label, desc.Width, desc.Height)
	}
	want := int(desc.Width) * int(desc.Height) * 4
	if len(pixels) != want {
		return nil, fmt.Errorf("texture %q: %d bytes of pixel data, want %d for %dx%d RGBA8", desc.Label, len(pixels), want, desc.Width, desc.Height)
	}
	t := &softwareTexture{desc: desc, pixels: make([]byte, want)}
	copy(t.pixels, pixels)
	return t, nil
}

func (s *softwareSession) DescriptorHeap() DescriptorHeap {
	return s.heap
}

func (s *softwareSession) AccelerationStructurePrebuildInfo(inputs AccelerationStructureInputs) (PrebuildInfo, error) {
	return prebuildSizes(inputs)
}

func (s *softwareSession) CreateRayTracingPipeline(desc RayTracingPipelineDescriptor) (RayTracingPipeline, error) {
	if !s.caps.SupportsRaytracing() {
		return nil, fmt.Errorf("pipeline %q on %q: %w", desc.Label, s.caps.Backend, ErrUnsupportedHardware)
	}
	p, err := compilePipeline(s, desc)
	if err != nil {
		return nil, err
	}
	s.logger.Debugf("pipeline %q compiled with %d programs, recursion depth %d", p.label, len(p.programs), p.maxDepth)
	return p, nil
}

func (s *softwareSession) CommandList() CommandList {
	return s.list
}

func (s *softwareSession) Submit() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return 0, fmt.Errorf("submit: %w", ErrReleased)
	}
	if err := s.fence.err(); err != nil {
		return 0, err
	}
	s.nextValue++
	s.queue <- submission{commands: s.list.take(), value: s.nextValue}
	return s.nextValue, nil
}

func (s *softwareSession) Fence() Fence {
	return s.fence
}

func (s *softwareSession) Flush(ctx context.Context) error {
	value, err := s.Submit()
	if err != nil {
		return err
	}
	return s.fence.Wait(ctx, value)
}

func (s *softwareSession) MemoryInUse() uint64 {
	return s.memory.inUse()
}

func (s *softwareSession) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	s.pool.Stop()
	s.logger.Infof("session %q released, %d bytes still allocated", s.caps.Backend, s.memory.inUse())
}

// timeline executes submissions in order and signals the fence after each one.
// The first failure marks the device lost; later submissions only advance the fence.
func (s *softwareSession) timeline() {
	defer close(s.done)
	for sub := range s.queue {
		var cause error
		if s.fence.err() == nil {
			if cause = s.execute(sub.commands); cause != nil {
				s.logger.Errorf("device lost at fence value %d: %v", sub.value, cause)
			}
		}
		s.fence.signal(sub.value, cause)
	}
}

func (s *softwareSession) execute(commands []command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("device timeline panic: %v", r)
		}
	}()

	var bound *softwarePipeline
	for i, c := range commands {
		switch c := c.(type) {
		case buildCommand:
			err = s.buildAccelerationStructure(c.desc)
		case barrierCommand:
			if c.buffer != nil && c.buffer.Address().IsNull() {
				err = fmt.Errorf("barrier on released buffer %q", c.buffer.Label())
			}
		case pipelineCommand:
			p, ok := c.pipeline.(*softwarePipeline)
			if !ok || p.session != s {
				err = fmt.Errorf("pipeline %q was not created by this session", c.pipeline.Label())
				break
			}
			bound = p
		case dispatchCommand:
			if bound == nil {
				err = fmt.Errorf("DispatchRays without a pipeline state")
				break
			}
			err = s.dispatchRays(bound, c.desc)
		}
		if err != nil {
			return fmt.Errorf("command %d (%s): %w", i, c.name(), err)
		}
	}
	return nil
}

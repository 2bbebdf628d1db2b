package accel

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
)

// Instance places a bottom-level structure in the world.
type Instance struct {
	BLAS          BottomLevelStructure
	Transform     common.Mat4
	InstanceID    uint32
	HitGroupIndex uint32
	Mask          uint8
}

// TopLevelStructure is the scene-wide structure over instances. It starts unbuilt; Build
// moves it to built and Refit is only valid afterwards.
//
// Both Build and Refit rewrite the instance descriptor buffer on the CPU, so the caller must
// have waited for the fence covering any previous use of the structure.
type TopLevelStructure interface {
	// Build retires any previous buffers, allocates new ones sized for the instances and
	// records a full build. Retired buffers stay alive until Retire, so builds already
	// recorded against them remain valid until the fence covering them is reached.
	//
	// Parameters:
	//   - instances: ordered instance list; index i becomes instance i
	//
	// Returns:
	//   - error: a wrapped sizing or allocation error
	Build(instances []Instance) error

	// Refit rewrites the instance descriptors and records an in-place update.
	//
	// Parameters:
	//   - instances: the same number of instances as the last build
	//
	// Returns:
	//   - error: ErrRefitBeforeBuild, ErrInstanceCountChanged or a wrapped write error
	Refit(instances []Instance) error

	// Built reports whether Build has succeeded at least once.
	Built() bool

	// InstanceCount returns the instance count of the last build.
	InstanceCount() int

	// Instances returns a copy of the instances last written.
	Instances() []Instance

	// Address returns the result address bound to the TLAS descriptor slot.
	Address() gpu.DeviceAddress

	// Result returns the result buffer, or nil before the first build.
	Result() gpu.Buffer

	// Retire frees the buffers superseded by Build. Call it once the fence covering every
	// command recorded before the last Build has been reached.
	Retire()

	// Release frees every buffer, retired or live.
	Release()
}

type topLevelImpl struct {
	mu        sync.Mutex
	session   gpu.Session
	label     string
	flags     gpu.InstanceFlags
	result    gpu.Buffer
	scratch   gpu.Buffer
	descs     gpu.Buffer
	retired   []gpu.Buffer
	instances []Instance
	built     bool
}

var _ TopLevelStructure = &topLevelImpl{}

// NewTopLevelStructure creates an unbuilt top-level structure.
//
// Parameters:
//   - session: the session to allocate from and record on
//   - options: variadic list of TopLevelBuilderOption functions
//
// Returns:
//   - TopLevelStructure: the unbuilt structure
func NewTopLevelStructure(session gpu.Session, options ...TopLevelBuilderOption) TopLevelStructure {
	t := &topLevelImpl{
		session: session,
		label:   "tlas",
		flags:   gpu.InstanceFlagTriangleFrontCCW,
	}
	for _, option := range options {
		option(t)
	}
	return t
}

func (t *topLevelImpl) inputs(n int) gpu.AccelerationStructureInputs {
	in := gpu.AccelerationStructureInputs{
		Type:         gpu.AccelerationStructureTopLevel,
		Flags:        gpu.BuildFlagAllowUpdate,
		NumInstances: uint32(n),
	}
	if t.descs != nil {
		in.InstanceDescs = t.descs.Address()
	}
	return in
}

func (t *topLevelImpl) writeDescriptors(instances []Instance) error {
	raw := make([]byte, 0, len(instances)*gpu.InstanceDescSize)
	for i, inst := range instances {
		if inst.BLAS == nil {
			return fmt.Errorf("%s instance %d: nil bottom-level structure", t.label, i)
		}
		d := gpu.InstanceDesc{
			Transform:             common.RowMajor3x4(inst.Transform),
			InstanceID:            inst.InstanceID,
			InstanceMask:          inst.Mask,
			HitGroupIndex:         inst.HitGroupIndex,
			Flags:                 t.flags,
			AccelerationStructure: inst.BLAS.Address(),
		}
		raw = append(raw, d.Marshal()...)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := t.descs.Write(0, raw); err != nil {
		return fmt.Errorf("%s instance descriptors: %w", t.label, err)
	}
	return nil
}

func (t *topLevelImpl) releaseBuffers() {
	for _, b := range []gpu.Buffer{t.result, t.scratch, t.descs} {
		if b != nil {
			b.Release()
		}
	}
	t.result, t.scratch, t.descs = nil, nil, nil
}

// retireBuffers moves the live buffers onto the retired list.
func (t *topLevelImpl) retireBuffers() {
	for _, b := range []gpu.Buffer{t.result, t.scratch, t.descs} {
		if b != nil {
			t.retired = append(t.retired, b)
		}
	}
	t.result, t.scratch, t.descs = nil, nil, nil
}

func (t *topLevelImpl) freeRetired() {
	for _, b := range t.retired {
		b.Release()
	}
	t.retired = nil
}

func (t *topLevelImpl) Build(instances []Instance) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.retireBuffers()
	t.built = false
	t.instances = nil

	info, err := t.session.AccelerationStructurePrebuildInfo(t.inputs(len(instances)))
	if err != nil {
		return fmt.Errorf("%s prebuild: %w", t.label, err)
	}
	// one scratch serves both builds and refits
	result, scratch, err := allocate(t.session, t.label, info.ResultDataMaxSize, max(info.ScratchDataSize, info.UpdateScratchDataSize))
	if err != nil {
		return err
	}
	descs, err := t.session.CreateBuffer(gpu.BufferDescriptor{
		Label: t.label + " instance descriptors",
		Size:  uint64(max(len(instances), 1)) * gpu.InstanceDescSize,
		Heap:  gpu.HeapTypeUpload,
		Usage: gpu.BufferUsageInstanceDescs,
	})
	if err != nil {
		result.Release()
		scratch.Release()
		return fmt.Errorf("allocate %s instance descriptors: %w", t.label, err)
	}
	t.result, t.scratch, t.descs = result, scratch, descs

	if err := t.writeDescriptors(instances); err != nil {
		t.releaseBuffers()
		return err
	}

	cl := t.session.CommandList()
	cl.BuildRaytracingAccelerationStructure(gpu.BuildAccelerationStructureDesc{
		Inputs:      t.inputs(len(instances)),
		Destination: t.result.Address(),
		Scratch:     t.scratch.Address(),
	})
	cl.ResourceBarrierUAV(t.result)

	t.instances = append([]Instance(nil), instances...)
	t.built = true
	return nil
}

func (t *topLevelImpl) Refit(instances []Instance) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.built {
		return ErrRefitBeforeBuild
	}
	if len(instances) != len(t.instances) {
		return fmt.Errorf("%s refit with %d instances, built with %d: %w", t.label, len(instances), len(t.instances), ErrInstanceCountChanged)
	}
	if err := t.writeDescriptors(instances); err != nil {
		return err
	}

	in := t.inputs(len(instances))
	in.Flags |= gpu.BuildFlagPerformUpdate
	cl := t.session.CommandList()
	cl.BuildRaytracingAccelerationStructure(gpu.BuildAccelerationStructureDesc{
		Inputs:      in,
		Destination: t.result.Address(),
		Source:      t.result.Address(),
		Scratch:     t.scratch.Address(),
	})
	cl.ResourceBarrierUAV(t.result)

	copy(t.instances, instances)
	return nil
}

func (t *topLevelImpl) Built() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.built
}

func (t *topLevelImpl) InstanceCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.instances)
}

func (t *topLevelImpl) Instances() []Instance {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Instance(nil), t.instances...)
}

func (t *topLevelImpl) Address() gpu.DeviceAddress {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.result == nil {
		return gpu.NullAddress
	}
	return t.result.Address()
}

func (t *topLevelImpl) Result() gpu.Buffer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

func (t *topLevelImpl) Retire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.freeRetired()
}

func (t *topLevelImpl) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseBuffers()
	t.freeRetired()
	t.built = false
	t.instances = nil
}

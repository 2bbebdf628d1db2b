// Package raytracing ties the scene registry to the device: it builds the bottom-level
// structures of every geometry, the top-level structure over the objects, the ray-tracing
// pipeline and the shader binding table, and keeps them consistent frame to frame.
//
// Every operation that rewrites device memory assumes the caller waited for the fence
// covering the previous frame.
package raytracing

import (
	"fmt"
	"image"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/engine/accel"
	"github.com/Carmen-Shannon/oxy-rt/engine/camera"
	"github.com/Carmen-Shannon/oxy-rt/engine/game_object"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rt/engine/light"
	"github.com/Carmen-Shannon/oxy-rt/engine/log"
	"github.com/Carmen-Shannon/oxy-rt/engine/model"
	"github.com/Carmen-Shannon/oxy-rt/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-rt/engine/sbt"
	"github.com/Carmen-Shannon/oxy-rt/engine/shader"
)

var logger = log.New("raytracing")

// Source supplies the objects to render. scene.Scene satisfies it.
type Source interface {
	// Objects returns the objects ordered by render slot.
	Objects() []game_object.GameObject
	// Generation changes whenever objects are added or removed.
	Generation() uint64
}

// Stats counts the device work the raytracer recorded.
type Stats struct {
	BottomLevelBuilds uint64
	TopLevelBuilds    uint64
	Refits            uint64
	ShaderTableBuilds uint64
	PipelineBuilds    uint64
}

// Raytracer owns the acceleration structures, pipeline, shader table and output image of
// one session.
type Raytracer interface {
	// Setup uploads every model and material, builds the bottom-level structures, the
	// pipeline, the top-level structure and the shader table.
	//
	// Parameters:
	//   - src: the objects to render
	//
	// Returns:
	//   - error: a wrapped build error
	Setup(src Source) error

	// Sync brings the device state up to date for a frame: a full top-level and shader table
	// rebuild when the roster generation changed, a pipeline rebuild when the shadow ray type
	// or sampler changed, a shader table rebuild when texture bindings changed, otherwise a
	// refit with the current transforms.
	//
	// Parameters:
	//   - src: the objects to render
	//
	// Returns:
	//   - error: ErrNotSetUp, ErrSlotMismatch or a wrapped build error
	Sync(src Source) error

	// RefitTopLevel rewrites instance transforms and records an in-place update.
	RefitTopLevel() error

	// RebuildTopLevel records a full top-level build over the current plan.
	RebuildTopLevel() error

	// RebuildShaderTable regenerates the shader table from the current plan and pipeline.
	RebuildShaderTable() error

	// RebuildPipeline recompiles the pipeline and rebuilds the shader table and top-level
	// structure that depend on it.
	RebuildPipeline() error

	// UploadConstants writes the camera block every frame and the lighting block when the
	// light changed.
	//
	// Parameters:
	//   - cam: the camera
	//   - l: the light
	//
	// Returns:
	//   - error: a wrapped write error
	UploadConstants(cam camera.Camera, l light.Light) error

	// RecordDispatch binds the pipeline and records a dispatch over the output image.
	RecordDispatch() error

	// DispatchDesc returns the dispatch description of the current shader table.
	DispatchDesc() gpu.DispatchRaysDesc

	// Retire frees transient build memory and every resource superseded since the last
	// Retire. Call after the fence covering the commands recorded against them.
	Retire()

	// Resize recreates the output image.
	//
	// Parameters:
	//   - width, height: new image size
	//
	// Returns:
	//   - error: a wrapped allocation error
	Resize(width, height uint32) error

	Resolution() (width, height uint32)

	// SetShadowRayType selects whether the pipeline has a shadow ray type. Takes effect at the
	// next Sync.
	SetShadowRayType(enabled bool)
	ShadowRayType() bool

	// SetSampler selects the static sampler. Takes effect at the next Sync.
	SetSampler(sampler gpu.SamplerType)
	Sampler() gpu.SamplerType

	TopLevel() accel.TopLevelStructure
	Layout() sbt.Layout
	ShaderTable() gpu.Buffer
	Pipeline() pipeline.Pipeline

	// Plan returns a copy of the render plan.
	Plan() []PlanEntry

	Stats() Stats

	// Output returns the output image buffer, RGBA8 rows top to bottom.
	Output() gpu.Buffer

	// Image copies the output buffer into an image.
	Image() (*image.RGBA, error)

	// Release frees every device resource the raytracer owns.
	Release()
}

// releaser is a resource whose release waits for Retire.
type releaser interface {
	Release()
}

type raytracer struct {
	mu sync.Mutex

	session gpu.Session

	width, height     uint32
	shadowRays        bool
	sampler           gpu.SamplerType
	maxRecursionDepth uint32
	debugChecks       bool

	output       gpu.Buffer
	cameraBuffer gpu.Buffer
	lightBuffer  gpu.Buffer
	lightWritten bool

	blas    map[model.Model]accel.BottomLevelStructure
	scratch []accel.BottomLevelStructure
	tlas    accel.TopLevelStructure
	retired []releaser

	pipe          pipeline.Pipeline
	pipelineDirty bool

	table       sbt.Builder
	tableBuffer gpu.Buffer
	layout      sbt.Layout

	objects    []game_object.GameObject
	plan       []PlanEntry
	generation uint64
	texKey     string
	setUp      bool

	stats Stats
}

var _ Raytracer = &raytracer{}

// NewRaytracer allocates the output image and constant buffers and binds them to their
// descriptor heap slots.
//
// Parameters:
//   - session: the session to render with
//   - options: functional options to configure the raytracer
//
// Returns:
//   - Raytracer: the raytracer, ready for Setup
//   - error: gpu.ErrUnsupportedHardware or a wrapped allocation error
func NewRaytracer(session gpu.Session, options ...RaytracerBuilderOption) (Raytracer, error) {
	caps := session.Capabilities()
	if !caps.SupportsRaytracing() {
		return nil, fmt.Errorf("raytracer on %s: %w", caps.Backend, gpu.ErrUnsupportedHardware)
	}

	r := &raytracer{
		session:           session,
		width:             640,
		height:            480,
		sampler:           gpu.SamplerAnisotropic,
		maxRecursionDepth: pipeline.DefaultMaxRecursionDepth,
		blas:              make(map[model.Model]accel.BottomLevelStructure),
		tlas:              accel.NewTopLevelStructure(session, accel.WithLabel("scene tlas")),
		table:             sbt.NewBuilder(),
	}
	for _, option := range options {
		option(r)
	}

	var err error
	if r.cameraBuffer, err = session.CreateBuffer(gpu.BufferDescriptor{
		Label: "camera",
		Size:  camera.GPUCameraSize,
		Heap:  gpu.HeapTypeUpload,
		Usage: gpu.BufferUsageConstant,
	}); err != nil {
		return nil, fmt.Errorf("allocate camera buffer: %w", err)
	}
	if r.lightBuffer, err = session.CreateBuffer(gpu.BufferDescriptor{
		Label: "lighting",
		Size:  light.GPULightSize,
		Heap:  gpu.HeapTypeUpload,
		Usage: gpu.BufferUsageConstant,
	}); err != nil {
		r.cameraBuffer.Release()
		return nil, fmt.Errorf("allocate lighting buffer: %w", err)
	}
	if err := session.DescriptorHeap().Set(shader.SlotCamera, gpu.Descriptor{Kind: gpu.DescriptorConstantBuffer, Buffer: r.cameraBuffer}); err != nil {
		r.Release()
		return nil, fmt.Errorf("bind camera buffer: %w", err)
	}
	if err := r.createOutput(); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

// createOutput (re)allocates the output image. Caller must hold the mutex.
func (r *raytracer) createOutput() error {
	if r.output != nil {
		r.retired = append(r.retired, r.output)
		r.output = nil
	}
	out, err := r.session.CreateBuffer(gpu.BufferDescriptor{
		Label: "output",
		Size:  uint64(r.width) * uint64(r.height) * 4,
		Heap:  gpu.HeapTypeDefault,
		Usage: gpu.BufferUsageUnorderedAccess,
	})
	if err != nil {
		return fmt.Errorf("allocate %dx%d output: %w", r.width, r.height, err)
	}
	r.output = out
	if err := r.session.DescriptorHeap().Set(shader.SlotOutput, gpu.Descriptor{
		Kind:   gpu.DescriptorOutput,
		Buffer: out,
		Width:  r.width,
		Height: r.height,
	}); err != nil {
		return fmt.Errorf("bind output: %w", err)
	}
	return nil
}

func (r *raytracer) rayTypes() uint32 {
	return shader.Config{ShadowRays: r.shadowRays}.RayTypeCount()
}

// prepare uploads models and materials and records a bottom-level build for every model
// seen for the first time. Caller must hold the mutex.
func (r *raytracer) prepare(objs []game_object.GameObject) error {
	for _, obj := range objs {
		mdl := obj.Model()
		if err := mdl.Upload(r.session); err != nil {
			return fmt.Errorf("upload model of %q: %w", obj.Name(), err)
		}
		if _, ok := r.blas[mdl]; !ok {
			b, err := accel.BuildBottomLevel(r.session, mdl.Name(), accel.Geometry{
				VertexBuffer: mdl.VertexBuffer(),
				VertexCount:  mdl.VertexCount(),
				VertexStride: model.VertexStride,
				IndexBuffer:  mdl.IndexBuffer(),
				IndexCount:   mdl.IndexCount(),
				Opaque:       true,
			})
			if err != nil {
				return fmt.Errorf("build bottom level of %q: %w", mdl.Name(), err)
			}
			r.blas[mdl] = b
			r.scratch = append(r.scratch, b)
			r.stats.BottomLevelBuilds++
		}
		if _, err := obj.UploadMaterial(r.session); err != nil {
			return err
		}
	}
	return nil
}

// pruneBottomLevel retires structures no object references anymore. Caller must hold the mutex.
func (r *raytracer) pruneBottomLevel() {
	live := make(map[model.Model]bool, len(r.objects))
	for _, obj := range r.objects {
		live[obj.Model()] = true
	}
	for mdl, b := range r.blas {
		if !live[mdl] {
			r.retired = append(r.retired, b)
			delete(r.blas, mdl)
		}
	}
}

// replan rebuilds the render plan from the current objects. Caller must hold the mutex.
func (r *raytracer) replan() {
	r.plan = buildPlan(r.objects, r.rayTypes(), r.lightBuffer.Address(), r.session.DescriptorHeap().Base())
}

func (r *raytracer) Setup(src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.objects = src.Objects()
	r.generation = src.Generation()
	if err := r.prepare(r.objects); err != nil {
		return err
	}
	r.texKey = textureKey(r.objects)
	r.replan()

	if err := r.rebuildPipeline(); err != nil {
		return err
	}
	if err := r.rebuildTopLevel(); err != nil {
		return err
	}
	if err := r.rebuildShaderTable(); err != nil {
		return err
	}
	r.setUp = true
	logger.Infof("set up %d objects, %d geometries, shadow rays %t, sampler %s", len(r.plan), len(r.blas), r.shadowRays, r.sampler)
	return r.verify()
}

func (r *raytracer) Sync(src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.setUp {
		return ErrNotSetUp
	}
	objs := src.Objects()
	gen := src.Generation()
	if err := r.prepare(objs); err != nil {
		return err
	}

	switch {
	case gen != r.generation:
		logger.Debugf("roster generation %d -> %d, rebuilding", r.generation, gen)
		r.objects, r.generation = objs, gen
		r.texKey = textureKey(objs)
		r.replan()
		if r.pipelineDirty || !r.pipelineCovers() {
			if err := r.rebuildPipeline(); err != nil {
				return err
			}
		}
		if err := r.rebuildTopLevel(); err != nil {
			return err
		}
		if err := r.rebuildShaderTable(); err != nil {
			return err
		}
		r.pruneBottomLevel()

	case r.pipelineDirty:
		logger.Debugf("pipeline options changed, rebuilding")
		r.objects = objs
		r.texKey = textureKey(objs)
		r.replan()
		if err := r.rebuildPipeline(); err != nil {
			return err
		}
		if err := r.rebuildTopLevel(); err != nil {
			return err
		}
		if err := r.rebuildShaderTable(); err != nil {
			return err
		}

	case textureKey(objs) != r.texKey:
		logger.Debugf("texture bindings changed, rebuilding shader table")
		r.objects = objs
		r.texKey = textureKey(objs)
		r.replan()
		if err := r.rebuildShaderTable(); err != nil {
			return err
		}
		if err := r.refit(); err != nil {
			return err
		}

	default:
		return r.refit()
	}
	return r.verify()
}

// pipelineCovers reports whether every planned hit group exists in the pipeline.
func (r *raytracer) pipelineCovers() bool {
	if r.pipe == nil {
		return false
	}
	for _, e := range r.plan {
		if !r.pipe.HasHitGroup(e.Object.HitGroupName()) {
			return false
		}
	}
	return true
}

func (r *raytracer) RefitTopLevel() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.setUp {
		return ErrNotSetUp
	}
	return r.refit()
}

func (r *raytracer) refit() error {
	if err := r.tlas.Refit(instances(r.plan, r.blas)); err != nil {
		return fmt.Errorf("refit top level: %w", err)
	}
	r.stats.Refits++
	return nil
}

func (r *raytracer) RebuildTopLevel() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.setUp {
		return ErrNotSetUp
	}
	if err := r.rebuildTopLevel(); err != nil {
		return err
	}
	return r.verify()
}

func (r *raytracer) rebuildTopLevel() error {
	if err := r.tlas.Build(instances(r.plan, r.blas)); err != nil {
		return fmt.Errorf("build top level: %w", err)
	}
	if err := r.session.DescriptorHeap().Set(shader.SlotTLAS, gpu.Descriptor{
		Kind:    gpu.DescriptorAccelerationStructure,
		Address: r.tlas.Address(),
	}); err != nil {
		return fmt.Errorf("bind top level: %w", err)
	}
	r.stats.TopLevelBuilds++
	return nil
}

func (r *raytracer) RebuildShaderTable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.setUp {
		return ErrNotSetUp
	}
	if err := r.rebuildShaderTable(); err != nil {
		return err
	}
	return r.verify()
}

func (r *raytracer) rebuildShaderTable() error {
	heap := r.session.DescriptorHeap().Base()
	cfg := r.pipe.Config()

	r.table.Reset()
	r.table.AddRayGenerationProgram(shader.RayGenName, heap)
	for _, name := range cfg.MissNames() {
		r.table.AddMissProgram(name, heap)
	}
	for _, e := range r.plan {
		args := e.Args.Pointers()
		r.table.AddHitGroup(e.Object.HitGroupName(), args...)
		if cfg.ShadowRays {
			r.table.AddHitGroup(shader.ShadowHitGroupName, args...)
		}
	}

	size := r.table.ComputeSize()
	if size == 0 {
		return fmt.Errorf("shader table has zero size")
	}
	if r.tableBuffer != nil {
		r.retired = append(r.retired, r.tableBuffer)
		r.tableBuffer = nil
	}
	buf, err := r.session.CreateBuffer(gpu.BufferDescriptor{
		Label: "shader table",
		Size:  size,
		Heap:  gpu.HeapTypeUpload,
		Usage: gpu.BufferUsageShaderTable,
	})
	if err != nil {
		return fmt.Errorf("allocate shader table: %w", err)
	}
	if err := r.table.Generate(buf, r.pipe); err != nil {
		buf.Release()
		return err
	}
	r.tableBuffer = buf
	r.layout = r.table.Layout()
	r.stats.ShaderTableBuilds++
	return nil
}

func (r *raytracer) RebuildPipeline() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.setUp {
		return ErrNotSetUp
	}
	r.replan()
	if err := r.rebuildPipeline(); err != nil {
		return err
	}
	if err := r.rebuildTopLevel(); err != nil {
		return err
	}
	if err := r.rebuildShaderTable(); err != nil {
		return err
	}
	return r.verify()
}

func (r *raytracer) rebuildPipeline() error {
	p, err := pipeline.NewPipeline(r.session,
		pipeline.WithLabel("scene"),
		pipeline.WithShadowRayType(r.shadowRays),
		pipeline.WithSampler(r.sampler),
		pipeline.WithMaxRecursionDepth(r.maxRecursionDepth),
		pipeline.WithHitGroups(hitGroupNames(r.plan)...),
	)
	if err != nil {
		return err
	}
	if r.pipe != nil {
		r.retired = append(r.retired, r.pipe)
	}
	r.pipe = p
	r.pipelineDirty = false
	r.stats.PipelineBuilds++
	return nil
}

// verify checks that instance i points at the record of plan entry i when debug checks are
// enabled. Caller must hold the mutex.
func (r *raytracer) verify() error {
	if !r.debugChecks {
		return nil
	}
	insts := r.tlas.Instances()
	records := r.table.HitGroups()
	if len(insts) != len(r.plan) {
		return fmt.Errorf("%d instances for %d planned objects: %w", len(insts), len(r.plan), ErrSlotMismatch)
	}
	for i, e := range r.plan {
		idx := insts[i].HitGroupIndex
		if int(idx) >= len(records) || records[idx].Name != e.Object.HitGroupName() {
			return fmt.Errorf("instance %d (%q) has hit group index %d: %w", i, e.Object.Name(), idx, ErrSlotMismatch)
		}
	}
	return nil
}

func (r *raytracer) UploadConstants(cam camera.Camera, l light.Light) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	gc := cam.GPU()
	if err := r.cameraBuffer.Write(0, gc.Marshal()); err != nil {
		return fmt.Errorf("write camera: %w", err)
	}
	if l != nil && (l.Dirty() || !r.lightWritten) {
		gl := l.GPU()
		if err := r.lightBuffer.Write(0, gl.Marshal()); err != nil {
			return fmt.Errorf("write lighting: %w", err)
		}
		r.lightWritten = true
	}
	return nil
}

func (r *raytracer) RecordDispatch() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.setUp {
		return ErrNotSetUp
	}
	cl := r.session.CommandList()
	cl.SetPipelineState(r.pipe.Raw())
	cl.DispatchRays(r.dispatchDesc())
	return nil
}

func (r *raytracer) DispatchDesc() gpu.DispatchRaysDesc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dispatchDesc()
}

func (r *raytracer) dispatchDesc() gpu.DispatchRaysDesc {
	if r.tableBuffer == nil {
		return gpu.DispatchRaysDesc{}
	}
	return r.layout.DispatchDesc(r.tableBuffer.Address(), r.width, r.height)
}

func (r *raytracer) Retire() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.scratch {
		b.ReleaseScratch()
	}
	r.scratch = nil
	r.tlas.Retire()
	r.freeRetired()
}

// freeRetired releases superseded resources. Caller must hold the mutex.
func (r *raytracer) freeRetired() {
	for _, res := range r.retired {
		res.Release()
	}
	r.retired = nil
}

func (r *raytracer) Resize(width, height uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width, r.height = max(width, 1), max(height, 1)
	return r.createOutput()
}

func (r *raytracer) Resolution() (uint32, uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *raytracer) SetShadowRayType(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shadowRays != enabled {
		r.shadowRays = enabled
		r.pipelineDirty = true
	}
}

func (r *raytracer) ShadowRayType() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shadowRays
}

func (r *raytracer) SetSampler(sampler gpu.SamplerType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sampler != sampler {
		r.sampler = sampler
		r.pipelineDirty = true
	}
}

func (r *raytracer) Sampler() gpu.SamplerType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sampler
}

func (r *raytracer) TopLevel() accel.TopLevelStructure {
	return r.tlas
}

func (r *raytracer) Layout() sbt.Layout {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layout
}

func (r *raytracer) ShaderTable() gpu.Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tableBuffer
}

func (r *raytracer) Pipeline() pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipe
}

func (r *raytracer) Plan() []PlanEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PlanEntry(nil), r.plan...)
}

func (r *raytracer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *raytracer) Output() gpu.Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.output
}

func (r *raytracer) Image() (*image.RGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := r.output.Read(0, r.output.Size())
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, int(r.width), int(r.height)))
	copy(img.Pix, raw)
	return img, nil
}

func (r *raytracer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pipe != nil {
		r.pipe.Release()
		r.pipe = nil
	}
	r.tlas.Release()
	r.freeRetired()
	for mdl, b := range r.blas {
		b.Release()
		delete(r.blas, mdl)
	}
	r.scratch = nil
	for _, b := range []gpu.Buffer{r.tableBuffer, r.output, r.cameraBuffer, r.lightBuffer} {
		if b != nil {
			b.Release()
		}
	}
	r.tableBuffer, r.output, r.cameraBuffer, r.lightBuffer = nil, nil, nil, nil

	heap := r.session.DescriptorHeap()
	for _, slot := range []int{shader.SlotOutput, shader.SlotTLAS, shader.SlotCamera} {
		_ = heap.Clear(slot)
	}
	r.setUp = false
}

package scene

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-rt/engine/camera"
	"github.com/Carmen-Shannon/oxy-rt/engine/game_object"
	"github.com/Carmen-Shannon/oxy-rt/engine/light"
	"github.com/Carmen-Shannon/oxy-rt/engine/log"
)

var (
	// ErrDuplicateName is returned when an object's hit group name is already registered.
	ErrDuplicateName = errors.New("object name already registered")
	// ErrNoModel is returned when an object without a model is added.
	ErrNoModel = errors.New("object has no model")
	// ErrDuplicateID is returned when a supplied ID is already registered.
	ErrDuplicateID = errors.New("object ID already registered")
	// ErrIDOutOfRange is returned when an ID does not fit a top-level instance ID.
	ErrIDOutOfRange = errors.New("object ID out of range")
)

// MaxObjectID is the largest object ID. Instance descriptors carry the ID in 24 bits.
const MaxObjectID = 1<<24 - 1

var logger = log.New("scene")

// Scene is the object registry of the renderer. It hands out stable render slots, tracks a
// roster generation that changes on every structural edit, and updates transforms each frame.
type Scene interface {
	// Name returns the name of the scene.
	Name() string

	// Active reports whether the scene is being rendered.
	Active() bool

	// SetActive sets whether the scene is being rendered.
	SetActive(active bool)

	// Camera returns the scene camera.
	Camera() camera.Camera

	// SetCamera replaces the scene camera.
	SetCamera(cam camera.Camera)

	// Light returns the scene light.
	Light() light.Light

	// SetLight replaces the scene light.
	SetLight(l light.Light)

	// Add registers an object. Objects without an ID are assigned one; every object gets the
	// next render slot. Bumps the generation.
	//
	// Parameters:
	//   - obj: the object to add
	//
	// Returns:
	//   - uint64: the object ID
	//   - error: ErrNoModel, ErrDuplicateName, ErrDuplicateID or ErrIDOutOfRange
	Add(obj game_object.GameObject) (uint64, error)

	// Get returns a registered object by ID, or nil.
	Get(id uint64) game_object.GameObject

	// Remove unregisters an object and bumps the generation. The object's GPU resources stay
	// alive; release them once the frame that last used them completed.
	//
	// Parameters:
	//   - id: the object ID
	//
	// Returns:
	//   - game_object.GameObject: the removed object, or nil when the ID is unknown
	Remove(id uint64) game_object.GameObject

	// Objects returns the registered objects ordered by render slot.
	Objects() []game_object.GameObject

	// Count returns the number of registered objects.
	Count() int

	// Generation returns a counter that changes whenever objects are added or removed.
	Generation() uint64

	// Update recomputes the camera and every object transform. Object updates fan out over
	// the scene's worker pool.
	//
	// Parameters:
	//   - dt: elapsed seconds since the last update
	Update(dt float32)

	// Clear unregisters every object.
	Clear()

	// Release stops the worker pool.
	Release()
}

type scene struct {
	mu sync.RWMutex

	name   string
	active bool

	registry   map[uint64]game_object.GameObject
	nextID     uint64
	nextSlot   uint32
	generation uint64

	cam camera.Camera
	lgt light.Light

	// computePool fans per-object updates out over reusable goroutines
	computePool    worker.DynamicWorkerPool
	computeWorkers int
}

var _ Scene = &scene{}

// NewScene creates a scene with the given camera.
//
// Parameters:
//   - name: the name of the scene
//   - cam: the camera to attach (must not be nil)
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, cam camera.Camera, options ...SceneBuilderOption) Scene {
	if cam == nil {
		panic("scene: NewScene requires a non-nil Camera")
	}
	s := &scene{
		name:           name,
		active:         true,
		registry:       make(map[uint64]game_object.GameObject),
		nextID:         1,
		cam:            cam,
		lgt:            light.NewLight(),
		computeWorkers: max(runtime.NumCPU()-1, 1),
	}
	for _, option := range options {
		option(s)
	}

	// Initialize the compute pool after options so WithComputeWorkers can override the default.
	s.computePool = worker.NewDynamicWorkerPool(s.computeWorkers, 256, 1*time.Second)
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) Light() light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lgt
}

func (s *scene) SetLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lgt = l
}

func (s *scene) Add(obj game_object.GameObject) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(obj)
}

// add registers obj. Caller must hold the write lock.
func (s *scene) add(obj game_object.GameObject) (uint64, error) {
	if obj.Model() == nil {
		return 0, fmt.Errorf("add %q: %w", obj.Name(), ErrNoModel)
	}
	for _, o := range s.registry {
		if o.HitGroupName() == obj.HitGroupName() {
			return 0, fmt.Errorf("add %q: %w", obj.Name(), ErrDuplicateName)
		}
	}

	id := obj.ID()
	if id == 0 {
		id = s.nextID
	} else if _, taken := s.registry[id]; taken {
		return 0, fmt.Errorf("add %q as %d: %w", obj.Name(), id, ErrDuplicateID)
	}
	if id > MaxObjectID {
		return 0, fmt.Errorf("add %q as %d: %w", obj.Name(), id, ErrIDOutOfRange)
	}
	obj.SetID(id)
	s.nextID = max(s.nextID, id+1)
	obj.SetSlot(s.nextSlot)
	s.nextSlot++

	s.registry[obj.ID()] = obj
	s.generation++
	logger.Debugf("added %q as object %d in slot %d", obj.Name(), obj.ID(), obj.Slot())
	return obj.ID(), nil
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry[id]
}

func (s *scene) Remove(id uint64) game_object.GameObject {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, exists := s.registry[id]
	if !exists {
		return nil
	}
	delete(s.registry, id)
	s.generation++
	logger.Debugf("removed %q (object %d, slot %d)", obj.Name(), id, obj.Slot())
	return obj
}

func (s *scene) Objects() []game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects()
}

// objects returns the registry in slot order. Caller must hold a lock.
func (s *scene) objects() []game_object.GameObject {
	out := make([]game_object.GameObject, 0, len(s.registry))
	for _, obj := range s.registry {
		out = append(out, obj)
	}
	slices.SortFunc(out, func(a, b game_object.GameObject) int {
		return int(a.Slot()) - int(b.Slot())
	})
	return out
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry)
}

func (s *scene) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *scene) Update(dt float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cam != nil {
		s.cam.Update()
	}

	// A WaitGroup provides the per-frame barrier; pool.Wait() is meant for draining.
	var wg sync.WaitGroup
	taskID := 0
	for _, obj := range s.registry {
		wg.Add(1)
		o := obj
		s.computePool.SubmitTask(worker.Task{
			ID: taskID,
			Do: func() (any, error) {
				defer wg.Done()
				o.Update(dt)
				return nil, nil
			},
		})
		taskID++
	}
	wg.Wait()
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.registry) > 0 {
		s.generation++
	}
	s.registry = make(map[uint64]game_object.GameObject)
}

func (s *scene) Release() {
	s.computePool.Stop()
}

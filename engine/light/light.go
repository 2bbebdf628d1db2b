package light

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
)

// MaxShadowRayCount caps the soft shadow samples per hit.
const MaxShadowRayCount = 2000

type lightImpl struct {
	mu sync.Mutex

	position       common.Vec3
	ambient        [4]float32
	diffuse        [4]float32
	specular       [4]float32
	specularPower  float32
	lightRange     float32
	shadows        bool
	shadowRayCount uint32
	softRadius     float32
	dirty          bool
}

// Light is the scene's point light. Every hit record shares its buffer, so a change marks
// the light dirty until the orchestrator uploads it.
type Light interface {
	Position() common.Vec3

	// SetPosition moves the light.
	//
	// Parameters:
	//   - p: world-space position
	SetPosition(p common.Vec3)

	Ambient() [4]float32
	Diffuse() [4]float32
	Specular() [4]float32
	SpecularPower() float32
	Range() float32

	// Shadows reports whether hit programs trace shadow rays.
	Shadows() bool

	// ToggleShadows flips the shadows flag written into the lighting buffer.
	ToggleShadows()

	// SetShadows sets the shadows flag.
	SetShadows(enabled bool)

	// ShadowRayCount returns the soft shadow samples per hit.
	ShadowRayCount() uint32

	// SetShadowRayCount sets the soft shadow samples per hit, clamped to [1, MaxShadowRayCount].
	SetShadowRayCount(n uint32)

	// SoftRadius returns the radius of the jitter disc shadow rays aim at.
	SoftRadius() float32

	// Dirty reports whether the light changed since the last GPU call.
	Dirty() bool

	// GPU returns the lighting buffer contents and clears the dirty flag.
	GPU() GPULight
}

var _ Light = &lightImpl{}

// NewLight creates a white point light above the origin.
//
// Parameters:
//   - options: functional options to configure the light
//
// Returns:
//   - Light: the newly created light
func NewLight(options ...LightBuilderOption) Light {
	l := &lightImpl{
		position:       common.Vec3{2, 6, 3},
		ambient:        [4]float32{0.2, 0.2, 0.2, 1},
		diffuse:        [4]float32{1, 1, 1, 1},
		specular:       [4]float32{1, 1, 1, 1},
		specularPower:  1,
		lightRange:     100,
		shadows:        true,
		shadowRayCount: 1,
		softRadius:     0.25,
		dirty:          true,
	}
	for _, option := range options {
		option(l)
	}
	l.shadowRayCount = clampRays(l.shadowRayCount)
	return l
}

func clampRays(n uint32) uint32 {
	return min(max(n, 1), MaxShadowRayCount)
}

func (l *lightImpl) Position() common.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

func (l *lightImpl) SetPosition(p common.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = p
	l.dirty = true
}

func (l *lightImpl) Ambient() [4]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ambient
}

func (l *lightImpl) Diffuse() [4]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.diffuse
}

func (l *lightImpl) Specular() [4]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.specular
}

func (l *lightImpl) SpecularPower() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.specularPower
}

func (l *lightImpl) Range() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lightRange
}

func (l *lightImpl) Shadows() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shadows
}

func (l *lightImpl) ToggleShadows() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shadows = !l.shadows
	l.dirty = true
}

func (l *lightImpl) SetShadows(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shadows = enabled
	l.dirty = true
}

func (l *lightImpl) ShadowRayCount() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shadowRayCount
}

func (l *lightImpl) SetShadowRayCount(n uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shadowRayCount = clampRays(n)
	l.dirty = true
}

func (l *lightImpl) SoftRadius() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.softRadius
}

func (l *lightImpl) Dirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}

func (l *lightImpl) GPU() GPULight {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dirty = false
	var shadows uint32
	if l.shadows {
		shadows = 1
	}
	return GPULight{
		Position:        [4]float32{l.position[0], l.position[1], l.position[2], l.softRadius},
		Ambient:         l.ambient,
		Diffuse:         l.diffuse,
		Specular:        l.specular,
		SpecularPower:   l.specularPower,
		PointLightRange: l.lightRange,
		Shadows:         shadows,
		ShadowRayCount:  l.shadowRayCount,
	}
}

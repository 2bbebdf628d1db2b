package material

import "sync"

type material struct {
	mu sync.Mutex

	name              string
	baseColor         [4]float32
	reflection        bool
	shininess         float32
	roughness         float32
	maxRecursionDepth int32
	outline           bool
	outlineThickness  float32
	outlineColor      [3]float32
	textured          bool
	dirty             bool
	revision          uint64
}

// Material holds the surface parameters of one scene object. Every setter marks the
// material dirty so the orchestrator re-uploads it between fence waits.
type Material interface {
	// Name retrieves the material identifier.
	Name() string

	// BaseColor retrieves the RGBA object color.
	BaseColor() [4]float32

	// SetBaseColor sets the RGBA object color.
	SetBaseColor(c [4]float32)

	// Reflective reports whether hit programs trace reflection rays.
	Reflective() bool

	// ToggleReflection flips the reflection flag.
	ToggleReflection()

	Shininess() float32
	Roughness() float32

	// MaxRecursionDepth returns the reflection bounce limit.
	MaxRecursionDepth() int32

	// SetMaxRecursionDepth sets the reflection bounce limit.
	SetMaxRecursionDepth(depth int32)

	// Outlined reports whether triangle edges are drawn.
	Outlined() bool

	// ToggleOutline flips the triangle outline flag.
	ToggleOutline()

	// Textured reports whether the hit program samples the object's texture.
	Textured() bool

	// SetTextured sets the texture flag.
	SetTextured(enabled bool)

	// Dirty reports whether the material changed since the last GPU call.
	Dirty() bool

	// Revision counts the mutations since creation. Objects sharing the material compare it
	// against the revision they last uploaded.
	Revision() uint64

	// GPU returns the material buffer contents and clears the dirty flag.
	GPU() GPUMaterial
}

var _ Material = &material{}

// NewMaterial creates a matte white material.
//
// Parameters:
//   - options: functional options to configure the material
//
// Returns:
//   - Material: the newly created material
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		baseColor:         [4]float32{1, 1, 1, 1},
		shininess:         32,
		roughness:         0,
		maxRecursionDepth: 1,
		outlineThickness:  0.02,
		dirty:             true,
	}
	for _, option := range options {
		option(m)
	}
	return m
}

func (m *material) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

func (m *material) BaseColor() [4]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseColor
}

func (m *material) SetBaseColor(c [4]float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseColor = c
	m.dirty = true
	m.revision++
}

func (m *material) Reflective() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reflection
}

func (m *material) ToggleReflection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reflection = !m.reflection
	m.dirty = true
	m.revision++
}

func (m *material) Shininess() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shininess
}

func (m *material) Roughness() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roughness
}

func (m *material) MaxRecursionDepth() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxRecursionDepth
}

func (m *material) SetMaxRecursionDepth(depth int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxRecursionDepth = depth
	m.dirty = true
	m.revision++
}

func (m *material) Outlined() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outline
}

func (m *material) ToggleOutline() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outline = !m.outline
	m.dirty = true
	m.revision++
}

func (m *material) Textured() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.textured
}

func (m *material) SetTextured(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.textured = enabled
	m.dirty = true
	m.revision++
}

func (m *material) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

func (m *material) Revision() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revision
}

func flag(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (m *material) GPU() GPUMaterial {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = false
	return GPUMaterial{
		Reflection:        flag(m.reflection),
		Shininess:         m.shininess,
		MaxRecursionDepth: m.maxRecursionDepth,
		TriOutline:        flag(m.outline),
		TriThickness:      m.outlineThickness,
		TriColour:         m.outlineColor,
		ObjectColour:      m.baseColor,
		Roughness:         m.roughness,
		Texture:           flag(m.textured),
	}
}

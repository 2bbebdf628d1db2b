package game_object

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rt/engine/light"
	"github.com/Carmen-Shannon/oxy-rt/engine/material"
	"github.com/Carmen-Shannon/oxy-rt/engine/model"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
)

// HitGroupSuffix is appended to an object name to form its hit group name.
const HitGroupSuffix = " Hit Group"

type gameObject struct {
	mu sync.Mutex

	id      uint64
	slot    uint32
	name    string
	enabled bool

	mdl           model.Model
	mat           material.Material
	tex           *texture.Texture
	attachedLight light.Light

	materialBuffer   gpu.Buffer
	uploadedRevision uint64

	position      [3]float32
	scale         [3]float32
	rotation      [3]float32
	rotationSpeed [3]float32
	transform     common.Mat4
}

// GameObject is a renderable scene entity: a model placed in the world by a transform and
// shaded with a material, optionally textured. Each object owns one hit group in the
// ray-tracing pipeline.
type GameObject interface {
	// ID returns the object's unique identifier.
	//
	// Returns:
	//   - uint64: the object ID
	ID() uint64

	// SetID sets the object's unique identifier.
	//
	// Parameters:
	//   - id: the ID to assign
	SetID(id uint64)

	// Slot returns the render slot assigned at registration. Lower slots come first in
	// both the top-level structure and the shader table.
	//
	// Returns:
	//   - uint32: the render slot
	Slot() uint32

	// SetSlot assigns the render slot. Called by the scene on registration.
	//
	// Parameters:
	//   - slot: the slot to assign
	SetSlot(slot uint32)

	// Name returns the display name of the object.
	Name() string

	// HitGroupName returns the name of the object's hit group.
	//
	// Returns:
	//   - string: "<Name> Hit Group"
	HitGroupName() string

	// Enabled returns whether this object is enabled for rendering.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// SetEnabled sets whether the object is enabled for rendering.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// Model returns the Model associated with this object, or nil if not set.
	//
	// Returns:
	//   - model.Model: the associated model or nil
	Model() model.Model

	// Material returns the object's material.
	//
	// Returns:
	//   - material.Material: the material, never nil
	Material() material.Material

	// Texture returns the bound texture, or nil when untextured.
	Texture() *texture.Texture

	// SetTexture binds a texture, or unbinds with nil. The material's texture flag follows.
	//
	// Parameters:
	//   - tex: the texture to bind or nil
	SetTexture(tex *texture.Texture)

	// Position returns the world-space position.
	Position() (x, y, z float32)

	// Rotation returns the Euler rotation in radians.
	Rotation() (rx, ry, rz float32)

	// RotationSpeed returns the rotation speed in radians per second.
	RotationSpeed() (rx, ry, rz float32)

	// Scale returns the scale factors.
	Scale() (sx, sy, sz float32)

	// TransformData reads all transform components at once.
	//
	// Returns:
	//   - pos, scale, rot, rotSpeed: the transform components
	TransformData() (pos, scale, rot, rotSpeed [3]float32)

	// SetPosition moves the object.
	//
	// Parameters:
	//   - x, y, z: new position components
	SetPosition(x, y, z float32)

	// SetRotation sets the Euler rotation.
	//
	// Parameters:
	//   - rx, ry, rz: new rotation angles
	SetRotation(rx, ry, rz float32)

	// SetRotationSpeed sets the spin applied by Update.
	//
	// Parameters:
	//   - rx, ry, rz: new rotation speed values
	SetRotationSpeed(rx, ry, rz float32)

	// SetScale sets the scale factors.
	//
	// Parameters:
	//   - sx, sy, sz: new scale factors
	SetScale(sx, sy, sz float32)

	// Update advances the rotation by the rotation speed and recomputes the world transform.
	//
	// Parameters:
	//   - dt: elapsed seconds
	Update(dt float32)

	// Transform returns the world transform as a column-major matrix.
	Transform() common.Mat4

	// Light returns the Light attached to this object, or nil if none is set.
	//
	// Returns:
	//   - light.Light: the attached light or nil
	Light() light.Light

	// SetLight attaches a Light to this object. The scene moves an attached light to the
	// object's position every update. Pass nil to detach.
	//
	// Parameters:
	//   - l: the Light to attach, or nil to detach
	SetLight(l light.Light)

	// UploadMaterial allocates the material buffer on first use and rewrites it when the
	// material changed. The caller must have waited for the fence covering earlier reads.
	//
	// Parameters:
	//   - session: the session to allocate from
	//
	// Returns:
	//   - bool: true when the buffer was written
	//   - error: a wrapped allocation or write error
	UploadMaterial(session gpu.Session) (bool, error)

	// MaterialBuffer returns the material buffer, or nil before the first upload.
	MaterialBuffer() gpu.Buffer

	// Release frees the material buffer. Models and textures are shared and stay alive.
	Release()
}

var _ GameObject = &gameObject{}

// NewGameObject creates a new GameObject configured with the given options.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the newly created object
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	obj := &gameObject{
		name:    "Object",
		enabled: true,
		scale:   [3]float32{1, 1, 1},
	}
	for _, option := range options {
		option(obj)
	}
	if obj.mat == nil {
		obj.mat = material.NewMaterial(material.WithName(obj.name))
	}
	obj.mat.SetTextured(obj.tex != nil)
	obj.updateTransform()
	return obj
}

// updateTransform rebuilds the model matrix. Caller must hold the mutex or own the object exclusively.
func (g *gameObject) updateTransform() {
	common.BuildModelMatrix(g.transform[:], g.position, g.rotation, g.scale)
}

func (g *gameObject) ID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.id
}

func (g *gameObject) SetID(id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.id = id
}

func (g *gameObject) Slot() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.slot
}

func (g *gameObject) SetSlot(slot uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.slot = slot
}

func (g *gameObject) Name() string {
	return g.name
}

func (g *gameObject) HitGroupName() string {
	return g.name + HitGroupSuffix
}

func (g *gameObject) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = enabled
}

func (g *gameObject) Model() model.Model {
	return g.mdl
}

func (g *gameObject) Material() material.Material {
	return g.mat
}

func (g *gameObject) Texture() *texture.Texture {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tex
}

func (g *gameObject) SetTexture(tex *texture.Texture) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tex = tex
	g.mat.SetTextured(tex != nil)
}

func (g *gameObject) Position() (x, y, z float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.position[0], g.position[1], g.position[2]
}

func (g *gameObject) Rotation() (rx, ry, rz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rotation[0], g.rotation[1], g.rotation[2]
}

func (g *gameObject) RotationSpeed() (rx, ry, rz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rotationSpeed[0], g.rotationSpeed[1], g.rotationSpeed[2]
}

func (g *gameObject) Scale() (sx, sy, sz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scale[0], g.scale[1], g.scale[2]
}

func (g *gameObject) TransformData() (pos, scale, rot, rotSpeed [3]float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.position, g.scale, g.rotation, g.rotationSpeed
}

func (g *gameObject) SetPosition(x, y, z float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.position = [3]float32{x, y, z}
	g.updateTransform()
}

func (g *gameObject) SetRotation(rx, ry, rz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotation = [3]float32{rx, ry, rz}
	g.updateTransform()
}

func (g *gameObject) SetRotationSpeed(rx, ry, rz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotationSpeed = [3]float32{rx, ry, rz}
}

func (g *gameObject) SetScale(sx, sy, sz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scale = [3]float32{sx, sy, sz}
	g.updateTransform()
}

func (g *gameObject) Update(dt float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.rotation {
		g.rotation[i] += g.rotationSpeed[i] * dt
	}
	g.updateTransform()
	if g.attachedLight != nil {
		g.attachedLight.SetPosition(common.Vec3(g.position))
	}
}

func (g *gameObject) Transform() common.Mat4 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.transform
}

func (g *gameObject) Light() light.Light {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attachedLight
}

func (g *gameObject) SetLight(l light.Light) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attachedLight = l
}

func (g *gameObject) UploadMaterial(session gpu.Session) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.materialBuffer == nil {
		buf, err := session.CreateBuffer(gpu.BufferDescriptor{
			Label: g.name + " material",
			Size:  material.GPUMaterialSize,
			Heap:  gpu.HeapTypeUpload,
			Usage: gpu.BufferUsageConstant,
		})
		if err != nil {
			return false, fmt.Errorf("allocate material of %q: %w", g.name, err)
		}
		g.materialBuffer = buf
	} else if g.mat.Revision() == g.uploadedRevision {
		return false, nil
	}

	rev := g.mat.Revision()
	gm := g.mat.GPU()
	if err := g.materialBuffer.Write(0, gm.Marshal()); err != nil {
		return false, fmt.Errorf("write material of %q: %w", g.name, err)
	}
	g.uploadedRevision = rev
	return true, nil
}

func (g *gameObject) MaterialBuffer() gpu.Buffer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.materialBuffer
}

func (g *gameObject) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.materialBuffer != nil {
		g.materialBuffer.Release()
		g.materialBuffer = nil
	}
}

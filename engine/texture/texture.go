// Package texture places sampled textures into descriptor heap slots so hit records can
// point at them.
package texture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
)

// FirstSlot is the first heap slot reserved for textures. Slots below it hold the output
// image, the top-level structure and the camera.
const FirstSlot = 3

// ErrHeapFull is returned when every texture slot is taken.
var ErrHeapFull = errors.New("descriptor heap has no free texture slot")

// Texture is a texture bound to a heap slot.
type Texture struct {
	Name    string
	Slot    int
	Address gpu.DeviceAddress
	GPU     gpu.Texture
}

// Library owns the texture slots of a descriptor heap.
type Library interface {
	// Load uploads pixels and binds them to the lowest free slot.
	//
	// Parameters:
	//   - name: texture identifier; loading an existing name returns the bound texture
	//   - data: RGBA8 pixels
	//
	// Returns:
	//   - *Texture: the bound texture
	//   - error: a validation error, ErrHeapFull or a wrapped session error
	Load(name string, data common.TextureStagingData) (*Texture, error)

	// Import decodes an encoded image and loads it.
	//
	// Parameters:
	//   - imported: PNG or JPEG bytes or a file path
	//
	// Returns:
	//   - *Texture: the bound texture
	//   - error: a decode or load error
	Import(imported *common.ImportedTexture) (*Texture, error)

	// Get returns a loaded texture by name.
	Get(name string) (*Texture, bool)

	// Unload clears the texture's slot and releases it. The caller must have waited for
	// the fence covering every dispatch that sampled it.
	Unload(name string) error

	// Len returns the number of loaded textures.
	Len() int

	// Release unloads every texture.
	Release()
}

type library struct {
	mu       sync.Mutex
	session  gpu.Session
	byName   map[string]*Texture
	occupied map[int]bool
}

var _ Library = &library{}

// NewLibrary creates an empty texture library over the session's heap.
//
// Parameters:
//   - session: the session owning the heap
//
// Returns:
//   - Library: the library
func NewLibrary(session gpu.Session) Library {
	return &library{
		session:  session,
		byName:   make(map[string]*Texture),
		occupied: make(map[int]bool),
	}
}

func (l *library) freeSlot() (int, error) {
	heap := l.session.DescriptorHeap()
	for slot := FirstSlot; slot < heap.Capacity(); slot++ {
		if l.occupied[slot] {
			continue
		}
		// another library on the same session may already hold it
		if _, err := heap.Descriptor(slot); err == nil {
			continue
		}
		return slot, nil
	}
	return -1, ErrHeapFull
}

func (l *library) Load(name string, data common.TextureStagingData) (*Texture, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.byName[name]; ok {
		return t, nil
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("texture %q: %w", name, err)
	}
	slot, err := l.freeSlot()
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", name, err)
	}

	gt, err := l.session.CreateTexture(gpu.TextureDescriptor{Label: name, Width: data.Width, Height: data.Height}, data.Pixels)
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", name, err)
	}
	heap := l.session.DescriptorHeap()
	if err := heap.Set(slot, gpu.Descriptor{Kind: gpu.DescriptorTexture, Texture: gt}); err != nil {
		gt.Release()
		return nil, fmt.Errorf("texture %q: %w", name, err)
	}
	addr, err := heap.SlotAddress(slot)
	if err != nil {
		gt.Release()
		return nil, err
	}

	t := &Texture{Name: name, Slot: slot, Address: addr, GPU: gt}
	l.byName[name] = t
	l.occupied[slot] = true
	return t, nil
}

func (l *library) Import(imported *common.ImportedTexture) (*Texture, error) {
	data, err := imported.Decode()
	if err != nil {
		return nil, err
	}
	name := common.Coalesce(imported.Name, imported.Path)
	return l.Load(name, data)
}

func (l *library) Get(name string) (*Texture, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.byName[name]
	return t, ok
}

func (l *library) Unload(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.byName[name]
	if !ok {
		return fmt.Errorf("texture %q is not loaded", name)
	}
	l.unload(t)
	return nil
}

func (l *library) unload(t *Texture) {
	_ = l.session.DescriptorHeap().Clear(t.Slot)
	t.GPU.Release()
	delete(l.byName, t.Name)
	delete(l.occupied, t.Slot)
}

func (l *library) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byName)
}

func (l *library) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.byName {
		l.unload(t)
	}
}

package gpu

import (
	"fmt"
	"sync"
)

// DescriptorIncrement is the byte distance between two adjacent heap slots.
const DescriptorIncrement = 32

const heapBaseAddress = 0x1000

// DescriptorKind identifies what a heap slot describes.
type DescriptorKind uint8

const (
	DescriptorNone DescriptorKind = iota
	// DescriptorOutput is a writable RGBA8 image backed by a buffer.
	DescriptorOutput
	// DescriptorAccelerationStructure is a shader-visible top-level structure.
	DescriptorAccelerationStructure
	// DescriptorConstantBuffer is a read-only parameter block.
	DescriptorConstantBuffer
	// DescriptorTexture is a sampled texture.
	DescriptorTexture
)

func (k DescriptorKind) String() string {
	switch k {
	case DescriptorOutput:
		return "output"
	case DescriptorAccelerationStructure:
		return "acceleration-structure"
	case DescriptorConstantBuffer:
		return "constant-buffer"
	case DescriptorTexture:
		return "texture"
	default:
		return "none"
	}
}

// Descriptor is the content of one heap slot.
type Descriptor struct {
	Kind DescriptorKind
	// Buffer backs output and constant-buffer descriptors.
	Buffer Buffer
	// Address is the structure location of an acceleration-structure descriptor.
	Address DeviceAddress
	// Texture backs texture descriptors.
	Texture Texture
	// Width and Height describe the image of an output descriptor.
	Width, Height uint32
}

// DescriptorHeap is the single shader-visible heap of a session.
type DescriptorHeap interface {
	// Base returns the heap-relative address of slot 0.
	Base() DeviceAddress

	// Increment returns the size of one slot in bytes.
	Increment() uint64

	// Capacity returns the number of slots.
	Capacity() int

	// Set writes a descriptor into a slot.
	//
	// Parameters:
	//   - slot: destination slot index
	//   - d: the descriptor to store
	//
	// Returns:
	//   - error: ErrInvalidDescriptor when the slot is out of range
	Set(slot int, d Descriptor) error

	// Clear empties a slot.
	Clear(slot int) error

	// Descriptor reads the descriptor stored in a slot.
	Descriptor(slot int) (Descriptor, error)

	// SlotAddress returns the heap pointer of a slot (Base + slot * Increment).
	SlotAddress(slot int) (DeviceAddress, error)

	// SlotOf maps a heap pointer back onto its slot index.
	SlotOf(addr DeviceAddress) (int, error)
}

type descriptorHeap struct {
	mu    sync.RWMutex
	slots []Descriptor
}

var _ DescriptorHeap = &descriptorHeap{}

func newDescriptorHeap(capacity int) *descriptorHeap {
	return &descriptorHeap{slots: make([]Descriptor, capacity)}
}

func (h *descriptorHeap) Base() DeviceAddress {
	return heapAddress(heapBaseAddress)
}

func (h *descriptorHeap) Increment() uint64 {
	return DescriptorIncrement
}

func (h *descriptorHeap) Capacity() int {
	return len(h.slots)
}

func (h *descriptorHeap) Set(slot int, d Descriptor) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if slot < 0 || slot >= len(h.slots) {
		return fmt.Errorf("%w: slot %d outside heap of %d", ErrInvalidDescriptor, slot, len(h.slots))
	}
	h.slots[slot] = d
	return nil
}

func (h *descriptorHeap) Clear(slot int) error {
	return h.Set(slot, Descriptor{})
}

func (h *descriptorHeap) Descriptor(slot int) (Descriptor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if slot < 0 || slot >= len(h.slots) {
		return Descriptor{}, fmt.Errorf("%w: slot %d outside heap of %d", ErrInvalidDescriptor, slot, len(h.slots))
	}
	d := h.slots[slot]
	if d.Kind == DescriptorNone {
		return Descriptor{}, fmt.Errorf("%w: slot %d is empty", ErrInvalidDescriptor, slot)
	}
	return d, nil
}

func (h *descriptorHeap) SlotAddress(slot int) (DeviceAddress, error) {
	if slot < 0 || slot >= len(h.slots) {
		return NullAddress, fmt.Errorf("%w: slot %d outside heap of %d", ErrInvalidDescriptor, slot, len(h.slots))
	}
	return h.Base().Offset(uint64(slot) * DescriptorIncrement), nil
}

func (h *descriptorHeap) SlotOf(addr DeviceAddress) (int, error) {
	off, err := addr.Sub(h.Base())
	if err != nil {
		return -1, err
	}
	if off%DescriptorIncrement != 0 {
		return -1, fmt.Errorf("%w: %s is not slot aligned", ErrInvalidAddress, addr)
	}
	slot := int(off / DescriptorIncrement)
	if slot >= len(h.slots) {
		return -1, fmt.Errorf("%w: %s is outside the heap", ErrInvalidAddress, addr)
	}
	return slot, nil
}

package gpu

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// HeapType selects the memory pool a buffer is allocated from.
type HeapType uint8

const (
	// HeapTypeDefault is device-local memory the CPU cannot write directly.
	HeapTypeDefault HeapType = iota
	// HeapTypeUpload is CPU-writable memory the device reads across the bus.
	HeapTypeUpload
)

func (h HeapType) String() string {
	switch h {
	case HeapTypeUpload:
		return "upload"
	default:
		return "default"
	}
}

// BufferUsage flags declare how the device will access a buffer.
type BufferUsage uint32

const (
	BufferUsageNone                  BufferUsage = 0
	BufferUsageUnorderedAccess       BufferUsage = 1 << 0
	BufferUsageAccelerationStructure BufferUsage = 1 << 1
	BufferUsageShaderResource        BufferUsage = 1 << 2
	BufferUsageConstant              BufferUsage = 1 << 3
	BufferUsageShaderTable           BufferUsage = 1 << 4
	BufferUsageVertex                BufferUsage = 1 << 5
	BufferUsageIndex                 BufferUsage = 1 << 6
	BufferUsageInstanceDescs         BufferUsage = 1 << 7
)

// Has reports whether every flag in f is set.
func (u BufferUsage) Has(f BufferUsage) bool {
	return u&f == f
}

// BufferAlignment is the placement alignment of every buffer allocation.
const BufferAlignment = 256

// BufferDescriptor describes a buffer to allocate.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Heap  HeapType
	Usage BufferUsage
}

// Buffer is a linear allocation in device memory with a stable device address.
type Buffer interface {
	// Label returns the debug label supplied at creation.
	Label() string

	// Size returns the allocation size in bytes.
	Size() uint64

	// Heap returns the heap the buffer lives in.
	Heap() HeapType

	// Usage returns the declared usage flags.
	Usage() BufferUsage

	// Address returns the device address of the first byte.
	//
	// Returns:
	//   - DeviceAddress: an absolute address, or NullAddress after Release
	Address() DeviceAddress

	// Write copies data into the buffer at offset. Only upload-heap buffers are CPU writable.
	//
	// Parameters:
	//   - offset: byte offset into the buffer
	//   - data: bytes to copy
	//
	// Returns:
	//   - error: ErrNotMappable for default-heap buffers, or a bounds error
	Write(offset uint64, data []byte) error

	// Read copies size bytes starting at offset back to the CPU.
	// The caller must have waited for the fence covering any device writes.
	//
	// Parameters:
	//   - offset: byte offset into the buffer
	//   - size: number of bytes to copy
	//
	// Returns:
	//   - []byte: a copy of the buffer contents
	//   - error: a bounds error or ErrReleased
	Read(offset, size uint64) ([]byte, error)

	// Release frees the allocation. The device address becomes invalid.
	Release()
}

type softwareBuffer struct {
	mu       sync.Mutex
	session  *softwareSession
	desc     BufferDescriptor
	base     uint64
	data     []byte
	released atomic.Bool
}

var _ Buffer = &softwareBuffer{}

func (b *softwareBuffer) Label() string {
	return b.desc.Label
}

func (b *softwareBuffer) Size() uint64 {
	return b.desc.Size
}

func (b *softwareBuffer) Heap() HeapType {
	return b.desc.Heap
}

func (b *softwareBuffer) Usage() BufferUsage {
	return b.desc.Usage
}

func (b *softwareBuffer) Address() DeviceAddress {
	if b.released.Load() {
		return NullAddress
	}
	return absoluteAddress(b.base)
}

func (b *softwareBuffer) Write(offset uint64, data []byte) error {
	if b.released.Load() {
		return fmt.Errorf("write %q: %w", b.desc.Label, ErrReleased)
	}
	if b.desc.Heap != HeapTypeUpload {
		return fmt.Errorf("write %q: %w", b.desc.Label, ErrNotMappable)
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("write %q: %d bytes at offset %d exceeds size %d", b.desc.Label, len(data), offset, b.desc.Size)
	}
	b.mu.Lock()
	copy(b.data[offset:], data)
	b.mu.Unlock()
	return nil
}

func (b *softwareBuffer) Read(offset, size uint64) ([]byte, error) {
	if b.released.Load() {
		return nil, fmt.Errorf("read %q: %w", b.desc.Label, ErrReleased)
	}
	if offset+size > b.desc.Size {
		return nil, fmt.Errorf("read %q: %d bytes at offset %d exceeds size %d", b.desc.Label, size, offset, b.desc.Size)
	}
	out := make([]byte, size)
	b.mu.Lock()
	copy(out, b.data[offset:offset+size])
	b.mu.Unlock()
	return out, nil
}

func (b *softwareBuffer) Release() {
	if b.released.Swap(true) {
		return
	}
	b.session.memory.free(b)
	b.session.structures.forget(b.base, b.desc.Size)
}

// span returns the device view of [offset, offset+size). It bypasses the CPU mutex;
// device access is ordered against CPU access by the fence.
func (b *softwareBuffer) span(offset, size uint64) ([]byte, error) {
	if offset+size > uint64(len(b.data)) {
		return nil, fmt.Errorf("%w: %d bytes at offset %d of %q (size %d)", ErrInvalidAddress, size, offset, b.desc.Label, len(b.data))
	}
	return b.data[offset : offset+size], nil
}

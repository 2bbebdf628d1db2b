package gpu

import "fmt"

// AddressSpace tags what a DeviceAddress points into.
type AddressSpace uint8

const (
	// AddressSpaceAbsolute addresses a byte inside a buffer allocation.
	AddressSpaceAbsolute AddressSpace = iota
	// AddressSpaceHeap addresses a descriptor slot inside the shader-visible descriptor heap.
	AddressSpaceHeap
)

// heapTag marks heap-relative addresses once encoded into 8 raw bytes.
const heapTag = uint64(1) << 63

// DeviceAddress is an opaque device-visible address. Values are only produced by
// buffers, the descriptor heap and DecodeAddress; there is no raw constructor.
type DeviceAddress struct {
	space AddressSpace
	value uint64
}

// NullAddress is the zero address. It encodes to eight zero bytes.
var NullAddress = DeviceAddress{}

func absoluteAddress(v uint64) DeviceAddress {
	return DeviceAddress{space: AddressSpaceAbsolute, value: v}
}

func heapAddress(v uint64) DeviceAddress {
	return DeviceAddress{space: AddressSpaceHeap, value: v}
}

// IsNull reports whether the address is the null address.
func (a DeviceAddress) IsNull() bool {
	return a.value == 0
}

// Space returns the address space of a.
func (a DeviceAddress) Space() AddressSpace {
	return a.space
}

// Offset returns a advanced by n bytes within the same address space.
//
// Parameters:
//   - n: byte offset to add
//
// Returns:
//   - DeviceAddress: the advanced address, or NullAddress when a is null
func (a DeviceAddress) Offset(n uint64) DeviceAddress {
	if a.IsNull() {
		return NullAddress
	}
	return DeviceAddress{space: a.space, value: a.value + n}
}

// Sub returns the byte distance from base to a. Both must share an address space.
//
// Parameters:
//   - base: the lower address
//
// Returns:
//   - uint64: a minus base
//   - error: an error when the spaces differ or base lies above a
func (a DeviceAddress) Sub(base DeviceAddress) (uint64, error) {
	if a.space != base.space {
		return 0, fmt.Errorf("%w: %s and %s are in different address spaces", ErrInvalidAddress, a, base)
	}
	if a.value < base.value {
		return 0, fmt.Errorf("%w: %s lies below %s", ErrInvalidAddress, a, base)
	}
	return a.value - base.value, nil
}

// Encode returns the 8-byte wire form of a as written into shader records.
func (a DeviceAddress) Encode() uint64 {
	if a.IsNull() {
		return 0
	}
	if a.space == AddressSpaceHeap {
		return a.value | heapTag
	}
	return a.value
}

// DecodeAddress reverses Encode.
//
// Parameters:
//   - raw: the 8-byte wire value
//
// Returns:
//   - DeviceAddress: the decoded address
func DecodeAddress(raw uint64) DeviceAddress {
	if raw == 0 {
		return NullAddress
	}
	if raw&heapTag != 0 {
		return heapAddress(raw &^ heapTag)
	}
	return absoluteAddress(raw)
}

func (a DeviceAddress) String() string {
	if a.IsNull() {
		return "null"
	}
	if a.space == AddressSpaceHeap {
		return fmt.Sprintf("heap:0x%x", a.value)
	}
	return fmt.Sprintf("0x%x", a.value)
}

package gpu

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
)

const firstAllocationAddress = 0x10000

// deviceMemory hands out monotonically increasing device addresses so a released
// range is never aliased by a later allocation.
type deviceMemory struct {
	mu          sync.RWMutex
	next        uint64
	budget      uint64
	used        uint64
	allocations []*softwareBuffer
}

func newDeviceMemory(budget uint64) *deviceMemory {
	return &deviceMemory{
		next:   firstAllocationAddress,
		budget: budget,
	}
}

func (m *deviceMemory) alloc(s *softwareSession, desc BufferDescriptor) (*softwareBuffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("allocate %q: zero-sized buffer", desc.Label)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budget > 0 && m.used+desc.Size > m.budget {
		return nil, fmt.Errorf("allocate %q (%d bytes, %d of %d in use): %w", desc.Label, desc.Size, m.used, m.budget, ErrOutOfMemory)
	}

	b := &softwareBuffer{
		session: s,
		desc:    desc,
		base:    m.next,
		data:    make([]byte, desc.Size),
	}
	m.next = common.AlignUp(m.next+desc.Size, BufferAlignment)
	m.used += desc.Size
	m.allocations = append(m.allocations, b)
	return b, nil
}

func (m *deviceMemory) free(b *softwareBuffer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.allocations), func(i int) bool { return m.allocations[i].base >= b.base })
	if i < len(m.allocations) && m.allocations[i] == b {
		m.allocations = append(m.allocations[:i], m.allocations[i+1:]...)
		m.used -= b.desc.Size
	}
}

// resolve maps an absolute address onto its live allocation and the offset inside it.
func (m *deviceMemory) resolve(addr DeviceAddress) (*softwareBuffer, uint64, error) {
	if addr.IsNull() || addr.Space() != AddressSpaceAbsolute {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	v := addr.value
	i := sort.Search(len(m.allocations), func(i int) bool { return m.allocations[i].base > v }) - 1
	if i < 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}
	b := m.allocations[i]
	offset := v - b.base
	if offset >= b.desc.Size {
		return nil, 0, fmt.Errorf("%w: %s is past the end of %q", ErrInvalidAddress, addr, b.desc.Label)
	}
	return b, offset, nil
}

func (m *deviceMemory) inUse() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

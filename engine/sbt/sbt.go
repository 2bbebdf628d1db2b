// Package sbt assembles shader binding tables: a ray-generation section, a miss section and a
// hit-group section of fixed-stride records, each record a shader identifier followed by
// 8-byte root arguments.
package sbt

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
)

const (
	// RecordAlignment is the alignment of every record stride.
	RecordAlignment = 32
	// SectionAlignment is the alignment of every section start.
	SectionAlignment = 64
	// TableAlignment is the alignment of the total table size.
	TableAlignment = gpu.BufferAlignment
)

// Entry is one shader record: the program or hit group name and its root arguments.
type Entry struct {
	Name string
	Args []gpu.DeviceAddress
}

// EntrySize returns the stride of a section holding the given entries: the identifier plus
// the longest argument list, aligned to RecordAlignment. An empty section has stride 0.
//
// Parameters:
//   - entries: the records of one section
//
// Returns:
//   - uint64: the section stride in bytes
func EntrySize(entries []Entry) uint64 {
	if len(entries) == 0 {
		return 0
	}
	maxArgs := 0
	for _, e := range entries {
		maxArgs = max(maxArgs, len(e.Args))
	}
	return common.AlignUp(gpu.ShaderIdentifierSize+uint64(maxArgs)*gpu.RootArgumentSize, RecordAlignment)
}

// Section locates one table section relative to the start of the table.
type Section struct {
	Offset uint64
	Size   uint64
	Stride uint64
	Count  int
}

// Layout is the placement of all three sections.
type Layout struct {
	RayGeneration Section
	Miss          Section
	HitGroup      Section
	Total         uint64
}

// DispatchDesc fills the table ranges of a dispatch for a table stored at base.
//
// Parameters:
//   - base: device address of the table buffer
//   - width, height: launch grid
//
// Returns:
//   - gpu.DispatchRaysDesc: the dispatch description with depth 1
func (l Layout) DispatchDesc(base gpu.DeviceAddress, width, height uint32) gpu.DispatchRaysDesc {
	return gpu.DispatchRaysDesc{
		RayGenerationShaderRecord: gpu.GPUVirtualAddressRange{
			StartAddress: base.Offset(l.RayGeneration.Offset),
			SizeInBytes:  l.RayGeneration.Size,
		},
		MissShaderTable: gpu.GPUVirtualAddressRangeAndStride{
			StartAddress:  base.Offset(l.Miss.Offset),
			SizeInBytes:   l.Miss.Size,
			StrideInBytes: l.Miss.Stride,
		},
		HitGroupTable: gpu.GPUVirtualAddressRangeAndStride{
			StartAddress:  base.Offset(l.HitGroup.Offset),
			SizeInBytes:   l.HitGroup.Size,
			StrideInBytes: l.HitGroup.Stride,
		},
		Width:  width,
		Height: height,
		Depth:  1,
	}
}

// IdentifierSource resolves program and hit group names to shader identifiers.
// gpu.RayTracingPipeline satisfies it.
type IdentifierSource interface {
	ShaderIdentifier(name string) ([]byte, error)
}

// Builder collects records and writes them into a table buffer.
type Builder interface {
	// Reset drops every collected record.
	Reset()

	// AddRayGenerationProgram appends a ray-generation record.
	//
	// Parameters:
	//   - name: export name
	//   - args: root arguments
	AddRayGenerationProgram(name string, args ...gpu.DeviceAddress)

	// AddMissProgram appends a miss record; the i-th call becomes miss index i.
	//
	// Parameters:
	//   - name: export name
	//   - args: root arguments
	AddMissProgram(name string, args ...gpu.DeviceAddress)

	// AddHitGroup appends a hit-group record.
	//
	// Parameters:
	//   - name: hit group name
	//   - args: root arguments
	//
	// Returns:
	//   - uint32: the record index inside the hit-group section
	AddHitGroup(name string, args ...gpu.DeviceAddress) uint32

	// Layout computes section placement for the collected records.
	Layout() Layout

	// ComputeSize returns the byte size the table buffer needs.
	ComputeSize() uint64

	// HitGroups returns a copy of the hit-group records in order.
	HitGroups() []Entry

	// Generate writes the table into buf, zero filling padding.
	//
	// Parameters:
	//   - buf: an upload-heap buffer of at least ComputeSize bytes
	//   - ids: the pipeline whose identifiers the records carry
	//
	// Returns:
	//   - error: a wrapped error for unknown names, a too-small buffer or a write failure
	Generate(buf gpu.Buffer, ids IdentifierSource) error
}

type builderImpl struct {
	mu            sync.Mutex
	rayGeneration []Entry
	miss          []Entry
	hitGroups     []Entry
}

var _ Builder = &builderImpl{}

// NewBuilder creates an empty table builder.
func NewBuilder() Builder {
	return &builderImpl{}
}

func (b *builderImpl) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rayGeneration, b.miss, b.hitGroups = nil, nil, nil
}

func entry(name string, args []gpu.DeviceAddress) Entry {
	return Entry{Name: name, Args: append([]gpu.DeviceAddress(nil), args...)}
}

func (b *builderImpl) AddRayGenerationProgram(name string, args ...gpu.DeviceAddress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rayGeneration = append(b.rayGeneration, entry(name, args))
}

func (b *builderImpl) AddMissProgram(name string, args ...gpu.DeviceAddress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.miss = append(b.miss, entry(name, args))
}

func (b *builderImpl) AddHitGroup(name string, args ...gpu.DeviceAddress) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hitGroups = append(b.hitGroups, entry(name, args))
	return uint32(len(b.hitGroups) - 1)
}

func (b *builderImpl) HitGroups() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.hitGroups))
	for i, e := range b.hitGroups {
		out[i] = entry(e.Name, e.Args)
	}
	return out
}

func section(offset uint64, entries []Entry) Section {
	stride := EntrySize(entries)
	return Section{
		Offset: common.AlignUp(offset, SectionAlignment),
		Size:   stride * uint64(len(entries)),
		Stride: stride,
		Count:  len(entries),
	}
}

func (b *builderImpl) layout() Layout {
	var l Layout
	l.RayGeneration = section(0, b.rayGeneration)
	l.Miss = section(l.RayGeneration.Offset+l.RayGeneration.Size, b.miss)
	l.HitGroup = section(l.Miss.Offset+l.Miss.Size, b.hitGroups)
	l.Total = common.AlignUp(l.HitGroup.Offset+l.HitGroup.Size, TableAlignment)
	return l
}

func (b *builderImpl) Layout() Layout {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.layout()
}

func (b *builderImpl) ComputeSize() uint64 {
	return b.Layout().Total
}

func (b *builderImpl) Generate(buf gpu.Buffer, ids IdentifierSource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	l := b.layout()
	if buf == nil || buf.Size() < l.Total {
		return fmt.Errorf("shader table needs %d bytes, buffer is too small", l.Total)
	}

	table := make([]byte, l.Total)
	sections := []struct {
		s       Section
		entries []Entry
	}{
		{l.RayGeneration, b.rayGeneration},
		{l.Miss, b.miss},
		{l.HitGroup, b.hitGroups},
	}
	for _, sec := range sections {
		for i, e := range sec.entries {
			id, err := ids.ShaderIdentifier(e.Name)
			if err != nil {
				return fmt.Errorf("shader table record %q: %w", e.Name, err)
			}
			off := sec.s.Offset + uint64(i)*sec.s.Stride
			copy(table[off:], id[:gpu.ShaderIdentifierSize])
			for j, arg := range e.Args {
				binary.LittleEndian.PutUint64(table[off+gpu.ShaderIdentifierSize+uint64(j)*gpu.RootArgumentSize:], arg.Encode())
			}
		}
	}

	if err := buf.Write(0, table); err != nil {
		return fmt.Errorf("write shader table: %w", err)
	}
	return nil
}

package sbt

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIDs map[string]byte

func (f fakeIDs) ShaderIdentifier(name string) ([]byte, error) {
	b, ok := f[name]
	if !ok {
		return nil, gpu.ErrUnknownShader
	}
	id := make([]byte, gpu.ShaderIdentifierSize)
	for i := range id {
		id[i] = b
	}
	return id, nil
}

func heapArgs(t *testing.T, s gpu.Session, slots ...int) []gpu.DeviceAddress {
	t.Helper()
	out := make([]gpu.DeviceAddress, len(slots))
	for i, slot := range slots {
		a, err := s.DescriptorHeap().SlotAddress(slot)
		require.NoError(t, err)
		out[i] = a
	}
	return out
}

func newSession(t *testing.T) gpu.Session {
	t.Helper()
	s := gpu.NewSoftwareSession(gpu.WithWorkers(2))
	t.Cleanup(s.Release)
	return s
}

func TestEntrySize(t *testing.T) {
	s := newSession(t)
	tests := []struct {
		name string
		args int
		want uint64
	}{
		{"identifier only", 0, 32},
		{"one argument", 1, 64},
		{"four arguments", 4, 64},
		{"five arguments", 5, 96},
		{"eight arguments", 8, 96},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := make([]int, tt.args)
			entries := []Entry{{Name: "a"}, {Name: "b", Args: heapArgs(t, s, args...)}}
			assert.Equal(t, tt.want, EntrySize(entries))
		})
	}
	assert.Zero(t, EntrySize(nil))
}

func TestEntrySizeGrowsWithArguments(t *testing.T) {
	s := newSession(t)
	prev := uint64(0)
	for n := 0; n < 12; n++ {
		size := EntrySize([]Entry{{Name: "x", Args: heapArgs(t, s, make([]int, n)...)}})
		assert.GreaterOrEqual(t, size, prev)
		assert.Zero(t, size%RecordAlignment)
		assert.GreaterOrEqual(t, size, uint64(gpu.ShaderIdentifierSize+n*gpu.RootArgumentSize))
		prev = size
	}
}

func TestLayoutAlignment(t *testing.T) {
	s := newSession(t)
	b := NewBuilder()
	heap := heapArgs(t, s, 0)
	b.AddRayGenerationProgram("RayGen", heap...)
	b.AddMissProgram("Miss", heap...)
	b.AddMissProgram("ShadowMiss")
	for i := 0; i < 3; i++ {
		assert.Equal(t, uint32(i), b.AddHitGroup("HitGroup", heapArgs(t, s, 0, 1, 2, 3, 4)...))
	}

	l := b.Layout()
	assert.Equal(t, uint64(0), l.RayGeneration.Offset)
	assert.Equal(t, uint64(64), l.RayGeneration.Size)
	assert.Equal(t, uint64(64), l.Miss.Offset)
	assert.Equal(t, uint64(64), l.Miss.Stride)
	assert.Equal(t, uint64(128), l.Miss.Size)
	assert.Equal(t, uint64(192), l.HitGroup.Offset)
	assert.Equal(t, uint64(96), l.HitGroup.Stride)
	assert.Equal(t, uint64(288), l.HitGroup.Size)
	assert.Equal(t, uint64(512), l.Total)
	assert.Equal(t, l.Total, b.ComputeSize())

	for _, sec := range []Section{l.RayGeneration, l.Miss, l.HitGroup} {
		assert.Zero(t, sec.Offset%SectionAlignment)
	}
}

func TestLayoutWithoutHitGroups(t *testing.T) {
	b := NewBuilder()
	b.AddRayGenerationProgram("RayGen")
	b.AddMissProgram("Miss")

	l := b.Layout()
	assert.Zero(t, l.HitGroup.Size)
	assert.Zero(t, l.HitGroup.Stride)
	assert.Zero(t, l.HitGroup.Count)
	assert.Equal(t, uint64(gpu.BufferAlignment), l.Total)
}

func TestGenerateWritesRecordsAndZeroPadding(t *testing.T) {
	s := newSession(t)
	b := NewBuilder()
	heap := heapArgs(t, s, 0)
	b.AddRayGenerationProgram("RayGen", heap...)
	b.AddMissProgram("Miss", heap...)
	b.AddHitGroup("HitGroup", heapArgs(t, s, 2, 3)...)
	b.AddHitGroup("HitGroup")

	buf, err := s.CreateBuffer(gpu.BufferDescriptor{Size: b.ComputeSize(), Heap: gpu.HeapTypeUpload, Usage: gpu.BufferUsageShaderTable})
	require.NoError(t, err)
	// stale bytes must be overwritten
	junk := make([]byte, buf.Size())
	for i := range junk {
		junk[i] = 0xEE
	}
	require.NoError(t, buf.Write(0, junk))

	ids := fakeIDs{"RayGen": 1, "Miss": 2, "HitGroup": 3}
	require.NoError(t, b.Generate(buf, ids))

	raw, err := buf.Read(0, buf.Size())
	require.NoError(t, err)
	l := b.Layout()

	assert.Equal(t, byte(1), raw[l.RayGeneration.Offset])
	assert.Equal(t, heap[0].Encode(), binary.LittleEndian.Uint64(raw[gpu.ShaderIdentifierSize:]))
	assert.Equal(t, byte(2), raw[l.Miss.Offset])

	second := l.HitGroup.Offset + l.HitGroup.Stride
	assert.Equal(t, byte(3), raw[l.HitGroup.Offset])
	assert.Equal(t, byte(3), raw[second])
	// the second hit record has no arguments; its argument area is zero
	for _, v := range raw[second+gpu.ShaderIdentifierSize : second+l.HitGroup.Stride] {
		assert.Zero(t, v)
	}
	for _, v := range raw[second+l.HitGroup.Stride:] {
		assert.Zero(t, v)
	}
}

func TestGenerateUnknownName(t *testing.T) {
	s := newSession(t)
	b := NewBuilder()
	b.AddRayGenerationProgram("RayGen")
	b.AddHitGroup("Missing")
	buf, err := s.CreateBuffer(gpu.BufferDescriptor{Size: b.ComputeSize(), Heap: gpu.HeapTypeUpload})
	require.NoError(t, err)

	err = b.Generate(buf, fakeIDs{"RayGen": 1})
	assert.ErrorIs(t, err, gpu.ErrUnknownShader)
}

func TestGenerateBufferTooSmall(t *testing.T) {
	s := newSession(t)
	b := NewBuilder()
	for i := 0; i < 10; i++ {
		b.AddHitGroup("HitGroup")
	}
	buf, err := s.CreateBuffer(gpu.BufferDescriptor{Size: 64, Heap: gpu.HeapTypeUpload})
	require.NoError(t, err)
	assert.Error(t, b.Generate(buf, fakeIDs{"HitGroup": 1}))
}

func TestResetAndHitGroupsCopy(t *testing.T) {
	s := newSession(t)
	b := NewBuilder()
	args := heapArgs(t, s, 4)
	b.AddHitGroup("HitGroup", args...)

	groups := b.HitGroups()
	require.Len(t, groups, 1)
	groups[0].Args[0] = gpu.NullAddress
	assert.Equal(t, args[0], b.HitGroups()[0].Args[0])

	b.Reset()
	assert.Empty(t, b.HitGroups())
	assert.Equal(t, uint32(0), b.AddHitGroup("HitGroup"))
}

func TestDispatchDesc(t *testing.T) {
	s := newSession(t)
	b := NewBuilder()
	b.AddRayGenerationProgram("RayGen", heapArgs(t, s, 0)...)
	b.AddMissProgram("Miss")
	b.AddHitGroup("HitGroup")
	buf, err := s.CreateBuffer(gpu.BufferDescriptor{Size: b.ComputeSize(), Heap: gpu.HeapTypeUpload})
	require.NoError(t, err)

	l := b.Layout()
	d := l.DispatchDesc(buf.Address(), 640, 480)
	assert.Equal(t, buf.Address(), d.RayGenerationShaderRecord.StartAddress)
	assert.Equal(t, l.RayGeneration.Size, d.RayGenerationShaderRecord.SizeInBytes)

	off, err := d.MissShaderTable.StartAddress.Sub(buf.Address())
	require.NoError(t, err)
	assert.Equal(t, l.Miss.Offset, off)
	assert.Equal(t, l.Miss.Stride, d.MissShaderTable.StrideInBytes)

	off, err = d.HitGroupTable.StartAddress.Sub(buf.Address())
	require.NoError(t, err)
	assert.Equal(t, l.HitGroup.Offset, off)
	assert.Equal(t, uint32(640), d.Width)
	assert.Equal(t, uint32(480), d.Height)
	assert.Equal(t, uint32(1), d.Depth)
	require.NoError(t, s.Flush(context.Background()))
}

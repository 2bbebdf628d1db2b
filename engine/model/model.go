package model

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
)

type model struct {
	mu sync.Mutex

	name     string
	vertices []GPUVertex
	indices  []uint32

	vertexBuffer gpu.Buffer
	indexBuffer  gpu.Buffer
}

// Model is a triangle mesh. Its CPU data is immutable after construction; Upload places
// it into device buffers that bottom-level builds and hit records point at.
type Model interface {
	// Name retrieves the model identifier.
	Name() string

	// Vertices returns the CPU-side vertices.
	Vertices() []GPUVertex

	// Indices returns the CPU-side indices, or nil for a non-indexed triangle list.
	Indices() []uint32

	// VertexCount returns the number of vertices.
	VertexCount() uint32

	// IndexCount returns the number of indices, 0 for a non-indexed list.
	IndexCount() uint32

	// Indexed reports whether the model draws through an index buffer.
	Indexed() bool

	// TriangleCount returns the number of triangles.
	TriangleCount() uint32

	// Upload creates the device buffers once. Later calls are no-ops.
	//
	// Parameters:
	//   - session: the session to allocate from
	//
	// Returns:
	//   - error: a wrapped allocation or write error
	Upload(session gpu.Session) error

	// VertexBuffer returns the uploaded vertex buffer, or nil before Upload.
	VertexBuffer() gpu.Buffer

	// IndexBuffer returns the uploaded index buffer, or nil for a non-indexed model.
	IndexBuffer() gpu.Buffer

	// Release frees the device buffers.
	Release()
}

var _ Model = &model{}

// NewModel creates a model from its vertices and optional indices.
//
// Parameters:
//   - options: functional options to configure the model
//
// Returns:
//   - Model: the newly created model
//   - error: an error when the triangle list is malformed
func NewModel(options ...ModelBuilderOption) (Model, error) {
	m := &model{}
	for _, option := range options {
		option(m)
	}
	if len(m.vertices) == 0 {
		return nil, fmt.Errorf("model %q has no vertices", m.name)
	}
	count := len(m.vertices)
	if len(m.indices) > 0 {
		count = len(m.indices)
		for i, idx := range m.indices {
			if int(idx) >= len(m.vertices) {
				return nil, fmt.Errorf("model %q index %d references vertex %d of %d", m.name, i, idx, len(m.vertices))
			}
		}
	}
	if count%3 != 0 {
		return nil, fmt.Errorf("model %q: %d is not a whole number of triangles", m.name, count)
	}
	return m, nil
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Vertices() []GPUVertex {
	return m.vertices
}

func (m *model) Indices() []uint32 {
	return m.indices
}

func (m *model) VertexCount() uint32 {
	return uint32(len(m.vertices))
}

func (m *model) IndexCount() uint32 {
	return uint32(len(m.indices))
}

func (m *model) Indexed() bool {
	return len(m.indices) > 0
}

func (m *model) TriangleCount() uint32 {
	if m.Indexed() {
		return m.IndexCount() / 3
	}
	return m.VertexCount() / 3
}

func upload(session gpu.Session, label string, usage gpu.BufferUsage, data []byte) (gpu.Buffer, error) {
	buf, err := session.CreateBuffer(gpu.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Heap:  gpu.HeapTypeUpload,
		Usage: usage | gpu.BufferUsageShaderResource,
	})
	if err != nil {
		return nil, fmt.Errorf("allocate %s: %w", label, err)
	}
	if err := buf.Write(0, data); err != nil {
		buf.Release()
		return nil, fmt.Errorf("write %s: %w", label, err)
	}
	return buf, nil
}

func (m *model) Upload(session gpu.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vertexBuffer != nil {
		return nil
	}

	vb, err := upload(session, m.name+" vertices", gpu.BufferUsageVertex, MarshalVertices(m.vertices))
	if err != nil {
		return err
	}
	if len(m.indices) > 0 {
		ib, err := upload(session, m.name+" indices", gpu.BufferUsageIndex, MarshalIndices(m.indices))
		if err != nil {
			vb.Release()
			return err
		}
		m.indexBuffer = ib
	}
	m.vertexBuffer = vb
	return nil
}

func (m *model) VertexBuffer() gpu.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vertexBuffer
}

func (m *model) IndexBuffer() gpu.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexBuffer
}

func (m *model) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vertexBuffer != nil {
		m.vertexBuffer.Release()
		m.vertexBuffer = nil
	}
	if m.indexBuffer != nil {
		m.indexBuffer.Release()
		m.indexBuffer = nil
	}
}

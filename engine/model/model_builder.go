package model

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithVertices sets the vertex list.
//
// Parameters:
//   - vertices: the mesh vertices
//
// Returns:
//   - ModelBuilderOption: a function that applies the vertices to a model
func WithVertices(vertices []GPUVertex) ModelBuilderOption {
	return func(m *model) {
		m.vertices = vertices
	}
}

// WithIndices sets the index list. Without it the vertices form a non-indexed triangle list.
//
// Parameters:
//   - indices: counter-clockwise triangle indices
//
// Returns:
//   - ModelBuilderOption: a function that applies the indices to a model
func WithIndices(indices []uint32) ModelBuilderOption {
	return func(m *model) {
		m.indices = indices
	}
}

// WithoutIndices expands an indexed mesh into a non-indexed triangle list.
//
// Parameters:
//   - vertices: the shared vertices
//   - indices: the triangle indices to expand
//
// Returns:
//   - ModelBuilderOption: a function that applies the expanded vertices to a model
func WithoutIndices(vertices []GPUVertex, indices []uint32) ModelBuilderOption {
	return func(m *model) {
		out := make([]GPUVertex, len(indices))
		for i, idx := range indices {
			if int(idx) < len(vertices) {
				out[i] = vertices[idx]
			}
		}
		m.vertices = out
		m.indices = nil
	}
}

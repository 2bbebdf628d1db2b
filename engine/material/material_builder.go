package material

// MaterialBuilderOption is a function that configures a Material during construction.
type MaterialBuilderOption func(*material)

// WithName sets the material identifier.
//
// Parameters:
//   - name: the material name
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithBaseColor sets the RGBA object color.
//
// Parameters:
//   - color: the RGBA base color
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color to a material
func WithBaseColor(color [4]float32) MaterialBuilderOption {
	return func(m *material) {
		m.baseColor = color
	}
}

// WithReflection enables reflection rays up to depth bounces.
//
// Parameters:
//   - depth: the reflection bounce limit
//
// Returns:
//   - MaterialBuilderOption: a function that enables reflection on a material
func WithReflection(depth int32) MaterialBuilderOption {
	return func(m *material) {
		m.reflection = true
		m.maxRecursionDepth = depth
	}
}

// WithShininess sets the Phong exponent.
//
// Parameters:
//   - shininess: the exponent
//
// Returns:
//   - MaterialBuilderOption: a function that applies the shininess to a material
func WithShininess(shininess float32) MaterialBuilderOption {
	return func(m *material) {
		m.shininess = shininess
	}
}

// WithRoughness sets how much a reflection is blended toward the diffuse color.
//
// Parameters:
//   - roughness: 0 is a perfect mirror, 1 ignores the reflection
//
// Returns:
//   - MaterialBuilderOption: a function that applies the roughness to a material
func WithRoughness(roughness float32) MaterialBuilderOption {
	return func(m *material) {
		m.roughness = roughness
	}
}

// WithOutline draws triangle edges.
//
// Parameters:
//   - thickness: edge width in barycentric units
//   - color: edge RGB color
//
// Returns:
//   - MaterialBuilderOption: a function that enables the outline on a material
func WithOutline(thickness float32, color [3]float32) MaterialBuilderOption {
	return func(m *material) {
		m.outline = true
		m.outlineThickness = thickness
		m.outlineColor = color
	}
}

// WithTextured sets whether the hit program samples the object's texture.
//
// Parameters:
//   - enabled: the texture flag
//
// Returns:
//   - MaterialBuilderOption: a function that applies the texture flag to a material
func WithTextured(enabled bool) MaterialBuilderOption {
	return func(m *material) {
		m.textured = enabled
	}
}

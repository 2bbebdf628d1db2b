package model

import (
	"math"

	"github.com/Carmen-Shannon/oxy-rt/common"
)

// Every primitive winds its triangles counter-clockwise seen from outside.

func vertex(p, n common.Vec3, u, v float32) GPUVertex {
	return GPUVertex{Position: p, Normal: [4]float32{n[0], n[1], n[2], 0}, TexCoord: [2]float32{u, v}}
}

// CubeMesh returns an axis-aligned cube with one quad of four vertices per face.
//
// Parameters:
//   - size: edge length
//
// Returns:
//   - []GPUVertex: 24 vertices
//   - []uint32: 36 indices
func CubeMesh(size float32) ([]GPUVertex, []uint32) {
	faces := []struct{ n, u, v common.Vec3 }{
		{common.Vec3{1, 0, 0}, common.Vec3{0, 0, -1}, common.Vec3{0, 1, 0}},
		{common.Vec3{-1, 0, 0}, common.Vec3{0, 0, 1}, common.Vec3{0, 1, 0}},
		{common.Vec3{0, 1, 0}, common.Vec3{1, 0, 0}, common.Vec3{0, 0, -1}},
		{common.Vec3{0, -1, 0}, common.Vec3{1, 0, 0}, common.Vec3{0, 0, 1}},
		{common.Vec3{0, 0, 1}, common.Vec3{1, 0, 0}, common.Vec3{0, 1, 0}},
		{common.Vec3{0, 0, -1}, common.Vec3{-1, 0, 0}, common.Vec3{0, 1, 0}},
	}
	h := size / 2
	vertices := make([]GPUVertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
		for _, c := range corners {
			p := f.n.Add(f.u.Scale(c[0])).Add(f.v.Scale(c[1])).Scale(h)
			vertices = append(vertices, vertex(p, f.n, (c[0]+1)/2, (1-c[1])/2))
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}

// PlaneMesh returns a square in the XZ plane facing +Y.
//
// Parameters:
//   - size: edge length
//   - tiles: texture repeats across the plane
//
// Returns:
//   - []GPUVertex: 4 vertices
//   - []uint32: 6 indices
func PlaneMesh(size, tiles float32) ([]GPUVertex, []uint32) {
	h := size / 2
	up := common.Vec3{0, 1, 0}
	vertices := []GPUVertex{
		vertex(common.Vec3{-h, 0, h}, up, 0, tiles),
		vertex(common.Vec3{h, 0, h}, up, tiles, tiles),
		vertex(common.Vec3{h, 0, -h}, up, tiles, 0),
		vertex(common.Vec3{-h, 0, -h}, up, 0, 0),
	}
	return vertices, []uint32{0, 1, 2, 0, 2, 3}
}

// SphereMesh returns a UV sphere centered on the origin.
//
// Parameters:
//   - radius: sphere radius
//   - slices: segments around the Y axis (at least 3)
//   - stacks: segments from pole to pole (at least 2)
//
// Returns:
//   - []GPUVertex: (stacks+1)*(slices+1) vertices
//   - []uint32: 6*stacks*slices indices
func SphereMesh(radius float32, slices, stacks int) ([]GPUVertex, []uint32) {
	slices, stacks = max(slices, 3), max(stacks, 2)
	vertices := make([]GPUVertex, 0, (stacks+1)*(slices+1))
	for i := 0; i <= stacks; i++ {
		sinT, cosT := math.Sincos(math.Pi * float64(i) / float64(stacks))
		for j := 0; j <= slices; j++ {
			sinP, cosP := math.Sincos(2 * math.Pi * float64(j) / float64(slices))
			n := common.Vec3{float32(sinT * sinP), float32(cosT), float32(sinT * cosP)}
			vertices = append(vertices, vertex(n.Scale(radius), n, float32(j)/float32(slices), float32(i)/float32(stacks)))
		}
	}
	return vertices, gridIndices(stacks, slices, false)
}

// TorusMesh returns a torus around the Y axis.
//
// Parameters:
//   - major: distance from the center to the tube center
//   - minor: tube radius
//   - rings: segments around the Y axis (at least 3)
//   - sides: segments around the tube (at least 3)
//
// Returns:
//   - []GPUVertex: (rings+1)*(sides+1) vertices
//   - []uint32: 6*rings*sides indices
func TorusMesh(major, minor float32, rings, sides int) ([]GPUVertex, []uint32) {
	rings, sides = max(rings, 3), max(sides, 3)
	vertices := make([]GPUVertex, 0, (rings+1)*(sides+1))
	for i := 0; i <= rings; i++ {
		sinP, cosP := math.Sincos(2 * math.Pi * float64(i) / float64(rings))
		for j := 0; j <= sides; j++ {
			sinT, cosT := math.Sincos(2 * math.Pi * float64(j) / float64(sides))
			n := common.Vec3{float32(cosT * cosP), float32(sinT), float32(cosT * sinP)}
			ring := major + minor*float32(cosT)
			p := common.Vec3{ring * float32(cosP), minor * float32(sinT), ring * float32(sinP)}
			vertices = append(vertices, vertex(p, n, float32(i)/float32(rings), float32(j)/float32(sides)))
		}
	}
	return vertices, gridIndices(rings, sides, true)
}

// gridIndices triangulates a (rows+1) x (cols+1) vertex grid. flip reverses the winding.
func gridIndices(rows, cols int, flip bool) []uint32 {
	indices := make([]uint32, 0, rows*cols*6)
	stride := uint32(cols + 1)
	for i := uint32(0); i < uint32(rows); i++ {
		for j := uint32(0); j < uint32(cols); j++ {
			a := i*stride + j
			b := (i+1)*stride + j
			c := b + 1
			d := a + 1
			if flip {
				indices = append(indices, a, c, b, a, d, c)
			} else {
				indices = append(indices, a, b, c, a, c, d)
			}
		}
	}
	return indices
}

// NewCube creates an indexed cube model.
func NewCube(name string, size float32) (Model, error) {
	v, i := CubeMesh(size)
	return NewModel(WithName(name), WithVertices(v), WithIndices(i))
}

// NewPlane creates an indexed plane model.
func NewPlane(name string, size, tiles float32) (Model, error) {
	v, i := PlaneMesh(size, tiles)
	return NewModel(WithName(name), WithVertices(v), WithIndices(i))
}

// NewSphere creates an indexed sphere model.
func NewSphere(name string, radius float32, slices, stacks int) (Model, error) {
	v, i := SphereMesh(radius, slices, stacks)
	return NewModel(WithName(name), WithVertices(v), WithIndices(i))
}

// NewTorus creates a non-indexed torus model.
func NewTorus(name string, major, minor float32, rings, sides int) (Model, error) {
	v, i := TorusMesh(major, minor, rings, sides)
	return NewModel(WithName(name), WithoutIndices(v, i))
}

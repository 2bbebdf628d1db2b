package bvh

import "github.com/Carmen-Shannon/oxy-rt/common"

const triangleEpsilon = 1e-8

// Triangle is one primitive of a bottom-level structure.
type Triangle struct {
	V0, V1, V2 common.Vec3
	// Geometry is the index of the geometry the triangle came from.
	Geometry uint32
	// Primitive is the triangle index inside its geometry.
	Primitive uint32
}

// Bounds returns the box enclosing the triangle.
func (tr Triangle) Bounds() AABB {
	return EmptyAABB().Extend(tr.V0).Extend(tr.V1).Extend(tr.V2)
}

// TriangleHit is the result of a successful ray/triangle test.
type TriangleHit struct {
	T         float32
	U, V      float32
	FrontFace bool
}

// Intersect runs the Moller-Trumbore test. Counter-clockwise winding seen from the
// ray origin is front facing.
//
// Parameters:
//   - origin, dir: the ray
//   - tMin, tMax: accepted parametric range
//   - cullBack: reject back-facing hits
//
// Returns:
//   - TriangleHit: distance, barycentrics and facing
//   - bool: whether the triangle was hit inside the range
func (tr Triangle) Intersect(origin, dir common.Vec3, tMin, tMax float32, cullBack bool) (TriangleHit, bool) {
	e1 := tr.V1.Sub(tr.V0)
	e2 := tr.V2.Sub(tr.V0)
	p := dir.Cross(e2)
	det := e1.Dot(p)

	if det > -triangleEpsilon && det < triangleEpsilon {
		return TriangleHit{}, false
	}
	front := det > 0
	if cullBack && !front {
		return TriangleHit{}, false
	}

	inv := 1 / det
	s := origin.Sub(tr.V0)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return TriangleHit{}, false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return TriangleHit{}, false
	}
	t := e2.Dot(q) * inv
	if t < tMin || t > tMax {
		return TriangleHit{}, false
	}
	return TriangleHit{T: t, U: u, V: v, FrontFace: front}, true
}

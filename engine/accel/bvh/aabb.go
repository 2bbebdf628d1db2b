package bvh

import (
	"math"

	"github.com/Carmen-Shannon/oxy-rt/common"
)

// AABB is an axis aligned bounding box.
type AABB struct {
	Min common.Vec3
	Max common.Vec3
}

// EmptyAABB returns an inverted box that any Extend or Union replaces.
func EmptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{
		Min: common.Vec3{inf, inf, inf},
		Max: common.Vec3{-inf, -inf, -inf},
	}
}

// Valid reports whether the box encloses at least one point.
func (b AABB) Valid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

// Extend grows the box to include p.
func (b AABB) Extend(p common.Vec3) AABB {
	return AABB{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Union returns the smallest box enclosing b and o.
func (b AABB) Union(o AABB) AABB {
	return AABB{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// Centroid returns the center of the box.
func (b AABB) Centroid() common.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Extent returns the size of the box along each axis.
func (b AABB) Extent() common.Vec3 {
	return b.Max.Sub(b.Min)
}

// SurfaceArea returns the area of the box surface, or 0 for an empty box.
func (b AABB) SurfaceArea() float32 {
	if !b.Valid() {
		return 0
	}
	e := b.Extent()
	return 2 * (e[0]*e[1] + e[1]*e[2] + e[2]*e[0])
}

// Transform returns the bounds of the box after an affine transform.
func (b AABB) Transform(t common.Mat3x4) AABB {
	if !b.Valid() {
		return b
	}
	out := EmptyAABB()
	for i := 0; i < 8; i++ {
		corner := common.Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			corner[0] = b.Max[0]
		}
		if i&2 != 0 {
			corner[1] = b.Max[1]
		}
		if i&4 != 0 {
			corner[2] = b.Max[2]
		}
		out = out.Extend(common.TransformPoint(t, corner))
	}
	return out
}

// Intersect clips the segment [tMin, tMax] of a ray against the box with the slab test.
//
// Parameters:
//   - origin: ray origin
//   - dir: ray direction (not necessarily normalized)
//   - tMin, tMax: the parametric segment to clip
//
// Returns:
//   - float32: the entry distance
//   - bool: whether the segment overlaps the box
func (b AABB) Intersect(origin, dir common.Vec3, tMin, tMax float32) (float32, bool) {
	if !b.Valid() {
		return 0, false
	}
	for axis := 0; axis < 3; axis++ {
		if dir[axis] == 0 {
			if origin[axis] < b.Min[axis] || origin[axis] > b.Max[axis] {
				return 0, false
			}
			continue
		}
		inv := 1 / dir[axis]
		t0 := (b.Min[axis] - origin[axis]) * inv
		t1 := (b.Max[axis] - origin[axis]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
		if tMin > tMax {
			return 0, false
		}
	}
	return tMin, true
}

package bvh

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomTriangles(r *rand.Rand, n int) []Triangle {
	tris := make([]Triangle, n)
	for i := range tris {
		c := common.Vec3{r.Float32()*20 - 10, r.Float32()*20 - 10, r.Float32()*20 - 10}
		jitter := func() common.Vec3 {
			return c.Add(common.Vec3{r.Float32() - 0.5, r.Float32() - 0.5, r.Float32() - 0.5})
		}
		tris[i] = Triangle{V0: jitter(), V1: jitter(), V2: jitter(), Primitive: uint32(i)}
	}
	return tris
}

func boundsOf(tris []Triangle) []AABB {
	out := make([]AABB, len(tris))
	for i, tr := range tris {
		out[i] = tr.Bounds()
	}
	return out
}

func bruteForce(tris []Triangle, o, d common.Vec3) (int, float32) {
	best := -1
	bestT := float32(math.Inf(1))
	for i, tr := range tris {
		if h, ok := tr.Intersect(o, d, 0, bestT, false); ok {
			best, bestT = i, h.T
		}
	}
	return best, bestT
}

func closest(tree *Tree, tris []Triangle, o, d common.Vec3) (int, float32) {
	best := -1
	bestT := float32(math.Inf(1))
	tree.Traverse(o, d, 0, bestT, func(prim uint32, tMax float32) (float32, bool) {
		if h, ok := tris[prim].Intersect(o, d, 0, tMax, false); ok {
			best, bestT = int(prim), h.T
			return h.T, false
		}
		return tMax, false
	})
	return best, bestT
}

func TestAABBIntersect(t *testing.T) {
	box := AABB{Min: common.Vec3{-1, -1, -1}, Max: common.Vec3{1, 1, 1}}

	tNear, ok := box.Intersect(common.Vec3{0, 0, -5}, common.Vec3{0, 0, 1}, 0, 100)
	require.True(t, ok)
	assert.InDelta(t, 4, tNear, 1e-5)

	_, ok = box.Intersect(common.Vec3{0, 2, -5}, common.Vec3{0, 0, 1}, 0, 100)
	assert.False(t, ok, "axis-parallel ray outside the slab")

	_, ok = box.Intersect(common.Vec3{0, 0, -5}, common.Vec3{0, 0, 1}, 0, 3)
	assert.False(t, ok, "segment ends before the box")

	assert.False(t, EmptyAABB().Valid())
	assert.Equal(t, float32(24), box.SurfaceArea())
}

func TestTriangleIntersect(t *testing.T) {
	tr := Triangle{V0: common.Vec3{-1, -1, 0}, V1: common.Vec3{1, -1, 0}, V2: common.Vec3{0, 1, 0}}

	h, ok := tr.Intersect(common.Vec3{0, 0, 5}, common.Vec3{0, 0, -1}, 0, 100, false)
	require.True(t, ok)
	assert.InDelta(t, 5, h.T, 1e-5)
	assert.True(t, h.FrontFace)

	h, ok = tr.Intersect(common.Vec3{0, 0, -5}, common.Vec3{0, 0, 1}, 0, 100, false)
	require.True(t, ok)
	assert.False(t, h.FrontFace)

	_, ok = tr.Intersect(common.Vec3{0, 0, -5}, common.Vec3{0, 0, 1}, 0, 100, true)
	assert.False(t, ok, "back face culled")

	_, ok = tr.Intersect(common.Vec3{5, 5, 5}, common.Vec3{0, 0, -1}, 0, 100, false)
	assert.False(t, ok)
}

func TestBuildStructure(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	tris := randomTriangles(r, 500)
	tree := Build(boundsOf(tris), 4)

	seen := make(map[uint32]bool)
	for i, n := range tree.Nodes {
		if n.Leaf() {
			assert.LessOrEqual(t, n.Count, uint32(4))
			for _, idx := range tree.Indices[n.First : n.First+n.Count] {
				assert.False(t, seen[idx], "primitive %d referenced twice", idx)
				seen[idx] = true
				assert.True(t, n.Bounds.Union(tris[idx].Bounds()) == n.Bounds)
			}
			continue
		}
		assert.Greater(t, n.Left, uint32(i))
		assert.Greater(t, n.Right, uint32(i))
		assert.Equal(t, n.Bounds, tree.Nodes[n.Left].Bounds.Union(tree.Nodes[n.Right].Bounds))
	}
	assert.Len(t, seen, len(tris))
}

func TestTraverseMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	tris := randomTriangles(r, 300)
	tree := Build(boundsOf(tris), 0)

	for i := 0; i < 400; i++ {
		o := common.Vec3{r.Float32()*40 - 20, r.Float32()*40 - 20, -30}
		d := common.Vec3{r.Float32() - 0.5, r.Float32() - 0.5, 1}.Normalize()

		wantIdx, wantT := bruteForce(tris, o, d)
		gotIdx, gotT := closest(tree, tris, o, d)
		require.Equal(t, wantIdx, gotIdx, "ray %d", i)
		if wantIdx >= 0 {
			assert.InDelta(t, wantT, gotT, 1e-4)
		}
	}
}

func TestRefitAfterMove(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	tris := randomTriangles(r, 64)
	tree := Build(boundsOf(tris), 2)

	offset := common.Vec3{0, 0, 50}
	for i := range tris {
		tris[i].V0 = tris[i].V0.Add(offset)
		tris[i].V1 = tris[i].V1.Add(offset)
		tris[i].V2 = tris[i].V2.Add(offset)
	}
	require.NoError(t, tree.Refit(boundsOf(tris)))

	for i := 0; i < 100; i++ {
		o := common.Vec3{r.Float32()*20 - 10, r.Float32()*20 - 10, 0}
		d := common.Vec3{0, 0, 1}
		wantIdx, _ := bruteForce(tris, o, d)
		gotIdx, _ := closest(tree, tris, o, d)
		assert.Equal(t, wantIdx, gotIdx)
	}

	assert.Error(t, tree.Refit(boundsOf(tris[:10])))
}

func TestEmptyTree(t *testing.T) {
	tree := Build(nil, 4)
	called := false
	tree.Traverse(common.Vec3{}, common.Vec3{0, 0, 1}, 0, 10, func(uint32, float32) (float32, bool) {
		called = true
		return 0, true
	})
	assert.False(t, called)
	assert.False(t, tree.Bounds().Valid())
	assert.NoError(t, tree.Refit(nil))
}

func TestIdenticalCentroidsFallBackToMedian(t *testing.T) {
	tris := make([]Triangle, 20)
	for i := range tris {
		tris[i] = Triangle{V0: common.Vec3{-1, -1, 0}, V1: common.Vec3{1, -1, 0}, V2: common.Vec3{0, 1, 0}}
	}
	tree := Build(boundsOf(tris), 4)
	leaves := 0
	for _, n := range tree.Nodes {
		if n.Leaf() {
			leaves++
			assert.LessOrEqual(t, n.Count, uint32(4))
		}
	}
	assert.GreaterOrEqual(t, leaves, 5)
}

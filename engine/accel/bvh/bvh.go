package bvh

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-rt/common"
)

const (
	// DefaultMaxLeafSize is the primitive count below which a node is never split.
	DefaultMaxLeafSize = 4

	binCount     = 12
	traverseCost = 1
)

// Node is one entry of a flattened tree. Interior nodes have Count == 0 and
// always sit before their children in Tree.Nodes.
type Node struct {
	Bounds AABB
	Left   uint32
	Right  uint32
	First  uint32
	Count  uint32
}

// Leaf reports whether the node references primitives directly.
func (n Node) Leaf() bool {
	return n.Count > 0
}

// Tree is a bounding volume hierarchy over primitive bounds.
type Tree struct {
	Nodes []Node
	// Indices maps leaf ranges onto primitive indices.
	Indices []uint32
}

type buildItem struct {
	bounds   AABB
	centroid common.Vec3
}

type bin struct {
	bounds AABB
	count  uint32
}

// Build constructs a tree with a binned surface-area heuristic.
//
// Parameters:
//   - bounds: one box per primitive
//   - maxLeaf: primitives per leaf; values below 1 select DefaultMaxLeafSize
//
// Returns:
//   - *Tree: the built tree; an empty input yields a tree with no nodes
func Build(bounds []AABB, maxLeaf int) *Tree {
	if maxLeaf < 1 {
		maxLeaf = DefaultMaxLeafSize
	}
	t := &Tree{Indices: make([]uint32, len(bounds))}
	if len(bounds) == 0 {
		return t
	}

	items := make([]buildItem, len(bounds))
	for i, b := range bounds {
		items[i] = buildItem{bounds: b, centroid: b.Centroid()}
		t.Indices[i] = uint32(i)
	}
	t.Nodes = make([]Node, 0, 2*len(bounds)-1)
	t.build(items, 0, uint32(len(bounds)), uint32(maxLeaf))
	return t
}

func (t *Tree) build(items []buildItem, first, count, maxLeaf uint32) uint32 {
	nodeIndex := uint32(len(t.Nodes))
	t.Nodes = append(t.Nodes, Node{})

	box := EmptyAABB()
	centroids := EmptyAABB()
	for _, idx := range t.Indices[first : first+count] {
		box = box.Union(items[idx].bounds)
		centroids = centroids.Extend(items[idx].centroid)
	}

	if count <= maxLeaf {
		t.Nodes[nodeIndex] = Node{Bounds: box, First: first, Count: count}
		return nodeIndex
	}

	mid, ok := t.partitionSAH(items, first, count, box, centroids)
	if !ok {
		mid = t.partitionMedian(items, first, count, centroids)
	}

	left := t.build(items, first, mid-first, maxLeaf)
	right := t.build(items, mid, first+count-mid, maxLeaf)
	t.Nodes[nodeIndex] = Node{Bounds: box, Left: left, Right: right}
	return nodeIndex
}

// partitionSAH splits [first, first+count) at the cheapest bin boundary and
// returns the index of the first primitive of the right half.
func (t *Tree) partitionSAH(items []buildItem, first, count uint32, box, centroids AABB) (uint32, bool) {
	parentArea := box.SurfaceArea()
	extent := centroids.Extent()

	bestAxis := -1
	bestSplit := 0
	bestCost := float32(count)
	if parentArea <= 0 {
		return 0, false
	}

	for axis := 0; axis < 3; axis++ {
		if extent[axis] <= 0 {
			continue
		}
		var bins [binCount]bin
		for i := range bins {
			bins[i].bounds = EmptyAABB()
		}
		scale := float32(binCount) / extent[axis]
		for _, idx := range t.Indices[first : first+count] {
			b := binIndex(items[idx].centroid[axis], centroids.Min[axis], scale)
			bins[b].count++
			bins[b].bounds = bins[b].bounds.Union(items[idx].bounds)
		}

		var leftArea, rightArea [binCount - 1]float32
		var leftCount, rightCount [binCount - 1]uint32
		acc := EmptyAABB()
		var n uint32
		for i := 0; i < binCount-1; i++ {
			acc = acc.Union(bins[i].bounds)
			n += bins[i].count
			leftArea[i], leftCount[i] = acc.SurfaceArea(), n
		}
		acc = EmptyAABB()
		n = 0
		for i := binCount - 1; i > 0; i-- {
			acc = acc.Union(bins[i].bounds)
			n += bins[i].count
			rightArea[i-1], rightCount[i-1] = acc.SurfaceArea(), n
		}

		for i := 0; i < binCount-1; i++ {
			if leftCount[i] == 0 || rightCount[i] == 0 {
				continue
			}
			cost := traverseCost + (leftArea[i]*float32(leftCount[i])+rightArea[i]*float32(rightCount[i]))/parentArea
			if cost < bestCost {
				bestCost, bestAxis, bestSplit = cost, axis, i
			}
		}
	}

	if bestAxis < 0 {
		return 0, false
	}

	scale := float32(binCount) / extent[bestAxis]
	lo, hi := first, first+count-1
	for lo <= hi {
		idx := t.Indices[lo]
		if binIndex(items[idx].centroid[bestAxis], centroids.Min[bestAxis], scale) <= bestSplit {
			lo++
			continue
		}
		t.Indices[lo], t.Indices[hi] = t.Indices[hi], t.Indices[lo]
		if hi == 0 {
			break
		}
		hi--
	}
	if lo == first || lo == first+count {
		return 0, false
	}
	return lo, true
}

// partitionMedian splits in half along the widest centroid axis.
func (t *Tree) partitionMedian(items []buildItem, first, count uint32, centroids AABB) uint32 {
	extent := centroids.Extent()
	axis := 0
	if extent[1] > extent[axis] {
		axis = 1
	}
	if extent[2] > extent[axis] {
		axis = 2
	}
	span := t.Indices[first : first+count]
	sort.Slice(span, func(i, j int) bool {
		return items[span[i]].centroid[axis] < items[span[j]].centroid[axis]
	})
	return first + count/2
}

func binIndex(c, min, scale float32) int {
	b := int((c - min) * scale)
	if b < 0 {
		return 0
	}
	if b >= binCount {
		return binCount - 1
	}
	return b
}

// Refit recomputes every node box bottom-up for moved primitives. The topology is unchanged.
//
// Parameters:
//   - bounds: the new box of every primitive, in the original order
//
// Returns:
//   - error: an error if the primitive count differs from the build
func (t *Tree) Refit(bounds []AABB) error {
	if len(bounds) != len(t.Indices) {
		return fmt.Errorf("refit with %d primitives, tree was built with %d", len(bounds), len(t.Indices))
	}
	for i := len(t.Nodes) - 1; i >= 0; i-- {
		n := &t.Nodes[i]
		if n.Leaf() {
			box := EmptyAABB()
			for _, idx := range t.Indices[n.First : n.First+n.Count] {
				box = box.Union(bounds[idx])
			}
			n.Bounds = box
			continue
		}
		n.Bounds = t.Nodes[n.Left].Bounds.Union(t.Nodes[n.Right].Bounds)
	}
	return nil
}

// Bounds returns the root box, or an empty box for an empty tree.
func (t *Tree) Bounds() AABB {
	if len(t.Nodes) == 0 {
		return EmptyAABB()
	}
	return t.Nodes[0].Bounds
}

// Visitor is called for each primitive whose leaf the ray reaches. It returns the
// new upper bound of the ray segment and whether traversal should stop.
type Visitor func(primitive uint32, tMax float32) (float32, bool)

// Traverse walks the tree front to back along a ray.
//
// Parameters:
//   - origin, dir: the ray
//   - tMin, tMax: the parametric segment
//   - visit: called for candidate primitives
func (t *Tree) Traverse(origin, dir common.Vec3, tMin, tMax float32, visit Visitor) {
	if len(t.Nodes) == 0 {
		return
	}
	if _, ok := t.Nodes[0].Bounds.Intersect(origin, dir, tMin, tMax); !ok {
		return
	}

	var stackBuf [64]uint32
	stack := append(stackBuf[:0], 0)
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.Nodes[ni]
		if _, ok := n.Bounds.Intersect(origin, dir, tMin, tMax); !ok {
			continue
		}

		if n.Leaf() {
			for _, prim := range t.Indices[n.First : n.First+n.Count] {
				var stop bool
				tMax, stop = visit(prim, tMax)
				if stop {
					return
				}
			}
			continue
		}

		tl, okL := t.Nodes[n.Left].Bounds.Intersect(origin, dir, tMin, tMax)
		tr, okR := t.Nodes[n.Right].Bounds.Intersect(origin, dir, tMin, tMax)
		switch {
		case okL && okR:
			if tl <= tr {
				stack = append(stack, n.Right, n.Left)
			} else {
				stack = append(stack, n.Left, n.Right)
			}
		case okL:
			stack = append(stack, n.Left)
		case okR:
			stack = append(stack, n.Right)
		}
	}
}

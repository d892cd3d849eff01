// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// bhtree.go holds the CPU port of the Barnes-Hut pipeline: Morton encoding,
// radix sort, Karras binary radix tree construction, bottom-up center-of-mass
// aggregation via the second-visitor pattern, and the per-node top-down
// traversal with the theta opening criterion. Stage boundaries match the
// WGSL shaders in internal/gpu/shaders one to one.

package sim

import (
	"math/bits"
	"sort"

	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// bhDeltaSearchCap bounds the prefix-delta range search against adversarial
// Morton collisions.
const bhDeltaSearchCap = 32

// bhParentWalkCap bounds the aggregation parent walk against corrupted
// pointers.
const bhParentWalkCap = 64

// bhTraversalStackCap sizes the traversal stack; a Karras tree over 2^32
// leaves can never exceed 64 levels when balanced by Morton order.
const bhTraversalStackCap = 64

// mortonSpread interleaves the low 16 bits of v with zeros.
func mortonSpread(v uint32) uint32 {
	v &= 0x0000ffff
	v = (v | v<<8) & 0x00ff00ff
	v = (v | v<<4) & 0x0f0f0f0f
	v = (v | v<<2) & 0x33333333
	v = (v | v<<1) & 0x55555555
	return v
}

// mortonEncode maps a position within bounds to a 32-bit Morton code
// (16 bits per axis).
func mortonEncode(x, y float32, bounds simcore.Bounds) uint32 {
	extentX := bounds.MaxX - bounds.MinX
	extentY := bounds.MaxY - bounds.MinY
	if extentX <= 0 {
		extentX = 1
	}
	if extentY <= 0 {
		extentY = 1
	}
	nx := (x - bounds.MinX) / extentX
	ny := (y - bounds.MinY) / extentY
	nx = clamp01(nx)
	ny = clamp01(ny)
	ix := uint32(nx * 65535)
	iy := uint32(ny * 65535)
	return mortonSpread(ix) | mortonSpread(iy)<<1
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// bhTree is a Karras binary radix tree over Morton-sorted leaves with
// per-cell mass, center of mass, and a geometric size used by the opening
// criterion.
type bhTree struct {
	// codes and order hold the sorted Morton codes and the original slot of
	// each leaf.
	codes []uint32
	order []uint32

	// Internal node topology: n-1 internal nodes, children index leaves as
	// i+n (leafBase) and internal nodes as i.
	left   []uint32
	right  []uint32
	parent []uint32 // for all 2n-1 nodes: internal [0,n-1), leaves [n-1 shifted]

	// Aggregates for internal nodes followed by leaves.
	mass  []float32
	comX  []float32
	comY  []float32
	size  []float32
	visit []uint32

	leafCount uint32
}

// leafBase returns the node-index offset of leaves in the combined space.
func (t *bhTree) leafBase() uint32 { return t.leafCount - 1 }

// bhDelta returns the length of the common Morton prefix between sorted
// leaves i and j, with the leaf index as tiebreaker on duplicate codes so
// the delta stays strictly monotone. Out-of-range j yields -1.
func (t *bhTree) bhDelta(i int64, j int64) int64 {
	if j < 0 || j >= int64(t.leafCount) {
		return -1
	}
	ci, cj := t.codes[i], t.codes[j]
	if ci == cj {
		// Identical codes: extend the key with the index bits.
		return 32 + int64(bits.LeadingZeros32(uint32(i)^uint32(j)))
	}
	return int64(bits.LeadingZeros32(ci ^ cj))
}

// build constructs the tree for the given positions. Leaves are the live
// node slots in Morton order; masses default to 1 unless provided.
func (t *bhTree) build(posX, posY []float32, mass []float32, flags []uint32, nodeCount uint32, bounds simcore.Bounds) {
	t.codes = t.codes[:0]
	t.order = t.order[:0]
	for i := uint32(0); i < nodeCount; i++ {
		if !alive(flags, i) {
			continue
		}
		t.codes = append(t.codes, mortonEncode(posX[i], posY[i], bounds))
		t.order = append(t.order, i)
	}
	n := uint32(len(t.order))
	t.leafCount = n
	if n == 0 {
		return
	}
	// Radix order via the paired sort; the GPU path uses a 4-bit LSD radix
	// sort, which is stable. Sorting (code, slot) pairs keeps determinism.
	sort.Sort(&mortonOrder{codes: t.codes, order: t.order})

	total := 2*n - 1
	if cap(t.mass) < int(total) {
		t.left = make([]uint32, n)
		t.right = make([]uint32, n)
		t.parent = make([]uint32, total)
		t.mass = make([]float32, total)
		t.comX = make([]float32, total)
		t.comY = make([]float32, total)
		t.size = make([]float32, total)
		t.visit = make([]uint32, total)
	}
	t.left = t.left[:n]
	t.right = t.right[:n]
	t.parent = t.parent[:total]
	t.mass = t.mass[:total]
	t.comX = t.comX[:total]
	t.comY = t.comY[:total]
	t.size = t.size[:total]
	t.visit = t.visit[:total]

	base := t.leafBase()

	// Seed leaves.
	for i := uint32(0); i < n; i++ {
		slot := t.order[i]
		node := base + i
		m := float32(1)
		if mass != nil {
			m = mass[slot]
			if m <= 0 {
				m = 1
			}
		}
		t.mass[node] = m
		t.comX[node] = posX[slot]
		t.comY[node] = posY[slot]
		t.size[node] = 0
		t.visit[node] = 0
	}
	for i := uint32(0); i+1 < n; i++ {
		t.visit[i] = 0
	}
	t.parent[0] = 0

	if n == 1 {
		return
	}

	// Karras 2012: each internal node i in [0, n-1) derives its range and
	// split point from the sorted codes alone, so the loop parallelizes on
	// the GPU with no sequential dependency.
	for i := uint32(0); i+1 < n; i++ {
		first, last := t.nodeRange(int64(i))
		split := t.findSplit(first, last)

		var leftChild uint32
		if split == first {
			leftChild = base + uint32(split) // leaf
		} else {
			leftChild = uint32(split)
		}
		var rightChild uint32
		if split+1 == last {
			rightChild = base + uint32(split+1)
		} else {
			rightChild = uint32(split + 1)
		}
		t.left[i] = leftChild
		t.right[i] = rightChild
		t.parent[leftChild] = i
		t.parent[rightChild] = i
	}
}

// nodeRange determines the leaf range covered by internal node i.
func (t *bhTree) nodeRange(i int64) (int64, int64) {
	if i == 0 {
		return 0, int64(t.leafCount) - 1
	}
	// Direction of the range from the neighbor deltas.
	d := int64(1)
	if t.bhDelta(i, i-1) > t.bhDelta(i, i+1) {
		d = -1
	}
	deltaMin := t.bhDelta(i, i-d)

	// Exponential upper bound on the range length, capped against
	// adversarial duplicate runs.
	lMax := int64(2)
	for iter := 0; t.bhDelta(i, i+lMax*d) > deltaMin && iter < bhDeltaSearchCap; iter++ {
		lMax *= 2
	}

	// Binary search the exact length.
	l := int64(0)
	for div := lMax / 2; div >= 1; div /= 2 {
		if t.bhDelta(i, i+(l+div)*d) > deltaMin {
			l += div
		}
	}
	j := i + l*d
	if d > 0 {
		return i, j
	}
	return j, i
}

// findSplit locates the highest-differing-bit split position in [first,last].
func (t *bhTree) findSplit(first, last int64) int64 {
	deltaNode := t.bhDelta(first, last)
	split := first
	stride := last - first
	for {
		stride = (stride + 1) / 2
		if mid := split + stride; mid < last && t.bhDelta(first, mid) > deltaNode {
			split = mid
		}
		if stride <= 1 {
			break
		}
	}
	return split
}

// aggregate computes mass, center of mass, and geometric size bottom-up.
// Each leaf walks toward the root; the first visitor of an internal node
// stops, the second (who knows both children are final) combines them.
// On the GPU the visit counter is an atomicAdd; here it is a plain counter
// with identical semantics.
func (t *bhTree) aggregate() {
	n := t.leafCount
	if n < 2 {
		return
	}
	base := t.leafBase()
	for leaf := uint32(0); leaf < n; leaf++ {
		node := t.parent[base+leaf]
		for depth := 0; depth < bhParentWalkCap; depth++ {
			t.visit[node]++
			if t.visit[node] == 1 {
				break // first visitor: the sibling subtree is not final yet
			}
			l, r := t.left[node], t.right[node]
			ml, mr := t.mass[l], t.mass[r]
			m := ml + mr
			t.mass[node] = m
			t.comX[node] = (t.comX[l]*ml + t.comX[r]*mr) / m
			t.comY[node] = (t.comY[l]*ml + t.comY[r]*mr) / m

			// Geometric extent: the child COM separation plus the larger
			// child extent approximates the cell size without an AABB buffer.
			dx := t.comX[l] - t.comX[r]
			dy := t.comY[l] - t.comY[r]
			childSize := t.size[l]
			if t.size[r] > childSize {
				childSize = t.size[r]
			}
			t.size[node] = sqrt32(dx*dx+dy*dy) + childSize

			if node == 0 {
				break
			}
			node = t.parent[node]
		}
	}
}

// repulsion traverses the tree for every node and accumulates approximate
// N-body repulsion into the force arrays. Cells with size/distance < theta
// are treated as a single body at their center of mass.
func (t *bhTree) repulsion(
	posX, posY, forceX, forceY []float32,
	flags []uint32,
	nodeCount uint32,
	strength, minDistance, theta float32,
) {
	if t.leafCount == 0 {
		return
	}
	base := t.leafBase()
	minSq := minDistance * minDistance
	var stack [bhTraversalStackCap]uint32

	for i := uint32(0); i < nodeCount; i++ {
		if !alive(flags, i) {
			continue
		}
		px, py := posX[i], posY[i]
		var fx, fy float32

		sp := 0
		root := uint32(0)
		if t.leafCount == 1 {
			root = base
		}
		stack[sp] = root
		sp++

		for sp > 0 {
			sp--
			node := stack[sp]

			dx := px - t.comX[node]
			dy := py - t.comY[node]
			distSq := dx*dx + dy*dy

			isLeaf := node >= base
			if isLeaf {
				if t.order[node-base] == i {
					continue
				}
				if distSq < minSq {
					distSq = minSq
				}
				dist := sqrt32(distSq)
				if dist <= 0 {
					dx, dy, dist, distSq = 1, 0, 1, 1
				}
				f := -strength * t.mass[node] / distSq
				fx += dx / dist * f
				fy += dy / dist * f
				continue
			}

			dist := sqrt32(distSq)
			if dist > 0 && t.size[node]/dist < theta {
				if distSq < minSq {
					distSq = minSq
				}
				f := -strength * t.mass[node] / distSq
				fx += dx / dist * f
				fy += dy / dist * f
				continue
			}

			if sp+2 <= bhTraversalStackCap {
				stack[sp] = t.left[node]
				sp++
				stack[sp] = t.right[node]
				sp++
			}
		}

		forceX[i] += fx
		forceY[i] += fy
	}
}

// mortonOrder sorts Morton codes and the slot order slice in lockstep.
type mortonOrder struct {
	codes []uint32
	order []uint32
}

func (m *mortonOrder) Len() int { return len(m.codes) }
func (m *mortonOrder) Less(i, j int) bool {
	if m.codes[i] != m.codes[j] {
		return m.codes[i] < m.codes[j]
	}
	return m.order[i] < m.order[j]
}
func (m *mortonOrder) Swap(i, j int) {
	m.codes[i], m.codes[j] = m.codes[j], m.codes[i]
	m.order[i], m.order[j] = m.order[j], m.order[i]
}

// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// circlepack.go computes the nested circle-packing layout keyed by the
// per-node category tag. Each node's children (forward edges) are packed on
// concentric phyllotaxis rings inside the parent circle; the parent's radius
// is the enclosing radius of its packed children plus padding. Category tags
// order the hierarchy levels (repository > directory > file > symbol) but the
// packing itself follows the edge structure, so partially tagged graphs still
// lay out.

package layout

import (
	"math"
	"sort"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// Category tag values for the codebase layout.
const (
	CategoryRepository uint8 = 0
	CategoryDirectory  uint8 = 1
	CategoryFile       uint8 = 2
	CategorySymbol     uint8 = 3
)

// CodebaseLayout fills targets with the nested circle-packing layout.
func CodebaseLayout(st *graphstate.State, p simcore.CodebaseParams, targetX, targetY []float32) {
	n := st.NodeHighWater()
	for slot := uint32(0); slot < n; slot++ {
		targetX[slot] = st.PosX[slot]
		targetY[slot] = st.PosY[slot]
	}
	if n == 0 {
		return
	}

	fwdOffsets, fwdTargets := st.ForwardCSR()
	inDegree := make([]uint32, n)
	for e := uint32(0); e < st.EdgeCount(); e++ {
		inDegree[st.EdgeTgt[e]]++
	}

	minRadius := p.MinRadius
	if minRadius <= 0 {
		minRadius = 1
	}

	radius := make([]float32, n)
	visited := make([]bool, n)

	// Post-order: a leaf's circle is its own radius; an inner node's circle
	// encloses its packed children.
	var pack func(slot uint32) float32
	pack = func(slot uint32) float32 {
		if visited[slot] {
			return radius[slot]
		}
		visited[slot] = true

		own := st.NodeAttrs[slot*graphstate.NodeAttrStride]
		if own < minRadius {
			own = minRadius
		}
		first, last := fwdOffsets[slot], fwdOffsets[slot+1]
		if first == last {
			radius[slot] = own
			return own
		}

		children := make([]uint32, 0, last-first)
		for k := first; k < last; k++ {
			children = append(children, fwdTargets[k])
		}
		for _, c := range children {
			pack(c)
		}
		if p.SortBySize {
			sort.Slice(children, func(a, b int) bool {
				if radius[children[a]] != radius[children[b]] {
					return radius[children[a]] > radius[children[b]]
				}
				return children[a] < children[b]
			})
		}

		// Place children on a phyllotaxis spiral scaled so consecutive
		// circles clear each other, then take the enclosing radius.
		maxChild := float32(0)
		for _, c := range children {
			if radius[c] > maxChild {
				maxChild = radius[c]
			}
		}
		spacing := float64(maxChild*2 + p.Padding)
		enclosing := own
		for i, c := range children {
			x, y := Phyllotaxis(uint32(i), spacing/2)
			targetX[c] = x
			targetY[c] = y
			extent := sqrtf(x*x+y*y) + radius[c]
			if extent > enclosing {
				enclosing = extent
			}
		}
		radius[slot] = enclosing + p.Padding
		return radius[slot]
	}

	// Roots: live nodes with no incoming edges, repositories first so the
	// top level reads left to right by category.
	roots := make([]uint32, 0)
	for slot := uint32(0); slot < n; slot++ {
		if st.NodeLive(slot) && inDegree[slot] == 0 {
			roots = append(roots, slot)
		}
	}
	sort.Slice(roots, func(a, b int) bool {
		if st.Category[roots[a]] != st.Category[roots[b]] {
			return st.Category[roots[a]] < st.Category[roots[b]]
		}
		return roots[a] < roots[b]
	})

	cursor := float32(0)
	for _, root := range roots {
		r := pack(root)
		targetX[root] = 0
		targetY[root] = 0
		offsetSubtree(st, fwdOffsets, fwdTargets, root, cursor+r, 0, targetX, targetY, make([]bool, n))
		cursor += 2*r + p.RootSpacing
	}

	// Center the row of roots.
	half := cursor / 2
	for slot := uint32(0); slot < n; slot++ {
		if visited[slot] {
			targetX[slot] -= half
		}
	}
}

// offsetSubtree translates a packed subtree: child targets were computed
// relative to their parent, so the absolute position accumulates down the
// tree.
func offsetSubtree(
	st *graphstate.State,
	fwdOffsets, fwdTargets []uint32,
	slot uint32,
	dx, dy float32,
	targetX, targetY []float32,
	seen []bool,
) {
	if seen[slot] {
		return
	}
	seen[slot] = true
	targetX[slot] += dx
	targetY[slot] += dy
	for k := fwdOffsets[slot]; k < fwdOffsets[slot+1]; k++ {
		child := fwdTargets[k]
		offsetSubtree(st, fwdOffsets, fwdTargets, child, targetX[slot], targetY[slot], targetX, targetY, seen)
	}
}

func sqrtf(v float32) float32 { return float32(math.Sqrt(float64(v))) }

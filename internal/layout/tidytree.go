// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// tidytree.go computes the layered tree layout: children are grouped under
// their parent, subtree spans are accumulated post-order, and parents are
// centered over their children. Forests place root subtrees side by side.

package layout

import (
	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// TidyTree fills targetX/targetY (sized to the node high-water mark) with a
// layered tree layout over the graph's forward edges. Nodes outside any tree
// (cycle members unreachable from a root) keep their current position as the
// target.
func TidyTree(st *graphstate.State, p simcore.TidyTreeParams, targetX, targetY []float32) {
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

	span := make([]float32, n)
	placed := make([]bool, n)

	// Post-order subtree spans: a leaf spans siblingGap, an inner node the
	// sum of child spans plus subtreeGap padding.
	var measure func(slot uint32) float32
	measure = func(slot uint32) float32 {
		if span[slot] > 0 {
			return span[slot]
		}
		first, last := fwdOffsets[slot], fwdOffsets[slot+1]
		if first == last {
			span[slot] = p.SiblingGap
			return span[slot]
		}
		total := float32(0)
		for k := first; k < last; k++ {
			total += measure(fwdTargets[k])
		}
		total += p.SubtreeGap
		if total < p.SiblingGap {
			total = p.SiblingGap
		}
		span[slot] = total
		return total
	}

	// Pre-order placement: each child occupies a lane within the parent's
	// span; the parent centers over the lanes one level up.
	var place func(slot uint32, lane, depth float32)
	place = func(slot uint32, lane, depth float32) {
		if placed[slot] {
			return // cycle guard
		}
		placed[slot] = true
		if p.Horizontal {
			targetX[slot] = depth * p.LevelGap
			targetY[slot] = lane
		} else {
			targetX[slot] = lane
			targetY[slot] = depth * p.LevelGap
		}
		var childTotal float32
		for k := fwdOffsets[slot]; k < fwdOffsets[slot+1]; k++ {
			childTotal += span[fwdTargets[k]]
		}
		cursor := lane - childTotal/2
		for k := fwdOffsets[slot]; k < fwdOffsets[slot+1]; k++ {
			child := fwdTargets[k]
			cursor += span[child] / 2
			place(child, cursor, depth+1)
			cursor += span[child] / 2
		}
	}

	cursor := float32(0)
	first := true
	for slot := uint32(0); slot < n; slot++ {
		if !st.NodeLive(slot) || inDegree[slot] != 0 {
			continue
		}
		w := measure(slot)
		if !first {
			cursor += p.SubtreeGap
		}
		place(slot, cursor+w/2, 0)
		cursor += w
		first = false
	}

	// Center the forest on the origin.
	if cursor > 0 {
		half := cursor / 2
		for slot := uint32(0); slot < n; slot++ {
			if !placed[slot] {
				continue
			}
			if p.Horizontal {
				targetY[slot] -= half
			} else {
				targetX[slot] -= half
			}
		}
	}

	slogger().Debug("tidy tree layout computed",
		"nodes", st.NodeCount(),
		"forest_span", cursor)
}

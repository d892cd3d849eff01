// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// louvain.go implements Louvain community detection (greedy modularity with
// graph aggregation) and the packed community layout derived from it.

package layout

import (
	"math/rand"
	"sort"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// louvainGraph is the aggregated undirected weighted graph a Louvain level
// operates on.
type louvainGraph struct {
	neighbors [][]louvainEdge
	selfLoops []float32
	totalW    float32
}

type louvainEdge struct {
	to     uint32
	weight float32
}

// Communities assigns a community index to every live slot via Louvain
// modularity optimization. Dead slots get community 0. The resolution
// parameter biases toward more (>1) or fewer (<1) communities; iterations
// bound both the local passes and the aggregation levels.
func Communities(st *graphstate.State, p simcore.CommunityParams) []uint32 {
	n := st.NodeHighWater()
	community := make([]uint32, n)
	if n == 0 || st.EdgeCount() == 0 {
		// Singleton communities, numbered densely over live slots.
		next := uint32(0)
		for slot := uint32(0); slot < n; slot++ {
			if !st.NodeLive(slot) {
				continue
			}
			community[slot] = next
			next++
		}
		return community
	}

	// Level-0 graph from the CPU shadow; weights default to 1.
	g := &louvainGraph{
		neighbors: make([][]louvainEdge, n),
		selfLoops: make([]float32, n),
	}
	for e := uint32(0); e < st.EdgeCount(); e++ {
		src, tgt := st.EdgeSrc[e], st.EdgeTgt[e]
		w := st.EdgeWeight[e]
		if w <= 0 {
			w = 1
		}
		if src == tgt {
			g.selfLoops[src] += w
			g.totalW += w
			continue
		}
		g.neighbors[src] = append(g.neighbors[src], louvainEdge{to: tgt, weight: w})
		g.neighbors[tgt] = append(g.neighbors[tgt], louvainEdge{to: src, weight: w})
		g.totalW += w
	}

	// node -> current community through all levels.
	assignment := make([]uint32, n)
	for i := range assignment {
		assignment[i] = uint32(i)
	}

	rng := rand.New(rand.NewSource(int64(p.Seed)))
	maxIter := int(p.MaxIterations)
	if maxIter <= 0 {
		maxIter = 10
	}

	for level := 0; level < maxIter; level++ {
		comm, moved := louvainLevel(g, p.Resolution, maxIter, rng)
		if !moved {
			break
		}
		// Dense renumbering shared by the fold and the aggregation, so the
		// next level's vertex ids match the folded labels.
		dense := make(map[uint32]uint32)
		next := uint32(0)
		denseOf := func(c uint32) uint32 {
			v, ok := dense[c]
			if !ok {
				v = next
				next++
				dense[c] = v
			}
			return v
		}
		for i := range comm {
			comm[i] = denseOf(comm[i])
		}
		for i := range assignment {
			assignment[i] = comm[assignment[i]]
		}
		g = aggregate(g, comm, next)
	}

	// Renumber communities densely in first-seen order.
	remap := make(map[uint32]uint32)
	next := uint32(0)
	for slot := uint32(0); slot < n; slot++ {
		if !st.NodeLive(slot) {
			community[slot] = 0
			continue
		}
		c := assignment[slot]
		id, ok := remap[c]
		if !ok {
			id = next
			next++
			remap[c] = id
		}
		community[slot] = id
	}
	slogger().Debug("louvain finished", "communities", next, "nodes", st.NodeCount())
	return community
}

// louvainLevel runs local moves until no gain is found, returning the
// community of each vertex and whether anything moved.
func louvainLevel(g *louvainGraph, resolution float32, maxPasses int, rng *rand.Rand) ([]uint32, bool) {
	n := len(g.neighbors)
	comm := make([]uint32, n)
	degree := make([]float32, n)
	commTotal := make([]float32, n)
	for i := 0; i < n; i++ {
		comm[i] = uint32(i)
		d := g.selfLoops[i] * 2
		for _, e := range g.neighbors[i] {
			d += e.weight
		}
		degree[i] = d
		commTotal[i] = d
	}
	if resolution <= 0 {
		resolution = 1
	}
	m2 := g.totalW * 2
	if m2 <= 0 {
		return comm, false
	}

	order := rng.Perm(n)
	movedAny := false
	for pass := 0; pass < maxPasses; pass++ {
		moved := false
		for _, oi := range order {
			i := uint32(oi)
			// Weight to each neighboring community.
			weights := map[uint32]float32{}
			for _, e := range g.neighbors[i] {
				weights[comm[e.to]] += e.weight
			}
			old := comm[i]
			commTotal[old] -= degree[i]

			best := old
			bestGain := float32(0)
			for c, w := range weights {
				gain := w - resolution*commTotal[c]*degree[i]/m2
				if gain > bestGain {
					bestGain = gain
					best = c
				}
			}
			comm[i] = best
			commTotal[best] += degree[i]
			if best != old {
				moved = true
				movedAny = true
			}
		}
		if !moved {
			break
		}
	}
	return comm, movedAny
}

// aggregate collapses each community into a single vertex. comm must
// already be densely renumbered to [0, count).
func aggregate(g *louvainGraph, comm []uint32, count uint32) *louvainGraph {
	type pair struct{ a, b uint32 }
	merged := map[pair]float32{}
	out := &louvainGraph{
		neighbors: make([][]louvainEdge, count),
		selfLoops: make([]float32, count),
		totalW:    g.totalW,
	}
	for i := range g.neighbors {
		ci := comm[i]
		out.selfLoops[ci] += g.selfLoops[i]
		for _, e := range g.neighbors[i] {
			if int(e.to) < i {
				continue // count each undirected edge once
			}
			cj := comm[e.to]
			if ci == cj {
				out.selfLoops[ci] += e.weight
				continue
			}
			a, b := ci, cj
			if a > b {
				a, b = b, a
			}
			merged[pair{a, b}] += e.weight
		}
	}
	for pr, w := range merged {
		out.neighbors[pr.a] = append(out.neighbors[pr.a], louvainEdge{to: pr.b, weight: w})
		out.neighbors[pr.b] = append(out.neighbors[pr.b], louvainEdge{to: pr.a, weight: w})
	}
	return out
}

// CommunityLayout fills targets with the packed community layout: community
// centers sit on a phyllotaxis spiral spaced by CommunityGap, members sit on
// a member spiral around their center spaced by NodeSpacing.
func CommunityLayout(st *graphstate.State, p simcore.CommunityParams, targetX, targetY []float32) {
	n := st.NodeHighWater()
	community := Communities(st, p)

	// Group members per community, largest community first for the spiral.
	groups := map[uint32][]uint32{}
	for slot := uint32(0); slot < n; slot++ {
		if st.NodeLive(slot) {
			groups[community[slot]] = append(groups[community[slot]], slot)
		}
	}
	ids := make([]uint32, 0, len(groups))
	for c := range groups {
		ids = append(ids, c)
	}
	sort.Slice(ids, func(a, b int) bool {
		if len(groups[ids[a]]) != len(groups[ids[b]]) {
			return len(groups[ids[a]]) > len(groups[ids[b]])
		}
		return ids[a] < ids[b]
	})

	for rank, c := range ids {
		cx, cy := Phyllotaxis(uint32(rank), float64(p.CommunityGap))
		for mi, slot := range groups[c] {
			mx, my := Phyllotaxis(uint32(mi), float64(p.NodeSpacing))
			targetX[slot] = cx + mx
			targetY[slot] = cy + my
		}
	}
}

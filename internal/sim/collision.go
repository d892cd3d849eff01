// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// collision.go holds the CPU ports of the two collision back-ends:
// the tiled O(N^2) pass for small graphs and the spatial-hash grid with
// per-cell linked lists for large ones. Both operate on positions_out so
// corrections survive the ping-pong swap. Like the parallel kernels, each
// node accumulates its own half of every pair correction over the full
// neighborhood scan and applies it at the end of the iteration; the
// symmetric half comes from the partner's own scan.

package sim

import (
	"math"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// collisionTiledThreshold selects the back-end per frame: at or below it
// the tiled pass runs, above it the grid.
const collisionTiledThreshold = 5000

// maxGridDim caps the grid resolution per axis; the cell size grows
// instead when the scene would exceed it.
const maxGridDim = 256

// gridEmpty is the cell-head sentinel, mirroring the EMPTY constant in
// grid_collision.wgsl.
const gridEmpty = ^uint32(0)

// nodeRadius reads a node's collision radius from its attribute row.
func nodeRadius(attrs []float32, slot uint32, defaultRadius float32) float32 {
	r := attrs[slot*graphstate.NodeAttrStride]
	if r <= 0 {
		return defaultRadius
	}
	return r
}

// jitterDir returns a deterministic unit direction for separating
// coincident nodes, derived from the slot index via the golden angle so a
// piled-up cluster fans out instead of collapsing onto one axis.
func jitterDir(slot uint32) (float32, float32) {
	angle := float64(slot) * 2.399963229728653
	return float32(math.Cos(angle)), float32(math.Sin(angle))
}

// pairCorrection returns node i's half of the separation against j, or
// zeros when the pair does not overlap.
func pairCorrection(
	posX, posY []float32,
	attrs []float32,
	i, j uint32,
	strength, radiusMultiplier, defaultRadius float32,
) (float32, float32) {
	dx := posX[i] - posX[j]
	dy := posY[i] - posY[j]
	distSq := dx*dx + dy*dy
	minSep := (nodeRadius(attrs, i, defaultRadius) + nodeRadius(attrs, j, defaultRadius)) * radiusMultiplier
	if minSep <= 0 || distSq >= minSep*minSep {
		return 0, 0
	}
	dist := sqrt32(distSq)
	var ux, uy float32
	if dist < 1e-6 {
		ux, uy = jitterDir(i)
		dist = 0
	} else {
		ux, uy = dx/dist, dy/dist
	}
	push := (minSep - dist) * strength * 0.5
	return ux * push, uy * push
}

// collisionScratch reuses the per-iteration correction lanes.
type collisionScratch struct {
	corrX, corrY []float32
}

func (s *collisionScratch) ensure(n uint32) {
	if uint32(len(s.corrX)) < n {
		s.corrX = make([]float32, n)
		s.corrY = make([]float32, n)
	}
	for i := uint32(0); i < n; i++ {
		s.corrX[i] = 0
		s.corrY[i] = 0
	}
}

// collideTiled is the CPU port of collision.wgsl: every node accumulates
// its correction against every other node, then all corrections apply at
// once per iteration.
func collideTiled(
	scratch *collisionScratch,
	posX, posY []float32,
	attrs []float32,
	flags []uint32,
	nodeCount uint32,
	strength, radiusMultiplier, defaultRadius float32,
	iterations uint32,
) {
	for it := uint32(0); it < iterations; it++ {
		scratch.ensure(nodeCount)
		for i := uint32(0); i < nodeCount; i++ {
			if !alive(flags, i) || flags[i]&graphstate.FlagPinned != 0 {
				continue
			}
			for j := uint32(0); j < nodeCount; j++ {
				if j == i || !alive(flags, j) {
					continue
				}
				cx, cy := pairCorrection(posX, posY, attrs, i, j, strength, radiusMultiplier, defaultRadius)
				scratch.corrX[i] += cx
				scratch.corrY[i] += cy
			}
		}
		for i := uint32(0); i < nodeCount; i++ {
			posX[i] += scratch.corrX[i]
			posY[i] += scratch.corrY[i]
		}
	}
}

// collisionGrid holds the spatial-hash grid state reused across frames.
type collisionGrid struct {
	cellHead []uint32
	nodeNext []uint32
	scratch  collisionScratch
	width    uint32
	height   uint32
	cellSize float32
}

// configure sizes the grid for the frame. The cell size starts at
// 2 * max_radius * radius_multiplier and grows until the grid fits within
// maxGridDim cells per axis, so nodes further than one cell apart can
// never overlap.
func (g *collisionGrid) configure(bounds simcore.Bounds, maxRadius, radiusMultiplier float32, nodeCount uint32) {
	cellSize := 2 * maxRadius * radiusMultiplier
	if cellSize <= 0 {
		cellSize = 1
	}
	extentX := bounds.MaxX - bounds.MinX
	extentY := bounds.MaxY - bounds.MinY
	for extentX/cellSize > maxGridDim || extentY/cellSize > maxGridDim {
		cellSize *= 2
	}
	g.cellSize = cellSize
	g.width = uint32(extentX/cellSize) + 1
	g.height = uint32(extentY/cellSize) + 1
	total := g.width * g.height
	if uint32(len(g.cellHead)) < total {
		g.cellHead = make([]uint32, total)
	}
	if uint32(len(g.nodeNext)) < nodeCount {
		g.nodeNext = make([]uint32, nodeCount)
	}
}

func (g *collisionGrid) cellOf(x, y float32, bounds simcore.Bounds) (uint32, uint32) {
	cx := uint32((x - bounds.MinX) / g.cellSize)
	cy := uint32((y - bounds.MinY) / g.cellSize)
	if cx >= g.width {
		cx = g.width - 1
	}
	if cy >= g.height {
		cy = g.height - 1
	}
	return cx, cy
}

// collideGrid is the CPU port of grid_collision.wgsl's three dispatches:
// clear cell heads, build per-cell linked lists by prepending each node
// (the sequential analogue of the atomic exchange), then resolve each node
// against its 3x3 neighborhood, corrections applied at iteration end.
func collideGrid(
	g *collisionGrid,
	posX, posY []float32,
	attrs []float32,
	flags []uint32,
	nodeCount uint32,
	bounds simcore.Bounds,
	strength, radiusMultiplier, defaultRadius, maxRadius float32,
	iterations uint32,
) {
	if !bounds.Valid() {
		return
	}
	g.configure(bounds, maxRadius, radiusMultiplier, nodeCount)

	for it := uint32(0); it < iterations; it++ {
		// Pass 1: clear cells.
		for c := uint32(0); c < g.width*g.height; c++ {
			g.cellHead[c] = gridEmpty
		}

		// Pass 2: build lists. old = exchange(cell_head, node); next[node] = old.
		for i := uint32(0); i < nodeCount; i++ {
			if !alive(flags, i) {
				continue
			}
			cx, cy := g.cellOf(posX[i], posY[i], bounds)
			cell := cy*g.width + cx
			g.nodeNext[i] = g.cellHead[cell]
			g.cellHead[cell] = i
		}

		// Pass 3: resolve against the 3x3 neighborhood.
		g.scratch.ensure(nodeCount)
		for i := uint32(0); i < nodeCount; i++ {
			if !alive(flags, i) || flags[i]&graphstate.FlagPinned != 0 {
				continue
			}
			cx, cy := g.cellOf(posX[i], posY[i], bounds)
			for dy := -1; dy <= 1; dy++ {
				ny := int64(cy) + int64(dy)
				if ny < 0 || ny >= int64(g.height) {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := int64(cx) + int64(dx)
					if nx < 0 || nx >= int64(g.width) {
						continue
					}
					for j := g.cellHead[uint32(ny)*g.width+uint32(nx)]; j != gridEmpty; j = g.nodeNext[j] {
						if j != i {
							ccx, ccy := pairCorrection(posX, posY, attrs, i, j, strength, radiusMultiplier, defaultRadius)
							g.scratch.corrX[i] += ccx
							g.scratch.corrY[i] += ccy
						}
					}
				}
			}
		}
		for i := uint32(0); i < nodeCount; i++ {
			posX[i] += g.scratch.corrX[i]
			posY[i] += g.scratch.corrY[i]
		}
	}
}

// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// relativity.go holds the CPU ports of the hierarchical "Relativity Atlas"
// kernels: bottom-up mass accumulation over the CSR, parent-child orbit
// springs, tangential sibling repulsion, optional cousin repulsion, the
// mass-weighted phantom-zone margin, and the coarse density-field global
// repulsion.

package sim

import (
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// densityGridDim is the resolution of the density field per axis.
const densityGridDim = 64

// accumulateMass fills mass[slot] = base + childFactor * sum(mass(children))
// bottom-up. Children are the forward-CSR targets; processing order is by
// descending depth so every child is final before its parent reads it.
func accumulateMass(
	mass []float32,
	depth []float32,
	flags []uint32,
	fwdOffsets, fwdTargets []uint32,
	nodeCount uint32,
	base, childFactor float32,
) {
	maxDepth := float32(0)
	for i := uint32(0); i < nodeCount; i++ {
		if alive(flags, i) && depth[i] > maxDepth {
			maxDepth = depth[i]
		}
	}
	for i := uint32(0); i < nodeCount; i++ {
		mass[i] = base
	}
	// One sweep per depth level, deepest first. The GPU path runs the same
	// sweep as repeated dispatches with the level in a uniform.
	for level := maxDepth; level >= 0; level-- {
		for i := uint32(0); i < nodeCount; i++ {
			if !alive(flags, i) || depth[i] != level {
				continue
			}
			sum := float32(0)
			for k := fwdOffsets[i]; k < fwdOffsets[i+1]; k++ {
				sum += mass[fwdTargets[k]]
			}
			mass[i] = base + childFactor*sum
		}
		if level == 0 {
			break
		}
	}
}

// orbitForces applies the parent-child radial spring. Each child is pulled
// toward a ring around its parent whose radius grows with the square root of
// the sibling count, so crowded orbits widen.
func orbitForces(
	posX, posY, forceX, forceY []float32,
	flags []uint32,
	invOffsets, invTargets []uint32,
	fwdOffsets []uint32,
	nodeCount uint32,
	orbitRadius, orbitStrength float32,
) {
	for child := uint32(0); child < nodeCount; child++ {
		if !alive(flags, child) {
			continue
		}
		for k := invOffsets[child]; k < invOffsets[child+1]; k++ {
			parent := invTargets[k]
			if !alive(flags, parent) {
				continue
			}
			siblings := fwdOffsets[parent+1] - fwdOffsets[parent]
			targetR := sqrt32(float32(siblings)) * orbitRadius
			dx := posX[child] - posX[parent]
			dy := posY[child] - posY[parent]
			dist := sqrt32(dx*dx + dy*dy)
			if dist < 1e-6 {
				ux, uy := jitterDir(child)
				forceX[child] += ux * orbitStrength * targetR
				forceY[child] += uy * orbitStrength * targetR
				continue
			}
			f := orbitStrength * (targetR - dist)
			forceX[child] += dx / dist * f
			forceY[child] += dy / dist * f
		}
	}
}

// siblingForces applies pairwise repulsion between children of the same
// parent, with the tangential component (perpendicular to the radial from
// the parent) amplified so siblings spread around the orbit instead of
// stacking radially. When cousins is true the same repulsion also runs
// between children of sibling parents at cousinScale strength.
func siblingForces(
	posX, posY, forceX, forceY []float32,
	mass []float32,
	flags []uint32,
	fwdOffsets, fwdTargets []uint32,
	nodeCount uint32,
	repulsion, tangentialMultiplier float32,
	cousins bool, cousinScale float32,
) {
	for parent := uint32(0); parent < nodeCount; parent++ {
		if !alive(flags, parent) {
			continue
		}
		first, last := fwdOffsets[parent], fwdOffsets[parent+1]
		for a := first; a < last; a++ {
			for b := a + 1; b < last; b++ {
				siblingPair(posX, posY, forceX, forceY, mass,
					fwdTargets[a], fwdTargets[b], posX[parent], posY[parent],
					repulsion, tangentialMultiplier)
			}
		}
	}
	if cousins {
		cousinForces(posX, posY, forceX, forceY, mass, flags, fwdOffsets, fwdTargets, nodeCount, repulsion*cousinScale)
	}
}

// siblingPair pushes two siblings apart, amplifying the tangential component.
func siblingPair(
	posX, posY, forceX, forceY []float32,
	mass []float32,
	i, j uint32,
	parentX, parentY float32,
	repulsion, tangentialMultiplier float32,
) {
	dx := posX[i] - posX[j]
	dy := posY[i] - posY[j]
	distSq := dx*dx + dy*dy
	if distSq < 1e-12 {
		dx, dy = jitterDir(i)
		distSq = 1
	}
	dist := sqrt32(distSq)
	f := repulsion * mass[i] * mass[j] / distSq
	fx := dx / dist * f
	fy := dy / dist * f

	// Decompose against the radial direction from the parent to node i and
	// amplify the tangential part.
	rx := posX[i] - parentX
	ry := posY[i] - parentY
	rLen := sqrt32(rx*rx + ry*ry)
	if rLen > 1e-6 {
		rx /= rLen
		ry /= rLen
		radial := fx*rx + fy*ry
		tx := fx - radial*rx
		ty := fy - radial*ry
		fx = radial*rx + tx*tangentialMultiplier
		fy = radial*ry + ty*tangentialMultiplier
	}

	forceX[i] += fx
	forceY[i] += fy
	forceX[j] -= fx
	forceY[j] -= fy
}

// cousinForces applies 2-hop repulsion: for each grandparent, children of
// distinct child subtrees repel radially.
func cousinForces(
	posX, posY, forceX, forceY []float32,
	mass []float32,
	flags []uint32,
	fwdOffsets, fwdTargets []uint32,
	nodeCount uint32,
	repulsion float32,
) {
	for gp := uint32(0); gp < nodeCount; gp++ {
		if !alive(flags, gp) {
			continue
		}
		pFirst, pLast := fwdOffsets[gp], fwdOffsets[gp+1]
		for pa := pFirst; pa < pLast; pa++ {
			for pb := pa + 1; pb < pLast; pb++ {
				parentA, parentB := fwdTargets[pa], fwdTargets[pb]
				for a := fwdOffsets[parentA]; a < fwdOffsets[parentA+1]; a++ {
					for b := fwdOffsets[parentB]; b < fwdOffsets[parentB+1]; b++ {
						i, j := fwdTargets[a], fwdTargets[b]
						dx := posX[i] - posX[j]
						dy := posY[i] - posY[j]
						distSq := dx*dx + dy*dy
						if distSq < 1e-12 {
							dx, dy = jitterDir(i)
							distSq = 1
						}
						dist := sqrt32(distSq)
						f := repulsion * mass[i] * mass[j] / distSq
						forceX[i] += dx / dist * f
						forceY[i] += dy / dist * f
						forceX[j] -= dx / dist * f
						forceY[j] -= dy / dist * f
					}
				}
			}
		}
	}
}

// phantomZone applies the mass-proportional repulsive boundary: nodes inside
// another node's phantom margin are pushed out with spring-like stiffness.
func phantomZone(
	posX, posY, forceX, forceY []float32,
	mass []float32,
	attrs []float32,
	flags []uint32,
	nodeCount uint32,
	margin float32,
) {
	for i := uint32(0); i < nodeCount; i++ {
		if !alive(flags, i) {
			continue
		}
		for j := i + 1; j < nodeCount; j++ {
			if !alive(flags, j) {
				continue
			}
			zone := nodeRadius(attrs, i, 1) + nodeRadius(attrs, j, 1) + margin*sqrt32(mass[i]*mass[j])
			dx := posX[i] - posX[j]
			dy := posY[i] - posY[j]
			distSq := dx*dx + dy*dy
			if distSq >= zone*zone {
				continue
			}
			if distSq < 1e-12 {
				dx, dy = jitterDir(i)
				distSq = 1
			}
			dist := sqrt32(distSq)
			f := (zone - dist) * 0.5
			forceX[i] += dx / dist * f
			forceY[i] += dy / dist * f
			forceX[j] -= dx / dist * f
			forceY[j] -= dy / dist * f
		}
	}
}

// densityField rasterizes mass into a coarse grid and pushes every node
// down the local density gradient. This is the global spreading term that
// keeps distant clusters from overlapping without pairwise work.
type densityField struct {
	cells [densityGridDim * densityGridDim]float32
}

func (d *densityField) apply(
	posX, posY, forceX, forceY []float32,
	mass []float32,
	flags []uint32,
	nodeCount uint32,
	bounds simcore.Bounds,
	strength float32,
) {
	if !bounds.Valid() {
		return
	}
	extentX := bounds.MaxX - bounds.MinX
	extentY := bounds.MaxY - bounds.MinY
	if extentX <= 0 || extentY <= 0 {
		return
	}
	for i := range d.cells {
		d.cells[i] = 0
	}
	cellAt := func(x, y float32) (uint32, uint32) {
		cx := uint32((x - bounds.MinX) / extentX * (densityGridDim - 1))
		cy := uint32((y - bounds.MinY) / extentY * (densityGridDim - 1))
		if cx >= densityGridDim {
			cx = densityGridDim - 1
		}
		if cy >= densityGridDim {
			cy = densityGridDim - 1
		}
		return cx, cy
	}

	// Splat pass.
	for i := uint32(0); i < nodeCount; i++ {
		if !alive(flags, i) {
			continue
		}
		cx, cy := cellAt(posX[i], posY[i])
		d.cells[cy*densityGridDim+cx] += mass[i]
	}

	// Gradient pass: central differences, force down the gradient.
	cellW := extentX / densityGridDim
	cellH := extentY / densityGridDim
	for i := uint32(0); i < nodeCount; i++ {
		if !alive(flags, i) {
			continue
		}
		cx, cy := cellAt(posX[i], posY[i])
		gx := d.sample(cx+1, cy) - d.sampleSub(cx, 1, cy, 0)
		gy := d.sample(cx, cy+1) - d.sampleSub(cx, 0, cy, 1)
		forceX[i] -= gx / max32(cellW, 1e-3) * strength
		forceY[i] -= gy / max32(cellH, 1e-3) * strength
	}
}

func (d *densityField) sample(cx, cy uint32) float32 {
	if cx >= densityGridDim || cy >= densityGridDim {
		return 0
	}
	return d.cells[cy*densityGridDim+cx]
}

func (d *densityField) sampleSub(cx, dx, cy, dy uint32) float32 {
	if cx < dx || cy < dy {
		return 0
	}
	return d.sample(cx-dx, cy-dy)
}

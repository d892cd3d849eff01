// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

func nodeAttrsWithRadius(n int, radius float32) []float32 {
	attrs := make([]float32, n*graphstate.NodeAttrStride)
	for i := 0; i < n; i++ {
		attrs[i*graphstate.NodeAttrStride] = radius
	}
	return attrs
}

func minPairDistance(posX, posY []float32) float64 {
	min := math.Inf(1)
	for i := range posX {
		for j := i + 1; j < len(posX); j++ {
			d := math.Hypot(float64(posX[i]-posX[j]), float64(posY[i]-posY[j]))
			if d < min {
				min = d
			}
		}
	}
	return min
}

func TestCollideTiled(t *testing.T) {
	t.Run("coincident pile separates", func(t *testing.T) {
		// 100 nodes at the identical position, radius 5, full strength,
		// 4 iterations: every pair ends at least ~10 apart.
		const n = 100
		posX := make([]float32, n)
		posY := make([]float32, n)
		var scratch collisionScratch
		collideTiled(&scratch, posX, posY, nodeAttrsWithRadius(n, 5), allAlive(n), n, 1, 1, 5, 4)

		if min := minPairDistance(posX, posY); min < 9 {
			t.Errorf("min pair distance = %v, want >= 9", min)
		}
	})

	t.Run("separated pair untouched", func(t *testing.T) {
		posX := []float32{0, 100}
		posY := []float32{0, 0}
		var scratch collisionScratch
		collideTiled(&scratch, posX, posY, nodeAttrsWithRadius(2, 5), allAlive(2), 2, 1, 1, 5, 4)
		if posX[0] != 0 || posX[1] != 100 {
			t.Errorf("non-overlapping pair moved: %v, %v", posX[0], posX[1])
		}
	})

	t.Run("overlap resolves to radius sum", func(t *testing.T) {
		posX := []float32{0, 4}
		posY := []float32{0, 0}
		var scratch collisionScratch
		collideTiled(&scratch, posX, posY, nodeAttrsWithRadius(2, 5), allAlive(2), 2, 1, 1, 5, 8)
		d := math.Abs(float64(posX[1] - posX[0]))
		if d < 9.5 {
			t.Errorf("distance after resolution = %v, want >= 9.5", d)
		}
	})

	t.Run("dead slots ignored", func(t *testing.T) {
		posX := []float32{0, 0}
		posY := []float32{0, 0}
		flags := []uint32{graphstate.FlagAlive, 0}
		var scratch collisionScratch
		collideTiled(&scratch, posX, posY, nodeAttrsWithRadius(2, 5), flags, 2, 1, 1, 5, 4)
		if posX[0] != 0 || posX[1] != 0 {
			t.Error("dead slot participated in collision")
		}
	})
}

func TestCollideGrid(t *testing.T) {
	t.Run("resolves overlaps like tiled", func(t *testing.T) {
		const n = 300
		rng := rand.New(rand.NewSource(11))
		posX := make([]float32, n)
		posY := make([]float32, n)
		for i := 0; i < n; i++ {
			posX[i] = rng.Float32() * 200
			posY[i] = rng.Float32() * 200
		}
		attrs := nodeAttrsWithRadius(n, 4)
		flags := allAlive(n)
		bounds := simcore.Bounds{MinX: -100, MinY: -100, MaxX: 300, MaxY: 300}

		var g collisionGrid
		collideGrid(&g, posX, posY, attrs, flags, n, bounds, 1, 1, 4, 4, 16)

		// Dense uniform scatter cannot fully relax, but the bulk of
		// overlap must be gone: mean pair violation at most 1.5 units.
		var violation float64
		pairs := 0
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				d := math.Hypot(float64(posX[i]-posX[j]), float64(posY[i]-posY[j]))
				if d < 8 {
					violation += 8 - d
					pairs++
				}
			}
		}
		if pairs > 0 && violation/float64(pairs) > 1.5 {
			t.Errorf("mean residual overlap = %v over %d pairs", violation/float64(pairs), pairs)
		}
	})

	t.Run("invalid bounds is a no-op", func(t *testing.T) {
		posX := []float32{0, 0}
		posY := []float32{0, 0}
		var g collisionGrid
		collideGrid(&g, posX, posY, nodeAttrsWithRadius(2, 5), allAlive(2), 2,
			simcore.InvalidBounds(), 1, 1, 5, 5, 4)
		if posX[0] != 0 || posX[1] != 0 {
			t.Error("positions moved with invalid bounds")
		}
	})
}

func TestCollisionGridConfigure(t *testing.T) {
	t.Run("cell size covers both radii", func(t *testing.T) {
		var g collisionGrid
		b := simcore.Bounds{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}
		g.configure(b, 5, 1, 16)
		if g.cellSize != 10 {
			t.Errorf("cellSize = %v, want 10", g.cellSize)
		}
	})

	t.Run("grid capped at max dimension", func(t *testing.T) {
		var g collisionGrid
		b := simcore.Bounds{MinX: 0, MinY: 0, MaxX: 1e6, MaxY: 1e6}
		g.configure(b, 0.5, 1, 16)
		if g.width > maxGridDim+1 || g.height > maxGridDim+1 {
			t.Errorf("grid %dx%d exceeds cap", g.width, g.height)
		}
	})
}

// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

func testBounds() simcore.Bounds {
	return simcore.Bounds{MinX: -1000, MinY: -1000, MaxX: 1000, MaxY: 1000}
}

func TestMortonEncode(t *testing.T) {
	b := testBounds()
	tests := []struct {
		name string
		x, y float32
	}{
		{"min corner", -1000, -1000},
		{"max corner", 1000, 1000},
		{"center", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := mortonEncode(tt.x, tt.y, b)
			// 16-bit interleave fills at most 32 bits; codes must be
			// deterministic.
			if again := mortonEncode(tt.x, tt.y, b); again != code {
				t.Errorf("non-deterministic code: %x vs %x", code, again)
			}
		})
	}

	t.Run("preserves spatial order on x", func(t *testing.T) {
		left := mortonEncode(-900, -900, b)
		right := mortonEncode(900, -900, b)
		if left >= right {
			t.Errorf("left code %x >= right code %x", left, right)
		}
	})
}

func TestBHTreeBuild(t *testing.T) {
	t.Run("single node", func(t *testing.T) {
		var tree bhTree
		tree.build([]float32{0}, []float32{0}, nil, allAlive(1), 1, testBounds())
		if tree.leafCount != 1 {
			t.Fatalf("leafCount = %d, want 1", tree.leafCount)
		}
		tree.aggregate() // must not panic on a leaf-only tree
	})

	t.Run("duplicate morton codes terminate", func(t *testing.T) {
		// All nodes at the identical position produce identical codes;
		// the index tiebreaker must keep construction finite and the
		// parent walk bounded.
		const n = 64
		posX := make([]float32, n)
		posY := make([]float32, n)
		var tree bhTree
		tree.build(posX, posY, nil, allAlive(n), n, testBounds())
		tree.aggregate()

		if tree.leafCount != n {
			t.Fatalf("leafCount = %d, want %d", tree.leafCount, n)
		}
		// Root aggregates every leaf's unit mass.
		if math.Abs(float64(tree.mass[0]-n)) > 1e-3 {
			t.Errorf("root mass = %v, want %d", tree.mass[0], n)
		}
	})

	t.Run("root aggregates all mass", func(t *testing.T) {
		const n = 100
		rng := rand.New(rand.NewSource(7))
		posX := make([]float32, n)
		posY := make([]float32, n)
		for i := range posX {
			posX[i] = rng.Float32()*1000 - 500
			posY[i] = rng.Float32()*1000 - 500
		}
		var tree bhTree
		tree.build(posX, posY, nil, allAlive(n), n, testBounds())
		tree.aggregate()

		if math.Abs(float64(tree.mass[0]-n)) > 1e-2 {
			t.Errorf("root mass = %v, want %d", tree.mass[0], n)
		}

		// Root COM equals the mean position.
		var mx, my float32
		for i := range posX {
			mx += posX[i]
			my += posY[i]
		}
		mx /= n
		my /= n
		if math.Abs(float64(tree.comX[0]-mx)) > 1 || math.Abs(float64(tree.comY[0]-my)) > 1 {
			t.Errorf("root COM = (%v,%v), want (~%v,~%v)", tree.comX[0], tree.comY[0], mx, my)
		}
	})

	t.Run("dead slots excluded", func(t *testing.T) {
		posX := []float32{0, 100, 200}
		posY := []float32{0, 0, 0}
		flags := allAlive(3)
		flags[1] = 0
		var tree bhTree
		tree.build(posX, posY, nil, flags, 3, testBounds())
		if tree.leafCount != 2 {
			t.Errorf("leafCount = %d, want 2", tree.leafCount)
		}
	})
}

func TestBHDeltaMonotone(t *testing.T) {
	// With duplicate codes the index-extended delta must grow as j
	// approaches i.
	var tree bhTree
	tree.codes = []uint32{5, 5, 5, 5}
	tree.order = []uint32{0, 1, 2, 3}
	tree.leafCount = 4

	d1 := tree.bhDelta(0, 3)
	d2 := tree.bhDelta(0, 1)
	if d2 <= d1 {
		t.Errorf("delta(0,1)=%d not greater than delta(0,3)=%d", d2, d1)
	}
	if tree.bhDelta(0, -1) != -1 || tree.bhDelta(0, 4) != -1 {
		t.Error("out-of-range delta must be -1")
	}
}

func TestBHRepulsionApproximatesN2(t *testing.T) {
	const n = 200
	rng := rand.New(rand.NewSource(42))
	posX := make([]float32, n)
	posY := make([]float32, n)
	for i := range posX {
		posX[i] = rng.Float32()*800 - 400
		posY[i] = rng.Float32()*800 - 400
	}
	flags := allAlive(n)

	exactX := make([]float32, n)
	exactY := make([]float32, n)
	repulsionN2(posX, posY, exactX, exactY, flags, n, -50, 1, 1e9)

	var tree bhTree
	tree.build(posX, posY, nil, flags, n, testBounds())
	tree.aggregate()
	approxX := make([]float32, n)
	approxY := make([]float32, n)
	tree.repulsion(posX, posY, approxX, approxY, flags, n, -50, 1, 0.5)

	// Average relative error of the approximation stays small at
	// theta = 0.5.
	var relSum float64
	counted := 0
	for i := 0; i < n; i++ {
		em := math.Hypot(float64(exactX[i]), float64(exactY[i]))
		if em < 1e-6 {
			continue
		}
		diff := math.Hypot(float64(exactX[i]-approxX[i]), float64(exactY[i]-approxY[i]))
		relSum += diff / em
		counted++
	}
	if counted == 0 {
		t.Fatal("no forces to compare")
	}
	if avg := relSum / float64(counted); avg > 0.25 {
		t.Errorf("average relative error = %v, want <= 0.25", avg)
	}
}

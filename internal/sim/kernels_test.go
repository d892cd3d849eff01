// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

package sim

import (
	"math"
	"testing"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
)

func allAlive(n int) []uint32 {
	flags := make([]uint32, n)
	for i := range flags {
		flags[i] = graphstate.FlagAlive
	}
	return flags
}

func TestRepulsionN2(t *testing.T) {
	t.Run("two nodes push apart", func(t *testing.T) {
		posX := []float32{-1, 1}
		posY := []float32{0, 0}
		fx := make([]float32, 2)
		fy := make([]float32, 2)
		repulsionN2(posX, posY, fx, fy, allAlive(2), 2, -50, 1, 1000)

		if fx[0] >= 0 {
			t.Errorf("fx[0] = %v, want negative (pushed left)", fx[0])
		}
		if fx[1] <= 0 {
			t.Errorf("fx[1] = %v, want positive (pushed right)", fx[1])
		}
		if fx[0] != -fx[1] {
			t.Errorf("forces not symmetric: %v vs %v", fx[0], fx[1])
		}
	})

	t.Run("cutoff beyond max distance", func(t *testing.T) {
		posX := []float32{0, 2000}
		posY := []float32{0, 0}
		fx := make([]float32, 2)
		fy := make([]float32, 2)
		repulsionN2(posX, posY, fx, fy, allAlive(2), 2, -50, 1, 1000)
		if fx[0] != 0 || fx[1] != 0 {
			t.Errorf("forces beyond cutoff = %v, %v, want 0", fx[0], fx[1])
		}
	})

	t.Run("min distance floors the denominator", func(t *testing.T) {
		posX := []float32{0, 0.01}
		posY := []float32{0, 0}
		fx := make([]float32, 2)
		fy := make([]float32, 2)
		repulsionN2(posX, posY, fx, fy, allAlive(2), 2, -50, 1, 1000)
		// Floored at d_min = 1: |f| <= 50.
		if math.Abs(float64(fx[1])) > 50.001 {
			t.Errorf("force exceeds floored magnitude: %v", fx[1])
		}
	})

	t.Run("dead slots exert nothing", func(t *testing.T) {
		posX := []float32{-1, 0, 1}
		posY := []float32{0, 0, 0}
		flags := allAlive(3)
		flags[1] = 0
		fx := make([]float32, 3)
		fy := make([]float32, 3)
		repulsionN2(posX, posY, fx, fy, flags, 3, -50, 1, 1000)
		if fx[1] != 0 {
			t.Errorf("dead slot accumulated force %v", fx[1])
		}
		// Forces on 0 and 2 must come from each other only (symmetric).
		if fx[0] != -fx[2] {
			t.Errorf("asymmetric forces with dead middle: %v vs %v", fx[0], fx[2])
		}
	})
}

func TestSprings(t *testing.T) {
	t.Run("stretched edge attracts", func(t *testing.T) {
		posX := []float32{-50, 50}
		posY := []float32{0, 0}
		fx := make([]float32, 2)
		fy := make([]float32, 2)
		springs(posX, posY, fx, fy, []uint32{0}, []uint32{1}, 1, 0.5, 20)

		// d = 100, rest = 20: each endpoint gets 0.5*80*0.5 = 20 inward.
		if math.Abs(float64(fx[0]-20)) > 1e-3 {
			t.Errorf("fx[0] = %v, want 20", fx[0])
		}
		if math.Abs(float64(fx[1]+20)) > 1e-3 {
			t.Errorf("fx[1] = %v, want -20", fx[1])
		}
	})

	t.Run("compressed edge repels", func(t *testing.T) {
		posX := []float32{-5, 5}
		posY := []float32{0, 0}
		fx := make([]float32, 2)
		fy := make([]float32, 2)
		springs(posX, posY, fx, fy, []uint32{0}, []uint32{1}, 1, 0.5, 20)
		if fx[0] >= 0 {
			t.Errorf("fx[0] = %v, want negative (pushed outward)", fx[0])
		}
	})

	t.Run("at rest length no force", func(t *testing.T) {
		posX := []float32{0, 20}
		posY := []float32{0, 0}
		fx := make([]float32, 2)
		fy := make([]float32, 2)
		springs(posX, posY, fx, fy, []uint32{0}, []uint32{1}, 1, 0.5, 20)
		if math.Abs(float64(fx[0])) > 1e-4 {
			t.Errorf("fx[0] = %v, want ~0 at rest length", fx[0])
		}
	})
}

func TestIntegrate(t *testing.T) {
	base := integrateParams{
		dt:          1,
		damping:     0.6,
		maxVelocity: 50,
		alpha:       1,
		alphaMin:    0.001,
		pinnedSlot:  ^uint32(0),
	}

	t.Run("applies force and damping", func(t *testing.T) {
		posIn := []float32{0}
		posInY := []float32{0}
		velIn := []float32{0}
		velInY := []float32{0}
		posOut, posOutY := make([]float32, 1), make([]float32, 1)
		velOut, velOutY := make([]float32, 1), make([]float32, 1)
		integrate(posIn, posInY, velIn, velInY, posOut, posOutY, velOut, velOutY,
			[]float32{10}, []float32{0}, []float32{0}, allAlive(1), 1, base)

		// v = (0 + 1*10*1) * 0.6 = 6; p = 0 + 6.
		if math.Abs(float64(velOut[0]-6)) > 1e-4 {
			t.Errorf("velOut = %v, want 6", velOut[0])
		}
		if math.Abs(float64(posOut[0]-6)) > 1e-4 {
			t.Errorf("posOut = %v, want 6", posOut[0])
		}
	})

	t.Run("velocity clamped", func(t *testing.T) {
		posOut, posOutY := make([]float32, 1), make([]float32, 1)
		velOut, velOutY := make([]float32, 1), make([]float32, 1)
		integrate([]float32{0}, []float32{0}, []float32{0}, []float32{0},
			posOut, posOutY, velOut, velOutY,
			[]float32{1e6}, []float32{0}, []float32{0}, allAlive(1), 1, base)
		if velOut[0] > 50.001 {
			t.Errorf("velOut = %v, want <= 50", velOut[0])
		}
	})

	t.Run("pinned by uniform holds exactly", func(t *testing.T) {
		p := base
		p.pinnedSlot = 0
		posOut, posOutY := make([]float32, 1), make([]float32, 1)
		velOut, velOutY := make([]float32, 1), make([]float32, 1)
		integrate([]float32{7}, []float32{-3}, []float32{5}, []float32{5},
			posOut, posOutY, velOut, velOutY,
			[]float32{100}, []float32{100}, []float32{0}, allAlive(1), 1, p)
		if posOut[0] != 7 || posOutY[0] != -3 {
			t.Errorf("pinned position = (%v,%v), want (7,-3) exactly", posOut[0], posOutY[0])
		}
		if velOut[0] != 0 || velOutY[0] != 0 {
			t.Error("pinned velocity not zeroed")
		}
	})

	t.Run("pinned by flag holds exactly", func(t *testing.T) {
		flags := []uint32{graphstate.FlagAlive | graphstate.FlagPinned}
		posOut, posOutY := make([]float32, 1), make([]float32, 1)
		velOut, velOutY := make([]float32, 1), make([]float32, 1)
		integrate([]float32{7}, []float32{-3}, []float32{5}, []float32{5},
			posOut, posOutY, velOut, velOutY,
			[]float32{100}, []float32{100}, []float32{0}, flags, 1, base)
		if posOut[0] != 7 || posOutY[0] != -3 {
			t.Errorf("pinned position = (%v,%v), want (7,-3) exactly", posOut[0], posOutY[0])
		}
	})

	t.Run("centering pulls toward center", func(t *testing.T) {
		p := base
		p.gravityStrength = 0.1
		posOut, posOutY := make([]float32, 1), make([]float32, 1)
		velOut, velOutY := make([]float32, 1), make([]float32, 1)
		integrate([]float32{100}, []float32{0}, []float32{0}, []float32{0},
			posOut, posOutY, velOut, velOutY,
			[]float32{0}, []float32{0}, []float32{0}, allAlive(1), 1, p)
		if posOut[0] >= 100 {
			t.Errorf("posOut = %v, want < 100 (pulled toward center)", posOut[0])
		}
	})

	t.Run("alpha zero decays velocity monotonically", func(t *testing.T) {
		p := base
		p.alpha = 0
		velX := []float32{40}
		velY := []float32{0}
		posX := []float32{0}
		posY := []float32{0}
		prev := float32(40)
		for i := 0; i < 100; i++ {
			posOut, posOutY := make([]float32, 1), make([]float32, 1)
			velOut, velOutY := make([]float32, 1), make([]float32, 1)
			integrate(posX, posY, velX, velY, posOut, posOutY, velOut, velOutY,
				[]float32{123}, []float32{0}, []float32{0}, allAlive(1), 1, p)
			speed := float32(math.Hypot(float64(velOut[0]), float64(velOutY[0])))
			if speed > prev {
				t.Fatalf("speed increased at step %d: %v > %v", i, speed, prev)
			}
			prev = speed
			posX, posY = posOut, posOutY
			velX, velY = velOut, velOutY
		}
		if prev != 0 {
			t.Errorf("residual speed %v after 100 cold steps, want 0", prev)
		}
	})

	t.Run("depth stagger scales response", func(t *testing.T) {
		p := base
		p.depthSpread = 1
		posOut, posOutY := make([]float32, 2), make([]float32, 2)
		velOut, velOutY := make([]float32, 2), make([]float32, 2)
		integrate([]float32{0, 0}, []float32{0, 0}, []float32{0, 0}, []float32{0, 0},
			posOut, posOutY, velOut, velOutY,
			[]float32{10, 10}, []float32{0, 0}, []float32{0, 2}, allAlive(2), 2, p)
		if velOut[1] <= velOut[0] {
			t.Errorf("deeper node response %v not scaled above %v", velOut[1], velOut[0])
		}
	})
}

func TestSpringToTarget(t *testing.T) {
	fx := make([]float32, 1)
	fy := make([]float32, 1)
	springToTarget(
		[]float32{0}, []float32{0}, []float32{2}, []float32{0},
		fx, fy,
		[]float32{10}, []float32{0},
		allAlive(1), 1, 0.5, 0.25,
	)
	// (10-0)*0.5 - 2*0.25 = 4.5 toward the target.
	if math.Abs(float64(fx[0]-4.5)) > 1e-4 {
		t.Errorf("fx = %v, want 4.5", fx[0])
	}
}

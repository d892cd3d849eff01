// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

func testParams() simcore.Params {
	return simcore.Params{
		RepulsionStrength:    -50,
		RepulsionDistanceMin: 1,
		RepulsionDistanceMax: 1000,
		SpringStrength:       0.1,
		SpringLength:         30,
		CenterStrength:       0.01,
		VelocityDecay:        0.4,
		MaxVelocity:          50,
		TimeStep:             1,
		Theta:                0.8,
	}
}

func loadedState(t *testing.T, n int) *graphstate.State {
	t.Helper()
	st := graphstate.New(n, 0)
	for i := 0; i < n; i++ {
		slot, err := st.AllocateNodeSlot(string(rune('a' + i)))
		if err != nil {
			t.Fatal(err)
		}
		st.PosX[slot] = float32(i) * 20
		st.NodeAttrs[slot*graphstate.NodeAttrStride] = 5
	}
	return st
}

func runningFrame(alpha float32) simcore.Frame {
	return simcore.Frame{Alpha: alpha, Damping: 0.6, PinnedSlot: simcore.NoPin}
}

func TestExecutor_EmptyGraphNoOp(t *testing.T) {
	e := NewExecutor()
	if err := e.Reset(graphstate.New(0, 0), testParams(), simcore.AlgoN2); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if err := e.Step(runningFrame(1)); err != nil {
		t.Errorf("Step() on empty graph error = %v", err)
	}
}

func TestExecutor_UnknownAlgorithm(t *testing.T) {
	e := NewExecutor()
	if err := e.Reset(loadedState(t, 2), testParams(), "voronoi"); err == nil {
		t.Error("Reset() with unknown algorithm should error")
	}
}

func TestExecutor_StepMovesNodes(t *testing.T) {
	st := loadedState(t, 3)
	e := NewExecutor()
	if err := e.Reset(st, testParams(), simcore.AlgoN2); err != nil {
		t.Fatal(err)
	}
	before := append([]float32(nil), st.PosX[:3]...)
	for i := 0; i < 10; i++ {
		if err := e.Step(runningFrame(1)); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	if err := e.SyncPositions(); err != nil {
		t.Fatal(err)
	}
	moved := false
	for i := 0; i < 3; i++ {
		if st.PosX[i] != before[i] {
			moved = true
		}
	}
	if !moved {
		t.Error("positions unchanged after 10 hot ticks")
	}
}

func TestExecutor_PingPongCommits(t *testing.T) {
	// After a tick, the input side holds the last integration's output:
	// syncing twice without stepping must be stable.
	st := loadedState(t, 2)
	e := NewExecutor()
	if err := e.Reset(st, testParams(), simcore.AlgoN2); err != nil {
		t.Fatal(err)
	}
	if err := e.Step(runningFrame(1)); err != nil {
		t.Fatal(err)
	}
	if err := e.SyncPositions(); err != nil {
		t.Fatal(err)
	}
	first := append([]float32(nil), st.PosX[:2]...)
	if err := e.SyncPositions(); err != nil {
		t.Fatal(err)
	}
	for i := range first {
		if st.PosX[i] != first[i] {
			t.Errorf("slot %d drifted between syncs: %v vs %v", i, first[i], st.PosX[i])
		}
	}
}

func TestExecutor_WritePosition(t *testing.T) {
	st := loadedState(t, 2)
	e := NewExecutor()
	if err := e.Reset(st, testParams(), simcore.AlgoN2); err != nil {
		t.Fatal(err)
	}
	e.WritePosition(1, 77, -33)
	if err := e.SyncPositions(); err != nil {
		t.Fatal(err)
	}
	if st.PosX[1] != 77 || st.PosY[1] != -33 {
		t.Errorf("position = (%v,%v), want (77,-33)", st.PosX[1], st.PosY[1])
	}
	// The write survives a swap: step once with the row pinned.
	st.NodeFlags[1] |= graphstate.FlagPinned
	if err := e.Step(runningFrame(1)); err != nil {
		t.Fatal(err)
	}
	if err := e.SyncPositions(); err != nil {
		t.Fatal(err)
	}
	if st.PosX[1] != 77 || st.PosY[1] != -33 {
		t.Errorf("pinned position drifted to (%v,%v)", st.PosX[1], st.PosY[1])
	}
}

func TestExecutor_BarnesHutRequiresBounds(t *testing.T) {
	st := loadedState(t, 4)
	e := NewExecutor()
	if err := e.Reset(st, testParams(), simcore.AlgoBarnesHut); err != nil {
		t.Fatal(err)
	}
	if !e.RequiresBounds() {
		t.Error("barnes-hut must require bounds")
	}
	bad := runningFrame(1)
	bad.Bounds = simcore.InvalidBounds()
	err := e.Step(bad) // frame carries invalid bounds
	if !errors.Is(err, ErrBoundsRequired) {
		t.Errorf("Step() error = %v, want ErrBoundsRequired", err)
	}

	frame := runningFrame(1)
	frame.Bounds = st.ComputeBounds().WithMargin()
	if err := e.Step(frame); err != nil {
		t.Errorf("Step() with bounds error = %v", err)
	}
}

func TestExecutor_AlgorithmTraits(t *testing.T) {
	tests := []struct {
		id             string
		handlesGravity bool
		skipSprings    bool
	}{
		{simcore.AlgoN2, false, false},
		{simcore.AlgoBarnesHut, false, false},
		{simcore.AlgoLinLog, true, false},
		{simcore.AlgoTFDP, false, false},
		{simcore.AlgoRelativity, true, false},
		{simcore.AlgoTidyTree, false, true},
		{simcore.AlgoCommunity, false, true},
		{simcore.AlgoCodebase, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			st := loadedState(t, 2)
			e := NewExecutor()
			if err := e.Reset(st, testParams(), tt.id); err != nil {
				t.Fatal(err)
			}
			if got := e.HandlesGravity(); got != tt.handlesGravity {
				t.Errorf("HandlesGravity() = %v, want %v", got, tt.handlesGravity)
			}
			if got := e.SkipSprings(); got != tt.skipSprings {
				t.Errorf("SkipSprings() = %v, want %v", got, tt.skipSprings)
			}
		})
	}
}

func TestExecutor_PrecomputedPullsTowardTargets(t *testing.T) {
	// A two-level tree under the tidy-tree layout: ticking moves nodes
	// toward their computed targets.
	st := graphstate.New(3, 2)
	for _, id := range []string{"root", "l", "r"} {
		if _, err := st.AllocateNodeSlot(id); err != nil {
			t.Fatal(err)
		}
	}
	for i, e := range [][2]uint32{{0, 1}, {0, 2}} {
		slot, _ := st.AllocateEdgeSlot(string(rune('x'+i)), e[0], e[1])
		st.AddEdgeAdjacency(slot, e[0], e[1])
	}
	st.PosX[0], st.PosY[0] = 500, 500
	st.ComputeDepths()

	params := testParams()
	params.TidyTree = simcore.TidyTreeParams{
		LevelGap: 80, SiblingGap: 30, SubtreeGap: 40, Stiffness: 0.1, Damping: 0.1,
	}
	e := NewExecutor()
	if err := e.Reset(st, params, simcore.AlgoTidyTree); err != nil {
		t.Fatal(err)
	}

	start := math.Hypot(float64(st.PosX[0]-e.targetX[0]), float64(st.PosY[0]-e.targetY[0]))
	for i := 0; i < 50; i++ {
		if err := e.Step(runningFrame(1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.SyncPositions(); err != nil {
		t.Fatal(err)
	}
	end := math.Hypot(float64(st.PosX[0]-e.targetX[0]), float64(st.PosY[0]-e.targetY[0]))
	if end >= start {
		t.Errorf("distance to target grew: %v -> %v", start, end)
	}
}

func TestExecutor_GrowPreservesPositions(t *testing.T) {
	st := loadedState(t, 3)
	e := NewExecutor()
	if err := e.Reset(st, testParams(), simcore.AlgoN2); err != nil {
		t.Fatal(err)
	}
	e.WritePosition(0, 123, 45)

	// Force shadow growth, then follow it.
	initialCapacity := int(st.NodeCapacity())
	for i := 0; i < initialCapacity; i++ {
		if _, err := st.AllocateNodeSlot(string(rune(1000 + i))); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Grow(); err != nil {
		t.Fatal(err)
	}
	if e.capacity != st.NodeCapacity() {
		t.Errorf("capacity = %d, want %d", e.capacity, st.NodeCapacity())
	}
	if err := e.SyncPositions(); err != nil {
		t.Fatal(err)
	}
	if st.PosX[0] != 123 || st.PosY[0] != 45 {
		t.Errorf("position lost across growth: (%v,%v)", st.PosX[0], st.PosY[0])
	}
}

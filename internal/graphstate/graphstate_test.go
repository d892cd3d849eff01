// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

package graphstate

import (
	"errors"
	"math"
	"testing"
)

func TestNew_InitialCapacity(t *testing.T) {
	tests := []struct {
		name      string
		nodes     int
		edges     int
		wantNodes uint32
		wantEdges uint32
	}{
		{"empty graph takes the floor", 0, 0, MinCapacity, MinCapacity},
		{"small graph takes the floor", 10, 5, MinCapacity, MinCapacity},
		{"large graph doubles the count", 1000, 4000, 2000, 8000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.nodes, tt.edges)
			if got := s.NodeCapacity(); got != tt.wantNodes {
				t.Errorf("NodeCapacity() = %d, want %d", got, tt.wantNodes)
			}
			if got := s.EdgeCapacity(); got != tt.wantEdges {
				t.Errorf("EdgeCapacity() = %d, want %d", got, tt.wantEdges)
			}
		})
	}
}

func TestAllocateNodeSlot(t *testing.T) {
	t.Run("sequential slots", func(t *testing.T) {
		s := New(0, 0)
		for i := 0; i < 5; i++ {
			slot, err := s.AllocateNodeSlot(string(rune('a' + i)))
			if err != nil {
				t.Fatalf("AllocateNodeSlot() error = %v", err)
			}
			if slot != uint32(i) {
				t.Errorf("slot = %d, want %d", slot, i)
			}
		}
		if got := s.NodeCount(); got != 5 {
			t.Errorf("NodeCount() = %d, want 5", got)
		}
		if got := s.NodeHighWater(); got != 5 {
			t.Errorf("NodeHighWater() = %d, want 5", got)
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		s := New(0, 0)
		if _, err := s.AllocateNodeSlot("a"); err != nil {
			t.Fatalf("first allocation: %v", err)
		}
		if _, err := s.AllocateNodeSlot("a"); !errors.Is(err, ErrDuplicateID) {
			t.Errorf("second allocation error = %v, want ErrDuplicateID", err)
		}
	})

	t.Run("alive flag set", func(t *testing.T) {
		s := New(0, 0)
		slot, _ := s.AllocateNodeSlot("a")
		if s.NodeFlags[slot]&FlagAlive == 0 {
			t.Error("alive flag not set on allocation")
		}
	})

	t.Run("growth disabled", func(t *testing.T) {
		s := New(0, 0)
		s.SetGrowthEnabled(false)
		var err error
		for i := 0; i <= MinCapacity; i++ {
			_, err = s.AllocateNodeSlot(string(rune(i)))
			if err != nil {
				break
			}
		}
		if !errors.Is(err, ErrCapacityExceeded) {
			t.Errorf("error = %v, want ErrCapacityExceeded", err)
		}
	})

	t.Run("growth doubles and preserves rows", func(t *testing.T) {
		s := New(0, 0)
		for i := 0; i < MinCapacity; i++ {
			slot, err := s.AllocateNodeSlot(string(rune(i)))
			if err != nil {
				t.Fatalf("allocation %d: %v", i, err)
			}
			s.PosX[slot] = float32(i)
		}
		if _, err := s.AllocateNodeSlot("overflow"); err != nil {
			t.Fatalf("growth allocation: %v", err)
		}
		if got := s.NodeCapacity(); got != MinCapacity*2 {
			t.Errorf("NodeCapacity() = %d, want %d", got, MinCapacity*2)
		}
		if s.PosX[100] != 100 {
			t.Errorf("PosX[100] = %v, want 100 after growth", s.PosX[100])
		}
	})
}

func TestFreeNodeSlot(t *testing.T) {
	s := New(0, 0)
	a, _ := s.AllocateNodeSlot("a")
	b, _ := s.AllocateNodeSlot("b")
	s.PosX[a], s.PosY[a] = 3, 4
	s.NodeAttrs[a*NodeAttrStride] = 7

	s.FreeNodeSlot(a)

	t.Run("row zeroed", func(t *testing.T) {
		if s.PosX[a] != 0 || s.PosY[a] != 0 {
			t.Errorf("position = (%v,%v), want zeroed", s.PosX[a], s.PosY[a])
		}
		if s.NodeAttrs[a*NodeAttrStride] != 0 {
			t.Error("attributes not zeroed")
		}
		if s.NodeFlags[a] != 0 {
			t.Error("flags not zeroed")
		}
	})
	t.Run("high water preserved", func(t *testing.T) {
		if got := s.NodeHighWater(); got != 2 {
			t.Errorf("NodeHighWater() = %d, want 2", got)
		}
		if got := s.NodeCount(); got != 1 {
			t.Errorf("NodeCount() = %d, want 1", got)
		}
	})
	t.Run("slot not reused", func(t *testing.T) {
		c, err := s.AllocateNodeSlot("c")
		if err != nil {
			t.Fatalf("AllocateNodeSlot() error = %v", err)
		}
		if c == a {
			t.Errorf("freed slot %d reused", a)
		}
		if c != 2 {
			t.Errorf("slot = %d, want 2", c)
		}
	})
	t.Run("id unresolvable", func(t *testing.T) {
		if _, ok := s.NodeSlot("a"); ok {
			t.Error("freed id still resolves")
		}
		if s.NodeLive(a) {
			t.Error("freed slot reports live")
		}
		if !s.NodeLive(b) {
			t.Error("live slot reports dead")
		}
	})
}

func TestFreeEdgeSlot_SwapRemove(t *testing.T) {
	s := New(0, 0)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := s.AllocateNodeSlot(id); err != nil {
			t.Fatal(err)
		}
	}
	e0, _ := s.AllocateEdgeSlot("e0", 0, 1)
	e1, _ := s.AllocateEdgeSlot("e1", 1, 2)
	e2, _ := s.AllocateEdgeSlot("e2", 0, 2)
	s.AddEdgeAdjacency(e0, 0, 1)
	s.AddEdgeAdjacency(e1, 1, 2)
	s.AddEdgeAdjacency(e2, 0, 2)
	s.EdgeWeight[e2] = 9

	s.RemoveEdgeAdjacency(e0, 0, 1)
	swappedFrom, swapped := s.FreeEdgeSlot(e0)

	t.Run("last edge moved in", func(t *testing.T) {
		if !swapped {
			t.Fatal("expected a swap")
		}
		if swappedFrom != 2 {
			t.Errorf("swappedFrom = %d, want 2", swappedFrom)
		}
		if s.EdgeSrc[0] != 0 || s.EdgeTgt[0] != 2 {
			t.Errorf("slot 0 endpoints = (%d,%d), want (0,2)", s.EdgeSrc[0], s.EdgeTgt[0])
		}
		if s.EdgeWeight[0] != 9 {
			t.Errorf("slot 0 weight = %v, want 9", s.EdgeWeight[0])
		}
	})
	t.Run("id map follows", func(t *testing.T) {
		slot, ok := s.EdgeSlot("e2")
		if !ok || slot != 0 {
			t.Errorf("EdgeSlot(e2) = (%d,%v), want (0,true)", slot, ok)
		}
		if _, ok := s.EdgeSlot("e0"); ok {
			t.Error("removed edge still resolves")
		}
	})
	t.Run("adjacency renumbered", func(t *testing.T) {
		for _, entry := range s.Adjacency(0) {
			if entry.EdgeSlot >= s.EdgeCount() {
				t.Errorf("adjacency references dead edge slot %d", entry.EdgeSlot)
			}
		}
	})
	t.Run("count decremented", func(t *testing.T) {
		if got := s.EdgeCount(); got != 2 {
			t.Errorf("EdgeCount() = %d, want 2", got)
		}
	})
}

func TestCSR(t *testing.T) {
	// Tree: 0 -> 1, 0 -> 2, 1 -> 3.
	s := New(0, 0)
	for _, id := range []string{"r", "a", "b", "c"} {
		if _, err := s.AllocateNodeSlot(id); err != nil {
			t.Fatal(err)
		}
	}
	edges := [][2]uint32{{0, 1}, {0, 2}, {1, 3}}
	for i, e := range edges {
		slot, _ := s.AllocateEdgeSlot(string(rune('x'+i)), e[0], e[1])
		s.AddEdgeAdjacency(slot, e[0], e[1])
	}

	t.Run("forward", func(t *testing.T) {
		offsets, targets := s.ForwardCSR()
		if len(offsets) != 5 {
			t.Fatalf("len(offsets) = %d, want 5", len(offsets))
		}
		if offsets[4] != 3 {
			t.Errorf("total = %d, want 3", offsets[4])
		}
		// Node 0 has children 1 and 2.
		got := targets[offsets[0]:offsets[1]]
		if len(got) != 2 {
			t.Fatalf("node 0 out-degree = %d, want 2", len(got))
		}
	})
	t.Run("inverse", func(t *testing.T) {
		offsets, targets := s.InverseCSR()
		// Node 3's only parent is 1.
		got := targets[offsets[3]:offsets[4]]
		if len(got) != 1 || got[0] != 1 {
			t.Errorf("node 3 parents = %v, want [1]", got)
		}
		// Root has no parents.
		if offsets[1]-offsets[0] != 0 {
			t.Error("root should have no incoming edges")
		}
	})
}

func TestComputeDepths(t *testing.T) {
	s := New(0, 0)
	for _, id := range []string{"r", "a", "b", "c"} {
		if _, err := s.AllocateNodeSlot(id); err != nil {
			t.Fatal(err)
		}
	}
	for i, e := range [][2]uint32{{0, 1}, {1, 2}, {1, 3}} {
		slot, _ := s.AllocateEdgeSlot(string(rune('x'+i)), e[0], e[1])
		s.AddEdgeAdjacency(slot, e[0], e[1])
	}
	s.ComputeDepths()

	want := []float32{0, 1, 2, 2}
	for slot, w := range want {
		if got := s.NodeDepth[slot]; got != w {
			t.Errorf("depth[%d] = %v, want %v", slot, got, w)
		}
	}
}

func TestComputeBounds(t *testing.T) {
	t.Run("empty graph invalid", func(t *testing.T) {
		s := New(0, 0)
		if b := s.ComputeBounds(); b.Valid() {
			t.Error("empty bounds should be invalid")
		}
	})
	t.Run("skips non-finite", func(t *testing.T) {
		s := New(0, 0)
		a, _ := s.AllocateNodeSlot("a")
		b, _ := s.AllocateNodeSlot("b")
		c, _ := s.AllocateNodeSlot("c")
		s.PosX[a], s.PosY[a] = -5, 2
		s.PosX[b], s.PosY[b] = 7, -3
		s.PosX[c] = float32(math.NaN())
		got := s.ComputeBounds()
		if !got.Valid() {
			t.Fatal("bounds should be valid")
		}
		if got.MinX != -5 || got.MaxX != 7 || got.MinY != -3 || got.MaxY != 2 {
			t.Errorf("bounds = %+v", got)
		}
	})
}

func TestCorrupted(t *testing.T) {
	s := New(0, 0)
	if s.Corrupted() {
		t.Error("empty graph must not report corrupted")
	}
	a, _ := s.AllocateNodeSlot("a")
	if s.Corrupted() {
		t.Error("finite positions must not report corrupted")
	}
	s.PosX[a] = float32(math.Inf(1))
	s.PosY[a] = float32(math.NaN())
	if !s.Corrupted() {
		t.Error("all-non-finite positions must report corrupted")
	}
}

func TestAddRemoveRoundTrip(t *testing.T) {
	// Invariant: after any add then matching remove, counts return to
	// their prior values.
	s := New(0, 0)
	a, _ := s.AllocateNodeSlot("a")
	b, _ := s.AllocateNodeSlot("b")
	e, _ := s.AllocateEdgeSlot("e", a, b)
	s.AddEdgeAdjacency(e, a, b)
	nodesBefore, edgesBefore := s.NodeCount(), s.EdgeCount()

	c, _ := s.AllocateNodeSlot("c")
	e2, _ := s.AllocateEdgeSlot("e2", a, c)
	s.AddEdgeAdjacency(e2, a, c)

	s.RemoveEdgeAdjacency(e2, a, c)
	s.FreeEdgeSlot(e2)
	s.FreeNodeSlot(c)

	if got := s.NodeCount(); got != nodesBefore {
		t.Errorf("NodeCount() = %d, want %d", got, nodesBefore)
	}
	if got := s.EdgeCount(); got != edgesBefore {
		t.Errorf("EdgeCount() = %d, want %d", got, edgesBefore)
	}
}

func TestEdgeEndpointInvariant(t *testing.T) {
	// Invariant: every live edge endpoint refers to a live node slot.
	s := New(0, 0)
	for i := 0; i < 10; i++ {
		if _, err := s.AllocateNodeSlot(string(rune('a' + i))); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 9; i++ {
		slot, _ := s.AllocateEdgeSlot(string(rune('A'+i)), uint32(i), uint32(i+1))
		s.AddEdgeAdjacency(slot, uint32(i), uint32(i+1))
	}
	// Remove a few edges and verify endpoint liveness.
	for _, id := range []string{"B", "E", "H"} {
		slot, ok := s.EdgeSlot(id)
		if !ok {
			t.Fatalf("edge %s missing", id)
		}
		s.RemoveEdgeAdjacency(slot, s.EdgeSrc[slot], s.EdgeTgt[slot])
		s.FreeEdgeSlot(slot)
	}
	live := 0
	for e := uint32(0); e < s.EdgeCount(); e++ {
		if !s.NodeLive(s.EdgeSrc[e]) || !s.NodeLive(s.EdgeTgt[e]) {
			t.Errorf("edge %d references dead endpoint", e)
		}
		live += 2
	}
	if live != int(s.EdgeCount())*2 {
		t.Errorf("endpoint count = %d, want %d", live, s.EdgeCount()*2)
	}
}

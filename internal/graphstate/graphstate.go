// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package graphstate maintains the slot-allocated CPU shadow of the graph:
// dense typed arrays for positions, velocities, and attributes, bidirectional
// ID<->slot maps, per-node adjacency, and CSR generation for algorithms that
// need O(1) neighbor access. GPU buffers mirror these arrays row for row, so
// slot indices are kept stable across mutations: freed node rows are zeroed
// rather than recycled, and the high-water mark only resets on full reload.
package graphstate

import (
	"errors"
	"math"

	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// Strides of the per-node and per-edge attribute rows, in float32 lanes.
const (
	// NodeAttrStride lanes: radius, r, g, b, selected, hovered.
	NodeAttrStride = 6
	// EdgeAttrStride lanes: width, r, g, b, selected, hovered, curvature, reserved.
	EdgeAttrStride = 8
)

// MinCapacity is the smallest allocation made for either axis.
const MinCapacity = 256

// NodeFlags bits. A zeroed row is dead, so liveness is a set bit rather
// than a cleared one.
const (
	// FlagAlive marks a slot holding a live node.
	FlagAlive uint32 = 1 << 0
	// FlagPinned holds the node at its written position during integration.
	FlagPinned uint32 = 1 << 1
)

var (
	// ErrCapacityExceeded reports a slot allocation past capacity while
	// growth is disabled.
	ErrCapacityExceeded = errors.New("graphstate: capacity exceeded")

	// ErrDuplicateID reports an allocation that reused a live ID.
	ErrDuplicateID = errors.New("graphstate: duplicate id")
)

// AdjacencyEntry records one incident edge of a node.
type AdjacencyEntry struct {
	EdgeSlot uint32
	Neighbor uint32
	// Outgoing is true on the source node's entry, false on the target's.
	Outgoing bool
}

// State is the CPU shadow of the loaded graph.
//
// All exported slices are indexed by dense slot and sized to capacity; rows
// at or above the node high-water mark (or edge count) are dead. Callers that
// mutate rows directly are responsible for mirroring the change to the GPU.
type State struct {
	PosX, PosY []float32
	VelX, VelY []float32

	// NodeAttrs holds NodeAttrStride float32 lanes per node slot.
	NodeAttrs []float32
	NodeDepth []float32
	NodeFlags []uint32
	Category  []uint8

	EdgeSrc, EdgeTgt []uint32
	// EdgeAttrs holds EdgeAttrStride float32 lanes per edge slot.
	EdgeAttrs  []float32
	EdgeWeight []float32

	nodeIDs   []string // slot -> id, "" when the slot is dead
	edgeIDs   []string
	nodeSlots map[string]uint32
	edgeSlots map[string]uint32

	adjacency [][]AdjacencyEntry

	nodeHighWater uint32
	liveNodes     uint32
	edgeCount     uint32
	nodeCapacity  uint32
	edgeCapacity  uint32
	growthEnabled bool
}

// New creates a State sized for the given counts. Capacity starts at
// max(2*count, MinCapacity) on each axis and doubles on overflow.
func New(nodeCount, edgeCount int) *State {
	s := &State{
		nodeSlots:     make(map[string]uint32, nodeCount),
		edgeSlots:     make(map[string]uint32, edgeCount),
		growthEnabled: true,
	}
	s.nodeCapacity = initialCapacity(nodeCount)
	s.edgeCapacity = initialCapacity(edgeCount)
	s.allocNodeArrays(s.nodeCapacity)
	s.allocEdgeArrays(s.edgeCapacity)
	return s
}

func initialCapacity(count int) uint32 {
	c := uint32(count) * 2
	if c < MinCapacity {
		c = MinCapacity
	}
	return c
}

func (s *State) allocNodeArrays(capacity uint32) {
	s.PosX = make([]float32, capacity)
	s.PosY = make([]float32, capacity)
	s.VelX = make([]float32, capacity)
	s.VelY = make([]float32, capacity)
	s.NodeAttrs = make([]float32, capacity*NodeAttrStride)
	s.NodeDepth = make([]float32, capacity)
	s.NodeFlags = make([]uint32, capacity)
	s.Category = make([]uint8, capacity)
	s.nodeIDs = make([]string, capacity)
	s.adjacency = make([][]AdjacencyEntry, capacity)
}

func (s *State) allocEdgeArrays(capacity uint32) {
	s.EdgeSrc = make([]uint32, capacity)
	s.EdgeTgt = make([]uint32, capacity)
	s.EdgeAttrs = make([]float32, capacity*EdgeAttrStride)
	s.EdgeWeight = make([]float32, capacity)
	s.edgeIDs = make([]string, capacity)
}

// NodeCapacity returns the current node slot capacity.
func (s *State) NodeCapacity() uint32 { return s.nodeCapacity }

// EdgeCapacity returns the current edge slot capacity.
func (s *State) EdgeCapacity() uint32 { return s.edgeCapacity }

// NodeHighWater returns the maximum slot ever allocated plus one. It is the
// GPU dispatch upper bound and only resets on full reload.
func (s *State) NodeHighWater() uint32 { return s.nodeHighWater }

// NodeCount returns the number of live nodes.
func (s *State) NodeCount() uint32 { return s.liveNodes }

// EdgeCount returns the number of live edges.
func (s *State) EdgeCount() uint32 { return s.edgeCount }

// SetGrowthEnabled toggles geometric capacity growth. With growth disabled,
// allocations past capacity fail with ErrCapacityExceeded.
func (s *State) SetGrowthEnabled(enabled bool) { s.growthEnabled = enabled }

// =============================================================================
// Node slots
// =============================================================================

// AllocateNodeSlot returns the next dense slot for id, growing the arrays
// when necessary. Slots freed earlier are not reused; the high-water mark
// increases monotonically so GPU row indices stay stable.
func (s *State) AllocateNodeSlot(id string) (uint32, error) {
	if _, exists := s.nodeSlots[id]; exists {
		return 0, ErrDuplicateID
	}
	if s.nodeHighWater == s.nodeCapacity {
		if !s.growthEnabled {
			return 0, ErrCapacityExceeded
		}
		s.growNodes(s.nodeCapacity * 2)
	}
	slot := s.nodeHighWater
	s.nodeHighWater++
	s.liveNodes++
	s.nodeIDs[slot] = id
	s.nodeSlots[id] = slot
	s.NodeFlags[slot] = FlagAlive
	return slot, nil
}

// FreeNodeSlot zeroes the node's row and releases its ID. The slot itself is
// not reused until the next full reload.
func (s *State) FreeNodeSlot(slot uint32) {
	if slot >= s.nodeHighWater || s.nodeIDs[slot] == "" {
		return
	}
	delete(s.nodeSlots, s.nodeIDs[slot])
	s.nodeIDs[slot] = ""
	s.liveNodes--

	s.PosX[slot], s.PosY[slot] = 0, 0
	s.VelX[slot], s.VelY[slot] = 0, 0
	s.NodeDepth[slot] = 0
	s.NodeFlags[slot] = 0
	s.Category[slot] = 0
	row := s.NodeAttrs[slot*NodeAttrStride : (slot+1)*NodeAttrStride]
	for i := range row {
		row[i] = 0
	}
	s.adjacency[slot] = nil
}

// NodeSlot resolves a caller ID to its dense slot.
func (s *State) NodeSlot(id string) (uint32, bool) {
	slot, ok := s.nodeSlots[id]
	return slot, ok
}

// NodeID resolves a dense slot back to the caller ID.
func (s *State) NodeID(slot uint32) (string, bool) {
	if slot >= s.nodeHighWater || s.nodeIDs[slot] == "" {
		return "", false
	}
	return s.nodeIDs[slot], true
}

// NodeLive reports whether the slot holds a live node.
func (s *State) NodeLive(slot uint32) bool {
	return slot < s.nodeHighWater && s.nodeIDs[slot] != ""
}

func (s *State) growNodes(capacity uint32) {
	old := *s
	s.allocNodeArrays(capacity)
	copy(s.PosX, old.PosX)
	copy(s.PosY, old.PosY)
	copy(s.VelX, old.VelX)
	copy(s.VelY, old.VelY)
	copy(s.NodeAttrs, old.NodeAttrs)
	copy(s.NodeDepth, old.NodeDepth)
	copy(s.NodeFlags, old.NodeFlags)
	copy(s.Category, old.Category)
	copy(s.nodeIDs, old.nodeIDs)
	copy(s.adjacency, old.adjacency)
	s.nodeCapacity = capacity
}

// =============================================================================
// Edge slots
// =============================================================================

// AllocateEdgeSlot appends an edge row for id with the given endpoints.
func (s *State) AllocateEdgeSlot(id string, src, tgt uint32) (uint32, error) {
	if _, exists := s.edgeSlots[id]; exists {
		return 0, ErrDuplicateID
	}
	if s.edgeCount == s.edgeCapacity {
		if !s.growthEnabled {
			return 0, ErrCapacityExceeded
		}
		s.growEdges(s.edgeCapacity * 2)
	}
	slot := s.edgeCount
	s.edgeCount++
	s.edgeIDs[slot] = id
	s.edgeSlots[id] = slot
	s.EdgeSrc[slot] = src
	s.EdgeTgt[slot] = tgt
	return slot, nil
}

// FreeEdgeSlot removes the edge by swapping the last edge row into its place.
// It returns the index the last edge moved from, so the caller can rewrite
// the single GPU row at slot; swapped is false when the removed edge was
// already last (no row moved).
func (s *State) FreeEdgeSlot(slot uint32) (swappedFrom uint32, swapped bool) {
	if slot >= s.edgeCount {
		return 0, false
	}
	delete(s.edgeSlots, s.edgeIDs[slot])
	last := s.edgeCount - 1

	if slot != last {
		s.EdgeSrc[slot] = s.EdgeSrc[last]
		s.EdgeTgt[slot] = s.EdgeTgt[last]
		s.EdgeWeight[slot] = s.EdgeWeight[last]
		copy(
			s.EdgeAttrs[slot*EdgeAttrStride:(slot+1)*EdgeAttrStride],
			s.EdgeAttrs[last*EdgeAttrStride:(last+1)*EdgeAttrStride],
		)
		movedID := s.edgeIDs[last]
		s.edgeIDs[slot] = movedID
		s.edgeSlots[movedID] = slot
		s.renumberAdjacency(last, slot)
	}

	s.edgeIDs[last] = ""
	s.EdgeSrc[last], s.EdgeTgt[last] = 0, 0
	s.EdgeWeight[last] = 0
	row := s.EdgeAttrs[last*EdgeAttrStride : (last+1)*EdgeAttrStride]
	for i := range row {
		row[i] = 0
	}
	s.edgeCount--
	return last, slot != last
}

// EdgeSlot resolves a caller edge ID to its dense slot.
func (s *State) EdgeSlot(id string) (uint32, bool) {
	slot, ok := s.edgeSlots[id]
	return slot, ok
}

// EdgeID resolves a dense edge slot back to the caller ID.
func (s *State) EdgeID(slot uint32) (string, bool) {
	if slot >= s.edgeCount {
		return "", false
	}
	return s.edgeIDs[slot], true
}

func (s *State) growEdges(capacity uint32) {
	old := *s
	s.allocEdgeArrays(capacity)
	copy(s.EdgeSrc, old.EdgeSrc)
	copy(s.EdgeTgt, old.EdgeTgt)
	copy(s.EdgeAttrs, old.EdgeAttrs)
	copy(s.EdgeWeight, old.EdgeWeight)
	copy(s.edgeIDs, old.edgeIDs)
	s.edgeCapacity = capacity
}

// renumberAdjacency rewrites adjacency entries after an edge swap-remove.
func (s *State) renumberAdjacency(from, to uint32) {
	fix := func(slot uint32) {
		for i := range s.adjacency[slot] {
			if s.adjacency[slot][i].EdgeSlot == from {
				s.adjacency[slot][i].EdgeSlot = to
			}
		}
	}
	fix(s.EdgeSrc[to])
	if s.EdgeTgt[to] != s.EdgeSrc[to] {
		fix(s.EdgeTgt[to])
	}
}

// =============================================================================
// Adjacency and CSR
// =============================================================================

// AddEdgeAdjacency records the edge on both endpoints' adjacency lists.
func (s *State) AddEdgeAdjacency(edge, src, tgt uint32) {
	s.adjacency[src] = append(s.adjacency[src], AdjacencyEntry{EdgeSlot: edge, Neighbor: tgt, Outgoing: true})
	s.adjacency[tgt] = append(s.adjacency[tgt], AdjacencyEntry{EdgeSlot: edge, Neighbor: src, Outgoing: false})
}

// RemoveEdgeAdjacency removes the edge from both endpoints' adjacency lists.
func (s *State) RemoveEdgeAdjacency(edge, src, tgt uint32) {
	drop := func(slot uint32) {
		list := s.adjacency[slot]
		for i := range list {
			if list[i].EdgeSlot == edge {
				list[i] = list[len(list)-1]
				s.adjacency[slot] = list[:len(list)-1]
				return
			}
		}
	}
	drop(src)
	drop(tgt)
}

// Adjacency returns the node's incident edges. The returned slice is owned by
// the State and must not be mutated.
func (s *State) Adjacency(slot uint32) []AdjacencyEntry {
	if slot >= s.nodeHighWater {
		return nil
	}
	return s.adjacency[slot]
}

// ForwardCSR builds (offsets[highWater+1], targets[outDegreeSum]) over
// outgoing edges. Offsets and targets index the same slot space as the
// position buffers.
func (s *State) ForwardCSR() (offsets, targets []uint32) {
	return s.buildCSR(true)
}

// InverseCSR builds the CSR over incoming edges.
func (s *State) InverseCSR() (offsets, targets []uint32) {
	return s.buildCSR(false)
}

func (s *State) buildCSR(outgoing bool) (offsets, targets []uint32) {
	n := s.nodeHighWater
	offsets = make([]uint32, n+1)
	for slot := uint32(0); slot < n; slot++ {
		for _, e := range s.adjacency[slot] {
			if e.Outgoing == outgoing {
				offsets[slot+1]++
			}
		}
	}
	for i := uint32(1); i <= n; i++ {
		offsets[i] += offsets[i-1]
	}
	targets = make([]uint32, offsets[n])
	cursor := make([]uint32, n)
	for slot := uint32(0); slot < n; slot++ {
		for _, e := range s.adjacency[slot] {
			if e.Outgoing == outgoing {
				targets[offsets[slot]+cursor[slot]] = e.Neighbor
				cursor[slot]++
			}
		}
	}
	return offsets, targets
}

// =============================================================================
// Derived per-frame data
// =============================================================================

// ComputeBounds returns the axis-aligned bounding box over finite positions
// of live nodes. Invalid bounds mean no live node has a finite position.
func (s *State) ComputeBounds() simcore.Bounds {
	b := simcore.InvalidBounds()
	first := true
	for slot := uint32(0); slot < s.nodeHighWater; slot++ {
		if s.nodeIDs[slot] == "" {
			continue
		}
		x, y := s.PosX[slot], s.PosY[slot]
		if !finite(x) || !finite(y) {
			continue
		}
		if first {
			b = simcore.Bounds{MinX: x, MinY: y, MaxX: x, MaxY: y}
			first = false
			continue
		}
		if x < b.MinX {
			b.MinX = x
		}
		if x > b.MaxX {
			b.MaxX = x
		}
		if y < b.MinY {
			b.MinY = y
		}
		if y > b.MaxY {
			b.MaxY = y
		}
	}
	return b
}

// Corrupted reports whether every live node position is non-finite.
// An empty graph is not corrupted.
func (s *State) Corrupted() bool {
	sawLive := false
	for slot := uint32(0); slot < s.nodeHighWater; slot++ {
		if s.nodeIDs[slot] == "" {
			continue
		}
		sawLive = true
		if finite(s.PosX[slot]) && finite(s.PosY[slot]) {
			return false
		}
	}
	return sawLive
}

// MaxRadius returns the largest node radius among live nodes, or fallback
// when the graph is empty or radii are all zero.
func (s *State) MaxRadius(fallback float32) float32 {
	max := float32(0)
	for slot := uint32(0); slot < s.nodeHighWater; slot++ {
		if s.nodeIDs[slot] == "" {
			continue
		}
		if r := s.NodeAttrs[slot*NodeAttrStride]; r > max {
			max = r
		}
	}
	if max <= 0 {
		return fallback
	}
	return max
}

// ComputeDepths fills NodeDepth with each node's hop distance from the
// nearest root (a live node with no incoming edges), walking outgoing edges
// breadth-first. Nodes unreachable from any root keep depth 0, matching the
// no-hierarchy default.
func (s *State) ComputeDepths() {
	n := s.nodeHighWater
	for slot := uint32(0); slot < n; slot++ {
		s.NodeDepth[slot] = 0
	}
	inDegree := make([]uint32, n)
	for e := uint32(0); e < s.edgeCount; e++ {
		inDegree[s.EdgeTgt[e]]++
	}
	queue := make([]uint32, 0, n)
	visited := make([]bool, n)
	for slot := uint32(0); slot < n; slot++ {
		if s.nodeIDs[slot] != "" && inDegree[slot] == 0 {
			queue = append(queue, slot)
			visited[slot] = true
		}
	}
	for len(queue) > 0 {
		slot := queue[0]
		queue = queue[1:]
		for _, e := range s.adjacency[slot] {
			if !e.Outgoing || visited[e.Neighbor] {
				continue
			}
			visited[e.Neighbor] = true
			s.NodeDepth[e.Neighbor] = s.NodeDepth[slot] + 1
			queue = append(queue, e.Neighbor)
		}
	}
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

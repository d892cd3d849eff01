// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// engine_mutate.go holds the incremental mutation surface: single and
// batch add/remove for nodes and edges, plus the size-bound bulk style
// setters. Mutations perform targeted GPU row writes, keep adjacency and
// CSR consumers fresh, grow capacity on demand, and reheat the temperature
// proportionally to the change.

package heroine

import (
	"fmt"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
)

// mutationBump scales the reheat with the magnitude of the change,
// between 0.05 for a single item and 0.2 for large batches.
func mutationBump(count int) float32 {
	b := 0.05 + 0.005*float32(count-1)
	if b > 0.2 {
		b = 0.2
	}
	return b
}

// AddNode inserts one node. Duplicate IDs surface ErrDuplicateID; capacity
// growth happens transparently unless disabled.
func (e *Engine) AddNode(n Node) error {
	if e.disposed {
		return ErrDisposed
	}
	if err := e.addNodeRow(&n); err != nil {
		return err
	}
	e.sim.MarkTopologyDirty()
	e.ctrl.bump(mutationBump(1))
	e.events.emit(Event{Type: EventNodeAdd, NodeID: n.ID})
	e.events.emit(Event{Type: EventGraphMutate, NodesAdded: 1})
	return nil
}

// AddNodes inserts a batch, returning the number added and a per-item
// error slice (nil entries mean success).
func (e *Engine) AddNodes(nodes []Node) (int, []error) {
	if e.disposed {
		errs := make([]error, len(nodes))
		for i := range errs {
			errs[i] = ErrDisposed
		}
		return 0, errs
	}
	errs := make([]error, len(nodes))
	added := 0
	for i := range nodes {
		if err := e.addNodeRow(&nodes[i]); err != nil {
			errs[i] = err
			continue
		}
		added++
		e.events.emit(Event{Type: EventNodeAdd, NodeID: nodes[i].ID})
	}
	if added > 0 {
		e.sim.MarkTopologyDirty()
		e.ctrl.bump(mutationBump(added))
		e.events.emit(Event{Type: EventGraphMutate, NodesAdded: added})
	}
	return added, errs
}

// addNodeRow allocates the slot, fills the shadow row, and mirrors it to
// the simulator (growing buffers first when capacity changed).
func (e *Engine) addNodeRow(n *Node) error {
	prevCapacity := e.st.NodeCapacity()
	slot, err := e.st.AllocateNodeSlot(n.ID)
	if err != nil {
		return mapStateErr(err)
	}
	fillNodeRow(e.st, slot, n)
	if e.st.NodeCapacity() != prevCapacity {
		if err := e.sim.Grow(); err != nil {
			return err
		}
	}
	e.sim.WriteNodeFromShadow(slot)
	return nil
}

// RemoveNode deletes a node and its incident edges. Unknown IDs return
// false, never an error.
func (e *Engine) RemoveNode(id string) bool {
	if e.disposed {
		return false
	}
	slot, ok := e.st.NodeSlot(id)
	if !ok {
		return false
	}

	// Collect incident edge IDs first: removal renumbers edge slots.
	adj := e.st.Adjacency(slot)
	edgeIDs := make([]string, 0, len(adj))
	for _, entry := range adj {
		if eid, ok := e.st.EdgeID(entry.EdgeSlot); ok {
			edgeIDs = append(edgeIDs, eid)
		}
	}
	removedEdges := 0
	for _, eid := range edgeIDs {
		if e.removeEdgeRow(eid) {
			removedEdges++
			e.events.emit(Event{Type: EventEdgeRemove, EdgeID: eid})
		}
	}

	e.st.FreeNodeSlot(slot)
	e.sim.WriteNodeFromShadow(slot) // zeroed row, alive flag cleared
	if e.pinnedID == id {
		e.pinnedID = ""
	}

	e.sim.MarkTopologyDirty()
	e.ctrl.bump(mutationBump(1 + removedEdges))
	e.events.emit(Event{Type: EventNodeRemove, NodeID: id})
	e.events.emit(Event{Type: EventGraphMutate, NodesRemoved: 1, EdgesRemoved: removedEdges})
	return true
}

// RemoveNodes deletes a batch, returning how many were found and removed.
func (e *Engine) RemoveNodes(ids []string) int {
	if e.disposed {
		return 0
	}
	removed := 0
	for _, id := range ids {
		if e.RemoveNode(id) {
			removed++
		}
	}
	return removed
}

// AddEdge inserts one edge. Unknown endpoints surface ErrUnknownID; an
// empty ID is synthesized from the endpoints.
func (e *Engine) AddEdge(edge Edge) error {
	if e.disposed {
		return ErrDisposed
	}
	if err := e.addEdgeRow(&edge); err != nil {
		return err
	}
	e.sim.MarkTopologyDirty()
	e.ctrl.bump(mutationBump(1))
	e.events.emit(Event{Type: EventEdgeAdd, EdgeID: edge.ID})
	e.events.emit(Event{Type: EventGraphMutate, EdgesAdded: 1})
	return nil
}

// AddEdges inserts a batch, returning the number added and per-item errors.
func (e *Engine) AddEdges(edges []Edge) (int, []error) {
	if e.disposed {
		errs := make([]error, len(edges))
		for i := range errs {
			errs[i] = ErrDisposed
		}
		return 0, errs
	}
	errs := make([]error, len(edges))
	added := 0
	for i := range edges {
		if err := e.addEdgeRow(&edges[i]); err != nil {
			errs[i] = err
			continue
		}
		added++
		e.events.emit(Event{Type: EventEdgeAdd, EdgeID: edges[i].ID})
	}
	if added > 0 {
		e.sim.MarkTopologyDirty()
		e.ctrl.bump(mutationBump(added))
		e.events.emit(Event{Type: EventGraphMutate, EdgesAdded: added})
	}
	return added, errs
}

func (e *Engine) addEdgeRow(edge *Edge) error {
	src, ok := e.st.NodeSlot(edge.Source)
	if !ok {
		return fmt.Errorf("%w: edge source %q", ErrUnknownID, edge.Source)
	}
	tgt, ok := e.st.NodeSlot(edge.Target)
	if !ok {
		return fmt.Errorf("%w: edge target %q", ErrUnknownID, edge.Target)
	}
	if edge.ID == "" {
		edge.ID = e.nextEdgeID(edge.Source, edge.Target)
	}
	prevCapacity := e.st.EdgeCapacity()
	slot, err := e.st.AllocateEdgeSlot(edge.ID, src, tgt)
	if err != nil {
		return mapStateErr(err)
	}
	fillEdgeRow(e.st, slot, edge)
	e.st.AddEdgeAdjacency(slot, src, tgt)
	if e.st.EdgeCapacity() != prevCapacity {
		if err := e.sim.Grow(); err != nil {
			return err
		}
	}
	e.sim.WriteEdgeFromShadow(slot)
	return nil
}

// RemoveEdge deletes one edge. Unknown IDs return false, never an error.
func (e *Engine) RemoveEdge(id string) bool {
	if e.disposed {
		return false
	}
	if !e.removeEdgeRow(id) {
		return false
	}
	e.sim.MarkTopologyDirty()
	e.ctrl.bump(mutationBump(1))
	e.events.emit(Event{Type: EventEdgeRemove, EdgeID: id})
	e.events.emit(Event{Type: EventGraphMutate, EdgesRemoved: 1})
	return true
}

// RemoveEdges deletes a batch, returning how many were found and removed.
func (e *Engine) RemoveEdges(ids []string) int {
	if e.disposed {
		return 0
	}
	removed := 0
	for _, id := range ids {
		if e.RemoveEdge(id) {
			removed++
		}
	}
	return removed
}

// removeEdgeRow drops the edge from adjacency, swap-removes its slot, and
// rewrites the GPU row the last edge moved into.
func (e *Engine) removeEdgeRow(id string) bool {
	slot, ok := e.st.EdgeSlot(id)
	if !ok {
		return false
	}
	e.st.RemoveEdgeAdjacency(slot, e.st.EdgeSrc[slot], e.st.EdgeTgt[slot])
	if _, swapped := e.st.FreeEdgeSlot(slot); swapped {
		e.sim.WriteEdgeFromShadow(slot)
	}
	return true
}

// =============================================================================
// Size-bound bulk setters
// =============================================================================

// SetNodeColors replaces every live node's color, in slot order. The slice
// length must equal NodeCount.
func (e *Engine) SetNodeColors(colors []Color) error {
	if e.disposed {
		return ErrDisposed
	}
	if len(colors) != e.NodeCount() {
		return fmt.Errorf("%w: got %d colors, want %d", ErrInvalidGraphData, len(colors), e.NodeCount())
	}
	i := 0
	for slot := uint32(0); slot < e.st.NodeHighWater(); slot++ {
		if !e.st.NodeLive(slot) {
			continue
		}
		c := colors[i]
		i++
		row := e.st.NodeAttrs[slot*graphstate.NodeAttrStride:]
		row[1], row[2], row[3] = c.R, c.G, c.B
		e.sim.WriteNodeFromShadow(slot)
	}
	return nil
}

// SetEdgeWidths replaces every edge's width, in slot order. The slice
// length must equal EdgeCount.
func (e *Engine) SetEdgeWidths(widths []float32) error {
	if e.disposed {
		return ErrDisposed
	}
	if len(widths) != e.EdgeCount() {
		return fmt.Errorf("%w: got %d widths, want %d", ErrInvalidGraphData, len(widths), e.EdgeCount())
	}
	for slot := uint32(0); slot < e.st.EdgeCount(); slot++ {
		e.st.EdgeAttrs[slot*graphstate.EdgeAttrStride] = widths[slot]
		e.sim.WriteEdgeFromShadow(slot)
	}
	return nil
}

// SetEdgeCurvatures replaces every edge's curvature, in slot order. The
// slice length must equal EdgeCount.
func (e *Engine) SetEdgeCurvatures(curvatures []float32) error {
	if e.disposed {
		return ErrDisposed
	}
	if len(curvatures) != e.EdgeCount() {
		return fmt.Errorf("%w: got %d curvatures, want %d", ErrInvalidGraphData, len(curvatures), e.EdgeCount())
	}
	for slot := uint32(0); slot < e.st.EdgeCount(); slot++ {
		e.st.EdgeAttrs[slot*graphstate.EdgeAttrStride+6] = curvatures[slot]
		e.sim.WriteEdgeFromShadow(slot)
	}
	return nil
}

// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// engine_interact.go holds the interactive surface: drag, pin, selection,
// and hover. Position writes go to both ping-pong buffers so a move never
// flickers across the swap.

package heroine

import "github.com/tomWhiting/heroine-graph/internal/graphstate"

// SetNodePosition moves a node to (x, y), pins it there, and reheats to at
// least 0.3. Both ping-pong position buffers receive the write. Unknown
// IDs return false.
func (e *Engine) SetNodePosition(id string, x, y float32) bool {
	if e.disposed {
		return false
	}
	slot, ok := e.st.NodeSlot(id)
	if !ok {
		return false
	}
	e.st.PosX[slot], e.st.PosY[slot] = x, y
	e.st.VelX[slot], e.st.VelY[slot] = 0, 0
	e.st.NodeFlags[slot] |= graphstate.FlagPinned
	e.sim.WriteNodeFromShadow(slot)
	e.pinnedID = id
	e.ctrl.bump(0.3)
	return true
}

// PinNode holds a node at its current position. Unknown IDs return false.
func (e *Engine) PinNode(id string) bool {
	if e.disposed {
		return false
	}
	slot, ok := e.st.NodeSlot(id)
	if !ok {
		return false
	}
	e.st.NodeFlags[slot] |= graphstate.FlagPinned
	e.st.VelX[slot], e.st.VelY[slot] = 0, 0
	e.sim.WriteNodeFromShadow(slot)
	e.events.emit(Event{Type: EventNodePin, NodeID: id})
	return true
}

// UnpinNode releases a pinned node. Unknown IDs return false.
func (e *Engine) UnpinNode(id string) bool {
	if e.disposed {
		return false
	}
	slot, ok := e.st.NodeSlot(id)
	if !ok {
		return false
	}
	e.st.NodeFlags[slot] &^= graphstate.FlagPinned
	e.sim.WriteNodeFromShadow(slot)
	if e.pinnedID == id {
		e.pinnedID = ""
	}
	e.events.emit(Event{Type: EventNodeUnpin, NodeID: id})
	e.ctrl.bump(0.1)
	return true
}

// DragStart begins an interactive drag: the node pins and the simulation
// reheats so neighbors follow.
func (e *Engine) DragStart(id string) bool {
	if e.disposed {
		return false
	}
	if _, ok := e.st.NodeSlot(id); !ok {
		return false
	}
	e.PinNode(id)
	e.pinnedID = id
	e.ctrl.bump(0.3)
	e.events.emit(Event{Type: EventNodeDragStart, NodeID: id})
	return true
}

// DragMove updates the dragged node's position.
func (e *Engine) DragMove(id string, x, y float32) bool {
	if !e.SetNodePosition(id, x, y) {
		return false
	}
	e.events.emit(Event{Type: EventNodeDragMove, NodeID: id, X: x, Y: y})
	return true
}

// DragEnd releases the drag. The node stays pinned only if keepPinned.
func (e *Engine) DragEnd(id string, keepPinned bool) bool {
	if e.disposed {
		return false
	}
	if _, ok := e.st.NodeSlot(id); !ok {
		return false
	}
	if !keepPinned {
		e.UnpinNode(id)
	}
	e.events.emit(Event{Type: EventNodeDragEnd, NodeID: id})
	return true
}

// SelectNodes replaces the node selection; the GPU selected flag flips for
// rows leaving and entering the set.
func (e *Engine) SelectNodes(ids []string) {
	if e.disposed {
		return
	}
	for _, id := range e.selectedNodes {
		if slot, ok := e.st.NodeSlot(id); ok {
			e.st.NodeAttrs[slot*graphstate.NodeAttrStride+4] = 0
			e.sim.WriteNodeFromShadow(slot)
		}
	}
	e.selectedNodes = e.selectedNodes[:0]
	for _, id := range ids {
		slot, ok := e.st.NodeSlot(id)
		if !ok {
			continue
		}
		e.st.NodeAttrs[slot*graphstate.NodeAttrStride+4] = 1
		e.sim.WriteNodeFromShadow(slot)
		e.selectedNodes = append(e.selectedNodes, id)
	}
	e.events.emit(Event{Type: EventSelectionChange})
}

// SelectEdges replaces the edge selection.
func (e *Engine) SelectEdges(ids []string) {
	if e.disposed {
		return
	}
	for _, id := range e.selectedEdges {
		if slot, ok := e.st.EdgeSlot(id); ok {
			e.st.EdgeAttrs[slot*graphstate.EdgeAttrStride+4] = 0
			e.sim.WriteEdgeFromShadow(slot)
		}
	}
	e.selectedEdges = e.selectedEdges[:0]
	for _, id := range ids {
		slot, ok := e.st.EdgeSlot(id)
		if !ok {
			continue
		}
		e.st.EdgeAttrs[slot*graphstate.EdgeAttrStride+4] = 1
		e.sim.WriteEdgeFromShadow(slot)
		e.selectedEdges = append(e.selectedEdges, id)
	}
	e.events.emit(Event{Type: EventSelectionChange})
}

// SelectedNodes returns the selected node IDs.
func (e *Engine) SelectedNodes() []string {
	out := make([]string, len(e.selectedNodes))
	copy(out, e.selectedNodes)
	return out
}

// SetNodeHovered flips a node's hovered flag, emitting enter/leave events.
func (e *Engine) SetNodeHovered(id string, hovered bool) bool {
	if e.disposed {
		return false
	}
	slot, ok := e.st.NodeSlot(id)
	if !ok {
		return false
	}
	lane := &e.st.NodeAttrs[slot*graphstate.NodeAttrStride+5]
	was := *lane != 0
	if was == hovered {
		return true
	}
	if hovered {
		*lane = 1
		e.events.emit(Event{Type: EventNodeHoverEnter, NodeID: id})
	} else {
		*lane = 0
		e.events.emit(Event{Type: EventNodeHoverLeave, NodeID: id})
	}
	e.sim.WriteNodeFromShadow(slot)
	return true
}

// SetEdgeHovered flips an edge's hovered flag, emitting enter/leave events.
func (e *Engine) SetEdgeHovered(id string, hovered bool) bool {
	if e.disposed {
		return false
	}
	slot, ok := e.st.EdgeSlot(id)
	if !ok {
		return false
	}
	lane := &e.st.EdgeAttrs[slot*graphstate.EdgeAttrStride+5]
	was := *lane != 0
	if was == hovered {
		return true
	}
	if hovered {
		*lane = 1
		e.events.emit(Event{Type: EventEdgeHoverEnter, EdgeID: id})
	} else {
		*lane = 0
		e.events.emit(Event{Type: EventEdgeHoverLeave, EdgeID: id})
	}
	e.sim.WriteEdgeFromShadow(slot)
	return true
}

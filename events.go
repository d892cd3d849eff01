// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// events.go is the facade's event surface: a small synchronous emitter
// dispatching typed events to registered handlers on the main loop.

package heroine

import "time"

// EventType names an engine event.
type EventType string

// Event types emitted by the engine.
const (
	EventGraphLoad   EventType = "graph:load"
	EventGraphMutate EventType = "graph:mutate"

	EventNodeAdd        EventType = "node:add"
	EventNodeRemove     EventType = "node:remove"
	EventNodePin        EventType = "node:pin"
	EventNodeUnpin      EventType = "node:unpin"
	EventNodeDragStart  EventType = "node:dragstart"
	EventNodeDragMove   EventType = "node:dragmove"
	EventNodeDragEnd    EventType = "node:dragend"
	EventNodeHoverEnter EventType = "node:hoverenter"
	EventNodeHoverLeave EventType = "node:hoverleave"

	EventEdgeAdd        EventType = "edge:add"
	EventEdgeRemove     EventType = "edge:remove"
	EventEdgeHoverEnter EventType = "edge:hoverenter"
	EventEdgeHoverLeave EventType = "edge:hoverleave"

	EventSelectionChange EventType = "selection:change"
	EventViewportChange  EventType = "viewport:change"
)

// Event is delivered to handlers registered with On. Only the fields
// relevant to the event type are set.
type Event struct {
	Type      EventType
	Timestamp time.Time

	NodeID string
	EdgeID string

	// Position for drag events.
	X, Y float32

	// Mutation counts for graph:mutate.
	NodesAdded   int
	NodesRemoved int
	EdgesAdded   int
	EdgesRemoved int

	// Scene bounds for graph:load and viewport:change.
	Bounds Bounds
}

// Handler receives engine events. Handlers run synchronously on the caller
// of the mutating API; they must not re-enter the engine.
type Handler func(Event)

// emitter is a slice-per-type handler table.
type emitter struct {
	handlers map[EventType][]Handler
}

func newEmitter() *emitter {
	return &emitter{handlers: make(map[EventType][]Handler)}
}

// on registers a handler and returns an unsubscribe func.
func (e *emitter) on(t EventType, h Handler) func() {
	e.handlers[t] = append(e.handlers[t], h)
	idx := len(e.handlers[t]) - 1
	return func() {
		list := e.handlers[t]
		if idx < len(list) && list[idx] != nil {
			list[idx] = nil
		}
	}
}

// emit dispatches to every live handler of the type.
func (e *emitter) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	for _, h := range e.handlers[ev.Type] {
		if h != nil {
			h(ev)
		}
	}
}

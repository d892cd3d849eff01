// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

package heroine

import "testing"

func TestEmitter(t *testing.T) {
	t.Run("dispatches to registered handler", func(t *testing.T) {
		em := newEmitter()
		var got []Event
		em.on(EventNodeAdd, func(ev Event) { got = append(got, ev) })
		em.emit(Event{Type: EventNodeAdd, NodeID: "a"})

		if len(got) != 1 || got[0].NodeID != "a" {
			t.Fatalf("got %v, want one node:add for a", got)
		}
		if got[0].Timestamp.IsZero() {
			t.Error("timestamp not stamped")
		}
	})

	t.Run("type isolation", func(t *testing.T) {
		em := newEmitter()
		calls := 0
		em.on(EventNodeAdd, func(Event) { calls++ })
		em.emit(Event{Type: EventNodeRemove})
		if calls != 0 {
			t.Errorf("handler fired for foreign type %d times", calls)
		}
	})

	t.Run("multiple handlers", func(t *testing.T) {
		em := newEmitter()
		calls := 0
		em.on(EventGraphMutate, func(Event) { calls++ })
		em.on(EventGraphMutate, func(Event) { calls++ })
		em.emit(Event{Type: EventGraphMutate})
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})

	t.Run("unsubscribe", func(t *testing.T) {
		em := newEmitter()
		calls := 0
		off := em.on(EventEdgeAdd, func(Event) { calls++ })
		off()
		em.emit(Event{Type: EventEdgeAdd})
		if calls != 0 {
			t.Errorf("handler fired after unsubscribe")
		}
	})
}

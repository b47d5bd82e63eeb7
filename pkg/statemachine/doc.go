// Package statemachine provides a small, type-safe transition table for
// modelling entity lifecycles.
//
// Unlike a stateful machine that owns the current state, a Table is
// immutable and shared: entities keep their own state field and ask the
// table where an event leads. This fits persisted aggregates, where the
// current state is loaded from storage and written back after each
// transition.
//
// # Usage
//
//	type Status string
//	type Event string
//
//	var lifecycle = statemachine.MustTable(
//		statemachine.Transition[Status, Event]{From: "pending", Event: "send", To: "sent"},
//		statemachine.Transition[Status, Event]{From: "pending", Event: "fail", To: "failed"},
//	)
//
//	next, err := lifecycle.Next(current, "send")
//	if statemachine.IsNoTransitionAvailableError(err) {
//		// event is not allowed in the current state
//	}
//
// # Error Handling
//
// Next returns *ErrNoTransitionAvailable when the table has no entry for the
// given state/event pair. NewTable returns ErrDuplicateTransition when the
// same state/event pair is declared with two different targets.
package statemachine

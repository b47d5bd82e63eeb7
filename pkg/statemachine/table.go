package statemachine

import "fmt"

// Transition declares that Event moves an entity from From to To.
type Transition[S comparable, E comparable] struct {
	From  S
	Event E
	To    S
}

// Table is an immutable transition lookup safe for concurrent use.
// Uses a nested map for O(1) lookups: [from][event]to
type Table[S comparable, E comparable] struct {
	next map[S]map[E]S
}

// NewTable builds a table from the given transitions.
// Declaring the same from/event pair twice is allowed only when both point to the same target.
func NewTable[S comparable, E comparable](transitions ...Transition[S, E]) (*Table[S, E], error) {
	t := &Table[S, E]{next: make(map[S]map[E]S, len(transitions))}

	for _, tr := range transitions {
		events, ok := t.next[tr.From]
		if !ok {
			events = make(map[E]S)
			t.next[tr.From] = events
		}
		if to, exists := events[tr.Event]; exists && to != tr.To {
			return nil, fmt.Errorf("%w: %v on %v", ErrDuplicateTransition, tr.From, tr.Event)
		}
		events[tr.Event] = tr.To
	}

	return t, nil
}

// MustTable works like NewTable but panics on invalid declarations.
// Intended for package-level lifecycle definitions.
func MustTable[S comparable, E comparable](transitions ...Transition[S, E]) *Table[S, E] {
	t, err := NewTable(transitions...)
	if err != nil {
		panic(err)
	}
	return t
}

// Next returns the state reached by firing event in state from.
func (t *Table[S, E]) Next(from S, event E) (S, error) {
	if to, ok := t.next[from][event]; ok {
		return to, nil
	}
	var zero S
	return zero, NewErrNoTransitionAvailable(fmt.Sprint(from), fmt.Sprint(event))
}

// Can reports whether event is allowed in state from.
func (t *Table[S, E]) Can(from S, event E) bool {
	_, ok := t.next[from][event]
	return ok
}

// Events returns the events accepted in state from, in no particular order.
func (t *Table[S, E]) Events(from S) []E {
	events := make([]E, 0, len(t.next[from]))
	for ev := range t.next[from] {
		events = append(events, ev)
	}
	return events
}

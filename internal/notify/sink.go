// Package notify carries the outbound side of the engine: the typed
// domain notifications produced while a unit of work runs, the sink they
// are appended to, and the dispatcher boundary a separate subsystem
// drains them into after the transaction commits.
//
// The sink is deliberately dumb: an append-only list scoped to one
// request or scan run. Nothing in this package renders or transmits
// anything; failures past the sink belong to the external dispatch
// subsystem.
package notify

import "sync"

// Sink is an append-only collector of outbound events for one unit of
// work. Create one per request or scan run, pass it to the service call,
// and drain it only after the transaction has committed so subscribers
// never hear about effects that were rolled back.
type Sink struct {
	mu     sync.Mutex
	events []Event
}

// NewSink returns an empty sink.
func NewSink() *Sink { return &Sink{} }

// Append adds an event to the sink. Appending never fails.
func (s *Sink) Append(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Drain returns all collected events and clears the sink.
func (s *Sink) Drain() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

// Len returns the number of pending events.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

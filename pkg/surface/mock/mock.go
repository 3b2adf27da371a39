// Package mock provides a test double for the surface.Surface interface.
//
// Use Surface in unit tests to assert which user-visible events a turn
// emitted and their order. All fields are guarded by an internal mutex.
package mock

import (
	"context"
	"sync"
)

// Event records a single emitted surface event.
type Event struct {
	// Name is one of surface.EventTyping, EventSuggest, EventAnswer.
	Name string

	// Typing is the indicator state for is-typing events.
	Typing bool

	// Suggestions is the payload for suggest events.
	Suggestions []string

	// Text is the payload for answer events.
	Text string
}

// Surface is a mock implementation of surface.Surface that records every
// event in order. Set Err to inject delivery failures.
type Surface struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from every method.
	Err error

	// Events holds every recorded event in emission order.
	Events []Event
}

func (s *Surface) Typing(_ context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, Event{Name: "is-typing", Typing: on})
	return s.Err
}

func (s *Surface) Suggest(_ context.Context, suggestions []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, Event{Name: "suggest", Suggestions: suggestions})
	return s.Err
}

func (s *Surface) Answer(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, Event{Name: "answer", Text: text})
	return s.Err
}

// TypingEvents returns the recorded is-typing states in order.
func (s *Surface) TypingEvents() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []bool
	for _, e := range s.Events {
		if e.Name == "is-typing" {
			out = append(out, e.Typing)
		}
	}
	return out
}

// Answers returns the recorded spoken replies in order.
func (s *Surface) Answers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.Events {
		if e.Name == "answer" {
			out = append(out, e.Text)
		}
	}
	return out
}

// Package mock provides a test double for the tokenizer.Service interface.
//
// Use Service in unit tests to feed controlled auxiliary entities and to
// assert restart behaviour without spawning a child process. FireConnected
// invokes the registered connected handler synchronously, letting tests
// drive the language-switch reconnect path deterministically.
package mock

import (
	"context"
	"sync"

	"github.com/sennet-ai/sennet/pkg/tokenizer"
)

// Compile-time check that *Service satisfies [tokenizer.Service].
var _ tokenizer.Service = (*Service)(nil)

// Service is a mock implementation of tokenizer.Service.
type Service struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Entities is returned from SpacyEntities.
	Entities []tokenizer.SpacyEntity

	// EntitiesErr, if non-nil, is returned from SpacyEntities.
	EntitiesErr error

	// RestartErr, if non-nil, is returned from Restart.
	RestartErr error

	// PIDResult is returned from PID.
	PIDResult int

	// --- Recorded calls ---

	// SpacyCalls records every utterance passed to SpacyEntities.
	SpacyCalls []string

	// Restarts records the locale of every Restart invocation.
	Restarts []string

	// Closed reports whether Close was called.
	Closed bool

	onConnected func()
}

func (s *Service) SpacyEntities(_ context.Context, utterance string) ([]tokenizer.SpacyEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SpacyCalls = append(s.SpacyCalls, utterance)
	return s.Entities, s.EntitiesErr
}

func (s *Service) Restart(_ context.Context, locale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Restarts = append(s.Restarts, locale)
	return s.RestartErr
}

func (s *Service) OnConnected(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnected = fn
}

func (s *Service) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PIDResult
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// FireConnected invokes the registered connected handler, simulating a
// successful (re)connect.
func (s *Service) FireConnected() {
	s.mu.Lock()
	fn := s.onConnected
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

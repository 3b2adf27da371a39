// Package mock provides a test double for the brain.Executor interface.
//
// Use Executor in unit tests to script action replies and to assert which
// phrases a turn spoke. Zero values for response fields cause methods to
// return zero values and nil errors; set Err fields to inject failures.
package mock

import (
	"context"
	"sync"

	"github.com/sennet-ai/sennet/pkg/types"
)

// TalkCall records a single invocation of Talk.
type TalkCall struct {
	Phrase     string
	KeepTyping bool
}

// WernickeCall records a single invocation of Wernicke.
type WernickeCall struct {
	Key    string
	Subkey string
	Vars   map[string]string
}

// Executor is a mock implementation of brain.Executor.
type Executor struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// ExecuteResult is returned from Execute. When ExecuteFunc is set it
	// takes precedence.
	ExecuteResult types.BrainResult

	// ExecuteFunc, when non-nil, computes the Execute result per call.
	ExecuteFunc func(result *types.NLUResult) (types.BrainResult, error)

	// ExecuteErr, if non-nil, is returned from Execute.
	ExecuteErr error

	// TalkErr, if non-nil, is returned from Talk.
	TalkErr error

	// SetLangErr, if non-nil, is returned from SetLang.
	SetLangErr error

	// --- Recorded calls ---

	// Executed records every NLUResult passed to Execute.
	Executed []*types.NLUResult

	// Talks records every Talk invocation in order.
	Talks []TalkCall

	// Wernickes records every Wernicke invocation in order.
	Wernickes []WernickeCall

	// Langs records every SetLang invocation.
	Langs []string
}

func (e *Executor) Execute(_ context.Context, result *types.NLUResult) (types.BrainResult, error) {
	e.mu.Lock()
	e.Executed = append(e.Executed, result)
	fn := e.ExecuteFunc
	res, err := e.ExecuteResult, e.ExecuteErr
	e.mu.Unlock()

	if fn != nil {
		return fn(result)
	}
	return res, err
}

func (e *Executor) Talk(_ context.Context, phrase string, keepTyping bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Talks = append(e.Talks, TalkCall{Phrase: phrase, KeepTyping: keepTyping})
	return e.TalkErr
}

// Wernicke returns the key (plus ".subkey" when set) so tests can assert
// which phrase was requested without a phrase table.
func (e *Executor) Wernicke(key, subkey string, vars map[string]string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Wernickes = append(e.Wernickes, WernickeCall{Key: key, Subkey: subkey, Vars: vars})
	if subkey != "" {
		return key + "." + subkey
	}
	return key
}

func (e *Executor) SetLang(lang string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Langs = append(e.Langs, lang)
	return e.SetLangErr
}

// SpokenPhrases returns every phrase passed to Talk, in order.
func (e *Executor) SpokenPhrases() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.Talks))
	for i, t := range e.Talks {
		out[i] = t.Phrase
	}
	return out
}

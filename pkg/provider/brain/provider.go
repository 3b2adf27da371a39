// Package brain defines the Executor interface for skill action backends.
//
// The Brain is the collaborator that actually runs a selected skill action
// and produces the spoken reply. The NLU core hands it a fully resolved
// types.NLUResult and interprets the control flags in the returned
// types.BrainResult (restart, stay-in-loop, next action) to drive its
// sub-state-machines.
//
// Talk and Wernicke exist because the dispatcher itself speaks on several
// terminal branches (unknown intent, out-of-topic, language switch) without
// executing any action. Wernicke is phrase-template lookup by key; its
// phrase tables are opaque to the core.
//
// Implementations must be safe for concurrent use from a single session's
// serialized turn pipeline; they are not required to support concurrent
// Execute calls.
package brain

import (
	"context"

	"github.com/sennet-ai/sennet/pkg/types"
)

// Executor runs skill actions and speaks to the end user.
type Executor interface {
	// Execute runs the skill action selected by result.Classification and
	// returns the action's reply. The returned BrainResult.ExecutionTime
	// must cover only the action's own runtime so callers can attribute
	// latency.
	Execute(ctx context.Context, result *types.NLUResult) (types.BrainResult, error)

	// Talk delivers a spoken phrase to the end user. When keepTyping is
	// false the typing indicator is cleared after the phrase.
	Talk(ctx context.Context, phrase string, keepTyping bool) error

	// Wernicke looks up a phrase template by key (and optional subkey),
	// interpolating vars. The phrase tables are language-specific and
	// follow the executor's current language.
	Wernicke(key, subkey string, vars map[string]string) string

	// SetLang switches the executor's phrase tables and skill config
	// language. Called by the dispatcher during a language switch.
	SetLang(lang string) error
}

// Package tokenizer manages the external tokenization service: a child
// process that hosts spaCy-style auxiliary entity extraction behind a
// line-based TCP socket.
//
// The process is a per-core singleton keyed by PID. It is launched as
// "{binary} {locale}" through a shell, and on a language switch it must be
// killed by process tree — the tokenizer spawns worker subprocesses that
// would otherwise be stranded — before a replacement is spawned for the new
// locale.
//
// The wire protocol is newline-delimited JSON, one request and one response
// per line:
//
//	→ {"method": "get_spacy_entities", "utterance": "..."}
//	← {"entities": [{"entity": "location", "resolution": {"value": "Paris"}}]}
package tokenizer

import "context"

// Resolution is the resolved value of an auxiliary entity.
type Resolution struct {
	Value string `json:"value"`
}

// SpacyEntity is one auxiliary entity returned by the tokenization service.
type SpacyEntity struct {
	// Entity is the entity kind, e.g. "location" or "person".
	Entity string `json:"entity"`

	// Resolution carries the canonical value.
	Resolution Resolution `json:"resolution"`
}

// Service is the tokenization capability the core consumes.
//
// Implementations must be safe for concurrent use; requests may be
// serialized internally.
type Service interface {
	// SpacyEntities extracts auxiliary entities from the utterance.
	SpacyEntities(ctx context.Context, utterance string) ([]SpacyEntity, error)

	// Restart kills the current process tree, spawns a replacement for the
	// given locale, and reconnects in the background. The registered
	// OnConnected handler fires exactly once when the new socket is up.
	// Restart is fire-and-forget past the spawn: a child that never comes
	// up is not retried.
	Restart(ctx context.Context, locale string) error

	// OnConnected replaces the connected handler. The handler is invoked
	// once per successful (re)connect.
	OnConnected(fn func())

	// PID returns the current child process ID, or 0 when not running.
	PID() int

	// Close kills the process tree and closes the socket.
	Close() error
}

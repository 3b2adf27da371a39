// Package ner is the gateway between the dispatcher and entity extraction.
//
// Extraction composes two sources: the main classifier's NER (augmented with
// the skill's own entity definitions read from its config file) and the
// external tokenization service, which contributes spaCy-style proper-noun
// entities. Proper nouns the model was never trained on are injected back
// into the classifier as synonyms — the narrowest intervention that lets the
// model score them — and that registration is idempotent per (entity, value)
// pair.
//
// Tokenization calls go through a circuit breaker: the service is an
// auxiliary enrichment and a turn proceeds with whatever entities were
// recovered, so a dead child process degrades to a skip instead of a
// per-turn timeout.
package ner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/sennet-ai/sennet/internal/resilience"
	"github.com/sennet-ai/sennet/internal/skills"
	"github.com/sennet-ai/sennet/pkg/provider/classifier"
	"github.com/sennet-ai/sennet/pkg/tokenizer"
	"github.com/sennet-ai/sennet/pkg/types"
)

// Error codes surfaced to the user as spoken phrases. The dispatcher keys
// the phrase lookup on the code.
const (
	CodeConfigUnreadable = "random_ner_config_unreadable"
	CodeExtractFailed    = "random_ner_extract_failed"
)

// Kind selects the log channel for a gateway error.
type Kind string

const (
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Error is a gateway failure carrying the log channel, the spoken-phrase
// code, and contextual data.
type Error struct {
	Kind Kind
	Code string
	Data map[string]string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ner: %s (%s): %v", e.Code, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// builtinEntities is the static inventory of built-in entity extractors the
// main classifier activates on load.
var builtinEntities = []string{
	"number",
	"ordinal",
	"percentage",
	"currency",
	"temperature",
	"dimension",
	"age",
	"date",
	"time",
	"duration",
	"email",
	"url",
	"phonenumber",
	"ip",
	"hashtag",
}

// BuiltinEntities returns the built-in entity inventory. The slice is a
// copy; callers may not mutate the inventory.
func BuiltinEntities() []string {
	out := make([]string, len(builtinEntities))
	copy(out, builtinEntities)
	return out
}

// Gateway extracts entities and feeds spaCy proper nouns back into the
// classifier. Safe for concurrent use.
type Gateway struct {
	main    classifier.Provider
	tok     tokenizer.Service
	breaker *resilience.Breaker

	mu   sync.Mutex
	seen map[string]struct{} // registered (entity, value) synonym pairs
}

// New creates a Gateway. breaker may be nil, in which case tokenization
// calls are unguarded.
func New(main classifier.Provider, tok tokenizer.Service, breaker *resilience.Breaker) *Gateway {
	return &Gateway{
		main:    main,
		tok:     tok,
		breaker: breaker,
		seen:    make(map[string]struct{}),
	}
}

// ExtractEntities runs the main classifier's NER over the utterance,
// augmented with the skill-specific entity definitions found in the config
// file at configPath. Failures come back as *Error so the caller can pick
// the matching log channel and spoken phrase.
func (g *Gateway) ExtractEntities(ctx context.Context, lang, configPath, utterance string) ([]types.Entity, error) {
	var skillEntities []classifier.EntitySpec
	if configPath != "" {
		cfg, err := skills.LoadConfig(configPath)
		if err != nil {
			return nil, &Error{
				Kind: KindWarning,
				Code: CodeConfigUnreadable,
				Data: map[string]string{"config": configPath},
				Err:  err,
			}
		}
		skillEntities = cfg.SkillEntities()
	}

	entities, err := g.main.ExtractEntities(ctx, lang, utterance, skillEntities)
	if err != nil {
		return nil, &Error{
			Kind: KindError,
			Code: CodeExtractFailed,
			Data: map[string]string{"utterance": utterance},
			Err:  err,
		}
	}
	return entities, nil
}

// MergeSpacyEntities asks the tokenization service for auxiliary entities
// and registers each one's resolved value as a classifier synonym under
// lang. Registration is idempotent per (entity, value); duplicates are
// skipped. An open breaker or service failure is logged and swallowed —
// the enrichment is best-effort.
func (g *Gateway) MergeSpacyEntities(ctx context.Context, lang, utterance string) {
	var ents []tokenizer.SpacyEntity
	call := func() error {
		var err error
		ents, err = g.tok.SpacyEntities(ctx, utterance)
		return err
	}

	var err error
	if g.breaker != nil {
		err = g.breaker.Do(call)
	} else {
		err = call()
	}
	if err != nil {
		if errors.Is(err, resilience.ErrOpen) {
			slog.Debug("ner: tokenizer breaker open, skipping spaCy merge")
		} else {
			slog.Warn("ner: spaCy entity merge failed", "err", err)
		}
		return
	}

	for _, ent := range ents {
		value := ent.Resolution.Value
		if value == "" {
			continue
		}
		key := ent.Entity + "\x00" + value

		g.mu.Lock()
		if _, dup := g.seen[key]; dup {
			g.mu.Unlock()
			continue
		}
		g.seen[key] = struct{}{}
		g.mu.Unlock()

		if err := g.main.RegisterSynonym(lang, ent.Entity, value, []string{titlecase(value)}); err != nil {
			slog.Warn("ner: synonym registration failed", "entity", ent.Entity, "value", value, "err", err)
			// Allow a retry on the next merge.
			g.mu.Lock()
			delete(g.seen, key)
			g.mu.Unlock()
		}
	}
}

// titlecase uppercases the first letter of every word.
func titlecase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

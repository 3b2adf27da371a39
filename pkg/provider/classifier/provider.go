// Package classifier defines the Provider interface for intent classifier
// backends.
//
// A classifier provider wraps a trained NLU model (intent classification plus
// named-entity recognition) and exposes it as an opaque capability: the core
// never inspects model internals, it only loads model files, classifies
// utterances, and asks for entities. Three independent models are used at
// runtime — the main skills model, the global resolvers model, and the
// skills resolvers model — each held by its own Provider instance.
//
// The one mutation a provider must support after load is RegisterSynonym:
// the NER gateway injects proper nouns the model was never trained on so the
// classifier can score them. Synonym registration is append-only; duplicate
// registrations are benign.
//
// Implementations must be safe for concurrent use. Classification is
// read-only apart from synonym registration.
package classifier

import (
	"context"

	"github.com/sennet-ai/sennet/pkg/types"
)

// IntentNone is the intent a classifier reports when no trained intent
// matches the utterance.
const IntentNone = "None"

// IntentScore pairs a candidate intent with its classification score.
type IntentScore struct {
	// Intent is "{domain}.{skill}.{action}" for the main model and
	// "resolver.{scope}.{leaf}" for resolver models.
	Intent string `json:"intent"`

	// Score is the classifier's confidence in [0, 1].
	Score float64 `json:"score"`
}

// Result is the outcome of classifying one utterance.
type Result struct {
	// Locale is the language the model detected for the utterance,
	// e.g. "en" or "fr".
	Locale string `json:"locale"`

	// Intent is the top-scoring intent, or IntentNone.
	Intent string `json:"intent"`

	// Domain is the domain grouping of the top intent.
	Domain string `json:"domain"`

	// Score is the top intent's score.
	Score float64 `json:"score"`

	// Classifications lists all candidate intents ordered by descending
	// score. The first entry matches Intent/Score.
	Classifications []IntentScore `json:"classifications"`

	// Answers holds the model's dialog answers for "dialog" action types.
	Answers []string `json:"answers,omitempty"`
}

// SlotSpec describes one mandatory slot a skill action declares, as reported
// by the model's slot manager.
type SlotSpec struct {
	// Name is the slot name, e.g. "item".
	Name string `json:"name"`

	// Entity is the entity kind expected to fill the slot.
	Entity string `json:"expected_entity"`

	// Questions are the candidate questions to ask the user for this slot.
	Questions []string `json:"questions"`

	// Suggestions are quick-reply suggestions surfaced with the question.
	Suggestions []string `json:"suggestions,omitempty"`
}

// EntitySpec is a skill-specific entity definition passed to ExtractEntities
// alongside the model's own NER configuration.
type EntitySpec struct {
	// Name is the entity kind.
	Name string `json:"name"`

	// Type is the definition kind ("enum", "regex", "trim").
	Type string `json:"type"`

	// Options maps canonical values to their accepted surface forms for
	// enum entities; regex entities carry the pattern under the "regex" key.
	Options map[string][]string `json:"options,omitempty"`
}

// Provider is the abstraction over one loaded classifier model.
//
// All methods must be safe for concurrent use. RegisterSynonym writes are
// append-only and may interleave with classification.
type Provider interface {
	// Load reads a trained model from path and prepares it for
	// classification. Load must be called before any other method.
	// A missing file surfaces as an error wrapping fs.ErrNotExist so
	// callers can distinguish "never trained" from a corrupt model.
	Load(ctx context.Context, path string) error

	// SetSpellCheck toggles spell checking on utterances before scoring.
	SetSpellCheck(enabled bool)

	// Process classifies the utterance under the given language and returns
	// the full candidate list.
	Process(ctx context.Context, lang, utterance string) (Result, error)

	// RegisterSynonym teaches the model an additional surface form for an
	// entity value under lang. Append-only; duplicates are benign.
	RegisterSynonym(lang, entity, value string, surfaceForms []string) error

	// RegisterBuiltinEntities activates the named built-in entity extractors
	// (numbers, dates, durations, ...) on the model's NER.
	RegisterBuiltinEntities(names []string) error

	// IntentDomain returns the domain an intent belongs to under locale.
	IntentDomain(locale, intent string) (string, error)

	// MandatorySlots returns the mandatory slots the intent's action
	// declares, in declaration order.
	MandatorySlots(locale, intent string) ([]SlotSpec, error)

	// ExtractEntities runs the model's NER over the utterance, augmented
	// with the given skill-specific entity definitions.
	ExtractEntities(ctx context.Context, lang, utterance string, skillEntities []EntitySpec) ([]types.Entity, error)
}

// Package fallback implements the deterministic keyword rule engine used
// when the main classifier reports no intent.
//
// Matching is exact by default: a fallback fires when every one of its words
// appears in the utterance's lowercased whitespace token set, multiplicity
// ignored, with ties broken by declaration order. Exact matching is pure —
// the same utterance and table always produce the same result.
//
// An optional phonetic mode relaxes the per-word test for voice-transcribed
// utterances: a fallback word also counts as present when a token matches it
// by Double Metaphone code overlap and Jaro-Winkler similarity above a
// configurable threshold. Phonetic mode is off unless a threshold is set.
package fallback

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/sennet-ai/sennet/pkg/types"
)

// Fallback is one keyword rule from the language's fallback table.
type Fallback struct {
	// Words must all appear in the utterance for the rule to fire.
	Words []string `json:"words"`

	Domain string `json:"domain"`
	Skill  string `json:"skill"`
	Action string `json:"action"`
}

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold enables phonetic word matching with the given
// minimum Jaro-Winkler score. Pass 0 to keep exact matching only.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// Matcher evaluates fallback rules against utterances. It is read-only
// after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
}

// New returns a Matcher configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match evaluates the fallback table against utterance and returns an
// NLUResult with confidence 1 and no entities for the first rule whose
// words are all present. The second return value is false when no rule
// fired.
func (m *Matcher) Match(utterance string, fallbacks []Fallback) (*types.NLUResult, bool) {
	tokens := tokenSet(utterance)

	for _, fb := range fallbacks {
		if m.allWordsPresent(fb.Words, tokens) {
			return &types.NLUResult{
				Utterance:       utterance,
				CurrentEntities: []types.Entity{},
				Entities:        []types.Entity{},
				Classification: types.Classification{
					Domain:     fb.Domain,
					Skill:      fb.Skill,
					Action:     fb.Action,
					Confidence: 1,
				},
			}, true
		}
	}
	return nil, false
}

// allWordsPresent reports whether every word appears in the token set.
func (m *Matcher) allWordsPresent(words []string, tokens map[string]struct{}) bool {
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		w = strings.ToLower(w)
		if _, ok := tokens[w]; ok {
			continue
		}
		if m.phoneticThreshold > 0 && phoneticPresent(w, tokens, m.phoneticThreshold) {
			continue
		}
		return false
	}
	return true
}

// tokenSet lowercases and splits the utterance on whitespace.
func tokenSet(utterance string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(utterance))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// phoneticPresent reports whether any token sounds like word: the Double
// Metaphone codes must overlap and the Jaro-Winkler similarity must reach
// the threshold.
func phoneticPresent(word string, tokens map[string]struct{}, threshold float64) bool {
	wp, ws := matchr.DoubleMetaphone(word)
	for tok := range tokens {
		tp, ts := matchr.DoubleMetaphone(tok)
		if !codesOverlap(wp, ws, tp, ts) {
			continue
		}
		if matchr.JaroWinkler(word, tok, false) >= threshold {
			return true
		}
	}
	return false
}

// codesOverlap reports whether the two Double Metaphone code pairs share a
// non-empty code.
func codesOverlap(ap, as, bp, bs string) bool {
	for _, a := range [2]string{ap, as} {
		if a == "" {
			continue
		}
		if a == bp || a == bs {
			return true
		}
	}
	return false
}

// Package mock provides a test double for the classifier.Provider interface.
//
// Use Provider in unit tests to feed controlled classifications and entity
// extractions without a live model. Zero values for response fields cause
// methods to return zero values and nil errors; set Err fields to inject
// errors. All recorded-call slices are guarded by an internal mutex.
package mock

import (
	"context"
	"sync"

	"github.com/sennet-ai/sennet/pkg/provider/classifier"
	"github.com/sennet-ai/sennet/pkg/types"
)

// Compile-time check that *Provider satisfies [classifier.Provider].
var _ classifier.Provider = (*Provider)(nil)

// SynonymCall records a single invocation of RegisterSynonym.
type SynonymCall struct {
	Lang         string
	Entity       string
	Value        string
	SurfaceForms []string
}

// ExtractCall records a single invocation of ExtractEntities.
type ExtractCall struct {
	Lang          string
	Utterance     string
	SkillEntities []classifier.EntitySpec
}

// Provider is a mock implementation of classifier.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// LoadErr, if non-nil, is returned from Load.
	LoadErr error

	// ProcessResult is returned from Process. When ProcessFunc is set it
	// takes precedence.
	ProcessResult classifier.Result

	// ProcessFunc, when non-nil, computes the Process result per utterance.
	ProcessFunc func(lang, utterance string) (classifier.Result, error)

	// ProcessErr, if non-nil, is returned from Process.
	ProcessErr error

	// DomainResult is returned from IntentDomain. When DomainFunc is set it
	// takes precedence.
	DomainResult string

	// DomainFunc, when non-nil, computes the IntentDomain result per intent.
	DomainFunc func(locale, intent string) (string, error)

	// SlotsResult is returned from MandatorySlots.
	SlotsResult []classifier.SlotSpec

	// SlotsErr, if non-nil, is returned from MandatorySlots.
	SlotsErr error

	// EntitiesResult is returned from ExtractEntities. When EntitiesFunc is
	// set it takes precedence.
	EntitiesResult []types.Entity

	// EntitiesFunc, when non-nil, computes the extraction result per call.
	EntitiesFunc func(lang, utterance string) ([]types.Entity, error)

	// EntitiesErr, if non-nil, is returned from ExtractEntities.
	EntitiesErr error

	// SynonymErr, if non-nil, is returned from RegisterSynonym.
	SynonymErr error

	// --- Recorded calls ---

	// LoadedPaths records every path passed to Load.
	LoadedPaths []string

	// SpellCheck records the last SetSpellCheck value.
	SpellCheck bool

	// SynonymCalls records every RegisterSynonym invocation.
	SynonymCalls []SynonymCall

	// BuiltinNames records the names passed to RegisterBuiltinEntities.
	BuiltinNames []string

	// ExtractCalls records every ExtractEntities invocation.
	ExtractCalls []ExtractCall

	// Processed records every utterance passed to Process.
	Processed []string
}

func (p *Provider) Load(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LoadedPaths = append(p.LoadedPaths, path)
	return p.LoadErr
}

func (p *Provider) SetSpellCheck(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SpellCheck = enabled
}

func (p *Provider) Process(_ context.Context, lang, utterance string) (classifier.Result, error) {
	p.mu.Lock()
	p.Processed = append(p.Processed, utterance)
	fn := p.ProcessFunc
	res, err := p.ProcessResult, p.ProcessErr
	p.mu.Unlock()

	if fn != nil {
		return fn(lang, utterance)
	}
	return res, err
}

func (p *Provider) RegisterSynonym(lang, entity, value string, surfaceForms []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynonymCalls = append(p.SynonymCalls, SynonymCall{
		Lang:         lang,
		Entity:       entity,
		Value:        value,
		SurfaceForms: surfaceForms,
	})
	return p.SynonymErr
}

func (p *Provider) RegisterBuiltinEntities(names []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.BuiltinNames = append(p.BuiltinNames, names...)
	return nil
}

func (p *Provider) IntentDomain(locale, intent string) (string, error) {
	p.mu.Lock()
	fn := p.DomainFunc
	res := p.DomainResult
	p.mu.Unlock()

	if fn != nil {
		return fn(locale, intent)
	}
	return res, nil
}

func (p *Provider) MandatorySlots(_, _ string) ([]classifier.SlotSpec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.SlotsResult, p.SlotsErr
}

func (p *Provider) ExtractEntities(_ context.Context, lang, utterance string, skillEntities []classifier.EntitySpec) ([]types.Entity, error) {
	p.mu.Lock()
	p.ExtractCalls = append(p.ExtractCalls, ExtractCall{Lang: lang, Utterance: utterance, SkillEntities: skillEntities})
	fn := p.EntitiesFunc
	res, err := p.EntitiesResult, p.EntitiesErr
	p.mu.Unlock()

	if fn != nil {
		return fn(lang, utterance)
	}
	return res, err
}

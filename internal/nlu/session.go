// Package nlu implements the dispatch state machine: one utterance in, one
// decision out. The Session composes the three classifier models, the NER
// gateway, the conversation store, the fallback matcher, and the Brain
// executor into a deterministic pipeline whose behaviour depends on prior
// turns.
//
// A Session is single-conversation: calls to Process are serialized by an
// internal mutex and callers must queue concurrent utterances. Reentrant
// dispatch (action loops and language switches re-entering the pipeline)
// is expressed as a trampoline — handlers return a redispatch utterance
// that the top-level Process loop consumes instead of recursing.
package nlu

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sennet-ai/sennet/internal/conversation"
	"github.com/sennet-ai/sennet/internal/fallback"
	"github.com/sennet-ai/sennet/internal/models"
	"github.com/sennet-ai/sennet/internal/ner"
	"github.com/sennet-ai/sennet/internal/observe"
	"github.com/sennet-ai/sennet/internal/skills"
	"github.com/sennet-ai/sennet/pkg/provider/brain"
	"github.com/sennet-ai/sennet/pkg/provider/classifier"
	"github.com/sennet-ai/sennet/pkg/surface"
	"github.com/sennet-ai/sennet/pkg/tokenizer"
	"github.com/sennet-ai/sennet/pkg/types"
)

// Phrase keys spoken by the dispatcher on its terminal branches. The Brain's
// Wernicke tables resolve them to language-specific phrases.
const (
	phraseErrors           = "random_errors"
	phraseUnknownIntents   = "random_unknown_intents"
	phraseLangNotSupported = "random_language_not_supported"
	phraseLangSwitch       = "random_language_switch"
	phraseOutOfTopic       = "random_context_out_of_topic"
)

// contextBiasThreshold is the minimum score an alternate classification
// needs to be re-picked in favour of the active context.
const contextBiasThreshold = 0.6

// maxRedispatch bounds the trampoline so a misbehaving skill config cannot
// spin the pipeline forever.
const maxRedispatch = 8

// pickPhrase selects one candidate question. Replaced in tests for
// determinism.
var pickPhrase = func(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[rand.Intn(len(candidates))]
}

// Reporter receives anonymised classification reports. Implemented by
// internal/telemetry; a nil Reporter disables reporting.
type Reporter interface {
	Report(ctx context.Context, utterance, lang string, c types.Classification)
}

// Config carries the session's static parameters.
type Config struct {
	// Lang is the starting locale, e.g. "en".
	Lang string

	// SupportedLangs is the deployment's locale whitelist. Empty means any
	// locale the classifier detects is accepted.
	SupportedLangs []string

	// SkillsRoot is the root of the on-disk skill tree.
	SkillsRoot string

	// DataRoot is the root of the per-language data files (answers,
	// global resolvers, fallbacks).
	DataRoot string
}

// Deps are the session's injected collaborators.
type Deps struct {
	Models       *models.Loader
	NER          *ner.Gateway
	Conversation *conversation.Store
	Fallback     *fallback.Matcher
	Brain        brain.Executor
	Tokenizer    tokenizer.Service
	Surface      surface.Surface
}

// Option configures a Session.
type Option func(*Session)

// WithMetrics attaches metric instruments to the session.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithTelemetry attaches an anonymous classification reporter.
func WithTelemetry(r Reporter) Option {
	return func(s *Session) { s.telemetry = r }
}

// Session owns all mutable dispatch state for one conversation.
type Session struct {
	cfg  Config
	deps Deps

	metrics   *observe.Metrics
	telemetry Reporter

	// mu serializes Process; one turn runs at a time.
	mu   sync.Mutex
	lang string

	// fbMu guards the hot-reloadable fallback table separately so the
	// config watcher can swap it mid-turn.
	fbMu      sync.RWMutex
	fallbacks []fallback.Fallback
}

// NewSession creates a Session. All Deps fields must be non-nil.
func NewSession(cfg Config, deps Deps, opts ...Option) *Session {
	s := &Session{
		cfg:  cfg,
		deps: deps,
		lang: cfg.Lang,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Lang returns the session's current locale.
func (s *Session) Lang() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// SetFallbacks swaps the fallback table. Called by the config watcher on
// hot reload; safe concurrently with Process.
func (s *Session) SetFallbacks(fbs []fallback.Fallback) {
	s.fbMu.Lock()
	s.fallbacks = fbs
	s.fbMu.Unlock()
}

func (s *Session) fallbackTable() []fallback.Fallback {
	s.fbMu.RLock()
	defer s.fbMu.RUnlock()
	return s.fallbacks
}

// ─── Top-level dispatch ──────────────────────────────────────────────────────

// Process runs one conversational turn. The outcome is either a full NLU
// result, the empty sentinel (question asked, awaiting the next user
// input), or a terminal message such as "Intent not found".
func (s *Session) Process(ctx context.Context, utterance string) (types.ProcessOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	log := slog.With("turn_id", uuid.NewString())

	if !s.deps.Models.IsReady() {
		s.speak(ctx, phraseErrors, "", nil)
		log.Warn("nlu: rejecting turn, models not loaded")
		s.recordTurn(ctx, "rejected", start)
		return types.ProcessOutcome{}, ErrNotReady
	}

	current := utterance
	for hop := 0; hop < maxRedispatch; hop++ {
		out, redispatch, err := s.dispatch(ctx, log, current)
		if err != nil {
			s.recordTurn(ctx, "error", start)
			return out, err
		}
		if redispatch != "" {
			log.Info("nlu: redispatching", "utterance", redispatch)
			current = redispatch
			continue
		}
		out.Timing.ProcessingTime = time.Since(start)
		out.Timing.NLUProcessingTime = out.Timing.ProcessingTime - out.Timing.ExecutionTime
		s.recordTurn(ctx, outcomeLabel(out), start)
		return out, nil
	}

	log.Error("nlu: redispatch limit reached, abandoning turn", "utterance", current)
	_ = s.deps.Surface.Typing(ctx, false)
	s.recordTurn(ctx, "abandoned", start)
	return types.ProcessOutcome{Timing: types.TurnTiming{ProcessingTime: time.Since(start)}}, nil
}

// SwitchLanguage forces a locale change outside the classification path,
// re-dispatching utterance once the tokenizer reconnects.
func (s *Session) SwitchLanguage(ctx context.Context, utterance, locale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.switchLanguage(ctx, slog.Default(), utterance, locale)
}

// dispatch runs one hop of the pipeline. A non-empty redispatch return
// re-enters the pipeline with that utterance on the caller's trampoline.
func (s *Session) dispatch(ctx context.Context, log *slog.Logger, utterance string) (types.ProcessOutcome, string, error) {
	_ = s.deps.Surface.Typing(ctx, true)

	s.deps.NER.MergeSpacyEntities(ctx, s.lang, utterance)

	if s.deps.Conversation.HasActiveContext() {
		ac := s.deps.Conversation.ActiveContext()
		if ac.IsInActionLoop {
			return s.handleActionLoop(ctx, log, utterance)
		}
		if len(ac.SlotOrder) > 0 {
			out, err := s.handleSlotFilling(ctx, log, utterance)
			return out, "", err
		}
	}

	return s.classify(ctx, log, utterance)
}

// classify runs the main classifier and the post-classification pipeline:
// context-biased re-pick, language checks, fallback, slot-filling routing,
// and the normal execution path.
func (s *Session) classify(ctx context.Context, log *slog.Logger, utterance string) (types.ProcessOutcome, string, error) {
	main := s.deps.Models.Main()

	inferStart := time.Now()
	res, err := main.Process(ctx, s.lang, utterance)
	if s.metrics != nil {
		s.metrics.RecordClassification(ctx, string(models.KindMain), time.Since(inferStart).Seconds())
	}
	if err != nil {
		_ = s.deps.Surface.Typing(ctx, false)
		return types.ProcessOutcome{}, "", fmt.Errorf("nlu: classify utterance: %w", err)
	}

	intent, score := res.Intent, res.Score
	domain := res.Domain

	// Context-biased re-pick: an alternate classification scoring above the
	// threshold wins when it belongs to the active context's skill.
	if s.deps.Conversation.HasActiveContext() {
		ac := s.deps.Conversation.ActiveContext()
		for _, cand := range res.Classifications {
			if cand.Score <= contextBiasThreshold {
				continue
			}
			candDomain, derr := main.IntentDomain(res.Locale, cand.Intent)
			if derr != nil {
				continue
			}
			candSkill, _, ok := splitSkillAction(cand.Intent, candDomain)
			if !ok {
				continue
			}
			if conversation.ContextName(candDomain, candSkill) == ac.Name {
				intent, score, domain = cand.Intent, cand.Score, candDomain
				log.Info("nlu: re-picked classification for active context",
					"intent", intent, "score", score)
				break
			}
		}
	}

	if !s.langSupported(res.Locale) {
		s.speak(ctx, phraseLangNotSupported, "", nil)
		log.Warn("nlu: unsupported language", "locale", res.Locale)
		return types.ProcessOutcome{}, "", ErrUnsupportedLanguage
	}
	if res.Locale != "" && res.Locale != s.lang {
		s.switchLanguage(ctx, log, utterance, res.Locale)
		return types.ProcessOutcome{}, "", nil
	}

	var nluResult *types.NLUResult
	fromFallback := false
	if intent == classifier.IntentNone {
		fb, ok := s.deps.Fallback.Match(utterance, s.fallbackTable())
		if !ok {
			s.speak(ctx, phraseUnknownIntents, "", nil)
			log.Info("nlu: intent not found", "utterance", utterance)
			if s.metrics != nil {
				s.metrics.IntentNotFound.Add(ctx, 1)
			}
			return types.ProcessOutcome{Message: MessageIntentNotFound}, "", nil
		}
		nluResult = fb
		fromFallback = true
		log.Info("nlu: fallback matched",
			"domain", fb.Classification.Domain,
			"skill", fb.Classification.Skill,
			"action", fb.Classification.Action)
		if s.metrics != nil {
			s.metrics.FallbackHits.Add(ctx, 1)
		}
	} else {
		skillName, actionName, ok := splitSkillAction(intent, domain)
		if !ok {
			_ = s.deps.Surface.Typing(ctx, false)
			return types.ProcessOutcome{}, "", fmt.Errorf("nlu: malformed intent %q", intent)
		}
		nluResult = &types.NLUResult{
			Utterance: utterance,
			Answers:   res.Answers,
			Classification: types.Classification{
				Domain:     domain,
				Skill:      skillName,
				Action:     actionName,
				Confidence: score,
			},
		}
		log.Info("nlu: intent found", "intent", intent, "score", score)
	}

	if s.telemetry != nil {
		go s.telemetry.Report(context.WithoutCancel(ctx), utterance, s.lang, nluResult.Classification)
	}

	cls := nluResult.Classification
	configPath := skills.ConfigPath(s.cfg.SkillsRoot, cls.Domain, cls.Skill, s.lang)
	nluResult.ConfigDataFilePath = configPath

	// NER failure does not fail the turn — continue with what was recovered.
	// Fallback classifications stay entity-free.
	if !fromFallback {
		nerStart := time.Now()
		entities, nerErr := s.deps.NER.ExtractEntities(ctx, s.lang, configPath, utterance)
		if s.metrics != nil {
			s.metrics.NERDuration.Record(ctx, time.Since(nerStart).Seconds())
		}
		if nerErr != nil {
			s.reportNERError(ctx, log, nerErr)
		}
		nluResult.CurrentEntities = entities
		nluResult.Entities = entities
	}

	intentName := cls.Skill + "." + cls.Action
	routed, err := s.routeSlotFilling(ctx, log, utterance, nluResult)
	if err != nil {
		return types.ProcessOutcome{}, "", err
	}
	if routed {
		return types.ProcessOutcome{}, "", nil
	}

	if s.deps.Conversation.HasActiveContext() {
		if ac := s.deps.Conversation.ActiveContext(); len(ac.Slots) > 0 {
			out, err := s.handleSlotFilling(ctx, log, utterance)
			return out, "", err
		}
	}

	return s.executeTurn(ctx, log, utterance, intentName, nluResult)
}

// executeTurn is the normal path: install the context, run the Brain, and
// rotate to the next action when the reply chains one.
func (s *Session) executeTurn(ctx context.Context, log *slog.Logger, utterance, intentName string, nluResult *types.NLUResult) (types.ProcessOutcome, string, error) {
	cls := nluResult.Classification
	newName := conversation.ContextName(cls.Domain, cls.Skill)

	if ac := s.deps.Conversation.ActiveContext(); ac != nil && ac.Name != newName {
		s.cleanContext(ctx)
	}

	isLoop, nextAction := s.actionTraits(nluResult.ConfigDataFilePath, cls.Action)
	s.setContext(ctx, &conversation.ActiveContext{
		Name:               newName,
		Lang:               s.lang,
		Intent:             intentName,
		Domain:             cls.Domain,
		ActionName:         cls.Action,
		OriginalUtterance:  utterance,
		ConfigDataFilePath: nluResult.ConfigDataFilePath,
		Slots:              map[string]*conversation.Slot{},
		IsInActionLoop:     isLoop,
		NextAction:         nextAction,
		Entities:           nluResult.CurrentEntities,
		CurrentEntities:    nluResult.CurrentEntities,
	})

	ac := s.deps.Conversation.ActiveContext()
	nluResult.CurrentEntities = ac.CurrentEntities
	nluResult.Entities = ac.Entities
	nluResult.Slots = s.deps.Conversation.SlotValues()

	processed, err := s.execute(ctx, log, nluResult)
	if err != nil {
		return types.ProcessOutcome{}, "", err
	}

	if processed.NextAction != nil {
		s.rotateContext(ctx, ac, cls.Skill, processed.NextAction)
	}

	return types.ProcessOutcome{
		Result: nluResult,
		Timing: types.TurnTiming{ExecutionTime: processed.ExecutionTime},
	}, "", nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// execute runs the Brain and wraps failures. The typing indicator is
// cleared on failure; the conversation store is never touched here.
func (s *Session) execute(ctx context.Context, log *slog.Logger, nluResult *types.NLUResult) (types.BrainResult, error) {
	start := time.Now()
	processed, err := s.deps.Brain.Execute(ctx, nluResult)
	if s.metrics != nil {
		s.metrics.BrainDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		log.Error("nlu: brain execution failed",
			"domain", nluResult.Classification.Domain,
			"skill", nluResult.Classification.Skill,
			"action", nluResult.Classification.Action,
			"err", err)
		_ = s.deps.Surface.Typing(ctx, false)
		if s.metrics != nil {
			s.metrics.ExecutorErrors.Add(ctx, 1)
		}
		return types.BrainResult{}, &ExecutorError{Err: err}
	}
	return processed, nil
}

// rotateContext advances the active context to the reply's next action.
func (s *Session) rotateContext(ctx context.Context, ac *conversation.ActiveContext, skill string, next *types.NextAction) {
	s.setContext(ctx, &conversation.ActiveContext{
		Name:               ac.Name,
		Lang:               s.lang,
		Intent:             skill + "." + next.Name,
		Domain:             ac.Domain,
		ActionName:         next.Name,
		OriginalUtterance:  ac.OriginalUtterance,
		ConfigDataFilePath: ac.ConfigDataFilePath,
		Slots:              map[string]*conversation.Slot{},
		IsInActionLoop:     next.Loop,
		Entities:           ac.CurrentEntities,
		CurrentEntities:    ac.CurrentEntities,
	})
}

// actionTraits reads the action's loop/next-action declaration from the
// skill config. A missing or unreadable config yields no traits.
func (s *Session) actionTraits(configPath, action string) (isLoop bool, next *types.NextAction) {
	cfg, err := skills.LoadConfig(configPath)
	if err != nil {
		return false, nil
	}
	actionCfg, ok := cfg.Actions[action]
	if !ok {
		return false, nil
	}
	if actionCfg.NextAction != "" {
		loop := false
		if nextCfg, ok := cfg.Actions[actionCfg.NextAction]; ok {
			loop = nextCfg.Loop != nil
		}
		next = &types.NextAction{Name: actionCfg.NextAction, Loop: loop}
	}
	return actionCfg.Loop != nil, next
}

// speak delivers a Wernicke phrase and clears the typing indicator.
func (s *Session) speak(ctx context.Context, key, subkey string, vars map[string]string) {
	phrase := s.deps.Brain.Wernicke(key, subkey, vars)
	if err := s.deps.Brain.Talk(ctx, phrase, false); err != nil {
		slog.Warn("nlu: talk failed", "key", key, "err", err)
	}
}

// reportNERError logs a gateway failure on its declared channel, counts it,
// and speaks the phrase keyed by its code.
func (s *Session) reportNERError(ctx context.Context, log *slog.Logger, err error) {
	kind, code := ner.KindError, "unknown"
	if nerErr, ok := err.(*ner.Error); ok {
		kind, code = nerErr.Kind, nerErr.Code
	}
	if kind == ner.KindWarning {
		log.Warn("nlu: entity extraction degraded", "code", code, "err", err)
	} else {
		log.Error("nlu: entity extraction failed", "code", code, "err", err)
	}
	if s.metrics != nil {
		s.metrics.RecordNERError(ctx, string(kind), code)
	}
	s.speak(ctx, code, "", nil)
}

// setContext installs a context and keeps the active-context gauge in step.
func (s *Session) setContext(ctx context.Context, ac *conversation.ActiveContext) {
	had := s.deps.Conversation.HasActiveContext()
	s.deps.Conversation.SetActiveContext(ac)
	if !had && s.metrics != nil {
		s.metrics.ActiveContexts.Add(ctx, 1)
	}
}

// cleanContext clears the context and keeps the active-context gauge in step.
func (s *Session) cleanContext(ctx context.Context) {
	if s.deps.Conversation.HasActiveContext() && s.metrics != nil {
		s.metrics.ActiveContexts.Add(ctx, -1)
	}
	s.deps.Conversation.CleanActiveContext()
}

func (s *Session) langSupported(locale string) bool {
	if locale == "" || len(s.cfg.SupportedLangs) == 0 {
		return true
	}
	for _, l := range s.cfg.SupportedLangs {
		if l == locale {
			return true
		}
	}
	return false
}

func (s *Session) recordTurn(ctx context.Context, outcome string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordTurn(ctx, outcome, time.Since(start).Seconds())
	}
}

func outcomeLabel(out types.ProcessOutcome) string {
	switch {
	case out.Result != nil:
		return "result"
	case out.Message != "":
		return "message"
	default:
		return "empty"
	}
}

// splitSkillAction extracts the skill and action from an intent. Intents are
// "{domain}.{skill}.{action}" or "{skill}.{action}" with the domain known
// from the model's domain mapping.
func splitSkillAction(intent, domain string) (skill, action string, ok bool) {
	rest := strings.TrimPrefix(intent, domain+".")
	parts := strings.Split(rest, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// hasEntity reports whether any entity in the list has the given name.
func hasEntity(entities []types.Entity, name string) bool {
	for _, e := range entities {
		if e.Name == name {
			return true
		}
	}
	return false
}

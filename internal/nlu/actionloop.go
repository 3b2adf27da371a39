package nlu

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sennet-ai/sennet/internal/models"
	"github.com/sennet-ai/sennet/internal/skills"
	"github.com/sennet-ai/sennet/pkg/types"
)

// handleActionLoop drives one turn of an action loop. The loop's expected
// item decides whether the utterance belongs to the loop: an entity of the
// declared kind, or a resolver intent classified by the matching resolver
// model. Anything else is off topic — the context is cleared and the
// utterance goes back through the dispatcher.
func (s *Session) handleActionLoop(ctx context.Context, log *slog.Logger, utterance string) (types.ProcessOutcome, string, error) {
	ac := s.deps.Conversation.ActiveContext()
	skill := skillFromContext(ac)

	nluResult := &types.NLUResult{
		Utterance:          utterance,
		Entities:           ac.Entities,
		Slots:              s.deps.Conversation.SlotValues(),
		ConfigDataFilePath: ac.ConfigDataFilePath,
		Classification: types.Classification{
			Domain:     ac.Domain,
			Skill:      skill,
			Action:     ac.ActionName,
			Confidence: 1,
		},
	}

	nerStart := time.Now()
	entities, err := s.deps.NER.ExtractEntities(ctx, s.lang, ac.ConfigDataFilePath, utterance)
	if s.metrics != nil {
		s.metrics.NERDuration.Record(ctx, time.Since(nerStart).Seconds())
	}
	if err != nil {
		s.reportNERError(ctx, log, err)
	}
	nluResult.CurrentEntities = entities

	cfg, err := skills.LoadConfig(ac.ConfigDataFilePath)
	if err != nil {
		log.Error("nlu: skill config unreadable during action loop",
			"config", ac.ConfigDataFilePath, "err", err)
		s.cleanContext(ctx)
		_ = s.deps.Surface.Typing(ctx, false)
		return types.ProcessOutcome{}, "", nil
	}
	actionCfg, ok := cfg.Actions[ac.ActionName]
	if !ok || actionCfg.Loop == nil {
		log.Error("nlu: active context in loop without a loop declaration",
			"context", ac.Name, "action", ac.ActionName)
		s.cleanContext(ctx)
		_ = s.deps.Surface.Typing(ctx, false)
		return types.ProcessOutcome{}, "", nil
	}

	item := actionCfg.Loop.ExpectedItem
	matched := false
	switch {
	case item.Type == "entity":
		matched = hasEntity(entities, item.Name)
	case strings.Contains(item.Type, "resolver"):
		matched = s.resolveLoopItem(ctx, log, utterance, skill, item, cfg, nluResult)
	}

	if !matched {
		log.Info("nlu: utterance off topic during action loop", "context", ac.Name)
		s.speak(ctx, phraseOutOfTopic, "", nil)
		s.cleanContext(ctx)
		return types.ProcessOutcome{}, utterance, nil
	}

	processed, err := s.execute(ctx, log, nluResult)
	if err != nil {
		// The loop aborts silently; the user re-drives it.
		return types.ProcessOutcome{}, "", nil
	}

	switch {
	case processed.Core.Restart:
		original := ac.OriginalUtterance
		s.cleanContext(ctx)
		return types.ProcessOutcome{}, original, nil
	case processed.NextAction == nil && !processed.Core.IsInActionLoop:
		s.cleanContext(ctx)
	case !processed.Core.IsInActionLoop:
		s.rotateContext(ctx, ac, skill, processed.NextAction)
	}

	return types.ProcessOutcome{
		Result: nluResult,
		Timing: types.TurnTiming{ExecutionTime: processed.ExecutionTime},
	}, "", nil
}

// resolveLoopItem classifies the utterance with the resolver model the
// expected item names and, on a matching resolver intent, writes the
// resolved {name, value} pair onto the result.
func (s *Session) resolveLoopItem(ctx context.Context, log *slog.Logger, utterance, skill string, item skills.ExpectedItem, cfg *skills.Config, nluResult *types.NLUResult) bool {
	var prov = s.deps.Models.Skills()
	scope := skill
	kind := models.KindSkillsResolvers
	if item.Type == "global_resolver" {
		prov = s.deps.Models.Global()
		scope = "global"
		kind = models.KindGlobalResolvers
	}

	inferStart := time.Now()
	res, err := prov.Process(ctx, s.lang, utterance)
	if s.metrics != nil {
		s.metrics.RecordClassification(ctx, string(kind), time.Since(inferStart).Seconds())
	}
	if err != nil {
		log.Warn("nlu: resolver classification failed", "scope", scope, "err", err)
		return false
	}

	prefix := "resolver." + scope + "."
	if !strings.HasPrefix(res.Intent, prefix) {
		return false
	}
	leaf := strings.TrimPrefix(res.Intent, prefix)

	value, ok := s.lookupResolverValue(log, item, cfg, leaf)
	if !ok {
		return false
	}

	resolved := types.Resolver{Name: item.Name, Value: value}
	nluResult.CurrentResolvers = append(nluResult.CurrentResolvers, resolved)
	nluResult.Resolvers = append(nluResult.Resolvers, resolved)
	log.Info("nlu: resolver matched", "name", item.Name, "value", value)
	return true
}

// lookupResolverValue resolves an intent leaf to its value through either
// the skill-local resolvers map or the on-disk global resolver file.
func (s *Session) lookupResolverValue(log *slog.Logger, item skills.ExpectedItem, cfg *skills.Config, leaf string) (string, bool) {
	if item.Type == "global_resolver" {
		resolver, err := skills.LoadGlobalResolver(s.cfg.DataRoot, s.lang, item.Name)
		if err != nil {
			log.Warn("nlu: global resolver unreadable", "name", item.Name, "err", err)
			return "", false
		}
		ri, ok := resolver.Intents[leaf]
		if !ok {
			return "", false
		}
		return ri.Value, true
	}

	resolver, ok := cfg.Resolvers[item.Name]
	if !ok {
		return "", false
	}
	ri, ok := resolver.Intents[leaf]
	if !ok {
		return "", false
	}
	return ri.Value, true
}

package nlu

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sennet-ai/sennet/internal/conversation"
	"github.com/sennet-ai/sennet/pkg/types"
)

// routeSlotFilling decides whether slot filling should begin after a fresh
// classification. When the intent's action declares mandatory slots, the
// active context is seeded with them and the first question is asked; the
// turn is consumed and the dispatcher short-circuits.
//
// The just-received utterance is deliberately not used to pre-fill the
// seeded slots — filling starts on the next turn.
func (s *Session) routeSlotFilling(ctx context.Context, log *slog.Logger, utterance string, nluResult *types.NLUResult) (bool, error) {
	cls := nluResult.Classification
	intent := cls.Skill + "." + cls.Action

	specs, err := s.deps.Models.Main().MandatorySlots(s.lang, intent)
	if err != nil {
		log.Warn("nlu: mandatory slot lookup failed", "intent", intent, "err", err)
		return false, nil
	}
	if len(specs) == 0 {
		return false, nil
	}

	slots := make(map[string]*conversation.Slot, len(specs))
	order := make([]string, 0, len(specs))
	for _, spec := range specs {
		slots[spec.Name] = &conversation.Slot{
			Name:           spec.Name,
			ExpectedEntity: spec.Entity,
			PickedQuestion: pickPhrase(spec.Questions),
			Suggestions:    spec.Suggestions,
		}
		order = append(order, spec.Name)
	}

	s.setContext(ctx, &conversation.ActiveContext{
		Name:               conversation.ContextName(cls.Domain, cls.Skill),
		Lang:               s.lang,
		Intent:             intent,
		Domain:             cls.Domain,
		ActionName:         cls.Action,
		OriginalUtterance:  utterance,
		ConfigDataFilePath: nluResult.ConfigDataFilePath,
		Slots:              slots,
		SlotOrder:          order,
		NextAction:         &types.NextAction{Name: cls.Action},
		Entities:           nluResult.CurrentEntities,
		CurrentEntities:    nluResult.CurrentEntities,
	})

	first := s.deps.Conversation.GetNotFilledSlot()
	if first == nil {
		return false, nil
	}
	s.askSlotQuestion(ctx, log, first)
	return true, nil
}

// handleSlotFilling consumes one turn of an in-flight slot-filling dialog:
// fill a slot and ask the next question, bail out of topic, or complete and
// execute the pending action.
func (s *Session) handleSlotFilling(ctx context.Context, log *slog.Logger, utterance string) (types.ProcessOutcome, error) {
	ac := s.deps.Conversation.ActiveContext()
	if ac == nil || ac.NextAction == nil {
		_ = s.deps.Surface.Typing(ctx, false)
		return types.ProcessOutcome{}, nil
	}

	nerStart := time.Now()
	entities, err := s.deps.NER.ExtractEntities(ctx, s.lang, ac.ConfigDataFilePath, utterance)
	if s.metrics != nil {
		s.metrics.NERDuration.Record(ctx, time.Since(nerStart).Seconds())
	}
	if err != nil {
		s.reportNERError(ctx, log, err)
	}

	if slot := s.deps.Conversation.GetNotFilledSlot(); slot != nil && hasEntity(entities, slot.ExpectedEntity) {
		s.deps.Conversation.SetSlots(s.lang, entities)
		if next := s.deps.Conversation.GetNotFilledSlot(); next != nil {
			s.askSlotQuestion(ctx, log, next)
			return types.ProcessOutcome{}, nil
		}
	}

	if !s.deps.Conversation.AreSlotsAllFilled() {
		log.Info("nlu: utterance off topic during slot filling", "context", ac.Name)
		s.speak(ctx, phraseOutOfTopic, "", nil)
		s.cleanContext(ctx)
		return types.ProcessOutcome{}, nil
	}

	// All slots filled: run the pending action from the utterance that
	// activated the context.
	skill := skillFromContext(ac)
	nluResult := &types.NLUResult{
		Utterance:          ac.OriginalUtterance,
		CurrentEntities:    ac.CurrentEntities,
		Entities:           ac.Entities,
		Slots:              s.deps.Conversation.SlotValues(),
		ConfigDataFilePath: ac.ConfigDataFilePath,
		Classification: types.Classification{
			Domain:     ac.Domain,
			Skill:      skill,
			Action:     ac.NextAction.Name,
			Confidence: 1,
		},
	}
	s.cleanContext(ctx)

	processed, err := s.execute(ctx, log, nluResult)
	if err != nil {
		return types.ProcessOutcome{}, err
	}
	return types.ProcessOutcome{
		Result: nluResult,
		Timing: types.TurnTiming{ExecutionTime: processed.ExecutionTime},
	}, nil
}

// askSlotQuestion surfaces a slot's suggestions and speaks its question.
func (s *Session) askSlotQuestion(ctx context.Context, log *slog.Logger, slot *conversation.Slot) {
	if len(slot.Suggestions) > 0 {
		if err := s.deps.Surface.Suggest(ctx, slot.Suggestions); err != nil {
			log.Warn("nlu: suggest failed", "slot", slot.Name, "err", err)
		}
	}
	if s.metrics != nil {
		s.metrics.SlotQuestions.Add(ctx, 1)
	}
	if err := s.deps.Brain.Talk(ctx, slot.PickedQuestion, false); err != nil {
		log.Warn("nlu: slot question not delivered", "slot", slot.Name, "err", err)
	}
}

// skillFromContext recovers the skill name from "{domain}.{skill}".
func skillFromContext(ac *conversation.ActiveContext) string {
	return strings.TrimPrefix(ac.Name, ac.Domain+".")
}

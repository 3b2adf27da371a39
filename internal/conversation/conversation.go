// Package conversation holds the dialog's short-term memory: the single
// active context linking successive turns to the same skill, and its slot
// ledger.
//
// The store enforces the context lifecycle: at most one context is active;
// installing a context with a different name discards the current one, while
// re-installing the same name merges entities and slots but preserves the
// utterance that originally activated the context. Slots are tracked in
// declaration order so the next question asked is always the first unfilled
// slot.
//
// The store is mutated only by the dispatcher and its sub-state-machines,
// which are serialized per session; the internal mutex makes reads from
// health checks and tests safe regardless.
package conversation

import (
	"fmt"
	"sync"

	"github.com/sennet-ai/sennet/pkg/types"
)

// Slot is one tracked skill slot inside the active context.
type Slot struct {
	// Name is the slot name from the skill config.
	Name string

	// ExpectedEntity is the entity kind that fills this slot.
	ExpectedEntity string

	// PickedQuestion is the question chosen to ask the user for this slot.
	PickedQuestion string

	// Suggestions are quick replies surfaced with the question.
	Suggestions []string

	// IsFilled reports whether an entity satisfied the slot.
	IsFilled bool

	// Value is the entity that filled the slot.
	Value types.Entity
}

// ActiveContext is the conversation's short-term memory for one skill.
type ActiveContext struct {
	// Name is "{domain}.{skill}".
	Name string

	// Lang is the locale the context was created under. It always equals
	// the dispatcher's current language; switching language clears the
	// context.
	Lang string

	// Intent is "{skill}.{action}".
	Intent string

	// Domain is the skill's domain.
	Domain string

	// ActionName is the current action within the skill.
	ActionName string

	// OriginalUtterance is the utterance that first activated this context,
	// used to restart the cycle.
	OriginalUtterance string

	// ConfigDataFilePath is the skill's per-language config file.
	ConfigDataFilePath string

	// Slots is the slot ledger, keyed by slot name.
	Slots map[string]*Slot

	// SlotOrder preserves slot declaration order for question sequencing.
	SlotOrder []string

	// IsInActionLoop reports whether the current action holds the turn in
	// a loop.
	IsInActionLoop bool

	// NextAction is the follow-up action to rotate to, if any.
	NextAction *types.NextAction

	// Entities are all entities accumulated across the context's turns.
	Entities []types.Entity

	// CurrentEntities are the entities of the latest turn only.
	CurrentEntities []types.Entity
}

// ContextName derives the context name for a classification.
func ContextName(domain, skill string) string {
	return fmt.Sprintf("%s.%s", domain, skill)
}

// Store holds at most one active context.
type Store struct {
	mu     sync.Mutex
	active *ActiveContext
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// HasActiveContext reports whether a context is active.
func (s *Store) HasActiveContext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// ActiveContext returns the active context, or nil when none is active.
// The returned pointer is the live context; callers run serialized per
// session and may mutate it through the store's methods only.
func (s *Store) ActiveContext() *ActiveContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActiveContext installs ctx. When a context with the same name is
// already active, the existing context is updated in place — slots,
// entities, action, and next action — while OriginalUtterance is preserved.
// A different name discards the current context first.
func (s *Store) SetActiveContext(ctx *ActiveContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil || s.active.Name != ctx.Name {
		s.active = ctx
		return
	}

	// Same context — merge, preserving the activating utterance.
	cur := s.active
	cur.Lang = ctx.Lang
	cur.Intent = ctx.Intent
	cur.ActionName = ctx.ActionName
	cur.ConfigDataFilePath = ctx.ConfigDataFilePath
	cur.IsInActionLoop = ctx.IsInActionLoop
	cur.NextAction = ctx.NextAction
	cur.CurrentEntities = ctx.CurrentEntities
	cur.Entities = append(cur.Entities, ctx.CurrentEntities...)

	for _, name := range ctx.SlotOrder {
		if _, ok := cur.Slots[name]; !ok {
			cur.Slots[name] = ctx.Slots[name]
			cur.SlotOrder = append(cur.SlotOrder, name)
		}
	}
}

// CleanActiveContext clears the active context.
func (s *Store) CleanActiveContext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
}

// SetSlots records every entity whose name matches a slot's expected entity,
// marking those slots filled. Entities that match no slot are ignored.
func (s *Store) SetSlots(lang string, entities []types.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return
	}
	for _, slot := range s.active.Slots {
		for _, ent := range entities {
			if ent.Name != slot.ExpectedEntity {
				continue
			}
			slot.Value = ent
			slot.IsFilled = true
			break
		}
	}
	s.active.Lang = lang
}

// GetNotFilledSlot returns the first unfilled slot in declaration order,
// or nil when every slot is filled (or no context is active).
func (s *Store) GetNotFilledSlot() *Slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return nil
	}
	for _, name := range s.active.SlotOrder {
		if slot := s.active.Slots[name]; slot != nil && !slot.IsFilled {
			return slot
		}
	}
	return nil
}

// AreSlotsAllFilled reports whether every slot of the active context is
// filled. An empty ledger counts as filled.
func (s *Store) AreSlotsAllFilled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return true
	}
	for _, slot := range s.active.Slots {
		if !slot.IsFilled {
			return false
		}
	}
	return true
}

// SlotValues converts the active context's ledger to the wire shape carried
// on an NLUResult. Returns nil when no context or no slots.
func (s *Store) SlotValues() map[string]types.SlotValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil || len(s.active.Slots) == 0 {
		return nil
	}
	out := make(map[string]types.SlotValue, len(s.active.Slots))
	for name, slot := range s.active.Slots {
		out[name] = types.SlotValue{
			Entity:   slot.ExpectedEntity,
			Value:    slot.Value,
			IsFilled: slot.IsFilled,
		}
	}
	return out
}

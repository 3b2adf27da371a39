// Package types defines the shared types used across all Sennet packages.
//
// These types form the lingua franca between the classifier provider, the NER
// gateway, the conversation store, the Brain executor, and the dispatcher.
// They are intentionally minimal — each package defines its own domain types,
// but cross-cutting data structures live here to avoid circular imports.
package types

import "time"

// Span marks the character range an entity occupies inside the raw utterance.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Entity is a single named entity extracted from an utterance.
type Entity struct {
	// Name is the entity kind (e.g. "number", "product", "city").
	Name string `json:"entity"`

	// Value is the canonical value the extractor resolved the surface form to.
	Value string `json:"value"`

	// RawText is the exact substring of the utterance the entity was found in.
	RawText string `json:"raw_text"`

	// Span locates RawText inside the utterance.
	Span Span `json:"span"`

	// Resolution carries extractor-specific structured detail (unit, grain,
	// normalised value). May be nil.
	Resolution map[string]any `json:"resolution,omitempty"`
}

// Resolver is a discrete meaning label attached to an utterance, e.g. an
// affirmation/denial answer resolved during an action loop.
type Resolver struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SlotValue is the filled state of one skill slot inside an NLUResult.
type SlotValue struct {
	// Entity is the entity kind the slot expects.
	Entity string `json:"entity"`

	// Value is the entity that filled the slot.
	Value Entity `json:"value"`

	// IsFilled reports whether the slot has been satisfied.
	IsFilled bool `json:"is_filled"`
}

// Classification identifies the skill action chosen for an utterance.
type Classification struct {
	Domain string `json:"domain"`
	Skill  string `json:"skill"`
	Action string `json:"action"`

	// Confidence is in [0, 1]. It is exactly 1 whenever the classification
	// was not produced by the main classifier (fallback matches, action
	// loops, completed slot filling).
	Confidence float64 `json:"confidence"`
}

// NLUResult is the artifact handed to the Brain executor and returned to the
// caller of Process for one conversational turn.
type NLUResult struct {
	// Utterance is the raw user string for this turn.
	Utterance string `json:"utterance"`

	// CurrentEntities are the entities present in the just-received utterance.
	CurrentEntities []Entity `json:"current_entities"`

	// Entities are the entities inherited from the active context plus the
	// current ones.
	Entities []Entity `json:"entities"`

	// CurrentResolvers are the resolvers found in the current utterance.
	CurrentResolvers []Resolver `json:"current_resolvers"`

	// Resolvers are the inherited plus current resolvers.
	Resolvers []Resolver `json:"resolvers"`

	// Slots maps slot name to its filled state. Nil when the selected action
	// declares no slots.
	Slots map[string]SlotValue `json:"slots,omitempty"`

	// ConfigDataFilePath points at the skill's per-language config file.
	// Opaque to the core; the Brain passes it to the skill action.
	ConfigDataFilePath string `json:"config_data_file_path"`

	// Answers are the dialog answers produced by the classifier for "dialog"
	// action types.
	Answers []string `json:"answers,omitempty"`

	// Classification is the selected skill action.
	Classification Classification `json:"classification"`
}

// TurnTiming attributes latency for one completed Process call.
type TurnTiming struct {
	// ProcessingTime is measured from Process entry to return.
	ProcessingTime time.Duration `json:"processing_time"`

	// ExecutionTime is the portion spent inside the Brain executor.
	ExecutionTime time.Duration `json:"execution_time"`

	// NLUProcessingTime is ProcessingTime minus ExecutionTime.
	NLUProcessingTime time.Duration `json:"nlu_processing_time"`
}

// NextAction describes the follow-up action a skill config or Brain reply
// chains after the current one.
type NextAction struct {
	// Name is the action name inside the same skill.
	Name string `json:"name"`

	// Loop reports whether the next action declares an action loop.
	Loop bool `json:"loop"`
}

// BrainCore carries the control flags a skill action returns to steer the
// dispatcher's sub-state-machines.
type BrainCore struct {
	// Restart asks the dispatcher to clear the context and re-run the turn
	// from the utterance that originally activated it.
	Restart bool `json:"restart"`

	// IsInActionLoop reports whether the action wants to stay in its loop.
	IsInActionLoop bool `json:"is_in_action_loop"`
}

// BrainResult is the executor's reply for one executed skill action.
type BrainResult struct {
	// ExecutionTime is how long the skill action ran.
	ExecutionTime time.Duration `json:"execution_time"`

	// Classification echoes the classification the action was executed with.
	Classification Classification `json:"classification"`

	// NextAction, when non-nil, rotates the active context to a follow-up
	// action of the same skill.
	NextAction *NextAction `json:"next_action,omitempty"`

	// Core carries the action's control flags.
	Core BrainCore `json:"core"`

	// Utterance echoes the utterance the action was executed for.
	Utterance string `json:"utterance"`

	// ConfigDataFilePath echoes the skill config path.
	ConfigDataFilePath string `json:"config_data_file_path"`

	// Slots echoes the slot ledger the action received.
	Slots map[string]SlotValue `json:"slots,omitempty"`

	// Answer is the spoken reply produced by the action, if any.
	Answer string `json:"answer,omitempty"`
}

// ProcessOutcome is the union returned by a Process call: a full result, an
// empty turn (question asked, awaiting the next user input), or a terminal
// message such as "Intent not found".
type ProcessOutcome struct {
	// Result is non-nil when the turn produced a full NLU result.
	Result *NLUResult `json:"result,omitempty"`

	// Message is set on terminal branches that end without a result, e.g.
	// "Intent not found".
	Message string `json:"message,omitempty"`

	// Timing is populated on every non-rejected return.
	Timing TurnTiming `json:"timing"`
}

// Empty reports whether the outcome is the "turn consumed, await next user
// input" sentinel.
func (o ProcessOutcome) Empty() bool {
	return o.Result == nil && o.Message == ""
}

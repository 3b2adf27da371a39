// Package surface defines the event surface between the core and the end
// user's client.
//
// The surface is deliberately tiny: the dispatcher emits a typing indicator
// while a turn is in flight, quick-reply suggestions during slot filling,
// and the spoken reply itself. Delivery is best-effort — a slow or absent
// client must never block or fail a turn, so implementations should drop
// events rather than apply backpressure.
package surface

import "context"

// Event names emitted on the surface wire. EventUtterance is the one inbound
// event: the client's text for the next turn.
const (
	EventTyping    = "is-typing"
	EventSuggest   = "suggest"
	EventAnswer    = "answer"
	EventUtterance = "utterance"
)

// Surface streams user-visible events to the connected client.
//
// Implementations must be safe for concurrent use. All methods are
// best-effort: an error means the event could not be handed to the
// transport, not that the user failed to see it.
type Surface interface {
	// Typing turns the client's typing indicator on or off.
	Typing(ctx context.Context, on bool) error

	// Suggest offers quick-reply suggestions, typically alongside a slot
	// question.
	Suggest(ctx context.Context, suggestions []string) error

	// Answer delivers a spoken reply.
	Answer(ctx context.Context, text string) error
}

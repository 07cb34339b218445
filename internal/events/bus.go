// Package events implements an in-process publish/subscribe bus.
//
// Publishing never aborts on a failing handler. Every subscribed handler
// runs and its result is collected, so one misbehaving listener can not
// hide another one's outcome.
package events

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Well known event names.
const (
	// UserLoggedIn fires after a successful authentication.
	UserLoggedIn = "user.logged_in"

	// GroupCreated fires when a group record is created during reconciliation.
	GroupCreated = "group.created"

	// UserJoinedGroup fires when a user gains a group membership.
	UserJoinedGroup = "user.joined_group"

	// UserLeftGroup fires when a user loses a group membership.
	UserLeftGroup = "user.left_group"
)

// Payload carries the event data to the handlers.
type Payload struct {
	Login string
	Group string

	// Extra holds event specific values.
	Extra map[string]interface{}
}

// Handler consumes one event.
type Handler func(p Payload) error

// Outcome is the result of one handler run.
type Outcome struct {
	Handler string
	Err     error
}

type subscription struct {
	name string
	fn   Handler
}

// Bus dispatches events to subscribed handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]subscription),
	}
}

// Subscribe registers a named handler for an event.
// The handler name shows up in the published outcomes and the logs.
func (b *Bus) Subscribe(event, handlerName string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[event] = append(b.handlers[event], subscription{name: handlerName, fn: fn})
}

// Publish runs every handler subscribed to the event and returns all their
// outcomes. A handler error never stops the remaining handlers.
func (b *Bus) Publish(event string, p Payload) []Outcome {
	b.mu.RLock()
	subs := b.handlers[event]
	b.mu.RUnlock()

	outcomes := make([]Outcome, 0, len(subs))

	for _, sub := range subs {
		outcomes = append(outcomes, Outcome{
			Handler: sub.name,
			Err:     sub.fn(p),
		})
	}

	return outcomes
}

// ReportOutcomes logs every outcome of a published event uniformly.
// Failing handlers log at error level, the rest at debug.
func ReportOutcomes(event string, outcomes []Outcome) {
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			log.Error().Err(outcome.Err).Str("event", event).Str("handler", outcome.Handler).
				Msg("event handler failed")

			continue
		}

		log.Debug().Str("event", event).Str("handler", outcome.Handler).Msg("event handler finished")
	}
}

// Package eventhooks receives directory lifecycle event deliveries.
//
// The directory verifies the endpoint with a GET challenge handshake and
// afterwards posts batches of events. Every event is dispatched by its
// event type through an explicit handler registry.
package eventhooks

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/irvingleonard/go-okta-client/internal/config"
	"github.com/irvingleonard/go-okta-client/internal/sync"
	"github.com/irvingleonard/go-okta-client/internal/web/handler"
)

const (
	// Path is where the directory delivers event hooks.
	Path = "/eventhooks"

	// verificationHeader carries the challenge during endpoint verification.
	verificationHeader = "x-okta-verification-challenge"

	// targetTypeUser marks the user entry in an event's target list.
	targetTypeUser = "User"

	// EventUserCreated is the lifecycle event fired for new directory users.
	EventUserCreated = "user.lifecycle.create"
)

// ErrOverlappingTargets is returned when an event carries two targets of
// the same type. The payload is ambiguous and must not be half-processed.
var ErrOverlappingTargets = errors.New("event carries overlapping targets")

// Target is one affected object of an event.
type Target struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	AlternateID string `json:"alternateId"`
	DisplayName string `json:"displayName"`
}

// Event is one directory event inside a delivery.
type Event struct {
	Type    string   `json:"eventType"`
	UUID    string   `json:"uuid"`
	Targets []Target `json:"target"`
}

// TargetsByType indexes the targets, failing on duplicates.
func (e *Event) TargetsByType() (map[string]Target, error) {
	indexed := make(map[string]Target, len(e.Targets))

	for _, target := range e.Targets {
		if _, exists := indexed[target.Type]; exists {
			return nil, ErrOverlappingTargets
		}

		indexed[target.Type] = target
	}

	return indexed, nil
}

// delivery is the posted hook body.
type delivery struct {
	EventType string `json:"eventType"`
	Data      struct {
		Events []Event `json:"events"`
	} `json:"data"`
}

// HandlerFunc processes one event.
type HandlerFunc func(ctx context.Context, event Event) error

type namedHandler struct {
	name string
	fn   HandlerFunc
}

// Service is the event hook endpoint.
type Service struct {
	handler.Service
	registry    map[string][]namedHandler
	syncService *sync.Service
}

// Handler is the event hook handler instance.
var Handler = Service{}

// Init registers the hook routes and the built-in lifecycle handlers.
// syncService may be nil when the directory is unconfigured, deliveries
// are then acknowledged without local processing.
func (s *Service) Init(app *fiber.App, cfg *config.Config, syncService *sync.Service) error {
	if app == nil || cfg == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
	}

	s.registry = make(map[string][]namedHandler)
	s.syncService = syncService

	if syncService != nil {
		s.Register(EventUserCreated, "refresh_created_user", s.refreshCreatedUser)
	}

	app.Get(Path, s.Verify)
	app.Post(Path, s.Receive)

	return nil
}

// Register adds a handler for an event type.
func (s *Service) Register(eventType, name string, fn HandlerFunc) {
	s.registry[eventType] = append(s.registry[eventType], namedHandler{name: name, fn: fn})
}

// Verify answers the endpoint verification handshake by echoing the
// challenge header.
func (s *Service) Verify(c *fiber.Ctx) error {
	challenge := c.Get(verificationHeader)
	if challenge == "" {
		return fiber.ErrBadRequest
	}

	return c.JSON(fiber.Map{"verification": challenge})
}

// Receive processes one delivery and acknowledges it without a body.
// Handler failures are logged but never fail the delivery, the directory
// would otherwise retry the whole batch.
func (s *Service) Receive(c *fiber.Ctx) error {
	var body delivery
	if err := c.BodyParser(&body); err != nil {
		log.Warn().Err(err).Msg("undecodable event hook delivery")

		return fiber.ErrBadRequest
	}

	deliveryID := uuid.NewString()

	for i := range body.Data.Events {
		s.dispatch(c.UserContext(), deliveryID, &body.Data.Events[i])
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// dispatch runs every registered handler for the event.
// One failing handler never stops the remaining ones.
func (s *Service) dispatch(ctx context.Context, deliveryID string, event *Event) {
	handlers := s.registry[event.Type]
	if len(handlers) == 0 {
		log.Debug().Str("delivery", deliveryID).Str("event_type", event.Type).
			Msg("no handler for event type")

		return
	}

	for _, h := range handlers {
		if err := h.fn(ctx, *event); err != nil {
			log.Error().Err(err).Str("delivery", deliveryID).
				Str("event_type", event.Type).Str("handler", h.name).
				Msg("event hook handler failed")

			continue
		}

		log.Info().Str("delivery", deliveryID).Str("event_type", event.Type).
			Str("handler", h.name).Msg("event processed")
	}
}

// refreshCreatedUser materializes a local record for a freshly created
// directory user.
func (s *Service) refreshCreatedUser(ctx context.Context, event Event) error {
	targets, err := event.TargetsByType()
	if err != nil {
		return err
	}

	target, ok := targets[targetTypeUser]
	if !ok || target.AlternateID == "" {
		return errors.New("event has no user target")
	}

	_, err = s.syncService.RefreshUser(ctx, target.AlternateID, true)

	return err
}

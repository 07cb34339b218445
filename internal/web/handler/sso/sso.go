// Package sso handles the SAML single sign-on round trip: redirecting to
// the identity provider and consuming the posted assertion.
package sso

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/irvingleonard/go-okta-client/internal/auth"
	"github.com/irvingleonard/go-okta-client/internal/config"
	"github.com/irvingleonard/go-okta-client/internal/db/models"
	"github.com/irvingleonard/go-okta-client/internal/saml"
	"github.com/irvingleonard/go-okta-client/internal/web/handler"
	"github.com/irvingleonard/go-okta-client/internal/web/session"
)

const (
	// LoginPath starts a login at the identity provider.
	LoginPath = "/saml/login"

	// ACSPath receives the assertion posted back by the identity provider.
	ACSPath = "/saml/acs"
)

// Service is the single sign-on handler.
type Service struct {
	handler.Service
	cfg          *config.Config
	provider     *saml.Provider
	orchestrator *auth.Service
}

// Handler is the single sign-on handler instance.
var Handler = Service{}

// Init registers the single sign-on routes.
// provider may be nil when SAML is not configured, the routes then answer
// with 404.
func (s *Service) Init(app *fiber.App, cfg *config.Config, provider *saml.Provider, orchestrator *auth.Service) error {
	if app == nil || cfg == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.provider = provider
	s.orchestrator = orchestrator

	app.Get(LoginPath, s.Login)
	app.Post(ACSPath, s.ACS)

	return nil
}

// Login redirects the browser to the identity provider.
// The next url travels in the RelayState and comes back with the assertion.
func (s *Service) Login(c *fiber.Ctx) error {
	if s.provider == nil {
		return fiber.ErrNotFound
	}

	next := c.Query("next")
	if !isSafeNextURL(next) {
		next = s.provider.DefaultNextURL()
	}

	authURL, err := s.provider.BuildAuthURL(next)
	if err != nil {
		log.Error().Err(err).Msg("failed to build idp redirect")

		return fiber.ErrInternalServerError
	}

	return c.Redirect(authURL, fiber.StatusFound)
}

// ACS consumes the assertion, authenticates the principal and starts the
// session.
func (s *Service) ACS(c *fiber.Ctx) error {
	if s.provider == nil {
		return fiber.ErrNotFound
	}

	encodedResponse := c.FormValue("SAMLResponse")
	if encodedResponse == "" {
		return fiber.ErrBadRequest
	}

	identity, err := s.provider.ParseResponse(encodedResponse)
	if err != nil {
		log.Warn().Err(err).Msg("assertion rejected")

		return fiber.ErrUnauthorized
	}

	principal, err := s.orchestrator.Authenticate(context.Background(), identity.Login, identity.Attributes)
	if err != nil {
		// the generic rejection, details stay in the log
		return fiber.ErrUnauthorized
	}

	if err = s.startSession(c, principal); err != nil {
		log.Error().Err(err).Str("user", principal.Login).Msg("failed to start session")

		return fiber.ErrInternalServerError
	}

	next := c.FormValue("RelayState")
	if !isSafeNextURL(next) {
		next = s.provider.DefaultNextURL()
	}

	return c.Redirect(next, fiber.StatusFound)
}

func (s *Service) startSession(c *fiber.Ctx, principal *models.User) error {
	sessionID, err := session.GenerateSessionID()
	if err != nil {
		return err
	}

	userSession := &session.Data{User: *principal}
	if err = userSession.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		return err
	}

	cookieSettings := &fiber.Cookie{
		Name:     "session",
		Value:    sessionID,
		MaxAge:   int(s.cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	if s.cfg.DevMode {
		cookieSettings.Secure = false
	}

	c.Cookie(cookieSettings)

	return nil
}

// isSafeNextURL only allows local absolute paths as redirect targets.
func isSafeNextURL(next string) bool {
	return next != "" && strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//")
}

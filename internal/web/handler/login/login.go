// Package login renders the login page and handles local password logins.
// Single sign-on logins go through the saml handler instead.
package login

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/irvingleonard/go-okta-client/internal/config"
	"github.com/irvingleonard/go-okta-client/internal/db/models"
	"github.com/irvingleonard/go-okta-client/internal/web/handler"
	"github.com/irvingleonard/go-okta-client/internal/web/session"
)

const (
	// Path is the path to the login page.
	Path = "/login"
)

// Service is the login handler service.
type Service struct {
	handler.Service
	cfg        *config.Config
	db         *gorm.DB
	ssoEnabled bool
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New("app or db is nil")
	}

	s.db = db
	s.cfg = cfg
	s.ssoEnabled = cfg.SAML.MetadataURL != "" || cfg.SAML.MetadataFile != ""

	// register routes
	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, s.Get)
		router.Post(handler.RouterRootPath, s.Post)
	})

	return nil
}

// Get handles the login page rendering.
func (s *Service) Get(c *fiber.Ctx) error {
	return c.Render("login", fiber.Map{
		"local_db_enabled": true,
		"sso_enabled":      s.ssoEnabled,
	})
}

type credentials struct {
	Login    string `form:"login"    validate:"required"`
	Password string `form:"password" validate:"required"`
}

var validate = validator.New()

// Post handles the local login form submission.
func (s *Service) Post(c *fiber.Ctx) error {
	creds := new(credentials)

	if err := c.BodyParser(creds); err != nil {
		return err
	}

	if err := validate.Struct(creds); err != nil {
		return s.renderError(c, "Invalid login or password")
	}

	// find user in db
	var dbUser models.User
	result := s.db.Where("login = ?", creds.Login).First(&dbUser)
	if result.Error != nil {
		return s.renderError(c, "Invalid login or password")
	}

	// check if user is active
	if !dbUser.IsActive {
		return s.renderError(c, "Account is inactive")
	}

	// check if password matches
	if !dbUser.VerifyPassword(creds.Password) {
		return s.renderError(c, "Invalid login or password")
	}

	sessionID, err := session.GenerateSessionID()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session ID")

		return s.renderError(c, "Internal server error")
	}

	userSession := &session.Data{
		User: dbUser,
	}

	if err = userSession.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to write session")

		return s.renderError(c, "Internal server error")
	}

	// set login cookie
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

	return c.Redirect("/dashboard")
}

func (s *Service) renderError(c *fiber.Ctx, message string) error {
	return c.Render("login", fiber.Map{
		"local_db_enabled": true,
		"sso_enabled":      s.ssoEnabled,
		"error":            message,
	})
}

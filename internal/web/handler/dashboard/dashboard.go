// Package dashboard renders the landing page with the signed-in user's
// profile and group memberships.
package dashboard

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/irvingleonard/go-okta-client/internal/config"
	"github.com/irvingleonard/go-okta-client/internal/db/controller/user"
	"github.com/irvingleonard/go-okta-client/internal/db/models"
	"github.com/irvingleonard/go-okta-client/internal/web/handler"
)

const (
	// Path is the path to the dashboard page.
	Path = handler.RootPath + "dashboard"

	// TemplateName is the name of the dashboard template.
	TemplateName = "dashboard"
)

// Service is the dashboard handler service.
type Service struct {
	handler.Service
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the dashboard handler.
var Handler = Service{}

// Init initializes the dashboard handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New("app or db is nil")
	}

	s.cfg = cfg
	s.db = db

	app.Get(Path, s.Get)

	return nil
}

// Get renders the dashboard for the current user.
func (s *Service) Get(c *fiber.Ctx) error {
	current, ok := c.Locals("CurrentUser").(models.User)
	if !ok || current.Login == "" {
		return c.Redirect("/login")
	}

	// reload with memberships, the session copy may be stale
	dbUser, err := user.Get(s.db, current.Login)
	if err != nil {
		return err
	}

	return c.Render(TemplateName, fiber.Map{
		"Title":  s.cfg.Title,
		"User":   dbUser,
		"Groups": dbUser.Groups,
	})
}

package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/irvingleonard/go-okta-client/internal/web/handler/eventhooks"
	"github.com/irvingleonard/go-okta-client/internal/web/handler/login"
	"github.com/irvingleonard/go-okta-client/internal/web/handler/sso"
	"github.com/irvingleonard/go-okta-client/internal/web/session"
)

// AuthMiddleware is a Fiber middleware that checks for user authentication.
func AuthMiddleware(c *fiber.Ctx) error {
	var (
		isLoginPage   = isLoginPage(c)
		sessDataValid bool
	)

	originalURL := strings.ToLower(c.OriginalURL())
	if strings.HasPrefix(originalURL, "/static") || isPublicPath(originalURL) {
		return c.Next()
	}

	// get session cookie
	loginCookie := c.Cookies("session")

	// if no session cookie, redirect to login page
	if loginCookie == "" && !isLoginPage {
		return c.Redirect(login.Path)
	}

	// check session validity
	sessData := new(session.Data)
	_ = sessData.Read(loginCookie)

	// valid data in session
	if sessData.User.Login != "" {
		sessDataValid = true
		// Add the current user to locals for template access
		c.Locals("CurrentUser", sessData.User)
	}

	if sessDataValid && isLoginPage {
		return c.Redirect("/dashboard")
	}

	return c.Next()
}

// isPublicPath lists the routes the identity provider, the directory and
// the load balancer reach without a session: the SSO round trip, the event
// hooks and the health check.
func isPublicPath(originalURL string) bool {
	for _, prefix := range []string{sso.LoginPath, sso.ACSPath, eventhooks.Path, "/logout", CheckAlivePath} {
		if strings.HasPrefix(originalURL, prefix) {
			return true
		}
	}

	return false
}

// isLoginPage checks if the current request is for the login page.
func isLoginPage(c *fiber.Ctx) bool {
	originalURL := strings.ToLower(c.OriginalURL())
	return strings.HasPrefix(originalURL, login.Path)
}

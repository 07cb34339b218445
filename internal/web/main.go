// Package web wires the fiber application: routing, templates, the access
// log and the authentication middleware.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/irvingleonard/go-okta-client/internal/auth"
	"github.com/irvingleonard/go-okta-client/internal/config"
	fiberlogger "github.com/irvingleonard/go-okta-client/internal/logger/adapter/fiber"
	"github.com/irvingleonard/go-okta-client/internal/saml"
	syncpkg "github.com/irvingleonard/go-okta-client/internal/sync"
	"github.com/irvingleonard/go-okta-client/internal/web/handler/dashboard"
	"github.com/irvingleonard/go-okta-client/internal/web/handler/eventhooks"
	"github.com/irvingleonard/go-okta-client/internal/web/handler/login"
	"github.com/irvingleonard/go-okta-client/internal/web/handler/logout"
	"github.com/irvingleonard/go-okta-client/internal/web/handler/sso"
)

// CheckAlivePath is the load balancer health check route.
const CheckAlivePath = "/checkalive"

// Dependencies carries the services the handlers need.
type Dependencies struct {
	SAMLProvider *saml.Provider // nil disables single sign-on
	Orchestrator *auth.Service
	SyncService  *syncpkg.Service // nil disables directory driven hooks
}

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail first, so
	// the load balancer can drain this instance.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: waiting %d seconds before stopping",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB, deps Dependencies) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	httpFS := http.FS(templateEmbedFS{embeddedTemplates})
	templateEngine := html.NewFileSystem(httpFS, ".gohtml")

	// in debug mode, use local filesystem for templates
	if cfg.DevMode {
		templateEngine = html.New("./internal/web/templates", ".gohtml")
		templateEngine.ShouldReload = true

		log.Warn().Msg("debug mode enabled: using local filesystem for templates")
	}

	// create fiber app
	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
			Views:          templateEngine,
		},
	)

	// access logging
	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:        cfg.Log,
		CheckAliveURI: CheckAlivePath,
	}))

	// session based auth middleware
	app.Use(AuthMiddleware)

	// init web service
	service := &Service{
		cfg: cfg,
		App: app,
		db:  db,
	}
	service.alive.Store(true)

	// health check for load balancers, fails during graceful shutdown
	app.Get(CheckAlivePath, func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.SendString("OK")
	})

	// init handlers
	if err := login.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to init login handler")
	}

	logout.Handler.Init(app, cfg)

	if err := sso.Handler.Init(app, cfg, deps.SAMLProvider, deps.Orchestrator); err != nil {
		log.Fatal().Err(err).Msg("failed to init sso handler")
	}

	if err := eventhooks.Handler.Init(app, cfg, deps.SyncService); err != nil {
		log.Fatal().Err(err).Msg("failed to init event hook handler")
	}

	if err := dashboard.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to init dashboard handler")
	}

	// redirect root to dashboard
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/dashboard")
	})

	return service
}

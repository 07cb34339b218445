// Package daemon assembles the application: database, directory client,
// sync stack, SAML provider and the web service.
package daemon

import (
	"fmt"

	"github.com/gofiber/storage"
	sessionmemory "github.com/gofiber/storage/memory"
	sessionmysql "github.com/gofiber/storage/mysql"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/irvingleonard/go-okta-client/internal/auth"
	"github.com/irvingleonard/go-okta-client/internal/config"
	"github.com/irvingleonard/go-okta-client/internal/db/dsn"
	"github.com/irvingleonard/go-okta-client/internal/db/models"
	"github.com/irvingleonard/go-okta-client/internal/events"
	"github.com/irvingleonard/go-okta-client/internal/groups"
	"github.com/irvingleonard/go-okta-client/internal/okta"
	"github.com/irvingleonard/go-okta-client/internal/saml"
	syncpkg "github.com/irvingleonard/go-okta-client/internal/sync"
	"github.com/irvingleonard/go-okta-client/internal/web"
	"github.com/irvingleonard/go-okta-client/internal/web/session"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
}

// Start starts the Daemon's web service and blocks until it has shut
// down gracefully.
func (d *Daemon) Start() error {
	go d.webService.WaitShutdown()

	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// OpenDB opens the configured database and migrates the schema.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case "postgres":
		dialector = gormpostgres.Open(dsn.Create(cfg))
	case "sqlite":
		dialector = gormsqlite.Open(cfg.DB.Name)
	default:
		dialector = gormmysql.Open(dsn.Create(cfg))
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.UserGroup{},
	); err != nil {
		return nil, err
	}

	return db, nil
}

// NewDirectoryStack builds the directory client and the sync services.
// The returned client is nil when no directory credentials are configured.
func NewDirectoryStack(cfg *config.Config, db *gorm.DB) (*okta.Client, *syncpkg.Service, *groups.Reconciler, *events.Bus) {
	bus := events.NewBus()
	groups.NewRoleDeriver(db, cfg.Okta.SuperUserGroups, cfg.Okta.StaffUserGroups).Register(bus)

	reconciler := groups.NewReconciler(db, bus)

	if !cfg.Okta.Configured() {
		log.Warn().Msg("no directory credentials configured, running assertion-only")

		return nil, nil, reconciler, bus
	}

	directory := okta.New(cfg.Okta)

	return directory, syncpkg.NewService(db, directory, reconciler), reconciler, bus
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db, err := OpenDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	seed(cfg, db)

	// Initialize fiber session store
	session.Init(sessionStorage(cfg))

	directory, syncService, reconciler, bus := NewDirectoryStack(cfg, db)

	orchestrator := auth.New(db, directory, syncpkg.NewFreshness(cfg.Okta.UserTTL),
		reconciler, bus, cfg.Okta.GroupsAttribute)

	var provider *saml.Provider

	if cfg.SAML.MetadataURL != "" || cfg.SAML.MetadataFile != "" {
		provider, err = saml.New(cfg.SAML)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure saml")
		}
	} else {
		log.Warn().Msg("no saml metadata configured, single sign-on disabled")
	}

	return &Daemon{
		cfg: cfg,
		webService: web.New(cfg, db, web.Dependencies{
			SAMLProvider: provider,
			Orchestrator: orchestrator,
			SyncService:  syncService,
		}),
	}
}

// sessionStorage picks the session backend matching the database engine.
func sessionStorage(cfg *config.Config) storage.Storage {
	if cfg.DB.GormEngine == "mysql" {
		return sessionmysql.New(sessionmysql.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         "sessions",
		})
	}

	// non-mysql engines keep sessions in memory, a restart logs everyone out
	return sessionmemory.New()
}

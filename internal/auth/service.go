// Package auth implements the authentication orchestration: a verified
// login from the SSO layer is turned into an authorized local user.
//
// The directory is optional at every step. Without credentials, or with an
// unreachable users endpoint, logins degrade to assertion-only trust and
// still succeed.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/irvingleonard/go-okta-client/internal/db/controller/user"
	"github.com/irvingleonard/go-okta-client/internal/db/models"
	"github.com/irvingleonard/go-okta-client/internal/events"
	"github.com/irvingleonard/go-okta-client/internal/groups"
	"github.com/irvingleonard/go-okta-client/internal/okta"
	syncpkg "github.com/irvingleonard/go-okta-client/internal/sync"
)

// ErrAuthenticationFailed is the generic rejection returned to callers.
// The failing stage is logged but never leaked to the login response.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Service drives one authentication attempt from verified login to
// authorized local user.
type Service struct {
	db              *gorm.DB
	directory       *okta.Client // nil when the directory is unconfigured
	freshness       syncpkg.Freshness
	reconciler      *groups.Reconciler
	bus             *events.Bus
	groupsAttribute string
}

// New wires an orchestrator. directory may be nil for assertion-only setups.
func New(db *gorm.DB, directory *okta.Client, freshness syncpkg.Freshness,
	reconciler *groups.Reconciler, bus *events.Bus, groupsAttribute string,
) *Service {
	return &Service{
		db:              db,
		directory:       directory,
		freshness:       freshness,
		reconciler:      reconciler,
		bus:             bus,
		groupsAttribute: groupsAttribute,
	}
}

// Authenticate resolves a verified login to a local user.
//
// federated carries the attributes delivered inline with the assertion.
// They are applied after the directory sync, so assertion values win for
// this login. The returned error is always the generic
// ErrAuthenticationFailed, details only go to the log.
func (s *Service) Authenticate(ctx context.Context, login string, federated map[string][]string) (*models.User, error) {
	if login == "" {
		return nil, ErrAuthenticationFailed
	}

	local, isNew, err := s.resolveLocal(login)
	if err != nil {
		log.Error().Err(err).Str("user", login).Msg("local user lookup failed")

		return nil, ErrAuthenticationFailed
	}

	remote, remoteErr := s.syncFromDirectory(ctx, local, isNew)
	if remoteErr != nil {
		log.Error().Err(remoteErr).Str("user", login).Msg("directory sync failed")

		return nil, ErrAuthenticationFailed
	}

	// assertion attributes win over the directory mirror for this login
	s.applyFederated(local, federated)

	local.IsActive = true

	if err = s.persist(local, isNew); err != nil {
		log.Error().Err(err).Str("user", login).Msg("failed to persist user")

		return nil, ErrAuthenticationFailed
	}

	if err = s.reconcileGroups(ctx, local, remote, federated); err != nil {
		log.Error().Err(err).Str("user", login).Msg("group reconciliation failed")

		return nil, ErrAuthenticationFailed
	}

	// role updates above only touched the stored record
	refreshed, err := user.Get(s.db, login)
	if err != nil {
		log.Error().Err(err).Str("user", login).Msg("failed to reload user")

		return nil, ErrAuthenticationFailed
	}

	events.ReportOutcomes(events.UserLoggedIn,
		s.bus.Publish(events.UserLoggedIn, events.Payload{Login: login}))

	log.Info().Str("user", login).Bool("new", isNew).Msg("user authenticated")

	return refreshed, nil
}

// resolveLocal loads the user or prepares a fresh record for the login.
func (s *Service) resolveLocal(login string) (*models.User, bool, error) {
	local, err := user.Get(s.db, login)
	if err == nil {
		return local, false, nil
	}

	if errors.Is(err, user.ErrUserNotFound) {
		return &models.User{Login: login}, true, nil
	}

	return nil, false, err
}

// syncFromDirectory refreshes the record from the directory when it is due.
// Returns the fetched remote record, or nil when no sync happened.
//
// An unreachable endpoint skips the sync, a missing remote identity falls
// back to assertion-only trust. Any other directory failure is fatal for
// this authentication.
func (s *Service) syncFromDirectory(ctx context.Context, local *models.User, isNew bool) (*okta.User, error) {
	if s.directory == nil {
		return nil, nil
	}

	if !isNew && !s.freshness.IsOutdated(local) {
		return nil, nil
	}

	if !s.directory.Ping(ctx) {
		log.Warn().Str("user", local.Login).Msg("directory unreachable, proceeding assertion-only")

		return nil, nil
	}

	remote, err := s.directory.GetUser(ctx, local.Login)
	if err != nil {
		if okta.IsNotFound(err) {
			log.Info().Str("user", local.Login).Msg("login unknown to the directory")

			return nil, nil
		}

		return nil, err
	}

	syncpkg.Apply(local, remote)

	now := time.Now()
	local.LastRefresh = &now

	return remote, nil
}

// applyFederated merges assertion attributes onto the user.
// Single-element lists are unwrapped to scalars first.
func (s *Service) applyFederated(local *models.User, federated map[string][]string) {
	if len(federated) == 0 {
		return
	}

	profile := make(map[string]interface{}, len(federated))

	for key, values := range federated {
		if key == s.groupsAttribute {
			continue
		}

		if len(values) == 1 {
			profile[key] = values[0]

			continue
		}

		log.Debug().Str("attribute", key).Int("values", len(values)).Str("user", local.Login).
			Msg("multi-valued assertion attribute has no scalar field, dropping")
	}

	syncpkg.Apply(local, &okta.User{Profile: profile})
}

func (s *Service) persist(local *models.User, isNew bool) error {
	if isNew {
		_, err := user.Create(s.db, local)

		return err
	}

	return user.Save(s.db, local)
}

// reconcileGroups aligns memberships from exactly one source: the
// directory when a remote record was fetched, otherwise the assertion's
// group attribute. An empty directory result for a known remote identity
// skips the reconciliation instead of clearing memberships.
func (s *Service) reconcileGroups(ctx context.Context, local *models.User, remote *okta.User, federated map[string][]string) error {
	if remote != nil {
		remoteGroups, err := s.directory.ListUserGroups(ctx, remote.ID)
		if err != nil {
			return err
		}

		names := okta.GroupNames(remoteGroups)
		if len(names) == 0 {
			log.Warn().Str("user", local.Login).Msg("directory returned no groups, skipping reconciliation")

			return nil
		}

		return s.reconciler.Reconcile(local, names)
	}

	// an assertion that carries the attribute at all is authoritative,
	// even when it lists no groups
	if names, ok := federated[s.groupsAttribute]; ok {
		return s.reconciler.Reconcile(local, names)
	}

	return nil
}

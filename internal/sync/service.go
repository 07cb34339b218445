package sync

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/irvingleonard/go-okta-client/internal/db/controller/user"
	"github.com/irvingleonard/go-okta-client/internal/db/models"
	"github.com/irvingleonard/go-okta-client/internal/groups"
	"github.com/irvingleonard/go-okta-client/internal/okta"
)

// ErrDirectoryUnavailable is returned by the administrative bulk operations
// when the directory users endpoint does not answer. Unlike the login path,
// an explicit sync command must fail loudly instead of degrading.
var ErrDirectoryUnavailable = errors.New("directory users endpoint is not reachable")

// Service refreshes local users from the directory.
type Service struct {
	db         *gorm.DB
	directory  *okta.Client
	reconciler *groups.Reconciler
}

// NewService wires a sync service.
func NewService(db *gorm.DB, directory *okta.Client, reconciler *groups.Reconciler) *Service {
	return &Service{db: db, directory: directory, reconciler: reconciler}
}

// Report sums up a bulk operation.
type Report struct {
	// Users counts successfully refreshed users.
	Users int

	// Groups counts reconciled group memberships.
	Groups int

	// Failures lists the logins that could not be refreshed.
	Failures map[string]error
}

// BulkOptions narrows a bulk refresh.
type BulkOptions struct {
	// IncludeDeprovisioned also refreshes deactivated identities.
	IncludeDeprovisioned bool

	// WithGroups reconciles group memberships alongside the profiles.
	WithGroups bool
}

// RefreshUser fetches the remote record for one login and applies it,
// creating the local record when missing.
//
// When a record was just created for this refresh and the remote fetch
// fails, the orphan record is rolled back so a failed sync never leaves a
// half-materialized user behind.
func (s *Service) RefreshUser(ctx context.Context, login string, withGroups bool) (int, error) {
	local, created, err := s.localUser(login)
	if err != nil {
		return 0, err
	}

	remote, err := s.directory.GetUser(ctx, login)
	if err != nil {
		if created {
			if delErr := user.Delete(s.db, login); delErr != nil {
				log.Error().Err(delErr).Str("user", login).Msg("orphan rollback failed")
			}
		}

		return 0, err
	}

	return s.applyRemote(ctx, local, remote, withGroups)
}

// localUser loads or creates the record for a login.
func (s *Service) localUser(login string) (*models.User, bool, error) {
	local, err := user.Get(s.db, login)
	if err == nil {
		return local, false, nil
	}

	if !errors.Is(err, user.ErrUserNotFound) {
		return nil, false, err
	}

	local = &models.User{Login: login, IsActive: true}
	if _, err = user.Create(s.db, local); err != nil {
		return nil, false, err
	}

	return local, true, nil
}

// applyRemote maps the remote record onto the local user, persists it and
// optionally reconciles group memberships. Returns the number of reconciled
// groups.
func (s *Service) applyRemote(ctx context.Context, local *models.User, remote *okta.User, withGroups bool) (int, error) {
	Apply(local, remote)

	now := time.Now()
	local.LastRefresh = &now

	if err := user.Save(s.db, local); err != nil {
		return 0, err
	}

	if !withGroups {
		return 0, nil
	}

	remoteGroups, err := s.directory.ListUserGroups(ctx, remote.ID)
	if err != nil {
		return 0, err
	}

	names := okta.GroupNames(remoteGroups)
	if len(names) == 0 {
		// an empty result for a known identity reads as a failed query,
		// not as "remove everything"
		log.Warn().Str("user", local.Login).Msg("directory returned no groups, skipping reconciliation")

		return 0, nil
	}

	if err = s.reconciler.Reconcile(local, names); err != nil {
		return 0, err
	}

	return len(names), nil
}

// UpdateAllUsers refreshes every directory user, page by page.
//
// The directory listing is streamed, so the running total is re-read on
// every page and growth mid-iteration shows up in the final report. One
// failing user never aborts the rest of the batch.
func (s *Service) UpdateAllUsers(ctx context.Context, opts BulkOptions) (*Report, error) {
	if err := s.requireDirectory(ctx); err != nil {
		return nil, err
	}

	report := &Report{Failures: make(map[string]error)}
	seen := 0

	err := s.directory.ForEachUserPage(ctx, okta.ListUsersOptions{
		IncludeDeprovisioned: opts.IncludeDeprovisioned,
	}, func(page []okta.User) error {
		seen += len(page)
		log.Info().Int("seen", seen).Int("page_size", len(page)).Msg("processing directory page")

		for i := range page {
			remote := &page[i]

			login := remote.Login()
			if login == "" {
				report.Failures[remote.ID] = errors.New("remote record has no login")

				continue
			}

			local, _, localErr := s.localUser(login)
			if localErr != nil {
				report.Failures[login] = localErr

				continue
			}

			groupCount, applyErr := s.applyRemote(ctx, local, remote, opts.WithGroups)
			if applyErr != nil {
				report.Failures[login] = applyErr

				continue
			}

			report.Users++
			report.Groups += groupCount
		}

		return nil
	})
	if err != nil {
		return report, err
	}

	log.Info().Int("users", report.Users).Int("groups", report.Groups).
		Int("failures", len(report.Failures)).Msg("bulk user update finished")

	return report, nil
}

// UpdateUsers refreshes an explicit list of logins with per-login isolation.
func (s *Service) UpdateUsers(ctx context.Context, logins []string, opts BulkOptions) (*Report, error) {
	if err := s.requireDirectory(ctx); err != nil {
		return nil, err
	}

	report := &Report{Failures: make(map[string]error)}

	for _, login := range logins {
		groupCount, err := s.RefreshUser(ctx, login, opts.WithGroups)
		if err != nil {
			report.Failures[login] = err

			continue
		}

		report.Users++
		report.Groups += groupCount
	}

	return report, nil
}

// requireDirectory turns an unreachable users endpoint into a hard error.
func (s *Service) requireDirectory(ctx context.Context) error {
	ok, err := s.directory.PingUsersEndpoint(ctx)
	if err != nil {
		log.Error().Err(err).Msg("directory ping failed")

		return ErrDirectoryUnavailable
	}

	if !ok {
		return ErrDirectoryUnavailable
	}

	return nil
}

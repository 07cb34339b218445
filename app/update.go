package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/irvingleonard/go-okta-client/internal/config"
	"github.com/irvingleonard/go-okta-client/internal/daemon"
	"github.com/irvingleonard/go-okta-client/internal/logger"
	syncpkg "github.com/irvingleonard/go-okta-client/internal/sync"
)

func init() { //nolint: gochecknoinits
	updateCmd.Flags().StringSliceVar(
		&updateLogins,
		"users",
		nil,
		"Refresh only these logins instead of the whole directory",
	)

	updateCmd.Flags().BoolVar(
		&noDeprovisioned,
		"no-deprovisioned",
		false,
		"Skip deprovisioned directory users",
	)

	updateCmd.Flags().BoolVar(
		&noGroups,
		"no-groups",
		false,
		"Skip group membership reconciliation",
	)

	rootCmd.AddCommand(updateCmd)
}

var (
	updateLogins    []string
	noDeprovisioned bool
	noGroups        bool

	updateCmd = &cobra.Command{
		Use:   "update-users",
		Short: "Refresh local users from the Okta directory",
		PreRun: func(_ *cobra.Command, _ []string) {
			if cfg, err = config.ReadConfig(configPath); err != nil {
				panic(err)
			}

			if err = logger.Init(cfg.Log); err != nil {
				panic(err)
			}
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			db, err := daemon.OpenDB(&cfg)
			if err != nil {
				return errors.Wrap(err, "failed to open database")
			}

			_, syncService, _, _ := daemon.NewDirectoryStack(&cfg, db)
			if syncService == nil {
				return errors.New("no directory credentials configured")
			}

			opts := syncpkg.BulkOptions{
				IncludeDeprovisioned: !noDeprovisioned,
				WithGroups:           !noGroups,
			}

			var report *syncpkg.Report

			if len(updateLogins) > 0 {
				report, err = syncService.UpdateUsers(context.Background(), updateLogins, opts)
			} else {
				report, err = syncService.UpdateAllUsers(context.Background(), opts)
			}

			if err != nil {
				return err
			}

			for login, failure := range report.Failures {
				log.Error().Err(failure).Str("login", login).Msg("user refresh failed")
			}

			log.Info().
				Int("users", report.Users).
				Int("groups", report.Groups).
				Int("failures", len(report.Failures)).
				Msg("directory refresh finished")

			return nil
		},
	}
)

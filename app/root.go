// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"

	"github.com/irvingleonard/go-okta-client/internal/config"
)

var (
	configPath string // Path to the configuration directory

	cfg config.Config
	err error

	rootCmd = &cobra.Command{
		Use:   "go-okta-client",
		Short: "go-okta-client bridges local accounts with the Okta directory",
		Long: `go-okta-client keeps a local user database in step with the Okta
directory: it authenticates users through SAML single sign-on, refreshes
profiles and group memberships from the directory API, and derives staff
and superuser roles from group membership.`,
		Args: cobra.OnlyValidArgs,
	}
)

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVar(
		&configPath,
		"config",
		"etc/",
		"Path to the configuration directory",
	)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

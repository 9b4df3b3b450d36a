// Package cmd holds the loginflow command line.
package cmd

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/boozedog/loginflow/internal/config"
)

const defaultConfigPath = "loginflow.json"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "loginflow",
		Short: "Login handler and route guard for member-only site pages",
		Long: `loginflow bridges browser tabs of a hosted site to an authentication backend.
It handles the login form, keeps a session token per tab, and verifies every
navigation against the backend before the page may stay visible.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env file is fine.
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "path to config file")

	root.AddCommand(
		newServeCmd(opts),
		newLoginCmd(opts),
		newCheckCmd(opts),
		newLogoutCmd(opts),
	)
	return root
}

// ExecuteContext runs the root command.
func ExecuteContext(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// loadConfig reads the config file. The default path may be absent, in
// which case built-in defaults apply.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(o.configPath); errors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
	}
	return config.Load(o.configPath)
}

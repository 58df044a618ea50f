// Package cli implements the cacherefresh command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd returns the cacherefresh command. Every flag can also be set in
// the config file or as CACHEREFRESH_<FLAG> in the environment.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cacherefresh",
		Short:         "Invalidate a list of cache keys in adaptive batches",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	registerFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		v, err := newViper(cmd.Flags())
		if err != nil {
			return err
		}
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		zl, err := newLogger(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("%s: %w", cfgLogLevel, err)
		}
		defer func() { _ = zl.Sync() }()

		return run(cmd.Context(), cfg, zl, cmd.OutOrStdout())
	}
	return cmd
}

// Execute runs the command and returns the process exit code.
func Execute(ctx context.Context) int {
	err := NewRootCmd().ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUnresolved):
		return 1
	default:
		fmt.Fprintln(os.Stderr, "cacherefresh:", err)
		return 2
	}
}

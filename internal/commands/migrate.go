package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the billing tables when they are missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				if rt.Migrate == nil {
					return errors.New("migrations not available")
				}
				if err := rt.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
}

package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"tuition_billing/internal/config"
	"tuition_billing/internal/repository/database"
	"tuition_billing/internal/services"
)

// Runtime is what a command needs from the outside world.
type Runtime struct {
	Services *services.Services
	Migrate  func(ctx context.Context) error
	Close    func()
}

// Opener builds a Runtime. Tests swap in in-memory backends.
type Opener func(ctx context.Context) (*Runtime, error)

// DefaultOpener connects every backend from the environment.
func DefaultOpener(ctx context.Context) (*Runtime, error) {
	setupCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	cfg := config.Init(setupCtx)
	// The operator runs the CLI on their own host, so local files are fine.
	cfg.Settings.Import.AllowLocal = true
	svc, err := services.New(cfg, nil)
	if err != nil {
		cfg.Close(context.Background())
		return nil, err
	}
	return &Runtime{
		Services: svc,
		Migrate: func(ctx context.Context) error {
			return database.EnsureSchema(ctx, cfg.Postgres)
		},
		Close: func() { cfg.Close(context.Background()) },
	}, nil
}

// NewRootCommand creates the billingctl command tree.
func NewRootCommand(open Opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "billingctl",
		Short: "Tuition billing reconciliation tools",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newUnpaidCommand(open),
		newStatsCommand(open),
		newApproveCommand(open),
		newRejectCommand(open),
		newStatusCommand(open),
		newExportCommand(open),
		newMigrateCommand(open),
		newTokenCommand(open),
		newImportCommand(open),
	)
	return rootCmd
}

// withRuntime opens a runtime for the duration of fn.
func withRuntime(cmd *cobra.Command, open Opener, fn func(ctx context.Context, rt *Runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := open(ctx)
	if err != nil {
		return err
	}
	if rt.Close != nil {
		defer rt.Close()
	}
	return fn(ctx, rt)
}

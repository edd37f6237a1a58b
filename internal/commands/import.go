package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tuition_billing/internal/services/importer"
)

func newImportCommand(open Opener) *cobra.Command {
	var (
		batchSize int
		operator  string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "import <students|recurring_fees|enrollment_fees> <source>",
		Short: "Load a roster or fee catalog from CSV or XLSX",
		Long: "Source may be a local file, an http(s) URL, s3://bucket/key, " +
			"or a key in the configured bucket. Rows are upserted; invalid rows are listed and skipped.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				if rt.Services.Importer == nil {
					return errors.New("importer not configured")
				}
				res, err := rt.Services.Importer.Import(ctx, importer.Request{
					Type:      args[0],
					Source:    args[1],
					BatchSize: batchSize,
					Operator:  operator,
				})
				if errors.Is(err, importer.ErrUnknownType) {
					return fmt.Errorf("%w, want one of %v", err, rt.Services.Importer.Types())
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), res)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s from %s (%s): %d rows, %d inserted, %d updated, %d rejected\n",
					res.Type, res.Source, res.Format, res.Rows, res.Inserted, res.Updated, len(res.Rejected))
				if len(res.Rejected) == 0 {
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "LINE\tREASON")
				for _, r := range res.Rejected {
					fmt.Fprintf(tw, "%d\t%s\n", r.Line, r.Reason)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per database batch (default IMPORT_BATCH_SIZE)")
	cmd.Flags().StringVar(&operator, "operator", "cli", "recorded as the author of the import")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a summary")
	return cmd
}

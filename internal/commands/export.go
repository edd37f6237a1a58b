package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tuition_billing/internal/models"
	"tuition_billing/internal/services/billing"
)

func newExportCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render reports to xlsx",
	}
	cmd.AddCommand(newExportDelinquentsCommand(open), newExportMonthlyCommand(open))
	return cmd
}

func newExportDelinquentsCommand(open Opener) *cobra.Command {
	var (
		flags  filterFlags
		out    string
		upload bool
	)
	cmd := &cobra.Command{
		Use:   "delinquents",
		Short: "Export the delinquent student list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flags.parse()
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				if upload {
					stored, err := rt.Services.Export.StoreDelinquents(ctx, f)
					if err != nil {
						return err
					}
					printStored(cmd, stored)
					return nil
				}
				return writeFile(out, rt.Services.Export.DelinquencyFilename(), func(fh *os.File) error {
					_, err := rt.Services.Export.WriteDelinquents(ctx, fh, f)
					return err
				}, cmd)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: generated name in the current directory)")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload to the report bucket instead of writing a file")
	return cmd
}

func newExportMonthlyCommand(open Opener) *cobra.Command {
	var (
		year   int
		out    string
		upload bool
	)
	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Export monthly collection statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if year == 0 {
				return &billing.ValidationError{Field: "year", Message: "is required"}
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				if upload {
					stored, err := rt.Services.Export.StoreMonthly(ctx, year)
					if err != nil {
						return err
					}
					printStored(cmd, stored)
					return nil
				}
				return writeFile(out, rt.Services.Export.MonthlyFilename(year), func(fh *os.File) error {
					return rt.Services.Export.WriteMonthly(ctx, fh, year)
				}, cmd)
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "calendar year (required)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: generated name in the current directory)")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload to the report bucket instead of writing a file")
	return cmd
}

// writeFile removes a partially written file when render fails.
func writeFile(path, fallback string, render func(*os.File) error, cmd *cobra.Command) error {
	if path == "" {
		path = fallback
	}
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := render(fh); err != nil {
		_ = fh.Close()
		_ = os.Remove(path)
		return err
	}
	if err := fh.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func printStored(cmd *cobra.Command, r models.StoredReport) {
	fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", r.Path, r.Size)
	if r.URL != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "link: %s\n", r.URL)
	}
}

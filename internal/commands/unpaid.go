package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tuition_billing/internal/services/billing"
)

type filterFlags struct {
	classLevel      string
	category        string
	recurringFeeID  string
	enrollmentFeeID string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.classLevel, "class-level", "", "only students of this class level")
	cmd.Flags().StringVar(&f.category, "category", "", "recurring, enrollment or all")
	cmd.Flags().StringVar(&f.recurringFeeID, "recurring-fee-id", "", "a single recurring fee item")
	cmd.Flags().StringVar(&f.enrollmentFeeID, "enrollment-fee-id", "", "a single enrollment fee item")
}

func (f *filterFlags) parse() (billing.Filter, error) {
	return billing.ParseFilter(f.classLevel, f.category, f.recurringFeeID, f.enrollmentFeeID)
}

func newUnpaidCommand(open Opener) *cobra.Command {
	var (
		flags  filterFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "unpaid",
		Short: "List students with unpaid fee items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flags.parse()
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				rep, err := rt.Services.Calculator.ListDelinquents(ctx, f)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), rep)
				}
				return printDelinquents(cmd.OutOrStdout(), rep)
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printDelinquents(w io.Writer, rep billing.DelinquencyReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NIS\tNAME\tCLASS\tITEMS\tTOTAL")
	for _, r := range rep.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.StudentNumber, r.Name, r.ClassLevel, len(r.Items), billing.FormatRupiah(r.Total))
	}
	fmt.Fprintf(tw, "\t\t\t\t%s\n", billing.FormatRupiah(rep.GrandTotal))
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

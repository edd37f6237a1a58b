package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newStatsCommand(open Opener) *cobra.Command {
	var (
		year   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Monthly collection statistics for a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				stats, err := rt.Services.Reporter.MonthlyCollectionStats(ctx, year)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "MONTH\tSTUDENTS\tPAID\tUNPAID\tENROLLMENT\tRATE")
				for _, s := range stats {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d%%\n",
						s.MonthName, s.TotalStudents, s.PaidCount, s.UnpaidCount, s.EnrollmentPaidCount, s.CollectionRate)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "calendar year")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

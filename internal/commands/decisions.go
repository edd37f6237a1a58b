package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"tuition_billing/internal/models"
	"tuition_billing/internal/services/billing"
)

func parseTransactionID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &billing.ValidationError{Field: "transaction_id", Message: "must be a positive integer"}
	}
	return id, nil
}

func operatorFlag(cmd *cobra.Command, operator *string) {
	cmd.Flags().StringVar(operator, "operator", "cli", "operator id recorded with the decision")
}

func printOutcome(w io.Writer, out billing.DecisionOutcome) {
	t := out.Transaction
	if !out.Changed {
		fmt.Fprintf(w, "transaction %d already %s, nothing changed\n", t.ID, t.Status)
		return
	}
	fmt.Fprintf(w, "transaction %d is now %s (%d line items)\n", t.ID, t.Status, len(t.LineItems))
	if out.Notification != "" {
		fmt.Fprintf(w, "notification: %s\n", out.Notification)
	}
	if out.NotificationWarning != "" {
		fmt.Fprintf(w, "warning: %s\n", out.NotificationWarning)
	}
}

func newApproveCommand(open Opener) *cobra.Command {
	var operator string
	cmd := &cobra.Command{
		Use:   "approve <transaction-id>",
		Short: "Approve a payment transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTransactionID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				out, err := rt.Services.Approver.Approve(billing.WithOperator(ctx, operator), id)
				if err != nil {
					return err
				}
				printOutcome(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	operatorFlag(cmd, &operator)
	return cmd
}

func newRejectCommand(open Opener) *cobra.Command {
	var operator, reason string
	cmd := &cobra.Command{
		Use:   "reject <transaction-id>",
		Short: "Reject a payment transaction with a reason",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTransactionID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				out, err := rt.Services.Approver.Reject(billing.WithOperator(ctx, operator), id, reason)
				if err != nil {
					return err
				}
				printOutcome(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	operatorFlag(cmd, &operator)
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newStatusCommand(open Opener) *cobra.Command {
	var operator, reason string
	cmd := &cobra.Command{
		Use:   "status <transaction-id> <pending|approved|rejected>",
		Short: "Set the status of a payment transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTransactionID(args[0])
			if err != nil {
				return err
			}
			status, err := models.ParseTransactionStatus(args[1])
			if err != nil {
				return &billing.ValidationError{Field: "status", Message: err.Error()}
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				out, err := rt.Services.Approver.SetStatus(billing.WithOperator(ctx, operator), id, status, reason)
				if err != nil {
					return err
				}
				printOutcome(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	operatorFlag(cmd, &operator)
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason, required for rejected")
	return cmd
}

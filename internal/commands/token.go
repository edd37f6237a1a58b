package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTokenCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
	}

	var (
		userID int64
		name   string
		ttl    time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for an operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return errors.New("--user-id must be positive")
			}
			secret, err := randomSecret()
			if err != nil {
				return err
			}
			var expires *time.Time
			if ttl > 0 {
				t := time.Now().Add(ttl)
				expires = &t
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				if rt.Services.Tokens == nil {
					return errors.New("token store not available")
				}
				plain, err := rt.Services.Tokens.Issue(ctx, userID, name, secret, expires)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), plain)
				return nil
			})
		},
	}
	issue.Flags().Int64Var(&userID, "user-id", 0, "operator user id (required)")
	issue.Flags().StringVar(&name, "name", "billingctl", "token name")
	issue.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, 0 for no expiry")
	_ = issue.MarkFlagRequired("user-id")

	cmd.AddCommand(issue)
	return cmd
}

func randomSecret() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

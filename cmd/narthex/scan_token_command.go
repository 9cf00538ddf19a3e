package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"narthex/internal/ipc"
)

func newScanTokenCommand(ctx *commandContext) *cobra.Command {
	scanTokenCmd := &cobra.Command{
		Use:   "scan-token",
		Short: "Manage phone hand-off scan tokens",
	}

	scanTokenCmd.AddCommand(newScanTokenCreateCommand(ctx))

	return scanTokenCmd
}

func newScanTokenCreateCommand(ctx *commandContext) *cobra.Command {
	var orgID string
	var userID string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint a scan token for phone capture hand-off",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScanTokenCreate(orgID, userID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Token: %s\n", resp.Token.Token)
				fmt.Fprintf(out, "Org: %s\n", resp.Token.OrgID)
				fmt.Fprintf(out, "Expires: %s\n", formatDisplayTime(resp.Token.ExpiresAt))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization the token is scoped to (defaults to the configured org)")
	cmd.Flags().StringVar(&userID, "user", "", "User the token is issued for")
	return cmd
}

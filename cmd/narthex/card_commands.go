package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"narthex/internal/ipc"
)

func newCardCommand(ctx *commandContext) *cobra.Command {
	cardCmd := &cobra.Command{
		Use:   "card",
		Short: "Review and manage saved connect cards",
	}

	cardCmd.AddCommand(newCardReviewCommand(ctx))
	cardCmd.AddCommand(newCardDeleteCommand(ctx))

	return cardCmd
}

func newCardReviewCommand(ctx *commandContext) *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "review <cardID>",
		Short: "Mark a card as reviewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid card id %q", args[0])
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CardReview(orgID, cardID)
				if err != nil {
					return err
				}
				if resp.Reviewed {
					fmt.Fprintf(cmd.OutOrStdout(), "Card %d marked reviewed\n", cardID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Card %d was already reviewed\n", cardID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization the card belongs to (defaults to the configured org)")
	return cmd
}

func newCardDeleteCommand(ctx *commandContext) *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "delete <cardID>",
		Short: "Delete a saved card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid card id %q", args[0])
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CardDelete(orgID, cardID)
				if err != nil {
					return err
				}
				if resp.Removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Card %d deleted\n", cardID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Card %d not found\n", cardID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization the card belongs to (defaults to the configured org)")
	return cmd
}

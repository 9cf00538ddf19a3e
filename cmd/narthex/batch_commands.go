package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"narthex/internal/api"
	"narthex/internal/ipc"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Inspect per-day card batches",
	}

	batchCmd.AddCommand(newBatchListCommand(ctx))
	batchCmd.AddCommand(newBatchCardsCommand(ctx))

	return batchCmd
}

func newBatchListCommand(ctx *commandContext) *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List card batches for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BatchList(orgID)
				if err != nil {
					return err
				}
				if len(resp.Batches) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No batches")
					return nil
				}

				rows := make([][]string, 0, len(resp.Batches))
				for _, batch := range resp.Batches {
					rows = append(rows, []string{
						fmt.Sprintf("%d", batch.ID),
						batch.Day,
						batchName(batch),
						formatStatusLabel(batch.Status),
						fmt.Sprintf("%d", batch.CardCount),
					})
				}
				table := renderTable(
					[]string{"ID", "Day", "Name", "Status", "Cards"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization to list batches for (defaults to the configured org)")
	return cmd
}

func newBatchCardsCommand(ctx *commandContext) *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "cards <batchID>",
		Short: "List the cards in a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid batch id %q", args[0])
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BatchCards(orgID, batchID)
				if err != nil {
					return err
				}
				if len(resp.Cards) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Batch has no cards")
					return nil
				}

				rows := make([][]string, 0, len(resp.Cards))
				for _, card := range resp.Cards {
					rows = append(rows, []string{
						fmt.Sprintf("%d", card.ID),
						cardPersonLabel(card),
						formatStatusLabel(card.Status),
						cardWarningSummary(card),
						formatDisplayTime(card.CreatedAt),
					})
				}
				table := renderTable(
					[]string{"ID", "Person", "Status", "Warnings", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization the batch belongs to (defaults to the configured org)")
	return cmd
}

func batchName(batch ipc.Batch) string {
	if name := strings.TrimSpace(batch.Name); name != "" {
		return name
	}
	return "-"
}

func cardPersonLabel(card api.Card) string {
	if name := strings.TrimSpace(card.PersonName); name != "" {
		return name
	}
	return "Unknown"
}

func cardWarningSummary(card api.Card) string {
	if len(card.Warnings) == 0 {
		return "-"
	}
	var warnings []string
	if err := json.Unmarshal(card.Warnings, &warnings); err != nil || len(warnings) == 0 {
		return "-"
	}
	if len(warnings) == 1 {
		return warnings[0]
	}
	return fmt.Sprintf("%s (+%d more)", warnings[0], len(warnings)-1)
}

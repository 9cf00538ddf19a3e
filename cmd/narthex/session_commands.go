package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"narthex/internal/ipc"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and recover intake sessions",
	}

	sessionCmd.AddCommand(newSessionStatusCommand(ctx))
	sessionCmd.AddCommand(newSessionResumeCommand(ctx))
	sessionCmd.AddCommand(newSessionDiscardCommand(ctx))

	return sessionCmd
}

func newSessionStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session and leftovers from earlier runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionStatus()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session: %s\n", resp.SessionID)
				fmt.Fprintf(out, "Settled: %s\n", yesNo(resp.Settled))

				if len(resp.PendingPrevious) == 0 {
					fmt.Fprintln(out, "No unfinished captures from previous sessions")
					return nil
				}

				fmt.Fprintf(out, "Unfinished captures from previous sessions: %d\n", len(resp.PendingPrevious))
				table := renderTable(
					[]string{"ID", "File", "Org", "Status", "Created", "Fingerprint"},
					buildQueueListRows(resp.PendingPrevious),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprint(out, table)
				fmt.Fprintln(out, "Run `narthex session resume` to adopt them or `narthex session discard` to drop them")
				return nil
			})
		},
	}
}

func newSessionResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Adopt unfinished captures from previous sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionResume()
				if err != nil {
					return err
				}
				if resp.Adopted == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to resume")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Adopted %d captures into the current session\n", resp.Adopted)
				return nil
			})
		},
	}
}

func newSessionDiscardCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "Drop unfinished captures from previous sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionDiscard()
				if err != nil {
					return err
				}
				if resp.Discarded == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to discard")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Discarded %d captures from previous sessions\n", resp.Discarded)
				return nil
			})
		},
	}
}

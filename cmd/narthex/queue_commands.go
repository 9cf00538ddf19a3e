package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"narthex/internal/api"
	"narthex/internal/config"
	"narthex/internal/ipc"
	"narthex/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the intake queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var stats map[string]int
				if client != nil {
					status, err := client.Status()
					if err != nil {
						return err
					}
					stats = status.QueueStats
				} else {
					raw, err := store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					stats = api.MergeQueueStats(raw)
				}

				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued captures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var items []ipc.QueueItem
				if client != nil {
					resp, err := client.QueueList(listStatuses)
					if err != nil {
						return err
					}
					items = resp.Items
				} else {
					statuses := make([]queue.Status, 0, len(listStatuses))
					for _, raw := range listStatuses {
						status, ok := queue.ParseStatus(raw)
						if !ok {
							return fmt.Errorf("unknown status %q", raw)
						}
						statuses = append(statuses, status)
					}
					stored, err := store.List(cmd.Context(), statuses...)
					if err != nil {
						return err
					}
					items = api.FromQueueItems(stored)
				}

				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "File", "Org", "Status", "Created", "Fingerprint"},
					buildQueueListRows(items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	return cmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var orgID string
	var locationID string

	cmd := &cobra.Command{
		Use:   "add <image-path>",
		Short: "Enqueue a card image for intake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The daemon resolves the path, so it must not depend on the
			// CLI's working directory.
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve image path: %w", err)
			}
			if !filepath.IsAbs(path) {
				abs, absErr := filepath.Abs(path)
				if absErr != nil {
					return fmt.Errorf("resolve image path: %w", absErr)
				}
				path = abs
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueAdd(ipc.QueueAddRequest{
					Path:       path,
					OrgID:      orgID,
					LocationID: locationID,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued capture %d (%s) for org %s\n",
					resp.Item.ID, captureLabel(resp.Item), resp.Item.OrgID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization the capture belongs to (defaults to the configured org)")
	cmd.Flags().StringVar(&locationID, "location", "", "Campus or location within the organization")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <itemID>",
		Short: "Show one capture in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var item *ipc.QueueItem
				if client != nil {
					resp, describeErr := client.QueueDescribe(id)
					if describeErr != nil {
						if strings.Contains(strings.ToLower(describeErr.Error()), "not found") {
							fmt.Fprintf(cmd.OutOrStdout(), "Item %d not found\n", id)
							return nil
						}
						return describeErr
					}
					item = &resp.Item
				} else {
					stored, getErr := store.GetByID(cmd.Context(), id)
					if getErr != nil {
						return getErr
					}
					if stored == nil {
						fmt.Fprintf(cmd.OutOrStdout(), "Item %d not found\n", id)
						return nil
					}
					converted := api.FromQueueItem(stored)
					item = &converted
				}

				printQueueItem(cmd, *item)
				return nil
			})
		},
	}
}

func printQueueItem(cmd *cobra.Command, item ipc.QueueItem) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader(fmt.Sprintf("Capture %d", item.ID), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("File", statusInfo, captureLabel(item), colorize))
	fmt.Fprintln(out, renderStatusLine("Org", statusInfo, item.OrgID, colorize))
	if item.LocationID != "" {
		fmt.Fprintln(out, renderStatusLine("Location", statusInfo, item.LocationID, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Status", statusInfo, formatStatusLabel(item.Status), colorize))
	fmt.Fprintln(out, renderStatusLine("Session", statusInfo, item.SessionID, colorize))
	if item.Fingerprint != "" {
		fmt.Fprintln(out, renderStatusLine("Fingerprint", statusInfo, item.Fingerprint, colorize))
	}
	if item.StorageKey != "" {
		fmt.Fprintln(out, renderStatusLine("Storage key", statusInfo, item.StorageKey, colorize))
	}
	if item.CardID > 0 {
		fmt.Fprintln(out, renderStatusLine("Card", statusOK, fmt.Sprintf("%d", item.CardID), colorize))
	}
	if item.DuplicateOfCardID > 0 {
		fmt.Fprintln(out, renderStatusLine("Duplicate of", statusWarn, fmt.Sprintf("card %d", item.DuplicateOfCardID), colorize))
	}
	if item.FailedStage != "" {
		detail := item.FailedStage
		if item.ErrorMessage != "" {
			detail = fmt.Sprintf("%s: %s", item.FailedStage, item.ErrorMessage)
		}
		fmt.Fprintln(out, renderStatusLine("Failure", statusError, detail, colorize))
	}
	if item.Attempts > 0 {
		fmt.Fprintln(out, renderStatusLine("Attempts", statusInfo, fmt.Sprintf("%d", item.Attempts), colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Created", statusInfo, formatDisplayTime(item.CreatedAt), colorize))
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <itemID>",
		Short: "Remove one capture from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var removed bool
				if client != nil {
					resp, removeErr := client.QueueRemove(id)
					if removeErr != nil {
						return removeErr
					}
					removed = resp.Removed
				} else {
					var removeErr error
					removed, removeErr = store.Remove(cmd.Context(), id)
					if removeErr != nil {
						return removeErr
					}
				}

				if removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Item %d removed\n", id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Item %d not found\n", id)
				}
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()

				if client != nil {
					switch {
					case clearCompleted:
						resp, err := client.QueueClearCompleted()
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "Cleared %d completed items\n", resp.Removed)
					case clearFailed:
						resp, err := client.QueueClearFailed()
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "Cleared %d failed items\n", resp.Removed)
					default:
						resp, err := client.QueueClear()
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "Cleared %d queue items\n", resp.Removed)
					}
					return nil
				}

				var removed int64
				var err error
				switch {
				case clearCompleted:
					removed, err = store.ClearCompleted(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d completed items\n", removed)
				case clearFailed:
					removed, err = store.ClearFailed(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d failed items\n", removed)
				default:
					removed, err = store.Clear(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d queue items\n", removed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed items")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed items")
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Return in-flight captures to queued",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				if client != nil {
					resp, err := client.QueueReset()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Reset %d items\n", resp.Updated)
					return nil
				}
				updated, err := store.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d items\n", updated)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [itemID...]",
		Short: "Retry failed or duplicate captures",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid item id %q", arg)
				}
				ids = append(ids, id)
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				if client != nil {
					if len(ids) == 0 {
						resp, err := client.QueueRetry(nil)
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "Retried %d items\n", resp.Updated)
						return nil
					}
					for _, id := range ids {
						resp, err := client.QueueRetry([]int64{id})
						if err != nil {
							return err
						}
						if resp.Updated > 0 {
							fmt.Fprintf(out, "Item %d reset for retry\n", id)
						} else {
							fmt.Fprintf(out, "Item %d is not in a retryable state\n", id)
						}
					}
					return nil
				}

				updated, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Retried %d items\n", updated)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check intake database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var health queue.DatabaseHealth
				if client != nil {
					resp, err := client.DatabaseHealth()
					if err != nil {
						return err
					}
					health = queue.DatabaseHealth{
						DBPath:           resp.DBPath,
						DatabaseExists:   resp.DatabaseExists,
						DatabaseReadable: resp.DatabaseReadable,
						TableExists:      resp.TableExists,
						MissingColumns:   resp.MissingColumns,
						IntegrityCheck:   resp.IntegrityCheck,
						TotalItems:       resp.TotalItems,
						Error:            resp.Error,
					}
				} else {
					var err error
					health, err = store.CheckHealth(cmd.Context())
					if err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", health.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(out, "Database readable: %s\n", yesNo(health.DatabaseReadable))
				fmt.Fprintf(out, "queue_items table present: %s\n", yesNo(health.TableExists))
				if len(health.MissingColumns) > 0 {
					fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(health.MissingColumns, ", "))
				}
				fmt.Fprintf(out, "Integrity check passed: %s\n", yesNo(health.IntegrityCheck))
				fmt.Fprintf(out, "Total items: %d\n", health.TotalItems)
				if health.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", health.Error)
				}
				return nil
			})
		},
	}
}

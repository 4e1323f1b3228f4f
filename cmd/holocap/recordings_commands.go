package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"holocap/internal/api"
	"holocap/internal/ipc"
	"holocap/internal/queue"
)

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	recordingsCmd := &cobra.Command{
		Use:     "recordings",
		Aliases: []string{"rec"},
		Short:   "Inspect and manage the recording catalogue",
	}

	recordingsCmd.AddCommand(newRecordingsListCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsShowCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsImportCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsRetryCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsSyncCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsRemoveCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsClearCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsHealthCommand(ctx))

	return recordingsCmd
}

func newRecordingsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogued recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			var recs []api.Recording
			err := ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				if client != nil {
					resp, err := client.RecordingList(statuses)
					if err != nil {
						return err
					}
					recs = resp.Recordings
					return nil
				}
				parsed, err := parseStatuses(statuses)
				if err != nil {
					return err
				}
				items, err := store.List(cmd.Context(), parsed...)
				if err != nil {
					return err
				}
				recs = api.FromRecordings(items)
				return nil
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.RecordingListResponse{Recordings: recs})
			}
			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No recordings catalogued")
				return nil
			}
			fmt.Fprint(out, renderTable(
				[]string{"ID", "Name", "Status", "Streams", "Frames", "Gaps", "Progress", "Updated"},
				buildRecordingRows(recs),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRecordingsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			var rec api.Recording
			err = ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				if client != nil {
					resp, err := client.RecordingDescribe(ids[0])
					if err != nil {
						return err
					}
					rec = resp.Recording
					return nil
				}
				item, err := store.GetByID(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("recording %d not found", ids[0])
				}
				rec = api.FromRecording(item)
				return nil
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, rec)
			}
			printRecording(cmd.OutOrStdout(), rec)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRecordingsImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Catalogue an existing recording directory for sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordingImport(dir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as recording %d (%s)\n",
					resp.Recording.Name, resp.Recording.ID, strings.Join(resp.Recording.Streams, ", "))
				return nil
			})
		},
	}
}

func newRecordingsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Retry failed recordings (all failed when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordingRetry(ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retrying %d recording(s)\n", resp.Updated)
				return nil
			})
		},
	}
}

func newRecordingsSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <id...>",
		Short: "Queue recordings for synchronization now",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordingSync(ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d recording(s) for sync\n", resp.Queued)
				return nil
			})
		},
	}
}

func newRecordingsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id...>",
		Short: "Drop recordings from the catalogue (files are kept)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordingRemove(ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d recording(s)\n", resp.Removed)
				return nil
			})
		},
	}
}

func newRecordingsClearCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every catalogue entry (files are kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errors.New("refusing to clear the catalogue without --force")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordingClear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d recording(s)\n", resp.Removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Confirm clearing the catalogue")
	return cmd
}

func newRecordingsHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show catalogue database diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var counts api.CatalogueHealth
			var db api.DatabaseHealth
			err := ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				if client != nil {
					health, err := client.CatalogueHealth()
					if err != nil {
						return err
					}
					dbHealth, err := client.DatabaseHealth()
					if err != nil {
						return err
					}
					counts, db = *health, *dbHealth
					return nil
				}
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				dbHealth, _ := store.CheckHealth(cmd.Context())
				counts, db = api.FromHealthSummary(health), api.FromDatabaseHealth(dbHealth)
				return nil
			})
			if err != nil {
				return err
			}
			printCatalogueHealth(cmd.OutOrStdout(), counts, db)
			return nil
		},
	}
}

func printCatalogueHealth(out io.Writer, counts api.CatalogueHealth, db api.DatabaseHealth) {
	fmt.Fprintf(out, "Database:   %s\n", db.DBPath)
	fmt.Fprintf(out, "Readable:   %s\n", yesNo(db.DatabaseReadable))
	fmt.Fprintf(out, "Schema:     %s\n", db.SchemaVersion)
	fmt.Fprintf(out, "Integrity:  %s\n", yesNo(db.IntegrityCheck))
	if len(db.MissingColumns) > 0 {
		fmt.Fprintf(out, "Missing:    %s\n", strings.Join(db.MissingColumns, ", "))
	}
	if db.Error != "" {
		fmt.Fprintf(out, "Error:      %s\n", db.Error)
	}
	fmt.Fprint(out, renderTable(
		[]string{"Group", "Count"},
		[][]string{
			{"Total", strconv.Itoa(counts.Total)},
			{"Recording", strconv.Itoa(counts.Recording)},
			{"Pending", strconv.Itoa(counts.Pending)},
			{"Syncing", strconv.Itoa(counts.Syncing)},
			{"Synced", strconv.Itoa(counts.Synced)},
			{"Skipped", strconv.Itoa(counts.Skipped)},
			{"Failed", strconv.Itoa(counts.Failed)},
		},
		[]columnAlignment{alignLeft, alignRight},
	))
}

func buildRecordingRows(recs []api.Recording) [][]string {
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		progress := rec.Progress.Stage
		if rec.Status == string(queue.StatusSyncing) {
			progress = fmt.Sprintf("%s %.0f%%", rec.Progress.Stage, rec.Progress.Percent)
		}
		rows = append(rows, []string{
			strconv.FormatInt(rec.ID, 10),
			rec.Name,
			titleLabel(rec.Status),
			strconv.Itoa(len(rec.Streams)),
			strconv.Itoa(rec.FrameCount),
			strconv.Itoa(rec.GapCount),
			progress,
			rec.UpdatedAt,
		})
	}
	return rows
}

func printRecording(out io.Writer, rec api.Recording) {
	fmt.Fprintf(out, "ID:          %d\n", rec.ID)
	fmt.Fprintf(out, "Name:        %s\n", rec.Name)
	fmt.Fprintf(out, "Path:        %s\n", rec.Path)
	fmt.Fprintf(out, "Status:      %s\n", titleLabel(rec.Status))
	fmt.Fprintf(out, "Streams:     %s\n", strings.Join(rec.Streams, ", "))
	if len(rec.Unavailable) > 0 {
		fmt.Fprintf(out, "Unavailable: %s\n", strings.Join(rec.Unavailable, ", "))
	}
	fmt.Fprintf(out, "Frames:      %d\n", rec.FrameCount)
	fmt.Fprintf(out, "Gaps:        %d\n", rec.GapCount)
	if rec.Progress.Stage != "" {
		fmt.Fprintf(out, "Progress:    %s %.0f%% %s\n", rec.Progress.Stage, rec.Progress.Percent, rec.Progress.Message)
	}
	if rec.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:       %s\n", rec.ErrorMessage)
	}
	fmt.Fprintf(out, "Created:     %s\n", rec.CreatedAt)
	fmt.Fprintf(out, "Updated:     %s\n", rec.UpdatedAt)
}

func parseStatuses(values []string) ([]queue.Status, error) {
	out := make([]queue.Status, 0, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown recording status %q", value)
		}
		out = append(out, status)
	}
	return out, nil
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid recording id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

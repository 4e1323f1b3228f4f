package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"holocap/internal/api"
	"holocap/internal/ipc"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Start and stop daemon recordings",
	}

	recordCmd.AddCommand(&cobra.Command{
		Use:   "start [name]",
		Short: "Start a recording on the daemon",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = strings.TrimSpace(args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordStart(name)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Recording %s started\n", resp.Recording.Name)
				fmt.Fprintf(out, "Directory: %s\n", resp.Recording.Dir)
				fmt.Fprintf(out, "Streams:   %s\n", strings.Join(resp.Recording.Streams, ", "))
				return nil
			})
		},
	})

	var stopJSON bool
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the active daemon recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordStop()
				if err != nil {
					return err
				}
				if stopJSON {
					return writeJSON(cmd, resp.Summary)
				}
				printSessionSummary(cmd.OutOrStdout(), resp.Summary)
				return nil
			})
		},
	}
	stopCmd.Flags().BoolVar(&stopJSON, "json", false, "Output as JSON")
	recordCmd.AddCommand(stopCmd)

	return recordCmd
}

func printSessionSummary(out io.Writer, summary api.SessionSummary) {
	fmt.Fprintf(out, "Recording %s stopped (%s)\n", summary.Name, titleLabel(summary.Result))
	fmt.Fprintf(out, "Directory: %s\n", summary.Dir)
	rows := make([][]string, 0, len(summary.Results))
	for _, res := range summary.Results {
		rows = append(rows, []string{
			res.Stream,
			titleLabel(res.Status),
			strconv.FormatUint(res.Read, 10),
			strconv.FormatUint(res.Written, 10),
			strconv.FormatUint(res.Malformed, 10),
			res.Reason,
		})
	}
	if len(rows) == 0 {
		return
	}
	fmt.Fprint(out, renderTable(
		[]string{"Stream", "Status", "Read", "Written", "Malformed", "Reason"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
}

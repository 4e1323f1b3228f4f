package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"holocap/internal/timesync"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var base string
	var tolerance uint64
	var asJSON bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "sync <dir>",
		Short: "Align a recording directory in the foreground",
		Long: "Sync aligns every stream of the recording to the base stream and writes\n" +
			"the result under <dir>/sync. Outputs already present are left in place,\n" +
			"so an interrupted run can be repeated.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			syncCfg := cfg.Sync
			if strings.TrimSpace(base) != "" {
				syncCfg.BaseStream = strings.TrimSpace(base)
			}
			if cmd.Flags().Changed("tolerance") {
				syncCfg.ToleranceTicks = tolerance
			}
			opts, err := timesync.OptionsFromConfig(syncCfg)
			if err != nil {
				return err
			}
			logger, err := cliLogger(cfg, verbose)
			if err != nil {
				return err
			}
			report, err := timesync.NewEngine(opts, logger, nil).Sync(cmd.Context(), dir)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}
			printSyncReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVar(&base, "base", "", "Base stream to align against (defaults to sync.base_stream)")
	cmd.Flags().Uint64Var(&tolerance, "tolerance", 0, "Match tolerance in 100ns ticks (defaults to sync.tolerance_ticks)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the sync report as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log sync progress to stderr")
	return cmd
}

func printSyncReport(out io.Writer, report timesync.Report) {
	fmt.Fprintf(out, "Synchronized %s against %s: %d frames, tolerance %d ticks, %s\n",
		report.Recording, report.BaseStream, report.Frames, report.Tolerance,
		report.Elapsed.Round(time.Millisecond))
	rows := make([][]string, 0, len(report.Streams))
	for _, s := range report.Streams {
		detail := s.Reason
		if s.Truncated {
			detail = strings.TrimSpace(detail + " truncated log")
		}
		if s.MissingPlanes > 0 {
			detail = strings.TrimSpace(fmt.Sprintf("%s %d missing planes", detail, s.MissingPlanes))
		}
		rows = append(rows, []string{
			s.Stream,
			titleLabel(s.Status),
			strconv.Itoa(s.Samples),
			strconv.Itoa(s.Matched),
			strconv.Itoa(s.Unmatched),
			strconv.Itoa(s.Written),
			strconv.Itoa(s.Existing),
			strconv.Itoa(len(s.Gaps)),
			detail,
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Stream", "Status", "Samples", "Matched", "Unmatched", "Written", "Existing", "Gaps", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
}

package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"holocap/internal/timesync"
)

func newGapsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var factor float64

	cmd := &cobra.Command{
		Use:   "gaps <dir>",
		Short: "Report timestamp gaps in a recording without writing anything",
		Args:  cobra.ExactArgs(1),
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
			if cmd.Flags().Changed("factor") {
				syncCfg.GapFactor = factor
			}
			opts, err := timesync.OptionsFromConfig(syncCfg)
			if err != nil {
				return err
			}
			report, err := timesync.NewEngine(opts, nil, nil).Inspect(dir)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}
			printGapReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().Float64Var(&factor, "factor", 0, "Flag deltas longer than factor x period (defaults to sync.gap_factor)")
	return cmd
}

func printGapReport(out io.Writer, report timesync.Report) {
	summary := make([][]string, 0, len(report.Streams))
	var gapRows [][]string
	for _, s := range report.Streams {
		missing := 0
		for _, g := range s.Gaps {
			missing += g.Missing
			gapRows = append(gapRows, []string{
				s.Stream,
				strconv.Itoa(g.Index),
				strconv.FormatUint(g.From, 10),
				strconv.FormatUint(g.To, 10),
				strconv.FormatUint(g.Delta, 10),
				strconv.Itoa(g.Missing),
			})
		}
		summary = append(summary, []string{
			s.Stream,
			titleLabel(s.Status),
			strconv.Itoa(s.Samples),
			strconv.FormatUint(s.Period, 10),
			strconv.Itoa(len(s.Gaps)),
			strconv.Itoa(missing),
			s.Reason,
		})
	}

	fmt.Fprintf(out, "Recording %s (base %s, %d frames)\n", report.Recording, report.BaseStream, report.Frames)
	fmt.Fprint(out, renderTable(
		[]string{"Stream", "Status", "Samples", "Period", "Gaps", "Missing", "Reason"},
		summary,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
	if len(gapRows) == 0 {
		fmt.Fprintln(out, "No gaps detected")
		return
	}
	fmt.Fprint(out, renderTable(
		[]string{"Stream", "Index", "From", "To", "Delta", "Missing"},
		gapRows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
}

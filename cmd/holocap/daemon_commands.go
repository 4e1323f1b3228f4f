package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"holocap/internal/api"
	"holocap/internal/daemonctl"
	"holocap/internal/queue"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startDiagnostic bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the holocap daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonctl.ResolveExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonctl.LaunchOptions{
				ConfigPath: ctx.explicitConfigPath(),
				Diagnostic: startDiagnostic,
			}, 10*time.Second)
			if err != nil {
				return err
			}
			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			printStartResult(stdout, result)
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startDiagnostic, "diagnostic", false, "Enable diagnostic mode with DEBUG logs")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the holocap daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.Signaled && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartDiagnostic bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the holocap daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonctl.ResolveExecutable()
			if err != nil {
				return err
			}
			if _, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second); err != nil && !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				return err
			}
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonctl.LaunchOptions{
				ConfigPath: ctx.explicitConfigPath(),
				Diagnostic: restartDiagnostic,
			}, 10*time.Second)
			if err != nil {
				return err
			}
			printStartResult(stdout, result)
			return nil
		},
	}
	restartCmd.Flags().BoolVar(&restartDiagnostic, "diagnostic", false, "Enable diagnostic mode with DEBUG logs")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, device and catalogue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snap)
			}
			renderStatus(cmd.OutOrStdout(), snap, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func printStartResult(out io.Writer, result daemonctl.StartResult) {
	switch result.State {
	case daemonctl.StartStateStarted:
		fmt.Fprintln(out, "Daemon started")
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintln(out, "Daemon already running")
	default:
		if strings.TrimSpace(result.Message) != "" {
			fmt.Fprintln(out, result.Message)
			return
		}
		fmt.Fprintln(out, "Start request sent")
	}
}

func renderStatus(out io.Writer, snap *daemonctl.Snapshot, colorize bool) {
	status := snap.Status

	printSection(out, "System", colorize)
	if snap.Reachable && status.Running {
		detail := "Running"
		if status.PID > 0 {
			detail = fmt.Sprintf("Running (pid %d)", status.PID)
		}
		fmt.Fprintln(out, renderStatusLine("Holocapd", statusOK, detail, colorize))
	} else if snap.Reachable {
		fmt.Fprintln(out, renderStatusLine("Holocapd", statusWarn, "Workers stopped", colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Holocapd", statusWarn, "Not running (run `holocap start`)", colorize))
	}
	device := status.DeviceMode
	if status.DeviceAddress != "" && status.DeviceAddress != status.DeviceMode {
		device = fmt.Sprintf("%s (%s)", status.DeviceMode, status.DeviceAddress)
	}
	fmt.Fprintln(out, renderStatusLine("Device", statusInfo, device, colorize))
	fmt.Fprintln(out, linkLine(status.Link, colorize))
	fmt.Fprintln(out, renderStatusLine("Session", sessionKind(status.Session.State), sessionDetail(status.Session), colorize))
	fmt.Fprintln(out, renderStatusLine("Auto Sync", statusInfo, yesNo(status.Workflow.AutoSync), colorize))
	if status.Workflow.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last Error", statusError, status.Workflow.LastError, colorize))
	}
	for _, stage := range status.Workflow.StageHealth {
		kind := statusOK
		if !stage.Ready {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(titleLabel(stage.Name)+" Stage", kind, stage.Detail, colorize))
	}
	fmt.Fprintln(out)

	if len(snap.Checks) > 0 {
		printSection(out, "Checks", colorize)
		for _, check := range snap.Checks {
			kind := statusOK
			if !check.Passed {
				kind = statusError
			}
			fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
		}
		fmt.Fprintln(out)
	}

	if len(status.Session.Streams) > 0 {
		printSection(out, "Streams", colorize)
		fmt.Fprint(out, renderTable(
			[]string{"Stream", "State", "Queue", "High", "Read", "Written", "Malformed"},
			buildStreamRows(status.Session.Streams),
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
		))
		fmt.Fprintln(out)
	}

	printSection(out, "Catalogue", colorize)
	rows := buildCatalogueRows(status.Workflow.QueueStats)
	if len(rows) == 0 {
		fmt.Fprintln(out, "No recordings catalogued")
		return
	}
	fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func linkLine(link api.LinkStatus, colorize bool) string {
	switch {
	case link.Interface == "":
		return renderStatusLine("Link", statusInfo, "No interface configured", colorize)
	case link.Up:
		return renderStatusLine("Link", statusOK, link.Detail, colorize)
	default:
		return renderStatusLine("Link", statusWarn, link.Detail, colorize)
	}
}

func sessionKind(state string) statusKind {
	switch state {
	case "recording":
		return statusOK
	case "starting", "stopping":
		return statusWarn
	default:
		return statusInfo
	}
}

func sessionDetail(s api.SessionStatus) string {
	label := titleLabel(s.State)
	if s.Recording == "" {
		return label
	}
	return fmt.Sprintf("%s %s (since %s)", label, s.Recording, s.Started)
}

func buildStreamRows(streams []api.StreamStatus) [][]string {
	rows := make([][]string, 0, len(streams))
	for _, st := range streams {
		rows = append(rows, []string{
			st.Stream,
			titleLabel(st.State),
			strconv.Itoa(st.QueueDepth),
			strconv.Itoa(st.HighWater),
			strconv.FormatUint(st.Read, 10),
			strconv.FormatUint(st.Written, 10),
			strconv.FormatUint(st.Malformed, 10),
		})
	}
	return rows
}

// buildCatalogueRows lists non-zero counts in lifecycle order.
func buildCatalogueRows(stats map[string]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		count := stats[string(status)]
		if count == 0 {
			continue
		}
		rows = append(rows, []string{titleLabel(string(status)), strconv.Itoa(count)})
	}
	return rows
}

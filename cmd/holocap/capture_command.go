package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"holocap/internal/api"
	"holocap/internal/config"
	"holocap/internal/device"
	"holocap/internal/logging"
	"holocap/internal/session"
	"holocap/internal/timesync"
)

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	var duration time.Duration
	var runSync bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "capture [name]",
		Short: "Record in the foreground without the daemon",
		Long: "Capture opens every configured stream in this process and records until\n" +
			"the duration elapses or Ctrl-C is pressed. Use `holocap record` to\n" +
			"record through a running daemon instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = strings.TrimSpace(args[0])
			}
			logger, err := cliLogger(cfg, verbose)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ctrl := session.NewController(cfg, device.NewOpener(cfg), logger,
				session.WithCompanion(device.NewCompanion(cfg)))
			info, err := ctrl.Start(runCtx, name)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recording %s into %s\n", info.Name, info.Dir)
			if duration > 0 {
				fmt.Fprintf(out, "Stopping after %s (Ctrl-C to stop early)\n", duration)
			} else {
				fmt.Fprintln(out, "Press Ctrl-C to stop")
			}

			waitCapture(runCtx, duration)

			// The run context is already cancelled on Ctrl-C; the stop itself
			// still needs time to drain queues and tell the device.
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 30*time.Second)
			defer cancel()
			summary, err := ctrl.Stop(stopCtx)
			if err != nil {
				return err
			}
			printSessionSummary(out, api.FromSummary(summary))

			if !runSync {
				return nil
			}
			opts, err := timesync.OptionsFromConfig(cfg.Sync)
			if err != nil {
				return err
			}
			report, err := timesync.NewEngine(opts, logger, nil).Sync(stopCtx, summary.Dir)
			if err != nil {
				return fmt.Errorf("sync %s: %w", summary.Name, err)
			}
			printSyncReport(out, report)
			return nil
		},
	}

	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Stop automatically after this long (0 records until interrupted)")
	cmd.Flags().BoolVar(&runSync, "sync", false, "Synchronize the recording after it stops")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log capture progress to stderr")
	return cmd
}

func waitCapture(ctx context.Context, duration time.Duration) {
	if duration <= 0 {
		<-ctx.Done()
		return
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// cliLogger logs to stderr so command output on stdout stays parseable.
func cliLogger(cfg *config.Config, verbose bool) (*slog.Logger, error) {
	level := "warn"
	if verbose {
		level = cfg.Logging.Level
	}
	return logging.New(logging.Options{
		Level:   level,
		Format:  "console",
		Outputs: []string{"stderr"},
	})
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"holocap/internal/api"
	"holocap/internal/ipc"
	"holocap/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var q logs.StreamQuery

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		Long: "Logs prints structured daemon events from the HTTP API, falling back to\n" +
			"the IPC socket and finally to the last run's log file when holocapd is\n" +
			"not running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			q.Limit = lines
			q.Follow = follow
			q.Recording = strings.TrimSpace(q.Recording)
			q.Stream = strings.TrimSpace(q.Stream)

			err = streamLogsFromAPI(cmd, cfg.Paths.APIBind, cfg.Paths.APIToken, q)
			if !errors.Is(err, logs.ErrAPIUnavailable) {
				return err
			}
			client, dialErr := ipc.Dial(ctx.socketPath())
			if dialErr == nil {
				defer client.Close()
				return streamLogsFromIPC(cmd, client, q)
			}
			return tailLogFile(cmd, logs.CurrentLogPath(cfg.Paths.LogDir), lines, follow)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of recent events to show")
	cmd.Flags().StringVar(&q.Recording, "recording", "", "Only show events for this recording")
	cmd.Flags().StringVar(&q.Stream, "stream", "", "Only show events for this stream")
	cmd.Flags().StringVar(&q.Component, "component", "", "Only show events from this component (API only)")
	return cmd
}

func streamLogsFromAPI(cmd *cobra.Command, bind, token string, q logs.StreamQuery) error {
	client, err := logs.NewStreamClient(bind, token)
	if err != nil {
		return err
	}
	if client == nil {
		return logs.ErrAPIUnavailable
	}
	follow := q.Follow
	q.Tail = true
	q.Follow = false

	out := cmd.OutOrStdout()
	printed := false
	for {
		resp, err := client.Fetch(cmd.Context(), q)
		if err != nil {
			if logs.IsAPIUnavailable(err) {
				return logs.ErrAPIUnavailable
			}
			if follow && errors.Is(cmd.Context().Err(), context.Canceled) {
				return nil
			}
			return err
		}
		for _, evt := range resp.Events {
			fmt.Fprintln(out, formatLogEvent(evt))
			printed = true
		}
		if !follow {
			if !printed {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		}
		q.Since = resp.Next
		q.Limit = 200
		q.Tail = false
		q.Follow = true
	}
}

func streamLogsFromIPC(cmd *cobra.Command, client *ipc.Client, q logs.StreamQuery) error {
	runCtx := cmd.Context()
	out := cmd.OutOrStdout()
	req := ipc.LogTailRequest{
		Limit:      q.Limit,
		WaitMillis: 1000,
		Recording:  q.Recording,
		Stream:     q.Stream,
		Component:  q.Component,
	}
	printed := false
	for {
		resp, err := client.LogTail(req)
		if err != nil {
			return fmt.Errorf("tail logs: %w", err)
		}
		if resp == nil {
			return errors.New("log tail response missing")
		}
		for _, evt := range resp.Events {
			fmt.Fprintln(out, formatLogEvent(evt))
			printed = true
		}
		if !q.Follow {
			if !printed {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		}
		req.Since = resp.Next
		req.Limit = 0
		req.Follow = true
		select {
		case <-runCtx.Done():
			return nil
		default:
		}
	}
}

// tailLogFile prints raw lines from the last daemon run's log file.
func tailLogFile(cmd *cobra.Command, path string, lines int, follow bool) error {
	runCtx := cmd.Context()
	out := cmd.OutOrStdout()
	opts := logs.TailOptions{Offset: -1, Limit: lines}
	res, err := logs.Tail(runCtx, path, opts)
	if err != nil {
		return err
	}
	if len(res.Lines) == 0 && !follow {
		fmt.Fprintln(out, "No log entries available")
		return nil
	}
	for {
		for _, line := range res.Lines {
			fmt.Fprintln(out, line)
		}
		if !follow {
			return nil
		}
		res, err = logs.Tail(runCtx, path, logs.TailOptions{Offset: res.Offset, Follow: true, Wait: time.Second})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func formatLogEvent(evt api.LogEvent) string {
	ts := evt.Timestamp
	if parsed, ok := api.ParseTime(evt.Timestamp); ok {
		ts = parsed.Local().Format("2006-01-02 15:04:05")
	}
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{ts, level}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, "["+component+"]")
	}
	if subject := composeSubject(evt.RecordingID, evt.Stream); subject != "" {
		parts = append(parts, subject)
	}
	line := strings.Join(parts, " ")
	if message := strings.TrimSpace(evt.Message); message != "" {
		line += " - " + message
	}
	if len(evt.Fields) == 0 {
		return line
	}
	var b strings.Builder
	b.WriteString(line)
	writeFields(&b, evt.Fields)
	return b.String()
}

func composeSubject(recording, streamName string) string {
	switch {
	case recording != "" && streamName != "":
		return fmt.Sprintf("%s/%s", recording, streamName)
	case recording != "":
		return recording
	default:
		return streamName
	}
}

func writeFields(w io.StringWriter, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := strings.TrimSpace(fields[key])
		if value == "" {
			continue
		}
		_, _ = w.WriteString("\n    - " + key + ": " + value)
	}
}

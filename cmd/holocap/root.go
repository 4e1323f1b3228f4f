package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

const (
	groupDaemon    = "daemon"
	groupRecording = "recording"
	groupOffline   = "offline"
)

func newRootCommand() *cobra.Command {
	var socket, configFile string
	ctx := newCommandContext(&socket, &configFile)

	root := &cobra.Command{
		Use:           "holocap",
		Short:         "Capture and synchronize head-mounted sensor recordings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	flags := root.PersistentFlags()
	flags.StringVar(&socket, "socket", "", "holocapd control socket (default: from config)")
	flags.StringVarP(&configFile, "config", "c", "", "Path to holocap.toml")

	root.AddGroup(
		&cobra.Group{ID: groupDaemon, Title: "Daemon:"},
		&cobra.Group{ID: groupRecording, Title: "Recordings:"},
		&cobra.Group{ID: groupOffline, Title: "Offline tools:"},
	)
	attach := func(group string, cmds ...*cobra.Command) {
		for _, c := range cmds {
			c.GroupID = group
			root.AddCommand(c)
		}
	}
	attach(groupDaemon, newDaemonCommands(ctx)...)
	attach(groupDaemon, newLogsCommand(ctx))
	attach(groupRecording, newRecordCommand(ctx), newRecordingsCommand(ctx))
	attach(groupOffline, newCaptureCommand(ctx), newSyncCommand(ctx), newGapsCommand(ctx), newConfigCommand(ctx))
	return root
}

// writeJSON is the --json rendering shared by list and report commands.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

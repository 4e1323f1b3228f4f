// Package logging builds the slog loggers used by holocapd, the CLI and
// per-recording capture logs.
//
// Records carry a small fixed vocabulary of keys (component, recording_id,
// stream, stage, item_id) that the console handler lifts into its header and
// the StreamHub lifts into LogEvent fields for the log tail endpoints.
package logging

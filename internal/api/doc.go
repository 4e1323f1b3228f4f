// Package api defines wire-format types and converters shared by the daemon
// HTTP API and the IPC socket. It translates catalogue rows, session
// snapshots, and workflow summaries into DTOs that the CLI and other
// consumers can render without coupling to internal types.
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status, stream kinds)
// are exposed as lowercase strings. Timestamps use RFC3339 with milliseconds.
package api

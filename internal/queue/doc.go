// Package queue persists the recording catalogue in SQLite and exposes
// helpers for driving each recording's lifecycle.
//
// A recording enters the catalogue when capture starts (StatusRecording),
// becomes StatusCaptured once the session stops, and is then picked up by the
// background sync lane (StatusSyncing → StatusSynced). Recordings whose raw
// base stream is missing end in StatusSkipped; other failures land in
// StatusFailed and can be retried.
//
// The Store wraps every write in a short SQLITE_BUSY retry loop so the API,
// IPC server and workflow lane can share one database file. Schema changes bump
// schemaVersion in schema.go; operators clear the database to adopt them.
package queue

// Package logs reads daemon logs for the CLI.
//
// StreamClient pulls structured events from the daemon's /api/logs endpoint,
// with the same cursor semantics as the IPC LogTail method. Tail reads the
// plain log file behind <log_dir>/holocap.log when no daemon is reachable,
// so `holocap logs` still shows the last run after holocapd exits.
package logs

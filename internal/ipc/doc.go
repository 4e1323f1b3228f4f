// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the holocap CLI.
//
// Request and response types reuse the api DTOs so the socket and the HTTP
// surface describe recordings, sessions and health the same way.
package ipc

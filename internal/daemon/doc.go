// Package daemon coordinates the long-running holocapd process.
//
// It wires configuration, the recording catalogue, the capture session
// controller, the background sync workflow, and the device link monitor into
// a single lifecycle with flock-based locking to prevent multiple instances.
// Finished sessions are catalogued as captured and the sync lane is woken.
// The daemon also serves the HTTP API (chi) with optional bearer auth and a
// Prometheus /metrics endpoint.
//
// Keep orchestration logic here: capture and sync live in their own packages
// while the daemon focuses on startup, shutdown, and high level coordination.
package daemon

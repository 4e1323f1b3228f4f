// Package metrics exposes Prometheus collectors for the capture pipeline,
// the synchronization engine and the daemon HTTP API.
//
// Every recording method is safe on a nil *Metrics so components can be built
// without a registry in tests and offline CLI runs.
package metrics

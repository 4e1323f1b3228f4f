// Package services defines shared utilities consumed by the capture pipeline,
// the synchronization engine, and the workflow stage handlers.
//
// Key responsibilities:
//   - Context helpers that stamp recording ids, stream names, catalogue item
//     IDs, stage names, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     stream-local (unavailable, malformed, write) or recording-level (missing
//     input, configuration).
//
// Use these helpers when wiring new pipeline code so failure classification
// and observability stay uniform.
package services

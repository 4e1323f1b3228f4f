// Package transfer provides the per-stream Transfer Queue that decouples
// packet acquisition from disk persistence.
//
// Each active stream gets its own Queue; nothing is shared across streams.
// Pop takes a timeout so consumers can periodically re-check their stop flag
// without mistaking a stall for end-of-stream.
package transfer

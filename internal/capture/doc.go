// Package capture implements the per-stream Producer and Consumer workers and
// the writer strategies that persist packets to disk.
//
// A Producer reads packets from a stream.Source and pushes their envelopes
// into a transfer.Queue. A Consumer pops them, enforces strictly increasing
// timestamps, and dispatches to the Writer for the stream's layout:
//
//	frames  color-<ts>.jpg + pose.hlog
//	planes  depth/depth-<ts>.png, ab/ab-<ts>.png + pose.hlog
//	log     <stream>.hlog
//
// Malformed packets are skipped. Write failures end the stream and are
// returned to the caller; they never touch other streams.
package capture

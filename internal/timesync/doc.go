// Package timesync aligns the streams of a finished recording onto the frame
// ordinals of a base stream.
//
// The engine reads <recording>/raw, picks the base stream (video by default)
// as the master timeline, and for every other stream finds the nearest
// timestamp per base frame within a tolerance. Matched data is written under
// <recording>/sync keyed by ordinal, together with a meta.yaml descriptor.
// All outputs are skip-if-exists and published by rename, so a rerun over a
// finished directory does no work.
package timesync

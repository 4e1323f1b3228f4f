// Package session implements the Recording Session Controller.
//
// A Controller moves through idle, recording and stopping. Start resolves
// the configured streams, lays out <data_dir>/<name>/raw/<stream>, writes
// raw/device.toml and launches one capture.Producer and one capture.Consumer
// per stream. Stop cancels producers, joins them, lets consumers drain, joins
// them, then ends the device companion's recording.
//
// Failures stay inside their stream: a source that cannot open leaves an
// UNAVAILABLE marker and a write failure marks the stream failed, while the
// remaining streams record to completion.
package session

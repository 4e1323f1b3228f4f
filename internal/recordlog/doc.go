// Package recordlog implements the append-only binary record log used for
// pose sequences and log-layout streams (spatial tracking, IMU, microphone).
//
// A log starts with the HCAPLOG1 magic and a key mode byte. Raw capture logs
// are keyed by device timestamp; synchronized logs are keyed by base-stream
// frame ordinal and keep the matched original timestamp alongside. Records
// are little-endian: key, timestamp, payload length, flags, payload, and an
// optional 64-byte pose.
package recordlog

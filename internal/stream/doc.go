// Package stream defines the closed set of sensor stream kinds, the Packet
// type moved through the capture pipeline, the envelope wire form used inside
// transfer queues, and the Source contract implemented by device adapters.
package stream

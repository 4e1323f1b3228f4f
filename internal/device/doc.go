// Package device adapts the head-mounted capture device to stream.Source.
//
// In tcp mode each stream is read from its own port using a fixed framing
// (timestamp, size, payload, optional pose). In simulated mode packets are
// synthesized at each kind's nominal rate. The Control client drives the
// device's companion recording state over a line-based control port.
package device

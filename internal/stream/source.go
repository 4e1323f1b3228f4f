package stream

import "context"

// Source is a live connection to one device stream. ReadNext blocks until the
// next packet arrives, the connection fails, or ctx ends.
type Source interface {
	Open(ctx context.Context) error
	ReadNext(ctx context.Context) (Packet, error)
	Close() error
}

// Opener builds the Source for a kind. Returning an error means the stream is
// not supported or not configured.
type Opener func(kind Kind) (Source, error)

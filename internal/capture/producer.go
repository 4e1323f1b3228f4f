package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"holocap/internal/logging"
	"holocap/internal/metrics"
	"holocap/internal/services"
	"holocap/internal/stream"
	"holocap/internal/transfer"
)

// Producer bridges one live device stream into its transfer queue.
type Producer struct {
	kind    stream.Kind
	source  stream.Source
	queue   *transfer.Queue
	logger  *slog.Logger
	metrics *metrics.Metrics

	packets   atomic.Uint64
	closeOnce sync.Once
	closeErr  error
}

// NewProducer wires a source to a queue. logger and m may be nil.
func NewProducer(kind stream.Kind, source stream.Source, queue *transfer.Queue, logger *slog.Logger, m *metrics.Metrics) *Producer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Producer{
		kind:    kind,
		source:  source,
		queue:   queue,
		logger:  logger.With(logging.String(logging.FieldStream, string(kind))),
		metrics: m,
	}
}

// Kind returns the stream the producer serves.
func (p *Producer) Kind() stream.Kind { return p.kind }

// Packets returns the number of packets enqueued so far.
func (p *Producer) Packets() uint64 { return p.packets.Load() }

// Run opens the source and moves packets into the queue until ctx is
// cancelled. Cancellation is the stop request and returns nil once the
// in-flight read completes. An open failure returns an error wrapping
// services.ErrUnavailable; a read failure ends the stream with an error
// wrapping services.ErrTransient. The source is closed exactly once.
func (p *Producer) Run(ctx context.Context) error {
	defer p.closeSource()

	if err := p.source.Open(ctx); err != nil {
		return services.WithHint(
			services.Wrap(services.ErrUnavailable, "capture", "open source", string(p.kind), err),
			"check the device stream is enabled and reachable",
		)
	}
	p.logger.Debug("producer started")

	for {
		if ctx.Err() != nil {
			return p.stopped("stop requested")
		}
		pkt, err := p.source.ReadNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return p.stopped("stop requested")
			}
			if errors.Is(err, io.EOF) {
				return p.stopped("source ended")
			}
			return services.Wrap(services.ErrTransient, "capture", "read packet", string(p.kind), err)
		}
		p.metrics.Packet(string(p.kind), metrics.OutcomeRead)

		if err := p.queue.Push(ctx, stream.EncodeEnvelope(pkt)); err != nil {
			if errors.Is(err, transfer.ErrClosed) || ctx.Err() != nil {
				return p.stopped("queue closed")
			}
			return services.Wrap(services.ErrTransient, "capture", "enqueue packet", string(p.kind), err)
		}
		p.packets.Add(1)
	}
}

func (p *Producer) stopped(reason string) error {
	p.logger.Debug("producer stopped",
		logging.String("reason", reason),
		logging.Uint64("packets_read", p.packets.Load()),
	)
	return nil
}

func (p *Producer) closeSource() {
	p.closeOnce.Do(func() {
		p.closeErr = p.source.Close()
		if p.closeErr != nil {
			p.logger.Debug("source close failed", logging.Error(p.closeErr))
		}
	})
}

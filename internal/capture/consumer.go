package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"holocap/internal/logging"
	"holocap/internal/metrics"
	"holocap/internal/services"
	"holocap/internal/stream"
	"holocap/internal/transfer"
)

// State is the lifecycle state of a Consumer.
type State int32

const (
	StateRunning State = iota
	StateDrained
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDrained:
		return "drained"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultPopTimeout is the queue poll interval used when none is configured.
const DefaultPopTimeout = 3 * time.Second

// ConsumerStats summarizes what a consumer persisted.
type ConsumerStats struct {
	Written       uint64
	Malformed     uint64
	OutOfOrder    uint64
	LastTimestamp uint64
}

// Consumer drains one stream's transfer queue into its Writer.
type Consumer struct {
	kind    stream.Kind
	queue   *transfer.Queue
	writer  Writer
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	stop  atomic.Bool
	state atomic.Int32

	written    atomic.Uint64
	malformed  atomic.Uint64
	outOfOrder atomic.Uint64
	lastTS     atomic.Uint64
	haveLast   bool

	closeOnce sync.Once
	closeErr  error
}

// NewConsumer wires a queue to a writer. A non-positive timeout falls back to
// DefaultPopTimeout. logger and m may be nil.
func NewConsumer(kind stream.Kind, queue *transfer.Queue, writer Writer, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Consumer {
	if timeout <= 0 {
		timeout = DefaultPopTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Consumer{
		kind:    kind,
		queue:   queue,
		writer:  writer,
		timeout: timeout,
		logger:  logger.With(logging.String(logging.FieldStream, string(kind))),
		metrics: m,
	}
}

// Kind returns the stream the consumer serves.
func (c *Consumer) Kind() stream.Kind { return c.kind }

// State returns the current lifecycle state.
func (c *Consumer) State() State { return State(c.state.Load()) }

// Stop requests a drain: the consumer exits once the queue is empty.
func (c *Consumer) Stop() { c.stop.Store(true) }

// Stats returns the persisted counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Written:       c.written.Load(),
		Malformed:     c.malformed.Load(),
		OutOfOrder:    c.outOfOrder.Load(),
		LastTimestamp: c.lastTS.Load(),
	}
}

// Run pops and persists packets until the queue is empty and a stop was
// requested (Stop, queue Close, or ctx done), then closes the writer. A write
// failure moves the consumer to StateFailed and is returned; malformed
// packets are skipped.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		item, err := c.queue.Pop(ctx, c.timeout)
		switch {
		case err == nil:
		case errors.Is(err, transfer.ErrTimeout):
			if c.stop.Load() {
				return c.finish(StateDrained, nil)
			}
			c.logger.Debug("queue idle, still recording", logging.Duration("timeout", c.timeout))
			continue
		case errors.Is(err, transfer.ErrClosed), ctx.Err() != nil:
			return c.finish(StateDrained, nil)
		default:
			return c.finish(StateFailed, err)
		}

		if err := c.persist(item); err != nil {
			return c.finish(StateFailed, err)
		}
	}
}

func (c *Consumer) persist(item []byte) error {
	pkt, err := stream.DecodeEnvelope(item)
	if err != nil {
		c.reject(err)
		return nil
	}
	if c.haveLast && pkt.Timestamp <= c.lastTS.Load() {
		c.outOfOrder.Add(1)
		c.reject(services.Wrap(services.ErrMalformed, "capture", "order check", "timestamp not increasing", nil),
			logging.Uint64("timestamp", pkt.Timestamp),
			logging.Uint64("previous", c.lastTS.Load()))
		return nil
	}
	if err := c.writer.Write(pkt); err != nil {
		if errors.Is(err, services.ErrMalformed) {
			c.reject(err)
			return nil
		}
		return err
	}
	c.haveLast = true
	c.lastTS.Store(pkt.Timestamp)
	c.written.Add(1)
	c.metrics.Packet(string(c.kind), metrics.OutcomeWritten)
	return nil
}

func (c *Consumer) reject(err error, attrs ...logging.Attr) {
	c.malformed.Add(1)
	c.metrics.Packet(string(c.kind), metrics.OutcomeMalformed)
	c.logger.Debug("packet skipped", logging.Args(append(attrs, logging.Error(err))...)...)
}

func (c *Consumer) finish(state State, err error) error {
	c.closeOnce.Do(func() {
		c.closeErr = c.writer.Close()
	})
	if err == nil && c.closeErr != nil {
		state, err = StateFailed, c.closeErr
	}
	c.state.Store(int32(state))
	stats := c.Stats()
	c.logger.Debug("consumer finished",
		logging.String("state", state.String()),
		logging.Uint64("packets_written", stats.Written),
		logging.Uint64("packets_malformed", stats.Malformed),
	)
	return err
}

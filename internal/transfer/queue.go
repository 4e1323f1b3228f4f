package transfer

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrTimeout is returned by Pop when no item arrived within the timeout.
	// It is a polling signal, not a failure.
	ErrTimeout = errors.New("transfer queue: pop timed out")
	// ErrClosed is returned by Push after Close, and by Pop once the queue is
	// closed and fully drained.
	ErrClosed = errors.New("transfer queue: closed")
)

// Stats is a point-in-time view of queue counters.
type Stats struct {
	Depth     int
	HighWater int
	Capacity  int
	Pushed    uint64
	Popped    uint64
	Closed    bool
}

// Queue is a FIFO hand-off of envelope bytes between one stream's producer
// and consumer. Items are never reordered or dropped while the queue is open.
type Queue struct {
	mu       sync.Mutex
	items    [][]byte
	head     int
	capacity int
	closed   bool
	changed  chan struct{}

	highWater int
	pushed    uint64
	popped    uint64
}

// New returns a queue holding at most capacity items. Capacity 0 means
// unbounded, so Push never blocks.
func New(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{capacity: capacity, changed: make(chan struct{})}
}

// broadcastLocked wakes every waiter. Callers must hold q.mu.
func (q *Queue) broadcastLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

func (q *Queue) lenLocked() int {
	return len(q.items) - q.head
}

// Push appends item. On a bounded, full queue it waits for space, ctx, or
// Close.
func (q *Queue) Push(ctx context.Context, item []byte) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrClosed
		}
		if q.capacity == 0 || q.lenLocked() < q.capacity {
			q.items = append(q.items, item)
			q.pushed++
			if depth := q.lenLocked(); depth > q.highWater {
				q.highWater = depth
			}
			q.broadcastLocked()
			q.mu.Unlock()
			return nil
		}
		wait := q.changed
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pop removes and returns the oldest item. It waits up to timeout for one to
// arrive and returns ErrTimeout otherwise. A non-positive timeout polls once.
// After Close, remaining items are still returned; ErrClosed follows once the
// queue is empty.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		q.mu.Lock()
		if q.lenLocked() > 0 {
			item := q.items[q.head]
			q.items[q.head] = nil
			q.head++
			q.compactLocked()
			q.popped++
			q.broadcastLocked()
			q.mu.Unlock()
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}
		if deadline == nil {
			q.mu.Unlock()
			return nil, ErrTimeout
		}
		wait := q.changed
		q.mu.Unlock()

		select {
		case <-wait:
		case <-deadline:
			return nil, ErrTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *Queue) compactLocked() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}
	if q.head > 1024 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
}

// Close stops accepting new items and wakes all waiters. It is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.broadcastLocked()
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Stats returns current counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Depth:     q.lenLocked(),
		HighWater: q.highWater,
		Capacity:  q.capacity,
		Pushed:    q.pushed,
		Popped:    q.popped,
		Closed:    q.closed,
	}
}

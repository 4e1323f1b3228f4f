package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"holocap/internal/config"
	"holocap/internal/logging"
	"holocap/internal/metrics"
	"holocap/internal/preflight"
	"holocap/internal/queue"
)

const minPollInterval = 50 * time.Millisecond

// Manager coordinates catalogue processing using the registered stage.
type Manager struct {
	cfg           *config.Config
	store         *queue.Store
	logger        *slog.Logger
	metrics       *metrics.Metrics
	pollInterval  time.Duration
	retryInterval time.Duration
	autoSync      bool
	preflight     func(*config.Config) []preflight.Result

	heartbeat heartbeat
	recLogs   *RecordingLogger

	lane *syncLane
	wake chan struct{}

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastRec   *queue.Recording
	requested map[int64]struct{}
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithMetrics records catalogue gauges on m.
func WithMetrics(m *metrics.Metrics) ManagerOption {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithPreflight replaces the storage checks run before each recording.
func WithPreflight(fn func(*config.Config) []preflight.Result) ManagerOption {
	return func(mgr *Manager) {
		if fn != nil {
			mgr.preflight = fn
		}
	}
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	poll := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	if poll < minPollInterval {
		poll = minPollInterval
	}
	retry := time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second
	if retry < minPollInterval {
		retry = minPollInterval
	}
	m := &Manager{
		cfg:           cfg,
		store:         store,
		logger:        logger,
		pollInterval:  poll,
		retryInterval: retry,
		autoSync:      cfg.Sync.AutoSync,
		preflight:     preflight.RunStorageChecks,
		heartbeat: heartbeat{
			store:    store,
			interval: time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second,
			timeout:  time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second,
		},
		recLogs:   NewRecordingLogger(cfg),
		wake:      make(chan struct{}, 1),
		requested: make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Wake interrupts the poll wait so newly captured recordings start promptly.
func (m *Manager) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

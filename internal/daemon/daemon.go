package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"holocap/internal/config"
	"holocap/internal/device"
	"holocap/internal/logging"
	"holocap/internal/metrics"
	"holocap/internal/preflight"
	"holocap/internal/queue"
	"holocap/internal/services"
	"holocap/internal/session"
	"holocap/internal/stream"
	"holocap/internal/workflow"
)

// ErrRecordingNotFound is returned when a recording id is not catalogued.
var ErrRecordingNotFound = errors.New("recording not found")

// Daemon coordinates capture sessions, background sync, and the operator
// surfaces, and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	session  *session.Controller
	metrics  *metrics.Metrics
	logPath  string

	logHub     *logging.StreamHub
	logArchive *logging.EventArchive

	lockPath string
	lock     *flock.Flock

	apiServer *apiServer
	link      *linkMonitor

	running atomic.Bool
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Session       session.Snapshot
	Link          LinkStatus
	Workflow      workflow.StatusSummary
	CatalogPath   string
	LockFilePath  string
	SocketPath    string
	APIBind       string
	DeviceMode    string
	DeviceAddress string
}

// Option customizes daemon construction.
type Option func(*options)

type options struct {
	opener    stream.Opener
	companion session.Companion
	metrics   *metrics.Metrics
	logPath   string
	hub       *logging.StreamHub
	archive   *logging.EventArchive
}

// WithOpener replaces the device stream opener.
func WithOpener(opener stream.Opener) Option {
	return func(o *options) { o.opener = opener }
}

// WithCompanion replaces the device control client.
func WithCompanion(c session.Companion) Option {
	return func(o *options) { o.companion = c }
}

// WithMetrics attaches the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogStream exposes the in-memory log hub and its on-disk archive over the API.
func WithLogStream(hub *logging.StreamHub, archive *logging.EventArchive) Option {
	return func(o *options) {
		o.hub = hub
		o.archive = archive
	}
}

// WithLogPath records the daemon log file location.
func WithLogPath(path string) Option {
	return func(o *options) { o.logPath = path }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := options{logPath: filepath.Join(cfg.Paths.LogDir, "holocap.log")}
	for _, opt := range opts {
		opt(&o)
	}
	if o.opener == nil {
		o.opener = device.NewOpener(cfg)
	}
	if o.companion == nil {
		o.companion = device.NewCompanion(cfg)
	}

	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		workflow:   wf,
		metrics:    o.metrics,
		logPath:    o.logPath,
		logHub:     o.hub,
		logArchive: o.archive,
		lockPath:   cfg.LockPath(),
		lock:       flock.New(cfg.LockPath()),
	}
	d.session = session.NewController(cfg, o.opener, logger,
		session.WithCompanion(o.companion),
		session.WithMetrics(o.metrics),
		session.WithOnComplete(d.catalogueCapture),
	)
	d.link = newLinkMonitor(cfg, logger, o.metrics, d.handleLinkLoss)

	apiSrv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiServer = apiSrv
	return d, nil
}

// Start acquires the daemon lock, then launches the workflow manager, the
// API server, and the device link monitor.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another holocap daemon instance is already running")
	}

	if reset, err := d.store.ResetStuckProcessing(ctx); err != nil {
		d.logger.Warn("failed to reset interrupted syncs",
			logging.Error(err),
			logging.String(logging.FieldEventType, "reset_stuck_failed"),
			logging.String(logging.FieldErrorHint, "run holocap recordings health"),
			logging.String(logging.FieldImpact, "interrupted recordings stay in syncing until reclaimed"),
		)
	} else if reset > 0 {
		d.logger.Info("interrupted syncs requeued",
			logging.String(logging.FieldEventType, "reset_stuck"),
			logging.Int64("count", reset))
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.apiServer.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.abortStart()
		return err
	}
	d.link.Start(d.ctx)

	d.running.Store(true)
	d.logger.Info("holocap daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("device_mode", d.cfg.Device.Mode),
		logging.Bool("auto_sync", d.cfg.Sync.AutoSync),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// Stop ends any active recording, stops background processing, and
// releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if _, err := d.session.Stop(context.Background()); err == nil {
		d.logger.Info("active recording stopped for shutdown",
			logging.String(logging.FieldEventType, "recording_stopped_shutdown"))
	}
	d.link.Stop()
	d.apiServer.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if the next start fails"),
			logging.String(logging.FieldImpact, "next daemon start may be refused"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("holocap daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.logArchive != nil {
		_ = d.logArchive.Close()
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// StartRecording begins a capture session and catalogues it as recording.
func (d *Daemon) StartRecording(ctx context.Context, name string) (session.Info, error) {
	info, err := d.session.Start(ctx, name)
	if err != nil {
		return session.Info{}, err
	}
	if _, err := d.store.NewRecording(ctx, info.Name, info.Dir, queue.StatusRecording, info.Streams); err != nil {
		logging.WarnWithContext(d.logger, "recording not catalogued at start", "catalogue_insert_failed",
			logging.Error(err),
			logging.String(logging.FieldRecordingID, info.Name),
			logging.String(logging.FieldErrorHint, "run holocap recordings health"),
			logging.String(logging.FieldImpact, "recording is catalogued again when it stops"),
		)
	}
	return info, nil
}

// StopRecording ends the active capture session.
func (d *Daemon) StopRecording(ctx context.Context) (session.Summary, error) {
	return d.session.Stop(ctx)
}

// Session exposes the capture session controller.
func (d *Daemon) Session() *session.Controller {
	return d.session
}

// catalogueCapture moves a finished session to captured and wakes the sync lane.
func (d *Daemon) catalogueCapture(summary session.Summary) {
	ctx := context.Background()
	logger := d.logger.With(logging.String(logging.FieldRecordingID, summary.Name))
	rec, err := d.store.FindByName(ctx, summary.Name)
	if err == nil && rec == nil {
		rec, err = d.store.NewRecording(ctx, summary.Name, summary.Dir, queue.StatusCaptured, summary.Streams)
	}
	if err != nil {
		logging.ErrorWithContext(logger, "finished recording not catalogued", "catalogue_capture_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "import the directory with holocap recordings import"),
			logging.String(logging.FieldImpact, "recording will not be synchronized automatically"),
		)
		return
	}
	rec.Status = queue.StatusCaptured
	rec.Unavailable = append([]string(nil), summary.Unavailable...)
	rec.ProgressStage = "Captured"
	rec.ProgressMessage = summary.Result()
	rec.ProgressPercent = 0
	if err := d.store.Update(ctx, rec); err != nil {
		logging.ErrorWithContext(logger, "finished recording status not saved", "catalogue_capture_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run holocap recordings health"),
			logging.String(logging.FieldImpact, "recording stays in recording status"),
		)
		return
	}
	logger.Info("recording catalogued",
		logging.String(logging.FieldEventType, "recording_catalogued"),
		logging.Int64(logging.FieldItemID, rec.ID),
		logging.String("result", summary.Result()),
	)
	d.workflow.Wake()
}

func (d *Daemon) handleLinkLoss() {
	if !d.cfg.Device.StopOnLinkLoss {
		return
	}
	summary, err := d.session.Stop(context.Background())
	if err != nil {
		return
	}
	logging.WarnWithContext(d.logger, "recording stopped after device link loss", "recording_stopped_link_loss",
		logging.String(logging.FieldRecordingID, summary.Name),
		logging.String(logging.FieldErrorHint, "check the device cable or network interface"),
		logging.String(logging.FieldImpact, "capture ended early"),
	)
}

// ListRecordings returns catalogued recordings filtered by optional statuses.
func (d *Daemon) ListRecordings(ctx context.Context, statuses []queue.Status) ([]*queue.Recording, error) {
	return d.store.List(ctx, statuses...)
}

// GetRecording returns a single recording or ErrRecordingNotFound.
func (d *Daemon) GetRecording(ctx context.Context, id int64) (*queue.Recording, error) {
	rec, err := d.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %d", ErrRecordingNotFound, id)
	}
	return rec, nil
}

// ImportRecording catalogues an existing recording directory as captured.
// The directory must contain raw/; the stream list comes from
// raw/device.toml when present, otherwise from the raw stream directories.
func (d *Daemon) ImportRecording(ctx context.Context, dir string) (*queue.Recording, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "import recording", "directory is required", nil)
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve recording path: %w", err)
	}
	info, err := os.Stat(filepath.Join(absPath, session.RawDir))
	if err != nil || !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "daemon", "import recording",
			fmt.Sprintf("%s has no %s directory", absPath, session.RawDir), err)
	}
	streams := importStreams(absPath)
	rec, err := d.store.NewRecording(ctx, filepath.Base(absPath), absPath, queue.StatusCaptured, streams)
	if errors.Is(err, queue.ErrDuplicateName) {
		return nil, services.Wrap(services.ErrValidation, "daemon", "import recording", "", err)
	}
	if err != nil {
		return nil, fmt.Errorf("catalogue recording: %w", err)
	}
	d.logger.Info("recording imported",
		logging.String(logging.FieldEventType, "recording_imported"),
		logging.Int64(logging.FieldItemID, rec.ID),
		logging.String(logging.FieldRecordingID, rec.Name),
		logging.String("dir", absPath),
	)
	d.workflow.Wake()
	return rec, nil
}

func importStreams(dir string) []string {
	if devInfo, err := session.ReadDeviceInfo(dir); err == nil && len(devInfo.Streams) > 0 {
		return devInfo.Streams
	}
	var streams []string
	for _, kind := range stream.AllKinds() {
		if info, err := os.Stat(filepath.Join(dir, session.RawDir, string(kind))); err == nil && info.IsDir() {
			streams = append(streams, string(kind))
		}
	}
	return streams
}

// RetryFailed requeues failed recordings (optionally a subset).
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	if !d.cfg.Sync.AutoSync {
		targets := ids
		if len(targets) == 0 {
			failed, err := d.store.List(ctx, queue.StatusFailed)
			if err != nil {
				return 0, err
			}
			for _, rec := range failed {
				targets = append(targets, rec.ID)
			}
		}
		if len(targets) == 0 {
			return 0, nil
		}
		n, err := d.workflow.Request(ctx, targets...)
		return int64(n), err
	}
	updated, err := d.store.RetryFailed(ctx, ids...)
	if err == nil && updated > 0 {
		d.workflow.Wake()
	}
	return updated, err
}

// SyncRecordings schedules recordings for synchronization now, regardless of
// auto_sync.
func (d *Daemon) SyncRecordings(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, services.Wrap(services.ErrValidation, "daemon", "sync recordings", "at least one id is required", nil)
	}
	return d.workflow.Request(ctx, ids...)
}

// RemoveRecording drops a recording from the catalogue. Files stay on disk.
func (d *Daemon) RemoveRecording(ctx context.Context, id int64) error {
	rec, err := d.GetRecording(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status == queue.StatusRecording || rec.Status == queue.StatusSyncing {
		return services.Wrap(services.ErrValidation, "daemon", "remove recording",
			fmt.Sprintf("recording %d is %s", id, rec.Status), nil)
	}
	_, err = d.store.Remove(ctx, id)
	return err
}

// ClearRecordings removes every catalogue row. Files stay on disk.
func (d *Daemon) ClearRecordings(ctx context.Context) (int64, error) {
	if d.session.State() != session.StateIdle {
		return 0, services.Wrap(services.ErrValidation, "daemon", "clear catalogue", "a recording is in progress", nil)
	}
	return d.store.Clear(ctx)
}

// CatalogueHealth returns aggregate catalogue counts.
func (d *Daemon) CatalogueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// Preflight runs the storage and device checks on demand.
func (d *Daemon) Preflight(ctx context.Context) []preflight.Result {
	return preflight.RunAll(ctx, d.cfg)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// APIAddress returns the bound API address once started.
func (d *Daemon) APIAddress() string {
	return d.apiServer.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	addr := d.cfg.Device.Host
	if d.cfg.Device.Mode == config.DeviceModeSimulated {
		addr = "simulated"
	}
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Session:       d.session.Snapshot(),
		Link:          d.link.Status(),
		Workflow:      d.workflow.Status(ctx),
		CatalogPath:   d.store.Path(),
		LockFilePath:  d.lockPath,
		SocketPath:    d.cfg.SocketPath(),
		APIBind:       d.apiServer.address(),
		DeviceMode:    d.cfg.Device.Mode,
		DeviceAddress: addr,
	}
}

// refreshMetrics samples catalogue counts before a scrape.
func (d *Daemon) refreshMetrics() {
	if d.metrics == nil {
		return
	}
	stats, err := d.store.Stats(context.Background())
	if err != nil {
		return
	}
	counts := make(map[string]int, len(stats))
	for status, n := range stats {
		counts[string(status)] = n
	}
	d.metrics.SetRecordings(counts)
}

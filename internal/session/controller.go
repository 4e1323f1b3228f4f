package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"holocap/internal/capture"
	"holocap/internal/config"
	"holocap/internal/logging"
	"holocap/internal/metrics"
	"holocap/internal/services"
	"holocap/internal/stream"
	"holocap/internal/transfer"
)

const (
	companionTimeout = 10 * time.Second
	captureLogName   = "capture.log"
)

// Controller owns the recording lifecycle. It starts and stops every
// stream's producer and consumer as a unit.
type Controller struct {
	cfg        *config.Config
	opener     stream.Opener
	companion  Companion
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	onComplete func(Summary)

	mu     sync.Mutex
	state  State
	active *run
}

// Option configures optional Controller behaviour.
type Option func(*Controller)

// WithCompanion sets the device companion. Without it the controller uses a
// no-op companion reporting the configured UTC offset.
func WithCompanion(c Companion) Option {
	return func(ctrl *Controller) { ctrl.companion = c }
}

// WithMetrics records session and stream metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ctrl *Controller) { ctrl.metrics = m }
}

// WithClock overrides the wall clock used for names and timestamps.
func WithClock(now func() time.Time) Option {
	return func(ctrl *Controller) { ctrl.now = now }
}

// WithOnComplete registers a hook called after every stop with the summary.
func WithOnComplete(fn func(Summary)) Option {
	return func(ctrl *Controller) { ctrl.onComplete = fn }
}

// NewController builds an idle controller.
func NewController(cfg *config.Config, opener stream.Opener, logger *slog.Logger, opts ...Option) *Controller {
	ctrl := &Controller{
		cfg:    cfg,
		opener: opener,
		logger: logging.NewComponentLogger(logger, "session"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ctrl)
	}
	if ctrl.companion == nil {
		ctrl.companion = staticCompanion{offset: cfg.Device.UTCOffset}
	}
	return ctrl
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

type worker struct {
	kind     stream.Kind
	dir      string
	queue    *transfer.Queue
	producer *capture.Producer
	consumer *capture.Consumer
	cancel   context.CancelFunc

	mu     sync.Mutex
	status string
	reason string
}

func (w *worker) mark(status, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// A write failure outranks the producer ending because of it.
	if w.status == StreamFailed {
		return
	}
	w.status = status
	w.reason = reason
}

func (w *worker) outcome() (string, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status, w.reason
}

type run struct {
	info       Info
	deviceInfo DeviceInfo
	logger     *slog.Logger
	logCloser  io.Closer
	workers    []*worker

	producers sync.WaitGroup
	consumers sync.WaitGroup
	companion sync.WaitGroup
}

// Start begins a recording. An empty name generates one. It returns
// ErrAlreadyRecording, leaving the running session untouched, unless idle.
// The controller lock is not held while directories are created or the
// device is queried; the state reads StateStarting meanwhile.
func (c *Controller) Start(ctx context.Context, name string) (Info, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return Info{}, ErrAlreadyRecording
	}
	c.state = StateStarting
	c.mu.Unlock()

	r, err := c.begin(ctx, name)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateIdle
		return Info{}, err
	}
	c.active = r
	c.state = StateRecording
	c.metrics.SessionStarted()
	r.logger.Info("recording started",
		logging.String(logging.FieldEventType, "recording_started"),
		logging.String("dir", r.info.Dir),
		logging.String("streams", strings.Join(r.info.Streams, ",")),
	)
	return r.info, nil
}

// begin prepares the recording directory and launches every stream worker.
// On error nothing it created is left behind.
func (c *Controller) begin(ctx context.Context, name string) (*run, error) {
	kinds, err := stream.ParseKinds(c.cfg.Capture.Streams)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "session", "resolve streams", "", err)
	}
	if len(kinds) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "session", "resolve streams", "no streams configured", nil)
	}

	started := c.now().UTC()
	name, err = resolveName(name, started)
	if err != nil {
		return nil, err
	}
	dir := c.cfg.RecordingDir(name)
	if _, err := os.Stat(filepath.Join(dir, RawDir)); err == nil {
		return nil, services.Wrap(services.ErrValidation, "session", "start", fmt.Sprintf("recording %q already exists", name), nil)
	}
	_, statErr := os.Stat(dir)
	fresh := errors.Is(statErr, fs.ErrNotExist)
	if err := createStreamDirs(dir, kinds); err != nil {
		discardRecording(dir, fresh)
		return nil, services.WithHint(
			services.Wrap(services.ErrConfiguration, "session", "create directories", dir, err),
			"check data_dir exists and is writable",
		)
	}

	r := &run{
		info: Info{Name: name, Dir: dir, Started: started, Streams: kindNames(kinds)},
	}
	r.logger = c.sessionLogger(r, dir)

	offsetCtx, cancelOffset := context.WithTimeout(ctx, companionTimeout)
	offset, err := c.companion.UTCOffset(offsetCtx)
	cancelOffset()
	if err != nil {
		logging.WarnWithContext(r.logger, "device utc offset unavailable", "device_offset_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the device control port"),
			logging.String(logging.FieldImpact, "configured utc_offset recorded instead"),
		)
		offset = c.cfg.Device.UTCOffset
	}
	r.deviceInfo = DeviceInfo{
		Name:        c.cfg.Device.Name,
		Host:        c.cfg.Device.Host,
		UTCOffset:   offset,
		Recording:   name,
		Started:     started,
		Streams:     r.info.Streams,
		PVWidth:     c.cfg.Capture.PVWidth,
		PVHeight:    c.cfg.Capture.PVHeight,
		PVFramerate: c.cfg.Capture.PVFramerate,
		DepthWidth:  c.cfg.Capture.DepthWidth,
		DepthHeight: c.cfg.Capture.DepthHeight,
	}
	if err := WriteDeviceInfo(dir, r.deviceInfo); err != nil {
		r.close()
		discardRecording(dir, fresh)
		return nil, services.Wrap(services.ErrConfiguration, "session", "write device info", dir, err)
	}

	// Workers outlive the request that started them; Stop is their only end.
	base := services.WithRecordingID(context.WithoutCancel(ctx), name)
	opts := capture.OptionsFromConfig(c.cfg.Capture)
	for _, kind := range kinds {
		r.workers = append(r.workers, c.launch(base, r, kind, opts))
	}

	r.companion.Add(1)
	go func() {
		defer r.companion.Done()
		cctx, cancel := context.WithTimeout(base, companionTimeout)
		defer cancel()
		if err := c.companion.Start(cctx, kinds); err != nil {
			logging.WarnWithContext(r.logger, "device companion start failed", "companion_start_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the device control service"),
				logging.String(logging.FieldImpact, "device-side recording indicator may be off"),
			)
		}
	}()
	return r, nil
}

// discardRecording undoes a failed start: the whole directory when Start
// created it, otherwise only what Start adds to it.
func discardRecording(dir string, fresh bool) {
	if fresh {
		_ = os.RemoveAll(dir)
		return
	}
	_ = os.RemoveAll(filepath.Join(dir, RawDir))
	_ = os.Remove(filepath.Join(dir, captureLogName))
}

func (c *Controller) sessionLogger(r *run, dir string) *slog.Logger {
	logger := c.logger
	handler, closer, err := logging.NewFileHandler(filepath.Join(dir, captureLogName), c.cfg.Logging.Format, c.cfg.Logging.Level)
	if err != nil {
		logger.Debug("per-recording log unavailable", logging.Error(err))
	} else {
		logger = logging.TeeLogger(logger, handler)
		r.logCloser = closer
	}
	return logger.With(logging.String(logging.FieldRecordingID, r.info.Name))
}

func (c *Controller) launch(base context.Context, r *run, kind stream.Kind, opts capture.Options) *worker {
	w := &worker{kind: kind, dir: filepath.Join(r.info.Dir, RawDir, string(kind)), status: StreamRecorded}
	logger := r.logger.With(logging.String(logging.FieldStream, string(kind)))

	src, err := c.opener(kind)
	if err != nil {
		c.markUnavailable(w, logger, services.Wrap(services.ErrUnavailable, "session", "open source", string(kind), err))
		return w
	}
	writer, err := capture.NewWriter(kind, w.dir, opts)
	if err != nil {
		src.Close()
		c.markFailed(w, logger, err)
		return w
	}

	w.queue = transfer.New(c.cfg.Capture.QueueCapacity)
	w.producer = capture.NewProducer(kind, src, w.queue, logger, c.metrics)
	w.consumer = capture.NewConsumer(kind, w.queue, writer, c.cfg.PopTimeout(), logger, c.metrics)

	ctx := services.WithStream(base, string(kind))
	pctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	r.producers.Add(1)
	go func() {
		defer r.producers.Done()
		// The producer is the only writer to its queue.
		defer w.queue.Close()
		err := w.producer.Run(pctx)
		switch {
		case err == nil:
		case errors.Is(err, services.ErrUnavailable):
			c.markUnavailable(w, logger, err)
		default:
			w.mark(StreamInterrupted, err.Error())
			c.metrics.StreamFailed(string(kind), string(services.Kind(err)))
			logging.WarnWithContext(logger, "stream read failed", "stream_interrupted",
				append(logging.ErrorAttrs(err),
					logging.String(logging.FieldImpact, "stream ends early, other streams continue"),
				)...,
			)
		}
	}()

	r.consumers.Add(1)
	go func() {
		defer r.consumers.Done()
		if err := w.consumer.Run(ctx); err != nil {
			c.markFailed(w, logger, err)
			w.cancel()
		}
	}()
	return w
}

func (c *Controller) markUnavailable(w *worker, logger *slog.Logger, err error) {
	w.mark(StreamUnavailable, err.Error())
	marker := filepath.Join(w.dir, stream.UnavailableMarker)
	if werr := os.WriteFile(marker, []byte(err.Error()+"\n"), 0o644); werr != nil {
		logger.Debug("unavailable marker not written", logging.Error(werr))
	}
	c.metrics.StreamFailed(string(w.kind), string(services.KindUnavailable))
	logging.WarnWithContext(logger, "stream unavailable", "stream_unavailable",
		append(logging.ErrorAttrs(err),
			logging.String(logging.FieldImpact, "recording continues without this stream"),
		)...,
	)
}

func (c *Controller) markFailed(w *worker, logger *slog.Logger, err error) {
	w.mark(StreamFailed, err.Error())
	c.metrics.StreamFailed(string(w.kind), string(services.Kind(err)))
	logging.ErrorWithContext(logger, "stream write failed", "stream_write_failed",
		append(logging.ErrorAttrs(err),
			logging.String(logging.FieldImpact, "stream stopped, other streams continue"),
		)...,
	)
}

// Stop ends the active recording: producers are cancelled and joined, then
// consumers drain their queues and are joined, then the device companion is
// stopped. It returns ErrNotRecording unless a recording is running, and is
// safe to call from any goroutine.
func (c *Controller) Stop(ctx context.Context) (Summary, error) {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return Summary{}, ErrNotRecording
	}
	c.state = StateStopping
	r := c.active
	c.mu.Unlock()

	r.logger.Info("stopping recording", logging.String(logging.FieldEventType, "recording_stopping"))

	for _, w := range r.workers {
		if w.cancel != nil {
			w.cancel()
		}
	}
	r.producers.Wait()
	for _, w := range r.workers {
		if w.consumer != nil {
			w.queue.Close()
			w.consumer.Stop()
		}
	}
	r.consumers.Wait()
	r.companion.Wait()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), companionTimeout)
	if err := c.companion.Stop(stopCtx); err != nil {
		logging.WarnWithContext(r.logger, "device companion stop failed", "companion_stop_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the recording on the device manually"),
			logging.String(logging.FieldImpact, "captured data is unaffected"),
		)
	}
	cancel()

	summary := r.summarize(c.now().UTC())
	r.deviceInfo.Stopped = &summary.Stopped
	r.deviceInfo.Unavailable = summary.Unavailable
	r.deviceInfo.Failed = summary.Failed
	if err := WriteDeviceInfo(r.info.Dir, r.deviceInfo); err != nil {
		logging.WarnWithContext(r.logger, "device info not finalized", "device_info_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stop time missing from device.toml"),
		)
	}

	r.logger.Info("recording stopped",
		logging.String(logging.FieldEventType, "recording_stopped"),
		logging.String("result", summary.Result()),
		logging.Duration("duration", summary.Stopped.Sub(summary.Started)),
		logging.Int("unavailable_streams", len(summary.Unavailable)),
		logging.Int("failed_streams", len(summary.Failed)),
	)
	r.close()

	c.mu.Lock()
	c.state = StateIdle
	c.active = nil
	c.mu.Unlock()

	c.metrics.SessionFinished(summary.Result())
	if c.onComplete != nil {
		c.onComplete(summary)
	}
	return summary, nil
}

// Snapshot reports the controller state and per-stream progress.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{State: c.state.String()}
	if c.active == nil {
		return snap
	}
	info := c.active.info
	snap.Recording = &info
	for _, w := range c.active.workers {
		status, _ := w.outcome()
		st := StreamStatus{Stream: string(w.kind), State: status}
		if w.queue != nil {
			qs := w.queue.Stats()
			st.QueueDepth = qs.Depth
			st.HighWater = qs.HighWater
			c.metrics.SetQueueDepth(string(w.kind), qs.Depth)
		}
		if w.producer != nil {
			st.Read = w.producer.Packets()
		}
		if w.consumer != nil {
			cs := w.consumer.Stats()
			st.Written = cs.Written
			st.Malformed = cs.Malformed
			if status == StreamRecorded {
				st.State = w.consumer.State().String()
			}
		}
		snap.Streams = append(snap.Streams, st)
	}
	return snap
}

func (r *run) summarize(stopped time.Time) Summary {
	s := Summary{Info: r.info, Stopped: stopped}
	for _, w := range r.workers {
		status, reason := w.outcome()
		res := StreamResult{Stream: string(w.kind), Status: status, Reason: reason}
		if w.producer != nil {
			res.PacketsRead = w.producer.Packets()
		}
		if w.consumer != nil {
			cs := w.consumer.Stats()
			res.Written = cs.Written
			res.Malformed = cs.Malformed
			res.LastTimestamp = cs.LastTimestamp
		}
		switch status {
		case StreamUnavailable:
			s.Unavailable = append(s.Unavailable, res.Stream)
		case StreamFailed:
			s.Failed = append(s.Failed, res.Stream)
		}
		s.Results = append(s.Results, res)
	}
	return s
}

func (r *run) close() {
	if r.logCloser != nil {
		_ = r.logCloser.Close()
		r.logCloser = nil
	}
}

func resolveName(name string, started time.Time) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return started.Format("20060102T150405Z") + "-" + uuid.NewString()[:8], nil
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", services.Wrap(services.ErrValidation, "session", "start", fmt.Sprintf("invalid recording name %q", name), nil)
	}
	return name, nil
}

func createStreamDirs(dir string, kinds []stream.Kind) error {
	for _, kind := range kinds {
		if err := os.MkdirAll(filepath.Join(dir, RawDir, string(kind)), 0o755); err != nil {
			return err
		}
	}
	return nil
}

func kindNames(kinds []stream.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

type staticCompanion struct {
	offset int64
}

func (staticCompanion) Start(context.Context, []stream.Kind) error { return nil }

func (staticCompanion) Stop(context.Context) error { return nil }

func (s staticCompanion) UTCOffset(context.Context) (int64, error) { return s.offset, nil }

package daemonrun

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"holocap/internal/config"
	"holocap/internal/daemon"
	"holocap/internal/ipc"
	"holocap/internal/logging"
	"holocap/internal/metrics"
	"holocap/internal/queue"
	"holocap/internal/timesync"
	"holocap/internal/workflow"
)

// PIDFileName is the daemon pid file inside the log directory.
const PIDFileName = "holocapd.pid"

// Options are the holocapd command-line switches.
type Options struct {
	LogLevel    string
	Development bool
	Diagnostic  bool
}

// runLogs is the per-process logging setup: a text or JSON log file, the
// in-memory event hub and its on-disk archive.
type runLogs struct {
	logger     *slog.Logger
	hub        *logging.StreamHub
	archive    *logging.EventArchive
	logPath    string
	eventsPath string
}

func openRunLogs(cfg *config.Config, opts Options) (*runLogs, error) {
	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	rl := &runLogs{
		hub:        logging.NewStreamHub(4096),
		logPath:    filepath.Join(cfg.Paths.LogDir, "holocap-"+stamp+".log"),
		eventsPath: filepath.Join(cfg.Paths.LogDir, "holocap-"+stamp+".events"),
	}
	archive, err := logging.NewEventArchive(rl.eventsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: event archive disabled: %v\n", err)
	} else if archive != nil {
		rl.archive = archive
		rl.hub.AddSink(archive)
	}

	level := cmp.Or(strings.TrimSpace(opts.LogLevel), cfg.Logging.Level)
	var sessionID string
	if opts.Diagnostic {
		level, sessionID = "debug", uuid.NewString()
	}
	rl.logger, err = logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Outputs:     []string{"stdout", rl.logPath},
		Development: opts.Development,
		Stream:      rl.hub,
		SessionID:   sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if sessionID != "" {
		rl.logger.Info("diagnostic mode enabled",
			logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
			logging.String(logging.FieldSessionID, sessionID))
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, rl.logPath); err != nil {
		rl.logger.Warn("holocap.log pointer not updated", logging.Error(err))
	}
	return rl, nil
}

// prune applies log retention, keeping this run's files.
func (rl *runLogs) prune(days int, logDir string) {
	logging.CleanupOldLogs(rl.logger, days,
		logging.RetentionTarget{Dir: logDir, Pattern: "holocap-*.log", Exclude: []string{rl.logPath}},
		logging.RetentionTarget{Dir: logDir, Pattern: "holocap-*.events", Exclude: []string{rl.eventsPath}},
		logging.RetentionTarget{Dir: filepath.Join(logDir, "sync"), Pattern: "*.log"},
	)
}

// Run serves holocapd until ctx ends or SIGINT/SIGTERM arrives.
func Run(parent context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logs, err := openRunLogs(cfg, opts)
	if err != nil {
		return err
	}
	logger := logs.logger
	logConfigSnapshot(logger, cfg)
	logs.prune(cfg.Logging.RetentionDays, cfg.Paths.LogDir)

	pidPath := filepath.Join(cfg.Paths.LogDir, PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open recording catalogue", logging.Error(err))
		return err
	}
	defer store.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	mgr := workflow.NewManager(cfg, store, logger, workflow.WithMetrics(m))
	if err := registerStages(mgr, cfg, store, logger, m); err != nil {
		return err
	}

	d, err := daemon.New(cfg, store, logger, mgr,
		daemon.WithMetrics(m),
		daemon.WithLogStream(logs.hub, logs.archive),
		daemon.WithLogPath(logs.logPath),
	)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer srv.Close()
	srv.Serve()

	if err := d.Start(ctx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration and catalogue database access"),
			logging.String(logging.FieldImpact, "recordings cannot be captured or synced"),
		)
	}

	<-ctx.Done()
	logger.Info("holocap daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func registerStages(mgr *workflow.Manager, cfg *config.Config, store *queue.Store, logger *slog.Logger, m *metrics.Metrics) error {
	opts, err := timesync.OptionsFromConfig(cfg.Sync)
	if err != nil {
		return fmt.Errorf("sync options: %w", err)
	}
	mgr.ConfigureStages(workflow.StageSet{
		Sync: timesync.NewStage(timesync.NewEngine(opts, logger, m), store, logger),
	})
	return nil
}

// ensureCurrentLogPointer points logDir/holocap.log at target, falling back
// to a hard link where symlinks are refused.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	pointer := filepath.Join(logDir, "holocap.log")
	if err := os.Remove(pointer); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", pointer, err)
	}
	if os.Symlink(target, pointer) == nil {
		return nil
	}
	return os.Link(target, pointer)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, strconv.AppendInt(nil, int64(os.Getpid()), 10), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("device_mode", cfg.Device.Mode),
		logging.String("device_host", cfg.Device.Host),
		logging.String("device_interface", cfg.Device.Interface),
		logging.String("streams", strings.Join(cfg.Capture.Streams, ",")),
		logging.String("sync_base", cfg.Sync.BaseStream),
		logging.Bool("auto_sync", cfg.Sync.AutoSync),
		logging.Bool("metrics", cfg.Metrics.Enabled),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Paths.APIToken) != ""),
		logging.String("api_bind", cfg.Paths.APIBind),
	)
}

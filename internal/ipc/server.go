package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"holocap/internal/api"
	"holocap/internal/daemon"
	"holocap/internal/logging"
	"holocap/internal/queue"
)

// Server answers CLI requests as JSON-RPC over a Unix socket. Each
// connection gets its own codec goroutine.
type Server struct {
	path     string
	listener net.Listener
	rpc      *rpc.Server
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup
}

// NewServer replaces any stale socket at path and registers the daemon's
// RPC methods. Requests run with ctx, which also bounds the server.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	srv := &Server{path: path, listener: ln, rpc: rpc.NewServer(), logger: logger, ctx: ctx, cancel: cancel}
	if err := srv.rpc.RegisterName(serviceName, &service{daemon: d, logger: logger, ctx: ctx}); err != nil {
		cancel()
		ln.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	return srv, nil
}

// Serve accepts connections in the background until Close.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.conns.Add(1)
	go func() {
		defer s.conns.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "CLI clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.conns.Add(1)
			go func() {
				defer s.conns.Done()
				s.rpc.ServeCodec(jsonrpc.NewServerCodec(conn))
			}()
		}
	}()
}

// Close stops accepting, waits for open connections and removes the socket.
func (s *Server) Close() {
	s.cancel()
	_ = s.listener.Close()
	s.conns.Wait()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

// service holds the exported RPC methods. net/rpc requires the
// (args, *reply) error shape on each.
type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Message = err.Error()
		return nil
	}
	*resp = StartResponse{Started: true, Message: "daemon started"}
	s.logger.Info("daemon started via IPC", logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx).Payload()
	return nil
}

func (s *service) RecordStart(req RecordStartRequest, resp *RecordStartResponse) error {
	info, err := s.daemon.StartRecording(s.ctx, strings.TrimSpace(req.Name))
	if err == nil {
		resp.Recording = api.FromInfo(info)
	}
	return err
}

func (s *service) RecordStop(_ RecordStopRequest, resp *RecordStopResponse) error {
	summary, err := s.daemon.StopRecording(s.ctx)
	if err == nil {
		resp.Summary = api.FromSummary(summary)
	}
	return err
}

func (s *service) RecordingList(req RecordingListRequest, resp *RecordingListResponse) error {
	var statuses []queue.Status
	for _, name := range req.Statuses {
		status, ok := queue.ParseStatus(name)
		if !ok {
			return fmt.Errorf("unknown recording status %q", name)
		}
		statuses = append(statuses, status)
	}
	recs, err := s.daemon.ListRecordings(s.ctx, statuses)
	if err == nil {
		resp.Recordings = api.FromRecordings(recs)
	}
	return err
}

func (s *service) RecordingDescribe(req RecordingDescribeRequest, resp *RecordingDescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid recording id %d", req.ID)
	}
	rec, err := s.daemon.GetRecording(s.ctx, req.ID)
	if err == nil {
		resp.Recording = api.FromRecording(rec)
	}
	return err
}

func (s *service) RecordingImport(req RecordingImportRequest, resp *RecordingImportResponse) error {
	rec, err := s.daemon.ImportRecording(s.ctx, req.Dir)
	if err == nil {
		resp.Recording = api.FromRecording(rec)
	}
	return err
}

func (s *service) RecordingRetry(req RecordingRetryRequest, resp *RecordingRetryResponse) error {
	updated, err := s.daemon.RetryFailed(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.logger.Info("recordings retried",
		logging.String(logging.FieldEventType, "recording_retry"),
		logging.Int64("updated_count", updated))
	return nil
}

func (s *service) RecordingSync(req RecordingSyncRequest, resp *RecordingSyncResponse) error {
	queued, err := s.daemon.SyncRecordings(s.ctx, req.IDs)
	resp.Queued = queued
	return err
}

func (s *service) RecordingRemove(req RecordingRemoveRequest, resp *RecordingRemoveResponse) error {
	if len(req.IDs) == 0 {
		return errors.New("remove requires at least one id")
	}
	for _, id := range req.IDs {
		if err := s.daemon.RemoveRecording(s.ctx, id); err != nil {
			return err
		}
		resp.Removed++
	}
	return nil
}

func (s *service) RecordingClear(_ RecordingClearRequest, resp *RecordingClearResponse) error {
	removed, err := s.daemon.ClearRecordings(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("catalogue cleared",
		logging.String(logging.FieldEventType, "catalogue_clear"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) CatalogueHealth(_ CatalogueHealthRequest, resp *CatalogueHealthResponse) error {
	health, err := s.daemon.CatalogueHealth(s.ctx)
	if err == nil {
		*resp = api.FromHealthSummary(health)
	}
	return err
}

// DatabaseHealth reports problems inside the response; only a failure the
// health probe could not describe is returned as an RPC error.
func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	*resp = api.FromDatabaseHealth(health)
	if err != nil && health.Error == "" {
		return err
	}
	return nil
}

func (s *service) Preflight(_ PreflightRequest, resp *PreflightResponse) error {
	resp.Checks = api.FromPreflight(s.daemon.Preflight(s.ctx))
	return nil
}

// LogTail is the IPC form of the API log endpoint. Follow requests wait at
// most WaitMillis, one second by default, so a call never holds the
// connection open indefinitely.
func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	ctx := s.ctx
	if req.Follow {
		wait := time.Duration(req.WaitMillis) * time.Millisecond
		if wait <= 0 {
			wait = time.Second
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	events, next, err := s.daemon.ReadLogs(ctx, daemon.LogQuery{
		Since:  req.Since,
		Limit:  req.Limit,
		Follow: req.Follow,
		Tail:   req.Since == 0 && !req.Follow,
		Filter: logging.EventFilter{
			RecordingID: strings.TrimSpace(req.Recording),
			Stream:      strings.TrimSpace(req.Stream),
			Component:   strings.TrimSpace(req.Component),
		},
	})
	if err != nil {
		return err
	}
	resp.Events = api.FromLogEvents(events)
	resp.Next = next
	return nil
}

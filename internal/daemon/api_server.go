package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"holocap/internal/api"
	"holocap/internal/config"
	"holocap/internal/logging"
	"holocap/internal/metrics"
	"holocap/internal/queue"
	"holocap/internal/services"
	"holocap/internal/session"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.RequestMiddleware(s.daemon.metrics))
	if cfg.Metrics.Enabled && s.daemon.metrics != nil {
		r.Handle("/metrics", s.daemon.metrics.Handler(s.daemon.refreshMetrics))
	}
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(cfg.Paths.APIToken))
		r.Get("/status", s.handleStatus)
		r.Get("/health", s.handleHealth)
		r.Get("/preflight", s.handlePreflight)
		r.Get("/logs", s.handleLogs)
		r.Route("/recordings", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Post("/start", s.handleStart)
			r.Post("/stop", s.handleStop)
			r.Post("/import", s.handleImport)
			r.Post("/retry", s.handleRetry)
			r.Get("/{id}", s.handleGet)
			r.Delete("/{id}", s.handleRemove)
			r.Post("/{id}/sync", s.handleSync)
		})
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()).Payload())
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.daemon.DatabaseHealth(r.Context())
	if err != nil && health.Error == "" {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromDatabaseHealth(health))
}

func (s *apiServer) handlePreflight(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.FromPreflight(s.daemon.Preflight(r.Context())))
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := queue.ParseStatus(part)
			if !ok {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", part))
				return
			}
			statuses = append(statuses, status)
		}
	}
	recs, err := s.daemon.ListRecordings(r.Context(), statuses)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingListResponse{Recordings: api.FromRecordings(recs)})
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.daemon.GetRecording(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingResponse{Recording: api.FromRecording(rec)})
}

func (s *apiServer) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.daemon.RemoveRecording(r.Context(), id); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Updated: 1})
}

type startRequest struct {
	Name string `json:"name"`
}

func (s *apiServer) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	info, err := s.daemon.StartRecording(r.Context(), req.Name)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromInfo(info))
}

func (s *apiServer) handleStop(w http.ResponseWriter, r *http.Request) {
	summary, err := s.daemon.StopRecording(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSummary(summary))
}

type importRequest struct {
	Dir string `json:"dir"`
}

func (s *apiServer) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	rec, err := s.daemon.ImportRecording(r.Context(), req.Dir)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.RecordingResponse{Recording: api.FromRecording(rec)})
}

type retryRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	updated, err := s.daemon.RetryFailed(r.Context(), req.IDs)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Updated: updated})
}

func (s *apiServer) handleSync(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	n, err := s.daemon.SyncRecordings(r.Context(), []int64{id})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.CountResponse{Updated: int64(n)})
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	events, next, err := s.daemon.ReadLogs(r.Context(), LogQuery{
		Since:  since,
		Limit:  limit,
		Follow: queryFlag(query.Get("follow")),
		Tail:   queryFlag(query.Get("tail")),
		Filter: logging.EventFilter{
			RecordingID: strings.TrimSpace(query.Get("recording")),
			Stream:      strings.TrimSpace(query.Get("stream")),
			Component:   strings.TrimSpace(query.Get("component")),
		},
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: api.FromLogEvents(events), Next: next})
}

func queryFlag(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid recording id")
		return 0, false
	}
	return id, true
}

func (s *apiServer) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeFailure maps domain errors onto HTTP status codes.
func (s *apiServer) writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrRecordingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrAlreadyRecording), errors.Is(err, session.ErrNotRecording):
		status = http.StatusConflict
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrConfiguration):
		status = http.StatusUnprocessableEntity
	}
	var kind string
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = string(services.Kind(err))
	case http.StatusInternalServerError:
		s.log().Warn("api request failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_request_failed"),
			logging.String(logging.FieldErrorHint, "check daemon logs for the failing operation"),
			logging.String(logging.FieldImpact, "client request not completed"),
		)
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Kind: kind})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}

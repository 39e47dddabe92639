package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"sam/internal/api"
	"sam/internal/config"
	"sam/internal/logging"
	"sam/internal/uievents"
)

const (
	defaultEventLimit = 200
	eventWaitTimeout  = 25 * time.Second
	maxRequestBody    = 1 << 20
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}
	token := strings.TrimSpace(cfg.Paths.APIToken)
	srv.server = &http.Server{
		Handler:           srv.routes(token),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, authMiddleware(token, h))
	}
	handle("/api/status", s.handleStatus)
	handle("/api/today", s.handleToday)
	handle("/api/events", s.handleEvents)
	handle("/api/camera/start", s.handleCameraStart)
	handle("/api/camera/stop", s.handleCameraStop)
	handle("/api/camera/toggle", s.handleCameraToggle)
	handle("/api/attendance", s.handleAttendance)
	handle("/api/settings", s.handleSettings)
	handle("/api/report/open", s.handleReportOpen)
	handle("/api/report/sync", s.handleReportSync)
	handle("/api/window/closing", s.handleWindowClosing)
	metricsHandler := s.daemon.metrics.Handler()
	handle("/metrics", metricsHandler.ServeHTTP)
	return mux
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

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
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
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
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
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *apiServer) handleToday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Today())
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultEventLimit
	}
	wait := query.Get("wait") == "1" || strings.EqualFold(query.Get("wait"), "true")

	ctx, cancel := context.WithTimeout(r.Context(), eventWaitTimeout)
	defer cancel()
	events, next, err := s.daemon.hub.Fetch(ctx, since, limit, wait)
	if errors.Is(err, uievents.ErrSurfaceDisposed) {
		s.writeError(w, http.StatusServiceUnavailable, "event stream closed")
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := api.EventsResponse{Events: make([]json.RawMessage, 0, len(events)), Next: next}
	for _, evt := range events {
		raw, marshalErr := json.Marshal(evt)
		if marshalErr != nil {
			s.log().Warn("failed to encode ui event", logging.Error(marshalErr), logging.String("kind", string(evt.Kind)))
			continue
		}
		resp.Events = append(resp.Events, raw)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleCameraStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeResponse(w, s.daemon.StartCamera(r.Context()))
}

func (s *apiServer) handleCameraStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeResponse(w, s.daemon.StopCamera())
}

func (s *apiServer) handleCameraToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeResponse(w, s.daemon.ToggleCamera(r.Context()))
}

type manualEntryRequest struct {
	Name string `json:"name"`
}

func (s *apiServer) handleAttendance(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		date := strings.TrimSpace(r.URL.Query().Get("date"))
		if date == "" {
			s.writeJSON(w, http.StatusOK, s.daemon.Today())
			return
		}
		records, err := s.daemon.Attendance(r.Context(), date)
		if err != nil {
			s.writeResponse(w, api.FromError(err))
			return
		}
		s.writeJSON(w, http.StatusOK, records)
	case http.MethodPost:
		var req manualEntryRequest
		if err := decodeBody(w, r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeResponse(w, s.daemon.ManualEntry(r.Context(), req.Name))
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, s.daemon.Settings())
	case http.MethodPut, http.MethodPatch:
		var updates map[string]any
		if err := decodeBody(w, r, &updates); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeResponse(w, s.daemon.UpdateSettings(updates))
	case http.MethodDelete:
		s.writeResponse(w, s.daemon.ResetSettings())
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleReportOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeResponse(w, s.daemon.OpenReport(r.Context()))
}

func (s *apiServer) handleReportSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeResponse(w, s.daemon.SyncReport(r.Context()))
}

func (s *apiServer) handleWindowClosing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.daemon.OnWindowClosing()
	s.writeJSON(w, http.StatusAccepted, api.Success("Shutting down"))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps a response to an HTTP status. Duplicates are a business
// outcome and still return 200.
func statusFor(resp api.Response) int {
	if resp.Success {
		return http.StatusOK
	}
	switch resp.Kind {
	case api.KindDuplicate:
		return http.StatusOK
	case api.KindValidation:
		return http.StatusBadRequest
	case api.KindNotFound:
		return http.StatusNotFound
	case api.KindAlreadyActive:
		return http.StatusConflict
	case api.KindShuttingDown, api.KindDeviceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeResponse(w http.ResponseWriter, resp api.Response) {
	s.writeJSON(w, statusFor(resp), resp)
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
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}

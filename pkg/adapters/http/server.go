package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/aretw0/agentwright"
	"github.com/aretw0/agentwright/internal/presentation/graph"
	"github.com/aretw0/agentwright/pkg/domain"
)

// maxBodyBytes bounds request bodies. The engine applies its own, smaller,
// limit on the message itself.
const maxBodyBytes = 1 << 20

// Engine defines the operations the API exposes.
type Engine interface {
	Advance(ctx context.Context, runID, message string) (domain.Result, error)
	Head(ctx context.Context, runID string) (*domain.Snapshot, error)
	History(ctx context.Context, runID string) ([]domain.Snapshot, error)
	Runs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, runID string) error
	Graph() []domain.StepSpec
}

// Server holds the handlers of the API.
type Server struct {
	Engine  Engine
	Streams *StreamManager
	Logger  *slog.Logger
}

// Option configures the handler.
type Option func(*options)

type options struct {
	metrics http.Handler
	logger  *slog.Logger
}

// WithMetricsHandler exposes h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *options) {
		o.metrics = h
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// AdvanceRequest is the body of the advance endpoints.
type AdvanceRequest struct {
	Message string `json:"message"`
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	cfg := &options{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	server := &Server{
		Engine:  engine,
		Streams: NewStreamManager(cfg.logger),
		Logger:  cfg.logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/graph", server.GetGraph)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", server.ListRuns)
		r.Post("/", server.CreateRun)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", server.GetRun)
			r.Delete("/", server.DeleteRun)
			r.Post("/advance", server.AdvanceRun)
			r.Get("/history", server.GetHistory)
			r.Get("/events", server.SubscribeEvents)
		})
	})
	if cfg.metrics != nil {
		r.Handle("/metrics", cfg.metrics)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateRun handles POST /runs. It starts a run under a fresh id.
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeAdvance(w, r)
	if !ok {
		return
	}
	runID := uuid.NewString()
	s.advance(w, r, runID, body.Message, http.StatusCreated)
}

// AdvanceRun handles POST /runs/{runID}/advance.
func (s *Server) AdvanceRun(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeAdvance(w, r)
	if !ok {
		return
	}
	s.advance(w, r, chi.URLParam(r, "runID"), body.Message, http.StatusOK)
}

func (s *Server) decodeAdvance(w http.ResponseWriter, r *http.Request) (AdvanceRequest, bool) {
	var body AdvanceRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		s.Logger.Warn("Advance: Invalid request body", "err", err)
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return body, false
	}
	return body, true
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request, runID, message string, status int) {
	res, err := s.Engine.Advance(r.Context(), runID, message)
	if err != nil {
		s.fail(w, "Advance", runID, err)
		return
	}

	if payload, err := json.Marshal(res); err == nil {
		s.Streams.Broadcast(runID, string(payload))
	}
	writeJSON(w, status, res)
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Engine.Runs(r.Context())
	if err != nil {
		s.fail(w, "ListRuns", "", err)
		return
	}
	if runs == nil {
		runs = []string{}
	}
	sort.Strings(runs)
	writeJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /runs/{runID} and returns the head snapshot.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	head, err := s.Engine.Head(r.Context(), runID)
	if err != nil {
		s.fail(w, "GetRun", runID, err)
		return
	}
	writeJSON(w, http.StatusOK, head)
}

// GetHistory handles GET /runs/{runID}/history.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	snaps, err := s.Engine.History(r.Context(), runID)
	if err != nil {
		s.fail(w, "GetHistory", runID, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

// DeleteRun handles DELETE /runs/{runID}.
func (s *Server) DeleteRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.Engine.Delete(r.Context(), runID); err != nil {
		s.fail(w, "DeleteRun", runID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGraph handles GET /graph. With ?run=<id> the run's path is highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	var overlay *graph.GraphOverlay
	if runID := r.URL.Query().Get("run"); runID != "" {
		snaps, err := s.Engine.History(r.Context(), runID)
		if err != nil {
			s.fail(w, "GetGraph", runID, err)
			return
		}
		overlay = graph.OverlayFromHistory(snaps)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(s.Engine.Graph(), overlay))
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "agentwright-http",
		"version": strings.TrimSpace(agentwright.Version),
	})
}

// SubscribeEvents handles GET /runs/{runID}/events (SSE). Every result of
// an advance on the run is pushed as a data line.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}
	runID := chi.URLParam(r, "runID")
	if err := domain.ValidateRunID(runID); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(runID)
	defer cancel()

	s.Logger.Info("SSE: Subscribing to run updates", "run_id", runID)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE client disconnected", "run_id", runID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // RunID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(runID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[runID]; !ok {
		sm.subscribers[runID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[runID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[runID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, runID)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(runID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[runID] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "run_id", runID)
		}
	}
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotSuspended),
		errors.Is(err, domain.ErrRunFinished),
		errors.Is(err, domain.ErrSequenceConflict):
		return http.StatusConflict
	case domain.IsPrecondition(err):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op, runID string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error(op+" failed", "run_id", runID, "err", err)
	} else {
		s.Logger.Debug(op+" rejected", "run_id", runID, "status", status, "err", err)
	}
	writeError(w, status, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

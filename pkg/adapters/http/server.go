// Package http exposes the engine over a REST and SSE surface: session
// lifecycle, generation, event dispatch, confirmations, and a live state
// change stream per session.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	weft "github.com/tapestrylab/weft"
	"github.com/tapestrylab/weft/internal/logging"
	"github.com/tapestrylab/weft/pkg/domain"
	"github.com/tapestrylab/weft/pkg/session"
	"github.com/tapestrylab/weft/pkg/state"
)

// EngineFactory creates a fresh engine for a new or restored session.
type EngineFactory func() *weft.Engine

// Server hosts one engine per session.
type Server struct {
	factory EngineFactory
	manager *session.Manager
	logger  *slog.Logger

	mu      sync.Mutex
	engines map[string]*weft.Engine
}

// Option defines a functional option for configuring the Server.
type Option func(*Server)

// WithSessionManager enables snapshot persistence: sessions survive
// process restarts and can be resumed by ID.
func WithSessionManager(m *session.Manager) Option {
	return func(s *Server) { s.manager = m }
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewHandler builds the HTTP handler for the API.
func NewHandler(factory EngineFactory, opts ...Option) http.Handler {
	s := &Server{
		factory: factory,
		logger:  logging.NewNop(),
		engines: make(map[string]*weft.Engine),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.getHealth)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/", s.listSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.deleteSession)
			r.Post("/generate", s.generate)
			r.Get("/spec", s.getSpec)
			r.Get("/state", s.getState)
			r.Post("/state", s.setState)
			r.Post("/events", s.emitEvent)
			r.Post("/actions", s.executeAction)
			r.Get("/confirmations", s.listConfirmations)
			r.Post("/confirmations/{confirmationID}/confirm", s.confirm)
			r.Post("/confirmations/{confirmationID}/cancel", s.cancel)
			r.Get("/stream", s.streamState)
		})
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// engineFor returns the live engine for a session, restoring it from the
// snapshot store when the session is persisted but not resident.
func (s *Server) engineFor(ctx context.Context, sessionID string) (*weft.Engine, error) {
	s.mu.Lock()
	if e, ok := s.engines[sessionID]; ok {
		s.mu.Unlock()
		return e, nil
	}
	s.mu.Unlock()

	if s.manager == nil {
		return nil, domain.ErrSessionNotFound
	}
	snap, err := s.manager.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	e := s.factory()
	e.Restore(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.engines[sessionID]; ok {
		// Lost the race to restore; keep the first one.
		e.Close()
		return existing, nil
	}
	s.engines[sessionID] = e
	return e, nil
}

// persist saves the session snapshot when persistence is configured.
func (s *Server) persist(ctx context.Context, sessionID string, e *weft.Engine) {
	if s.manager == nil {
		return
	}
	if err := s.manager.Save(ctx, sessionID, e.Snapshot()); err != nil {
		s.logger.Error("failed to persist session", "session_id", sessionID, "err", err)
	}
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	e := s.factory()

	s.mu.Lock()
	s.engines[id] = e
	s.mu.Unlock()

	s.persist(r.Context(), id, e)
	s.logger.Info("session created", "session_id", id)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if s.manager != nil {
		ids, err := s.manager.List(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
		return
	}

	s.mu.Lock()
	ids := make([]string, 0, len(s.engines))
	for id := range s.engines {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	s.mu.Lock()
	if e, ok := s.engines[id]; ok {
		e.Close()
		delete(s.engines, id)
	}
	s.mu.Unlock()

	if s.manager != nil {
		if err := s.manager.Delete(r.Context(), id); err != nil {
			httpError(w, http.StatusInternalServerError, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type generateRequest struct {
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context,omitempty"`
}

type generateResponse struct {
	Spec   *domain.Spec             `json:"spec"`
	Valid  bool                     `json:"valid"`
	Issues []domain.ValidationIssue `json:"issues,omitempty"`
	Rounds int                      `json:"rounds"`
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	e, ok := s.resolveEngine(w, r)
	if !ok {
		return
	}
	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	res, err := e.Generate(r.Context(), body.Prompt, body.Context)
	if err != nil {
		s.logger.Error("generation failed", "session_id", chi.URLParam(r, "sessionID"), "err", err)
		if errors.Is(err, domain.ErrRetriesExhausted) {
			// The partial document is still returned so the client can
			// show what was built.
			writeJSON(w, http.StatusUnprocessableEntity, generateResponse{
				Spec: res.Spec, Valid: res.Valid, Issues: res.Issues, Rounds: res.Rounds,
			})
			return
		}
		httpError(w, http.StatusBadGateway, err)
		return
	}

	s.persist(r.Context(), chi.URLParam(r, "sessionID"), e)
	writeJSON(w, http.StatusOK, generateResponse{
		Spec: res.Spec, Valid: res.Valid, Issues: res.Issues, Rounds: res.Rounds,
	})
}

func (s *Server) getSpec(w http.ResponseWriter, r *http.Request) {
	e, ok := s.resolveEngine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e.Spec())
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	e, ok := s.resolveEngine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e.State().Snapshot())
}

type setStateRequest struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func (s *Server) setState(w http.ResponseWriter, r *http.Request) {
	e, ok := s.resolveEngine(w, r)
	if !ok {
		return
	}
	var body setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Path == "" {
		httpError(w, http.StatusBadRequest, fmt.Errorf("path and value are required"))
		return
	}
	e.State().Set(body.Path, body.Value)
	s.persist(r.Context(), chi.URLParam(r, "sessionID"), e)
	w.WriteHeader(http.StatusNoContent)
}

type emitRequest struct {
	Node  string `json:"node"`
	Event string `json:"event"`
	Index *int   `json:"index,omitempty"`
}

// emitEvent dispatches asynchronously: bindings gated on confirmation
// block until a later confirm/cancel call, which must not hold this
// request open.
func (s *Server) emitEvent(w http.ResponseWriter, r *http.Request) {
	e, ok := s.resolveEngine(w, r)
	if !ok {
		return
	}
	var body emitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Node == "" || body.Event == "" {
		httpError(w, http.StatusBadRequest, fmt.Errorf("node and event are required"))
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	go func() {
		var err error
		if body.Index != nil {
			err = e.EmitItem(context.Background(), body.Node, body.Event, *body.Index)
		} else {
			err = e.Emit(context.Background(), body.Node, body.Event)
		}
		if err != nil && !errors.Is(err, domain.ErrActionCancelled) {
			s.logger.Error("event dispatch failed", "session_id", sessionID, "node", body.Node, "event", body.Event, "err", err)
		}
		s.persist(context.Background(), sessionID, e)
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) executeAction(w http.ResponseWriter, r *http.Request) {
	e, ok := s.resolveEngine(w, r)
	if !ok {
		return
	}
	var binding domain.ActionBinding
	if err := json.NewDecoder(r.Body).Decode(&binding); err != nil || binding.Action == "" {
		httpError(w, http.StatusBadRequest, fmt.Errorf("action is required"))
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	go func() {
		if err := e.Execute(context.Background(), binding); err != nil && !errors.Is(err, domain.ErrActionCancelled) {
			s.logger.Error("action failed", "session_id", sessionID, "action", binding.Action, "err", err)
		}
		s.persist(context.Background(), sessionID, e)
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) listConfirmations(w http.ResponseWriter, r *http.Request) {
	e, ok := s.resolveEngine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"confirmations": e.PendingConfirmations()})
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request) {
	s.resolveConfirmation(w, r, true)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	s.resolveConfirmation(w, r, false)
}

func (s *Server) resolveConfirmation(w http.ResponseWriter, r *http.Request, approve bool) {
	e, ok := s.resolveEngine(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "confirmationID")
	var err error
	if approve {
		err = e.Confirm(id)
	} else {
		err = e.Cancel(id)
	}
	if err != nil {
		if errors.Is(err, domain.ErrConfirmationNotFound) {
			httpError(w, http.StatusNotFound, err)
			return
		}
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamState serves the session's state changes as SSE, one event per
// Set/Update batch.
func (s *Server) streamState(w http.ResponseWriter, r *http.Request) {
	e, ok := s.resolveEngine(w, r)
	if !ok {
		return
	}
	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		httpError(w, http.StatusInternalServerError, fmt.Errorf("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := make(chan []state.Change, 16)
	unsubscribe := e.State().Subscribe(func(changes []state.Change) {
		select {
		case events <- changes:
		default:
			// Slow client; drop rather than block the store.
			s.logger.Warn("sse client buffer full, dropping changes")
		}
	})
	defer unsubscribe()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case changes := <-events:
			payload, err := json.Marshal(changes)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) resolveEngine(w http.ResponseWriter, r *http.Request) (*weft.Engine, bool) {
	id := chi.URLParam(r, "sessionID")
	e, err := s.engineFor(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			httpError(w, http.StatusNotFound, err)
		} else {
			httpError(w, http.StatusInternalServerError, err)
		}
		return nil, false
	}
	return e, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func httpError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

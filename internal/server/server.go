// Package server exposes the daemon's HTTP surface: the SSE event
// subscription endpoint, the conveyor control operations and the
// settings read/update endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shortform-agent/internal/conveyor"
	"github.com/shortform-agent/internal/events"
	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/internal/storage"
	"github.com/shortform-agent/pkg/logger"
)

// Server wires the HTTP handlers
type Server struct {
	broker       *events.Broker
	scheduler    *conveyor.Scheduler
	repo         storage.Repository
	userID       string
	historyLimit int
	log          *logger.Logger
}

// New creates a server
func New(
	broker *events.Broker,
	scheduler *conveyor.Scheduler,
	repo storage.Repository,
	userID string,
	historyLimit int,
	log *logger.Logger,
) *Server {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Server{
		broker:       broker,
		scheduler:    scheduler,
		repo:         repo,
		userID:       userID,
		historyLimit: historyLimit,
		log:          log.WithComponent("server"),
	}
}

// Handler returns the HTTP routing table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /events/history", s.handleHistory)
	mux.HandleFunc("POST /conveyor/trigger", s.handleTrigger)
	mux.HandleFunc("POST /conveyor/pause", s.handlePause)
	mux.HandleFunc("POST /conveyor/resume", s.handleResume)
	mux.HandleFunc("GET /settings/ai", s.handleGetAISettings)
	mux.HandleFunc("PUT /settings/ai", s.handlePutAISettings)
	mux.HandleFunc("GET /settings/conveyor", s.handleGetConveyorSettings)
	mux.HandleFunc("PUT /settings/conveyor", s.handlePutConveyorSettings)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleEvents serves the long-lived SSE stream. With ?item= the stream
// is restricted to one item; ?history= replays up to N persisted events
// before going live.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var itemFilter *uint
	if raw := r.URL.Query().Get("item"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}
		itemID := uint(id)
		itemFilter = &itemID
	}

	// Backfill before subscribing live so a reconnecting client misses
	// nothing that is still in the replay buffer
	if raw := r.URL.Query().Get("history"); raw != "" && itemFilter != nil {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			limit = s.historyLimit
		}
		history, err := s.broker.History(r.Context(), *itemFilter, limit)
		if err != nil {
			s.log.Warn().Err(err).Msg("Failed to load event history")
		}
		for _, event := range history {
			writeSSE(w, event)
		}
		flusher.Flush()
	}

	sub := s.broker.Subscribe(itemFilter)
	defer s.broker.Unsubscribe(sub)

	s.log.Debug().Msg("SSE subscriber connected")

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			writeSSE(w, event)
			flusher.Flush()
		}
	}
}

// writeSSE writes one newline-delimited event:/data: pair
func writeSSE(w http.ResponseWriter, event *models.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("item")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}

	limit := s.historyLimit
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		if parsed, err := strconv.Atoi(rawLimit); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	history, err := s.broker.History(r.Context(), uint(id), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

// controlResponse is returned by the trigger/pause/resume operations
type controlResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	result, err := s.scheduler.Trigger(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, conveyor.ErrPaused),
			errors.Is(err, conveyor.ErrDisabled),
			errors.Is(err, conveyor.ErrDailyLimit),
			errors.Is(err, conveyor.ErrBudgetExhausted):
			status = http.StatusConflict
		}
		s.writeJSON(w, status, controlResponse{Success: false, Message: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, controlResponse{
		Success: true,
		Message: fmt.Sprintf("pass completed: %d scored, %d enqueued, %d below threshold", result.Scored, result.Enqueued, result.SkippedThreshold),
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, controlResponse{Success: true, Message: s.scheduler.Pause()})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, controlResponse{Success: true, Message: s.scheduler.Resume()})
}

func (s *Server) handleGetAISettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.repo.GetAISettings(r.Context(), s.userID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, settings)
}

// handlePutAISettings replaces the settings document. A running iteration
// keeps its snapshot; the update applies from the next iteration on.
func (s *Server) handlePutAISettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.repo.GetAISettings(r.Context(), s.userID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	var incoming models.AISettings
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid settings payload: %w", err))
		return
	}
	if incoming.MaxIterations < 1 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("max_iterations must be at least 1"))
		return
	}
	if incoming.MinApprovalScore < 1 || incoming.MinApprovalScore > 10 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("min_approval_score must be in [1,10]"))
		return
	}

	incoming.ID = current.ID
	incoming.UserID = s.userID
	if err := s.repo.SaveAISettings(r.Context(), &incoming); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &incoming)
}

func (s *Server) handleGetConveyorSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.repo.GetConveyorSettings(r.Context(), s.userID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	stats, err := s.repo.GetConveyorStats(r.Context(), s.userID, time.Now())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"settings": settings,
		"stats":    stats,
		"paused":   s.scheduler.Paused(),
	})
}

func (s *Server) handlePutConveyorSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.repo.GetConveyorSettings(r.Context(), s.userID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	var incoming models.ConveyorSettings
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid settings payload: %w", err))
		return
	}
	if incoming.DailyLimit < 0 || incoming.MonthlyBudgetUSD < 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("limits must be non-negative"))
		return
	}

	incoming.ID = current.ID
	incoming.UserID = s.userID
	if err := s.repo.SaveConveyorSettings(r.Context(), &incoming); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &incoming)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// ListenAndServe runs the server until ctx is canceled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("HTTP server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"runreel/internal/config"
	"runreel/internal/generation"
	"runreel/internal/logging"
	"runreel/internal/records"
	"runreel/internal/services"
)

type apiServer struct {
	bind   string
	owner  string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		owner:  cfg.Owner.ID,
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Route("/generations", func(r chi.Router) {
			r.Post("/", s.handleStartGeneration)
			r.Get("/current", s.handleCurrentGeneration)
			r.Post("/cancel", s.handleCancelGeneration)
			r.Get("/progress", s.handleProgressFeed)
		})
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Get("/{id}", s.handleGetJob)
		})
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
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
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)

	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type startGenerationRequest struct {
	SubjectID     string `json:"subject_id"`
	Script        string `json:"script"`
	OutputFormat  string `json:"output_format,omitempty"`
	Customization struct {
		VoiceTone       string `json:"voice_tone,omitempty"`
		BackgroundTheme string `json:"background_theme,omitempty"`
		MusicMood       string `json:"music_mood,omitempty"`
		IncludeStats    bool   `json:"include_stats,omitempty"`
		IncludeBranding bool   `json:"include_branding,omitempty"`
	} `json:"customization"`
}

// handleStartGeneration kicks off a generation in the background and returns
// 202 immediately; callers follow progress via /current or the websocket
// feed. Precondition failures surface synchronously.
func (s *apiServer) handleStartGeneration(w http.ResponseWriter, r *http.Request) {
	var req startGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := generation.Input{
		SubjectID:  req.SubjectID,
		ScriptText: req.Script,
		Customization: generation.Customization{
			VoiceTone:       req.Customization.VoiceTone,
			BackgroundTheme: req.Customization.BackgroundTheme,
			MusicMood:       req.Customization.MusicMood,
			IncludeStats:    req.Customization.IncludeStats,
			IncludeBranding: req.Customization.IncludeBranding,
		},
	}
	if req.OutputFormat != "" {
		format, ok := generation.ParseOutputFormat(req.OutputFormat)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown output format "+req.OutputFormat)
			return
		}
		input.OutputFormat = format
	}
	if err := input.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Reserve the session synchronously so a concurrent start gets its 409
	// before this handler returns, then drive the generation to a terminal
	// state off the request goroutine.
	started := make(chan error, 1)
	go func() {
		ctx := services.WithRequestID(context.Background(), uuid.NewString())
		_, err := s.daemon.orch.Generate(ctx, input)
		select {
		case started <- err:
		default:
		}
	}()

	// Give the orchestrator a beat to either reject the call or leave the
	// idle state. Precondition failures are fast and deterministic.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case err := <-started:
			if err == nil {
				// Completed before we responded, still an accepted start.
				s.writeAccepted(w)
				return
			}
			switch {
			case errors.Is(err, services.ErrConcurrent):
				s.writeError(w, http.StatusConflict, "a generation is already in flight")
			case errors.Is(err, services.ErrConfiguration), errors.Is(err, services.ErrAuth), errors.Is(err, services.ErrValidation):
				s.writeError(w, http.StatusBadRequest, err.Error())
			default:
				// The generation started and failed later; from the API's
				// point of view the start itself was accepted.
				s.writeAccepted(w)
			}
			return
		case <-deadline:
			s.writeAccepted(w)
			return
		default:
			if snap := s.daemon.orch.Snapshot(); snap.State.IsActive() {
				s.writeAccepted(w)
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (s *apiServer) writeAccepted(w http.ResponseWriter) {
	snap := s.daemon.orch.Snapshot()
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"record_id": snap.RecordID,
		"state":     snap.State,
	})
}

func (s *apiServer) handleCurrentGeneration(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.orch.Snapshot())
}

func (s *apiServer) handleCancelGeneration(w http.ResponseWriter, r *http.Request) {
	snap := s.daemon.orch.Snapshot()
	if !snap.State.IsActive() {
		s.writeError(w, http.StatusConflict, "no generation in flight")
		return
	}
	s.daemon.orch.Cancel()
	s.writeJSON(w, http.StatusOK, map[string]any{"cancelled": true, "record_id": snap.RecordID})
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []records.Status
	for _, raw := range strings.Split(r.URL.Query().Get("status"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		status, ok := records.ParseStatus(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status "+raw)
			return
		}
		statuses = append(statuses, status)
	}

	recs, err := s.daemon.store.List(r.Context(), s.owner, statuses, 100)
	if err != nil {
		s.logger.Error("list job records", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "list job records")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": recs, "count": len(recs)})
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, err := s.daemon.store.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, records.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "job record not found")
	case err != nil:
		s.logger.Error("get job record", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "get job record")
	default:
		s.writeJSON(w, http.StatusOK, record)
	}
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.daemon.store.OwnerStats(r.Context(), s.owner)
	if err != nil {
		s.logger.Error("record store health", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "record store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": s.daemon.running.Load(),
		"session": s.daemon.orch.Snapshot().State,
		"records": stats,
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("encode api response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

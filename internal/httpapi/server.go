// Package httpapi exposes the coaching pipeline over REST and a websocket
// streaming channel, plus the cached audio files themselves.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/adaptivefit/coachpipe/internal/audiocache"
	"github.com/adaptivefit/coachpipe/internal/coach"
	"github.com/adaptivefit/coachpipe/internal/config"
	"github.com/adaptivefit/coachpipe/internal/ledger"
	"github.com/adaptivefit/coachpipe/internal/observability"
	"github.com/adaptivefit/coachpipe/internal/persona"
	"github.com/adaptivefit/coachpipe/internal/trigger"
)

type Server struct {
	cfg      config.Config
	orch     *coach.Orchestrator
	personas *persona.Registry
	cache    *audiocache.Cache
	store    ledger.Store
	metrics  *observability.Metrics
	audioDir string
	upgrader websocket.Upgrader
}

func New(cfg config.Config, orch *coach.Orchestrator, personas *persona.Registry, cache *audiocache.Cache, store ledger.Store, metrics *observability.Metrics, audioDir string) *Server {
	return &Server{
		cfg:      cfg,
		orch:     orch,
		personas: personas,
		cache:    cache,
		store:    store,
		metrics:  metrics,
		audioDir: audioDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections by default; a stray
				// website must not be able to drive a user's coaching stream.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/coach/trigger", s.handleTrigger)
	r.Get("/v1/coach/stream", s.handleStream)
	r.Post("/v1/coach/responses/{id}/feedback", s.handleFeedback)
	r.Delete("/v1/coach/users/{userID}/responses", s.handlePurgeUser)
	r.Get("/v1/coach/personas", s.handleListPersonas)
	r.Get("/v1/coach/cache/stats", s.handleCacheStats)

	if s.audioDir != "" {
		fs := http.StripPrefix("/audio/", http.FileServer(http.Dir(s.audioDir)))
		r.Get("/audio/*", fs.ServeHTTP)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"personas": len(s.personas.All()),
	})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req coach.Request
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	if req.Tier == "" {
		req.Tier = trigger.TierFree
	}

	resp, err := s.orch.HandleTrigger(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, trigger.ErrInvalidTrigger):
			respondError(w, http.StatusBadRequest, "invalid_trigger", err.Error())
		case errors.Is(err, persona.ErrUnknownPersona):
			respondError(w, http.StatusBadRequest, "unknown_persona", err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "internal", err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

type feedbackRequest struct {
	Rating  int  `json:"rating"`
	Helpful bool `json:"helpful"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		respondError(w, http.StatusBadRequest, "invalid_rating", "rating must be between 1 and 5")
		return
	}
	err := s.store.AttachFeedback(r.Context(), id, ledger.Feedback{Rating: req.Rating, Helpful: req.Helpful})
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			respondError(w, http.StatusNotFound, "response_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "recorded"})
}

func (s *Server) handlePurgeUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	removed, err := s.store.PurgeUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"purged": removed})
}

func (s *Server) handleListPersonas(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"personas": s.personas.All()})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.cache.Stats())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

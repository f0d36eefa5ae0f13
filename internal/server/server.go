// Package server exposes the conversation over HTTP for headless clients: state
// snapshots, a server-sent event stream, user input, selection and consent.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"photoagent/internal/chat"
	"photoagent/internal/config"
	"photoagent/internal/conversation"
	"photoagent/internal/library"
	"photoagent/internal/permission"
)

const maxBodyBytes = 1 << 20

// Session is the part of the session controller the API drives.
type Session interface {
	SubmitUserInputAsync(ctx context.Context, text string) bool
	Suggestion(n int) (chat.SuggestedAction, bool)
	State() *conversation.Store
}

// ConsentQueue lets clients see and decide the outstanding consent request.
// permission.QueueBroker satisfies it.
type ConsentQueue interface {
	Outstanding() (permission.ConsentRequest, bool)
	Decide(id string, granted bool) error
}

type Options struct {
	Session Session
	Consent ConsentQueue
	// Photos validates selections when set.
	Photos   library.Store
	Gatherer prometheus.Gatherer
	Config   config.ServerConfig
}

type Server struct {
	session  Session
	consent  ConsentQueue
	photos   library.Store
	gatherer prometheus.Gatherer
	cfg      config.ServerConfig

	// baseCtx outlives requests; turns started over HTTP run under it.
	baseCtx context.Context
}

func New(ctx context.Context, opts Options) *Server {
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		session:  opts.Session,
		consent:  opts.Consent,
		photos:   opts.Photos,
		gatherer: gatherer,
		cfg:      opts.Config,
		baseCtx:  ctx,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.getState)
		r.Get("/events", s.streamEvents)
		r.Post("/input", s.postInput)
		r.Post("/selection", s.postSelection)
		r.Route("/consent", func(r chi.Router) {
			r.Get("/", s.getConsent)
			r.Post("/{id}", s.postConsent)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

type stateResponse struct {
	conversation.Snapshot
	Consent *permission.ConsentRequest `json:"consent,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "photoagent"})
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{Snapshot: s.session.State().Snapshot()}
	if req, ok := s.consent.Outstanding(); ok {
		resp.Consent = &req
	}
	respondJSON(w, http.StatusOK, resp)
}

// streamEvents sends the latest snapshot whenever the state changes.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, cancel := s.session.State().Subscribe()
	defer cancel()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				log.Error().Err(err).Msg("marshal snapshot")
				return
			}
			if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		case <-s.baseCtx.Done():
			return
		}
	}
}

type inputRequest struct {
	Text       string `json:"text"`
	Suggestion int    `json:"suggestion,omitempty"`
}

func (s *Server) postInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)
	if req.Suggestion > 0 {
		sugg, ok := s.session.Suggestion(req.Suggestion)
		if !ok {
			respondError(w, http.StatusNotFound, fmt.Sprintf("no suggestion #%d", req.Suggestion))
			return
		}
		text = sugg.Prompt
	}
	if text == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	if !s.session.SubmitUserInputAsync(s.baseCtx, text) {
		respondError(w, http.StatusConflict, "session is busy")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type selectionRequest struct {
	URIs []string `json:"uris"`
}

func (s *Server) postSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.photos != nil {
		for _, uri := range req.URIs {
			if _, err := s.photos.ByURI(r.Context(), uri); err != nil {
				if errors.Is(err, library.ErrNotFound) {
					respondError(w, http.StatusBadRequest, "unknown photo: "+uri)
					return
				}
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
	}
	state := s.session.State()
	state.SetSelection(req.URIs)
	respondJSON(w, http.StatusOK, map[string][]string{"selection": nonNil(state.Selection())})
}

func (s *Server) getConsent(w http.ResponseWriter, r *http.Request) {
	req, ok := s.consent.Outstanding()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

type consentDecision struct {
	Granted *bool `json:"granted"`
}

func (s *Server) postConsent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req consentDecision
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Granted == nil {
		respondError(w, http.StatusBadRequest, "granted is required")
		return
	}
	if err := s.consent.Decide(id, *req.Granted); err != nil {
		if errors.Is(err, permission.ErrNoOutstanding) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "granted": *req.Granted})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

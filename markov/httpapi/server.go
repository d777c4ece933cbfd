// Package httpapi serves a Brain over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/wbrown/dadacore/markov"
	"github.com/wbrown/dadacore/markov/brain"
	"github.com/wbrown/dadacore/markov/observability"
)

const (
	defaultGenerateCount = 9
	maxGenerateCount     = 100
	maxLearnBody         = 8 << 20

	// RequestIDHeader carries the request id on every response
	RequestIDHeader = "X-Request-Id"
)

// Brain is the model surface the server needs; *brain.Brain satisfies it
type Brain interface {
	GenerateRandom() (string, error)
	GenerateFromWord(word string) (string, error)
	Reply(phrase string) (string, error)
	LearnLines(r io.Reader) (brain.LearnResult, error)
	Sync() error
	Stats() (brain.Stats, error)
}

type Server struct {
	brain   Brain
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a server. metrics and logger may be nil.
func New(b Brain, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{brain: b, metrics: metrics, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.HTTPHandler())
	}

	r.Get("/v1/generate", s.handleGenerate)
	r.Get("/v1/words/{word}", s.handleGenerateFromWord)
	r.Get("/v1/reply", s.handleReply)
	r.Post("/v1/learn", s.handleLearn)
	r.Post("/v1/sync", s.handleSync)
	r.Get("/v1/stats", s.handleStats)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type linesResponse struct {
	Lines []string `json:"lines"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	count := defaultGenerateCount
	if v := strings.TrimSpace(r.URL.Query().Get("count")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxGenerateCount {
			respondError(w, http.StatusBadRequest, "invalid_count", "count must be between 1 and "+strconv.Itoa(maxGenerateCount))
			return
		}
		count = n
	}

	lines := make([]string, 0, count)
	for i := 0; i < count; i++ {
		line, err := s.brain.GenerateRandom()
		if err != nil {
			s.respondModelError(w, r, err)
			return
		}
		lines = append(lines, line)
	}
	respondJSON(w, http.StatusOK, linesResponse{Lines: lines})
}

type replyResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleGenerateFromWord(w http.ResponseWriter, r *http.Request) {
	line, err := s.brain.GenerateFromWord(chi.URLParam(r, "word"))
	if err != nil {
		s.respondModelError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, replyResponse{Reply: line})
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	phrase := strings.TrimSpace(r.URL.Query().Get("q"))
	if phrase == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "q is required")
		return
	}
	line, err := s.brain.Reply(phrase)
	if err != nil {
		s.respondModelError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, replyResponse{Reply: line})
}

type learnResponse struct {
	Lines   int `json:"lines"`
	Learned int `json:"learned"`
	Skipped int `json:"skipped"`
}

func (s *Server) handleLearn(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxLearnBody)
	defer body.Close()

	res, err := s.brain.LearnLines(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", err.Error())
			return
		}
		s.respondModelError(w, r, err)
		return
	}
	if err := s.brain.Sync(); err != nil {
		s.respondModelError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, learnResponse{Lines: res.Lines, Learned: res.Learned, Skipped: res.Skipped})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.brain.Sync(); err != nil {
		s.respondModelError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "synced"})
}

type statsResponse struct {
	Backend       string   `json:"backend"`
	Location      string   `json:"location"`
	Order         int      `json:"order"`
	ForwardRoots  *int     `json:"forward_roots,omitempty"`
	BackwardRoots *int     `json:"backward_roots,omitempty"`
	Contexts      *int     `json:"contexts,omitempty"`
	Transitions   *int     `json:"transitions,omitempty"`
	Cache         cacheDTO `json:"cache"`
}

type cacheDTO struct {
	Size       int   `json:"size"`
	Dirty      int   `json:"dirty"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	WriteBacks int64 `json:"write_backs"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.brain.Stats()
	if err != nil {
		s.respondModelError(w, r, err)
		return
	}
	resp := statsResponse{
		Backend:  stats.Backend,
		Location: stats.Location,
		Order:    stats.Order,
		Cache: cacheDTO{
			Size:       stats.Cache.Size,
			Dirty:      stats.Cache.Dirty,
			Hits:       stats.Cache.Hits,
			Misses:     stats.Cache.Misses,
			Evictions:  stats.Cache.Evictions,
			WriteBacks: stats.Cache.WriteBacks,
		},
	}
	if stats.Surveyed {
		sum := stats.Summary
		resp.ForwardRoots = &sum.ForwardRoots
		resp.BackwardRoots = &sum.BackwardRoots
		resp.Contexts = &sum.Contexts
		resp.Transitions = &sum.Transitions
	}
	respondJSON(w, http.StatusOK, resp)
}

// respondModelError maps model errors to status codes; anything
// unexpected is logged and reported as a 500
func (s *Server) respondModelError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, markov.ErrModelIsEmpty):
		respondError(w, http.StatusConflict, "model_empty", err.Error())
	case errors.Is(err, markov.ErrStartWord):
		respondError(w, http.StatusNotFound, "unknown_word", err.Error())
	case errors.Is(err, markov.ErrSequenceTooShort):
		respondError(w, http.StatusUnprocessableEntity, "sequence_too_short", err.Error())
	default:
		s.logger.Error("request failed",
			"request_id", w.Header().Get(RequestIDHeader),
			"path", r.URL.Path,
			"error", err)
		respondError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// requestID tags every response with the caller's request id or a new one
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// observe records per-route metrics once the route is resolved
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(route, status, time.Since(start))
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

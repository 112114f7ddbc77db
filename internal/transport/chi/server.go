// Package chi exposes the recommendation engine over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cinevec/cinevec/internal/domain"
	"github.com/cinevec/cinevec/internal/index"
	"github.com/cinevec/cinevec/internal/metrics"
	healthuc "github.com/cinevec/cinevec/internal/usecase/health"
)

// Recommender produces ranked movie ids for a movie or a user.
type Recommender interface {
	ByMovie(ctx context.Context, movieID int64) ([]int64, error)
	ByUser(ctx context.Context, userID int64) ([]int64, error)
}

// Searcher runs a similarity search over a named collection.
type Searcher interface {
	Search(ctx context.Context, collection string, query domain.Query, topK int) ([]index.ScoredPoint, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements the HTTP API.
type Server struct {
	recommend     Recommender
	search        Searcher
	health        HealthChecker
	defaultTopK   int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. defaultTopK bounds search requests
// that do not carry an explicit top_k.
func NewServer(
	recommend Recommender,
	search Searcher,
	health HealthChecker,
	defaultTopK int,
	logger *zap.Logger,
) *Server {
	s := &Server{
		recommend:   recommend,
		search:      search,
		health:      health,
		defaultTopK: defaultTopK,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrDimMismatch, http.StatusBadRequest, codeDimMismatch),
		sentinelHandler(domain.ErrNoSignal, http.StatusUnprocessableEntity, codeNoSignal),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
	}
	return s
}

// Router mounts the API routes with auth and metrics middleware.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chirouter.NewRouter()
	r.Use(metrics.Middleware())
	r.Use(APIKeyMiddleware(apiKeys))

	r.Get("/recommendations/movies/{id}", s.RecommendByMovie)
	r.Get("/recommendations/users/{id}", s.RecommendByUser)
	r.Post("/search", s.SearchCollection)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	return r
}

type recommendationsResponse struct {
	IDs []int64 `json:"ids"`
}

// RecommendByMovie handles GET /recommendations/movies/{id}.
func (s *Server) RecommendByMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ids, err := s.recommend.ByMovie(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendationsResponse{IDs: ids})
}

// RecommendByUser handles GET /recommendations/users/{id}.
func (s *Server) RecommendByUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ids, err := s.recommend.ByUser(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendationsResponse{IDs: ids})
}

type searchRequest struct {
	Collection string    `json:"collection"`
	Query      string    `json:"query,omitempty"`
	Vector     []float32 `json:"vector,omitempty"`
	TopK       int       `json:"top_k,omitempty"`
}

type searchHit struct {
	ID      int64   `json:"id"`
	Score   float32 `json:"score"`
	Payload any     `json:"payload,omitempty"`
}

type searchResponse struct {
	Items []searchHit `json:"items"`
	Total int         `json:"total"`
}

// SearchCollection handles POST /search.
func (s *Server) SearchCollection(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Collection == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "collection is required")
		return
	}
	if (req.Query == "") == (len(req.Vector) == 0) {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"exactly one of query and vector is required")
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}

	query := domain.Text(req.Query)
	if len(req.Vector) > 0 {
		query = domain.Vector(req.Vector)
	}

	hits, err := s.search.Search(r.Context(), req.Collection, query, topK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchHit, 0, len(hits))
	for _, hit := range hits {
		id, ok := hit.PayloadID()
		if !ok {
			continue
		}
		items = append(items, searchHit{ID: id, Score: hit.Score, Payload: hit.Payload})
	}
	writeJSON(w, http.StatusOK, searchResponse{Items: items, Total: len(items)})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chirouter.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "id must be an integer")
		return 0, false
	}
	return id, true
}

type errorCode string

const (
	codeBadRequest        errorCode = "bad_request"
	codeValidationFailed  errorCode = "validation_failed"
	codeNotFound          errorCode = "not_found"
	codeDimMismatch       errorCode = "vector_dim_mismatch"
	codeNoSignal          errorCode = "no_signal"
	codeEmbeddingProvider errorCode = "embedding_provider_error"
	codeIndexUnavailable  errorCode = "index_unavailable"
	codeUnauthorized      errorCode = "unauthorized"
	codeInternalError     errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrDimMismatch,
		domain.ErrNoSignal,
		domain.ErrEmbeddingProvider,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// Package chi exposes the gateway over HTTP. Handlers decode the wire
// DTOs, call the coordinator, and translate sentinel errors into the
// uniform error envelope.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/meridian-cloud/docgate/internal/cache"
	"github.com/meridian-cloud/docgate/internal/domain"
	"github.com/meridian-cloud/docgate/internal/domain/document"
	domsearch "github.com/meridian-cloud/docgate/internal/domain/search"
	"github.com/meridian-cloud/docgate/internal/resilience"
	healthuc "github.com/meridian-cloud/docgate/internal/usecase/health"
	searchuc "github.com/meridian-cloud/docgate/internal/usecase/search"
	shardinguc "github.com/meridian-cloud/docgate/internal/usecase/sharding"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 100
	defaultSearchSize = 10
	maxBatchSize      = 100
)

// Gateway is the coordinator surface the HTTP layer consumes.
type Gateway interface {
	GetDocument(ctx context.Context, collection, jurisdiction, id string) (document.Document, error)
	PutDocument(ctx context.Context, collection, jurisdiction string, doc document.Document) (bool, error)
	DeleteDocument(ctx context.Context, collection, jurisdiction, id string) error
	ListDocuments(ctx context.Context, collection, jurisdiction string, filter document.ListFilter, cursor string, limit int) ([]document.Document, string, error)
	TextSearch(ctx context.Context, collection, jurisdiction, input string, limit int, crossRegion bool) ([]domsearch.ScoredResult, error)
	BatchWrite(ctx context.Context, collection, jurisdiction string, docs []document.Document) error
	Migrate(ctx context.Context, collection string, dryRun bool) (*shardinguc.Report, error)
	CircuitBreakerStatus() []resilience.BreakerSnapshot
	SearchStatistics() searchuc.Stats
	ShardingStatistics() shardinguc.Stats
	CacheStatistics(ctx context.Context) cache.Stats
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API over the gateway coordinator.
type Server struct {
	gateway       Gateway
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(gateway Gateway, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		gateway: gateway,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists),
		sentinelHandler(domain.ErrPermissionDenied, http.StatusForbidden, CodePermissionDenied),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrFailedPrecondition, http.StatusPreconditionFailed, CodeFailedPrecondition),
		sentinelHandler(domain.ErrCircuitOpen, http.StatusServiceUnavailable, CodeCircuitOpen),
		sentinelHandler(domain.ErrUnavailable, http.StatusServiceUnavailable, CodeUnavailable),
		sentinelHandler(domain.ErrResourceExhausted, http.StatusTooManyRequests, CodeResourceExhausted),
		sentinelHandler(domain.ErrDeadlineExceeded, http.StatusGatewayTimeout, CodeDeadlineExceeded),
	}
	return s
}

// Routes mounts every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", s.Stats)

		r.Route("/collections/{collection}", func(r chi.Router) {
			r.Get("/documents", s.ListDocuments)
			r.Post("/documents:batch", s.BatchWrite)
			r.Get("/documents/{id}", s.GetDocument)
			r.Put("/documents/{id}", s.PutDocument)
			r.Delete("/documents/{id}", s.DeleteDocument)
			r.Post("/search", s.Search)
			r.Post("/migrate", s.Migrate)
		})
	})
}

// GetDocument handles GET /v1/collections/{collection}/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")
	jurisdiction := r.URL.Query().Get("jurisdiction")

	doc, err := s.gateway.GetDocument(r.Context(), collection, jurisdiction, id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToPayload(doc))
}

// PutDocument handles PUT /v1/collections/{collection}/documents/{id}.
func (s *Server) PutDocument(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")
	jurisdiction := r.URL.Query().Get("jurisdiction")

	var req PutDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return
	}

	doc, err := document.New(id, req.Fields)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	created, err := s.gateway.PutDocument(r.Context(), collection, jurisdiction, doc)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, PutDocumentResponse{ID: id, Created: created})
}

// DeleteDocument handles DELETE /v1/collections/{collection}/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")
	jurisdiction := r.URL.Query().Get("jurisdiction")

	if err := s.gateway.DeleteDocument(r.Context(), collection, jurisdiction, id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDocuments handles GET /v1/collections/{collection}/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	q := r.URL.Query()

	limit := defaultPageSize
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	filter := document.ListFilter{Tag: q.Get("tag"), State: q.Get("state")}
	docs, next, err := s.gateway.ListDocuments(r.Context(), collection, q.Get("jurisdiction"), filter, q.Get("cursor"), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]DocumentPayload, len(docs))
	for i := range docs {
		items[i] = documentToPayload(docs[i])
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Items: items, NextCursor: next})
}

// Search handles POST /v1/collections/{collection}/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchSize
	}

	results, err := s.gateway.TextSearch(r.Context(), collection, req.Jurisdiction, req.Query, req.Limit, req.CrossRegion)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Hits: resultsToHits(results)})
}

// BatchWrite handles POST /v1/collections/{collection}/documents:batch.
func (s *Server) BatchWrite(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req BatchWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "documents is required")
		return
	}
	if len(req.Documents) > maxBatchSize {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			"batch too large: max "+strconv.Itoa(maxBatchSize)+" documents")
		return
	}

	docs := make([]document.Document, len(req.Documents))
	for i, p := range req.Documents {
		doc, err := document.New(p.ID, p.Fields)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "document "+strconv.Itoa(i)+": "+err.Error())
			return
		}
		docs[i] = doc
	}

	if err := s.gateway.BatchWrite(r.Context(), collection, req.Jurisdiction, docs); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BatchWriteResponse{Written: len(docs)})
}

// Migrate handles POST /v1/collections/{collection}/migrate.
func (s *Server) Migrate(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req MigrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return
	}

	report, err := s.gateway.Migrate(r.Context(), collection, req.DryRun)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Stats handles GET /v1/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		Breakers: s.gateway.CircuitBreakerStatus(),
		Search:   s.gateway.SearchStatistics(),
		Sharding: s.gateway.ShardingStatistics(),
		Cache:    s.gateway.CacheStatistics(r.Context()),
	})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for name, result := range report.Checks {
		checks[name] = string(result)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrPermissionDenied,
		domain.ErrInvalidQuery,
		domain.ErrFailedPrecondition,
		domain.ErrCircuitOpen,
		domain.ErrUnavailable,
		domain.ErrResourceExhausted,
		domain.ErrDeadlineExceeded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
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
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

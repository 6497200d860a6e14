package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchkit"
	"github.com/kailas-cloud/searchkit/internal/db"
	"github.com/kailas-cloud/searchkit/internal/domain"
	logpkg "github.com/kailas-cloud/searchkit/internal/logger"
	"github.com/kailas-cloud/searchkit/internal/querylog"
	healthuc "github.com/kailas-cloud/searchkit/internal/usecase/health"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest       = "bad_request"
	CodeUnauthorized     = "unauthorized"
	CodeValidationFailed = "validation_failed"
	CodeIndexNotFound    = "index_not_found"
	CodeBackendError     = "backend_error"
	CodeInternalError    = "internal_error"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves searches over HTTP.
type Server struct {
	client        *searchkit.Client
	health        *healthuc.Service
	logger        *zap.Logger
	debug         bool
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. With debug on, search responses
// carry the request's query log.
func NewServer(client *searchkit.Client, health *healthuc.Service, logger *zap.Logger, debug bool) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{client: client, health: health, logger: logger, debug: debug}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidFieldAction, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrUnsupportedStep, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrNoObjectLookup, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(db.ErrIndexNotFound, http.StatusNotFound, CodeIndexNotFound),
		backendErrorHandler,
	}
	return s
}

// Register mounts the routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Post("/search", s.Search)
	r.Post("/search/compile", s.Compile)
	r.Post("/search/count", s.Count)
}

// SearchResponse is the body of POST /search.
type SearchResponse struct {
	Total  int64                           `json:"total"`
	Took   int64                           `json:"took"`
	Items  []ItemResponse                  `json:"items"`
	Facets map[string]searchkit.FacetCount `json:"facets,omitempty"`
	Debug  *DebugPanel                     `json:"debug,omitempty"`
}

// ItemResponse is one materialized hit. Exactly one of Fields, Values and
// Object is set, depending on the result shape.
type ItemResponse struct {
	ID          string              `json:"id"`
	Score       *float64            `json:"score"`
	DocType     *string             `json:"doctype,omitempty"`
	Explanation map[string]any      `json:"explanation,omitempty"`
	Highlight   map[string][]string `json:"highlight,omitempty"`
	Fields      map[string]any      `json:"fields,omitempty"`
	Values      []any               `json:"values,omitempty"`
	Object      any                 `json:"object,omitempty"`
}

// DebugPanel lists the searches a request sent.
type DebugPanel struct {
	Summary string `json:"summary"`
	querylog.Panel
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	search, ok := s.decode(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	set, err := search.Results(ctx)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	facets, err := search.FacetCounts(ctx)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := NewSearchResponse(set, facets)
	resp.Debug = s.panel(r)

	writeJSON(w, http.StatusOK, resp)
}

// Compile handles POST /search/compile. The request document is returned
// without contacting the backend.
func (s *Server) Compile(w http.ResponseWriter, r *http.Request) {
	search, ok := s.decode(w, r)
	if !ok {
		return
	}
	doc, err := search.Compile()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Count handles POST /search/count.
func (s *Server) Count(w http.ResponseWriter, r *http.Request) {
	search, ok := s.decode(w, r)
	if !ok {
		return
	}
	n, err := search.Count(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n, "debug": s.panel(r)})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
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

// QueryLogMiddleware gives every request a fresh query log.
func QueryLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(querylog.Start(r.Context())))
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*searchkit.Search, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return nil, false
	}
	req, err := searchkit.ParseRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return nil, false
	}
	search, err := s.client.FromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return nil, false
	}
	return search, true
}

func (s *Server) panel(r *http.Request) *DebugPanel {
	if !s.debug {
		return nil
	}
	p := querylog.NewPanel(querylog.Entries(r.Context()))
	logpkg.FromContext(r.Context()).Debug("Search queries", zap.String("summary", p.Summary()))
	return &DebugPanel{Summary: p.Summary(), Panel: p}
}

// NewSearchResponse lays out a result page and its facet counts.
func NewSearchResponse(set searchkit.ResultSet, facets map[string]searchkit.FacetCount) SearchResponse {
	items := set.Items()
	resp := SearchResponse{
		Total: set.Total(),
		Took:  set.Took(),
		Items: make([]ItemResponse, len(items)),
	}
	for i, it := range items {
		resp.Items[i] = itemToResponse(it)
	}
	if len(facets) > 0 {
		resp.Facets = facets
	}
	return resp
}

func itemToResponse(it searchkit.Item) ItemResponse {
	m := it.Meta()
	out := ItemResponse{
		ID:          m.ID,
		Score:       m.Score,
		DocType:     m.DocType,
		Explanation: m.Explanation,
		Highlight:   m.Highlight,
	}
	switch v := it.(type) {
	case searchkit.Dict:
		out.Fields = v.Values
	case searchkit.Tuple:
		out.Values = v.Values
	case searchkit.Object:
		out.Object = v.Object
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

// backendErrorHandler reports engine failures without their internals.
func backendErrorHandler(w http.ResponseWriter, err error) bool {
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		return false
	}
	writeError(w, http.StatusBadGateway, CodeBackendError, "search backend failed: "+dbErr.Op)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

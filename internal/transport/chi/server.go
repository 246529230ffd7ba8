package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/logger"
	"github.com/mlcatalog/mlsearch/internal/session"
	healthuc "github.com/mlcatalog/mlsearch/internal/usecase/health"
	searchuc "github.com/mlcatalog/mlsearch/internal/usecase/search"
	"github.com/mlcatalog/mlsearch/internal/usecase/surface"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Catalog resolves entity names to search configurations.
type Catalog interface {
	Lookup(name string) (searchconfig.Config, error)
	Entities() []domain.EntityTag
}

// Server serves the JSON search API.
type Server struct {
	catalog       Catalog
	search        *searchuc.Service
	surfaces      *surface.Manager
	sessions      session.Store
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	catalog Catalog,
	search *searchuc.Service,
	surfaces *surface.Manager,
	sessions session.Store,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		catalog:  catalog,
		search:   search,
		surfaces: surfaces,
		sessions: sessions,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		pageOutOfRangeHandler,
		sentinelHandler(domain.ErrUnknownEntity, http.StatusNotFound, CodeUnknownEntity),
		sentinelHandler(domain.ErrSurfaceNotFound, http.StatusNotFound, CodeSurfaceNotFound),
		sentinelHandler(session.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrUnknownFacet, http.StatusBadRequest, CodeUnknownFacet),
		sentinelHandler(domain.ErrInvalidState, http.StatusBadRequest, CodeInvalidState),
		sentinelHandler(domain.ErrFacetNotStaged, http.StatusConflict, CodeFacetNotStaged),
		sentinelHandler(surface.ErrNoHistory, http.StatusConflict, CodeNoHistory),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, CodeBackendTimeout),
		sentinelHandler(domain.ErrNetwork, http.StatusBadGateway, CodeBackendNetwork),
		sentinelHandler(domain.ErrServerError, http.StatusBadGateway, CodeBackendFailed),
		sentinelHandler(domain.ErrClientError, http.StatusBadGateway, CodeBackendRejected),
		sentinelHandler(domain.ErrDecode, http.StatusBadGateway, CodeBackendMalformed),
	}
	return s
}

// Register mounts every route on r. Middleware is the caller's concern.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(s.sessions, s.logger))

		r.Get("/entities", s.ListEntities)
		r.Get("/{entity}/config", s.GetConfig)
		r.Get("/{entity}/search", s.Search)
		r.Get("/{entity}/query", s.CompileQuery)

		r.Post("/surfaces", s.MountSurface)
		r.Get("/surfaces/{id}", s.GetSurface)
		r.Post("/surfaces/{id}/actions", s.SurfaceAction)
		r.Delete("/surfaces/{id}", s.UnmountSurface)

		r.Get("/session/recent", s.RecentSearches)
		r.Delete("/session", s.ClearSession)
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	// Degraded still serves searches.
	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
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

// clientSentinels are the errors whose text is safe to show.
var clientSentinels = []error{
	domain.ErrPageOutOfRange,
	domain.ErrUnknownEntity,
	domain.ErrSurfaceNotFound,
	session.ErrNotFound,
	domain.ErrUnknownFacet,
	domain.ErrInvalidState,
	domain.ErrFacetNotStaged,
	surface.ErrNoHistory,
	domain.ErrTimeout,
	domain.ErrNetwork,
	domain.ErrServerError,
}

// safeDomainMessage returns a client message without exposing internals.
// Caller mistakes keep their detail; backend faults get the sentinel text only.
func safeDomainMessage(err error) string {
	for _, target := range []error{domain.ErrUnknownFacet, domain.ErrInvalidState, domain.ErrFacetNotStaged} {
		if errors.Is(err, target) {
			return err.Error()
		}
	}
	for _, sentinel := range clientSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "something went wrong"
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

// pageOutOfRangeHandler answers with the last reachable page so clients can jump there.
func pageOutOfRangeHandler(w http.ResponseWriter, err error, msg string) bool {
	var pe *domain.PageOutOfRangeError
	if !errors.As(err, &pe) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"code":      CodePageOutOfRange,
		"message":   "refine your search to see more results",
		"page":      pe.Page,
		"last_page": pe.LastPage,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, msg)
}

// errorBody classifies err the way handleDomainError would, for embedding in a 200 body.
func errorBody(err error) *ErrorResponse {
	if err == nil {
		return nil
	}
	code := CodeInternalError
	switch domain.KindOf(err) {
	case domain.KindNetwork:
		code = CodeBackendNetwork
	case domain.KindTimeout:
		code = CodeBackendTimeout
	case domain.KindServer:
		code = CodeBackendFailed
	case domain.KindClient:
		code = CodeBackendRejected
	case domain.KindDecode:
		code = CodeBackendMalformed
	}
	return &ErrorResponse{Code: code, Message: safeDomainMessage(err)}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v) //nolint:wrapcheck // reported verbatim as a bad request
}

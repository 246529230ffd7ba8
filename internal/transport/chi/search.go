package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/logger"
	"github.com/mlcatalog/mlsearch/internal/usecase/store"
	"github.com/mlcatalog/mlsearch/internal/usecase/urlsync"
)

// ListEntities handles GET /api/v1/entities.
func (s *Server) ListEntities(w http.ResponseWriter, r *http.Request) {
	tags := s.catalog.Entities()
	items := make([]EntityItem, 0, len(tags))
	for _, tag := range tags {
		cfg, err := s.catalog.Lookup(string(tag))
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		items = append(items, EntityItem{Entity: string(tag), Title: cfg.Title})
	}
	writeJSON(w, http.StatusOK, items)
}

// GetConfig handles GET /api/v1/{entity}/config.
func (s *Server) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.entityConfig(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, configToResponse(cfg))
}

// Search handles GET /api/v1/{entity}/search. The query string uses the public URL grammar.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.entityConfig(w, r)
	if !ok {
		return
	}
	st := urlsync.Parse(r.URL.Query(), cfg)

	out, err := s.search.Search(r.Context(), cfg, st)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	canonical := urlsync.Encode(out.State, cfg)
	if sess := sessionFromContext(r.Context()); sess != nil {
		if err := sess.RecordQuery(r.Context(), cfg.Entity, canonical); err != nil {
			logger.FromContext(r.Context()).Warn("Failed to record search in session", zap.Error(err))
		}
	}

	resp := SearchResponse{
		Entity:          string(cfg.Entity),
		Query:           canonical,
		State:           stateToResponse(out.State),
		ResultsResponse: resultsToResponse(cfg, out.State, &out.Page, s.search.LastPage(out.State.PageSize())),
	}
	if out.Capped {
		resp.Notice = string(store.NoticeCapped)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CompileQuery handles GET /api/v1/{entity}/query and returns the backend query without running it.
func (s *Server) CompileQuery(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.entityConfig(w, r)
	if !ok {
		return
	}
	q, err := s.search.Compile(cfg, urlsync.Parse(r.URL.Query(), cfg))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Index: q.Index, Body: q})
}

func (s *Server) entityConfig(w http.ResponseWriter, r *http.Request) (searchconfig.Config, bool) {
	cfg, err := s.catalog.Lookup(chi.URLParam(r, "entity"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return searchconfig.Config{}, false
	}
	return cfg, true
}

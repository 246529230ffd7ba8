package chi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/domain/search/filter"
	"github.com/mlcatalog/mlsearch/internal/domain/search/order"
	"github.com/mlcatalog/mlsearch/internal/usecase/surface"
	"github.com/mlcatalog/mlsearch/internal/usecase/urlsync"
)

// settleTimeout bounds how long a surface response waits for its fetch.
const settleTimeout = 10 * time.Second

// Surface actions.
const (
	ActionSetTerm      = "set_term"
	ActionAddFilter    = "add_filter"
	ActionRemoveFilter = "remove_filter"
	ActionSetRange     = "set_range"
	ActionSetSort      = "set_sort"
	ActionSetPage      = "set_page"
	ActionSetPageSize  = "set_page_size"
	ActionReset        = "reset"
	ActionStageOpen    = "stage_open"
	ActionStageToggle  = "stage_toggle"
	ActionStageRange   = "stage_range"
	ActionStageApply   = "stage_apply"
	ActionStageClose   = "stage_close"
	ActionBack         = "back"
	ActionForward      = "forward"
)

// MountSurface handles POST /api/v1/surfaces.
func (s *Server) MountSurface(w http.ResponseWriter, r *http.Request) {
	var req MountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Entity == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "entity is required")
		return
	}

	var sessionID string
	if sess := sessionFromContext(r.Context()); sess != nil {
		sessionID = sess.ID()
	}
	sf, err := s.surfaces.Mount(sessionID, req.Entity, req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/surfaces/"+sf.ID())
	s.writeSurface(w, r, http.StatusCreated, sf)
}

// GetSurface handles GET /api/v1/surfaces/{id}.
func (s *Server) GetSurface(w http.ResponseWriter, r *http.Request) {
	sf, err := s.surfaces.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeSurface(w, r, http.StatusOK, sf)
}

// SurfaceAction handles POST /api/v1/surfaces/{id}/actions.
func (s *Server) SurfaceAction(w http.ResponseWriter, r *http.Request) {
	sf, err := s.surfaces.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	var req ActionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := applyAction(sf, req); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeSurface(w, r, http.StatusOK, sf)
}

// UnmountSurface handles DELETE /api/v1/surfaces/{id}.
func (s *Server) UnmountSurface(w http.ResponseWriter, r *http.Request) {
	if err := s.surfaces.Unmount(chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func applyAction(sf *surface.Surface, req ActionRequest) error {
	st, staging := sf.Store(), sf.Staging()
	switch req.Action {
	case ActionSetTerm:
		return st.SetTerm(req.Term)
	case ActionAddFilter:
		return st.AddFilter(req.Field, req.Value)
	case ActionRemoveFilter:
		values := req.Values
		if req.Value != "" {
			values = append(values, req.Value)
		}
		return st.RemoveFilter(req.Field, values...)
	case ActionSetRange:
		return st.SetRange(req.Field, req.Min, req.Max)
	case ActionSetSort:
		clauses := make([]order.Clause, 0, len(req.Sort))
		for _, raw := range req.Sort {
			c, err := order.Parse(raw)
			if err != nil {
				return fmt.Errorf("%w: %w", domain.ErrInvalidState, err)
			}
			clauses = append(clauses, c)
		}
		return st.SetSort(clauses...)
	case ActionSetPage:
		return st.SetPage(req.Page)
	case ActionSetPageSize:
		return st.SetPageSize(req.Size)
	case ActionReset:
		return st.Reset()
	case ActionStageOpen:
		return staging.Open(req.Field)
	case ActionStageToggle:
		return staging.Toggle(req.Field, req.Value)
	case ActionStageRange:
		return staging.SetRange(req.Field, req.Min, req.Max)
	case ActionStageApply:
		return staging.Apply(req.Field)
	case ActionStageClose:
		staging.Close(req.Field)
		return nil
	case ActionBack:
		return sf.Back()
	case ActionForward:
		return sf.Forward()
	default:
		return fmt.Errorf("%w: unknown action %q", domain.ErrInvalidState, req.Action)
	}
}

func (s *Server) writeSurface(w http.ResponseWriter, r *http.Request, status int, sf *surface.Surface) {
	ctx, cancel := context.WithTimeout(r.Context(), settleTimeout)
	defer cancel()
	snap, err := sf.Store().WaitSettled(ctx)
	if err != nil {
		// Answer with whatever is there; the client polls GET for the rest.
		snap = sf.Store().Snapshot()
	}

	cfg := sf.Store().Config()
	cursor, length := sf.History().Position()
	resp := SurfaceResponse{
		ID:         sf.ID(),
		Entity:     string(sf.Entity()),
		Query:      urlsync.Encode(snap.State, cfg),
		URL:        sf.Query(),
		Status:     string(snap.Status),
		Generation: snap.Generation,
		Notice:     string(snap.Notice),
		Error:      errorBody(snap.Err),
		State:      stateToResponse(snap.State),
		History:    HistoryPosition{Cursor: cursor, Length: length},
	}
	if snap.Page != nil {
		results := resultsToResponse(cfg, snap.State, snap.Page, snap.LastPage)
		resp.Results = &results
	}
	for _, field := range sf.Staging().OpenFields() {
		v, err := sf.Staging().Staged(field)
		if err != nil {
			continue
		}
		if resp.Staged == nil {
			resp.Staged = make(map[string]FilterState)
		}
		resp.Staged[field] = stagedToResponse(v)
	}
	writeJSON(w, status, resp)
}

func stagedToResponse(v filter.Value) FilterState {
	if v.IsZero() {
		return FilterState{Values: []string{}}
	}
	return filterToResponse(v)
}

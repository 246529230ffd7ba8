package chi

import (
	"maps"
	"slices"

	"github.com/mlcatalog/mlsearch/internal/domain/search/filter"
	"github.com/mlcatalog/mlsearch/internal/domain/search/result"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/domain/search/state"
	"github.com/mlcatalog/mlsearch/internal/present"
)

// ErrorCode is the machine-readable part of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeUnknownEntity    ErrorCode = "unknown_entity"
	CodeUnknownFacet     ErrorCode = "unknown_facet"
	CodeInvalidState     ErrorCode = "invalid_state"
	CodeSurfaceNotFound  ErrorCode = "surface_not_found"
	CodeFacetNotStaged   ErrorCode = "facet_not_staged"
	CodeNoHistory        ErrorCode = "no_history"
	CodeNotFound         ErrorCode = "not_found"
	CodePageOutOfRange   ErrorCode = "page_out_of_range"
	CodeBackendNetwork   ErrorCode = "backend_unreachable"
	CodeBackendTimeout   ErrorCode = "backend_timeout"
	CodeBackendRejected  ErrorCode = "backend_rejected"
	CodeBackendFailed    ErrorCode = "backend_failed"
	CodeBackendMalformed ErrorCode = "backend_malformed"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// EntityItem lists a searchable entity kind.
type EntityItem struct {
	Entity string `json:"entity"`
	Title  string `json:"title"`
}

// FacetConfig describes one facet to a client.
type FacetConfig struct {
	Field           string   `json:"field"`
	Label           string   `json:"label"`
	Kind            string   `json:"kind"`
	MaxOptionsShown int      `json:"max_options_shown"`
	Labels          []string `json:"labels,omitempty"`
}

// SortOptionConfig describes one sort choice.
type SortOptionConfig struct {
	Field string `json:"field"`
	Label string `json:"label"`
}

// ConfigResponse is the body of GET /api/v1/{entity}/config.
type ConfigResponse struct {
	Entity         string             `json:"entity"`
	Title          string             `json:"title"`
	Facets         []FacetConfig      `json:"facets"`
	SortOptions    []SortOptionConfig `json:"sort_options"`
	DefaultSort    string             `json:"default_sort,omitempty"`
	PageSizes      []int              `json:"page_sizes"`
	ResultsPerPage int                `json:"results_per_page"`
}

// FilterState is an applied filter.
type FilterState struct {
	Values []string `json:"values,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// StateResponse is a search state.
type StateResponse struct {
	Term     string                 `json:"term"`
	Filters  map[string]FilterState `json:"filters"`
	Sort     []string               `json:"sort"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
}

// FieldValue is one displayed field of a record.
type FieldValue struct {
	Value   any    `json:"value"`
	Snippet string `json:"snippet,omitempty"`
}

// RecordItem is one hit.
type RecordItem struct {
	ID          string                `json:"id"`
	DisplayName string                `json:"display_name"`
	Score       *float64              `json:"score,omitempty"`
	Fields      map[string]FieldValue `json:"fields"`
}

// ResultsResponse is one page of results with its facet sidebar.
type ResultsResponse struct {
	Total             int             `json:"total"`
	TotalIsLowerBound bool            `json:"total_is_lower_bound"`
	LastPage          int             `json:"last_page"`
	Records           []RecordItem    `json:"records"`
	Facets            []present.Facet `json:"facets"`
}

// SearchResponse is the body of GET /api/v1/{entity}/search.
type SearchResponse struct {
	Entity string        `json:"entity"`
	Query  string        `json:"query"`
	State  StateResponse `json:"state"`
	Notice string        `json:"notice,omitempty"`
	ResultsResponse
}

// QueryResponse is the body of GET /api/v1/{entity}/query.
type QueryResponse struct {
	Index string `json:"index"`
	Body  any    `json:"body"`
}

// HistoryPosition locates a surface in its history.
type HistoryPosition struct {
	Cursor int `json:"cursor"`
	Length int `json:"length"`
}

// SurfaceResponse is the body of every surface endpoint.
type SurfaceResponse struct {
	ID         string                 `json:"id"`
	Entity     string                 `json:"entity"`
	Query      string                 `json:"query"`
	// URL is the query last written to the history; it trails Query by the debounce.
	URL        string                 `json:"url"`
	Status     string                 `json:"status"`
	Generation uint64                 `json:"generation"`
	Notice     string                 `json:"notice,omitempty"`
	Error      *ErrorResponse         `json:"error,omitempty"`
	State      StateResponse          `json:"state"`
	Staged     map[string]FilterState `json:"staged,omitempty"`
	History    HistoryPosition        `json:"history"`
	Results    *ResultsResponse       `json:"results,omitempty"`
}

// MountRequest is the body of POST /api/v1/surfaces.
type MountRequest struct {
	Entity string `json:"entity"`
	Query  string `json:"query"`
}

// ActionRequest is the body of POST /api/v1/surfaces/{id}/actions.
type ActionRequest struct {
	Action string   `json:"action"`
	Term   string   `json:"term,omitempty"`
	Field  string   `json:"field,omitempty"`
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Sort   []string `json:"sort,omitempty"`
	Page   int      `json:"page,omitempty"`
	Size   int      `json:"size,omitempty"`
}

// RecentResponse is the body of GET /api/v1/session/recent.
type RecentResponse struct {
	SessionID string            `json:"session_id"`
	Recent    map[string]string `json:"recent"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func configToResponse(cfg searchconfig.Config) ConfigResponse {
	facets := make([]FacetConfig, len(cfg.Facets))
	for i, f := range cfg.Facets {
		fc := FacetConfig{
			Field:           f.Field,
			Label:           f.Label,
			Kind:            string(f.Kind),
			MaxOptionsShown: f.Size(),
		}
		if len(f.Codes) > 0 {
			fc.Labels = slices.Sorted(maps.Keys(f.Codes))
		}
		facets[i] = fc
	}
	sorts := make([]SortOptionConfig, len(cfg.SortOptions))
	for i, o := range cfg.SortOptions {
		sorts[i] = SortOptionConfig{Field: o.Field, Label: o.Label}
	}
	return ConfigResponse{
		Entity:         string(cfg.Entity),
		Title:          cfg.Title,
		Facets:         facets,
		SortOptions:    sorts,
		DefaultSort:    cfg.DefaultSort,
		PageSizes:      state.PageSizes,
		ResultsPerPage: cfg.ResultsPerPage,
	}
}

func filterToResponse(v filter.Value) FilterState {
	if v.Kind() == filter.Range {
		return FilterState{Min: v.Min(), Max: v.Max()}
	}
	return FilterState{Values: v.Values()}
}

func stateToResponse(st state.State) StateResponse {
	filters := make(map[string]FilterState, len(st.FilterFields()))
	for _, field := range st.FilterFields() {
		v, _ := st.Filter(field)
		filters[field] = filterToResponse(v)
	}
	sortBy := make([]string, 0, len(st.Sort()))
	for _, c := range st.Sort() {
		sortBy = append(sortBy, c.String())
	}
	return StateResponse{
		Term:     st.Term(),
		Filters:  filters,
		Sort:     sortBy,
		Page:     st.Page(),
		PageSize: st.PageSize(),
	}
}

func resultsToResponse(cfg searchconfig.Config, st state.State, page *result.Page, lastPage int) ResultsResponse {
	resp := ResultsResponse{
		LastPage: lastPage,
		Records:  []RecordItem{},
		Facets:   present.Facets(cfg, st, page),
	}
	if page == nil {
		return resp
	}
	resp.Total = page.TotalCount()
	resp.TotalIsLowerBound = page.TotalIsLowerBound()
	records := page.Records()
	for i := range records {
		rec := &records[i]
		fields := make(map[string]FieldValue, len(rec.Fields()))
		for name, v := range rec.Fields() {
			fields[name] = FieldValue{Value: v.Raw, Snippet: v.Snippet}
		}
		resp.Records = append(resp.Records, RecordItem{
			ID:          rec.ID(),
			DisplayName: rec.DisplayName(),
			Score:       rec.Score(),
			Fields:      fields,
		})
	}
	return resp
}

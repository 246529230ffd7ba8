package index

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/domain/search/filter"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/domain/search/state"
)

// NestedValuesAgg is the sub-aggregation name holding the buckets of a nested facet.
const NestedValuesAgg = "values"

// Highlight markers wrapped around matched text.
const (
	HighlightPre  = "<em>"
	HighlightPost = "</em>"
)

// Compiler turns a search state into a backend query. It is pure and safe for concurrent use.
type Compiler struct {
	window int
}

// NewCompiler creates a compiler for a backend whose from+size may not exceed window.
func NewCompiler(window int) *Compiler {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Compiler{window: window}
}

// Window returns the backend result window.
func (c *Compiler) Window() int { return c.window }

// LastPage returns the last page addressable within the window.
func (c *Compiler) LastPage(pageSize int) int {
	if pageSize <= 0 {
		return state.FirstPage
	}
	return max(c.window/pageSize, state.FirstPage)
}

// Compile builds the query for st under cfg.
// A page beyond the window yields *domain.PageOutOfRangeError; every other
// failure wraps domain.ErrCompile and indicates a state the store should never produce.
func (c *Compiler) Compile(st state.State, cfg searchconfig.Config) (*Query, error) {
	if st.Page() < state.FirstPage || !state.ValidPageSize(st.PageSize()) {
		return nil, fmt.Errorf("%w: page %d size %d", domain.ErrCompile, st.Page(), st.PageSize())
	}
	// Compare pages first; a huge page would overflow the offset.
	if st.Page() > c.LastPage(st.PageSize()) || st.Offset()+st.PageSize() > c.window {
		return nil, domain.NewPageOutOfRange(st.Page(), c.LastPage(st.PageSize()))
	}

	q := &Query{
		Index:          cfg.Index,
		From:           st.Offset(),
		Size:           st.PageSize(),
		Source:         slices.Clone(cfg.ProjectedFields),
		TrackTotalHits: c.window,
	}

	term := strings.TrimSpace(st.Term())
	if term == "" {
		q.Query.Bool.Must = []Clause{{MatchAll: &MatchAll{}}}
	} else {
		q.Query.Bool.Must = []Clause{{MultiMatch: &MultiMatch{
			Query:    term,
			Fields:   cfg.SearchFields(),
			Type:     "best_fields",
			Operator: "and",
		}}}
		q.Highlight = highlightFor(cfg)
	}

	for _, field := range st.FilterFields() {
		v, _ := st.Filter(field)
		clause, err := filterClause(cfg, field, v)
		if err != nil {
			return nil, err
		}
		q.Query.Bool.Filter = append(q.Query.Bool.Filter, clause)
	}

	for _, s := range st.Sort() {
		if !cfg.Sortable(s.Field()) {
			return nil, fmt.Errorf("%w: sort on undeclared field %q", domain.ErrCompile, s.Field())
		}
		q.Sort = append(q.Sort, SortInstruction{s.Field(): {Order: string(s.Direction())}})
	}

	if len(cfg.Facets) > 0 {
		q.Aggs = make(map[string]Aggregation, len(cfg.Facets))
		for _, f := range cfg.Facets {
			q.Aggs[f.Field] = facetAggregation(f)
		}
	}
	return q, nil
}

func filterClause(cfg searchconfig.Config, field string, v filter.Value) (Clause, error) {
	facet, ok := cfg.Facet(field)
	if !ok {
		return Clause{}, fmt.Errorf("%w: %w: %q", domain.ErrCompile, domain.ErrUnknownFacet, field)
	}

	var clause Clause
	switch {
	case facet.Kind == searchconfig.FacetValue && v.Kind() == filter.AnyOf:
		values := v.Values()
		for i, label := range values {
			values[i] = facet.IndexValue(label)
		}
		sort.Strings(values)
		clause = Clause{Terms: map[string][]string{field: slices.Compact(values)}}
	case facet.Kind == searchconfig.FacetRange && v.Kind() == filter.Range:
		clause = Clause{Range: map[string]Bounds{field: {GTE: v.Min(), LTE: v.Max()}}}
	default:
		return Clause{}, fmt.Errorf("%w: %s filter on %s facet %q", domain.ErrCompile, v.Kind(), facet.Kind, field)
	}

	if facet.NestedPath != "" {
		clause = Clause{Nested: &Nested{Path: facet.NestedPath, Query: clause}}
	}
	return clause, nil
}

func facetAggregation(f searchconfig.Facet) Aggregation {
	var agg Aggregation
	if f.Kind == searchconfig.FacetRange {
		agg = Aggregation{Stats: &FieldRef{Field: f.Field}}
	} else {
		agg = Aggregation{Terms: &TermsAgg{Field: f.Field, Size: f.Size()}}
	}
	if f.NestedPath == "" {
		return agg
	}
	return Aggregation{
		Nested: &NestedAgg{Path: f.NestedPath},
		Aggs:   map[string]Aggregation{NestedValuesAgg: agg},
	}
}

func highlightFor(cfg searchconfig.Config) *Highlight {
	h := &Highlight{
		PreTags:  []string{HighlightPre},
		PostTags: []string{HighlightPost},
		Fields:   make(map[string]HighlightField, len(cfg.SearchableFields)),
	}
	for field := range cfg.SearchableFields {
		fragments := 1
		if field == cfg.TitleField {
			fragments = 0
		}
		h.Fields[field] = HighlightField{NumberOfFragments: fragments}
	}
	return h
}

// Package urlsync maps search states to URL query strings and keeps a store and a
// browser-style history in step.
package urlsync

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/mlcatalog/mlsearch/internal/domain/search/filter"
	"github.com/mlcatalog/mlsearch/internal/domain/search/order"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/domain/search/state"
)

// Query parameter names.
const (
	ParamTerm = "q"
	ParamSort = "sort"
	ParamPage = "page"
	ParamSize = "size"

	// FilterPrefix starts every facet parameter: f.<field>=...
	FilterPrefix = "f."
	// RangeSeparator splits the bounds of a range facet: min..max
	RangeSeparator = ".."
	// SortRelevance stands for an explicitly empty sort when the entity has a default order.
	SortRelevance = "relevance"
)

// Parse reads a state from query parameters. Unknown or malformed parameters are
// dropped one by one; Parse never fails.
func Parse(values url.Values, cfg searchconfig.Config) state.State {
	def := cfg.DefaultState()

	filters := make(map[string]filter.Value)
	for key, raw := range values {
		field, ok := strings.CutPrefix(key, FilterPrefix)
		if !ok || len(raw) == 0 {
			continue
		}
		facet, ok := cfg.Facet(field)
		if !ok {
			continue
		}
		if v, ok := parseFilter(facet, raw[0]); ok {
			filters[field] = v
		}
	}

	st, err := state.New(
		strings.TrimSpace(values.Get(ParamTerm)),
		filters,
		parseSort(values[ParamSort], cfg),
		parsePage(values),
		parseSize(values, def.PageSize()),
	)
	if err != nil {
		return def
	}
	return st
}

// ParseQuery parses a raw query string, keeping whatever pairs were readable.
func ParseQuery(raw string, cfg searchconfig.Config) state.State {
	values, _ := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	return Parse(values, cfg)
}

// Serialize writes st as query parameters, omitting everything equal to the defaults.
func Serialize(st state.State, cfg searchconfig.Config) url.Values {
	values := url.Values{}
	if st.Term() != "" {
		values.Set(ParamTerm, st.Term())
	}
	for _, field := range st.FilterFields() {
		v, _ := st.Filter(field)
		values.Set(FilterPrefix+field, formatFilter(v))
	}

	if sortBy := st.Sort(); !order.Equal(sortBy, cfg.DefaultSortClauses()) {
		if len(sortBy) == 0 {
			values.Add(ParamSort, SortRelevance)
		}
		for _, c := range sortBy {
			values.Add(ParamSort, c.String())
		}
	}

	if st.Page() != state.FirstPage {
		values.Set(ParamPage, strconv.Itoa(st.Page()))
	}
	if st.PageSize() != cfg.ResultsPerPage {
		values.Set(ParamSize, strconv.Itoa(st.PageSize()))
	}
	return values
}

// Encode returns the canonical query string of st. A fresh surface encodes to "".
func Encode(st state.State, cfg searchconfig.Config) string {
	return Serialize(st, cfg).Encode()
}

func parseFilter(facet searchconfig.Facet, raw string) (filter.Value, bool) {
	if facet.Kind == searchconfig.FacetRange {
		lo, hi, ok := strings.Cut(raw, RangeSeparator)
		if !ok {
			return filter.Value{}, false
		}
		minVal, ok := parseBound(lo)
		if !ok {
			return filter.Value{}, false
		}
		maxVal, ok := parseBound(hi)
		if !ok {
			return filter.Value{}, false
		}
		v, err := filter.NewRange(minVal, maxVal)
		return v, err == nil
	}
	v, err := filter.NewAnyOf(splitValues(raw)...)
	return v, err == nil
}

func parseBound(s string) (*float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return &f, true
}

func formatFilter(v filter.Value) string {
	if v.Kind() == filter.Range {
		return formatBound(v.Min()) + RangeSeparator + formatBound(v.Max())
	}
	values := v.Values()
	for i, s := range values {
		values[i] = escapeValue(s)
	}
	return strings.Join(values, ",")
}

func formatBound(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func parseSort(raw []string, cfg searchconfig.Config) []order.Clause {
	if len(raw) == 0 {
		return cfg.DefaultSortClauses()
	}
	if len(raw) == 1 && raw[0] == SortRelevance {
		return nil
	}
	seen := make(map[string]bool, len(raw))
	clauses := make([]order.Clause, 0, len(raw))
	for _, s := range raw {
		c, err := order.Parse(s)
		if err != nil || !cfg.Sortable(c.Field()) || seen[c.Field()] {
			continue
		}
		seen[c.Field()] = true
		clauses = append(clauses, c)
	}
	if len(clauses) == 0 {
		return cfg.DefaultSortClauses()
	}
	return clauses
}

func parsePage(values url.Values) int {
	var page int
	if err := runtime.BindQueryParameter("form", true, false, ParamPage, values, &page); err != nil || page < state.FirstPage {
		return state.FirstPage
	}
	return page
}

func parseSize(values url.Values, def int) int {
	var size int
	if err := runtime.BindQueryParameter("form", true, false, ParamSize, values, &size); err != nil || !state.ValidPageSize(size) {
		return def
	}
	return size
}

// escapeValue protects the list separator and the escape character itself.
func escapeValue(s string) string {
	if !strings.ContainsAny(s, `\,`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r == '\\' || r == ',' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func splitValues(raw string) []string {
	var (
		out     []string
		cur     strings.Builder
		escaped bool
	)
	for _, r := range raw {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ',':
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if escaped {
		cur.WriteByte('\\')
	}
	return append(out, cur.String())
}

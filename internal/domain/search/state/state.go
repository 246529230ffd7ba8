package state

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/mlcatalog/mlsearch/internal/domain/search/filter"
	"github.com/mlcatalog/mlsearch/internal/domain/search/order"
)

// FirstPage is the 1-based index of the first result page.
const FirstPage = 1

// PageSizes are the allowed result counts per page.
var PageSizes = []int{20, 50, 100}

// ValidPageSize reports whether n is one of PageSizes.
func ValidPageSize(n int) bool { return slices.Contains(PageSizes, n) }

// State is the complete description of one search: term, facet selections,
// sort order and pagination. It is immutable; every With method returns a copy.
// An empty sort list means relevance order.
type State struct {
	term     string
	filters  map[string]filter.Value
	sort     []order.Clause
	page     int
	pageSize int
}

// New validates and creates a State.
func New(term string, filters map[string]filter.Value, sortBy []order.Clause, page, pageSize int) (State, error) {
	if page < FirstPage {
		return State{}, fmt.Errorf("page must be >= %d, got %d", FirstPage, page)
	}
	if !ValidPageSize(pageSize) {
		return State{}, fmt.Errorf("page size must be one of %v, got %d", PageSizes, pageSize)
	}
	for field, v := range filters {
		if v.IsZero() {
			return State{}, fmt.Errorf("filter %q has no selection", field)
		}
	}
	seen := make(map[string]bool, len(sortBy))
	for _, c := range sortBy {
		if seen[c.Field()] {
			return State{}, fmt.Errorf("duplicate sort field %q", c.Field())
		}
		seen[c.Field()] = true
	}
	return State{
		term:     term,
		filters:  maps.Clone(filters),
		sort:     slices.Clone(sortBy),
		page:     page,
		pageSize: pageSize,
	}, nil
}

// Term returns the free-text query. Empty means match everything.
func (s State) Term() string { return s.term }

// Filters returns a copy of the facet selections keyed by field.
func (s State) Filters() map[string]filter.Value { return maps.Clone(s.filters) }

// Filter returns the selection on field.
func (s State) Filter(field string) (filter.Value, bool) {
	v, ok := s.filters[field]
	return v, ok
}

// FilterFields returns the filtered fields in ascending order.
func (s State) FilterFields() []string {
	fields := make([]string, 0, len(s.filters))
	for f := range s.filters {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Sort returns a copy of the sort clauses.
func (s State) Sort() []order.Clause { return slices.Clone(s.sort) }

// Page returns the 1-based page index.
func (s State) Page() int { return s.page }

// PageSize returns the result count per page.
func (s State) PageSize() int { return s.pageSize }

// Offset returns the index of the first result on the current page.
func (s State) Offset() int { return (s.page - 1) * s.pageSize }

// WithTerm returns a copy with the given term.
func (s State) WithTerm(term string) State {
	s.term = term
	return s
}

// WithFilter returns a copy with field set to v.
func (s State) WithFilter(field string, v filter.Value) State {
	next := maps.Clone(s.filters)
	if next == nil {
		next = make(map[string]filter.Value, 1)
	}
	next[field] = v
	s.filters = next
	return s
}

// WithoutFilter returns a copy with no selection on field.
func (s State) WithoutFilter(field string) State {
	if _, ok := s.filters[field]; !ok {
		return s
	}
	next := maps.Clone(s.filters)
	delete(next, field)
	s.filters = next
	return s
}

// WithSort returns a copy with the given sort clauses.
func (s State) WithSort(clauses []order.Clause) State {
	s.sort = slices.Clone(clauses)
	return s
}

// WithPage returns a copy on page n. Callers validate n.
func (s State) WithPage(n int) State {
	s.page = n
	return s
}

// WithPageSize returns a copy with the given page size. Callers validate n.
func (s State) WithPageSize(n int) State {
	s.pageSize = n
	return s
}

// Equal reports structural equality.
func (s State) Equal(o State) bool {
	if s.term != o.term || s.page != o.page || s.pageSize != o.pageSize {
		return false
	}
	if !order.Equal(s.sort, o.sort) {
		return false
	}
	return maps.EqualFunc(s.filters, o.filters, filter.Value.Equal)
}

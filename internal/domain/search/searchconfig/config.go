package searchconfig

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/domain/search/order"
	"github.com/mlcatalog/mlsearch/internal/domain/search/state"
)

// FacetKind selects how a facet is filtered and aggregated.
type FacetKind string

const (
	// FacetValue is a keyword facet filtered by any-of selections.
	FacetValue FacetKind = "value"
	// FacetRange is a numeric facet filtered by inclusive bounds.
	FacetRange FacetKind = "range"
)

// DefaultMaxOptionsShown is the bucket count requested when a facet does not set one.
const DefaultMaxOptionsShown = 10

// Facet describes one filterable field.
type Facet struct {
	Field           string            `yaml:"field"`
	Label           string            `yaml:"label"`
	Kind            FacetKind         `yaml:"kind"`
	MaxOptionsShown int               `yaml:"max_options_shown"`
	// NestedPath is set when Field lives inside an array of objects.
	NestedPath string `yaml:"nested_path"`
	// Codes maps a display label to the value stored in the index.
	Codes map[string]string `yaml:"codes"`
}

// Size returns the bucket count to request from the backend.
func (f Facet) Size() int {
	if f.MaxOptionsShown > 0 {
		return f.MaxOptionsShown
	}
	return DefaultMaxOptionsShown
}

// IndexValue translates a selected label through the code map.
func (f Facet) IndexValue(label string) string {
	if code, ok := f.Codes[label]; ok {
		return code
	}
	return label
}

// LabelFor reverses the code map. ok is false when value has no label.
func (f Facet) LabelFor(value string) (label string, ok bool) {
	for l, code := range f.Codes {
		if code == value {
			return l, true
		}
	}
	return "", false
}

// SortOption is a sortable field offered to the user.
type SortOption struct {
	Field string `yaml:"field"`
	Label string `yaml:"label"`
}

// Config is the static search description of one entity kind.
// It is loaded once and never mutated.
type Config struct {
	Entity           domain.EntityTag   `yaml:"entity"`
	Title            string             `yaml:"title"`
	Index            string             `yaml:"index"`
	IDField          string             `yaml:"id_field"`
	TitleField       string             `yaml:"title_field"`
	DescriptionField string             `yaml:"description_field"`
	SearchableFields map[string]float64 `yaml:"searchable_fields"`
	ProjectedFields  []string           `yaml:"projected_fields"`
	Facets           []Facet            `yaml:"facets"`
	SortOptions      []SortOption       `yaml:"sort_options"`
	// DefaultSort is "field:dir", or empty for relevance order.
	DefaultSort    string   `yaml:"default_sort"`
	ResultsPerPage int      `yaml:"results_per_page"`
	DerivedMetrics []string `yaml:"derived_metrics"`
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	var errs []error
	if _, err := domain.ParseEntity(string(c.Entity)); err != nil {
		errs = append(errs, err)
	}
	if c.Index == "" {
		errs = append(errs, errors.New("index is required"))
	}
	if c.IDField == "" {
		errs = append(errs, errors.New("id_field is required"))
	}
	if c.TitleField == "" {
		errs = append(errs, errors.New("title_field is required"))
	}
	if len(c.SearchableFields) == 0 {
		errs = append(errs, errors.New("at least one searchable field is required"))
	}
	for field, boost := range c.SearchableFields {
		if boost <= 0 {
			errs = append(errs, fmt.Errorf("searchable field %q: boost must be > 0", field))
		}
	}
	if !state.ValidPageSize(c.ResultsPerPage) {
		errs = append(errs, fmt.Errorf("results_per_page must be one of %v", state.PageSizes))
	}

	seen := make(map[string]bool, len(c.Facets))
	for _, f := range c.Facets {
		if f.Field == "" {
			errs = append(errs, errors.New("facet field is required"))
			continue
		}
		if seen[f.Field] {
			errs = append(errs, fmt.Errorf("duplicate facet %q", f.Field))
		}
		seen[f.Field] = true
		if f.Kind != FacetValue && f.Kind != FacetRange {
			errs = append(errs, fmt.Errorf("facet %q: unknown kind %q", f.Field, f.Kind))
		}
		if f.Kind == FacetRange && len(f.Codes) > 0 {
			errs = append(errs, fmt.Errorf("facet %q: range facets cannot have codes", f.Field))
		}
		if f.MaxOptionsShown < 0 {
			errs = append(errs, fmt.Errorf("facet %q: max_options_shown must be >= 0", f.Field))
		}
	}

	if c.DefaultSort != "" {
		clause, err := order.Parse(c.DefaultSort)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("default_sort: %w", err))
		case !c.Sortable(clause.Field()):
			errs = append(errs, fmt.Errorf("default_sort field %q is not a sort option", clause.Field()))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidConfig, c.Entity, errors.Join(errs...))
	}
	return nil
}

// Facet looks up a facet by field.
func (c *Config) Facet(field string) (Facet, bool) {
	for _, f := range c.Facets {
		if f.Field == field {
			return f, true
		}
	}
	return Facet{}, false
}

// Sortable reports whether field is offered as a sort option.
func (c *Config) Sortable(field string) bool {
	for _, o := range c.SortOptions {
		if o.Field == field {
			return true
		}
	}
	return false
}

// SearchFields returns searchable fields in "field^boost" form, sorted by field.
func (c *Config) SearchFields() []string {
	fields := make([]string, 0, len(c.SearchableFields))
	for f := range c.SearchableFields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for i, f := range fields {
		if boost := c.SearchableFields[f]; boost != 1 {
			fields[i] = fmt.Sprintf("%s^%g", f, boost)
		}
	}
	return fields
}

// DefaultSortClauses returns the configured default order. Empty means relevance.
func (c *Config) DefaultSortClauses() []order.Clause {
	if c.DefaultSort == "" {
		return nil
	}
	clause, err := order.Parse(c.DefaultSort)
	if err != nil {
		return nil
	}
	return []order.Clause{clause}
}

// DefaultState returns the state a freshly mounted surface starts from.
func (c *Config) DefaultState() state.State {
	s, err := state.New("", nil, c.DefaultSortClauses(), state.FirstPage, c.ResultsPerPage)
	if err != nil {
		// Validate rejects configs that reach here.
		panic(fmt.Sprintf("searchconfig: default state for %s: %v", c.Entity, err))
	}
	return s
}

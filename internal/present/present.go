// Package present turns normalized results into what a facet sidebar shows.
package present

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mlcatalog/mlsearch/internal/domain/search/filter"
	"github.com/mlcatalog/mlsearch/internal/domain/search/result"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/domain/search/state"
)

// Option is one selectable facet value.
type Option struct {
	// Value is what a filter selection carries.
	Value    string `json:"value"`
	Label    string `json:"label"`
	Count    int    `json:"count"`
	Selected bool   `json:"selected"`
}

// Facet is the sidebar view of one facet.
type Facet struct {
	Field   string                 `json:"field"`
	Label   string                 `json:"label"`
	Kind    searchconfig.FacetKind `json:"kind"`
	Options []Option               `json:"options,omitempty"`
	// Stats summarizes a range facet over the matches.
	Stats *result.Stats `json:"stats,omitempty"`
	// Min and Max are the applied range bounds.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Label returns the display label of an indexed value: the configured code label
// when there is one, otherwise the value title-cased with separators as spaces.
func Label(f searchconfig.Facet, value string) string {
	if l, ok := f.LabelFor(value); ok {
		return l
	}
	return Prettify(value)
}

// Prettify title-cases a raw token such as "in_preparation".
func Prettify(value string) string {
	s := strings.NewReplacer("_", " ", "-", " ").Replace(value)
	return cases.Title(language.English).String(strings.TrimSpace(s))
}

// Facets builds the sidebar in configuration order. Selected values missing from
// the buckets are still listed so they can be deselected.
func Facets(cfg searchconfig.Config, st state.State, page *result.Page) []Facet {
	out := make([]Facet, 0, len(cfg.Facets))
	for _, f := range cfg.Facets {
		applied, hasFilter := st.Filter(f.Field)
		view := Facet{Field: f.Field, Label: f.Label, Kind: f.Kind}
		if view.Label == "" {
			view.Label = Prettify(f.Field)
		}

		if f.Kind == searchconfig.FacetRange {
			if page != nil {
				if s, ok := page.Stats()[f.Field]; ok {
					view.Stats = &s
				}
			}
			if hasFilter {
				view.Min, view.Max = applied.Min(), applied.Max()
			}
			out = append(out, view)
			continue
		}

		var buckets []result.Bucket
		if page != nil {
			buckets = page.Aggregations()[f.Field]
		}
		view.Options = options(f, buckets, applied)
		out = append(out, view)
	}
	return out
}

func options(f searchconfig.Facet, buckets []result.Bucket, applied filter.Value) []Option {
	seen := make(map[string]bool, len(buckets))
	opts := make([]Option, 0, len(buckets))
	for _, b := range buckets {
		value := b.Value
		if l, ok := f.LabelFor(b.Value); ok {
			value = l
		}
		seen[value] = true
		opts = append(opts, Option{
			Value:    value,
			Label:    Label(f, b.Value),
			Count:    b.Count,
			Selected: applied.Contains(value) || applied.Contains(b.Value),
		})
	}
	for _, v := range applied.Values() {
		if seen[v] || seen[labelOf(f, v)] {
			continue
		}
		opts = append(opts, Option{Value: v, Label: labelOf(f, v), Selected: true})
	}
	return opts
}

// labelOf labels a selected value, which may already be a code label.
func labelOf(f searchconfig.Facet, v string) string {
	if _, ok := f.Codes[v]; ok {
		return v
	}
	return Label(f, v)
}

package result

import "fmt"

// DisplayValue is a field as shown to the user: the stored value and,
// when the term matched inside it, a highlighted fragment.
type DisplayValue struct {
	Raw     any
	Snippet string
}

// String prefers the snippet over the raw value.
func (d DisplayValue) String() string {
	if d.Snippet != "" {
		return d.Snippet
	}
	if d.Raw == nil {
		return ""
	}
	return fmt.Sprint(d.Raw)
}

// Record is one normalized search hit.
type Record struct {
	id          string
	displayName string
	score       *float64
	fields      map[string]DisplayValue
	source      any
}

// NewRecord creates a record. source is the entity-specific decoded document.
func NewRecord(id, displayName string, score *float64, fields map[string]DisplayValue, source any) Record {
	return Record{id: id, displayName: displayName, score: score, fields: fields, source: source}
}

// ID returns the entity identifier.
func (r *Record) ID() string { return r.id }

// DisplayName returns the title shown for the record.
func (r *Record) DisplayName() string { return r.displayName }

// Score returns the relevance score, nil when results are sorted by field.
func (r *Record) Score() *float64 { return r.score }

// Fields returns projected and derived fields.
func (r *Record) Fields() map[string]DisplayValue { return r.fields }

// Field returns one display field.
func (r *Record) Field(name string) (DisplayValue, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Source returns the entity-specific decoded document.
func (r *Record) Source() any { return r.source }

// Bucket is one facet option with its document count.
type Bucket struct {
	Value string
	Count int
}

// Stats summarizes a numeric facet over the matching documents.
type Stats struct {
	Count int
	Min   *float64
	Max   *float64
	Avg   *float64
}

// Page is one page of normalized results.
type Page struct {
	records           []Record
	totalCount        int
	totalIsLowerBound bool
	aggregations      map[string][]Bucket
	stats             map[string]Stats
}

// NewPage creates a result page.
func NewPage(
	records []Record, totalCount int, totalIsLowerBound bool,
	aggregations map[string][]Bucket, stats map[string]Stats,
) Page {
	return Page{
		records: records, totalCount: totalCount, totalIsLowerBound: totalIsLowerBound,
		aggregations: aggregations, stats: stats,
	}
}

// Records returns the hits in backend order.
func (p *Page) Records() []Record { return p.records }

// TotalCount returns the number of matching documents.
func (p *Page) TotalCount() int { return p.totalCount }

// TotalIsLowerBound reports whether TotalCount is a floor rather than exact.
func (p *Page) TotalIsLowerBound() bool { return p.totalIsLowerBound }

// Aggregations returns facet buckets keyed by facet field.
func (p *Page) Aggregations() map[string][]Bucket { return p.aggregations }

// Stats returns range facet summaries keyed by facet field.
func (p *Page) Stats() map[string]Stats { return p.stats }

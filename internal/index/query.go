package index

// Query is the request body sent to the backend.
// Index is routing information and is not serialized.
type Query struct {
	Index          string                 `json:"-"`
	Query          Root                   `json:"query"`
	Sort           []SortInstruction      `json:"sort,omitempty"`
	From           int                    `json:"from"`
	Size           int                    `json:"size"`
	Aggs           map[string]Aggregation `json:"aggs,omitempty"`
	Source         []string               `json:"_source,omitempty"`
	Highlight      *Highlight             `json:"highlight,omitempty"`
	TrackTotalHits int                    `json:"track_total_hits,omitempty"`
}

// Root wraps the top-level bool query.
type Root struct {
	Bool Bool `json:"bool"`
}

// Bool combines clauses: must for scoring, filter for non-scoring constraints.
type Bool struct {
	Must               []Clause `json:"must"`
	Filter             []Clause `json:"filter,omitempty"`
	Should             []Clause `json:"should,omitempty"`
	MinimumShouldMatch *int     `json:"minimum_should_match,omitempty"`
}

// Clause is a single query clause. Exactly one field is set.
type Clause struct {
	MatchAll   *MatchAll           `json:"match_all,omitempty"`
	MultiMatch *MultiMatch         `json:"multi_match,omitempty"`
	Terms      map[string][]string `json:"terms,omitempty"`
	Range      map[string]Bounds   `json:"range,omitempty"`
	Nested     *Nested             `json:"nested,omitempty"`
}

// MatchAll matches every document.
type MatchAll struct{}

// MultiMatch is a weighted full-text match over several fields.
type MultiMatch struct {
	Query    string   `json:"query"`
	Fields   []string `json:"fields"`
	Type     string   `json:"type,omitempty"`
	Operator string   `json:"operator,omitempty"`
}

// Bounds are inclusive range limits. A nil bound is open.
type Bounds struct {
	GTE *float64 `json:"gte,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// Nested scopes a clause to objects inside an array field.
type Nested struct {
	Path  string `json:"path"`
	Query Clause `json:"query"`
}

// SortInstruction maps one field to its order.
type SortInstruction map[string]SortOrder

// SortOrder is the direction of a sort instruction.
type SortOrder struct {
	Order string `json:"order"`
}

// Aggregation is a terms, stats or nested aggregation with optional sub-aggregations.
type Aggregation struct {
	Terms  *TermsAgg              `json:"terms,omitempty"`
	Stats  *FieldRef              `json:"stats,omitempty"`
	Nested *NestedAgg             `json:"nested,omitempty"`
	Aggs   map[string]Aggregation `json:"aggs,omitempty"`
}

// TermsAgg buckets documents by the values of a keyword field.
type TermsAgg struct {
	Field string `json:"field"`
	Size  int    `json:"size"`
}

// FieldRef names the field of a metric aggregation.
type FieldRef struct {
	Field string `json:"field"`
}

// NestedAgg scopes sub-aggregations to a nested path.
type NestedAgg struct {
	Path string `json:"path"`
}

// Highlight requests match fragments for the listed fields.
type Highlight struct {
	PreTags  []string                  `json:"pre_tags,omitempty"`
	PostTags []string                  `json:"post_tags,omitempty"`
	Fields   map[string]HighlightField `json:"fields"`
}

// HighlightField configures fragments for one field.
type HighlightField struct {
	NumberOfFragments int `json:"number_of_fragments"`
}

package index

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Relation qualifies a total hit count.
type Relation string

// Total relations.
const (
	RelationEq  Relation = "eq"
	RelationGte Relation = "gte"
)

// RawResponse is the backend answer before normalization.
type RawResponse struct {
	Took         int                        `json:"took"`
	TimedOut     bool                       `json:"timed_out"`
	Hits         *Hits                      `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations,omitempty"`
}

// Hits holds the matched documents of one page.
type Hits struct {
	Total    *Total   `json:"total"`
	MaxScore *float64 `json:"max_score"`
	Hits     []Hit    `json:"hits"`
}

// Hit is one matched document.
type Hit struct {
	Index     string              `json:"_index"`
	ID        string              `json:"_id"`
	Score     *float64            `json:"_score"`
	Source    map[string]any      `json:"_source"`
	Highlight map[string][]string `json:"highlight,omitempty"`
}

// Total is the number of matching documents.
// Backends report it either as a bare integer or as {value, relation}.
type Total struct {
	Value    int
	Relation Relation
}

// IsLowerBound reports whether Value is a floor of the real count.
func (t Total) IsLowerBound() bool { return t.Relation == RelationGte }

// UnmarshalJSON accepts both total shapes.
func (t *Total) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Value    *int     `json:"value"`
			Relation Relation `json:"relation"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("decode total: %w", err)
		}
		if obj.Value == nil {
			return fmt.Errorf("decode total: missing value")
		}
		t.Value = *obj.Value
		t.Relation = obj.Relation
		if t.Relation == "" {
			t.Relation = RelationEq
		}
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode total: %w", err)
	}
	t.Value = n
	t.Relation = RelationEq
	return nil
}

// MarshalJSON writes the object shape.
func (t Total) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Value    int      `json:"value"`
		Relation Relation `json:"relation"`
	}{t.Value, t.Relation})
}

// DecodeResponse parses a backend body and checks the fields normalization relies on.
func DecodeResponse(body []byte) (*RawResponse, error) {
	var raw RawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if raw.Hits == nil {
		return nil, fmt.Errorf("decode response: missing hits")
	}
	if raw.Hits.Total == nil {
		return nil, fmt.Errorf("decode response: missing hits.total")
	}
	return &raw, nil
}

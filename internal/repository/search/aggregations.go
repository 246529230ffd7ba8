package search

import (
	"encoding/json"
	"fmt"

	"github.com/mlcatalog/mlsearch/internal/domain/search/result"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/index"
)

type termsBlock struct {
	Buckets []bucketBlock `mapstructure:"buckets"`
}

type bucketBlock struct {
	Key         any    `mapstructure:"key"`
	KeyAsString string `mapstructure:"key_as_string"`
	DocCount    int    `mapstructure:"doc_count"`
}

type statsBlock struct {
	Count int      `mapstructure:"count"`
	Min   *float64 `mapstructure:"min"`
	Max   *float64 `mapstructure:"max"`
	Avg   *float64 `mapstructure:"avg"`
}

// decodeAggregations reads one block per configured facet. Facets the backend
// did not answer for are absent from the result; buckets pass through unchanged.
func decodeAggregations(
	raw map[string]json.RawMessage, cfg *searchconfig.Config,
) (map[string][]result.Bucket, map[string]result.Stats, error) {
	buckets := make(map[string][]result.Bucket)
	stats := make(map[string]result.Stats)

	for _, f := range cfg.Facets {
		msg, ok := raw[f.Field]
		if !ok {
			continue
		}
		var block map[string]any
		if err := json.Unmarshal(msg, &block); err != nil {
			return nil, nil, fmt.Errorf("aggregation %q: %w", f.Field, err)
		}
		if f.NestedPath != "" {
			inner, ok := block[index.NestedValuesAgg].(map[string]any)
			if !ok {
				return nil, nil, fmt.Errorf("aggregation %q: missing nested %q block", f.Field, index.NestedValuesAgg)
			}
			block = inner
		}

		if f.Kind == searchconfig.FacetRange {
			var sb statsBlock
			if err := decode(block, &sb); err != nil {
				return nil, nil, fmt.Errorf("aggregation %q: %w", f.Field, err)
			}
			stats[f.Field] = result.Stats{Count: sb.Count, Min: sb.Min, Max: sb.Max, Avg: sb.Avg}
			continue
		}

		if _, ok := block["buckets"]; !ok {
			return nil, nil, fmt.Errorf("aggregation %q: missing buckets", f.Field)
		}
		var tb termsBlock
		if err := decode(block, &tb); err != nil {
			return nil, nil, fmt.Errorf("aggregation %q: %w", f.Field, err)
		}
		out := make([]result.Bucket, 0, len(tb.Buckets))
		for _, b := range tb.Buckets {
			value := b.KeyAsString
			if value == "" {
				value = formatScalar(b.Key)
			}
			out = append(out, result.Bucket{Value: value, Count: b.DocCount})
		}
		buckets[f.Field] = out
	}
	return buckets, stats, nil
}

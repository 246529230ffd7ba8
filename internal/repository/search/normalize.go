package search

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/domain/search/result"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/index"
)

// Derived field names stored on records next to projected fields.
const (
	QualityPrefix = "quality."
	MetricPrefix  = "metric."
	FieldFullName = "full_name"
)

const snippetSeparator = " ... "

// derivation is the entity-specific part of normalizing one hit.
type derivation struct {
	source  any
	derived map[string]result.DisplayValue
	// name overrides the raw title field, but not its highlight.
	name string
}

type entityNormalizer func(src map[string]any, cfg *searchconfig.Config) (derivation, error)

// normalizers is the only place that branches on the entity kind.
var normalizers = map[domain.EntityTag]entityNormalizer{
	domain.EntityDataset: normalizeDataset,
	domain.EntityTask:    normalizeTask,
	domain.EntityFlow:    normalizeFlow,
	domain.EntityRun:     normalizeRun,
	domain.EntityMeasure: normalizeMeasure,
	domain.EntityUser:    normalizeUser,
}

// Normalizer turns raw backend responses into result pages.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Normalize converts raw into a page of records shaped by cfg.
// Hits whose source does not decode into the entity shape keep their raw source
// and get no derived fields; a malformed aggregation block fails the whole page.
func (n *Normalizer) Normalize(raw *index.RawResponse, cfg searchconfig.Config) (result.Page, error) {
	if raw == nil || raw.Hits == nil || raw.Hits.Total == nil {
		return result.Page{}, domain.NewSearchError(domain.KindDecode, 0, errors.New("response has no hits"))
	}
	norm, ok := normalizers[cfg.Entity]
	if !ok {
		return result.Page{}, fmt.Errorf("%w: %q", domain.ErrUnknownEntity, cfg.Entity)
	}

	records := make([]result.Record, 0, len(raw.Hits.Hits))
	for i := range raw.Hits.Hits {
		records = append(records, n.normalizeHit(&raw.Hits.Hits[i], &cfg, norm))
	}

	buckets, stats, err := decodeAggregations(raw.Aggregations, &cfg)
	if err != nil {
		return result.Page{}, domain.NewSearchError(domain.KindDecode, 0, err)
	}

	total := raw.Hits.Total
	return result.NewPage(records, total.Value, total.IsLowerBound(), buckets, stats), nil
}

func (n *Normalizer) normalizeHit(hit *index.Hit, cfg *searchconfig.Config, norm entityNormalizer) result.Record {
	id := hit.ID
	if v, ok := lookup(hit.Source, cfg.IDField); ok {
		if s := formatScalar(v); s != "" {
			id = s
		}
	}

	fields := make(map[string]result.DisplayValue, len(cfg.ProjectedFields)+len(hit.Highlight))
	for _, f := range cfg.ProjectedFields {
		if v, ok := lookup(hit.Source, f); ok {
			fields[f] = result.DisplayValue{Raw: v}
		}
	}
	if v, ok := lookup(hit.Source, cfg.TitleField); ok {
		fields[cfg.TitleField] = result.DisplayValue{Raw: v}
	}
	for f, fragments := range hit.Highlight {
		if len(fragments) == 0 {
			continue
		}
		dv := fields[f]
		if dv.Raw == nil {
			dv.Raw, _ = lookup(hit.Source, f)
		}
		dv.Snippet = strings.Join(fragments, snippetSeparator)
		fields[f] = dv
	}

	d, err := norm(hit.Source, cfg)
	if err != nil {
		n.logger.Warn("Failed to decode hit source",
			zap.String("entity", string(cfg.Entity)),
			zap.String("id", id),
			zap.Error(err),
		)
		d = derivation{source: hit.Source}
	}
	for k, v := range d.derived {
		fields[k] = v
	}

	return result.NewRecord(id, displayName(id, fields[cfg.TitleField], d.name), hit.Score, fields, d.source)
}

func displayName(id string, title result.DisplayValue, entityName string) string {
	switch {
	case title.Snippet != "":
		return title.Snippet
	case entityName != "":
		return entityName
	case title.Raw != nil && title.String() != "":
		return title.String()
	default:
		return id
	}
}

func normalizeDataset(src map[string]any, cfg *searchconfig.Config) (derivation, error) {
	var d Dataset
	if err := decode(src, &d); err != nil {
		return derivation{}, err
	}
	derived := make(map[string]result.DisplayValue, len(cfg.DerivedMetrics))
	for _, q := range cfg.DerivedMetrics {
		if v, ok := d.Qualities[q]; ok {
			derived[QualityPrefix+q] = result.DisplayValue{Raw: v}
		}
	}
	return derivation{source: &d, derived: derived}, nil
}

func normalizeTask(src map[string]any, _ *searchconfig.Config) (derivation, error) {
	var t Task
	if err := decode(src, &t); err != nil {
		return derivation{}, err
	}
	return derivation{source: &t}, nil
}

func normalizeFlow(src map[string]any, _ *searchconfig.Config) (derivation, error) {
	var f Flow
	if err := decode(src, &f); err != nil {
		return derivation{}, err
	}
	return derivation{source: &f}, nil
}

func normalizeRun(src map[string]any, cfg *searchconfig.Config) (derivation, error) {
	var r Run
	if err := decode(src, &r); err != nil {
		return derivation{}, err
	}
	derived := make(map[string]result.DisplayValue, len(cfg.DerivedMetrics))
	for _, m := range cfg.DerivedMetrics {
		if v, ok := r.Metric(m); ok {
			derived[MetricPrefix+m] = result.DisplayValue{Raw: v}
		}
	}
	return derivation{source: &r, derived: derived}, nil
}

func normalizeMeasure(src map[string]any, _ *searchconfig.Config) (derivation, error) {
	var m Measure
	if err := decode(src, &m); err != nil {
		return derivation{}, err
	}
	return derivation{source: &m}, nil
}

func normalizeUser(src map[string]any, _ *searchconfig.Config) (derivation, error) {
	var u User
	if err := decode(src, &u); err != nil {
		return derivation{}, err
	}
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	d := derivation{source: &u, name: full}
	if full != "" {
		d.derived = map[string]result.DisplayValue{FieldFullName: {Raw: full}}
	}
	return d, nil
}

func decode(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// lookup resolves a dotted path, collecting values across arrays of objects.
func lookup(src map[string]any, path string) (any, bool) {
	if src == nil || path == "" {
		return nil, false
	}
	if v, ok := src[path]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(path, ".")
	if !found {
		return nil, false
	}
	switch child := src[head].(type) {
	case map[string]any:
		return lookup(child, rest)
	case []any:
		var out []any
		for _, el := range child {
			if m, ok := el.(map[string]any); ok {
				if v, ok := lookup(m, rest); ok {
					out = append(out, v)
				}
			}
		}
		return out, len(out) > 0
	default:
		return nil, false
	}
}

// formatScalar renders JSON scalars without float noise for integral numbers.
func formatScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

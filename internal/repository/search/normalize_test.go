package search

import (
	"context"
	"errors"
	"testing"

	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/index"
)

const datasetFixture = `{
  "took": 5,
  "hits": {
    "total": {"value": 10000, "relation": "gte"},
    "hits": [
      {
        "_id": "61", "_score": 7.5,
        "_source": {
          "data_id": 61, "name": "iris", "version": 1, "status": "active", "runs": "412",
          "qualities": {"NumberOfInstances": 150, "NumberOfFeatures": 5, "NumberOfClasses": 3},
          "tags": [{"tag": "OpenML100"}, {"tag": "study_14"}]
        },
        "highlight": {"name": ["<em>iris</em>"], "description": ["the <em>iris</em> flower", "Fisher's <em>iris</em>"]}
      },
      {
        "_id": "969", "_score": 3.1,
        "_source": {"data_id": 969, "name": "iris", "version": 3, "status": "active",
          "qualities": {"NumberOfInstances": 150}}
      }
    ]
  },
  "aggregations": {
    "status": {"buckets": [{"key": "active", "doc_count": 9000}, {"key": "deactivated", "doc_count": 12}]},
    "tags.tag": {"doc_count": 40, "values": {"buckets": [{"key": "OpenML100", "doc_count": 30}]}},
    "qualities.NumberOfInstances": {"count": 9000, "min": 2, "max": 1000000, "avg": 2500.5, "sum": 1}
  }
}`

func TestNormalize_Dataset(t *testing.T) {
	cfg := configFor(t, domain.EntityDataset)
	page, err := NewNormalizer(nil).Normalize(decodeFixture(t, datasetFixture), cfg)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if page.TotalCount() != 10000 || !page.TotalIsLowerBound() {
		t.Errorf("total = %d lowerBound=%v", page.TotalCount(), page.TotalIsLowerBound())
	}
	recs := page.Records()
	if len(recs) != 2 {
		t.Fatalf("records = %d", len(recs))
	}

	first := recs[0]
	if first.ID() != "61" {
		t.Errorf("ID() = %q", first.ID())
	}
	if first.DisplayName() != "<em>iris</em>" {
		t.Errorf("DisplayName() = %q, want title snippet", first.DisplayName())
	}
	desc, _ := first.Field("description")
	if desc.Snippet != "the <em>iris</em> flower ... Fisher's <em>iris</em>" {
		t.Errorf("description snippet = %q", desc.Snippet)
	}
	inst, ok := first.Field(QualityPrefix + "NumberOfInstances")
	if !ok || inst.Raw != 150.0 {
		t.Errorf("derived quality = %+v", inst)
	}
	ds, ok := first.Source().(*Dataset)
	if !ok {
		t.Fatalf("Source() = %T", first.Source())
	}
	if ds.Runs != 412 || len(ds.Tags) != 2 || ds.Tags[1].Tag != "study_14" {
		t.Errorf("decoded dataset = %+v", ds)
	}
	if first.Score() == nil || *first.Score() != 7.5 {
		t.Errorf("Score() = %v", first.Score())
	}

	if recs[1].DisplayName() != "iris" {
		t.Errorf("second DisplayName() = %q, want raw title", recs[1].DisplayName())
	}
	if _, ok := recs[1].Field(QualityPrefix + "NumberOfClasses"); ok {
		t.Error("missing quality must not be derived")
	}

	status := page.Aggregations()["status"]
	if len(status) != 2 || status[0].Value != "active" || status[0].Count != 9000 {
		t.Errorf("status buckets = %+v", status)
	}
	if tags := page.Aggregations()["tags.tag"]; len(tags) != 1 || tags[0].Count != 30 {
		t.Errorf("nested buckets = %+v", tags)
	}
	st := page.Stats()["qualities.NumberOfInstances"]
	if st.Count != 9000 || st.Max == nil || *st.Max != 1000000 {
		t.Errorf("stats = %+v", st)
	}
}

func TestNormalize_BareTotal(t *testing.T) {
	cfg := configFor(t, domain.EntityFlow)
	page, err := NewNormalizer(nil).Normalize(decodeFixture(t, `{"hits":{"total":1234,"hits":[]}}`), cfg)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if page.TotalCount() != 1234 || page.TotalIsLowerBound() {
		t.Errorf("total = %d lowerBound=%v", page.TotalCount(), page.TotalIsLowerBound())
	}
}

func TestNormalize_RunMetrics(t *testing.T) {
	body := `{"hits":{"total":1,"hits":[{"_id":"1","_source":{
		"run_id": 1, "run_flow": {"flow_id": 8, "name": "weka.J48"},
		"run_task": {"task_id": 31, "source_data": {"name": "credit-g"}},
		"evaluations": [
			{"evaluation_measure": "predictive_accuracy", "value": "0.71"},
			{"evaluation_measure": "area_under_roc_curve", "value": 0.69}
		]}}]}}`
	page, err := NewNormalizer(nil).Normalize(decodeFixture(t, body), configFor(t, domain.EntityRun))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	rec := page.Records()[0]
	if rec.DisplayName() != "weka.J48" {
		t.Errorf("DisplayName() = %q", rec.DisplayName())
	}
	acc, ok := rec.Field(MetricPrefix + "predictive_accuracy")
	if !ok || acc.Raw != 0.71 {
		t.Errorf("accuracy = %+v", acc)
	}
	if _, ok := rec.Field(MetricPrefix + "f_measure"); ok {
		t.Error("absent measure must not be derived")
	}
	if run := rec.Source().(*Run); run.Task.SourceData.Name != "credit-g" {
		t.Errorf("run = %+v", run)
	}
}

func TestNormalize_UserName(t *testing.T) {
	cfg := configFor(t, domain.EntityUser)
	body := `{"hits":{"total":2,"hits":[
		{"_id":"1","_source":{"user_id":1,"first_name":"Ada","last_name":"Lovelace"}},
		{"_id":"2","_source":{"user_id":2,"first_name":"Alan","last_name":"Turing"},
		 "highlight":{"last_name":["<em>Turing</em>"]}}
	]}}`
	page, err := NewNormalizer(nil).Normalize(decodeFixture(t, body), cfg)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	recs := page.Records()
	if recs[0].DisplayName() != "Ada Lovelace" {
		t.Errorf("DisplayName() = %q", recs[0].DisplayName())
	}
	if full, _ := recs[0].Field(FieldFullName); full.Raw != "Ada Lovelace" {
		t.Errorf("full_name = %+v", full)
	}
	if recs[1].DisplayName() != "<em>Turing</em>" {
		t.Errorf("DisplayName() = %q, snippet must win", recs[1].DisplayName())
	}
}

func TestNormalize_UndecodableSourceKeepsRaw(t *testing.T) {
	body := `{"hits":{"total":1,"hits":[{"_id":"7","_source":{"data_id":7,"name":"x","qualities":"n/a"}}]}}`
	page, err := NewNormalizer(nil).Normalize(decodeFixture(t, body), configFor(t, domain.EntityDataset))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	rec := page.Records()[0]
	if _, ok := rec.Source().(map[string]any); !ok {
		t.Errorf("Source() = %T, want raw map", rec.Source())
	}
	if rec.DisplayName() != "x" {
		t.Errorf("DisplayName() = %q", rec.DisplayName())
	}
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  *index.RawResponse
		is   error
	}{
		{"nil response", nil, domain.ErrDecode},
		{"no hits", &index.RawResponse{}, domain.ErrDecode},
		{"bad aggregation", decodeFixture(t, `{"hits":{"total":0,"hits":[]},"aggregations":{"status":{"buckets":"nope"}}}`), domain.ErrDecode},
		{"nested agg without values", decodeFixture(t, `{"hits":{"total":0,"hits":[]},"aggregations":{"tags.tag":{"doc_count":1}}}`), domain.ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNormalizer(nil).Normalize(tt.raw, configFor(t, domain.EntityDataset))
			if !errors.Is(err, tt.is) {
				t.Errorf("err = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestNormalize_UnknownEntity(t *testing.T) {
	cfg := configFor(t, domain.EntityDataset)
	cfg.Entity = "model"
	_, err := NewNormalizer(nil).Normalize(decodeFixture(t, `{"hits":{"total":0,"hits":[]}}`), cfg)
	if !errors.Is(err, domain.ErrUnknownEntity) {
		t.Errorf("err = %v", err)
	}
}

func TestLookup(t *testing.T) {
	src := map[string]any{
		"a":    map[string]any{"b": 1.0},
		"tags": []any{map[string]any{"tag": "x"}, map[string]any{"tag": "y"}, "junk"},
		"c.d":  "flat",
	}
	if v, ok := lookup(src, "a.b"); !ok || v != 1.0 {
		t.Errorf("a.b = %v", v)
	}
	if v, ok := lookup(src, "tags.tag"); !ok || len(v.([]any)) != 2 {
		t.Errorf("tags.tag = %v", v)
	}
	if v, ok := lookup(src, "c.d"); !ok || v != "flat" {
		t.Errorf("c.d = %v", v)
	}
	if _, ok := lookup(src, "a.z"); ok {
		t.Error("a.z must be missing")
	}
}

func TestRepoSearch(t *testing.T) {
	ms := &mockSearcher{}
	repo := New(ms, nil)
	cfg := configFor(t, domain.EntityMeasure)

	page, err := repo.Search(context.Background(), &index.Query{Index: "measure"}, cfg)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.TotalCount() != 0 {
		t.Errorf("total = %d", page.TotalCount())
	}

	ms.executeFn = func(context.Context, *index.Query) (*index.RawResponse, error) {
		return nil, domain.NewSearchError(domain.KindTimeout, 0, nil)
	}
	if _, err := repo.Search(context.Background(), &index.Query{}, cfg); !errors.Is(err, domain.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

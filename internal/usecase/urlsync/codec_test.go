package urlsync

import (
	"net/url"
	"testing"

	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/domain/search/filter"
	"github.com/mlcatalog/mlsearch/internal/domain/search/order"
	"github.com/mlcatalog/mlsearch/internal/domain/search/state"
)

func floatPtr(f float64) *float64 { return &f }

func TestEncode_FreshSurfaceIsEmpty(t *testing.T) {
	for _, tag := range domain.Entities {
		cfg := configFor(t, tag)
		if got := Encode(cfg.DefaultState(), cfg); got != "" {
			t.Errorf("%s: Encode(default) = %q, want empty", tag, got)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	cfg := configFor(t, domain.EntityDataset)
	status, _ := filter.NewAnyOf("active", "deactivated")
	tricky, _ := filter.NewAnyOf(`a,b`, `back\slash`, "plain", "ünï code")
	instances, _ := filter.NewRange(floatPtr(100), floatPtr(1500.5))
	open, _ := filter.NewRange(nil, floatPtr(-3))
	runs, _ := order.New("runs", order.Desc)
	date, _ := order.New("date", order.Asc)

	tests := []struct {
		name    string
		term    string
		filters map[string]filter.Value
		sort    []order.Clause
		page    int
		size    int
	}{
		{"defaults", "", nil, nil, 1, 20},
		{"term", "iris flowers", nil, nil, 1, 20},
		{"any-of", "", map[string]filter.Value{"status": status}, nil, 1, 20},
		{"escaped values", "", map[string]filter.Value{"tags.tag": tricky}, nil, 1, 20},
		{"ranges", "", map[string]filter.Value{
			"qualities.NumberOfInstances": instances,
			"qualities.NumberOfFeatures":  open,
		}, nil, 1, 20},
		{"multi sort", "", nil, []order.Clause{runs, date}, 1, 20},
		{"page and size", "x", nil, nil, 7, 100},
		{"everything", "wine", map[string]filter.Value{"status": status, "tags.tag": tricky}, []order.Clause{date}, 3, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := state.New(tt.term, tt.filters, tt.sort, tt.page, tt.size)
			if err != nil {
				t.Fatalf("state.New: %v", err)
			}
			raw := Encode(st, cfg)
			got := ParseQuery(raw, cfg)
			if !got.Equal(st) {
				t.Errorf("round trip through %q: got %+v, want %+v", raw, got, st)
			}
		})
	}
}

func TestRoundTrip_DefaultSort(t *testing.T) {
	cfg := configFor(t, domain.EntityRun)

	def := cfg.DefaultState()
	if got := Encode(def, cfg); got != "" {
		t.Errorf("default sort encoded as %q", got)
	}

	relevance := def.WithSort(nil)
	raw := Encode(relevance, cfg)
	if raw != "sort=relevance" {
		t.Errorf("Encode = %q, want sort=relevance", raw)
	}
	if got := ParseQuery(raw, cfg); len(got.Sort()) != 0 {
		t.Errorf("relevance parsed as %v", got.Sort())
	}
}

func TestSerialize_Grammar(t *testing.T) {
	cfg := configFor(t, domain.EntityDataset)
	status, _ := filter.NewAnyOf("active", "in_preparation")
	instances, _ := filter.NewRange(floatPtr(10), nil)
	runs, _ := order.New("runs", order.Desc)
	st, _ := state.New("iris", map[string]filter.Value{
		"status":                      status,
		"qualities.NumberOfInstances": instances,
	}, []order.Clause{runs}, 2, 50)

	got := Serialize(st, cfg)
	want := url.Values{
		"q":                             {"iris"},
		"f.status":                      {"active,in_preparation"},
		"f.qualities.NumberOfInstances": {"10.."},
		"sort":                          {"runs:desc"},
		"page":                          {"2"},
		"size":                          {"50"},
	}
	if got.Encode() != want.Encode() {
		t.Errorf("Serialize = %q, want %q", got.Encode(), want.Encode())
	}
}

func TestParse_Lenient(t *testing.T) {
	cfg := configFor(t, domain.EntityDataset)

	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, st state.State)
	}{
		{"garbage page", "page=abc", func(t *testing.T, st state.State) {
			if st.Page() != 1 {
				t.Errorf("page = %d", st.Page())
			}
		}},
		{"negative page", "page=-4", func(t *testing.T, st state.State) {
			if st.Page() != 1 {
				t.Errorf("page = %d", st.Page())
			}
		}},
		{"unsupported size", "size=30", func(t *testing.T, st state.State) {
			if st.PageSize() != 20 {
				t.Errorf("size = %d", st.PageSize())
			}
		}},
		{"unknown facet", "f.colour=red&f.status=active", func(t *testing.T, st state.State) {
			if fields := st.FilterFields(); len(fields) != 1 || fields[0] != "status" {
				t.Errorf("fields = %v", fields)
			}
		}},
		{"range on value facet", "f.status=1..2", func(t *testing.T, st state.State) {
			v, ok := st.Filter("status")
			if !ok || v.Kind() != filter.AnyOf {
				t.Errorf("status = %v", v)
			}
		}},
		{"bad range", "f.qualities.NumberOfInstances=ten..20&q=iris", func(t *testing.T, st state.State) {
			if _, ok := st.Filter("qualities.NumberOfInstances"); ok {
				t.Error("malformed range kept")
			}
			if st.Term() != "iris" {
				t.Errorf("term = %q", st.Term())
			}
		}},
		{"inverted range", "f.qualities.NumberOfInstances=20..10", func(t *testing.T, st state.State) {
			if _, ok := st.Filter("qualities.NumberOfInstances"); ok {
				t.Error("inverted range kept")
			}
		}},
		{"empty range", "f.qualities.NumberOfInstances=..", func(t *testing.T, st state.State) {
			if _, ok := st.Filter("qualities.NumberOfInstances"); ok {
				t.Error("open range kept")
			}
		}},
		{"huge page kept for clamping", "page=922337203685477580", func(t *testing.T, st state.State) {
			if st.Page() != 922337203685477580 {
				t.Errorf("page = %d", st.Page())
			}
		}},
		{"empty values", "f.format=,,", func(t *testing.T, st state.State) {
			if _, ok := st.Filter("format"); ok {
				t.Error("empty selection kept")
			}
		}},
		{"unsortable and duplicate", "sort=name:asc&sort=runs:desc&sort=runs:asc&sort=date:sideways", func(t *testing.T, st state.State) {
			got := st.Sort()
			if len(got) != 1 || got[0].String() != "runs:desc" {
				t.Errorf("sort = %v", got)
			}
		}},
		{"broken escape", "q=%zz&page=3", func(t *testing.T, st state.State) {
			if st.Page() != 3 {
				t.Errorf("page = %d", st.Page())
			}
		}},
		{"leading question mark", "?q=wine", func(t *testing.T, st state.State) {
			if st.Term() != "wine" {
				t.Errorf("term = %q", st.Term())
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ParseQuery(tt.raw, cfg))
		})
	}
}

func TestParse_NonFiniteRangeDropped(t *testing.T) {
	cfg := configFor(t, domain.EntityTask)

	for _, raw := range []string{"NaN..", "..Inf", "-Inf..5", "inf..", "1..+Infinity"} {
		t.Run(raw, func(t *testing.T) {
			st := Parse(url.Values{"f.runs": {raw}, "q": {"iris"}}, cfg)
			if v, ok := st.Filter("runs"); ok {
				t.Errorf("non-finite range kept: min=%v max=%v", v.Min(), v.Max())
			}
			if st.Term() != "iris" {
				t.Errorf("term = %q, other params must survive", st.Term())
			}
			if got := Encode(st, cfg); got != "q=iris" {
				t.Errorf("Encode = %q", got)
			}
		})
	}
}

func TestSplitValues(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"a", []string{"a"}},
		{"a,b", []string{"a", "b"}},
		{`a\,b,c`, []string{"a,b", "c"}},
		{`a\\,b`, []string{`a\`, "b"}},
		{`trailing\`, []string{`trailing\`}},
	}
	for _, tt := range tests {
		got := splitValues(tt.raw)
		if len(got) != len(tt.want) {
			t.Errorf("splitValues(%q) = %q, want %q", tt.raw, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitValues(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		}
	}
}

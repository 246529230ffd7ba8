package chi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mlcatalog/mlsearch/internal/catalog"
	"github.com/mlcatalog/mlsearch/internal/domain/search/result"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/index"
	"github.com/mlcatalog/mlsearch/internal/session/memory"
	healthuc "github.com/mlcatalog/mlsearch/internal/usecase/health"
	searchuc "github.com/mlcatalog/mlsearch/internal/usecase/search"
	"github.com/mlcatalog/mlsearch/internal/usecase/surface"
)

// mockRepo answers every query with the same page and records what it saw.
type mockRepo struct {
	mu      sync.Mutex
	queries []*index.Query
	page    result.Page
	err     error
}

func (m *mockRepo) Search(_ context.Context, q *index.Query, _ searchconfig.Config) (result.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	if m.err != nil {
		return result.Page{}, m.err
	}
	return m.page, nil
}

func (m *mockRepo) last() *index.Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queries) == 0 {
		return nil
	}
	return m.queries[len(m.queries)-1]
}

func (m *mockRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(context.Context) error { return m.err }

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
	repo   *mockRepo
	index  *mockPinger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	score := 1.5
	repo := &mockRepo{page: result.NewPage(
		[]result.Record{result.NewRecord("61", "iris", &score,
			map[string]result.DisplayValue{"name": {Raw: "iris", Snippet: "<em>iris</em>"}}, nil)},
		1, false,
		map[string][]result.Bucket{"status": {{Value: "active", Count: 1}}},
		nil,
	)}
	svc := searchuc.New(index.NewCompiler(index.DefaultWindow), repo, nil)
	surfaces := surface.NewManager(cat, svc, surface.Options{Debounce: -1}, nil)
	sessions := memory.New(100, time.Hour)
	pinger := &mockPinger{}

	s := NewServer(cat, svc, surfaces, sessions, healthuc.New(pinger, sessions), zap.NewNop())
	r := chi.NewRouter()
	s.Register(r)
	srv := httptest.NewServer(r)

	jar, _ := cookiejar.New(nil)
	t.Cleanup(func() {
		srv.Close()
		surfaces.Close()
	})
	return &testEnv{srv: srv, client: &http.Client{Jar: jar}, repo: repo, index: pinger}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	reader := strings.NewReader("")
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, b
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return v
}

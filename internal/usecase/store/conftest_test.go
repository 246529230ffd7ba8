package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/domain/search/result"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/domain/search/state"
)

type fetchReply struct {
	page result.Page
	err  error
}

type fetchCall struct {
	st    state.State
	reply chan fetchReply
}

// manualFetcher hands every call to the test, which decides when and how it returns.
type manualFetcher struct {
	calls chan fetchCall
}

func newManualFetcher() *manualFetcher {
	return &manualFetcher{calls: make(chan fetchCall, 16)}
}

func (f *manualFetcher) Fetch(ctx context.Context, _ searchconfig.Config, st state.State) (result.Page, error) {
	c := fetchCall{st: st, reply: make(chan fetchReply, 1)}
	f.calls <- c
	select {
	case r := <-c.reply:
		return r.page, r.err
	case <-ctx.Done():
		return result.Page{}, ctx.Err()
	}
}

func (f *manualFetcher) LastPage(pageSize int) int { return 10000 / pageSize }

func (f *manualFetcher) next(t *testing.T) fetchCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a fetch")
		return fetchCall{}
	}
}

// autoFetcher answers immediately with a page whose total is the call number.
type autoFetcher struct {
	mu    sync.Mutex
	count int
	err   error
}

func (f *autoFetcher) Fetch(_ context.Context, _ searchconfig.Config, _ state.State) (result.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	if f.err != nil {
		return result.Page{}, f.err
	}
	return result.NewPage(nil, f.count, false, nil, nil), nil
}

func (f *autoFetcher) LastPage(pageSize int) int { return 10000 / pageSize }

func (f *autoFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func testConfig() searchconfig.Config {
	return searchconfig.Config{
		Entity:           domain.EntityDataset,
		Index:            "data",
		IDField:          "data_id",
		TitleField:       "name",
		SearchableFields: map[string]float64{"name": 1},
		Facets: []searchconfig.Facet{
			{Field: "status", Kind: searchconfig.FacetValue},
			{Field: "format", Kind: searchconfig.FacetValue},
			{Field: "runs", Kind: searchconfig.FacetRange},
		},
		SortOptions:    []searchconfig.SortOption{{Field: "runs"}, {Field: "date"}},
		ResultsPerPage: 20,
	}
}

func settle(t *testing.T, s *Store) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := s.WaitSettled(ctx)
	if err != nil {
		t.Fatalf("WaitSettled: %v", err)
	}
	return snap
}

func floatPtr(f float64) *float64 { return &f }

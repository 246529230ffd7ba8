package urlsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mlcatalog/mlsearch/internal/catalog"
	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/domain/search/result"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/domain/search/state"
	"github.com/mlcatalog/mlsearch/internal/usecase/store"
)

func configFor(t *testing.T, tag domain.EntityTag) searchconfig.Config {
	t.Helper()
	c, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	cfg, err := c.Get(tag)
	if err != nil {
		t.Fatalf("Get(%s): %v", tag, err)
	}
	return cfg
}

type nopFetcher struct{}

func (nopFetcher) Fetch(context.Context, searchconfig.Config, state.State) (result.Page, error) {
	return result.Page{}, nil
}

func (nopFetcher) LastPage(pageSize int) int { return 10000 / pageSize }

type navEntry struct {
	query string
	push  bool
}

// recordingNav collects history writes.
type recordingNav struct {
	mu      sync.Mutex
	entries []navEntry
	written chan struct{}
}

func newRecordingNav() *recordingNav {
	return &recordingNav{written: make(chan struct{}, 64)}
}

func (n *recordingNav) Replace(q string) { n.add(navEntry{query: q}) }

func (n *recordingNav) Push(q string) { n.add(navEntry{query: q, push: true}) }

func (n *recordingNav) add(e navEntry) {
	n.mu.Lock()
	n.entries = append(n.entries, e)
	n.mu.Unlock()
	n.written <- struct{}{}
}

func (n *recordingNav) all() []navEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]navEntry(nil), n.entries...)
}

func (n *recordingNav) wait(t *testing.T) {
	t.Helper()
	select {
	case <-n.written:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a URL write")
	}
}

func newSurface(t *testing.T, tag domain.EntityTag, opts ...Option) (*store.Store, *Syncer, *recordingNav) {
	t.Helper()
	st := store.New(configFor(t, tag), nopFetcher{}, nil)
	nav := newRecordingNav()
	s := New(st, nav, opts...)
	t.Cleanup(func() {
		s.Close()
		st.Close()
	})
	return st, s, nav
}

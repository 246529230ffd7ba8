package surface

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	catalogpkg "github.com/mlcatalog/mlsearch/internal/catalog"
	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/domain/search/result"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/domain/search/state"
)

type nopFetcher struct{}

func (nopFetcher) Fetch(context.Context, searchconfig.Config, state.State) (result.Page, error) {
	return result.Page{}, nil
}

func (nopFetcher) LastPage(pageSize int) int { return 10000 / pageSize }

func newManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	c, err := catalogpkg.Load()
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	if opts.Debounce == 0 {
		opts.Debounce = -1
	}
	m := NewManager(c, nopFetcher{}, opts, nil)
	t.Cleanup(m.Close)
	return m
}

func TestHistory(t *testing.T) {
	h := NewHistory("")
	h.Replace("q=a")
	h.Push("page=2&q=a")
	h.Push("page=3&q=a")

	if q, ok := h.Back(); !ok || q != "page=2&q=a" {
		t.Errorf("Back = %q, %v", q, ok)
	}
	h.Push("page=9&q=a")
	if _, ok := h.Forward(); ok {
		t.Error("Push must drop forward entries")
	}
	if cursor, length := h.Position(); cursor != 2 || length != 3 {
		t.Errorf("position = %d/%d", cursor, length)
	}
	_, _ = h.Back()
	_, _ = h.Back()
	if _, ok := h.Back(); ok {
		t.Error("Back past the first entry")
	}
	if h.Current() != "q=a" {
		t.Errorf("Current = %q", h.Current())
	}
}

func TestMount(t *testing.T) {
	m := newManager(t, Options{})

	s, err := m.Mount("sess", "dataset", "q=iris&page=1")
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if s.ID() == "" || s.Entity() != domain.EntityDataset || s.SessionID() != "sess" {
		t.Errorf("surface = %s %s %s", s.ID(), s.Entity(), s.SessionID())
	}
	if s.Query() != "q=iris" || s.History().Current() != "q=iris" {
		t.Errorf("query = %q history = %q", s.Query(), s.History().Current())
	}
	got, err := m.Get(s.ID())
	if err != nil || got != s {
		t.Errorf("Get = %v, %v", got, err)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d", m.Len())
	}
}

func TestMount_UnknownEntity(t *testing.T) {
	m := newManager(t, Options{})
	if _, err := m.Mount("", "planet", ""); !errors.Is(err, domain.ErrUnknownEntity) {
		t.Errorf("err = %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d", m.Len())
	}
}

func TestBackForward(t *testing.T) {
	m := newManager(t, Options{})
	s, _ := m.Mount("", "dataset", "")
	st := s.Store()

	_ = st.SetTerm("iris")
	_ = st.SetPage(2)
	_ = st.SetPage(3)

	if err := s.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if got := st.State(); got.Page() != 2 || got.Term() != "iris" {
		t.Errorf("after Back: %+v", got)
	}
	if err := s.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if got := st.State().Page(); got != 1 {
		t.Errorf("page = %d", got)
	}
	if err := s.Back(); !errors.Is(err, ErrNoHistory) {
		t.Errorf("err = %v", err)
	}

	if err := s.Forward(); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if got := st.State().Page(); got != 2 {
		t.Errorf("page = %d", got)
	}
	// Reads are not echoed: the forward entry survives.
	if _, length := s.History().Position(); length != 3 {
		t.Errorf("history length = %d", length)
	}
}

func TestOnWrite(t *testing.T) {
	var (
		mu     sync.Mutex
		writes []string
	)
	m := newManager(t, Options{OnWrite: func(s *Surface, q string) {
		mu.Lock()
		defer mu.Unlock()
		writes = append(writes, s.SessionID()+"|"+q)
	}})
	s, _ := m.Mount("abc", "task", "")
	_ = s.Store().SetTerm("iris")

	mu.Lock()
	defer mu.Unlock()
	if len(writes) != 1 || writes[0] != "abc|q=iris" {
		t.Errorf("writes = %q", writes)
	}
}

func TestUnmount(t *testing.T) {
	m := newManager(t, Options{})
	s, _ := m.Mount("", "run", "")

	if err := m.Unmount(s.ID()); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, domain.ErrSurfaceNotFound) {
		t.Errorf("Get after Unmount = %v", err)
	}
	if err := m.Unmount(s.ID()); !errors.Is(err, domain.ErrSurfaceNotFound) {
		t.Errorf("second Unmount = %v", err)
	}
	if err := s.Store().SetTerm("x"); err == nil {
		t.Error("store still accepts transitions after unmount")
	}
}

func waitUnmounted(t *testing.T, m *Manager, s *Surface) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	// Get would restart the idle timer, so poll the store instead.
	for s.Store().SetTerm("x") == nil {
		if time.Now().After(deadline) {
			t.Fatalf("surface %s still mounted", s.ID())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, domain.ErrSurfaceNotFound) {
		t.Errorf("Get after eviction = %v", err)
	}
}

func TestManager_EvictsIdleSurface(t *testing.T) {
	m := newManager(t, Options{IdleTTL: 50 * time.Millisecond})
	s, err := m.Mount("", "dataset", "q=iris")
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	waitUnmounted(t, m, s)
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
	if err := m.Unmount(s.ID()); !errors.Is(err, domain.ErrSurfaceNotFound) {
		t.Errorf("Unmount after eviction = %v", err)
	}
}

func TestManager_GetKeepsSurfaceAlive(t *testing.T) {
	m := newManager(t, Options{IdleTTL: 300 * time.Millisecond})
	s, _ := m.Mount("", "dataset", "")

	// Touch the surface for longer than its idle timeout.
	for range 6 {
		time.Sleep(100 * time.Millisecond)
		if _, err := m.Get(s.ID()); err != nil {
			t.Fatalf("Get while active: %v", err)
		}
	}
	if err := s.Store().SetTerm("iris"); err != nil {
		t.Errorf("store closed while active: %v", err)
	}
}

func TestManager_MaxSurfaces(t *testing.T) {
	m := newManager(t, Options{MaxSurfaces: 2})
	first, _ := m.Mount("", "dataset", "")
	second, _ := m.Mount("", "dataset", "")
	// Touching first makes second the least recently used.
	if _, err := m.Get(first.ID()); err != nil {
		t.Fatalf("Get: %v", err)
	}
	third, _ := m.Mount("", "run", "")

	waitUnmounted(t, m, second)
	for _, s := range []*Surface{first, third} {
		if _, err := m.Get(s.ID()); err != nil {
			t.Errorf("Get(%s) = %v", s.Entity(), err)
		}
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d, want 2", m.Len())
	}
}

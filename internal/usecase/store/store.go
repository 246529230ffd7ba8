// Package store holds the single source of truth for one search surface.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/domain/search/filter"
	"github.com/mlcatalog/mlsearch/internal/domain/search/order"
	"github.com/mlcatalog/mlsearch/internal/domain/search/result"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/domain/search/state"
	"github.com/mlcatalog/mlsearch/internal/metrics"
)

// ErrClosed is returned by transitions on an unmounted store.
var ErrClosed = errors.New("store closed")

// Fetcher runs a state against the backend.
type Fetcher interface {
	Fetch(ctx context.Context, cfg searchconfig.Config, st state.State) (result.Page, error)
	LastPage(pageSize int) int
}

// Store serializes transitions, bumps a generation per transition and launches
// one fetch per generation. Only the response of the latest generation is applied.
type Store struct {
	cfg     searchconfig.Config
	fetcher Fetcher
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	st         state.State
	generation uint64
	settled    uint64
	page       *result.Page
	err        error
	notice     Notice
	idle       chan struct{}
	listeners  map[int]Listener
	nextID     int
	closed     bool

	// notifyMu keeps listener delivery in transition order.
	notifyMu sync.Mutex
}

// New creates an idle store holding the configuration defaults.
func New(cfg searchconfig.Config, fetcher Fetcher, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &Store{
		cfg:       cfg,
		fetcher:   fetcher,
		logger:    logger.With(zap.String("entity", string(cfg.Entity))),
		ctx:       ctx,
		cancel:    cancel,
		st:        cfg.DefaultState(),
		idle:      idle,
		listeners: make(map[int]Listener),
	}
}

// Config returns the search configuration the store was created with.
func (s *Store) Config() searchconfig.Config { return s.cfg }

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// State returns the current state.
func (s *Store) State() state.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Snapshot returns the current state together with its fetch status.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	status := StatusSuccess
	switch {
	case s.generation == 0:
		status = StatusIdle
	case s.settled < s.generation:
		status = StatusLoading
	case s.err != nil:
		status = StatusFailed
	}
	return Snapshot{
		State:      s.st,
		Generation: s.generation,
		Status:     status,
		Page:       s.page,
		Err:        s.err,
		Notice:     s.notice,
		LastPage:   s.fetcher.LastPage(s.st.PageSize()),
	}
}

// WaitSettled blocks until the latest generation's fetch has been applied.
func (s *Store) WaitSettled(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	select {
	case <-idle:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Close cancels in-flight fetches and waits for them to return.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	s.markIdleLocked()
	s.mu.Unlock()
	s.wg.Wait()
}

// SetTerm replaces the free-text term.
func (s *Store) SetTerm(term string) error {
	return s.transition(ActionSetTerm, OriginUser, true, func(st state.State) (state.State, Notice, error) {
		return st.WithTerm(strings.TrimSpace(term)), "", nil
	})
}

// AddFilter adds value to the any-of selection on field.
func (s *Store) AddFilter(field, value string) error {
	return s.transition(ActionAddFilter, OriginUser, true, func(st state.State) (state.State, Notice, error) {
		if _, err := s.facet(field, searchconfig.FacetValue); err != nil {
			return st, "", err
		}
		var (
			v   filter.Value
			err error
		)
		if cur, ok := st.Filter(field); ok {
			v, err = cur.With(value)
		} else {
			v, err = filter.NewAnyOf(value)
		}
		if err != nil {
			return st, "", fmt.Errorf("%w: %w", domain.ErrInvalidState, err)
		}
		return st.WithFilter(field, v), "", nil
	})
}

// RemoveFilter removes values from the selection on field. No values clears the facet.
func (s *Store) RemoveFilter(field string, values ...string) error {
	return s.transition(ActionRemoveFilter, OriginUser, true, func(st state.State) (state.State, Notice, error) {
		if _, ok := s.cfg.Facet(field); !ok {
			return st, "", fmt.Errorf("%w: %q", domain.ErrUnknownFacet, field)
		}
		cur, ok := st.Filter(field)
		if !ok || len(values) == 0 {
			return st.WithoutFilter(field), "", nil
		}
		for _, v := range values {
			rest, left := cur.Without(v)
			if !left {
				return st.WithoutFilter(field), "", nil
			}
			cur = rest
		}
		return st.WithFilter(field, cur), "", nil
	})
}

// SetRange sets inclusive bounds on a range facet. Two nil bounds clear it.
func (s *Store) SetRange(field string, minVal, maxVal *float64) error {
	return s.transition(ActionSetRange, OriginUser, true, func(st state.State) (state.State, Notice, error) {
		if _, err := s.facet(field, searchconfig.FacetRange); err != nil {
			return st, "", err
		}
		if minVal == nil && maxVal == nil {
			return st.WithoutFilter(field), "", nil
		}
		v, err := filter.NewRange(minVal, maxVal)
		if err != nil {
			return st, "", fmt.Errorf("%w: %w", domain.ErrInvalidState, err)
		}
		return st.WithFilter(field, v), "", nil
	})
}

// ReplaceFilter swaps the whole selection on field in one transition. nil clears it.
func (s *Store) ReplaceFilter(field string, v *filter.Value) error {
	return s.transition(ActionReplaceFilter, OriginUser, true, func(st state.State) (state.State, Notice, error) {
		f, ok := s.cfg.Facet(field)
		if !ok {
			return st, "", fmt.Errorf("%w: %q", domain.ErrUnknownFacet, field)
		}
		if v == nil || v.IsZero() {
			return st.WithoutFilter(field), "", nil
		}
		if err := checkKind(f, *v); err != nil {
			return st, "", err
		}
		return st.WithFilter(field, *v), "", nil
	})
}

// SetSort replaces the sort order. No clauses means relevance.
func (s *Store) SetSort(clauses ...order.Clause) error {
	return s.transition(ActionSetSort, OriginUser, true, func(st state.State) (state.State, Notice, error) {
		seen := make(map[string]bool, len(clauses))
		for _, c := range clauses {
			if !s.cfg.Sortable(c.Field()) {
				return st, "", fmt.Errorf("%w: %q is not sortable", domain.ErrInvalidState, c.Field())
			}
			if seen[c.Field()] {
				return st, "", fmt.Errorf("%w: duplicate sort field %q", domain.ErrInvalidState, c.Field())
			}
			seen[c.Field()] = true
		}
		return st.WithSort(clauses), "", nil
	})
}

// SetPage moves to page n, clamping to the last page inside the result window.
func (s *Store) SetPage(n int) error {
	return s.transition(ActionSetPage, OriginUser, false, func(st state.State) (state.State, Notice, error) {
		if n < state.FirstPage {
			return st, "", fmt.Errorf("%w: page must be >= %d", domain.ErrInvalidState, state.FirstPage)
		}
		n, notice := s.clampPage(n, st.PageSize())
		return st.WithPage(n), notice, nil
	})
}

// SetPageSize changes the result count per page.
func (s *Store) SetPageSize(n int) error {
	return s.transition(ActionSetPageSize, OriginUser, true, func(st state.State) (state.State, Notice, error) {
		if !state.ValidPageSize(n) {
			return st, "", fmt.Errorf("%w: page size must be one of %v", domain.ErrInvalidState, state.PageSizes)
		}
		return st.WithPageSize(n), "", nil
	})
}

// Restore replaces the whole state with one read from the URL.
func (s *Store) Restore(next state.State) error {
	return s.transition(ActionRestore, OriginURL, false, func(st state.State) (state.State, Notice, error) {
		for _, field := range next.FilterFields() {
			f, ok := s.cfg.Facet(field)
			if !ok {
				return st, "", fmt.Errorf("%w: %q", domain.ErrUnknownFacet, field)
			}
			v, _ := next.Filter(field)
			if err := checkKind(f, v); err != nil {
				return st, "", err
			}
		}
		if next.Page() < state.FirstPage || !state.ValidPageSize(next.PageSize()) {
			return st, "", fmt.Errorf("%w: page %d size %d", domain.ErrInvalidState, next.Page(), next.PageSize())
		}
		n, notice := s.clampPage(next.Page(), next.PageSize())
		return next.WithPage(n), notice, nil
	})
}

// Reset returns to the configuration defaults.
func (s *Store) Reset() error {
	return s.transition(ActionReset, OriginUser, false, func(state.State) (state.State, Notice, error) {
		return s.cfg.DefaultState(), "", nil
	})
}

func (s *Store) facet(field string, kind searchconfig.FacetKind) (searchconfig.Facet, error) {
	f, ok := s.cfg.Facet(field)
	if !ok {
		return f, fmt.Errorf("%w: %q", domain.ErrUnknownFacet, field)
	}
	if f.Kind != kind {
		return f, fmt.Errorf("%w: %q is a %s facet", domain.ErrInvalidState, field, f.Kind)
	}
	return f, nil
}

func checkKind(f searchconfig.Facet, v filter.Value) error {
	want := filter.AnyOf
	if f.Kind == searchconfig.FacetRange {
		want = filter.Range
	}
	if v.Kind() != want {
		return fmt.Errorf("%w: %s filter on %s facet %q", domain.ErrInvalidState, v.Kind(), f.Kind, f.Field)
	}
	return nil
}

func (s *Store) clampPage(n, pageSize int) (int, Notice) {
	if last := s.fetcher.LastPage(pageSize); n > last {
		metrics.CappedPagesTotal.WithLabelValues(string(s.cfg.Entity)).Inc()
		return last, NoticeCapped
	}
	return n, ""
}

type mutation func(state.State) (state.State, Notice, error)

func (s *Store) transition(action Action, origin Origin, resetPage bool, mutate mutation) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	next, notice, err := mutate(s.st)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if resetPage {
		next = next.WithPage(state.FirstPage)
	}

	if s.settled == s.generation {
		s.idle = make(chan struct{})
	}
	s.st = next
	s.generation++
	s.notice = notice
	gen := s.generation
	s.wg.Add(1)

	s.notifyMu.Lock()
	listeners := s.listenersLocked()
	s.mu.Unlock()
	deliver(listeners, Event{Kind: EventStateChanged, Action: action, Origin: origin, Generation: gen, State: next})
	s.notifyMu.Unlock()

	go s.fetch(gen, next)
	return nil
}

func (s *Store) fetch(gen uint64, st state.State) {
	defer s.wg.Done()
	page, err := s.fetcher.Fetch(s.ctx, s.cfg, st)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if gen != s.generation {
		current := s.generation
		s.mu.Unlock()
		metrics.StaleResponsesTotal.WithLabelValues(string(s.cfg.Entity)).Inc()
		s.logger.Debug("Discarding stale response", zap.Uint64("generation", gen), zap.Uint64("current", current))
		return
	}

	s.settled = gen
	if err != nil {
		// Last-known results stay visible next to the error.
		s.err = err
		s.logger.Warn("Search fetch failed", zap.Uint64("generation", gen), zap.Error(err))
	} else {
		s.page = &page
		s.err = nil
	}
	s.markIdleLocked()

	s.notifyMu.Lock()
	listeners := s.listenersLocked()
	s.mu.Unlock()
	deliver(listeners, Event{Kind: EventResultsApplied, Generation: gen, State: st})
	s.notifyMu.Unlock()
}

func (s *Store) markIdleLocked() {
	select {
	case <-s.idle:
	default:
		close(s.idle)
	}
}

func (s *Store) listenersLocked() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

func deliver(listeners []Listener, ev Event) {
	for _, l := range listeners {
		l(ev)
	}
}

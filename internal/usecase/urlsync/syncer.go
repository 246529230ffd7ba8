package urlsync

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mlcatalog/mlsearch/internal/usecase/store"
)

// DefaultDebounce is how long state changes are coalesced before the URL is written.
const DefaultDebounce = 500 * time.Millisecond

// Navigator is the history the syncer writes to.
type Navigator interface {
	Replace(query string)
	Push(query string)
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithDebounce sets the write delay. Zero or less writes synchronously.
func WithDebounce(d time.Duration) Option {
	return func(s *Syncer) { s.debounce = d }
}

// WithOnWrite registers a hook called after every URL write.
func WithOnWrite(fn func(query string)) Option {
	return func(s *Syncer) { s.onWrite = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// Syncer mirrors user edits of a store into the URL and applies URL reads to the store.
type Syncer struct {
	store    *store.Store
	nav      Navigator
	debounce time.Duration
	onWrite  func(query string)
	logger   *zap.Logger

	mu          sync.Mutex
	timer       *time.Timer
	pending     string
	pendingPush bool
	hasPending  bool
	current     string
	closed      bool
	unsubscribe func()
}

// New subscribes a syncer to st. Call Mount before the first user edit.
func New(st *store.Store, nav Navigator, opts ...Option) *Syncer {
	s := &Syncer{
		store:    st,
		nav:      nav,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsubscribe = st.Subscribe(s.onEvent)
	return s
}

// Mount restores the store from the initial URL. The URL is normalized to its
// canonical form with a replace when it differs.
func (s *Syncer) Mount(rawQuery string) error {
	cfg := s.store.Config()
	st := ParseQuery(rawQuery, cfg)
	canonical := Encode(st, cfg)

	s.mu.Lock()
	s.current = canonical
	s.mu.Unlock()

	if err := s.store.Restore(st); err != nil {
		return err
	}
	if canonical != rawQuery {
		s.nav.Replace(canonical)
	}
	return nil
}

// Navigate applies a URL read, such as back or forward, immediately. Pending writes
// are dropped and the read is never echoed back.
func (s *Syncer) Navigate(rawQuery string) error {
	cfg := s.store.Config()
	st := ParseQuery(rawQuery, cfg)

	s.mu.Lock()
	s.stopLocked()
	s.hasPending, s.pendingPush = false, false
	s.current = Encode(st, cfg)
	s.mu.Unlock()

	return s.store.Restore(st)
}

// Flush writes a pending change now.
func (s *Syncer) Flush() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	s.write()
}

// Query returns the last query written or read.
func (s *Syncer) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close flushes a pending change and detaches from the store.
func (s *Syncer) Close() {
	s.Flush()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.unsubscribe()
}

func (s *Syncer) onEvent(ev store.Event) {
	if ev.Kind != store.EventStateChanged || ev.Origin == store.OriginURL {
		return
	}
	q := Encode(ev.State, s.store.Config())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = q
	s.hasPending = true
	s.pendingPush = s.pendingPush || ev.Action == store.ActionSetPage
	if s.debounce <= 0 {
		s.mu.Unlock()
		s.write()
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.write)
	} else {
		s.timer.Reset(s.debounce)
	}
	s.mu.Unlock()
}

func (s *Syncer) write() {
	s.mu.Lock()
	if !s.hasPending {
		s.mu.Unlock()
		return
	}
	q, push := s.pending, s.pendingPush
	s.hasPending, s.pendingPush = false, false
	if q == s.current {
		s.mu.Unlock()
		return
	}
	s.current = q
	s.mu.Unlock()

	if push {
		s.nav.Push(q)
	} else {
		s.nav.Replace(q)
	}
	s.logger.Debug("URL written", zap.String("query", q), zap.Bool("push", push))
	if s.onWrite != nil {
		s.onWrite(q)
	}
}

// stopLocked drops the timer. Pending state is kept unless the caller clears it.
func (s *Syncer) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
}

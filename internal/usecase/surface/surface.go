// Package surface mounts search surfaces: a store, its URL syncer, a staging
// buffer and a history, bundled under one id.
package surface

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/metrics"
	"github.com/mlcatalog/mlsearch/internal/usecase/staging"
	"github.com/mlcatalog/mlsearch/internal/usecase/store"
	"github.com/mlcatalog/mlsearch/internal/usecase/urlsync"
)

// ErrNoHistory is returned when navigating past either end of the history.
var ErrNoHistory = errors.New("no history entry in that direction")

type catalog interface {
	Lookup(name string) (searchconfig.Config, error)
}

// Surface is one mounted search view.
type Surface struct {
	id        string
	sessionID string
	mountedAt time.Time

	store   *store.Store
	syncer  *urlsync.Syncer
	staging *staging.Buffer
	history *History

	released atomic.Bool
}

// ID returns the surface id.
func (s *Surface) ID() string { return s.id }

// SessionID returns the session that mounted the surface, possibly empty.
func (s *Surface) SessionID() string { return s.sessionID }

// MountedAt returns the mount time.
func (s *Surface) MountedAt() time.Time { return s.mountedAt }

// Entity returns the entity kind searched.
func (s *Surface) Entity() domain.EntityTag { return s.store.Config().Entity }

// Store returns the surface's state store.
func (s *Surface) Store() *store.Store { return s.store }

// Staging returns the facet staging buffer.
func (s *Surface) Staging() *staging.Buffer { return s.staging }

// History returns the virtual history.
func (s *Surface) History() *History { return s.history }

// Query returns the canonical query the URL currently shows.
func (s *Surface) Query() string { return s.syncer.Query() }

// Flush writes pending URL changes now.
func (s *Surface) Flush() { s.syncer.Flush() }

// Back applies the previous history entry.
func (s *Surface) Back() error {
	s.syncer.Flush()
	q, ok := s.history.Back()
	if !ok {
		return ErrNoHistory
	}
	return s.syncer.Navigate(q)
}

// Forward applies the next history entry.
func (s *Surface) Forward() error {
	s.syncer.Flush()
	q, ok := s.history.Forward()
	if !ok {
		return ErrNoHistory
	}
	return s.syncer.Navigate(q)
}

func (s *Surface) close() {
	s.syncer.Close()
	s.store.Close()
}

// Default surface limits.
const (
	DefaultIdleTTL     = 30 * time.Minute
	DefaultMaxSurfaces = 10000
)

// Options configure a Manager.
type Options struct {
	// Debounce is the URL write delay. Zero uses urlsync.DefaultDebounce, negative writes at once.
	Debounce time.Duration
	// OnWrite is called after a surface's URL is written.
	OnWrite func(s *Surface, query string)
	// IdleTTL unmounts a surface nobody has touched for this long. Zero uses DefaultIdleTTL.
	IdleTTL time.Duration
	// MaxSurfaces bounds the mounted surfaces; the least recently used one is
	// unmounted to make room. Zero uses DefaultMaxSurfaces.
	MaxSurfaces int
}

// Manager owns the mounted surfaces. Surfaces left idle past Options.IdleTTL
// are unmounted as if the client had deleted them.
type Manager struct {
	catalog catalog
	fetcher store.Fetcher
	opts    Options
	logger  *zap.Logger

	// mu orders lookups with their TTL refresh.
	mu       sync.Mutex
	surfaces *expirable.LRU[string, *Surface]
	closing  sync.WaitGroup
}

// NewManager creates a manager.
func NewManager(cat catalog, fetcher store.Fetcher, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Debounce == 0 {
		opts.Debounce = urlsync.DefaultDebounce
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	if opts.MaxSurfaces <= 0 {
		opts.MaxSurfaces = DefaultMaxSurfaces
	}
	m := &Manager{
		catalog: cat,
		fetcher: fetcher,
		opts:    opts,
		logger:  logger,
	}
	m.surfaces = expirable.NewLRU[string, *Surface](opts.MaxSurfaces, m.onEvict, opts.IdleTTL)
	return m
}

// onEvict runs under the cache lock, so the close itself happens elsewhere.
func (m *Manager) onEvict(id string, s *Surface) {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	m.closing.Add(1)
	go func() {
		defer m.closing.Done()
		s.close()
		metrics.MountedSurfaces.Dec()
		m.logger.Info("Surface unmounted", zap.String("surface", id))
	}()
}

// Mount creates a surface for entity, restored from rawQuery.
func (m *Manager) Mount(sessionID, entity, rawQuery string) (*Surface, error) {
	cfg, err := m.catalog.Lookup(entity)
	if err != nil {
		return nil, err
	}

	s := &Surface{
		id:        uuid.NewString(),
		sessionID: sessionID,
		mountedAt: time.Now(),
		store:     store.New(cfg, m.fetcher, m.logger),
		history:   NewHistory(rawQuery),
	}
	syncOpts := []urlsync.Option{
		urlsync.WithDebounce(m.opts.Debounce),
		urlsync.WithLogger(m.logger.With(zap.String("surface", s.id))),
	}
	if m.opts.OnWrite != nil {
		syncOpts = append(syncOpts, urlsync.WithOnWrite(func(q string) { m.opts.OnWrite(s, q) }))
	}
	s.syncer = urlsync.New(s.store, s.history, syncOpts...)
	s.staging = staging.New(s.store)

	if err := s.syncer.Mount(rawQuery); err != nil {
		s.close()
		return nil, fmt.Errorf("mount %s surface: %w", entity, err)
	}

	metrics.MountedSurfaces.Inc()
	m.surfaces.Add(s.id, s)
	m.logger.Info("Surface mounted", zap.String("surface", s.id), zap.String("entity", entity))
	return s, nil
}

// Get returns a mounted surface and restarts its idle timer.
func (m *Manager) Get(id string) (*Surface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surfaces.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSurfaceNotFound, id)
	}
	m.surfaces.Add(id, s)
	// Expired between the lookup and the refresh.
	if s.released.Load() {
		m.surfaces.Remove(id)
		return nil, fmt.Errorf("%w: %s", domain.ErrSurfaceNotFound, id)
	}
	return s, nil
}

// Unmount closes a surface and cancels its in-flight fetches.
func (m *Manager) Unmount(id string) error {
	m.mu.Lock()
	s, ok := m.surfaces.Peek(id)
	if ok {
		// Claimed here so the eviction callback leaves the close to us.
		ok = s.released.CompareAndSwap(false, true)
		m.surfaces.Remove(id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSurfaceNotFound, id)
	}
	s.close()
	metrics.MountedSurfaces.Dec()
	m.logger.Info("Surface unmounted", zap.String("surface", id))
	return nil
}

// Len returns the number of mounted surfaces.
func (m *Manager) Len() int { return m.surfaces.Len() }

// Close unmounts every surface and waits for them to close.
func (m *Manager) Close() {
	m.mu.Lock()
	m.surfaces.Purge()
	m.mu.Unlock()
	m.closing.Wait()
}

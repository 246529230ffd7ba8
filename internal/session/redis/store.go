// Package redis stores sessions as Redis hashes through rueidis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/mlcatalog/mlsearch/internal/session"
)

// Compile-time check: Store implements session.Store.
var _ session.Store = (*Store)(nil)

// DefaultKeyPrefix namespaces session hashes.
const DefaultKeyPrefix = "mlsearch:session:"

// Config holds connection parameters and session lifetime.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// Store keeps one hash per session; every write refreshes the hash TTL.
type Store struct {
	client rueidis.Client
	prefix string
	ttl    time.Duration
}

// New connects to Redis.
func New(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("ttl must be positive")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return newStore(client, cfg.KeyPrefix, cfg.TTL), nil
}

func newStore(client rueidis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// Get reads one field of the session hash.
func (s *Store) Get(ctx context.Context, id, key string) (string, error) {
	cmd := s.client.B().Hget().Key(s.key(id)).Field(key).Build()
	v, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", session.ErrNotFound
		}
		return "", &session.Error{Op: session.OpGet, Err: err}
	}
	return v, nil
}

// Set writes one field and refreshes the TTL in a single round-trip.
func (s *Store) Set(ctx context.Context, id, key, value string) error {
	k := s.key(id)
	cmds := rueidis.Commands{
		s.client.B().Hset().Key(k).FieldValue().FieldValue(key, value).Build(),
		s.client.B().Expire().Key(k).Seconds(int64(s.ttl.Seconds())).Build(),
	}
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &session.Error{Op: session.OpSet, Err: err}
		}
	}
	return nil
}

// GetAll returns every field of the session hash. A missing session is empty.
func (s *Store) GetAll(ctx context.Context, id string) (map[string]string, error) {
	cmd := s.client.B().Hgetall().Key(s.key(id)).Build()
	m, err := s.client.Do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, &session.Error{Op: session.OpGetAll, Err: err}
	}
	return m, nil
}

// Clear deletes the session hash.
func (s *Store) Clear(ctx context.Context, id string) error {
	cmd := s.client.B().Del().Key(s.key(id)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &session.Error{Op: session.OpClear, Err: err}
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

func (s *Store) key(id string) string { return s.prefix + id }

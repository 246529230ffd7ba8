// Package memory keeps sessions in process, expiring idle ones.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mlcatalog/mlsearch/internal/session"
)

var _ session.Store = (*Store)(nil)

// Store is an in-process session store bounded by size and TTL.
type Store struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, map[string]string]
}

// New creates a store holding at most size sessions, each for ttl after its last write.
func New(size int, ttl time.Duration) *Store {
	return &Store{lru: expirable.NewLRU[string, map[string]string](size, nil, ttl)}
}

// Get returns one value.
func (s *Store) Get(_ context.Context, id, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.lru.Get(id)
	if !ok {
		return "", session.ErrNotFound
	}
	v, ok := values[key]
	if !ok {
		return "", session.ErrNotFound
	}
	return v, nil
}

// Set stores one value and refreshes the session TTL.
func (s *Store) Set(_ context.Context, id, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.lru.Get(id)
	if !ok {
		values = make(map[string]string)
	} else {
		values = maps.Clone(values)
	}
	values[key] = value
	s.lru.Add(id, values)
	return nil
}

// GetAll returns a copy of every value in the session.
func (s *Store) GetAll(_ context.Context, id string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.lru.Get(id)
	if !ok {
		return map[string]string{}, nil
	}
	return maps.Clone(values), nil
}

// Clear drops the session.
func (s *Store) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Remove(id)
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

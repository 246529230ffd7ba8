// Package session remembers per-visitor search context, such as the last query
// run for every entity kind.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mlcatalog/mlsearch/internal/domain"
)

// ErrNotFound is returned when a key is absent or its session expired.
var ErrNotFound = errors.New("session: key not found")

// Op names the store operation for error context.
const (
	OpGet    = "GET"
	OpSet    = "SET"
	OpGetAll = "GETALL"
	OpClear  = "CLEAR"
)

// Error wraps a backend failure with the operation that hit it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "session " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Store persists string values grouped by session id.
type Store interface {
	Get(ctx context.Context, id, key string) (string, error)
	Set(ctx context.Context, id, key, value string) error
	GetAll(ctx context.Context, id string) (map[string]string, error)
	Clear(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// NewID returns a fresh session id.
func NewID() string { return uuid.NewString() }

// ValidID reports whether id looks like one NewID produced.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

const lastQueryPrefix = "last:"

// Session is one visitor's view of a Store.
type Session struct {
	id    string
	store Store
}

// New binds id to store.
func New(id string, store Store) *Session {
	return &Session{id: id, store: store}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// RecordQuery remembers query as the last search run for entity.
func (s *Session) RecordQuery(ctx context.Context, entity domain.EntityTag, query string) error {
	if err := s.store.Set(ctx, s.id, lastQueryPrefix+string(entity), query); err != nil {
		return fmt.Errorf("record %s query: %w", entity, err)
	}
	return nil
}

// LastQuery returns the last search run for entity.
func (s *Session) LastQuery(ctx context.Context, entity domain.EntityTag) (string, error) {
	q, err := s.store.Get(ctx, s.id, lastQueryPrefix+string(entity))
	if err != nil {
		return "", fmt.Errorf("last %s query: %w", entity, err)
	}
	return q, nil
}

// Recent returns the last search per entity kind. Unknown keys are skipped.
func (s *Session) Recent(ctx context.Context) (map[domain.EntityTag]string, error) {
	all, err := s.store.GetAll(ctx, s.id)
	if err != nil {
		return nil, fmt.Errorf("recent queries: %w", err)
	}
	out := make(map[domain.EntityTag]string, len(all))
	for key, q := range all {
		name, ok := strings.CutPrefix(key, lastQueryPrefix)
		if !ok {
			continue
		}
		entity, err := domain.ParseEntity(name)
		if err != nil {
			continue
		}
		out[entity] = q
	}
	return out, nil
}

// Clear forgets everything stored for the session.
func (s *Session) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx, s.id); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

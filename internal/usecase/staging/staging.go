// Package staging keeps candidate facet selections apart from the applied filters
// until they are committed in one store transition.
package staging

import (
	"fmt"
	"sync"

	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/domain/search/filter"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/usecase/store"
)

// Buffer holds one candidate selection per open facet.
type Buffer struct {
	store *store.Store

	mu     sync.Mutex
	staged map[string]filter.Value
}

// New creates an empty buffer over st.
func New(st *store.Store) *Buffer {
	return &Buffer{store: st, staged: make(map[string]filter.Value)}
}

// Open starts staging field, seeded from its applied filter. Reopening reseeds.
func (b *Buffer) Open(field string) error {
	cfg := b.store.Config()
	if _, ok := cfg.Facet(field); !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownFacet, field)
	}
	applied, _ := b.store.State().Filter(field)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.staged[field] = applied
	return nil
}

// IsOpen reports whether field is being staged.
func (b *Buffer) IsOpen(field string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.staged[field]
	return ok
}

// OpenFields returns the fields currently staged, unordered.
func (b *Buffer) OpenFields() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.staged))
	for f := range b.staged {
		out = append(out, f)
	}
	return out
}

// Staged returns the candidate for field. A zero value means the facet would be cleared.
func (b *Buffer) Staged(field string) (filter.Value, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.staged[field]
	if !ok {
		return filter.Value{}, fmt.Errorf("%w: %q", domain.ErrFacetNotStaged, field)
	}
	return v, nil
}

// Toggle adds value to the candidate set, or removes it when already present.
func (b *Buffer) Toggle(field, value string) error {
	if err := b.checkKind(field, searchconfig.FacetValue); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.staged[field]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrFacetNotStaged, field)
	}

	var (
		next filter.Value
		err  error
	)
	switch {
	case cur.IsZero():
		next, err = filter.NewAnyOf(value)
	case cur.Contains(value):
		next, _ = cur.Without(value)
	default:
		next, err = cur.With(value)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidState, err)
	}
	b.staged[field] = next
	return nil
}

// SetRange stages bounds on a range facet. Two nil bounds stage a clear.
func (b *Buffer) SetRange(field string, minVal, maxVal *float64) error {
	if err := b.checkKind(field, searchconfig.FacetRange); err != nil {
		return err
	}
	var next filter.Value
	if minVal != nil || maxVal != nil {
		v, err := filter.NewRange(minVal, maxVal)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidState, err)
		}
		next = v
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.staged[field]; !ok {
		return fmt.Errorf("%w: %q", domain.ErrFacetNotStaged, field)
	}
	b.staged[field] = next
	return nil
}

// Apply commits the candidate for field as one store transition and closes it.
// An unchanged candidate closes without a transition.
func (b *Buffer) Apply(field string) error {
	b.mu.Lock()
	v, ok := b.staged[field]
	if ok {
		delete(b.staged, field)
	}
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrFacetNotStaged, field)
	}

	applied, has := b.store.State().Filter(field)
	if (v.IsZero() && !has) || (has && applied.Equal(v)) {
		return nil
	}
	if v.IsZero() {
		return b.store.ReplaceFilter(field, nil)
	}
	return b.store.ReplaceFilter(field, &v)
}

// Close discards the candidate for field.
func (b *Buffer) Close(field string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.staged, field)
}

func (b *Buffer) checkKind(field string, kind searchconfig.FacetKind) error {
	cfg := b.store.Config()
	f, ok := cfg.Facet(field)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownFacet, field)
	}
	if f.Kind != kind {
		return fmt.Errorf("%w: %q is a %s facet", domain.ErrInvalidState, field, f.Kind)
	}
	return nil
}

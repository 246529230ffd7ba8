package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mlcatalog/mlsearch/internal/index"
)

// mockSearcher counts calls and optionally blocks until released.
type mockSearcher struct {
	calls   atomic.Int32
	err     error
	release chan struct{}
	started sync.WaitGroup
	once    sync.Once
}

func (m *mockSearcher) Execute(ctx context.Context, q *index.Query) (*index.RawResponse, error) {
	m.calls.Add(1)
	if m.release != nil {
		m.once.Do(m.started.Done)
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &index.RawResponse{Hits: &index.Hits{
		Total: &index.Total{Value: q.From + 1, Relation: index.RelationEq},
	}}, nil
}

func newTestCache(t *testing.T, inner index.Searcher, ttl time.Duration) (*CachedSearcher, *prometheus.CounterVec) {
	t.Helper()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	return New(inner, 16, ttl, counter, nil), counter
}

func query(from int) *index.Query {
	q := &index.Query{Index: "data", From: from, Size: 20}
	q.Query.Bool.Must = []index.Clause{{MatchAll: &index.MatchAll{}}}
	return q
}

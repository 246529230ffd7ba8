package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mlcatalog/mlsearch/internal/index"
)

// CachedSearcher caches successful backend responses in memory.
// Identical queries in flight at the same time share one backend call.
// Cached responses are shared between callers and must not be mutated.
type CachedSearcher struct {
	inner      index.Searcher
	lru        *expirable.LRU[string, *index.RawResponse]
	group      singleflight.Group
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator holding at most size responses for ttl.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner index.Searcher,
	size int,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSearcher{
		inner:      inner,
		lru:        expirable.NewLRU[string, *index.RawResponse](size, nil, ttl),
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Execute returns a cached response or calls the inner searcher.
// Errors are never cached.
func (c *CachedSearcher) Execute(ctx context.Context, q *index.Query) (*index.RawResponse, error) {
	key, err := cacheKey(q)
	if err != nil {
		c.logger.Warn("Failed to build cache key, bypassing cache", zap.Error(err))
		return c.inner.Execute(ctx, q) //nolint:wrapcheck // transparent decorator
	}

	if raw, ok := c.lru.Get(key); ok {
		c.incCache("hit")
		return raw, nil
	}
	c.incCache("miss")

	// The shared call outlives any single caller; the connector's request
	// timeout still bounds it.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		raw, err := c.inner.Execute(shared, q)
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, raw)
		return raw, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err //nolint:wrapcheck // classified backend error passes through unchanged
		}
		return res.Val.(*index.RawResponse), nil
	case <-ctx.Done():
		return nil, ctx.Err() //nolint:wrapcheck // caller's own cancellation
	}
}

// Len returns the number of cached responses.
func (c *CachedSearcher) Len() int { return c.lru.Len() }

// Purge drops every cached response.
func (c *CachedSearcher) Purge() { c.lru.Purge() }

func (c *CachedSearcher) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func cacheKey(q *index.Query) (string, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("marshal query: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(q.Index))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}

package search

import (
	"context"
	"testing"

	"github.com/mlcatalog/mlsearch/internal/catalog"
	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/index"
)

// mockSearcher implements the consumer interface for tests.
type mockSearcher struct {
	executeFn func(ctx context.Context, q *index.Query) (*index.RawResponse, error)
}

func (m *mockSearcher) Execute(ctx context.Context, q *index.Query) (*index.RawResponse, error) {
	if m.executeFn != nil {
		return m.executeFn(ctx, q)
	}
	return decodeFixture(nil, `{"hits":{"total":0,"hits":[]}}`), nil
}

func configFor(t *testing.T, e domain.EntityTag) searchconfig.Config {
	t.Helper()
	c, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	cfg, err := c.Get(e)
	if err != nil {
		t.Fatalf("Get(%s): %v", e, err)
	}
	return cfg
}

func decodeFixture(t *testing.T, body string) *index.RawResponse {
	raw, err := index.DecodeResponse([]byte(body))
	if err != nil {
		if t != nil {
			t.Fatalf("fixture: %v", err)
		}
		panic(err)
	}
	return raw
}

package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mlcatalog/mlsearch/internal/domain/search/result"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/index"
)

// searcher is the consumer interface for backend execution (ISP).
type searcher interface {
	Execute(ctx context.Context, q *index.Query) (*index.RawResponse, error)
}

// Repo implements usecase/search.Repository.
type Repo struct {
	searcher   searcher
	normalizer *Normalizer
}

// New creates a search repository.
func New(s searcher, logger *zap.Logger) *Repo {
	return &Repo{searcher: s, normalizer: NewNormalizer(logger)}
}

// Search executes a compiled query and normalizes the answer.
func (r *Repo) Search(ctx context.Context, q *index.Query, cfg searchconfig.Config) (result.Page, error) {
	raw, err := r.searcher.Execute(ctx, q)
	if err != nil {
		return result.Page{}, fmt.Errorf("search %s: %w", cfg.Entity, err)
	}
	page, err := r.normalizer.Normalize(raw, cfg)
	if err != nil {
		return result.Page{}, fmt.Errorf("normalize %s: %w", cfg.Entity, err)
	}
	return page, nil
}

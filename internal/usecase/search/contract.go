package search

import (
	"context"

	"github.com/mlcatalog/mlsearch/internal/domain/search/result"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/index"
)

// Repository executes compiled queries and normalizes the answer.
type Repository interface {
	Search(ctx context.Context, q *index.Query, cfg searchconfig.Config) (result.Page, error)
}

package search

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/domain/search/result"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
	"github.com/mlcatalog/mlsearch/internal/domain/search/state"
	"github.com/mlcatalog/mlsearch/internal/index"
	"github.com/mlcatalog/mlsearch/internal/metrics"
)

// Outcome is the answer to a one-shot search.
type Outcome struct {
	// State is the state actually searched; its page may be clamped.
	State state.State
	Page  result.Page
	// Capped is set when the requested page was beyond the result window.
	Capped bool
}

// Service compiles states into queries and runs them.
type Service struct {
	compiler *index.Compiler
	repo     Repository
	logger   *zap.Logger
}

// New creates a search service.
func New(compiler *index.Compiler, repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{compiler: compiler, repo: repo, logger: logger}
}

// Compile returns the backend query for st.
func (s *Service) Compile(cfg searchconfig.Config, st state.State) (*index.Query, error) {
	q, err := s.compiler.Compile(st, cfg)
	if err != nil {
		return nil, fmt.Errorf("compile %s query: %w", cfg.Entity, err)
	}
	return q, nil
}

// LastPage returns the last page reachable inside the backend window.
func (s *Service) LastPage(pageSize int) int { return s.compiler.LastPage(pageSize) }

// Fetch runs st exactly as given.
func (s *Service) Fetch(ctx context.Context, cfg searchconfig.Config, st state.State) (result.Page, error) {
	q, err := s.Compile(cfg, st)
	if err != nil {
		if !errors.Is(err, domain.ErrPageOutOfRange) {
			s.logger.Error("Query compilation failed", zap.String("entity", string(cfg.Entity)), zap.Error(err))
		}
		return result.Page{}, err
	}
	page, err := s.repo.Search(ctx, q, cfg)
	if err != nil {
		return result.Page{}, fmt.Errorf("fetch: %w", err)
	}
	return page, nil
}

// Search runs st, clamping a page beyond the window to the last reachable one.
func (s *Service) Search(ctx context.Context, cfg searchconfig.Config, st state.State) (Outcome, error) {
	capped := false
	if last := s.LastPage(st.PageSize()); st.Page() > last {
		st = st.WithPage(last)
		capped = true
		metrics.CappedPagesTotal.WithLabelValues(string(cfg.Entity)).Inc()
	}
	page, err := s.Fetch(ctx, cfg, st)
	if err != nil {
		return Outcome{State: st, Capped: capped}, err
	}
	return Outcome{State: st, Page: page, Capped: capped}, nil
}

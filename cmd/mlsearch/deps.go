package main

import (
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/mlcatalog/mlsearch/internal/catalog"
	"github.com/mlcatalog/mlsearch/internal/config"
	"github.com/mlcatalog/mlsearch/internal/index"
	"github.com/mlcatalog/mlsearch/internal/index/elastic"
	logpkg "github.com/mlcatalog/mlsearch/internal/logger"
	"github.com/mlcatalog/mlsearch/internal/metrics"
	"github.com/mlcatalog/mlsearch/internal/repository/cache"
	searchrepo "github.com/mlcatalog/mlsearch/internal/repository/search"
	"github.com/mlcatalog/mlsearch/internal/session"
	"github.com/mlcatalog/mlsearch/internal/session/memory"
	sessionredis "github.com/mlcatalog/mlsearch/internal/session/redis"
	searchuc "github.com/mlcatalog/mlsearch/internal/usecase/search"
)

// deps is the composition root shared by every command.
type deps struct {
	env       string
	cfg       config.Config
	logger    *zap.Logger
	catalog   *catalog.Catalog
	connector *elastic.Connector
	search    *searchuc.Service
}

func newDeps(c *cli.Command) (*deps, error) {
	env := c.String("env")
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.Logging.Level
	if override := c.String("log-level"); override != "" {
		level = override
	}
	logger, err := logpkg.NewLogger(env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	cat, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	conn, err := elastic.New(elastic.Config{
		Addresses:    cfg.Index.Addresses,
		Username:     cfg.Index.Username,
		Password:     cfg.Index.Password,
		IndexPrefix:  cfg.Index.IndexPrefix,
		Timeout:      cfg.Index.RequestTimeoutDuration(),
		RetryBackoff: cfg.Index.RetryBackoffDuration(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create search backend connector: %w", err)
	}

	// Connector -> Cached -> Repo
	var searcher index.Searcher = conn
	if cfg.Cache.Size > 0 {
		searcher = cache.New(conn, cfg.Cache.Size, cfg.Cache.TTL(), metrics.ResponseCacheTotal, logger)
	}
	repo := searchrepo.New(searcher, logger)

	return &deps{
		env:       env,
		cfg:       cfg,
		logger:    logger,
		catalog:   cat,
		connector: conn,
		search:    searchuc.New(index.NewCompiler(cfg.Index.MaxResultWindow), repo, logger),
	}, nil
}

// sessionStore builds the configured session store. The returned func releases it.
func (d *deps) sessionStore() (session.Store, func(), error) {
	switch d.cfg.Session.Driver {
	case config.SessionRedis:
		s, err := sessionredis.New(sessionredis.Config{
			Addrs:     d.cfg.Session.Addrs,
			Password:  d.cfg.Session.Password,
			KeyPrefix: d.cfg.Session.KeyPrefix,
			TTL:       d.cfg.Session.TTL(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create redis session store: %w", err)
		}
		return s, s.Close, nil
	case config.SessionMemory:
		return memory.New(d.cfg.Session.MaxSessions, d.cfg.Session.TTL()), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session driver %q", d.cfg.Session.Driver)
	}
}

// Package elastic executes compiled queries against an Elasticsearch-compatible backend.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/index"
	"github.com/mlcatalog/mlsearch/internal/metrics"
)

const (
	defaultTimeout = 5 * time.Second
	defaultBackoff = 200 * time.Millisecond
	maxAttempts    = 2
	maxReasonBytes = 512
)

// Config holds connector settings.
type Config struct {
	Addresses    []string
	Username     string
	Password     string
	IndexPrefix  string
	Timeout      time.Duration
	RetryBackoff time.Duration
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Connector executes queries with a per-request timeout and classifies failures.
// Transient failures are retried once; nothing else is mutated.
type Connector struct {
	client  *elasticsearch.Client
	prefix  string
	timeout time.Duration
	backoff time.Duration
	logger  *zap.Logger
}

// New creates a connector. The client's own retry loop is disabled.
func New(cfg Config, logger *zap.Logger) (*Connector, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("elastic: at least one address is required")
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		Transport:    cfg.Transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("elastic: create client: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{
		client:  client,
		prefix:  cfg.IndexPrefix,
		timeout: cfg.Timeout,
		backoff: cfg.RetryBackoff,
		logger:  logger,
	}, nil
}

// Execute runs q and returns the decoded raw response or a *domain.SearchError.
func (c *Connector) Execute(ctx context.Context, q *index.Query) (*index.RawResponse, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal query: %w", domain.ErrCompile, err)
	}
	target := c.prefix + q.Index

	start := time.Now()
	defer func() {
		metrics.IndexRequestDuration.WithLabelValues(target).Observe(time.Since(start).Seconds())
	}()

	for attempt := 1; ; attempt++ {
		raw, err := c.search(ctx, target, body)
		if err == nil {
			metrics.IndexRequestsTotal.WithLabelValues(target, "ok").Inc()
			return raw, nil
		}

		var se *domain.SearchError
		retry := errors.As(err, &se) && se.Retryable() && attempt < maxAttempts && ctx.Err() == nil
		if !retry {
			metrics.IndexRequestsTotal.WithLabelValues(target, string(domain.KindOf(err))).Inc()
			return nil, err
		}

		metrics.IndexRetriesTotal.WithLabelValues(target, string(se.Kind)).Inc()
		c.logger.Warn("search request failed, retrying",
			zap.String("index", target),
			zap.String("kind", string(se.Kind)),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", c.backoff),
			zap.Error(err),
		)
		if err := sleep(ctx, c.backoff); err != nil {
			return nil, domain.NewSearchError(domain.KindNetwork, 0, err)
		}
	}
}

func (c *Connector) search(ctx context.Context, target string, body []byte) (*index.RawResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.client.Search(
		c.client.Search.WithContext(reqCtx),
		c.client.Search.WithIndex(target),
		c.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, classifyTransport(ctx, reqCtx, err)
	}
	defer res.Body.Close() //nolint:errcheck // read-only body

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, classifyTransport(ctx, reqCtx, err)
	}

	switch {
	case res.StatusCode >= http.StatusInternalServerError:
		return nil, domain.NewSearchError(domain.KindServer, res.StatusCode, errors.New(reason(data)))
	case res.StatusCode >= http.StatusBadRequest:
		return nil, domain.NewSearchError(domain.KindClient, res.StatusCode, errors.New(reason(data)))
	}

	raw, err := index.DecodeResponse(data)
	if err != nil {
		return nil, domain.NewSearchError(domain.KindDecode, res.StatusCode, err)
	}
	return raw, nil
}

// Ping checks that the backend answers.
func (c *Connector) Ping(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.client.Ping(c.client.Ping.WithContext(reqCtx))
	if err != nil {
		return classifyTransport(ctx, reqCtx, err)
	}
	defer res.Body.Close() //nolint:errcheck // read-only body
	if res.IsError() {
		return domain.NewSearchError(domain.KindServer, res.StatusCode, errors.New(res.Status()))
	}
	return nil
}

// classifyTransport separates request timeouts from other failures to get a response.
// A cancelled parent context is reported as a network failure and is never retried.
func classifyTransport(parent, reqCtx context.Context, err error) error {
	if parent.Err() != nil {
		return domain.NewSearchError(domain.KindNetwork, 0, errors.Join(parent.Err(), err))
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return domain.NewSearchError(domain.KindTimeout, 0, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.NewSearchError(domain.KindTimeout, 0, err)
	}
	return domain.NewSearchError(domain.KindNetwork, 0, err)
}

// reason extracts the backend's error description, falling back to a truncated body.
func reason(body []byte) string {
	var e struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Type != "" {
		return e.Error.Type + ": " + e.Error.Reason
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxReasonBytes {
		s = s[:maxReasonBytes]
	}
	return s
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

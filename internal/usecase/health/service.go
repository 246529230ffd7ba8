package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded means searches work but sessions are not remembered.
	Degraded Status = "degraded"
	// Unhealthy means the search index is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names in a report.
const (
	ComponentIndex   = "index"
	ComponentSession = "session"
)

// DefaultTimeout bounds each check.
const DefaultTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	index   Pinger
	session Pinger
	timeout time.Duration
}

// New creates a Service. session can be nil.
func New(index, session Pinger) *Service {
	return &Service{index: index, session: session, timeout: DefaultTimeout}
}

// Check pings every component concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, 2)
	)
	run := func(name string, p Pinger) func() error {
		return func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			res := CheckOK
			if err := p.Ping(cctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
			return nil
		}
	}

	var g errgroup.Group
	g.Go(run(ComponentIndex, s.index))
	if s.session != nil {
		g.Go(run(ComponentSession, s.session))
	}
	_ = g.Wait()

	status := Healthy
	switch {
	case checks[ComponentIndex] == CheckError:
		status = Unhealthy
	case checks[ComponentSession] == CheckError:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

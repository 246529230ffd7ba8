package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockPinger struct {
	err   error
	block bool
}

func (m *mockPinger) Ping(ctx context.Context) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.err
}

func TestCheck(t *testing.T) {
	down := errors.New("conn refused")
	tests := []struct {
		name        string
		index       *mockPinger
		session     *mockPinger
		wantStatus  Status
		wantIndex   CheckResult
		wantSession CheckResult
	}{
		{"all healthy", &mockPinger{}, &mockPinger{}, Healthy, CheckOK, CheckOK},
		{"session down", &mockPinger{}, &mockPinger{err: down}, Degraded, CheckOK, CheckError},
		{"index down", &mockPinger{err: down}, &mockPinger{}, Unhealthy, CheckError, CheckOK},
		{"both down", &mockPinger{err: down}, &mockPinger{err: down}, Unhealthy, CheckError, CheckError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.index, tt.session).Check(context.Background())
			if r.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", r.Status, tt.wantStatus)
			}
			if r.Checks[ComponentIndex] != tt.wantIndex {
				t.Errorf("index = %q, want %q", r.Checks[ComponentIndex], tt.wantIndex)
			}
			if r.Checks[ComponentSession] != tt.wantSession {
				t.Errorf("session = %q, want %q", r.Checks[ComponentSession], tt.wantSession)
			}
		})
	}
}

func TestCheck_NoSession(t *testing.T) {
	r := New(&mockPinger{}, nil).Check(context.Background())
	if r.Status != Healthy {
		t.Errorf("status = %q", r.Status)
	}
	if _, ok := r.Checks[ComponentSession]; ok {
		t.Error("session check should be absent when session is nil")
	}
}

func TestCheck_Timeout(t *testing.T) {
	svc := New(&mockPinger{block: true}, &mockPinger{})
	svc.timeout = 20 * time.Millisecond

	start := time.Now()
	r := svc.Check(context.Background())
	if time.Since(start) > time.Second {
		t.Error("check was not bounded by the timeout")
	}
	if r.Status != Unhealthy {
		t.Errorf("status = %q", r.Status)
	}
}

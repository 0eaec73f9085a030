package session

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/translive/internal/core/domain"
	"github.com/vietddude/translive/internal/infra/retry"
)

// === Mock Pinger ===

type mockPinger struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (p *mockPinger) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.errs) == 0 {
		return nil
	}
	err := p.errs[0]
	p.errs = p.errs[1:]
	return err
}

func (p *mockPinger) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// === Mock Reconnector ===

type mockReconnector struct {
	mu       sync.Mutex
	failures int // fail this many calls, then succeed
	err      error
	calls    int
}

func (r *mockReconnector) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failures {
		if r.err != nil {
			return r.err
		}
		return &domain.NetworkError{Op: "reconnect", Err: context.DeadlineExceeded}
	}
	return nil
}

func (r *mockReconnector) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// -----

func fastRetryConfig(maxAttempts int) retry.Config {
	return retry.Config{
		MaxAttempts:     maxAttempts,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffMultiple: 2,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{t}, nil))
}

func TestRecoveryReconnectsAfterTransientFailure(t *testing.T) {
	pinger := &mockPinger{errs: []error{
		&domain.NetworkError{Op: "ping", Err: context.DeadlineExceeded},
	}}
	reconnector := &mockReconnector{failures: 1}

	var attemptMu sync.Mutex
	var attempts []int
	recovery := NewRecovery(
		RecoveryConfig{ProbeInterval: 5 * time.Millisecond, Retry: fastRetryConfig(5)},
		pinger, reconnector,
		func(attempt int) {
			attemptMu.Lock()
			attempts = append(attempts, attempt)
			attemptMu.Unlock()
		},
		testLogger(t),
	)
	recovery.Start()
	defer recovery.Stop()

	waitFor(t, "reconnect", func() bool {
		return reconnector.callCount() == 2 && recovery.Status().IsConnected
	})

	status := recovery.Status()
	if status.IsRetrying {
		t.Fatal("still retrying after successful reconnect")
	}
	if status.RetryAttempt != 0 {
		t.Fatalf("attempt = %d, want 0 after recovery", status.RetryAttempt)
	}

	attemptMu.Lock()
	defer attemptMu.Unlock()
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("observed attempts = %v, want [1 2]", attempts)
	}
}

func TestRecoveryStopsAtAttemptCap(t *testing.T) {
	pinger := &mockPinger{errs: []error{
		&domain.NetworkError{Op: "ping", Err: context.DeadlineExceeded},
	}}
	reconnector := &mockReconnector{failures: 100} // never succeeds

	recovery := NewRecovery(
		RecoveryConfig{ProbeInterval: time.Hour, Retry: fastRetryConfig(3)},
		pinger, reconnector, nil, testLogger(t),
	)
	recovery.Start()
	defer recovery.Stop()

	recovery.NotifyOnline() // force an immediate probe

	waitFor(t, "retry exhaustion", func() bool {
		return reconnector.callCount() == 3 && !recovery.IsCurrentlyRetrying()
	})

	// No further attempts are scheduled past the cap
	time.Sleep(20 * time.Millisecond)
	if got := reconnector.callCount(); got != 3 {
		t.Fatalf("reconnect calls = %d, want exactly 3", got)
	}
	status := recovery.Status()
	if status.IsConnected {
		t.Fatal("reported connected after exhaustion")
	}
	if status.LastError == "" {
		t.Fatal("expected last error to be surfaced")
	}
}

func TestRecoveryNeverRetriesAuthFailure(t *testing.T) {
	pinger := &mockPinger{errs: []error{
		&domain.AuthError{Op: "ping", Err: context.DeadlineExceeded},
	}}
	reconnector := &mockReconnector{}

	recovery := NewRecovery(
		RecoveryConfig{ProbeInterval: time.Hour, Retry: fastRetryConfig(5)},
		pinger, reconnector, nil, testLogger(t),
	)
	recovery.Start()
	defer recovery.Stop()

	recovery.NotifyOnline()

	waitFor(t, "auth failure surfaced", func() bool {
		return !recovery.Status().IsConnected
	})

	time.Sleep(20 * time.Millisecond)
	if got := reconnector.callCount(); got != 0 {
		t.Fatalf("reconnect calls = %d, want 0 for auth failure", got)
	}
	if recovery.IsCurrentlyRetrying() {
		t.Fatal("retrying an auth failure")
	}
}

func TestRecoveryStopsRetryCycleOnAuthError(t *testing.T) {
	pinger := &mockPinger{errs: []error{
		&domain.NetworkError{Op: "ping", Err: context.DeadlineExceeded},
	}}
	reconnector := &mockReconnector{
		failures: 100,
		err:      &domain.AuthError{Op: "reconnect", Err: context.DeadlineExceeded},
	}

	recovery := NewRecovery(
		RecoveryConfig{ProbeInterval: time.Hour, Retry: fastRetryConfig(5)},
		pinger, reconnector, nil, testLogger(t),
	)
	recovery.Start()
	defer recovery.Stop()

	recovery.NotifyOnline()

	waitFor(t, "cycle halt", func() bool {
		return reconnector.callCount() == 1 && !recovery.IsCurrentlyRetrying()
	})

	time.Sleep(20 * time.Millisecond)
	if got := reconnector.callCount(); got != 1 {
		t.Fatalf("reconnect calls = %d, want 1 before auth halt", got)
	}
}

func TestRecoveryNotifyOfflineSkipsProbeWait(t *testing.T) {
	pinger := &mockPinger{} // would report healthy if asked
	reconnector := &mockReconnector{failures: 0}

	recovery := NewRecovery(
		RecoveryConfig{ProbeInterval: time.Hour, Retry: fastRetryConfig(3)},
		pinger, reconnector, nil, testLogger(t),
	)
	recovery.Start()
	defer recovery.Stop()

	recovery.NotifyOffline()

	waitFor(t, "offline-triggered reconnect", func() bool {
		return reconnector.callCount() == 1 && recovery.Status().IsConnected
	})
}

func TestRecoveryStopIsIdempotent(t *testing.T) {
	recovery := NewRecovery(
		RecoveryConfig{ProbeInterval: time.Millisecond, Retry: fastRetryConfig(3)},
		&mockPinger{}, &mockReconnector{}, nil, testLogger(t),
	)
	recovery.Start()

	recovery.Stop()
	recovery.Stop() // must not panic or hang
}

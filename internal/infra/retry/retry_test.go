package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/translive/internal/core/domain"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialDelay:    1 * time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffMultiple: 2.0,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &domain.NetworkError{Op: "send", Err: errors.New("connection reset")}
		}
		return nil
	}, nil)

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		calls++
		return &domain.NetworkError{Op: "send", Err: errors.New("timeout")}
	}, nil)

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_AuthErrorStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		calls++
		return &domain.AuthError{Op: "subscribe", Err: errors.New("token expired")}
	}, nil)

	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected auth error passthrough, got %v", err)
	}
	if calls != 1 {
		t.Errorf("auth error must not be retried, got %d calls", calls)
	}
}

func TestDo_ObserverSeesEachAttempt(t *testing.T) {
	var attempts []int
	_ = Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		return &domain.NetworkError{Op: "probe", Err: errors.New("eof")}
	}, func(attempt int, delay time.Duration) {
		attempts = append(attempts, attempt)
	})

	// 3 attempts means 2 waits between them.
	if len(attempts) != 2 {
		t.Fatalf("expected 2 observed waits, got %d", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("observer attempts out of order: %v", attempts)
	}
}

func TestDo_ContextCancelAbortsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig()
	cfg.InitialDelay = 10 * time.Second // force a long wait

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func(ctx context.Context) error {
			return &domain.NetworkError{Op: "send", Err: errors.New("down")}
		}, nil)
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not honor cancellation")
	}
}

func TestBackoff_CappedAtMaxDelay(t *testing.T) {
	cfg := Config{
		InitialDelay:    1 * time.Second,
		MaxDelay:        10 * time.Second,
		BackoffMultiple: 2.0,
	}

	if got := Backoff(0, cfg); got != 1*time.Second {
		t.Errorf("attempt 0: got %v", got)
	}
	if got := Backoff(2, cfg); got != 4*time.Second {
		t.Errorf("attempt 2: got %v", got)
	}
	if got := Backoff(10, cfg); got != 10*time.Second {
		t.Errorf("attempt 10 should cap at max delay, got %v", got)
	}
}

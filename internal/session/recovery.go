package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/translive/internal/core/domain"
	"github.com/vietddude/translive/internal/infra/retry"
	"github.com/vietddude/translive/internal/metrics"
)

// Pinger probes connectivity to the realtime backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Reconnector re-establishes a dropped connection.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// RecoveryConfig controls connection probing and reconnect backoff.
type RecoveryConfig struct {
	ProbeInterval time.Duration `yaml:"probe_interval"`
	Retry         retry.Config  `yaml:"retry"`
}

// DefaultProbeInterval is applied when no probe interval is configured.
const DefaultProbeInterval = 30 * time.Second

var errOfflineSignal = errors.New("offline signal received")

type kickKind int

const (
	kickProbe kickKind = iota
	kickOffline
)

// Recovery watches connection health and drives reconnect attempts with
// exponential backoff. Auth failures are surfaced, never retried. A single
// goroutine owns all probing and retrying, so attempts never overlap.
type Recovery struct {
	cfg         RecoveryConfig
	pinger      Pinger
	reconnector Reconnector
	onAttempt   func(attempt int)
	log         *slog.Logger

	mu        sync.Mutex
	connected bool
	retrying  bool
	attempt   int
	lastErr   error

	kick     chan kickKind
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	started  bool
}

// NewRecovery creates a stopped recovery loop. onAttempt, when non-nil, is
// called before each reconnect attempt with the 1-based attempt number.
func NewRecovery(
	cfg RecoveryConfig,
	pinger Pinger,
	reconnector Reconnector,
	onAttempt func(attempt int),
	log *slog.Logger,
) *Recovery {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultConfig
	}
	if log == nil {
		log = slog.Default()
	}
	return &Recovery{
		cfg:         cfg,
		pinger:      pinger,
		reconnector: reconnector,
		onAttempt:   onAttempt,
		log:         log,
		connected:   true,
		kick:        make(chan kickKind, 1),
		done:        make(chan struct{}),
	}
}

// Start launches the probe loop. Calling Start twice is a no-op.
func (r *Recovery) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.mu.Unlock()

	go r.run(ctx)
}

// Stop halts probing and any in-flight backoff wait. Idempotent.
func (r *Recovery) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		cancel := r.cancel
		started := r.started
		r.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if started {
			<-r.done
		}
	})
}

// NotifyOffline signals an external loss-of-connectivity event. The reconnect
// cycle begins immediately instead of waiting for the next probe.
func (r *Recovery) NotifyOffline() {
	select {
	case r.kick <- kickOffline:
	default:
	}
}

// NotifyOnline signals that connectivity may be back. A probe runs promptly
// to confirm.
func (r *Recovery) NotifyOnline() {
	select {
	case r.kick <- kickProbe:
	default:
	}
}

// IsCurrentlyRetrying reports whether a reconnect cycle is in progress.
func (r *Recovery) IsCurrentlyRetrying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retrying
}

// RetryAttempt returns the current reconnect attempt number, zero when not
// retrying.
func (r *Recovery) RetryAttempt() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt
}

// Status returns a snapshot of the connection health.
func (r *Recovery) Status() domain.ConnectionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := domain.ConnectionStatus{
		IsConnected:  r.connected,
		IsRetrying:   r.retrying,
		RetryAttempt: r.attempt,
	}
	if r.lastErr != nil {
		status.LastError = r.lastErr.Error()
	}
	return status
}

func (r *Recovery) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.probe(ctx)
		case k := <-r.kick:
			if k == kickOffline {
				r.handleFailure(ctx, &domain.NetworkError{Op: "connection", Err: errOfflineSignal})
			} else {
				r.probe(ctx)
			}
		}
	}
}

func (r *Recovery) probe(ctx context.Context) {
	err := r.pinger.Ping(ctx)
	if err == nil {
		r.markConnected()
		return
	}
	r.handleFailure(ctx, err)
}

func (r *Recovery) handleFailure(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}

	if domain.Classify(err) == domain.KindAuth {
		// Retrying cannot fix a dead credential
		r.markFailed(err)
		r.log.Warn("Connection down with auth failure, not retrying", "error", err)
		return
	}

	r.log.Warn("Connection lost, starting reconnect cycle", "error", err)
	r.recover(ctx, err)
}

// recover runs the full backoff cycle inline. Exactly cfg.Retry.MaxAttempts
// reconnect attempts are made unless one succeeds, hits an auth failure, or
// the loop is stopped.
func (r *Recovery) recover(ctx context.Context, cause error) {
	r.mu.Lock()
	r.connected = false
	r.retrying = true
	r.attempt = 0
	r.lastErr = cause
	r.mu.Unlock()

	for attempt := 1; attempt <= r.cfg.Retry.MaxAttempts; attempt++ {
		delay := retry.Backoff(attempt-1, r.cfg.Retry)

		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.retrying = false
			r.mu.Unlock()
			return
		case <-time.After(delay):
		}

		r.mu.Lock()
		r.attempt = attempt
		r.mu.Unlock()

		metrics.ReconnectAttempts.Inc()
		if r.onAttempt != nil {
			r.onAttempt(attempt)
		}

		err := r.reconnector.Reconnect(ctx)
		if err == nil {
			r.markConnected()
			r.log.Info("Connection re-established", "attempts", attempt)
			return
		}

		if domain.Classify(err) == domain.KindAuth {
			r.markFailed(err)
			r.log.Warn("Reconnect hit auth failure, stopping", "attempt", attempt, "error", err)
			return
		}

		r.mu.Lock()
		r.lastErr = err
		r.mu.Unlock()
		r.log.Warn("Reconnect attempt failed",
			"attempt", attempt, "max", r.cfg.Retry.MaxAttempts, "error", err)
	}

	r.mu.Lock()
	r.retrying = false
	r.mu.Unlock()
	r.log.Error("Reconnect attempts exhausted", "attempts", r.cfg.Retry.MaxAttempts)
}

func (r *Recovery) markConnected() {
	r.mu.Lock()
	r.connected = true
	r.retrying = false
	r.attempt = 0
	r.lastErr = nil
	r.mu.Unlock()
}

func (r *Recovery) markFailed(err error) {
	r.mu.Lock()
	r.connected = false
	r.retrying = false
	r.lastErr = err
	r.mu.Unlock()
}

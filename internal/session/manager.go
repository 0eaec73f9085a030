// Package session owns one participant's session membership: its lifecycle,
// its realtime subscription, and recovery of dropped connections.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/translive/internal/core/domain"
	"github.com/vietddude/translive/internal/infra/realtime"
	"github.com/vietddude/translive/internal/infra/storage"
	"github.com/vietddude/translive/internal/metrics"
)

// Observer is invoked on every session state change, in registration order.
// Observers receive a snapshot and must not call back into the Manager.
type Observer func(state domain.SessionState)

// Config holds session lease and language settings applied to newly
// created sessions.
type Config struct {
	Lease          time.Duration `yaml:"lease"`
	SourceLanguage string        `yaml:"source_language"`
	TargetLanguage string        `yaml:"target_language"`
}

// DefaultLease is applied when no lease is configured.
const DefaultLease = 30 * time.Minute

// Manager owns the lifecycle of a single session membership. At most one
// realtime subscription is live per manager at any time: a second
// Initialize tears the previous one down completely before subscribing,
// so events never cross-contaminate between sessions.
type Manager struct {
	mu        sync.Mutex
	cfg       Config
	broker    realtime.Broker
	sessions  storage.SessionRepository
	snapshots storage.SnapshotStore
	log       *slog.Logger

	userID  string
	state   domain.SessionState
	sub     realtime.Subscription
	handler realtime.EventHandler

	observerMu    sync.Mutex
	observers     map[int]Observer
	observerOrder []int
	nextObserver  int
}

// NewManager creates a disconnected manager.
func NewManager(
	cfg Config,
	broker realtime.Broker,
	sessions storage.SessionRepository,
	snapshots storage.SnapshotStore,
	log *slog.Logger,
) *Manager {
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultLease
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		broker:    broker,
		sessions:  sessions,
		snapshots: snapshots,
		log:       log,
		state:     domain.SessionState{ConnectionState: domain.ConnectionDisconnected},
		observers: make(map[int]Observer),
	}
}

// SetEventHandler registers the consumer for events arriving on the session
// channel. Must be set before Initialize.
func (m *Manager) SetEventHandler(fn realtime.EventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Initialize joins or creates a session and opens its realtime subscription.
// Calling Initialize on a live manager implicitly leaves the previous
// session first; the unsubscribe is issued strictly before the new
// subscribe.
func (m *Manager) Initialize(ctx context.Context, code, userID string, isNewlyCreated bool) error {
	m.mu.Lock()

	// Hard invariant: never two live subscriptions on one manager.
	m.teardownLocked(ctx)

	m.userID = userID
	m.state = domain.SessionState{ConnectionState: domain.ConnectionConnecting}
	m.notifyLocked()

	session, err := m.resolveSession(ctx, code, userID, isNewlyCreated)
	if err != nil {
		m.state = domain.SessionState{
			ConnectionState: domain.ConnectionDisconnected,
			Err:             err,
		}
		m.notifyLocked()
		m.mu.Unlock()
		return err
	}

	handler := m.handler
	if handler == nil {
		handler = func(domain.Event) {}
	}

	sub, err := m.broker.Subscribe(ctx, domain.SessionChannel(session.ID), handler)
	if err != nil {
		err = fmt.Errorf("open session subscription: %w", err)
		m.state = domain.SessionState{
			ConnectionState: domain.ConnectionDisconnected,
			Err:             err,
		}
		m.notifyLocked()
		m.mu.Unlock()
		return err
	}

	m.sub = sub
	m.state = domain.SessionState{
		Session:         session,
		ConnectionState: domain.ConnectionConnected,
	}
	metrics.LiveSubscriptions.Inc()

	if err := m.snapshots.SaveActiveSession(ctx, userID, session.ID); err != nil {
		m.log.Warn("Failed to persist active session pointer", "error", err)
	}

	m.notifyLocked()
	m.mu.Unlock()

	m.log.Info("Session initialized",
		"session", session.ID, "code", code, "user", userID, "created", isNewlyCreated)
	return nil
}

func (m *Manager) resolveSession(
	ctx context.Context,
	code, userID string,
	isNewlyCreated bool,
) (*domain.Session, error) {
	if isNewlyCreated {
		now := time.Now()
		session := &domain.Session{
			ID:             uuid.NewString(),
			Code:           code,
			HostUserID:     userID,
			SourceLanguage: m.cfg.SourceLanguage,
			TargetLanguage: m.cfg.TargetLanguage,
			CreatedAt:      now,
			ExpiresAt:      now.Add(m.cfg.Lease),
		}
		if err := m.sessions.Create(ctx, session); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return session, nil
	}

	session, err := m.sessions.GetByCode(ctx, code)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil, &domain.ValidationError{Field: "session code", Reason: "no such session"}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	return session, nil
}

// Leave closes the realtime subscription and returns the manager to
// disconnected. Idempotent: calling it twice is a no-op the second time.
func (m *Manager) Leave(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sub == nil && m.state.ConnectionState == domain.ConnectionDisconnected {
		return nil
	}

	m.teardownLocked(ctx)
	m.state = domain.SessionState{ConnectionState: domain.ConnectionDisconnected}
	m.notifyLocked()
	return nil
}

// teardownLocked issues the unsubscribe and clears the active pointer.
// Callers hold m.mu.
func (m *Manager) teardownLocked(ctx context.Context) {
	if m.sub == nil {
		return
	}
	if err := m.sub.Close(); err != nil {
		m.log.Warn("Failed to close subscription", "channel", m.sub.Channel(), "error", err)
	}
	m.sub = nil
	metrics.LiveSubscriptions.Dec()

	if m.userID != "" {
		if err := m.snapshots.ClearActiveSession(ctx, m.userID); err != nil {
			m.log.Warn("Failed to clear active session pointer", "error", err)
		}
	}
}

// Subscribe registers an observer for state changes. The returned function
// unsubscribes it; no delivery happens after unsubscribe.
func (m *Manager) Subscribe(fn Observer) func() {
	m.observerMu.Lock()
	defer m.observerMu.Unlock()

	m.nextObserver++
	id := m.nextObserver
	m.observers[id] = fn
	m.observerOrder = append(m.observerOrder, id)

	return func() {
		m.observerMu.Lock()
		defer m.observerMu.Unlock()
		delete(m.observers, id)
		for i, oid := range m.observerOrder {
			if oid == id {
				m.observerOrder = append(m.observerOrder[:i], m.observerOrder[i+1:]...)
				break
			}
		}
	}
}

// State returns a snapshot of the current session state. The snapshot owns
// its Session copy; later mutations do not show through.
func (m *Manager) State() domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// BeginReconnect marks the manager reconnecting with the given attempt
// count. Driven by connection recovery.
func (m *Manager) BeginReconnect(attempt int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Session == nil {
		return
	}
	m.state.ConnectionState = domain.ConnectionReconnecting
	m.state.ReconnectAttempts = attempt
	m.notifyLocked()
}

// Reconnect re-establishes the realtime subscription for the current
// session. The stale subscription is closed before the new subscribe so the
// single-subscription invariant holds across recovery too.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Session == nil {
		return nil // Nothing to reconnect
	}

	if m.sub != nil {
		_ = m.sub.Close()
		m.sub = nil
		metrics.LiveSubscriptions.Dec()
	}

	handler := m.handler
	if handler == nil {
		handler = func(domain.Event) {}
	}

	sub, err := m.broker.Subscribe(ctx, domain.SessionChannel(m.state.Session.ID), handler)
	if err != nil {
		m.state.Err = err
		return err
	}

	m.sub = sub
	m.state.ConnectionState = domain.ConnectionConnected
	m.state.ReconnectAttempts = 0
	m.state.Err = nil
	metrics.LiveSubscriptions.Inc()
	m.notifyLocked()
	return nil
}

// Extend pushes the session lease forward by the configured duration.
func (m *Manager) Extend(ctx context.Context) error {
	m.mu.Lock()
	session := m.state.Session
	m.mu.Unlock()

	if session == nil {
		return &domain.StateError{Entity: "session", From: "disconnected", To: "extended"}
	}

	until := time.Now().Add(m.cfg.Lease)
	if err := m.sessions.ExtendExpiry(ctx, session.ID, until); err != nil {
		return fmt.Errorf("extend session: %w", err)
	}

	m.mu.Lock()
	if m.state.Session != nil && m.state.Session.ID == session.ID {
		m.state.Session.ExpiresAt = until
		m.notifyLocked()
	}
	m.mu.Unlock()
	return nil
}

// TimeUntilExpiry returns the remaining lease, zero when expired or no
// session is attached.
func (m *Manager) TimeUntilExpiry() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Session == nil {
		return 0
	}
	remaining := time.Until(m.state.Session.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsHealthy reports whether the membership is connected with a valid lease.
func (m *Manager) IsHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state.ConnectionState == domain.ConnectionConnected &&
		m.state.Session != nil &&
		!m.state.Session.Expired(time.Now())
}

// notifyLocked snapshots state under m.mu and delivers it synchronously.
func (m *Manager) notifyLocked() {
	state := m.state.Clone()

	m.observerMu.Lock()
	ordered := make([]Observer, 0, len(m.observerOrder))
	for _, id := range m.observerOrder {
		if fn, ok := m.observers[id]; ok {
			ordered = append(ordered, fn)
		}
	}
	m.observerMu.Unlock()

	for _, fn := range ordered {
		fn(state)
	}
}

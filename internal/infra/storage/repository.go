package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/translive/internal/core/domain"
)

var (
	// ErrSessionNotFound is returned when a session code or id doesn't resolve.
	ErrSessionNotFound = errors.New("session not found")
)

// SessionRepository handles session record storage operations
type SessionRepository interface {
	// Create stores a new session record
	Create(ctx context.Context, session *domain.Session) error

	// GetByCode resolves a session by its join code
	GetByCode(ctx context.Context, code string) (*domain.Session, error)

	// GetByID retrieves a session by id
	GetByID(ctx context.Context, id string) (*domain.Session, error)

	// ExtendExpiry pushes the session lease forward
	ExtendExpiry(ctx context.Context, id string, until time.Time) error

	// DeleteExpired removes sessions whose lease lapsed before now
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// MessageHistoryRepository archives displayed messages as immutable history
type MessageHistoryRepository interface {
	// Archive stores a delivered message
	Archive(ctx context.Context, msg *domain.Message) error

	// ListBySession retrieves archived messages, newest first
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.Message, error)

	// Count returns the number of archived messages for a session
	Count(ctx context.Context, sessionID string) (int, error)

	// DeleteBySession removes history for a session (admin cleanup)
	DeleteBySession(ctx context.Context, sessionID string) (int, error)
}

// SnapshotStore persists queue/workflow snapshots and the active-session
// pointer so a restart resumes from last known state. Redis in production,
// memory in tests.
type SnapshotStore interface {
	SaveQueueSnapshot(ctx context.Context, sessionID string, messages []domain.Message) error
	LoadQueueSnapshot(ctx context.Context, sessionID string) ([]domain.Message, error)
	DeleteQueueSnapshot(ctx context.Context, sessionID string) error

	SaveWorkflowSnapshots(ctx context.Context, userID string, workflows []domain.WorkflowProgress) error
	LoadWorkflowSnapshots(ctx context.Context, userID string) ([]domain.WorkflowProgress, error)

	SaveActiveSession(ctx context.Context, userID, sessionID string) error
	LoadActiveSession(ctx context.Context, userID string) (string, error)
	ClearActiveSession(ctx context.Context, userID string) error
}

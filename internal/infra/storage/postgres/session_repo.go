package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/translive/internal/core/domain"
	"github.com/vietddude/translive/internal/infra/storage"
)

// SessionRepo implements storage.SessionRepository using PostgreSQL.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new PostgreSQL session repository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

type sessionRow struct {
	ID             string    `db:"id"`
	Code           string    `db:"code"`
	HostUserID     string    `db:"host_user_id"`
	SourceLanguage string    `db:"source_language"`
	TargetLanguage string    `db:"target_language"`
	CreatedAt      time.Time `db:"created_at"`
	ExpiresAt      time.Time `db:"expires_at"`
}

func (r sessionRow) toDomain() *domain.Session {
	return &domain.Session{
		ID:             r.ID,
		Code:           r.Code,
		HostUserID:     r.HostUserID,
		SourceLanguage: r.SourceLanguage,
		TargetLanguage: r.TargetLanguage,
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
	}
}

// Create stores a new session record.
func (r *SessionRepo) Create(ctx context.Context, session *domain.Session) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO sessions (id, code, host_user_id, source_language, target_language, created_at, expires_at)
		VALUES (:id, :code, :host_user_id, :source_language, :target_language, :created_at, :expires_at)`,
		sessionRow{
			ID:             session.ID,
			Code:           session.Code,
			HostUserID:     session.HostUserID,
			SourceLanguage: session.SourceLanguage,
			TargetLanguage: session.TargetLanguage,
			CreatedAt:      session.CreatedAt,
			ExpiresAt:      session.ExpiresAt,
		})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByCode resolves a session by its join code.
func (r *SessionRepo) GetByCode(ctx context.Context, code string) (*domain.Session, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, code, host_user_id, source_language, target_language, created_at, expires_at
		 FROM sessions WHERE code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session by code: %w", err)
	}
	return row.toDomain(), nil
}

// GetByID retrieves a session by id.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, code, host_user_id, source_language, target_language, created_at, expires_at
		 FROM sessions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return row.toDomain(), nil
}

// ExtendExpiry pushes the session lease forward.
func (r *SessionRepo) ExtendExpiry(ctx context.Context, id string, until time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = $1 WHERE id = $2`, until, id)
	if err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return storage.ErrSessionNotFound
	}
	return nil
}

// DeleteExpired removes sessions whose lease lapsed before now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

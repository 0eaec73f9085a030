package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vietddude/translive/internal/core/domain"
)

// HistoryRepo implements storage.MessageHistoryRepository using PostgreSQL.
// Archived rows are immutable; there is deliberately no update path.
type HistoryRepo struct {
	db *DB
}

// NewHistoryRepo creates a new PostgreSQL message history repository.
func NewHistoryRepo(db *DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

type messageRow struct {
	ID               string         `db:"id"`
	SessionID        string         `db:"session_id"`
	UserID           string         `db:"user_id"`
	OriginalText     string         `db:"original_text"`
	Translation      sql.NullString `db:"translation"`
	OriginalLanguage string         `db:"original_language"`
	TargetLanguage   string         `db:"target_language"`
	QueuedAt         time.Time      `db:"queued_at"`
	ProcessedAt      sql.NullTime   `db:"processed_at"`
	DisplayedAt      sql.NullTime   `db:"displayed_at"`
	TranscriptionMs  int64          `db:"transcription_ms"`
	TranslationMs    int64          `db:"translation_ms"`
	EndToEndMs       int64          `db:"end_to_end_ms"`
}

func (r messageRow) toDomain() *domain.Message {
	msg := &domain.Message{
		ID:               r.ID,
		SessionID:        r.SessionID,
		UserID:           r.UserID,
		OriginalText:     r.OriginalText,
		OriginalLanguage: r.OriginalLanguage,
		TargetLanguage:   r.TargetLanguage,
		Status:           domain.MessageStatusDisplayed,
		QueuedAt:         r.QueuedAt,
		PerformanceMetrics: domain.PerformanceMetrics{
			TranscriptionMs: r.TranscriptionMs,
			TranslationMs:   r.TranslationMs,
			EndToEndMs:      r.EndToEndMs,
		},
	}
	if r.Translation.Valid {
		msg.Translation = r.Translation.String
	}
	if r.ProcessedAt.Valid {
		msg.ProcessedAt = r.ProcessedAt.Time
	}
	if r.DisplayedAt.Valid {
		msg.DisplayedAt = r.DisplayedAt.Time
	}
	return msg
}

// Archive stores a delivered message.
func (r *HistoryRepo) Archive(ctx context.Context, msg *domain.Message) error {
	row := messageRow{
		ID:               msg.ID,
		SessionID:        msg.SessionID,
		UserID:           msg.UserID,
		OriginalText:     msg.OriginalText,
		OriginalLanguage: msg.OriginalLanguage,
		TargetLanguage:   msg.TargetLanguage,
		QueuedAt:         msg.QueuedAt,
		TranscriptionMs:  msg.PerformanceMetrics.TranscriptionMs,
		TranslationMs:    msg.PerformanceMetrics.TranslationMs,
		EndToEndMs:       msg.PerformanceMetrics.EndToEndMs,
	}
	if msg.Translation != "" {
		row.Translation = sql.NullString{String: msg.Translation, Valid: true}
	}
	if !msg.ProcessedAt.IsZero() {
		row.ProcessedAt = sql.NullTime{Time: msg.ProcessedAt, Valid: true}
	}
	if !msg.DisplayedAt.IsZero() {
		row.DisplayedAt = sql.NullTime{Time: msg.DisplayedAt, Valid: true}
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO messages (id, session_id, user_id, original_text, translation,
			original_language, target_language, queued_at, processed_at, displayed_at,
			transcription_ms, translation_ms, end_to_end_ms)
		VALUES (:id, :session_id, :user_id, :original_text, :translation,
			:original_language, :target_language, :queued_at, :processed_at, :displayed_at,
			:transcription_ms, :translation_ms, :end_to_end_ms)
		ON CONFLICT (id) DO NOTHING`, row)
	if err != nil {
		return fmt.Errorf("failed to archive message: %w", err)
	}
	return nil
}

// ListBySession retrieves archived messages, newest first.
func (r *HistoryRepo) ListBySession(
	ctx context.Context,
	sessionID string,
	limit int,
) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []messageRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, session_id, user_id, original_text, translation,
			original_language, target_language, queued_at, processed_at, displayed_at,
			transcription_ms, translation_ms, end_to_end_ms
		FROM messages WHERE session_id = $1
		ORDER BY queued_at DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]*domain.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, row.toDomain())
	}
	return messages, nil
}

// Count returns the number of archived messages for a session.
func (r *HistoryRepo) Count(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// DeleteBySession removes history for a session.
func (r *HistoryRepo) DeleteBySession(ctx context.Context, sessionID string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

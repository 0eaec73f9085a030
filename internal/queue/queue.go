// Package queue buffers messages end to end and reconciles local optimistic
// state with confirmations from the realtime channel.
package queue

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/translive/internal/core/domain"
	"github.com/vietddude/translive/internal/infra/storage"
	"github.com/vietddude/translive/internal/metrics"
)

// Queue is the ordered local buffer for one session's messages. Every
// mutation re-persists the full snapshot so a reload resumes to the last
// known state. The queue never silently drops a message: failed items stay
// visible until retried or explicitly cleared.
type Queue struct {
	mu        sync.Mutex
	sessionID string
	messages  []domain.Message
	store     storage.SnapshotStore
	history   storage.MessageHistoryRepository
	log       *slog.Logger
}

// New creates a queue for a session. history may be nil when no archive
// backend is configured.
func New(
	sessionID string,
	store storage.SnapshotStore,
	history storage.MessageHistoryRepository,
	log *slog.Logger,
) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		sessionID: sessionID,
		store:     store,
		history:   history,
		log:       log.With("session", sessionID),
	}
}

// Restore loads the persisted snapshot, resuming the queue after a reload.
func (q *Queue) Restore(ctx context.Context) error {
	messages, err := q.store.LoadQueueSnapshot(ctx, q.sessionID)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = messages
	sort.SliceStable(q.messages, func(i, j int) bool {
		return q.messages[i].QueuedAt.Before(q.messages[j].QueuedAt)
	})
	return nil
}

// Add appends a message to the queue and persists it. Missing identity and
// timestamps are filled in; the enqueue itself never blocks on the pipeline.
func (q *Queue) Add(ctx context.Context, msg domain.Message) domain.Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.SessionID == "" {
		msg.SessionID = q.sessionID
	}
	if msg.Status == "" {
		msg.Status = domain.MessageStatusQueued
	}
	if msg.QueuedAt.IsZero() {
		msg.QueuedAt = time.Now()
	}

	q.mu.Lock()
	q.messages = append(q.messages, msg)
	q.persistLocked(ctx)
	q.mu.Unlock()

	metrics.MessagesQueued.WithLabelValues(q.sessionID).Inc()
	return msg
}

// UpdateStatus transitions a message's status. Unknown ids and invalid
// transitions are logged no-ops: late confirmations race with local removal,
// and a bad transition must fail closed rather than corrupt state.
func (q *Queue) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(id)
	if idx < 0 {
		q.log.Warn("Status update for unknown message", "id", id, "status", status)
		return
	}

	msg := &q.messages[idx]
	if !domain.ValidMessageTransition(msg.Status, status) {
		stateErr := &domain.StateError{
			Entity: "message",
			From:   string(msg.Status),
			To:     string(status),
		}
		q.log.Warn("Rejected message transition", "id", id, "error", stateErr)
		return
	}

	now := time.Now()
	msg.Status = status
	switch status {
	case domain.MessageStatusProcessing:
		msg.ProcessedAt = now
	case domain.MessageStatusDisplayed:
		if msg.ProcessedAt.IsZero() {
			msg.ProcessedAt = now
		}
		msg.DisplayedAt = now
		msg.PerformanceMetrics.EndToEndMs = now.Sub(msg.QueuedAt).Milliseconds()
		metrics.MessageLatency.Observe(now.Sub(msg.QueuedAt).Seconds())
	case domain.MessageStatusFailed:
		metrics.MessagesFailed.WithLabelValues(q.sessionID).Inc()
	}

	q.persistLocked(ctx)

	if status == domain.MessageStatusDisplayed {
		q.archiveLocked(ctx, *msg)
	}
}

// SetTranslation records the translated text for a message.
func (q *Queue) SetTranslation(ctx context.Context, id, translation string, translationMs int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(id)
	if idx < 0 {
		q.log.Warn("Translation for unknown message", "id", id)
		return
	}
	q.messages[idx].Translation = translation
	q.messages[idx].PerformanceMetrics.TranslationMs = translationMs
	q.persistLocked(ctx)
}

// SetTranscription records the recognized text for a voice message.
func (q *Queue) SetTranscription(ctx context.Context, id, text, language string, transcriptionMs int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(id)
	if idx < 0 {
		q.log.Warn("Transcription for unknown message", "id", id)
		return
	}
	q.messages[idx].OriginalText = text
	if language != "" {
		q.messages[idx].OriginalLanguage = language
	}
	q.messages[idx].PerformanceMetrics.TranscriptionMs = transcriptionMs
	q.persistLocked(ctx)
}

// Get returns a snapshot of one message.
func (q *Queue) Get(id string) (domain.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexLocked(id)
	if idx < 0 {
		return domain.Message{}, false
	}
	return q.messages[idx], true
}

// Messages returns a snapshot of the whole queue in order.
func (q *Queue) Messages() []domain.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Message, len(q.messages))
	copy(out, q.messages)
	return out
}

// Failed returns the messages awaiting user-triggered retry.
func (q *Queue) Failed() []domain.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.Message
	for _, m := range q.messages {
		if m.Status == domain.MessageStatusFailed {
			out = append(out, m)
		}
	}
	return out
}

// Pending returns messages that have not reached a terminal state.
func (q *Queue) Pending() []domain.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.Message
	for _, m := range q.messages {
		if !m.Status.Terminal() {
			out = append(out, m)
		}
	}
	return out
}

// Retry re-enqueues a failed message as a fresh attempt. The copy gets its
// own identity and replaces the failed entry, so no id is ever observed
// leaving the failed state.
func (q *Queue) Retry(ctx context.Context, id string) (domain.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(id)
	if idx < 0 {
		q.log.Warn("Retry for unknown message", "id", id)
		return domain.Message{}, false
	}
	if q.messages[idx].Status != domain.MessageStatusFailed {
		q.log.Warn("Retry for message not in failed state",
			"id", id, "status", q.messages[idx].Status)
		return domain.Message{}, false
	}

	retried := q.messages[idx]
	retried.ID = uuid.NewString()
	retried.Status = domain.MessageStatusQueued
	retried.RetryCount++
	retried.QueuedAt = time.Now()
	retried.ProcessedAt = time.Time{}
	retried.DisplayedAt = time.Time{}
	q.messages[idx] = retried
	q.persistLocked(ctx)

	metrics.MessagesQueued.WithLabelValues(q.sessionID).Inc()
	return retried, true
}

// Clear discards a failed message the user chose not to retry.
func (q *Queue) Clear(ctx context.Context, id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(id)
	if idx < 0 || q.messages[idx].Status != domain.MessageStatusFailed {
		return false
	}
	q.messages = append(q.messages[:idx], q.messages[idx+1:]...)
	q.persistLocked(ctx)
	return true
}

// Len returns the number of buffered messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

func (q *Queue) indexLocked(id string) int {
	for i := range q.messages {
		if q.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) persistLocked(ctx context.Context) {
	snap := make([]domain.Message, len(q.messages))
	copy(snap, q.messages)
	if err := q.store.SaveQueueSnapshot(ctx, q.sessionID, snap); err != nil {
		q.log.Warn("Failed to persist queue snapshot", "error", err)
	}
}

func (q *Queue) archiveLocked(ctx context.Context, msg domain.Message) {
	if q.history == nil {
		return
	}
	if err := q.history.Archive(ctx, &msg); err != nil {
		q.log.Warn("Failed to archive message", "id", msg.ID, "error", err)
	}
}

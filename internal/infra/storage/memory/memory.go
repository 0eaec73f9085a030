package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/translive/internal/core/domain"
	"github.com/vietddude/translive/internal/infra/storage"
)

// MemoryStorage backs every repository interface in-process. Used by tests
// and by storage-free mode when no database/redis URL is configured.
type MemoryStorage struct {
	sessions       map[string]*domain.Session // by id
	messages       map[string][]*domain.Message
	queueSnaps     map[string][]domain.Message
	workflowSnaps  map[string][]domain.WorkflowProgress
	activeSessions map[string]string
	mu             sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions:       make(map[string]*domain.Session),
		messages:       make(map[string][]*domain.Message),
		queueSnaps:     make(map[string][]domain.Message),
		workflowSnaps:  make(map[string][]domain.WorkflowProgress),
		activeSessions: make(map[string]string),
	}
}

// -----------------------------------------------------------------------------
// Session Repository
// -----------------------------------------------------------------------------

type SessionRepo struct {
	store *MemoryStorage
}

func NewSessionRepo(store *MemoryStorage) *SessionRepo {
	return &SessionRepo{store: store}
}

func (r *SessionRepo) Create(ctx context.Context, session *domain.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *session
	r.store.sessions[session.ID] = &cp
	return nil
}

func (r *SessionRepo) GetByCode(ctx context.Context, code string) (*domain.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, s := range r.store.sessions {
		if s.Code == code {
			cp := *s
			return &cp, nil
		}
	}
	return nil, storage.ErrSessionNotFound
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	s, ok := r.store.sessions[id]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *SessionRepo) ExtendExpiry(ctx context.Context, id string, until time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.sessions[id]
	if !ok {
		return storage.ErrSessionNotFound
	}
	s.ExpiresAt = until
	return nil
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	deleted := 0
	for id, s := range r.store.sessions {
		if s.Expired(now) {
			delete(r.store.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// -----------------------------------------------------------------------------
// Message History Repository
// -----------------------------------------------------------------------------

type HistoryRepo struct {
	store *MemoryStorage
}

func NewHistoryRepo(store *MemoryStorage) *HistoryRepo {
	return &HistoryRepo{store: store}
}

func (r *HistoryRepo) Archive(ctx context.Context, msg *domain.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.messages[msg.SessionID] {
		if existing.ID == msg.ID {
			return nil // Already archived, history is immutable
		}
	}
	cp := *msg
	r.store.messages[msg.SessionID] = append(r.store.messages[msg.SessionID], &cp)
	return nil
}

func (r *HistoryRepo) ListBySession(
	ctx context.Context,
	sessionID string,
	limit int,
) ([]*domain.Message, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	msgs := r.store.messages[sessionID]
	out := make([]*domain.Message, 0, len(msgs))
	for _, m := range msgs {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QueuedAt.After(out[j].QueuedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *HistoryRepo) Count(ctx context.Context, sessionID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.messages[sessionID]), nil
}

func (r *HistoryRepo) DeleteBySession(ctx context.Context, sessionID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n := len(r.store.messages[sessionID])
	delete(r.store.messages, sessionID)
	return n, nil
}

// -----------------------------------------------------------------------------
// Snapshot Store
// -----------------------------------------------------------------------------

type SnapshotStore struct {
	store *MemoryStorage
}

func NewSnapshotStore(store *MemoryStorage) *SnapshotStore {
	return &SnapshotStore{store: store}
}

func (s *SnapshotStore) SaveQueueSnapshot(
	ctx context.Context,
	sessionID string,
	messages []domain.Message,
) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	snap := make([]domain.Message, len(messages))
	copy(snap, messages)
	s.store.queueSnaps[sessionID] = snap
	return nil
}

func (s *SnapshotStore) LoadQueueSnapshot(
	ctx context.Context,
	sessionID string,
) ([]domain.Message, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	snap := s.store.queueSnaps[sessionID]
	out := make([]domain.Message, len(snap))
	copy(out, snap)
	return out, nil
}

func (s *SnapshotStore) DeleteQueueSnapshot(ctx context.Context, sessionID string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	delete(s.store.queueSnaps, sessionID)
	return nil
}

func (s *SnapshotStore) SaveWorkflowSnapshots(
	ctx context.Context,
	userID string,
	workflows []domain.WorkflowProgress,
) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	snap := make([]domain.WorkflowProgress, len(workflows))
	copy(snap, workflows)
	s.store.workflowSnaps[userID] = snap
	return nil
}

func (s *SnapshotStore) LoadWorkflowSnapshots(
	ctx context.Context,
	userID string,
) ([]domain.WorkflowProgress, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	snap := s.store.workflowSnaps[userID]
	out := make([]domain.WorkflowProgress, len(snap))
	copy(out, snap)
	return out, nil
}

func (s *SnapshotStore) SaveActiveSession(ctx context.Context, userID, sessionID string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.activeSessions[userID] = sessionID
	return nil
}

func (s *SnapshotStore) LoadActiveSession(ctx context.Context, userID string) (string, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	return s.store.activeSessions[userID], nil
}

func (s *SnapshotStore) ClearActiveSession(ctx context.Context, userID string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	delete(s.store.activeSessions, userID)
	return nil
}

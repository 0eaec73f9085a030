// Package workflow makes multi-step asynchronous user actions resumable.
package workflow

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

// Listener is invoked synchronously on every workflow mutation.
type Listener func(w domain.WorkflowProgress)

// Statistics aggregates workflow counts by status. Observability only,
// never control flow.
type Statistics struct {
	Total    int                           `json:"total"`
	ByStatus map[domain.WorkflowStatus]int `json:"by_status"`
}

// Service tracks multi-step workflows so a reload or transient failure can
// resume rather than restart. Snapshots persist on every mutation.
type Service struct {
	mu        sync.Mutex
	userID    string
	workflows map[string]*domain.WorkflowProgress
	store     storage.SnapshotStore
	log       *slog.Logger

	listenerMu    sync.Mutex
	listeners     map[int]Listener
	listenerOrder []int
	nextListener  int
}

// NewService creates a workflow service for one user.
func NewService(userID string, store storage.SnapshotStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		userID:    userID,
		workflows: make(map[string]*domain.WorkflowProgress),
		store:     store,
		log:       log.With("user", userID),
		listeners: make(map[int]Listener),
	}
}

// Restore loads persisted workflows. Anything left non-terminal by an
// unexpected interruption comes back as recoverable so the user can choose
// to resume or discard.
func (s *Service) Restore(ctx context.Context) error {
	snaps, err := s.store.LoadWorkflowSnapshots(ctx, s.userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range snaps {
		w := snaps[i].Clone()
		if !w.OverallStatus.Terminal() && w.OverallStatus != domain.WorkflowStatusPaused {
			w.OverallStatus = domain.WorkflowStatusRecoverable
		}
		s.workflows[w.ID] = &w
	}
	return nil
}

// CreateWorkflow registers a new workflow with every step pending.
func (s *Service) CreateWorkflow(
	ctx context.Context,
	sessionID string,
	stepNames []string,
) string {
	steps := make([]domain.WorkflowStep, len(stepNames))
	for i, name := range stepNames {
		steps[i] = domain.WorkflowStep{Name: name, Status: domain.StepStatusPending}
	}

	now := time.Now()
	w := &domain.WorkflowProgress{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		UserID:        s.userID,
		Steps:         steps,
		OverallStatus: domain.WorkflowStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	s.workflows[w.ID] = w
	s.persistLocked(ctx)
	snapshot := w.Clone()
	s.mu.Unlock()

	s.notify(snapshot)
	return w.ID
}

// StartStep marks a step active and records its start time and input data.
// Out-of-range indexes and unknown workflows are logged no-ops.
func (s *Service) StartStep(ctx context.Context, workflowID string, stepIndex int, data map[string]any) {
	s.mutate(ctx, workflowID, stepIndex, func(w *domain.WorkflowProgress, step *domain.WorkflowStep) bool {
		if !domain.ValidStepTransition(step.Status, domain.StepStatusActive) {
			s.log.Warn("Rejected step start",
				"workflow", workflowID, "step", step.Name, "status", step.Status)
			return false
		}
		step.Status = domain.StepStatusActive
		step.StartTime = time.Now()
		step.Data = data
		w.CurrentStepIndex = stepIndex
		return true
	})
}

// CompleteStep marks a step completed and advances the current index.
// Completing the last step completes the workflow.
func (s *Service) CompleteStep(ctx context.Context, workflowID string, stepIndex int, result map[string]any) {
	s.mutate(ctx, workflowID, stepIndex, func(w *domain.WorkflowProgress, step *domain.WorkflowStep) bool {
		if !domain.ValidStepTransition(step.Status, domain.StepStatusCompleted) {
			s.log.Warn("Rejected step completion",
				"workflow", workflowID, "step", step.Name, "status", step.Status)
			return false
		}
		step.Status = domain.StepStatusCompleted
		step.Result = result

		if stepIndex+1 < len(w.Steps) {
			w.CurrentStepIndex = stepIndex + 1
		} else {
			w.OverallStatus = domain.WorkflowStatusCompleted
		}
		return true
	})
}

// FailStep marks a step failed and the workflow recoverable.
func (s *Service) FailStep(ctx context.Context, workflowID string, stepIndex int, stepErr error) {
	s.mutate(ctx, workflowID, stepIndex, func(w *domain.WorkflowProgress, step *domain.WorkflowStep) bool {
		if !domain.ValidStepTransition(step.Status, domain.StepStatusFailed) {
			s.log.Warn("Rejected step failure",
				"workflow", workflowID, "step", step.Name, "status", step.Status)
			return false
		}
		step.Status = domain.StepStatusFailed
		if stepErr != nil {
			step.Error = stepErr.Error()
		}
		w.OverallStatus = domain.WorkflowStatusRecoverable
		return true
	})
}

// PauseWorkflow freezes a workflow without failing it, e.g. when the user
// navigates away mid-pipeline.
func (s *Service) PauseWorkflow(ctx context.Context, workflowID, reason string) {
	s.mu.Lock()
	w, ok := s.workflows[workflowID]
	if !ok || w.OverallStatus.Terminal() {
		s.mu.Unlock()
		s.log.Warn("Pause for unknown or terminal workflow", "workflow", workflowID)
		return
	}
	w.OverallStatus = domain.WorkflowStatusPaused
	w.PauseReason = reason
	w.UpdatedAt = time.Now()
	s.persistLocked(ctx)
	snapshot := w.Clone()
	s.mu.Unlock()

	s.notify(snapshot)
}

// ResumeWorkflow restores a workflow to active processing from its first
// incomplete step. Returns false when the workflow is missing or terminal.
func (s *Service) ResumeWorkflow(ctx context.Context, workflowID string) bool {
	s.mu.Lock()
	w, ok := s.workflows[workflowID]
	if !ok || w.OverallStatus.Terminal() {
		s.mu.Unlock()
		return false
	}

	idx := w.FirstIncompleteStep()
	if idx < 0 {
		// Every step already completed; nothing to resume.
		w.OverallStatus = domain.WorkflowStatusCompleted
		s.persistLocked(ctx)
		s.mu.Unlock()
		return false
	}

	// A step interrupted mid-flight or failed restarts from scratch.
	step := &w.Steps[idx]
	if step.Status == domain.StepStatusActive || step.Status == domain.StepStatusFailed {
		step.Status = domain.StepStatusPending
		step.Error = ""
	}

	w.OverallStatus = domain.WorkflowStatusActive
	w.PauseReason = ""
	w.CurrentStepIndex = idx
	w.UpdatedAt = time.Now()
	s.persistLocked(ctx)
	snapshot := w.Clone()
	s.mu.Unlock()

	metrics.WorkflowsResumed.Inc()
	s.notify(snapshot)
	return true
}

// DiscardWorkflow removes a workflow the user chose not to resume.
func (s *Service) DiscardWorkflow(ctx context.Context, workflowID string) {
	s.mu.Lock()
	w, ok := s.workflows[workflowID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.workflows, workflowID)
	s.persistLocked(ctx)
	snapshot := w.Clone()
	s.mu.Unlock()

	s.notify(snapshot)
}

// Get returns a snapshot of one workflow.
func (s *Service) Get(workflowID string) (domain.WorkflowProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[workflowID]
	if !ok {
		return domain.WorkflowProgress{}, false
	}
	return w.Clone(), true
}

// RecoverableWorkflows surfaces workflows the user may resume or discard.
func (s *Service) RecoverableWorkflows() []domain.WorkflowProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.WorkflowProgress
	for _, w := range s.workflows {
		if w.OverallStatus == domain.WorkflowStatusRecoverable ||
			w.OverallStatus == domain.WorkflowStatusPaused {
			out = append(out, w.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Statistics aggregates counts by status.
func (s *Service) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Statistics{
		Total:    len(s.workflows),
		ByStatus: make(map[domain.WorkflowStatus]int),
	}
	for _, w := range s.workflows {
		stats.ByStatus[w.OverallStatus]++
	}
	return stats
}

// AddListener registers a callback invoked synchronously on every workflow
// mutation, in registration order. The returned function removes it; no
// delivery happens after removal.
func (s *Service) AddListener(fn Listener) func() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.nextListener++
	id := s.nextListener
	s.listeners[id] = fn
	s.listenerOrder = append(s.listenerOrder, id)

	return func() {
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		delete(s.listeners, id)
		for i, lid := range s.listenerOrder {
			if lid == id {
				s.listenerOrder = append(s.listenerOrder[:i], s.listenerOrder[i+1:]...)
				break
			}
		}
	}
}

// mutate applies fn to one step under the lock, then persists and notifies
// when fn reports a change.
func (s *Service) mutate(
	ctx context.Context,
	workflowID string,
	stepIndex int,
	fn func(w *domain.WorkflowProgress, step *domain.WorkflowStep) bool,
) {
	s.mu.Lock()
	w, ok := s.workflows[workflowID]
	if !ok {
		s.mu.Unlock()
		s.log.Warn("Mutation for unknown workflow", "workflow", workflowID)
		return
	}
	if stepIndex < 0 || stepIndex >= len(w.Steps) {
		s.mu.Unlock()
		s.log.Warn("Step index out of range",
			"workflow", workflowID, "step_index", stepIndex, "steps", len(w.Steps))
		return
	}

	if !fn(w, &w.Steps[stepIndex]) {
		s.mu.Unlock()
		return
	}

	w.UpdatedAt = time.Now()
	s.persistLocked(ctx)
	snapshot := w.Clone()
	s.mu.Unlock()

	s.notify(snapshot)
}

func (s *Service) persistLocked(ctx context.Context) {
	snaps := make([]domain.WorkflowProgress, 0, len(s.workflows))
	for _, w := range s.workflows {
		snaps = append(snaps, w.Clone())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
	})
	if err := s.store.SaveWorkflowSnapshots(ctx, s.userID, snaps); err != nil {
		s.log.Warn("Failed to persist workflow snapshots", "error", err)
	}
}

func (s *Service) notify(w domain.WorkflowProgress) {
	s.listenerMu.Lock()
	ordered := make([]Listener, 0, len(s.listenerOrder))
	for _, id := range s.listenerOrder {
		if fn, ok := s.listeners[id]; ok {
			ordered = append(ordered, fn)
		}
	}
	s.listenerMu.Unlock()

	for _, fn := range ordered {
		fn(w)
	}
}

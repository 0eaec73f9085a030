package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/vietddude/translive/internal/core/domain"
	"github.com/vietddude/translive/internal/infra/storage/memory"
)

func newTestService() *Service {
	store := memory.NewMemoryStorage()
	return NewService("u1", memory.NewSnapshotStore(store), nil)
}

var pipelineSteps = []string{"transcribe", "translate", "deliver"}

func TestCreateWorkflow_AllStepsPending(t *testing.T) {
	s := newTestService()
	id := s.CreateWorkflow(context.Background(), "s1", pipelineSteps)

	w, ok := s.Get(id)
	if !ok {
		t.Fatal("workflow not found after create")
	}
	if w.OverallStatus != domain.WorkflowStatusActive {
		t.Errorf("expected active, got %s", w.OverallStatus)
	}
	if len(w.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(w.Steps))
	}
	for _, step := range w.Steps {
		if step.Status != domain.StepStatusPending {
			t.Errorf("step %s should be pending, got %s", step.Name, step.Status)
		}
	}
}

func TestStartAndCompleteStep_AdvancesIndex(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	id := s.CreateWorkflow(ctx, "s1", pipelineSteps)

	s.StartStep(ctx, id, 0, map[string]any{"audio_len": 1024})
	s.CompleteStep(ctx, id, 0, map[string]any{"text": "hello"})

	w, _ := s.Get(id)
	if w.CurrentStepIndex != 1 {
		t.Errorf("expected currentStepIndex 1, got %d", w.CurrentStepIndex)
	}
	if w.Steps[0].Status != domain.StepStatusCompleted {
		t.Errorf("step 0 should be completed, got %s", w.Steps[0].Status)
	}
	if w.Steps[1].Status != domain.StepStatusPending || w.Steps[2].Status != domain.StepStatusPending {
		t.Error("remaining steps should still be pending")
	}
	if w.Steps[0].StartTime.IsZero() {
		t.Error("start time should be recorded")
	}
}

func TestCompleteStep_RequiresActive(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	id := s.CreateWorkflow(ctx, "s1", pipelineSteps)

	// Completing a step that was never started must be a no-op.
	s.CompleteStep(ctx, id, 0, nil)

	w, _ := s.Get(id)
	if w.Steps[0].Status != domain.StepStatusPending {
		t.Errorf("step should remain pending, got %s", w.Steps[0].Status)
	}
}

func TestStartStep_OutOfRangeOrUnknownIsNoop(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	id := s.CreateWorkflow(ctx, "s1", pipelineSteps)

	s.StartStep(ctx, id, 7, nil)
	s.StartStep(ctx, "missing", 0, nil)

	w, _ := s.Get(id)
	for _, step := range w.Steps {
		if step.Status != domain.StepStatusPending {
			t.Errorf("no step should have changed, %s is %s", step.Name, step.Status)
		}
	}
}

func TestCompletingLastStep_CompletesWorkflow(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	id := s.CreateWorkflow(ctx, "s1", pipelineSteps)

	for i := range pipelineSteps {
		s.StartStep(ctx, id, i, nil)
		s.CompleteStep(ctx, id, i, nil)
	}

	w, _ := s.Get(id)
	if w.OverallStatus != domain.WorkflowStatusCompleted {
		t.Errorf("expected completed, got %s", w.OverallStatus)
	}
}

func TestFailStep_MarksRecoverable(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	id := s.CreateWorkflow(ctx, "s1", pipelineSteps)

	s.StartStep(ctx, id, 0, nil)
	s.FailStep(ctx, id, 0, errors.New("transcription timed out"))

	w, _ := s.Get(id)
	if w.OverallStatus != domain.WorkflowStatusRecoverable {
		t.Errorf("expected recoverable, got %s", w.OverallStatus)
	}
	if w.Steps[0].Error == "" {
		t.Error("step error should be recorded")
	}

	recoverable := s.RecoverableWorkflows()
	if len(recoverable) != 1 || recoverable[0].ID != id {
		t.Error("failed workflow should surface as recoverable")
	}
}

func TestResumeWorkflow(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	// Terminal workflow: resume refused.
	done := s.CreateWorkflow(ctx, "s1", []string{"one"})
	s.StartStep(ctx, done, 0, nil)
	s.CompleteStep(ctx, done, 0, nil)
	if s.ResumeWorkflow(ctx, done) {
		t.Error("resume must return false for a completed workflow")
	}

	// Missing workflow: resume refused.
	if s.ResumeWorkflow(ctx, "missing") {
		t.Error("resume must return false for an unknown workflow")
	}

	// Failed mid-pipeline: resume restarts at the failed step.
	id := s.CreateWorkflow(ctx, "s1", pipelineSteps)
	s.StartStep(ctx, id, 0, nil)
	s.CompleteStep(ctx, id, 0, nil)
	s.StartStep(ctx, id, 1, nil)
	s.FailStep(ctx, id, 1, errors.New("translator unavailable"))

	if !s.ResumeWorkflow(ctx, id) {
		t.Fatal("resume should succeed for a recoverable workflow")
	}
	w, _ := s.Get(id)
	if w.OverallStatus != domain.WorkflowStatusActive {
		t.Errorf("expected active after resume, got %s", w.OverallStatus)
	}
	if w.CurrentStepIndex != 1 {
		t.Errorf("expected resume at step 1, got %d", w.CurrentStepIndex)
	}
	if w.Steps[1].Status != domain.StepStatusPending {
		t.Errorf("failed step should restart from pending, got %s", w.Steps[1].Status)
	}
}

func TestPauseAndResume(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	id := s.CreateWorkflow(ctx, "s1", pipelineSteps)

	s.PauseWorkflow(ctx, id, "user navigated away")
	w, _ := s.Get(id)
	if w.OverallStatus != domain.WorkflowStatusPaused {
		t.Errorf("expected paused, got %s", w.OverallStatus)
	}
	if w.PauseReason != "user navigated away" {
		t.Errorf("unexpected pause reason %q", w.PauseReason)
	}

	if !s.ResumeWorkflow(ctx, id) {
		t.Fatal("resume should succeed for a paused workflow")
	}
	w, _ = s.Get(id)
	if w.PauseReason != "" {
		t.Error("pause reason should clear on resume")
	}
}

func TestRestore_InterruptedWorkflowsBecomeRecoverable(t *testing.T) {
	store := memory.NewMemoryStorage()
	snapStore := memory.NewSnapshotStore(store)
	ctx := context.Background()

	s1 := NewService("u1", snapStore, nil)
	id := s1.CreateWorkflow(ctx, "s1", pipelineSteps)
	s1.StartStep(ctx, id, 0, nil)

	// Simulate an unexpected interruption: new service over the same store.
	s2 := NewService("u1", snapStore, nil)
	if err := s2.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}

	w, ok := s2.Get(id)
	if !ok {
		t.Fatal("workflow lost across restart")
	}
	if w.OverallStatus != domain.WorkflowStatusRecoverable {
		t.Errorf("interrupted workflow should be recoverable, got %s", w.OverallStatus)
	}
	if !s2.ResumeWorkflow(ctx, id) {
		t.Error("restored workflow should be resumable")
	}
}

func TestListeners_NoDeliveryAfterRemoval(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	var first, second []string
	removeFirst := s.AddListener(func(w domain.WorkflowProgress) {
		first = append(first, string(w.OverallStatus))
	})
	s.AddListener(func(w domain.WorkflowProgress) {
		second = append(second, string(w.OverallStatus))
	})

	id := s.CreateWorkflow(ctx, "s1", pipelineSteps)
	removeFirst()
	s.PauseWorkflow(ctx, id, "test")

	if len(first) != 1 {
		t.Errorf("removed listener received %d notifications, want 1", len(first))
	}
	if len(second) != 2 {
		t.Errorf("active listener received %d notifications, want 2", len(second))
	}
}

func TestStatistics(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	a := s.CreateWorkflow(ctx, "s1", []string{"one"})
	s.CreateWorkflow(ctx, "s1", pipelineSteps)
	s.StartStep(ctx, a, 0, nil)
	s.FailStep(ctx, a, 0, errors.New("boom"))

	stats := s.Statistics()
	if stats.Total != 2 {
		t.Errorf("expected 2 workflows, got %d", stats.Total)
	}
	if stats.ByStatus[domain.WorkflowStatusRecoverable] != 1 {
		t.Errorf("expected 1 recoverable, got %d", stats.ByStatus[domain.WorkflowStatusRecoverable])
	}
	if stats.ByStatus[domain.WorkflowStatusActive] != 1 {
		t.Errorf("expected 1 active, got %d", stats.ByStatus[domain.WorkflowStatusActive])
	}
}

func TestSnapshotsDoNotAliasLiveState(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	id := s.CreateWorkflow(ctx, "s1", pipelineSteps)

	var fromListener domain.WorkflowProgress
	remove := s.AddListener(func(w domain.WorkflowProgress) { fromListener = w })
	defer remove()

	before, _ := s.Get(id)
	s.StartStep(ctx, id, 0, map[string]any{"audio_len": 1024})

	if got := before.Steps[0].Status; got != domain.StepStatusPending {
		t.Errorf("earlier snapshot was rewritten: step 0 became %s", got)
	}

	notified := fromListener
	s.CompleteStep(ctx, id, 0, nil)
	if got := notified.Steps[0].Status; got != domain.StepStatusActive {
		t.Errorf("listener snapshot was rewritten: step 0 became %s", got)
	}
}

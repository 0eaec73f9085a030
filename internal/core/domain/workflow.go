package domain

import "time"

// StepStatus tracks a single workflow step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// ValidStepTransition enforces the per-step machine
// pending -> active -> (completed | failed).
func ValidStepTransition(from, to StepStatus) bool {
	switch from {
	case StepStatusPending:
		return to == StepStatusActive
	case StepStatusActive:
		return to == StepStatusCompleted || to == StepStatusFailed
	default:
		return false
	}
}

// WorkflowStatus tracks the workflow as a whole.
type WorkflowStatus string

const (
	WorkflowStatusActive      WorkflowStatus = "active"
	WorkflowStatusPaused      WorkflowStatus = "paused"
	WorkflowStatusRecoverable WorkflowStatus = "recoverable"
	WorkflowStatusCompleted   WorkflowStatus = "completed"
	WorkflowStatusFailed      WorkflowStatus = "failed"
)

// Terminal reports whether the workflow can no longer be resumed.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowStatusCompleted || s == WorkflowStatusFailed
}

// WorkflowStep is one stage of a multi-step user action.
type WorkflowStep struct {
	Name      string         `json:"name"`
	Status    StepStatus     `json:"status"`
	StartTime time.Time      `json:"start_time,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// WorkflowProgress tracks a multi-step asynchronous user action
// (e.g. record -> transcribe -> translate -> deliver) for resumability.
type WorkflowProgress struct {
	ID               string         `json:"id"`
	SessionID        string         `json:"session_id"`
	UserID           string         `json:"user_id"`
	Steps            []WorkflowStep `json:"steps"`
	CurrentStepIndex int            `json:"current_step_index"`
	OverallStatus    WorkflowStatus `json:"overall_status"`
	PauseReason      string         `json:"pause_reason,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Clone returns a copy whose Steps do not alias the receiver's, so a
// snapshot handed out today is not rewritten by tomorrow's mutation. Step
// Data and Result maps are attached wholesale and never edited in place,
// so the step copy is enough.
func (w *WorkflowProgress) Clone() WorkflowProgress {
	out := *w
	out.Steps = make([]WorkflowStep, len(w.Steps))
	copy(out.Steps, w.Steps)
	return out
}

// FirstIncompleteStep returns the index of the first step that has not
// completed, or -1 when every step is done.
func (w *WorkflowProgress) FirstIncompleteStep() int {
	for i := range w.Steps {
		if w.Steps[i].Status != StepStatusCompleted {
			return i
		}
	}
	return -1
}

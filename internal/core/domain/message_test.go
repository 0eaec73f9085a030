package domain

import "testing"

func TestValidMessageTransition_Forward(t *testing.T) {
	cases := []struct {
		from, to MessageStatus
		want     bool
	}{
		{MessageStatusQueued, MessageStatusProcessing, true},
		{MessageStatusProcessing, MessageStatusDisplayed, true},
		{MessageStatusQueued, MessageStatusDisplayed, true}, // skipping forward is still forward
		{MessageStatusProcessing, MessageStatusQueued, false},
		{MessageStatusDisplayed, MessageStatusProcessing, false},
		{MessageStatusDisplayed, MessageStatusQueued, false},
		{MessageStatusQueued, MessageStatusQueued, false},
	}

	for _, c := range cases {
		if got := ValidMessageTransition(c.from, c.to); got != c.want {
			t.Errorf("ValidMessageTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestValidMessageTransition_Failed(t *testing.T) {
	if !ValidMessageTransition(MessageStatusQueued, MessageStatusFailed) {
		t.Error("queued -> failed should be allowed")
	}
	if !ValidMessageTransition(MessageStatusProcessing, MessageStatusFailed) {
		t.Error("processing -> failed should be allowed")
	}
	if ValidMessageTransition(MessageStatusDisplayed, MessageStatusFailed) {
		t.Error("displayed is terminal, failed must not be reachable")
	}
	if ValidMessageTransition(MessageStatusFailed, MessageStatusQueued) {
		t.Error("failed is terminal")
	}
}

func TestStepTransition(t *testing.T) {
	if !ValidStepTransition(StepStatusPending, StepStatusActive) {
		t.Error("pending -> active should be allowed")
	}
	if ValidStepTransition(StepStatusPending, StepStatusCompleted) {
		t.Error("a step cannot complete before being active")
	}
	if !ValidStepTransition(StepStatusActive, StepStatusFailed) {
		t.Error("active -> failed should be allowed")
	}
	if ValidStepTransition(StepStatusCompleted, StepStatusActive) {
		t.Error("completed is terminal for a step")
	}
}

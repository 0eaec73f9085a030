package health

import (
	"context"
	"errors"
	"testing"

	"github.com/vietddude/translive/internal/core/domain"
	"github.com/vietddude/translive/internal/workflow"
)

// =============================================================================
// Mocks
// =============================================================================

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }

type mockStorage struct {
	err error
}

func (m *mockStorage) Health(ctx context.Context) error { return m.err }

type stubConnection struct {
	status domain.ConnectionStatus
}

func (s *stubConnection) Status() domain.ConnectionStatus { return s.status }

type stubQueue struct {
	total  int
	failed int
}

func (s *stubQueue) Len() int { return s.total }
func (s *stubQueue) Failed() []domain.Message {
	return make([]domain.Message, s.failed)
}

type stubWorkflows struct {
	stats workflow.Statistics
}

func (s *stubWorkflows) Statistics() workflow.Statistics { return s.stats }

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Healthy(t *testing.T) {
	monitor := NewMonitor(
		&mockPinger{},
		&mockStorage{},
		&stubConnection{status: domain.ConnectionStatus{IsConnected: true}},
		&stubQueue{total: 3},
		&stubWorkflows{stats: workflow.Statistics{Total: 1}},
	)

	report := monitor.CheckHealth(context.Background())

	if status := Aggregate(report); status != StatusHealthy {
		t.Errorf("expected healthy, got %s", status)
	}
	if len(report) != 5 {
		t.Errorf("expected report for 5 components, got %d", len(report))
	}
}

func TestMonitor_DegradedWhileReconnecting(t *testing.T) {
	monitor := NewMonitor(
		&mockPinger{},
		nil,
		&stubConnection{status: domain.ConnectionStatus{IsRetrying: true, RetryAttempt: 2}},
		nil,
		nil,
	)

	report := monitor.CheckHealth(context.Background())

	if report["connection"].Status != StatusDegraded {
		t.Errorf("expected degraded connection, got %s", report["connection"].Status)
	}
	if status := Aggregate(report); status != StatusDegraded {
		t.Errorf("expected degraded, got %s", status)
	}
}

func TestMonitor_CriticalWhenRealtimeDown(t *testing.T) {
	monitor := NewMonitor(
		&mockPinger{err: errors.New("connection refused")},
		nil, nil, nil, nil,
	)

	report := monitor.CheckHealth(context.Background())

	if status := Aggregate(report); status != StatusCritical {
		t.Errorf("expected critical, got %s", status)
	}
}

func TestMonitor_FailedMessagesDegrade(t *testing.T) {
	monitor := NewMonitor(nil, nil, nil, &stubQueue{total: 5, failed: 2}, nil)

	report := monitor.CheckHealth(context.Background())

	if report["queue"].Status != StatusDegraded {
		t.Errorf("expected degraded queue, got %s", report["queue"].Status)
	}
}

func TestMonitor_ManyFailedMessagesCritical(t *testing.T) {
	monitor := NewMonitor(nil, nil, nil, &stubQueue{total: 30, failed: 25}, nil)

	report := monitor.CheckHealth(context.Background())

	if report["queue"].Status != StatusCritical {
		t.Errorf("expected critical queue, got %s", report["queue"].Status)
	}
}

func TestMonitor_RecoverableWorkflowsDegrade(t *testing.T) {
	monitor := NewMonitor(nil, nil, nil, nil, &stubWorkflows{
		stats: workflow.Statistics{
			Total:    2,
			ByStatus: map[domain.WorkflowStatus]int{domain.WorkflowStatusRecoverable: 1},
		},
	})

	report := monitor.CheckHealth(context.Background())

	if report["workflows"].Status != StatusDegraded {
		t.Errorf("expected degraded workflows, got %s", report["workflows"].Status)
	}
}

func TestMonitor_RateLimitsChecks(t *testing.T) {
	pinger := &mockPinger{}
	monitor := NewMonitor(pinger, nil, nil, nil, nil)

	first := monitor.CheckHealth(context.Background())

	// The backend goes down, but within the rate limit window the cached
	// report is served
	pinger.err = errors.New("connection refused")
	second := monitor.CheckHealth(context.Background())

	if first["realtime"].Status != second["realtime"].Status {
		t.Errorf("expected cached report, got %s then %s",
			first["realtime"].Status, second["realtime"].Status)
	}
}

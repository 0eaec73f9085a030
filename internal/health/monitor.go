package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/translive/internal/core/domain"
	"github.com/vietddude/translive/internal/workflow"
)

// Pinger probes the realtime backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageChecker probes the archive database.
type StorageChecker interface {
	Health(ctx context.Context) error
}

// ConnectionReporter exposes the recovery loop's view of the connection.
type ConnectionReporter interface {
	Status() domain.ConnectionStatus
}

// QueueInspector exposes queue depth and failures.
type QueueInspector interface {
	Len() int
	Failed() []domain.Message
}

// WorkflowInspector exposes workflow counts by status.
type WorkflowInspector interface {
	Statistics() workflow.Statistics
}

// Thresholds before a component is reported degraded or critical.
const (
	failedMessagesDegraded = 1
	failedMessagesCritical = 20
)

// Monitor aggregates health status from the subsystems. Any collaborator may
// be nil, in which case its component is omitted from the report.
type Monitor struct {
	pinger     Pinger
	storage    StorageChecker
	connection ConnectionReporter
	queue      QueueInspector
	workflows  WorkflowInspector

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport map[string]ComponentHealth
}

// NewMonitor creates a new health monitor.
func NewMonitor(
	pinger Pinger,
	storage StorageChecker,
	connection ConnectionReporter,
	queue QueueInspector,
	workflows WorkflowInspector,
) *Monitor {
	return &Monitor{
		pinger:     pinger,
		storage:    storage,
		connection: connection,
		queue:      queue,
		workflows:  workflows,
		lastReport: make(map[string]ComponentHealth),
	}
}

// CheckHealth probes every subsystem. Checks are rate limited (max once per
// 10s) to avoid spamming the backends from scraped endpoints.
func (m *Monitor) CheckHealth(ctx context.Context) map[string]ComponentHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && len(m.lastReport) > 0 {
		return m.lastReport
	}

	report := make(map[string]ComponentHealth)

	if m.pinger != nil {
		c := ComponentHealth{Component: "realtime", Status: StatusHealthy}
		if err := m.pinger.Ping(ctx); err != nil {
			c.Status = StatusCritical
			c.Detail = err.Error()
		}
		report["realtime"] = c
	}

	if m.storage != nil {
		c := ComponentHealth{Component: "storage", Status: StatusHealthy}
		if err := m.storage.Health(ctx); err != nil {
			c.Status = StatusCritical
			c.Detail = err.Error()
		}
		report["storage"] = c
	}

	if m.connection != nil {
		c := ComponentHealth{Component: "connection", Status: StatusHealthy}
		status := m.connection.Status()
		switch {
		case status.IsRetrying:
			c.Status = StatusDegraded
			c.Detail = fmt.Sprintf("reconnecting, attempt %d", status.RetryAttempt)
		case !status.IsConnected:
			c.Status = StatusCritical
			c.Detail = status.LastError
		}
		report["connection"] = c
	}

	if m.queue != nil {
		c := ComponentHealth{Component: "queue", Status: StatusHealthy}
		failed := len(m.queue.Failed())
		switch {
		case failed >= failedMessagesCritical:
			c.Status = StatusCritical
		case failed >= failedMessagesDegraded:
			c.Status = StatusDegraded
		}
		if failed > 0 {
			c.Detail = fmt.Sprintf("%d failed of %d queued", failed, m.queue.Len())
		}
		report["queue"] = c
	}

	if m.workflows != nil {
		c := ComponentHealth{Component: "workflows", Status: StatusHealthy}
		stats := m.workflows.Statistics()
		recoverable := stats.ByStatus[domain.WorkflowStatusRecoverable]
		if recoverable > 0 {
			c.Status = StatusDegraded
			c.Detail = fmt.Sprintf("%d recoverable of %d total", recoverable, stats.Total)
		}
		report["workflows"] = c
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesQueued tracks messages entering the queue per session
	MessagesQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translive_messages_queued_total",
			Help: "Total number of messages queued",
		},
		[]string{"session"},
	)

	// MessagesFailed tracks messages that ended in the failed state
	MessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translive_messages_failed_total",
			Help: "Total number of messages that failed",
		},
		[]string{"session"},
	)

	// MessageLatency tracks end-to-end delivery latency
	MessageLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "translive_message_latency_seconds",
			Help:    "End-to-end message delivery latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ReconnectAttempts tracks connection recovery attempts
	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "translive_reconnect_attempts_total",
			Help: "Total number of reconnect attempts",
		},
	)

	// LiveSubscriptions tracks currently open realtime subscriptions
	LiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "translive_live_subscriptions",
			Help: "Number of currently open realtime subscriptions",
		},
	)

	// WorkflowsResumed tracks workflows restored after an interruption
	WorkflowsResumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "translive_workflows_resumed_total",
			Help: "Total number of workflows resumed",
		},
	)

	// PipelineStageDuration tracks per-stage pipeline latency
	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "translive_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
)

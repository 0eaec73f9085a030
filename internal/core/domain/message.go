package domain

import "time"

// MessageStatus tracks a message through the delivery lifecycle.
type MessageStatus string

const (
	MessageStatusQueued     MessageStatus = "queued"
	MessageStatusProcessing MessageStatus = "processing"
	MessageStatusDisplayed  MessageStatus = "displayed"
	MessageStatusFailed     MessageStatus = "failed"
)

// statusRank orders the forward-only progression queued -> processing -> displayed.
var statusRank = map[MessageStatus]int{
	MessageStatusQueued:     0,
	MessageStatusProcessing: 1,
	MessageStatusDisplayed:  2,
}

// Terminal reports whether no further transitions are allowed from this status.
func (s MessageStatus) Terminal() bool {
	return s == MessageStatusDisplayed || s == MessageStatusFailed
}

// ValidMessageTransition enforces the message state machine: status only moves
// forward in the queued -> processing -> displayed ordering, and failed is
// reachable from any non-terminal status.
func ValidMessageTransition(from, to MessageStatus) bool {
	if to == MessageStatusFailed {
		return !from.Terminal()
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// PerformanceMetrics records per-stage latency for a delivered message.
type PerformanceMetrics struct {
	TranscriptionMs int64 `json:"transcription_ms,omitempty"`
	TranslationMs   int64 `json:"translation_ms,omitempty"`
	EndToEndMs      int64 `json:"end_to_end_ms,omitempty"`
}

// Message is one utterance exchanged in a session. It is owned by the queue
// until displayed, after which it is immutable history.
type Message struct {
	ID                 string             `json:"id"`
	SessionID          string             `json:"session_id"`
	UserID             string             `json:"user_id"`
	OriginalText       string             `json:"original_text"`
	Translation        string             `json:"translation,omitempty"`
	OriginalLanguage   string             `json:"original_language"`
	TargetLanguage     string             `json:"target_language"`
	Status             MessageStatus      `json:"status"`
	RetryCount         int                `json:"retry_count,omitempty"`
	QueuedAt           time.Time          `json:"queued_at"`
	ProcessedAt        time.Time          `json:"processed_at,omitempty"`
	DisplayedAt        time.Time          `json:"displayed_at,omitempty"`
	PerformanceMetrics PerformanceMetrics `json:"performance_metrics,omitempty"`
}

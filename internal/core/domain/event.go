package domain

import "time"

// EventType classifies realtime events pushed between participants.
type EventType string

const (
	EventMessageQueued    EventType = "message_queued"
	EventMessageUpdated   EventType = "message_updated"
	EventMessageDelivered EventType = "message_delivered"
	EventParticipantJoin  EventType = "participant_join"
	EventParticipantLeave EventType = "participant_leave"
	EventSessionExtended  EventType = "session_extended"
)

// Event is the envelope published on a session's realtime channel.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionChannel is the pub/sub topic scoped to a session.
func SessionChannel(sessionID string) string {
	return "translive:session:" + sessionID
}

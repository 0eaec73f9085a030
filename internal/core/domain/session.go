package domain

import "time"

// ConnectionState tracks one membership's connection lifecycle.
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionReconnecting ConnectionState = "reconnecting"
)

// Session is the shared session record both participants attach to.
type Session struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	HostUserID     string    `json:"host_user_id"`
	SourceLanguage string    `json:"source_language"`
	TargetLanguage string    `json:"target_language"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Expired reports whether the session lease has lapsed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// SessionState is the observable state owned by one session manager instance.
type SessionState struct {
	Session           *Session        `json:"session,omitempty"`
	ConnectionState   ConnectionState `json:"connection_state"`
	Err               error           `json:"-"`
	ReconnectAttempts int             `json:"reconnect_attempts"`
}

// Clone returns a copy whose Session does not alias the receiver's, so a
// state snapshot is not rewritten by a later lease extension.
func (s SessionState) Clone() SessionState {
	out := s
	if s.Session != nil {
		session := *s.Session
		out.Session = &session
	}
	return out
}

// ConnectionStatus is the derived, transient view exposed for display.
// It is never persisted.
type ConnectionStatus struct {
	IsConnected  bool   `json:"is_connected"`
	IsRetrying   bool   `json:"is_retrying"`
	RetryAttempt int    `json:"retry_attempt"`
	LastError    string `json:"last_error,omitempty"`
}

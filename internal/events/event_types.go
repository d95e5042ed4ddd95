package events

import (
	"time"
)

// EventType enumerates security event identifiers.
type EventType string

const (
	EventAuthSucceeded  EventType = "auth_succeeded"
	EventAuthFailed     EventType = "auth_failed"
	EventAccessDenied   EventType = "access_denied"
	EventSessionCreated EventType = "session_created"
	EventSessionRevoked EventType = "session_revoked"
	EventRateLimited    EventType = "rate_limited"
)

// Event is a security event emitted by the authorization engine. SubjectID
// is empty when the caller could not be identified.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SubjectID string    `json:"subject_id,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

package domain

import (
	"fmt"
	"time"
)

type EventType string

const (
	EventSessionStarted  EventType = "session.started"
	EventSessionPaused   EventType = "session.paused"
	EventSessionResumed  EventType = "session.resumed"
	EventSessionStopped  EventType = "session.stopped"
	EventSessionSwitched EventType = "session.switched"
)

// Event describes one lifecycle transition for downstream consumers.
type Event struct {
	ID         string
	Type       EventType
	UserID     string
	SessionID  string
	OccurredAt time.Time
	Session    Session
}

// NewEvent derives the event ID from session id, type and version so a redelivery keeps its ID.
func NewEvent(eventType EventType, session Session, at time.Time) Event {
	return Event{
		ID:         fmt.Sprintf("%s:%s:%d", session.ID, eventType, session.Version),
		Type:       eventType,
		UserID:     session.UserID,
		SessionID:  session.ID,
		OccurredAt: at.UTC(),
		Session:    session,
	}
}

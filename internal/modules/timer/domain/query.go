package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	apperrors "tempo/internal/platform/errors"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Filter narrows session history queries. Zero values mean "any".
type Filter struct {
	UserID    string
	TaskID    string
	Type      SessionType
	Completed *bool
	From      time.Time
	To        time.Time
}

// Cursor points at the last session of a page in (started_at DESC, id DESC) order.
type Cursor struct {
	StartedAt time.Time
	ID        string
}

type Page struct {
	Cursor *Cursor
	Limit  int
}

type SessionPage struct {
	Sessions []Session
	Next     *Cursor
}

func (p Page) Normalize() Page {
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageSize
	case p.Limit > MaxPageSize:
		p.Limit = MaxPageSize
	}
	return p
}

// EncodeCursor serialises the cursor to an opaque token.
func EncodeCursor(c *Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%s", c.StartedAt.UTC().Format(time.RFC3339Nano), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. Empty input yields nil.
func DecodeCursor(token string) (*Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", apperrors.ErrInvalidInput)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("%w: malformed cursor", apperrors.ErrInvalidInput)
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor time", apperrors.ErrInvalidInput)
	}
	return &Cursor{StartedAt: ts, ID: parts[1]}, nil
}

// Stats aggregates finished sessions started inside a window.
type Stats struct {
	TotalSessions       int
	CompletedSessions   int
	InterruptedSessions int
	TotalTime           time.Duration
	WorkTime            time.Duration
	BreakTime           time.Duration
	PauseTime           time.Duration
	TotalPauses         int
}

func (s Stats) AverageSession() time.Duration {
	if s.TotalSessions == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.TotalSessions)
}

func (s Stats) CompletionRate() float64 {
	if s.TotalSessions == 0 {
		return 0
	}
	return float64(s.CompletedSessions) / float64(s.TotalSessions)
}

type TaskTimeStats struct {
	TaskID            string
	Sessions          int
	CompletedSessions int
	TotalTime         time.Duration
	FirstStartedAt    *time.Time
	LastEndedAt       *time.Time
}

func (s TaskTimeStats) AverageSession() time.Duration {
	if s.Sessions == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.Sessions)
}

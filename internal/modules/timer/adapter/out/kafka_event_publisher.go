package out

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"tempo/internal/modules/timer/domain"
	timerout "tempo/internal/modules/timer/port/out"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventPublisher writes session events keyed by user so one user's events stay ordered.
type KafkaEventPublisher struct {
	writer messageWriter
}

var _ timerout.EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(brokers []string, topic string) *KafkaEventPublisher {
	return NewKafkaEventPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	})
}

func NewKafkaEventPublisherWithWriter(w messageWriter) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: w}
}

type sessionEventPayload struct {
	EventID         string     `json:"event_id"`
	EventType       string     `json:"event_type"`
	OccurredAt      time.Time  `json:"occurred_at"`
	SessionID       string     `json:"session_id"`
	UserID          string     `json:"user_id"`
	TaskID          string     `json:"task_id,omitempty"`
	Category        string     `json:"category,omitempty"`
	Type            string     `json:"type"`
	State           string     `json:"state"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds float64    `json:"duration_seconds"`
	PauseCount      int        `json:"pause_count"`
	PauseSeconds    float64    `json:"pause_seconds"`
	WasCompleted    bool       `json:"was_completed"`
	WasInterrupted  bool       `json:"was_interrupted"`
	ParentSessionID string     `json:"parent_session_id,omitempty"`
	SplitReason     string     `json:"split_reason,omitempty"`
	Version         int        `json:"version"`
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event domain.Event) error {
	s := event.Session
	payload, err := json.Marshal(sessionEventPayload{
		EventID:         event.ID,
		EventType:       string(event.Type),
		OccurredAt:      event.OccurredAt,
		SessionID:       s.ID,
		UserID:          s.UserID,
		TaskID:          s.TaskID,
		Category:        s.Category,
		Type:            string(s.Type),
		State:           string(s.State()),
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
		DurationSeconds: s.Duration.Seconds(),
		PauseCount:      s.PauseCount,
		PauseSeconds:    s.TotalPauseTime.Seconds(),
		WasCompleted:    s.WasCompleted,
		WasInterrupted:  s.WasInterrupted,
		ParentSessionID: s.ParentSessionID,
		SplitReason:     s.SplitReason,
		Version:         s.Version,
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

// NoopEventPublisher drops events when no broker is configured.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, domain.Event) error { return nil }

package out_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	timeradapter "tempo/internal/modules/timer/adapter/out"
	"tempo/internal/modules/timer/domain"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaEventPublisherEncodesSession(t *testing.T) {
	t.Parallel()
	w := &captureWriter{}
	pub := timeradapter.NewKafkaEventPublisherWithWriter(w)

	s, err := domain.NewSession(domain.NewSessionParams{ID: "s1", UserID: "u1", TaskID: "a", Type: domain.SessionTypeWork, StartedAt: t0})
	require.NoError(t, err)
	s, err = s.Stop(t0.Add(25*time.Minute), true, false)
	require.NoError(t, err)
	s.Version = 2

	event := domain.NewEvent(domain.EventSessionStopped, s, t0.Add(25*time.Minute))
	require.NoError(t, pub.Publish(context.Background(), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	require.Equal(t, "u1", string(msg.Key))
	require.Equal(t, "s1:session.stopped:2", event.ID)
	require.Equal(t, kafka.Header{Key: "event_type", Value: []byte("session.stopped")}, msg.Headers[0])

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	require.Equal(t, "STOPPED", body["state"])
	require.Equal(t, 1500.0, body["duration_seconds"])
	require.Equal(t, true, body["was_completed"])
	require.NotContains(t, body, "split_reason")

	require.NoError(t, pub.Close())
	require.True(t, w.closed)
}

func TestKafkaEventPublisherWrapsWriteErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("broker down")
	pub := timeradapter.NewKafkaEventPublisherWithWriter(&captureWriter{err: boom})
	s, err := domain.NewSession(domain.NewSessionParams{ID: "s1", UserID: "u1", Type: domain.SessionTypeWork, StartedAt: t0})
	require.NoError(t, err)

	err = pub.Publish(context.Background(), domain.NewEvent(domain.EventSessionStarted, s, t0))
	require.ErrorIs(t, err, boom)
	require.NoError(t, timeradapter.NoopEventPublisher{}.Publish(context.Background(), domain.Event{}))
}

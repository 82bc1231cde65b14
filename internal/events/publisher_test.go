package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventSessionCompleted, SessionFinishedEvent{SessionID: 7, Status: "completed"})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventSessionCompleted, event.Type)
	assert.Equal(t, "exam-service", event.Source)
	assert.Equal(t, "1.0", event.Version)
	assert.False(t, event.Timestamp.IsZero())
	assert.NotEqual(t, event.ID, NewEvent(EventSessionCompleted, nil).ID)
}

func TestGoChannelEventPublisher_DeliversJSON(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	publisher, pubSub := NewGoChannelEventPublisher(PublisherConfig{TopicName: "exam-events", Logger: discardLogger()})
	defer publisher.Close()

	messages, err := pubSub.Subscribe(ctx, "exam-events")
	require.NoError(t, err)

	event := NewEvent(EventPaperPublished, PaperStatusEvent{PaperID: 3, Title: "Midterm", Status: "published"})
	require.NoError(t, publisher.Publish(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, string(EventPaperPublished), msg.Metadata.Get("event_type"))

		var decoded Event
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, event.Type, decoded.Type)
		data, ok := decoded.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "Midterm", data["title"])
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestMockEventPublisher(t *testing.T) {
	mock := NewMockEventPublisher(discardLogger())
	ctx := context.Background()

	require.NoError(t, mock.Publish(ctx, NewEvent(EventSessionStarted, nil)))
	require.NoError(t, mock.Publish(ctx, NewEvent(EventSessionExpired, nil)))

	assert.Len(t, mock.GetPublishedEvents(), 2)
	assert.Len(t, mock.EventsOfType(EventSessionExpired), 1)

	mock.ClearEvents()
	assert.Empty(t, mock.GetPublishedEvents())
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	metaEventType    = "event_type"
	metaSource       = "source"
	metaVersion      = "version"
	metaOccurredAt   = "occurred_at"
	metaPartitionKey = "partition_key"

	goChannelBuffer = 64
)

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

type PublisherConfig struct {
	KafkaBrokers []string
	TopicName    string
	Logger       *slog.Logger
}

// WatermillEventPublisher writes each event as one JSON message to a single topic.
type WatermillEventPublisher struct {
	backend message.Publisher
	topic   string
	log     *slog.Logger
}

// NewKafkaEventPublisher publishes to Kafka, partitioning by event type so
// events of one kind keep their relative order.
func NewKafkaEventPublisher(config PublisherConfig) (*WatermillEventPublisher, error) {
	marshaler := kafka.NewWithPartitioningMarshaler(func(_ string, msg *message.Message) (string, error) {
		return msg.Metadata.Get(metaPartitionKey), nil
	})

	backend, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   config.KafkaBrokers,
		Marshaler: marshaler,
	}, watermill.NewSlogLogger(config.Logger))
	if err != nil {
		return nil, fmt.Errorf("kafka publisher for %v: %w", config.KafkaBrokers, err)
	}
	return newWatermillPublisher(backend, config), nil
}

// NewGoChannelEventPublisher keeps events in process. Subscribe on the
// returned GoChannel to consume them.
func NewGoChannelEventPublisher(config PublisherConfig) (*WatermillEventPublisher, *gochannel.GoChannel) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: goChannelBuffer},
		watermill.NewSlogLogger(config.Logger),
	)
	return newWatermillPublisher(pubSub, config), pubSub
}

func newWatermillPublisher(backend message.Publisher, config PublisherConfig) *WatermillEventPublisher {
	return &WatermillEventPublisher{
		backend: backend,
		topic:   config.TopicName,
		log:     config.Logger.With("topic", config.TopicName),
	}
}

func toMessage(ctx context.Context, event *Event) (*message.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata = message.Metadata{
		metaEventType:    string(event.Type),
		metaSource:       event.Source,
		metaVersion:      event.Version,
		metaOccurredAt:   event.Timestamp.Format(time.RFC3339Nano),
		metaPartitionKey: string(event.Type),
	}
	return msg, nil
}

func (p *WatermillEventPublisher) Publish(ctx context.Context, event *Event) error {
	msg, err := toMessage(ctx, event)
	if err != nil {
		return err
	}

	if err := p.backend.Publish(p.topic, msg); err != nil {
		p.log.Error("event not delivered", "event_id", event.ID, "event_type", event.Type, "error", err)
		return fmt.Errorf("publish %s event %s: %w", event.Type, event.ID, err)
	}
	p.log.Debug("event delivered", "event_id", event.ID, "event_type", event.Type)
	return nil
}

func (p *WatermillEventPublisher) Close() error {
	return p.backend.Close()
}

// MockEventPublisher records events instead of sending them. It serves tests
// and deployments with publishing switched off.
type MockEventPublisher struct {
	mu       sync.Mutex
	recorded []Event
	log      *slog.Logger
}

func NewMockEventPublisher(logger *slog.Logger) *MockEventPublisher {
	return &MockEventPublisher{log: logger}
}

func (m *MockEventPublisher) Publish(_ context.Context, event *Event) error {
	m.mu.Lock()
	m.recorded = append(m.recorded, *event)
	m.mu.Unlock()

	m.log.Debug("event recorded", "event_id", event.ID, "event_type", event.Type)
	return nil
}

func (m *MockEventPublisher) Close() error { return nil }

// GetPublishedEvents returns a snapshot of the recorded events in publish order.
func (m *MockEventPublisher) GetPublishedEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make([]Event, len(m.recorded))
	copy(snapshot, m.recorded)
	return snapshot
}

func (m *MockEventPublisher) EventsOfType(eventType EventType) []Event {
	var matched []Event
	for _, event := range m.GetPublishedEvents() {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func (m *MockEventPublisher) ClearEvents() {
	m.mu.Lock()
	m.recorded = nil
	m.mu.Unlock()
}

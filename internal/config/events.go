package config

import (
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/events"
)

// EventConfig holds configuration for event publishing
type EventConfig struct {
	Enabled      bool
	Publisher    string // kafka, gochannel or mock
	KafkaBrokers string
	Topic        string
}

func loadEventConfig() EventConfig {
	return EventConfig{
		Enabled:      getEnvBool("EVENTS_ENABLED", true),
		Publisher:    getEnv("EVENTS_PUBLISHER", "gochannel"),
		KafkaBrokers: getEnv("KAFKA_BROKERS", "localhost:9092"),
		Topic:        getEnv("EVENTS_TOPIC", "exam-events"),
	}
}

// GetKafkaBrokers returns Kafka brokers as a slice
func (c *EventConfig) GetKafkaBrokers() []string {
	brokers := strings.Split(c.KafkaBrokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	return brokers
}

// CreateEventPublisher creates an event publisher based on configuration
func (c *EventConfig) CreateEventPublisher(logger *slog.Logger) (events.EventPublisher, error) {
	if !c.Enabled {
		logger.Info("Event publishing disabled, using mock publisher")
		return events.NewMockEventPublisher(logger), nil
	}

	cfg := events.PublisherConfig{
		KafkaBrokers: c.GetKafkaBrokers(),
		TopicName:    c.Topic,
		Logger:       logger,
	}

	switch c.Publisher {
	case "kafka":
		logger.Info("Creating Kafka event publisher", "brokers", c.KafkaBrokers, "topic", c.Topic)
		return events.NewKafkaEventPublisher(cfg)
	case "gochannel":
		logger.Info("Creating in-process event publisher", "topic", c.Topic)
		publisher, _ := events.NewGoChannelEventPublisher(cfg)
		return publisher, nil
	case "mock":
		logger.Info("Using mock event publisher")
		return events.NewMockEventPublisher(logger), nil
	default:
		logger.Warn("Unknown event publisher type, falling back to mock", "publisher", c.Publisher)
		return events.NewMockEventPublisher(logger), nil
	}
}

package config

import (
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/test-attempt-service/internal/events"
)

const (
	PublisherKafka = "kafka"
	PublisherAMQP  = "amqp"
	PublisherMock  = "mock"
)

// EventConfig holds configuration for attempt event publishing
type EventConfig struct {
	Enabled      bool
	Publisher    string // kafka, amqp or mock
	KafkaBrokers string
	AttemptTopic string
	AMQPURL      string
	AMQPExchange string
}

// GetKafkaBrokers returns Kafka brokers as a slice
func (c *EventConfig) GetKafkaBrokers() []string {
	return splitList(c.KafkaBrokers)
}

// CreateEventPublisher creates an event publisher based on configuration
func (c *EventConfig) CreateEventPublisher(logger *slog.Logger) (events.EventPublisher, error) {
	if !c.Enabled {
		logger.Info("Event publishing disabled, using mock publisher")
		return events.NewMockEventPublisher(logger), nil
	}

	switch strings.ToLower(c.Publisher) {
	case PublisherKafka:
		logger.Info("Creating Kafka event publisher",
			"brokers", c.KafkaBrokers,
			"topic", c.AttemptTopic)

		return events.NewKafkaEventPublisher(events.PublisherConfig{
			KafkaBrokers: c.GetKafkaBrokers(),
			TopicName:    c.AttemptTopic,
			Logger:       logger,
		})
	case PublisherAMQP:
		logger.Info("Creating AMQP event publisher", "exchange", c.AMQPExchange)
		return events.NewAMQPEventPublisher(c.AMQPURL, c.AMQPExchange, logger)
	case PublisherMock:
		logger.Info("Using mock event publisher")
		return events.NewMockEventPublisher(logger), nil
	default:
		logger.Warn("Unknown event publisher type, falling back to mock", "publisher", c.Publisher)
		return events.NewMockEventPublisher(logger), nil
	}
}

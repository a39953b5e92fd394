package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	DefaultTopic      = "research.completed"
	EventRunCompleted = "research.completed"
)

// RunCompleted is published once per background run, after delivery.
type RunCompleted struct {
	Type          string    `json:"type"`
	RunID         string    `json:"run_id"`
	Status        string    `json:"status"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	TotalFetched  int       `json:"total_fetched"`
	RelevantCount int       `json:"relevant_count"`
	Delivered     bool      `json:"delivered"`
	CompletedAt   time.Time `json:"completed_at"`
}

type Publisher interface {
	PublishRunCompleted(ctx context.Context, event RunCompleted) error
	Close() error
}

type messageWriter interface {
	PublishWithKey(ctx context.Context, topic string, key, msg []byte) error
	Close() error
}

type EventPublisher struct {
	client messageWriter
	topic  string
}

func NewEventPublisher(client *KafkaClient, topic string) *EventPublisher {
	return newEventPublisher(client, topic)
}

func newEventPublisher(client messageWriter, topic string) *EventPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &EventPublisher{client: client, topic: topic}
}

func (p *EventPublisher) PublishRunCompleted(ctx context.Context, event RunCompleted) error {
	event.Type = EventRunCompleted
	if event.CompletedAt.IsZero() {
		event.CompletedAt = time.Now().UTC()
	}
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}
	return p.client.PublishWithKey(ctx, p.topic, []byte(event.RunID), msg)
}

func (p *EventPublisher) Close() error {
	return p.client.Close()
}

// NopPublisher drops every event; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishRunCompleted(context.Context, RunCompleted) error { return nil }
func (NopPublisher) Close() error                                            { return nil }

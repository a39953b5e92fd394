package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaClient struct {
	writer *kafka.Writer
	url    string
}

// NewClient creates a Kafka client for the given broker URL and checks that
// the broker is reachable.
func NewClient(url string) (*KafkaClient, error) {
	if url == "" {
		return nil, fmt.Errorf("kafka URL cannot be empty")
	}

	// topic is set per message
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(url),
		Balancer:               &kafka.Hash{},
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to kafka: %w", err)
	}
	conn.Close()

	return &KafkaClient{writer: writer, url: url}, nil
}

// PublishWithKey sends msg to topic. Messages sharing a key land on the same
// partition.
func (k *KafkaClient) PublishWithKey(ctx context.Context, topic string, key, msg []byte) error {
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	message := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: msg,
		Time:  time.Now(),
	}
	if err := k.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return nil
}

func (k *KafkaClient) Close() error {
	if k.writer != nil {
		return k.writer.Close()
	}
	return nil
}

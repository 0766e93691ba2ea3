package kafka

import (
	"context"
	"encoding/json"
	"time"

	"go-ledger-ws/internal/events"

	"github.com/segmentio/kafka-go"
)

// Publisher writes ledger events to Kafka. Each event topic is prefixed so
// several deployments can share a cluster.
type Publisher struct {
	writer *kafka.Writer
	prefix string
}

func NewPublisher(brokers []string, topicPrefix string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           5 * time.Second,
		},
		prefix: topicPrefix,
	}
}

func (p *Publisher) Topic(topic string) string {
	if p.prefix == "" {
		return topic
	}
	return p.prefix + "." + topic
}

func (p *Publisher) Publish(topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := kafka.Message{
		Topic: p.Topic(topic),
		Value: data,
	}
	if k, ok := event.(events.Keyed); ok {
		msg.Key = []byte(k.Key())
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

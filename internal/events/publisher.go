package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/harborview-properties/messaging-service/internal/models"
)

// MessageCreated is emitted after a message is persisted so downstream
// consumers (notification fan-out, mail digests) can react.
type MessageCreated struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Publisher{writer: w}
}

func (p *Publisher) PublishMessageCreated(ctx context.Context, m *models.Message) error {
	evt := MessageCreated{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		CreatedAt:      m.CreatedAt,
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.ConversationID),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *Publisher) Close() error { return p.writer.Close() }

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/model"
	"github.com/segmentio/kafka-go"
)

// Producer publishes mailing events, keyed by mailing id.
type Producer struct {
	w *kafka.Writer
}

func NewProducerFromConfig(c Config) *Producer {
	return &Producer{w: &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

func (p *Producer) PublishMailingCreated(ctx context.Context, ev model.MailingCreated) error {
	msg, err := mailingCreatedMessage(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

func (p *Producer) Close() error { return p.w.Close() }

func mailingCreatedMessage(ev model.MailingCreated) (Message, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return Message{}, fmt.Errorf("marshal mailing event: %w", err)
	}
	return Message{
		Key:   []byte(ev.ID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("mailing.created")},
		},
	}, nil
}

// DecodeMailingCreated parses a message written by PublishMailingCreated.
func DecodeMailingCreated(m Message) (model.MailingCreated, error) {
	var ev model.MailingCreated
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return ev, fmt.Errorf("decode mailing event: %w", err)
	}
	if ev.ID == "" {
		return ev, fmt.Errorf("decode mailing event: missing id")
	}
	return ev, nil
}

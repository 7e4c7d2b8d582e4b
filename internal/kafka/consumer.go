package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/config"
	"github.com/segmentio/kafka-go"
)

type Message = kafka.Message

// Config holds reader and writer settings. Zero values are replaced by withDefaults.
type Config struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int
	MaxBytes       int
	CommitInterval time.Duration
	MaxWait        time.Duration
}

// ConfigFrom maps the kafka config section.
func ConfigFrom(c config.KafkaConfig) Config {
	return Config{
		Brokers:        c.Brokers,
		Topic:          c.Topic,
		GroupID:        c.GroupID,
		MinBytes:       c.MinBytes,
		MaxBytes:       c.MaxBytes,
		CommitInterval: time.Duration(c.CommitInterval) * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	if c.MinBytes <= 0 {
		c.MinBytes = 1 << 10
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 << 20
	}
	if c.CommitInterval <= 0 {
		c.CommitInterval = time.Second
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 50 * time.Millisecond
	}
	return c
}

// Consumer reads mailing events as part of a consumer group. Offsets move only
// on Commit, so a crash between Fetch and Commit redelivers.
type Consumer struct {
	r     *kafka.Reader
	topic string
}

func NewConsumerFromConfig(c Config) *Consumer {
	c = c.withDefaults()
	return &Consumer{
		topic: c.Topic,
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        c.Brokers,
			GroupID:        c.GroupID,
			Topic:          c.Topic,
			MinBytes:       c.MinBytes,
			MaxBytes:       c.MaxBytes,
			CommitInterval: c.CommitInterval,
			MaxWait:        c.MaxWait,
		}),
	}
}

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := c.r.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("commit %d messages on %s: %w", len(msgs), c.topic, err)
	}
	return nil
}

func (c *Consumer) Close() error { return c.r.Close() }

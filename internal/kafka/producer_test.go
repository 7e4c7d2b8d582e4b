package kafka

import (
	"testing"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/config"
	"github.com/Maxim80/devman-async-sms-mailings/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailingCreatedMessage(t *testing.T) {
	ev := model.MailingCreated{
		ID:          "24",
		Text:        "hello",
		Recipients:  "+79123456789",
		PhonesCount: 1,
		CreatedAt:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	msg, err := mailingCreatedMessage(ev)
	require.NoError(t, err)
	assert.Equal(t, []byte("24"), msg.Key)
	assert.JSONEq(t, `{
		"id": "24",
		"text": "hello",
		"recipients": "+79123456789",
		"phones_count": 1,
		"created_at": "2024-05-01T10:00:00Z"
	}`, string(msg.Value))

	back, err := DecodeMailingCreated(msg)
	require.NoError(t, err)
	assert.Equal(t, ev, back)
}

func TestDecodeMailingCreated_Rejects(t *testing.T) {
	_, err := DecodeMailingCreated(Message{Value: []byte("{oops")})
	assert.Error(t, err)

	_, err = DecodeMailingCreated(Message{Value: []byte(`{"text":"no id"}`)})
	assert.Error(t, err)
}

func TestConfigFrom(t *testing.T) {
	c := ConfigFrom(config.KafkaConfig{
		Brokers:        []string{"k:9092"},
		Topic:          "mailings.created",
		GroupID:        "g",
		CommitInterval: 250,
	})
	assert.Equal(t, 250*time.Millisecond, c.CommitInterval)
	assert.Equal(t, "mailings.created", c.Topic)
	assert.Equal(t, []string{"k:9092"}, c.Brokers)

	d := c.withDefaults()
	assert.Equal(t, 250*time.Millisecond, d.CommitInterval)
	assert.Equal(t, 1<<10, d.MinBytes)
	assert.Equal(t, 10<<20, d.MaxBytes)
	assert.Equal(t, 50*time.Millisecond, d.MaxWait)
}

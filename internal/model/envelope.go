package model

import "time"

// MailingCreated is the payload published to Kafka after a mailing is dispatched.
type MailingCreated struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Recipients  string    `json:"recipients"`
	PhonesCount int       `json:"phones_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// MailingCreatedOf converts a stored mailing into its event.
func MailingCreatedOf(m Mailing) MailingCreated {
	return MailingCreated{
		ID:          m.ID,
		Text:        m.Text,
		Recipients:  m.Recipients,
		PhonesCount: m.PhonesCount,
		CreatedAt:   m.CreatedAt,
	}
}

// Mailing converts the event back into a mailing record.
func (e MailingCreated) Mailing() Mailing {
	return Mailing{
		ID:          e.ID,
		Text:        e.Text,
		Recipients:  e.Recipients,
		PhonesCount: e.PhonesCount,
		CreatedAt:   e.CreatedAt,
	}
}

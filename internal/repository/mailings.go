package repository

import (
	"context"

	"github.com/Maxim80/devman-async-sms-mailings/internal/model"
)

// MailingStore persists mailing records and the index of known ids.
//
// AddMailing returns the record as stored, CreatedAt included. GetMailings skips
// ids that have no record. With no ids it returns every mailing in index
// (creation) order.
type MailingStore interface {
	AddMailing(ctx context.Context, id, recipients, text string) (model.Mailing, error)
	ListMailingIDs(ctx context.Context) ([]string, error)
	GetMailings(ctx context.Context, ids ...string) ([]model.Mailing, error)
}

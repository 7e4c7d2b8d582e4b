package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/errs"
	"github.com/Maxim80/devman-async-sms-mailings/internal/model"
	"github.com/Maxim80/devman-async-sms-mailings/internal/util"
	"github.com/jmoiron/sqlx"
)

const MySQLSchema = `
CREATE TABLE IF NOT EXISTS mailings (
    id           VARCHAR(64)  NOT NULL,
    text         TEXT         NOT NULL,
    recipients   TEXT         NOT NULL,
    phones_count INT          NOT NULL,
    created_at   DATETIME(6)  NOT NULL,
    PRIMARY KEY (id),
    KEY idx_mailings_created (created_at, id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// MySQLMailingStore is the relational MailingStore. The index is the
// mailings table itself ordered by (created_at, id).
type MySQLMailingStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewMySQLMailingStore(db *sqlx.DB) *MySQLMailingStore {
	return &MySQLMailingStore{db: db, now: time.Now}
}

func (s *MySQLMailingStore) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	t, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

// AddMailing upserts the record, last write wins.
func (s *MySQLMailingStore) AddMailing(ctx context.Context, id, recipients, text string) (model.Mailing, error) {
	if strings.TrimSpace(id) == "" {
		return model.Mailing{}, errs.Validation("mailing id must not be empty")
	}

	const q = `
		REPLACE INTO mailings
		    (id, text, recipients, phones_count, created_at)
		VALUES
		    (:id, :text, :recipients, :phones_count, :created_at)
	`
	m := model.Mailing{
		ID:          id,
		Text:        text,
		Recipients:  recipients,
		PhonesCount: util.CountPhones(recipients),
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, q, m)
		return err
	})
	if err != nil {
		return model.Mailing{}, fmt.Errorf("add mailing %s: %w: %w", id, errs.ErrStore, err)
	}
	return m, nil
}

func (s *MySQLMailingStore) ListMailingIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM mailings ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("list mailing ids: %w: %w", errs.ErrStore, err)
	}
	return ids, nil
}

func (s *MySQLMailingStore) GetMailings(ctx context.Context, ids ...string) ([]model.Mailing, error) {
	const cols = `SELECT id, text, recipients, phones_count, created_at FROM mailings`

	var rows []model.Mailing
	if len(ids) == 0 {
		if err := s.db.SelectContext(ctx, &rows, cols+` ORDER BY created_at, id`); err != nil {
			return nil, fmt.Errorf("get mailings: %w: %w", errs.ErrStore, err)
		}
		return normalizeTimes(rows), nil
	}

	query, args, err := sqlx.In(cols+` WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get mailings: %w", err)
	}
	query = s.db.Rebind(query)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get mailings: %w: %w", errs.ErrStore, err)
	}

	return orderByIDs(normalizeTimes(rows), ids), nil
}

func normalizeTimes(rows []model.Mailing) []model.Mailing {
	for i := range rows {
		rows[i].CreatedAt = rows[i].CreatedAt.UTC()
	}
	return rows
}

// orderByIDs returns rows in the order of ids, dropping ids without a row.
func orderByIDs(rows []model.Mailing, ids []string) []model.Mailing {
	byID := make(map[string]model.Mailing, len(rows))
	for _, m := range rows {
		byID[m.ID] = m
	}
	out := make([]model.Mailing, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

package repository

import (
	"context"
	"fmt"

	"github.com/Maxim80/devman-async-sms-mailings/internal/model"
	"github.com/jmoiron/sqlx"
)

const ClickHouseSchema = `
CREATE TABLE IF NOT EXISTS mailings_archive (
    id           String,
    text         String,
    recipients   String,
    phones_count UInt32,
    created_at   DateTime64(6, 'UTC')
) ENGINE = ReplacingMergeTree
ORDER BY (created_at, id)`

// MailingArchive is the analytical copy of mailings fed by the archiver worker.
type MailingArchive interface {
	InsertBatch(ctx context.Context, mailings []model.Mailing) error
	ListRecent(ctx context.Context, limit, offset int) ([]model.Mailing, error)
}

type chMailingArchive struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHMailingArchive(ch *sqlx.DB) MailingArchive {
	return &chMailingArchive{ch: ch}
}

// InsertBatch sends all rows as one ClickHouse block.
func (r *chMailingArchive) InsertBatch(ctx context.Context, mailings []model.Mailing) error {
	if len(mailings) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO mailings_archive (id, text, recipients, phones_count, created_at)`)
	if err != nil {
		return fmt.Errorf("prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range mailings {
		if _, err := stmt.ExecContext(ctx, m.ID, m.Text, m.Recipients, uint32(m.PhonesCount), m.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("append %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

func (r *chMailingArchive) ListRecent(ctx context.Context, limit, offset int) ([]model.Mailing, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT id, text, recipients, toInt64(phones_count) AS phones_count, created_at
		FROM mailings_archive FINAL
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	var rows []model.Mailing
	if err := r.ch.SelectContext(ctx, &rows, q, limit, offset); err != nil {
		return nil, err
	}
	return rows, nil
}

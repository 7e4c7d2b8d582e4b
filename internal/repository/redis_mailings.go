package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/errs"
	"github.com/Maxim80/devman-async-sms-mailings/internal/model"
	"github.com/Maxim80/devman-async-sms-mailings/internal/util"
	"github.com/redis/go-redis/v9"
)

const (
	mailingKeyPrefix = "mailing:"
	mailingIndexKey  = "mailings:index"
)

func mailingKey(id string) string { return mailingKeyPrefix + id }

// RedisMailingStore keeps each mailing as JSON under mailing:<id> and the ids
// in the mailings:index sorted set scored by creation time.
type RedisMailingStore struct {
	rdb redis.UniversalClient
	now func() time.Time
}

func NewRedisMailingStore(rdb redis.UniversalClient) *RedisMailingStore {
	return &RedisMailingStore{rdb: rdb, now: time.Now}
}

// AddMailing writes the record and its index entry in one MULTI/EXEC.
func (s *RedisMailingStore) AddMailing(ctx context.Context, id, recipients, text string) (model.Mailing, error) {
	if strings.TrimSpace(id) == "" {
		return model.Mailing{}, errs.Validation("mailing id must not be empty")
	}

	m := model.Mailing{
		ID:          id,
		Text:        text,
		Recipients:  recipients,
		PhonesCount: util.CountPhones(recipients),
		CreatedAt:   s.now().UTC(),
	}
	b, err := json.Marshal(m)
	if err != nil {
		return model.Mailing{}, fmt.Errorf("encode mailing %s: %w", id, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, mailingKey(id), b, 0)
	pipe.ZAdd(ctx, mailingIndexKey, redis.Z{Score: float64(m.CreatedAt.UnixMicro()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return model.Mailing{}, fmt.Errorf("add mailing %s: %w: %w", id, errs.ErrStore, err)
	}

	return m, nil
}

func (s *RedisMailingStore) ListMailingIDs(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.ZRange(ctx, mailingIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list mailing ids: %w: %w", errs.ErrStore, err)
	}
	return ids, nil
}

// GetMailings returns the decodable records among ids in the given order.
// Records that fail to decode are skipped and reported in the error, which
// then matches errs.ErrStore while the rest of the result stays usable.
func (s *RedisMailingStore) GetMailings(ctx context.Context, ids ...string) ([]model.Mailing, error) {
	if len(ids) == 0 {
		var err error
		if ids, err = s.ListMailingIDs(ctx); err != nil {
			return nil, err
		}
	}
	if len(ids) == 0 {
		return []model.Mailing{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = mailingKey(id)
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get mailings: %w: %w", errs.ErrStore, err)
	}

	out := make([]model.Mailing, 0, len(vals))
	var bad []error
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue // missing record
		}
		var m model.Mailing
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			bad = append(bad, fmt.Errorf("decode mailing %s: %w", ids[i], err))
			continue
		}
		out = append(out, m)
	}

	if len(bad) > 0 {
		return out, fmt.Errorf("%w: %w", errs.ErrStore, errors.Join(bad...))
	}
	return out, nil
}

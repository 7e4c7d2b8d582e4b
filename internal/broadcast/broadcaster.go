package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/metrics"
	"github.com/Maxim80/devman-async-sms-mailings/internal/model"
	"github.com/Maxim80/devman-async-sms-mailings/internal/repository"
	"go.uber.org/zap"
)

const DefaultInterval = time.Second

// Broadcaster periodically reads every stored mailing and pushes one status
// frame per mailing to all hub subscribers. The interval is measured from
// the end of one tick to the start of the next.
type Broadcaster struct {
	store    repository.MailingStore
	hub      *Hub
	resolver StatusResolver
	interval time.Duration
	log      *zap.Logger
}

func NewBroadcaster(
	store repository.MailingStore,
	hub *Hub,
	resolver StatusResolver,
	interval time.Duration,
	log *zap.Logger,
) *Broadcaster {
	if resolver == nil {
		resolver = ZeroResolver{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		store:    store,
		hub:      hub,
		resolver: resolver,
		interval: interval,
		log:      log,
	}
}

// Run blocks until ctx is cancelled, then closes all subscribers.
func (b *Broadcaster) Run(ctx context.Context) error {
	defer b.hub.CloseAll()

	b.log.Info("broadcaster started", zap.Duration("interval", b.interval))

	timer := time.NewTimer(b.interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			b.log.Info("broadcaster stopped")
			return nil
		}

		b.safeTick(ctx)

		timer.Reset(b.interval)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
}

func (b *Broadcaster) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.BroadcastTicks.WithLabelValues("panic").Inc()
			b.log.Error("broadcast tick panic recovered", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	start := time.Now()
	err := b.Tick(ctx)
	metrics.BroadcastTickSeconds.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.BroadcastTicks.WithLabelValues("ok").Inc()
	case errors.Is(err, context.Canceled):
	default:
		metrics.BroadcastTicks.WithLabelValues("store_error").Inc()
		b.log.Warn("broadcast tick failed", zap.Error(err))
	}
}

// Tick reads the store once and publishes a frame per mailing. A store read
// failure publishes nothing. Records that cannot be decoded are skipped while
// the rest are still published; the error is returned either way.
func (b *Broadcaster) Tick(ctx context.Context) error {
	ids, err := b.store.ListMailingIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	mailings, readErr := b.store.GetMailings(ctx, ids...)
	if readErr != nil && len(mailings) == 0 {
		return readErr
	}

	if b.hub.Len() == 0 {
		return readErr
	}

	for _, m := range mailings {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		frame := model.NewStatusFrame(model.StatusEventOf(m, b.resolver.Resolve(ctx, m)))
		payload, err := json.Marshal(frame)
		if err != nil {
			b.log.Error("encode status frame", zap.String("mailing_id", m.ID), zap.Error(err))
			continue
		}
		b.hub.Publish(ctx, payload)
	}

	return readErr
}

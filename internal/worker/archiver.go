package worker

import (
	"context"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/kafka"
	"github.com/Maxim80/devman-async-sms-mailings/internal/metrics"
	"github.com/Maxim80/devman-async-sms-mailings/internal/model"
	"github.com/Maxim80/devman-async-sms-mailings/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetcher is the consumer side of the mailing events topic.
type Fetcher interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// Archiver:
// - fetches MailingCreated events from Kafka,
// - batches them into ClickHouse,
// - commits offsets only after the batch is stored (at-least-once; the
//   archive table deduplicates by id).
type Archiver struct {
	Consumer Fetcher
	Archive  repository.MailingArchive

	BatchSize  int           // max buffered rows per flush
	BatchWait  time.Duration // max time to wait before flush
	FetchPause time.Duration // pause after a fetch error

	log *zap.Logger
}

func NewArchiver(consumer Fetcher, archive repository.MailingArchive, log *zap.Logger) *Archiver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Archiver{
		Consumer:   consumer,
		Archive:    archive,
		BatchSize:  200,
		BatchWait:  time.Second,
		FetchPause: 200 * time.Millisecond,
		log:        log,
	}
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *Archiver) Run(ctx context.Context) error {
	if w.BatchSize <= 0 {
		w.BatchSize = 200
	}
	if w.BatchWait <= 0 {
		w.BatchWait = time.Second
	}

	msgCh := make(chan kafka.Message, w.BatchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(msgCh)
		w.runFetcher(gctx, msgCh)
		return nil
	})
	g.Go(func() error {
		w.runBatchWriter(gctx, msgCh)
		return nil
	})

	return g.Wait()
}

func (w *Archiver) runFetcher(ctx context.Context, out chan<- kafka.Message) {
	for {
		m, err := w.Consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Warn("kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.FetchPause):
			}
			continue
		}

		select {
		case out <- m:
		case <-ctx.Done():
			return
		}
	}
}

// runBatchWriter does size/time-based flushes. While a full batch cannot be
// stored it stops taking new messages.
func (w *Archiver) runBatchWriter(ctx context.Context, in <-chan kafka.Message) {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var (
		pending []kafka.Message
		rows    []model.Mailing
	)

	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if err := w.Archive.InsertBatch(ctx, rows); err != nil {
			w.log.Error("archive insert failed", zap.Int("rows", len(rows)), zap.Error(err))
			return
		}
		if err := w.Consumer.Commit(ctx, pending...); err != nil {
			w.log.Warn("kafka commit failed", zap.Int("messages", len(pending)), zap.Error(err))
		}
		metrics.MailingsTotal.WithLabelValues("archived").Add(float64(len(rows)))
		w.log.Debug("archive flushed", zap.Int("rows", len(rows)), zap.Int("messages", len(pending)))

		pending = pending[:0]
		rows = rows[:0]
	}

	final := func() {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		flush(fctx)
	}

	for {
		src := in
		if len(pending) >= w.BatchSize {
			src = nil
		}

		select {
		case <-ctx.Done():
			final()
			return

		case m, ok := <-src:
			if !ok {
				final()
				return
			}
			pending = append(pending, m)

			ev, err := kafka.DecodeMailingCreated(m)
			if err != nil {
				w.log.Warn("skip bad mailing event", zap.Int64("offset", m.Offset), zap.Error(err))
			} else {
				rows = append(rows, ev.Mailing())
			}

			if len(pending) >= w.BatchSize {
				flush(ctx)
			}

		case <-tick.C:
			flush(ctx)
		}
	}
}

package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/config"
	"github.com/Maxim80/devman-async-sms-mailings/internal/errs"
	"github.com/Maxim80/devman-async-sms-mailings/internal/gateway"
	"github.com/Maxim80/devman-async-sms-mailings/internal/metrics"
	"github.com/Maxim80/devman-async-sms-mailings/internal/model"
	"github.com/Maxim80/devman-async-sms-mailings/internal/repository"
	"github.com/Maxim80/devman-async-sms-mailings/internal/util"
	"go.uber.org/zap"
)

const (
	DefaultValidHours = 1

	bookkeepingTimeout = 5 * time.Second
)

// Sender is the part of the gateway client used to send a mailing.
type Sender interface {
	Send(ctx context.Context, r gateway.SendRequest) (gateway.SendResult, error)
}

// EventPublisher announces stored mailings to other services.
type EventPublisher interface {
	PublishMailingCreated(ctx context.Context, ev model.MailingCreated) error
}

type Result struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// Service sends a mailing through the gateway and records it.
type Service struct {
	gw         Sender
	store      repository.MailingStore
	events     EventPublisher
	recipients string
	validHours int
	log        *zap.Logger
}

func New(gw Sender, store repository.MailingStore, cfg config.DispatchConfig, log *zap.Logger) *Service {
	validHours := cfg.ValidHours
	if validHours <= 0 {
		validHours = DefaultValidHours
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		gw:         gw,
		store:      store,
		recipients: cfg.Recipients,
		validHours: validHours,
		log:        log,
	}
}

// WithEvents enables publishing of MailingCreated after each stored mailing.
func (s *Service) WithEvents(p EventPublisher) *Service {
	s.events = p
	return s
}

// Dispatch sends text to recipients, or to the configured list when recipients
// is empty. Gateway errors are returned unchanged. Once the gateway accepted the
// mailing the call succeeds even if it could not be stored.
func (s *Service) Dispatch(ctx context.Context, text, recipients string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, errs.Validation("Text field cannot be empty")
	}
	if strings.TrimSpace(recipients) == "" {
		recipients = s.recipients
	}
	phones := util.CountPhones(recipients)
	if phones == 0 {
		return Result{}, errs.Validation("No recipients configured")
	}

	res, err := s.gw.Send(ctx, gateway.SendRequest{
		Phones:     recipients,
		Message:    text,
		ValidHours: s.validHours,
	})
	if err != nil {
		s.log.Warn("mailing not sent", zap.Int("phones", phones), zap.Error(err))
		return Result{}, err
	}
	metrics.MailingsTotal.WithLabelValues("sent").Inc()

	count := res.Count
	if count == 0 {
		count = phones
	}

	// the caller may already be gone; bookkeeping of an accepted mailing goes on
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	stored, err := s.store.AddMailing(bctx, res.ID, recipients, text)
	if err != nil {
		metrics.MailingsTotal.WithLabelValues("store_failed").Inc()
		s.log.Error("mailing sent but not stored",
			zap.String("mailing_id", res.ID),
			zap.Error(err),
		)
	} else {
		metrics.MailingsTotal.WithLabelValues("stored").Inc()
		s.publish(bctx, stored)
	}

	s.log.Info("mailing sent", zap.String("mailing_id", res.ID), zap.Int("count", count))
	return Result{ID: res.ID, Count: count}, nil
}

// publish announces m exactly as stored, so archived copies keep its CreatedAt.
func (s *Service) publish(ctx context.Context, m model.Mailing) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishMailingCreated(ctx, model.MailingCreatedOf(m)); err != nil {
		metrics.MailingsTotal.WithLabelValues("publish_failed").Inc()
		s.log.Warn("mailing event not published", zap.String("mailing_id", m.ID), zap.Error(err))
		return
	}
	metrics.MailingsTotal.WithLabelValues("published").Inc()
}

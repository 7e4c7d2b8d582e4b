package broadcast

import (
	"context"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/gateway"
	"github.com/Maxim80/devman-async-sms-mailings/internal/model"
	"github.com/Maxim80/devman-async-sms-mailings/internal/util"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// StatusResolver tells how many messages of a mailing were delivered or failed.
type StatusResolver interface {
	Resolve(ctx context.Context, m model.Mailing) model.DeliveryCounts
}

// ZeroResolver reports nothing delivered and nothing failed.
type ZeroResolver struct{}

func (ZeroResolver) Resolve(context.Context, model.Mailing) model.DeliveryCounts {
	return model.DeliveryCounts{}
}

// StatusChecker is the part of the gateway client the resolver needs.
type StatusChecker interface {
	Status(ctx context.Context, r gateway.StatusRequest) (gateway.StatusResult, error)
}

// SMSC message status codes.
const (
	statusDelivered = 1
	statusExpired   = 3
)

var failedStatuses = map[int]bool{
	statusExpired: true,
	20:            true, // impossible to deliver
	22:            true, // wrong number
	23:            true, // prohibited
	24:            true, // insufficient funds
	25:            true, // unavailable number
}

// GatewayResolver asks SMSC for the status of every recipient and caches the
// counts for ttl. Once every recipient is final the counts are kept for good.
type GatewayResolver struct {
	gw    StatusChecker
	cache *cache.Cache
	log   *zap.Logger
}

func NewGatewayResolver(gw StatusChecker, ttl time.Duration, log *zap.Logger) *GatewayResolver {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GatewayResolver{gw: gw, cache: cache.New(ttl, 2*ttl), log: log}
}

func (r *GatewayResolver) Resolve(ctx context.Context, m model.Mailing) model.DeliveryCounts {
	if v, ok := r.cache.Get(m.ID); ok {
		return v.(model.DeliveryCounts)
	}

	var dc model.DeliveryCounts
	phones := util.SplitPhones(m.Recipients)
	for _, phone := range phones {
		res, err := r.gw.Status(ctx, gateway.StatusRequest{Phone: phone, ID: m.ID})
		if err != nil {
			r.log.Debug("status lookup failed",
				zap.String("mailing_id", m.ID),
				zap.String("phone", phone),
				zap.Error(err),
			)
			continue
		}
		switch {
		case res.Status == statusDelivered:
			dc.Delivered++
		case failedStatuses[res.Status]:
			dc.Failed++
		}
	}

	ttl := cache.DefaultExpiration
	if len(phones) > 0 && dc.Delivered+dc.Failed == len(phones) {
		ttl = cache.NoExpiration
	}
	r.cache.Set(m.ID, dc, ttl)

	return dc
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	GatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsc_gateway_requests_total",
			Help: "SMSC gateway calls by api method and outcome",
		},
		[]string{"method", "outcome"}, // send|status , ok|api_error|transport_error|rejected|cancelled
	)

	GatewayBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "smsc_gateway_breaker_state",
			Help: "SMSC circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
	)

	MailingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_mailings_total",
			Help: "Mailing lifecycle counter by stage",
		},
		[]string{"stage"}, // sent|stored|store_failed|published|publish_failed|archived
	)

	BroadcastTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_broadcast_ticks_total",
			Help: "Status broadcast ticks by outcome",
		},
		[]string{"outcome"}, // ok|store_error|panic
	)

	BroadcastTickSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailer_broadcast_tick_seconds",
			Help:    "Duration of one status broadcast tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailer_ws_subscribers",
			Help: "Open real-time subscribers",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		GatewayRequests,
		GatewayBreakerState,
		MailingsTotal,
		BroadcastTicks,
		BroadcastTickSeconds,
		Subscribers,
	)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	PATsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "patgate_pats_created_total",
		Help: "Total number of personal access tokens created.",
	})
	PATsRevokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "patgate_pats_revoked_total",
		Help: "Total number of personal access tokens revoked.",
	})
	ExchangesSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "patgate_exchanges_success_total",
		Help: "Total number of successful PAT exchanges.",
	})
	ExchangesFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "patgate_exchanges_failure_total",
		Help: "Total number of rejected PAT exchanges.",
	})
	GatewayForwardsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "patgate_gateway_forwards_total",
		Help: "Total number of authorized gateway calls forwarded upstream.",
	})
	GatewayRejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "patgate_gateway_rejections_total",
		Help: "Total number of gateway calls rejected at the authorization boundary.",
	})
)

// Register registers the custom metrics with the given registerer.
// It should be called once at application startup.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}

	collectors := []prometheus.Collector{
		PATsCreatedTotal,
		PATsRevokedTotal,
		ExchangesSuccessTotal,
		ExchangesFailureTotal,
		GatewayForwardsTotal,
		GatewayRejectionsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register Prometheus metric")
		}
	}

	log.Info().Msg("Custom Prometheus metrics registered.")
}

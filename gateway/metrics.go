package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generateRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptdash_generate_requests_total",
		Help: "Total generation requests by provider and outcome",
	}, []string{"provider", "status"})

	generateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "promptdash_generate_duration_seconds",
		Help:    "Provider call duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"provider"})

	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptdash_cache_hits_total",
		Help: "Generation responses served from the cache",
	}, []string{"provider"})

	breakerStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "promptdash_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	}, []string{"provider"})

	generateCostTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptdash_generate_cost_usd_total",
		Help: "Cumulative provider spend in USD",
	}, []string{"provider"})
)

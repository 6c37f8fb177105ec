package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Detection metrics
var (
	DetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "baitchannel_detections_total",
		Help: "Bait channel detections by recorded outcome",
	}, []string{"outcome"})

	SuspicionScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "baitchannel_suspicion_score",
		Help:    "Suspicion score of evaluated bait channel messages",
		Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	PendingDecisions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "baitchannel_pending_decisions",
		Help: "Grace periods currently armed",
	})
)

// Error metrics
var (
	PlatformErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "baitchannel_platform_errors_total",
		Help: "Failed Discord API calls by operation",
	}, []string{"op"})

	StoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "baitchannel_store_errors_total",
		Help: "Failed persistence calls by operation",
	}, []string{"op"})
)

// Cache metrics
var (
	ConfigCacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "baitchannel_config_cache_requests_total",
		Help: "Config cache lookups by result (l1_hit, l2_hit, miss)",
	}, []string{"result"})
)

// REST metrics
var (
	RESTRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discord_rest_request_duration_seconds",
		Help:    "Discord REST request duration in seconds",
		Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "status"})
)

package platform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var platformRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "spamguard_platform_request_duration_seconds",
	Help:    "Duration of platform admin API requests",
	Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
}, []string{"method", "status"})

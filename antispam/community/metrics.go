package community

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pointsCacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "spamguard_points_cache_hits",
	Help: "Number of reputation point lookups served from cache",
})

var pointsCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "spamguard_points_cache_misses",
	Help: "Number of reputation point lookups that went to the status level directory",
})

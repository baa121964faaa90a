package throttle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var throttleEntriesSwept = promauto.NewCounter(prometheus.CounterOpts{
	Name: "spamguard_throttle_entries_swept",
	Help: "Number of expired in-memory throttle entries removed by sweeps",
})

var throttleCachesReplaced = promauto.NewCounter(prometheus.CounterOpts{
	Name: "spamguard_throttle_caches_replaced",
	Help: "Number of throttle caches replaced by reconfiguration",
})

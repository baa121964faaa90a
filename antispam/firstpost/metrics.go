package firstpost

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var firstPostOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spamguard_first_post_outcomes",
	Help: "Number of post-save first post checks, by outcome",
}, []string{"outcome"})

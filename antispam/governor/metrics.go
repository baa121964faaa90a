package governor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var admissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spamguard_admission_decisions",
	Help: "Number of admission decisions, by reason",
}, []string{"reason", "allowed"})

var admissionLookupErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spamguard_admission_lookup_errors",
	Help: "Number of collaborator failures during admission checks, which degrade to 'rule does not match'",
}, []string{"lookup"})

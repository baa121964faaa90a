package spam

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("spamguard/spam")

var reportsFiled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spamguard_spam_reports_filed",
	Help: "Number of abuse reports filed by the spam workflow, by content kind",
}, []string{"kind"})

var itemsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spamguard_spam_items_resolved",
	Help: "Number of content items cleared of spam reports, by content kind",
}, []string{"kind"})

var approvalFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "spamguard_spam_approval_failures",
	Help: "Number of abuse workflow approvals which failed during resolution",
})

var spammerActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spamguard_spammer_actions",
	Help: "Number of account-level spam actions, by type",
}, []string{"action"})

var batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "spamguard_spam_batch_duration_seconds",
	Help:    "Duration of mass report and mass resolve operations",
	Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
}, []string{"op"})

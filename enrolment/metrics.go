package enrolment

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registered once at package init; every Service shares them.
var metrics = newMetrics()

type serviceMetrics struct {
	registrations        prometheus.Counter
	compensations        prometheus.Counter
	batchesAccepted      prometheus.Counter
	registrationDuration prometheus.Histogram
}

func newMetrics() *serviceMetrics {
	return &serviceMetrics{
		registrations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "party_respondents_registered_total",
			Help: "Total number of respondents successfully registered",
		}),
		compensations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "party_compensations_run_total",
			Help: "Total number of times a failed flow ran its compensating actions",
		}),
		batchesAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "party_pending_survey_batches_accepted_total",
			Help: "Total number of pending share/transfer batches accepted",
		}),
		registrationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "party_registration_duration_seconds",
			Help:    "Duration of the respondent registration flow",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *serviceMetrics) observeRegistration(start time.Time) {
	m.registrationDuration.Observe(time.Since(start).Seconds())
}

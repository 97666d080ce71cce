// Package observability holds Prometheus instruments for the activity directory.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation names used as metric labels.
const (
	OperationSignup     = "signup"
	OperationUnregister = "unregister"
)

var (
	registrationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_directory",
		Subsystem: "registrations",
		Name:      "requests_total",
		Help:      "Roster mutations grouped by operation and outcome.",
	}, []string{"operation", "outcome"})

	seededGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_directory",
		Subsystem: "seed",
		Name:      "activities_inserted",
		Help:      "Number of default activities written by the most recent seed run.",
	})

	lastMutationGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_directory",
		Subsystem: "registrations",
		Name:      "last_mutation_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful roster change.",
	})
)

func init() {
	prometheus.MustRegister(registrationCounter, seededGauge, lastMutationGauge)
}

// RecordRegistration counts a signup or unregister attempt by outcome.
func RecordRegistration(operation, outcome string) {
	registrationCounter.WithLabelValues(operation, outcome).Inc()
	if outcome == "success" {
		lastMutationGauge.Set(float64(time.Now().Unix()))
	}
}

// RegistrationCounter exposes the counter for a label pair so tests can read it.
func RegistrationCounter(operation, outcome string) prometheus.Counter {
	return registrationCounter.WithLabelValues(operation, outcome)
}

// RecordSeeded updates the seed gauge.
func RecordSeeded(inserted int) {
	seededGauge.Set(float64(inserted))
}

package poll

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcomes recorded by the auto-refresh poller.
const (
	OutcomeUpdated   = "updated"
	OutcomeCompleted = "completed"
	OutcomeDeleted   = "deleted"
	OutcomeError     = "error"
	OutcomeDropped   = "dropped"
)

// Verification outcomes.
const (
	OutcomeVerified = "verified"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// Metrics counts poller activity. A nil *Metrics records nothing.
type Metrics struct {
	fetches       *prometheus.CounterVec
	verifications *prometheus.CounterVec
}

// NewMetrics creates the poller counters and registers them with reg. An
// already registered collector of the same shape is reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kore",
		Subsystem: "poll",
		Name:      "fetches_total",
		Help:      "Resource fetches issued by auto-refresh pollers, by resource kind and outcome.",
	}, []string{"kind", "outcome"})

	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kore",
		Name:      "verifications_total",
		Help:      "Completed verification runs, by outcome.",
	}, []string{"outcome"})

	var err error

	fetches, err = register(reg, fetches)
	if err != nil {
		return nil, err
	}

	verifications, err = register(reg, verifications)
	if err != nil {
		return nil, err
	}

	return &Metrics{fetches: fetches, verifications: verifications}, nil
}

func register(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	err := reg.Register(vec)
	if err == nil {
		return vec, nil
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
			return existing, nil
		}
	}

	return nil, fmt.Errorf("registering poll metrics: %w", err)
}

func (m *Metrics) observeFetch(kind, outcome string) {
	if m == nil {
		return
	}

	m.fetches.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) observeVerification(outcome string) {
	if m == nil {
		return
	}

	m.verifications.WithLabelValues(outcome).Inc()
}

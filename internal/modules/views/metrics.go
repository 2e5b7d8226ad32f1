package views

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeCounted   = "counted"
	outcomeDuplicate = "duplicate"
	outcomeMarked    = "marked"
	outcomeBot       = "bot"
)

// Metrics counts view registrations by outcome.
type Metrics struct {
	outcomes *prometheus.CounterVec
}

func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "vitrine"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "views",
		Name:      "registrations_total",
		Help:      "View registrations by outcome.",
	}, []string{"outcome"})

	if err := reg.Register(outcomes); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register view metric: %w", err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("register view metric: %w", err)
		}
		outcomes = existing
	}
	return &Metrics{outcomes: outcomes}, nil
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

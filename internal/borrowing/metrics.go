// internal/borrowing/metrics.go
package borrowing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	borrowOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "librum_borrows_total",
		Help: "Borrow attempts by outcome.",
	}, []string{"outcome"})

	returnOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "librum_returns_total",
		Help: "Return attempts by outcome.",
	}, []string{"outcome"})

	sweepTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "librum_sweep_overdue_transitions_total",
		Help: "Loans transitioned to overdue by sweeps.",
	})
)

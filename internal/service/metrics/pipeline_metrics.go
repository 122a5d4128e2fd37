package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	SignalLag = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "signalfleet",
			Subsystem: "pipeline",
			Name:      "signal_lag_seconds",
			Help:      "Time from signal creation to a pipeline stage handling it",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	DuplicateSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalfleet",
			Subsystem: "pipeline",
			Name:      "duplicate_signals_total",
			Help:      "Redelivered signals dropped by the idempotency mark",
		},
		[]string{"topic"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(SignalLag, DuplicateSignals)
	})
}

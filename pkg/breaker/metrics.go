package breaker

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stateGauge    *prometheus.GaugeVec
	rejectedTotal *prometheus.CounterVec
	timeoutTotal  *prometheus.CounterVec
	metricsOnce   sync.Once
)

func initMetricsOnce() {
	metricsOnce.Do(func() {
		stateGauge = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalfleet_breaker_state",
				Help: "Breaker state: 0 closed, 1 half-open, 2 open",
			},
			[]string{"name"},
		)
		rejectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfleet_breaker_rejected_total",
				Help: "Calls rejected without invoking the downstream",
			},
			[]string{"name"},
		)
		timeoutTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfleet_breaker_timeouts_total",
				Help: "Calls abandoned after the call timeout",
			},
			[]string{"name"},
		)
	})
}

func observeState(name string, s State) {
	stateGauge.WithLabelValues(name).Set(float64(s))
}

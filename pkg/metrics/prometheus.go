package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	checksTotal   *prometheus.CounterVec
	checkLatency  *prometheus.HistogramVec
	fleetRuns     *prometheus.CounterVec
	fleetHealthy  prometheus.Gauge
	fleetLatency  prometheus.Histogram
	dataflowTotal *prometheus.CounterVec
	dataflowTime  prometheus.Histogram
	stagesTotal   *prometheus.CounterVec
	scriptsTotal  *prometheus.CounterVec
	signalsTotal  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		checksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfleet_validation_checks_total",
				Help: "Fleet validation checks by service, check and outcome",
			},
			[]string{"service", "check", "ok"},
		),
		checkLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalfleet_validation_check_duration_seconds",
				Help:    "Duration of a single validation check",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
			},
			[]string{"check"},
		),
		fleetRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfleet_validation_runs_total",
				Help: "Fleet validation runs by overall health",
			},
			[]string{"healthy"},
		),
		fleetHealthy: f.NewGauge(prometheus.GaugeOpts{
			Name: "signalfleet_fleet_healthy",
			Help: "1 when the last fleet validation found every check healthy",
		}),
		fleetLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalfleet_validation_run_duration_seconds",
			Help:    "Duration of a full fleet validation run",
			Buckets: prometheus.DefBuckets,
		}),
		dataflowTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfleet_dataflow_tests_total",
				Help: "Dataflow correlation tests by result",
			},
			[]string{"success"},
		),
		dataflowTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalfleet_dataflow_duration_seconds",
			Help:    "Time until all stages completed or the deadline expired",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		stagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfleet_dataflow_stages_total",
				Help: "Dataflow stage outcomes",
			},
			[]string{"stage", "ok"},
		),
		scriptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfleet_script_checks_total",
				Help: "Functional script checks by script and outcome",
			},
			[]string{"script", "ok"},
		),
		signalsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfleet_signals_total",
				Help: "Signals handled by pipeline stage and result",
			},
			[]string{"stage", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfleet_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordCheck(service, check string, ok bool, seconds float64) {
	r.checksTotal.WithLabelValues(service, check, strconv.FormatBool(ok)).Inc()
	r.checkLatency.WithLabelValues(check).Observe(seconds)
}

func (r *Recorder) RecordFleetRun(healthy bool, seconds float64) {
	r.fleetRuns.WithLabelValues(strconv.FormatBool(healthy)).Inc()
	r.fleetLatency.Observe(seconds)
	if healthy {
		r.fleetHealthy.Set(1)
	} else {
		r.fleetHealthy.Set(0)
	}
}

func (r *Recorder) RecordDataflow(success bool, seconds float64) {
	r.dataflowTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
	r.dataflowTime.Observe(seconds)
}

func (r *Recorder) RecordStage(stage string, ok bool) {
	r.stagesTotal.WithLabelValues(stage, strconv.FormatBool(ok)).Inc()
}

func (r *Recorder) RecordScript(name string, ok bool) {
	r.scriptsTotal.WithLabelValues(name, strconv.FormatBool(ok)).Inc()
}

// RecordSignal counts a signal at a pipeline stage (ingest, process) with its result.
func (r *Recorder) RecordSignal(stage, result string) {
	r.signalsTotal.WithLabelValues(stage, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// Nop discards everything. Handy in tests and when metrics are disabled.
type Nop struct{}

func (Nop) RecordCheck(string, string, bool, float64) {}
func (Nop) RecordFleetRun(bool, float64)              {}
func (Nop) RecordDataflow(bool, float64)              {}
func (Nop) RecordStage(string, bool)                  {}
func (Nop) RecordScript(string, bool)                 {}
func (Nop) RecordSignal(string, string)               {}
func (Nop) RecordError(string)                        {}

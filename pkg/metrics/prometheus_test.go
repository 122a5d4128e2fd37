package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordCheck("svc", "deployment", false, 0.2)
	r.RecordCheck("svc", "deployment", false, 0.1)
	r.RecordFleetRun(false, 1.5)
	r.RecordSignal("ingest", "published")
	r.RecordError("publish")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.checksTotal.WithLabelValues("svc", "deployment", "false")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.fleetHealthy))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.signalsTotal.WithLabelValues("ingest", "published")))

	r.RecordFleetRun(true, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fleetHealthy))

	n, err := testutil.GatherAndCount(reg, "signalfleet_validation_runs_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}

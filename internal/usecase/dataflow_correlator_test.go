package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"SignalFleet/internal/domain/models"
	"SignalFleet/internal/service/probe"
	"SignalFleet/pkg/broker"
	"SignalFleet/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stageServer serves /status/{id} and /delivery/{id}. The first notFound polls
// answer 404, then the stage reports done after readyAfter polls in total; a
// negative readyAfter never completes.
type stageServer struct {
	*httptest.Server
	polls      atomic.Int32
	readyAfter int32
	notFound   int32
	delivery   bool
}

func newStageServer(t *testing.T, readyAfter int32, delivery bool) *stageServer {
	return newStageServerWith404(t, 0, readyAfter, delivery)
}

func newStageServerWith404(t *testing.T, notFound, readyAfter int32, delivery bool) *stageServer {
	t.Helper()
	s := &stageServer{notFound: notFound, readyAfter: readyAfter, delivery: delivery}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := s.polls.Add(1)
		if n <= s.notFound {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		done := s.readyAfter >= 0 && n > s.readyAfter
		w.Header().Set("Content-Type", "application/json")
		if s.delivery {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"delivered": done})
			return
		}
		status := "processing"
		if done {
			status = "completed"
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": status, "id": strings.TrimPrefix(r.URL.Path, "/status/")})
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestCorrelator(t *testing.T, ch *fakeChannel, deadline time.Duration, ai, news, tg *stageServer) *DataflowCorrelator {
	t.Helper()
	d, err := NewDataflowCorrelator(DataflowConfig{
		Topic:        "trading.signal",
		RoutingKey:   "signal.received",
		Deadline:     deadline,
		PollInterval: 10 * time.Millisecond,
		Symbol:       "BTCUSDT",
		Interval:     "1h",
		Strategy:     "dataflow-test",
		Stages:       DefaultDataflowStages(ai.URL, news.URL, tg.URL),
	}, ch, probe.NewHTTPProber(time.Second), metrics.Nop{}, nil)
	require.NoError(t, err)
	return d
}

func TestDataflowCorrelator_AllStagesComplete(t *testing.T) {
	ai := newStageServer(t, 2, false)
	news := newStageServer(t, 0, false)
	tg := newStageServer(t, 3, true)
	ch := &fakeChannel{}

	rec, err := newTestCorrelator(t, ch, 2*time.Second, ai, news, tg).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, rec.Success())
	assert.True(t, rec.Published)
	assert.Equal(t, map[string]bool{models.StageAI: true, models.StageNews: true, models.StageDelivery: true}, rec.Stages)
	assert.Empty(t, rec.Reasons)

	sent := ch.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "trading.signal", sent[0].Topic)
	assert.Equal(t, "signal.received", sent[0].RoutingKey)
	sig, ok := sent[0].Payload.(models.Signal)
	require.True(t, ok)
	assert.Equal(t, rec.SignalID, sig.ID)
	assert.Equal(t, rec.SignalID, broker.MessageID(sig))
}

func TestDataflowCorrelator_DeadlineWithIncompleteStage(t *testing.T) {
	ai := newStageServer(t, 0, false)
	news := newStageServer(t, -1, false)
	tg := newStageServer(t, 0, true)

	start := time.Now()
	rec, err := newTestCorrelator(t, &fakeChannel{}, 200*time.Millisecond, ai, news, tg).Run(context.Background())
	require.NoError(t, err, "deadline expiry is not an error")

	assert.False(t, rec.Success())
	assert.True(t, rec.Stages[models.StageAI])
	assert.False(t, rec.Stages[models.StageNews])
	assert.True(t, rec.Stages[models.StageDelivery])
	assert.Contains(t, rec.Reasons[models.StageNews], "status=processing")
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Greater(t, news.polls.Load(), int32(1))
}

func TestDataflowCorrelator_NotFoundMeansNotYet(t *testing.T) {
	ai := newStageServerWith404(t, 2, 3, false)
	news := newStageServer(t, 0, false)
	tg := newStageServer(t, 0, true)

	rec, err := newTestCorrelator(t, &fakeChannel{}, 2*time.Second, ai, news, tg).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rec.Stages[models.StageAI], "404 before the stage sees the signal must not trip its breaker")
}

func TestDataflowCorrelator_UnreachableStage(t *testing.T) {
	ai := newStageServer(t, 0, false)
	news := newStageServer(t, 0, false)
	tg := newStageServer(t, 0, true)
	tg.Close()

	rec, err := newTestCorrelator(t, &fakeChannel{}, 200*time.Millisecond, ai, news, tg).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, rec.Success())
	assert.True(t, rec.Stages[models.StageAI])
	assert.True(t, rec.Stages[models.StageNews])
	assert.False(t, rec.Stages[models.StageDelivery])
	assert.NotEmpty(t, rec.Reasons[models.StageDelivery])
}

func TestDataflowCorrelator_PublishFailure(t *testing.T) {
	ai := newStageServer(t, 0, false)
	news := newStageServer(t, 0, false)
	tg := newStageServer(t, 0, true)
	ch := &fakeChannel{err: &broker.ConnectionError{Driver: "kafka", Endpoints: []string{"k:9092"}, Err: errors.New("refused")}}

	rec, err := newTestCorrelator(t, ch, time.Second, ai, news, tg).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, rec.Published)
	assert.False(t, rec.Success())
	assert.Contains(t, rec.Reasons["publish"], "refused")
	assert.Zero(t, ai.polls.Load(), "no polling without a published signal")
}

func TestDataflowCorrelator_DeadlineDoesNotPoisonNextRun(t *testing.T) {
	var slow atomic.Bool
	slow.Store(true)
	stage := func(body map[string]interface{}) *stageServer {
		s := &stageServer{}
		s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.polls.Add(1)
			if slow.Load() {
				select {
				case <-r.Context().Done():
				case <-time.After(300 * time.Millisecond):
				}
			}
			_ = json.NewEncoder(w).Encode(body)
		}))
		t.Cleanup(s.Close)
		return s
	}
	ai := stage(map[string]interface{}{"status": "completed"})
	news := stage(map[string]interface{}{"status": "completed"})
	tg := stage(map[string]interface{}{"delivered": true})
	d := newTestCorrelator(t, &fakeChannel{}, 100*time.Millisecond, ai, news, tg)

	rec, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, rec.Success())

	slow.Store(false)
	rec, err = d.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rec.Success(), "%v", rec.Reasons)
}

func TestDataflowCorrelator_FreshIDPerRun(t *testing.T) {
	ai := newStageServer(t, 0, false)
	news := newStageServer(t, 0, false)
	tg := newStageServer(t, 0, true)
	d := newTestCorrelator(t, &fakeChannel{}, time.Second, ai, news, tg)

	a, err := d.Run(context.Background())
	require.NoError(t, err)
	b, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a.SignalID, b.SignalID)
}

func TestNewDataflowCorrelator_Validation(t *testing.T) {
	p := probe.NewHTTPProber(time.Second)
	_, err := NewDataflowCorrelator(DataflowConfig{Topic: "t", RoutingKey: "k"}, &fakeChannel{}, p, nil, nil)
	assert.Error(t, err, "no stages")

	_, err = NewDataflowCorrelator(DataflowConfig{Stages: DefaultDataflowStages("a", "b", "c")}, &fakeChannel{}, p, nil, nil)
	assert.Error(t, err, "no route")

	_, err = NewDataflowCorrelator(DataflowConfig{Topic: "t", RoutingKey: "k", Stages: DefaultDataflowStages("a", "b", "c")}, nil, p, nil, nil)
	assert.Error(t, err, "no channel")
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"SignalFleet/internal/domain/models"
	domrepo "SignalFleet/internal/domain/repository"
	domsvc "SignalFleet/internal/domain/service"
	"SignalFleet/pkg/breaker"
	applogger "SignalFleet/pkg/logger"
	"SignalFleet/pkg/util"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DataflowStage is one downstream hop observed by signal id.
// URL may contain {id}; the stage is complete when the JSON field equals Want.
type DataflowStage struct {
	Name  string
	URL   string
	Field string
	Want  interface{}
}

// DefaultDataflowStages are the AI, news and delivery hops.
func DefaultDataflowStages(aiURL, newsURL, telegramURL string) []DataflowStage {
	return []DataflowStage{
		{Name: models.StageAI, URL: util.JoinURL(aiURL, "/status/{id}"), Field: "status", Want: "completed"},
		{Name: models.StageNews, URL: util.JoinURL(newsURL, "/status/{id}"), Field: "status", Want: "completed"},
		{Name: models.StageDelivery, URL: util.JoinURL(telegramURL, "/delivery/{id}"), Field: "delivered", Want: true},
	}
}

type DataflowConfig struct {
	Topic        string
	RoutingKey   string
	Deadline     time.Duration
	PollInterval time.Duration
	Symbol       string
	Interval     string
	Strategy     string
	Stages       []DataflowStage
}

// DataflowCorrelator injects a synthetic signal and follows it through the stages.
type DataflowCorrelator struct {
	cfg      DataflowConfig
	channel  domrepo.EventChannel
	prober   domsvc.Prober
	metrics  domrepo.Metrics
	log      *applogger.Logger
	publishB *breaker.Breaker
	stageB   map[string]*breaker.Breaker
	newID    func() string
}

func NewDataflowCorrelator(
	cfg DataflowConfig,
	channel domrepo.EventChannel,
	prober domsvc.Prober,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	breakerOpts ...breaker.Option,
) (*DataflowCorrelator, error) {
	if channel == nil || prober == nil {
		return nil, errors.New("dataflow correlator: channel and prober are required")
	}
	if cfg.Topic == "" || cfg.RoutingKey == "" {
		return nil, errors.New("dataflow correlator: ingress topic and routing key are required")
	}
	if len(cfg.Stages) == 0 {
		return nil, errors.New("dataflow correlator: no stages configured")
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if log == nil {
		log = applogger.Nop()
	}

	mk := func(name string) *breaker.Breaker {
		opts := append([]breaker.Option{}, breakerOpts...)
		return breaker.New(append(opts, breaker.WithName(name), breaker.WithLogger(log))...)
	}
	d := &DataflowCorrelator{
		cfg:      cfg,
		channel:  channel,
		prober:   prober,
		metrics:  metrics,
		log:      log,
		publishB: mk("dataflow/publish"),
		stageB:   make(map[string]*breaker.Breaker, len(cfg.Stages)),
		newID:    uuid.NewString,
	}
	for _, s := range cfg.Stages {
		d.stageB[s.Name] = mk("dataflow/" + s.Name)
	}
	return d, nil
}

// Run publishes one synthetic signal and polls every stage until all report
// completion or the deadline passes. Stage failures and deadline expiry are
// part of the record, never an error.
func (d *DataflowCorrelator) Run(ctx context.Context) (*models.CorrelationRecord, error) {
	if d == nil {
		return nil, errors.New("dataflow correlator: not configured")
	}

	start := time.Now()
	rec := &models.CorrelationRecord{
		SignalID: d.newID(),
		Stages:   make(map[string]bool, len(d.cfg.Stages)),
		Deadline: start.Add(d.cfg.Deadline).UTC(),
	}
	for _, s := range d.cfg.Stages {
		rec.Stages[s.Name] = false
	}

	dctx, cancel := context.WithDeadline(ctx, rec.Deadline)
	defer cancel()

	sig := models.Signal{
		ID:        rec.SignalID,
		Symbol:    d.cfg.Symbol,
		Interval:  d.cfg.Interval,
		Strategy:  d.cfg.Strategy,
		Payload:   map[string]interface{}{"synthetic": true},
		CreatedAt: start.UTC(),
	}
	err := d.publishB.Execute(dctx, func(ctx context.Context) error {
		return d.channel.Publish(ctx, d.cfg.Topic, d.cfg.RoutingKey, sig)
	})
	if err != nil {
		rec.Reasons = map[string]string{"publish": err.Error()}
		d.finish(rec, start)
		return rec, nil
	}
	rec.Published = true

	reasons := make([]string, len(d.cfg.Stages))
	done := make([]bool, len(d.cfg.Stages))
	var g errgroup.Group
	for i, s := range d.cfg.Stages {
		g.Go(func() error {
			done[i], reasons[i] = d.follow(dctx, s, rec.SignalID)
			return nil
		})
	}
	_ = g.Wait()

	for i, s := range d.cfg.Stages {
		rec.Stages[s.Name] = done[i]
		if !done[i] {
			if rec.Reasons == nil {
				rec.Reasons = make(map[string]string)
			}
			rec.Reasons[s.Name] = reasons[i]
		}
	}
	d.finish(rec, start)
	return rec, nil
}

func (d *DataflowCorrelator) finish(rec *models.CorrelationRecord, start time.Time) {
	rec.Elapsed = time.Since(start)
	ok := rec.Success()
	if d.metrics != nil {
		d.metrics.RecordDataflow(ok, rec.Elapsed.Seconds())
		for name, done := range rec.Stages {
			d.metrics.RecordStage(name, done)
		}
	}
	d.log.Info("dataflow test finished",
		applogger.String("signal_id", rec.SignalID),
		applogger.Bool("published", rec.Published),
		applogger.Bool("success", ok),
		applogger.Any("stages", rec.Stages),
		applogger.Duration("elapsed_ms", rec.Elapsed),
	)
}

// follow polls one stage until it completes or ctx ends. It returns the last failure reason.
func (d *DataflowCorrelator) follow(ctx context.Context, s DataflowStage, id string) (bool, string) {
	url := util.ExpandID(s.URL, id)
	b := d.stageB[s.Name]
	reason := "not completed before deadline"

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, reason
		case <-timer.C:
		}

		body, err := breaker.Call(ctx, b, func(ctx context.Context) (map[string]interface{}, error) {
			var body map[string]interface{}
			err := d.prober.GetJSON(ctx, url, &body)
			var pe *domsvc.ProbeError
			if errors.As(err, &pe) && pe.Status == http.StatusNotFound {
				// The stage has not seen the signal yet.
				return nil, nil
			}
			return body, err
		})
		switch {
		case err != nil:
			if ctx.Err() == nil {
				reason = err.Error()
			}
		case body != nil && body[s.Field] == s.Want:
			return true, ""
		case body != nil:
			reason = fmt.Sprintf("%s=%v", s.Field, body[s.Field])
		default:
			reason = "signal not found"
		}
		timer.Reset(d.cfg.PollInterval)
	}
}

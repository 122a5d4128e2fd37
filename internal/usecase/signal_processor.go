package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"SignalFleet/internal/domain/models"
	domrepo "SignalFleet/internal/domain/repository"
	pipemetrics "SignalFleet/internal/service/metrics"
	pkgkafka "SignalFleet/pkg/kafka"
	applogger "SignalFleet/pkg/logger"
)

var _ pkgkafka.MessageHandler = (*SignalProcessor)(nil)

// errMalformedSignal marks payloads that are not a Signal.
var errMalformedSignal = errors.New("malformed signal")

// SignalProcessor consumes ingress signals, marks them processed and republishes them.
type SignalProcessor struct {
	topic    string
	outTopic string
	outKey   string
	channel  domrepo.EventChannel
	seen     domrepo.IdempotencyStore
	metrics  domrepo.Metrics
	log      *applogger.Logger
	now      func() time.Time
}

func NewSignalProcessor(
	topic, outputTopic, outputKey string,
	channel domrepo.EventChannel,
	seen domrepo.IdempotencyStore,
	metrics domrepo.Metrics,
	log *applogger.Logger,
) *SignalProcessor {
	if log == nil {
		log = applogger.Nop()
	}
	pipemetrics.Register()
	return &SignalProcessor{
		topic:    topic,
		outTopic: outputTopic,
		outKey:   outputKey,
		channel:  channel,
		seen:     seen,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

func (p *SignalProcessor) Topic() string { return p.topic }

// Handle decodes one signal and republishes it. The id is marked only after
// the republish succeeded, so a crash in between leads to a second republish
// on redelivery rather than a lost signal.
func (p *SignalProcessor) Handle(ctx context.Context, b []byte) error {
	var sig models.Signal
	if err := json.Unmarshal(b, &sig); err != nil {
		p.record("process", "malformed")
		return fmt.Errorf("%w: %w", errMalformedSignal, err)
	}
	if sig.ID == "" {
		p.record("process", "malformed")
		return fmt.Errorf("%w: missing id", errMalformedSignal)
	}

	if p.seen != nil {
		seen, err := p.seen.Seen(ctx, sig.ID)
		if err != nil {
			p.record("process", "error")
			return err
		}
		if seen {
			pipemetrics.DuplicateSignals.WithLabelValues(p.topic).Inc()
			p.record("process", "duplicate")
			p.log.Debug("duplicate signal dropped", applogger.String("signal_id", sig.ID))
			return nil
		}
	}

	now := p.now().UTC()
	if !sig.CreatedAt.IsZero() {
		pipemetrics.SignalLag.WithLabelValues("process").Observe(now.Sub(sig.CreatedAt).Seconds())
	}

	out := sig.MarkProcessed(now)
	if err := p.channel.Publish(ctx, p.outTopic, p.outKey, out); err != nil {
		p.record("process", "error")
		return fmt.Errorf("republish %s: %w", sig.ID, err)
	}

	if p.seen != nil {
		if _, err := p.seen.MarkSeen(ctx, sig.ID); err != nil {
			// Already delivered; a missing mark only risks a duplicate downstream.
			p.log.Warn("signal not marked seen", applogger.String("signal_id", sig.ID), applogger.Error(err))
		}
	}

	p.record("process", "ok")
	p.log.Debug("signal processed",
		applogger.String("signal_id", sig.ID),
		applogger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
	)
	return nil
}

func (p *SignalProcessor) record(stage, result string) {
	if p.metrics != nil {
		p.metrics.RecordSignal(stage, result)
	}
}

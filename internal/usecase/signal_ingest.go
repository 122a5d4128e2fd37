package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalFleet/internal/domain/models"
	domrepo "SignalFleet/internal/domain/repository"
	applogger "SignalFleet/pkg/logger"

	"github.com/google/uuid"
)

// ErrPublish marks a signal that could not be handed to the broker.
var ErrPublish = errors.New("signal publish failed")

// SignalIngest is the front door: it stamps accepted signals and publishes them to the ingress route.
type SignalIngest struct {
	channel    domrepo.EventChannel
	metrics    domrepo.Metrics
	log        *applogger.Logger
	topic      string
	routingKey string
	newID      func() string
	now        func() time.Time
}

func NewSignalIngest(channel domrepo.EventChannel, topic, routingKey string, metrics domrepo.Metrics, log *applogger.Logger) *SignalIngest {
	if log == nil {
		log = applogger.Nop()
	}
	return &SignalIngest{
		channel:    channel,
		metrics:    metrics,
		log:        log,
		topic:      topic,
		routingKey: routingKey,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// Accept publishes req as a new Signal. The request is expected to be validated already.
func (s *SignalIngest) Accept(ctx context.Context, req *models.SignalRequest) (*models.SignalAccepted, error) {
	sig := models.Signal{
		ID:        s.newID(),
		Symbol:    req.Symbol,
		Interval:  req.Interval,
		Strategy:  req.Strategy,
		Payload:   req.Payload,
		CreatedAt: s.now().UTC(),
	}

	if err := s.channel.Publish(ctx, s.topic, s.routingKey, sig); err != nil {
		s.record("ingest", "error")
		s.log.Error("signal publish failed",
			applogger.String("signal_id", sig.ID),
			applogger.String("topic", s.topic),
			applogger.String("driver", s.channel.Driver()),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrPublish, err)
	}

	s.record("ingest", "ok")
	s.log.Debug("signal accepted",
		applogger.String("signal_id", sig.ID),
		applogger.String("symbol", sig.Symbol),
		applogger.String("strategy", sig.Strategy),
	)
	return &models.SignalAccepted{SignalID: sig.ID}, nil
}

func (s *SignalIngest) record(stage, result string) {
	if s.metrics != nil {
		s.metrics.RecordSignal(stage, result)
	}
}

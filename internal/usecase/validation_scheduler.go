package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SignalFleet/internal/domain/models"
	domrepo "SignalFleet/internal/domain/repository"
	applogger "SignalFleet/pkg/logger"
)

// FleetRunner produces a fleet report. *FleetValidator implements it.
type FleetRunner interface {
	ValidateAll(ctx context.Context) (*models.FleetReport, error)
}

// ValidationScheduler runs the fleet validation on a fixed interval and keeps the latest report.
type ValidationScheduler struct {
	runner   FleetRunner
	store    domrepo.ReportStore
	interval time.Duration
	log      *applogger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewValidationScheduler(runner FleetRunner, store domrepo.ReportStore, interval time.Duration, log *applogger.Logger) *ValidationScheduler {
	if log == nil {
		log = applogger.Nop()
	}
	return &ValidationScheduler{runner: runner, store: store, interval: interval, log: log}
}

// Start runs one validation immediately and then every interval until Stop.
// A zero interval disables the schedule.
func (s *ValidationScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.interval <= 0 {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, s.done)
	s.log.Info("validation scheduler started", applogger.Duration("interval_ms", s.interval))
}

func (s *ValidationScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("scheduled validation failed", applogger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce validates the fleet and stores the report.
func (s *ValidationScheduler) RunOnce(ctx context.Context) error {
	report, err := s.runner.ValidateAll(ctx)
	if err != nil {
		return fmt.Errorf("validate fleet: %w", err)
	}
	if err := s.store.SaveFleetReport(ctx, report); err != nil {
		return fmt.Errorf("save fleet report: %w", err)
	}
	return nil
}

// Stop cancels the loop and waits for an in-flight run, bounded by ctx.
func (s *ValidationScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		s.log.Info("validation scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("validation scheduler stop: %w", ctx.Err())
	}
}

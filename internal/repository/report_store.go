package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalFleet/internal/domain/models"
	domainrepo "SignalFleet/internal/domain/repository"
	"SignalFleet/pkg/cache"
)

const latestReportKey = "validation:fleet:latest"

var _ domainrepo.ReportStore = (*CacheReportStore)(nil)

// CacheReportStore keeps the latest fleet report in a cache.Service.
type CacheReportStore struct {
	cache cache.Service
	ttl   time.Duration
}

func NewCacheReportStore(c cache.Service, ttl time.Duration) *CacheReportStore {
	return &CacheReportStore{cache: c, ttl: ttl}
}

func (s *CacheReportStore) SaveFleetReport(ctx context.Context, report *models.FleetReport) error {
	if report == nil {
		return errors.New("save fleet report: nil report")
	}
	if err := s.cache.Set(ctx, latestReportKey, report, s.ttl); err != nil {
		return fmt.Errorf("save fleet report: %w", err)
	}
	return nil
}

func (s *CacheReportStore) LatestFleetReport(ctx context.Context) (*models.FleetReport, error) {
	var report models.FleetReport
	if err := s.cache.Get(ctx, latestReportKey, &report); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, domainrepo.ErrReportNotFound
		}
		return nil, fmt.Errorf("load fleet report: %w", err)
	}
	return &report, nil
}

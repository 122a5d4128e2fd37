package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"SignalFleet/internal/domain/models"
	domrepo "SignalFleet/internal/domain/repository"
	"SignalFleet/internal/repository"
	"SignalFleet/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFunc func(ctx context.Context) (*models.FleetReport, error)

func (f runnerFunc) ValidateAll(ctx context.Context) (*models.FleetReport, error) { return f(ctx) }

func newTestReportStore(t *testing.T) *repository.CacheReportStore {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	return repository.NewCacheReportStore(mc, time.Hour)
}

func TestValidationScheduler_RunOnceStoresReport(t *testing.T) {
	store := newTestReportStore(t)
	s := NewValidationScheduler(runnerFunc(func(context.Context) (*models.FleetReport, error) {
		return &models.FleetReport{Healthy: true, Results: []models.ValidationResult{{Name: "svc", DeploymentStatus: true}}}, nil
	}), store, time.Minute, nil)

	_, err := store.LatestFleetReport(context.Background())
	assert.ErrorIs(t, err, domrepo.ErrReportNotFound)

	require.NoError(t, s.RunOnce(context.Background()))
	got, err := store.LatestFleetReport(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Healthy)
	assert.Equal(t, "svc", got.Results[0].Name)
}

func TestValidationScheduler_RunOnceError(t *testing.T) {
	s := NewValidationScheduler(runnerFunc(func(context.Context) (*models.FleetReport, error) {
		return nil, ErrNoRegistry
	}), newTestReportStore(t), time.Minute, nil)
	assert.True(t, errors.Is(s.RunOnce(context.Background()), ErrNoRegistry))
}

func TestValidationScheduler_TicksUntilStopped(t *testing.T) {
	var runs atomic.Int32
	s := NewValidationScheduler(runnerFunc(func(context.Context) (*models.FleetReport, error) {
		runs.Add(1)
		return &models.FleetReport{}, nil
	}), newTestReportStore(t), 10*time.Millisecond, nil)

	s.Start(context.Background())
	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	n := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, runs.Load())
	assert.NoError(t, s.Stop(ctx))
}

func TestValidationScheduler_ZeroIntervalDisabled(t *testing.T) {
	var runs atomic.Int32
	s := NewValidationScheduler(runnerFunc(func(context.Context) (*models.FleetReport, error) {
		runs.Add(1)
		return &models.FleetReport{}, nil
	}), newTestReportStore(t), 0, nil)

	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, runs.Load())
	assert.NoError(t, s.Stop(context.Background()))
}

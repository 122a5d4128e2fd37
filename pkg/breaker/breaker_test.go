package breaker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDownstream = errors.New("downstream 500")

func failing(calls *int32) func(context.Context) error {
	return func(context.Context) error {
		atomic.AddInt32(calls, 1)
		return errDownstream
	}
}

func TestBreakerOpensAfterThresholdAndFailsFast(t *testing.T) {
	b := New(WithName("trip"), WithMinRequests(2), WithErrorThreshold(0.5), WithCooldown(time.Hour))
	var calls int32

	require.ErrorIs(t, b.Execute(context.Background(), failing(&calls)), errDownstream)
	assert.Equal(t, StateClosed, b.State())
	require.ErrorIs(t, b.Execute(context.Background(), failing(&calls)), errDownstream)
	assert.Equal(t, StateOpen, b.State())

	for i := 0; i < 5; i++ {
		err := b.Execute(context.Background(), failing(&calls))
		require.ErrorIs(t, err, ErrCircuitOpen)
		assert.True(t, IsRejected(err))
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBreakerBelowThresholdStaysClosed(t *testing.T) {
	b := New(WithName("ratio"), WithMinRequests(4), WithErrorThreshold(0.5), WithCooldown(time.Hour))
	ok := func(context.Context) error { return nil }
	var calls int32

	require.NoError(t, b.Execute(context.Background(), ok))
	require.NoError(t, b.Execute(context.Background(), ok))
	require.NoError(t, b.Execute(context.Background(), ok))
	require.Error(t, b.Execute(context.Background(), failing(&calls)))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerCountsResetEachWindow(t *testing.T) {
	b := New(WithName("window"), WithMinRequests(2), WithWindow(50*time.Millisecond), WithCooldown(time.Hour))
	var calls int32

	require.Error(t, b.Execute(context.Background(), failing(&calls)))
	time.Sleep(80 * time.Millisecond)
	require.Error(t, b.Execute(context.Background(), failing(&calls)))
	assert.Equal(t, StateClosed, b.State(), "the first failure fell in the previous window")

	require.Error(t, b.Execute(context.Background(), failing(&calls)))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenAllowsSingleTrialThenCloses(t *testing.T) {
	b := New(WithName("half-open"), WithCooldown(50*time.Millisecond))
	var calls int32
	require.Error(t, b.Execute(context.Background(), failing(&calls)))
	require.Equal(t, StateOpen, b.State())

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	entered := make(chan struct{})
	release := make(chan struct{})
	trialDone := make(chan error, 1)
	go func() {
		trialDone <- b.Execute(context.Background(), func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	var second int32
	err := b.Execute(context.Background(), func(context.Context) error {
		atomic.AddInt32(&second, 1)
		return nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(0), atomic.LoadInt32(&second))

	close(release)
	require.NoError(t, <-trialDone)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(0), b.cb.Counts().TotalFailures)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Execute(context.Background(), func(context.Context) error { return nil }))
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New(WithName("reopen"), WithCooldown(40*time.Millisecond))
	var calls int32
	require.Error(t, b.Execute(context.Background(), failing(&calls)))
	time.Sleep(60 * time.Millisecond)

	require.ErrorIs(t, b.Execute(context.Background(), failing(&calls)), errDownstream)
	assert.Equal(t, StateOpen, b.State())
	require.ErrorIs(t, b.Execute(context.Background(), failing(&calls)), ErrCircuitOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBreakerCallTimeoutCountsAsFailure(t *testing.T) {
	b := New(WithName("timeout"), WithCallTimeout(20*time.Millisecond), WithCooldown(time.Hour))
	start := time.Now()
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	require.ErrorIs(t, err, ErrCallTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerAbandonsCallIgnoringContext(t *testing.T) {
	b := New(WithName("stubborn"), WithCallTimeout(20*time.Millisecond))
	err := b.Execute(context.Background(), func(context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	require.ErrorIs(t, err, ErrCallTimeout)
}

func TestCallReturnsTypedValue(t *testing.T) {
	b := New(WithName("typed"))
	v, err := Call(context.Background(), b, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestBreakerCallerCancellation(t *testing.T) {
	b := New(WithName("cancel"), WithCallTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := b.Execute(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrCallTimeout))
	assert.Equal(t, StateClosed, b.State(), "cancellation is not a downstream failure")
	require.NoError(t, b.Execute(context.Background(), func(context.Context) error { return nil }))
}

func TestBreakerCallerDeadlineIsNotCounted(t *testing.T) {
	b := New(WithName("caller-deadline"), WithCallTimeout(time.Second), WithCooldown(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := b.Execute(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return errors.New("request aborted")
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsRejected(err))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerSkipsCallForDoneContext(t *testing.T) {
	b := New(WithName("done"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	err := b.Execute(ctx, failing(&calls))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.Equal(t, StateClosed, b.State())
}

func TestStateListener(t *testing.T) {
	var seen []State
	b := New(WithName("listener"), WithCooldown(time.Hour), WithStateListener(func(_ string, _, to State) {
		seen = append(seen, to)
	}))
	var calls int32
	_ = b.Execute(context.Background(), failing(&calls))
	assert.Equal(t, []State{StateOpen}, seen)
	assert.Equal(t, "open", b.State().String())
}

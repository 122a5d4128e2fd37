package broker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionDoBeforeEstablish(t *testing.T) {
	var s Session
	called := false
	err := s.Do(func() error { called = true; return nil })
	require.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, called)
}

func TestSessionEstablishFailureLeavesDisconnected(t *testing.T) {
	var s Session
	dialErr := errors.New("refused")
	err := s.Establish(context.Background(), func(context.Context) error { return dialErr })
	require.ErrorIs(t, err, dialErr)
	assert.False(t, s.Connected())
}

func TestSessionLifecycle(t *testing.T) {
	var s Session
	require.NoError(t, s.Establish(context.Background(), func(context.Context) error { return nil }))
	assert.True(t, s.Connected())

	calls := 0
	require.NoError(t, s.Do(func() error { calls++; return nil }))
	assert.Equal(t, 1, calls)

	released := false
	require.NoError(t, s.Teardown(func() error { released = true; return nil }))
	assert.True(t, released)
	assert.ErrorIs(t, s.Do(func() error { return nil }), ErrNotConnected)
}

func TestSessionReconnectWaitsForInflightPublish(t *testing.T) {
	var s Session
	require.NoError(t, s.Establish(context.Background(), func(context.Context) error { return nil }))

	inflight := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.Do(func() error {
			close(inflight)
			<-release
			return nil
		})
	}()
	<-inflight

	done := make(chan struct{})
	go func() {
		_ = s.Establish(context.Background(), func(context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("reconnect ran while a publish was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("reconnect did not finish after publish drained")
	}
}

func TestSessionConcurrentEstablishCollapses(t *testing.T) {
	var s Session
	var dials int32
	entered := make(chan struct{})
	release := make(chan struct{})
	dial := func(context.Context) error {
		if atomic.AddInt32(&dials, 1) == 1 {
			close(entered)
		}
		<-release
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); _ = s.Establish(context.Background(), dial) }()
	<-entered

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); _ = s.Establish(context.Background(), dial) }()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&dials))
	assert.True(t, s.Connected())
}

func TestConnectionErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := error(&ConnectionError{Driver: "kafka", Endpoints: []string{"a:9092", "b:9092"}, Err: cause})
	assert.True(t, IsConnectionError(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "kafka: connect a:9092,b:9092: dial tcp: refused", err.Error())
}

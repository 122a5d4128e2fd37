package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"SignalFleet/internal/domain/models"
	"SignalFleet/pkg/broker"
	"SignalFleet/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalIngest_PublishesToIngress(t *testing.T) {
	ch := &fakeChannel{}
	in := NewSignalIngest(ch, "trading.signal", "signal.received", metrics.Nop{}, nil)
	in.newID = func() string { return "sig-1" }
	in.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600)) }

	acc, err := in.Accept(context.Background(), &models.SignalRequest{
		Symbol: "BTCUSDT", Interval: "1h", Strategy: "breakout", Payload: map[string]interface{}{"price": 42.0},
	})
	require.NoError(t, err)
	assert.Equal(t, "sig-1", acc.SignalID)

	sent := ch.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "trading.signal", sent[0].Topic)
	assert.Equal(t, "signal.received", sent[0].RoutingKey)
	sig := sent[0].Payload.(models.Signal)
	assert.Equal(t, "sig-1", sig.ID)
	assert.Equal(t, "breakout", sig.Strategy)
	assert.Equal(t, time.UTC, sig.CreatedAt.Location())
	assert.False(t, sig.Processed)
}

func TestSignalIngest_PublishFailure(t *testing.T) {
	ch := &fakeChannel{closed: true}
	in := NewSignalIngest(ch, "trading.signal", "signal.received", nil, nil)

	_, err := in.Accept(context.Background(), &models.SignalRequest{Symbol: "ETHUSDT", Interval: "4h", Strategy: "s"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPublish))
	assert.True(t, errors.Is(err, broker.ErrNotConnected))
}

func TestSignalIngest_UniqueIDs(t *testing.T) {
	ch := &fakeChannel{}
	in := NewSignalIngest(ch, "t", "k", nil, nil)
	req := &models.SignalRequest{Symbol: "BTCUSDT", Interval: "1h", Strategy: "s"}

	a, err := in.Accept(context.Background(), req)
	require.NoError(t, err)
	b, err := in.Accept(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, a.SignalID, b.SignalID)
}

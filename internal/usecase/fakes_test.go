package usecase

import (
	"context"
	"sync"

	"SignalFleet/pkg/broker"
)

type published struct {
	Topic      string
	RoutingKey string
	Payload    interface{}
}

type fakeChannel struct {
	mu       sync.Mutex
	messages []published
	err      error
	closed   bool
}

func (f *fakeChannel) Connect(context.Context) error   { return nil }
func (f *fakeChannel) Reconnect(context.Context) error { return nil }
func (f *fakeChannel) Connected() bool                 { return !f.closed }
func (f *fakeChannel) Driver() string                  { return "fake" }
func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func (f *fakeChannel) Publish(_ context.Context, topic, routingKey string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return broker.ErrNotConnected
	}
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{Topic: topic, RoutingKey: routingKey, Payload: payload})
	return nil
}

func (f *fakeChannel) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.messages...)
}

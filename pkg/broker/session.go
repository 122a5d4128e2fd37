package broker

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Session tracks the connected state of a single broker connection.
//
// Publishes run under the shared side of the guard, so any number of them may be
// in flight at once. Connect, reconnect and close take the exclusive side and
// therefore wait for in-flight publishes to drain before touching the connection.
// Concurrent reconnect requests collapse into one attempt.
type Session struct {
	mu        sync.RWMutex
	connected bool
	group     singleflight.Group
}

// Do runs fn if the session is connected.
func (s *Session) Do(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return ErrNotConnected
	}
	return fn()
}

// Establish runs dial under the exclusive guard and marks the session connected on success.
func (s *Session) Establish(ctx context.Context, dial func(context.Context) error) error {
	_, err, _ := s.group.Do("establish", func() (interface{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := dial(ctx); err != nil {
			s.connected = false
			return nil, err
		}
		s.connected = true
		return nil, nil
	})
	return err
}

// Teardown marks the session disconnected and runs release under the exclusive guard.
func (s *Session) Teardown(release func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if release == nil {
		return nil
	}
	return release()
}

// Connected reports the current state.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

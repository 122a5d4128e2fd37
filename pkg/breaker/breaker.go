package breaker

import (
	"context"
	"errors"
	"fmt"

	applogger "SignalFleet/pkg/logger"

	"github.com/sony/gobreaker"
)

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// Breaker guards one logical downstream call.
type Breaker struct {
	cfg *Config
	cb  *gobreaker.CircuitBreaker
}

// New creates a breaker. Half-open admits exactly one trial call.
func New(opts ...Option) *Breaker {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.Nop()
	}
	initMetricsOnce()

	b := &Breaker{cfg: cfg}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    cfg.Window, // fixed window: closed-state counts reset every Window
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < cfg.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= cfg.ErrorThreshold
		},
		// A caller that gave up says nothing about the downstream.
		IsSuccessful: func(err error) bool {
			var gone *callerGone
			return err == nil || errors.As(err, &gone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.transition(name, fromGobreaker(from), fromGobreaker(to))
		},
	})
	observeState(cfg.Name, StateClosed)
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.cfg.Name }

// State returns the current state.
func (b *Breaker) State() State { return fromGobreaker(b.cb.State()) }

// Execute runs fn through the breaker.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call runs fn through b and returns its typed result. When ctx ends first the
// call returns ctx.Err() and the breaker counts nothing against the downstream.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.bounded(ctx, func(ctx context.Context) (interface{}, error) {
			return fn(ctx)
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			rejectedTotal.WithLabelValues(b.cfg.Name).Inc()
			return zero, fmt.Errorf("%s: %w", b.cfg.Name, ErrCircuitOpen)
		}
		var gone *callerGone
		if errors.As(err, &gone) {
			return zero, gone.err
		}
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

// callerGone marks a call ended by the caller's context, not by the downstream.
type callerGone struct{ err error }

func (e *callerGone) Error() string { return e.err.Error() }
func (e *callerGone) Unwrap() error { return e.err }

type outcome struct {
	v   interface{}
	err error
}

// bounded runs fn with the call timeout. On timeout the call is abandoned:
// its context is cancelled and its result discarded.
func (b *Breaker) bounded(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	cctx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%s: panic: %v", b.cfg.Name, r)}
			}
		}()
		v, err := fn(cctx)
		done <- outcome{v: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return r.v, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, &callerGone{err: err}
		}
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, b.timeoutErr()
		}
		return nil, r.err
	case <-cctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, &callerGone{err: err}
		}
		return nil, b.timeoutErr()
	}
}

func (b *Breaker) timeoutErr() error {
	timeoutTotal.WithLabelValues(b.cfg.Name).Inc()
	return fmt.Errorf("%s: %w after %s", b.cfg.Name, ErrCallTimeout, b.cfg.CallTimeout)
}

func (b *Breaker) transition(name string, from, to State) {
	observeState(name, to)
	fields := []applogger.Field{
		applogger.String("breaker", name),
		applogger.String("from", from.String()),
		applogger.String("to", to.String()),
	}
	if to == StateOpen {
		b.cfg.Logger.Warn("breaker opened", append(fields, applogger.Duration("cooldown_ms", b.cfg.Cooldown))...)
	} else {
		b.cfg.Logger.Info("breaker state changed", fields...)
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(name, from, to)
	}
}

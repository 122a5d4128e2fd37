package breaker

import (
	"time"

	applogger "SignalFleet/pkg/logger"
)

// Option configures a Breaker.
type Option func(*Config)

// Config holds breaker settings.
type Config struct {
	Name           string
	ErrorThreshold float64 // failure ratio in [0,1] that opens the breaker
	MinRequests    uint32  // requests in the window before the ratio is considered
	Window         time.Duration
	Cooldown       time.Duration
	CallTimeout    time.Duration
	Logger         *applogger.Logger
	OnStateChange  func(name string, from, to State)
}

func defaultConfig() *Config {
	return &Config{
		Name:           "default",
		ErrorThreshold: 0.5,
		MinRequests:    1,
		Window:         10 * time.Second,
		Cooldown:       30 * time.Second,
		CallTimeout:    3 * time.Second,
	}
}

// WithName sets the breaker name used in logs and metrics.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithErrorThreshold sets the failure ratio that opens the breaker.
func WithErrorThreshold(ratio float64) Option {
	return func(c *Config) {
		if ratio > 0 && ratio <= 1 {
			c.ErrorThreshold = ratio
		}
	}
}

// WithMinRequests sets how many requests the window needs before it can trip.
func WithMinRequests(n uint32) Option {
	return func(c *Config) {
		if n > 0 {
			c.MinRequests = n
		}
	}
}

// WithWindow sets the fixed window after which closed-state counts reset.
func WithWindow(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Window = d
		}
	}
}

// WithCooldown sets how long the breaker stays open before a trial call.
func WithCooldown(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Cooldown = d
		}
	}
}

// WithCallTimeout bounds every call passed through the breaker.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.CallTimeout = d
		}
	}
}

// WithLogger sets the logger for state transitions.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithStateListener registers a callback for state transitions.
func WithStateListener(fn func(name string, from, to State)) Option {
	return func(c *Config) {
		c.OnStateChange = fn
	}
}

// Settings groups the tunables shared by a family of breakers.
type Settings struct {
	ErrorThreshold float64
	MinRequests    uint32
	Window         time.Duration
	Cooldown       time.Duration
	CallTimeout    time.Duration
}

// Options expands s into breaker options.
func (s Settings) Options() []Option {
	return []Option{
		WithErrorThreshold(s.ErrorThreshold),
		WithMinRequests(s.MinRequests),
		WithWindow(s.Window),
		WithCooldown(s.Cooldown),
		WithCallTimeout(s.CallTimeout),
	}
}

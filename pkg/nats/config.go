package nats

import "time"

// Option configures Channel.
type Option func(*Config)

// Config holds JetStream channel configuration.
type Config struct {
	URL         string
	Name        string
	Stream      string
	Subjects    []string
	DialTimeout time.Duration
	Replicas    int
}

// WithURL sets the server URL (comma separated for a cluster).
func WithURL(url string) Option {
	return func(c *Config) {
		c.URL = url
	}
}

// WithName sets the connection name shown by the server.
func WithName(name string) Option {
	return func(c *Config) {
		if name != "" {
			c.Name = name
		}
	}
}

// WithStream makes Connect ensure a file-backed stream capturing subjects exists.
func WithStream(name string, subjects []string, replicas int) Option {
	return func(c *Config) {
		c.Stream = name
		c.Subjects = subjects
		if replicas > 0 {
			c.Replicas = replicas
		}
	}
}

// WithDialTimeout sets the connect timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.DialTimeout = d
		}
	}
}

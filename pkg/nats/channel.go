package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"SignalFleet/pkg/broker"

	"github.com/nats-io/nats.go"
)

const (
	headerRoutingKey = "Routing-Key"
	headerSignalID   = "Signal-Id"
)

type streamPublisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Channel is a durable publish path backed by NATS JetStream.
// Topic and routing key form the subject "topic.routingKey".
type Channel struct {
	cfg     *Config
	session broker.Session
	nc      *nats.Conn
	js      streamPublisher

	dial func(ctx context.Context, cfg *Config) (*nats.Conn, streamPublisher, error)
}

// NewChannel validates the configuration. No network I/O happens until Connect.
func NewChannel(opts ...Option) (*Channel, error) {
	cfg := &Config{
		Name:        "signalfleet",
		DialTimeout: 5 * time.Second,
		Replicas:    1,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	return &Channel{cfg: cfg, dial: dialJetStream}, nil
}

// Connect opens the connection and the JetStream context.
// Client-side auto reconnect is disabled; Reconnect is the only way back.
func (c *Channel) Connect(ctx context.Context) error {
	return c.session.Establish(ctx, func(ctx context.Context) error {
		nc, js, err := c.dial(ctx, c.cfg)
		if err != nil {
			return &broker.ConnectionError{Driver: "nats", Endpoints: strings.Split(c.cfg.URL, ","), Err: err}
		}
		if c.nc != nil {
			c.nc.Close()
		}
		c.nc, c.js = nc, js
		return nil
	})
}

// Reconnect replaces the connection once in-flight publishes have drained.
func (c *Channel) Reconnect(ctx context.Context) error {
	return c.Connect(ctx)
}

// Publish stores payload in the stream and returns after the PubAck.
func (c *Channel) Publish(ctx context.Context, topic, routingKey string, payload interface{}) error {
	data, err := broker.Encode(payload)
	if err != nil {
		return err
	}
	msg := &nats.Msg{Subject: Subject(topic, routingKey), Data: data, Header: nats.Header{}}
	msg.Header.Set(headerRoutingKey, routingKey)
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set("Durable", "true")
	// No Nats-Msg-Id: every publish is its own delivery, consumers dedupe by signal id.
	if id := broker.MessageID(payload); id != "" {
		msg.Header.Set(headerSignalID, id)
	}

	return c.session.Do(func() error {
		if _, err := c.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
			return fmt.Errorf("publish %s: %w", msg.Subject, err)
		}
		return nil
	})
}

// Connected reports whether a session is established.
func (c *Channel) Connected() bool { return c.session.Connected() }

// Driver names the backend.
func (c *Channel) Driver() string { return "nats" }

// Close drains the connection.
func (c *Channel) Close() error {
	return c.session.Teardown(func() error {
		if c.nc == nil {
			return nil
		}
		err := c.nc.Drain()
		c.nc, c.js = nil, nil
		return err
	})
}

// Subject joins topic and routing key.
func Subject(topic, routingKey string) string {
	if routingKey == "" {
		return topic
	}
	return topic + "." + routingKey
}

func dialJetStream(ctx context.Context, cfg *Config) (*nats.Conn, streamPublisher, error) {
	timeout := cfg.DialTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left > 0 && left < timeout {
			timeout = left
		}
	}
	nc, err := nats.Connect(cfg.URL, nats.Name(cfg.Name), nats.Timeout(timeout), nats.NoReconnect())
	if err != nil {
		return nil, nil, err
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	if cfg.Stream != "" {
		if err := ensureStream(js, cfg); err != nil {
			nc.Close()
			return nil, nil, err
		}
	}
	return nc, js, nil
}

func ensureStream(js nats.JetStreamContext, cfg *Config) error {
	_, err := js.StreamInfo(cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", cfg.Stream, err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     cfg.Stream,
		Subjects: cfg.Subjects,
		Storage:  nats.FileStorage,
		Replicas: cfg.Replicas,
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", cfg.Stream, err)
	}
	return nil
}

package kafka

import (
	"context"
	"fmt"

	"SignalFleet/pkg/broker"

	"github.com/segmentio/kafka-go"
)

// Channel is a durable publish path backed by Kafka.
//
// Topic maps to the Kafka topic and the routing key becomes the message key,
// so every message sharing a routing key keeps its order within one partition.
type Channel struct {
	cfg      *ProducerConfig
	session  broker.Session
	producer *Producer

	probe     func(ctx context.Context) error
	newWriter func(cfg *ProducerConfig) messageWriter
}

// NewChannel validates the configuration. No network I/O happens until Connect.
func NewChannel(opts ...ProducerOption) (*Channel, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	ch := &Channel{cfg: cfg}
	ch.probe = ch.dialBrokers
	ch.newWriter = func(cfg *ProducerConfig) messageWriter { return newProducer(cfg).writer }
	return ch, nil
}

// Connect checks that at least one broker answers a metadata request and opens the writer.
func (c *Channel) Connect(ctx context.Context) error {
	return c.session.Establish(ctx, func(ctx context.Context) error {
		if err := c.probe(ctx); err != nil {
			return &broker.ConnectionError{Driver: "kafka", Endpoints: c.cfg.Brokers, Err: err}
		}
		if c.producer != nil {
			_ = c.producer.Close()
		}
		c.producer = newProducerWithWriter(c.newWriter(c.cfg), c.cfg.Compression)
		return nil
	})
}

// Reconnect replaces the writer once in-flight publishes have drained.
func (c *Channel) Reconnect(ctx context.Context) error {
	return c.Connect(ctx)
}

// Publish writes payload to topic and returns after the broker acknowledged it.
func (c *Channel) Publish(ctx context.Context, topic, routingKey string, payload interface{}) error {
	headers := []kafka.Header{
		{Key: HeaderRoutingKey, Value: []byte(routingKey)},
		{Key: HeaderContentType, Value: []byte("application/json")},
		{Key: HeaderDurable, Value: []byte("true")},
	}
	if id := broker.MessageID(payload); id != "" {
		headers = append(headers,
			kafka.Header{Key: HeaderSignalID, Value: []byte(id)},
			kafka.Header{Key: HeaderTraceID, Value: []byte(id)},
		)
	}
	return c.session.Do(func() error {
		return c.producer.Publish(ctx, topic, []byte(routingKey), payload, headers...)
	})
}

// Connected reports whether a session is established.
func (c *Channel) Connected() bool { return c.session.Connected() }

// Driver names the backend.
func (c *Channel) Driver() string { return "kafka" }

// Close flushes and closes the writer.
func (c *Channel) Close() error {
	return c.session.Teardown(func() error {
		if c.producer == nil {
			return nil
		}
		err := c.producer.Close()
		c.producer = nil
		return err
	})
}

func (c *Channel) dialBrokers(ctx context.Context) error {
	dialer := &kafka.Dialer{ClientID: c.cfg.ClientID, Timeout: c.cfg.DialTimeout}
	var lastErr error
	for _, addr := range c.cfg.Brokers {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = conn.Brokers()
		_ = conn.Close()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

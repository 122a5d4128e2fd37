package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, 3000, c.Server.Port)
	assert.Equal(t, "kafka", c.Broker.Driver)
	assert.Equal(t, []string{"localhost:9092"}, c.KafkaBrokers())
	assert.Equal(t, Route{Topic: "trading.signal", RoutingKey: "signal.received"}, c.Broker.Ingress)
	assert.Equal(t, Route{Topic: "signals", RoutingKey: "signal.processed"}, c.Broker.Output)
	assert.Equal(t, "your-org", c.SourceControl.Owner)
	assert.Equal(t, 0.5, c.Breaker.ErrorThreshold)
	assert.Equal(t, 30*time.Second, c.Breaker.Cooldown)
	assert.Equal(t, 3*time.Second, c.Breaker.CallTimeout)
	assert.Equal(t, 30*time.Second, c.Dataflow.Deadline)

	require.Len(t, c.Services, 2)
	assert.Equal(t, "Signal Entry & News Scraper", c.Services[0].Name)
	assert.Equal(t, []string{"/webhook", "/health"}, c.Services[0].ExpectedEndpoints)
	assert.Equal(t, "AI Signal Processor", c.Services[1].Name)

	require.Len(t, c.Scripts, 6)
	for _, s := range c.Scripts {
		assert.Equal(t, "POST", s.Method, s.Name)
	}
}

func TestParse_Overrides(t *testing.T) {
	c, err := Parse([]byte(`
environment: production
broker:
  driver: nats
  url: nats://nats:4222
  ingress:
    topic: in
    routing_key: rk
services:
  - name: svc
    repository: svc-repo
    deployment_url: http://x
    expected_endpoints: ["/a", "/b"]
`))
	require.NoError(t, err)

	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, "nats://nats:4222", c.NATSURL())
	assert.Equal(t, Route{Topic: "in", RoutingKey: "rk"}, c.Broker.Ingress)
	require.Len(t, c.Services, 1)
	assert.Equal(t, []string{"/a", "/b"}, c.Services[0].ExpectedEndpoints)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad driver": "broker:\n  driver: amqp\n",
		"bad endpoint": `
services:
  - name: svc
    repository: r
    deployment_url: http://x
    expected_endpoints: ["health"]
`,
		"duplicate service": `
services:
  - {name: a, repository: r, deployment_url: "http://x"}
  - {name: a, repository: r, deployment_url: "http://y"}
`,
		"unknown script base": `
scripts:
  - {name: s, base: nowhere, path: /x}
`,
		"follow up without id": `
scripts:
  - {name: s, base: ai, path: /x, follow_up_path: "/y/{id}"}
`,
		"threshold": "breaker:\n  error_threshold: 1.5\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(envMap(map[string]string{
		"PORT":             "8088",
		"RABBITMQ_URL":     "ignored:1",
		"BROKER_URL":       "k1:9092, k2:9092",
		"GITHUB_OWNER":     "acme",
		"GITHUB_TOKEN":     "tok",
		"AI_SERVICE_URL":   "http://ai",
		"NEWS_SERVICE_URL": "http://news",
		"REDIS_ADDR":       "redis:6379",
		"LOG_LEVEL":        "DEBUG",
	}))
	require.NoError(t, err)

	assert.Equal(t, 8088, c.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers())
	assert.Equal(t, "acme", c.SourceControl.Owner)
	assert.Equal(t, "tok", c.SourceControl.Token)
	assert.Equal(t, "http://ai", c.Endpoints.AI)
	assert.Equal(t, "http://news", c.Endpoints.News)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "debug", c.Logging.Level)
}

func TestApplyEnv_BadPort(t *testing.T) {
	c := Default()
	assert.Error(t, c.ApplyEnv(envMap(map[string]string{"PORT": "http"})))
}

func TestApplyEnv_NatsWithoutURL(t *testing.T) {
	c := Default()
	c.Broker.URL = ""
	err := c.ApplyEnv(envMap(map[string]string{"BROKER_DRIVER": "nats"}))
	assert.Error(t, err)

	err = c.ApplyEnv(envMap(map[string]string{"BROKER_DRIVER": "nats", "NATS_URL": "nats://n:4222"}))
	assert.NoError(t, err)
}

func TestScriptBaseURL(t *testing.T) {
	c := Default()

	u, err := c.ScriptBaseURL("chart")
	require.NoError(t, err)
	assert.Equal(t, c.Endpoints.Chart, u)

	u, err = c.ScriptBaseURL("https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", u)

	_, err = c.ScriptBaseURL("ftp")
	assert.Error(t, err)
}

func TestLoadWithEnv_SampleFile(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, src, 0o600))

	t.Setenv("KAFKA_BROKERS", "broker:29092")
	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"broker:29092"}, c.KafkaBrokers())
	assert.Len(t, c.Services, 2)
	assert.Len(t, c.Scripts, 6)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"3000" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logging struct {
		Level     string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format    string `yaml:"format" default:"json" validate:"oneof=json console"`
		Collector struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"ops.logs"`
			RoutingKey     string        `yaml:"routing_key" default:"log.aggregated"`
			Interval       time.Duration `yaml:"interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Broker struct {
		Driver  string        `yaml:"driver" default:"kafka" validate:"oneof=kafka nats"`
		URL     string        `yaml:"url" default:"localhost:9092"`
		Ingress Route         `yaml:"ingress"`
		Output  Route         `yaml:"output"`
		Connect RetryConfig   `yaml:"connect"`
		Timeout time.Duration `yaml:"timeout" default:"5s"`
	} `yaml:"broker"`
	Kafka struct {
		Brokers     []string `yaml:"brokers"`
		ClientID    string   `yaml:"client_id" default:"signalfleet"`
		Compression string   `yaml:"compression" default:"gzip"`
		Producer    struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"1"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled" default:"true"`
			GroupID    string        `yaml:"group_id" default:"signal_processing_queue"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"trading.signal.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	NATS struct {
		URL      string   `yaml:"url"`
		Name     string   `yaml:"name" default:"signalfleet"`
		Stream   string   `yaml:"stream"`
		Subjects []string `yaml:"subjects"`
		Replicas int      `yaml:"replicas" default:"1"`
	} `yaml:"nats"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size" default:"10"`
		Prefix   string `yaml:"prefix" default:"signalfleet"`

		// LocalEntries and LocalTTL size the in-process layer in front of Redis.
		LocalEntries int           `yaml:"local_entries" default:"1000"`
		LocalTTL     time.Duration `yaml:"local_ttl" default:"30s"`
	} `yaml:"redis"`
	SourceControl struct {
		BaseURL string        `yaml:"base_url" default:"https://api.github.com" validate:"url"`
		Owner   string        `yaml:"owner" default:"your-org" validate:"required"`
		Token   string        `yaml:"token"`
		Timeout time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"source_control"`
	Breaker   BreakerConfig `yaml:"breaker"`
	Endpoints struct {
		SignalEntry string `yaml:"signal_entry" default:"http://localhost:3001"`
		AI          string `yaml:"ai" default:"http://localhost:3002"`
		News        string `yaml:"news" default:"http://localhost:3003"`
		Telegram    string `yaml:"telegram" default:"http://localhost:3004"`
		Chart       string `yaml:"chart" default:"http://localhost:3005"`
		Subscriber  string `yaml:"subscriber" default:"http://localhost:3006"`
	} `yaml:"endpoints"`
	Validation struct {
		ScheduleInterval time.Duration `yaml:"schedule_interval" default:"5m"`
		ReportTTL        time.Duration `yaml:"report_ttl" default:"1h"`
		ProbeTimeout     time.Duration `yaml:"probe_timeout" default:"5s"`
	} `yaml:"validation"`
	Dataflow struct {
		Deadline     time.Duration `yaml:"deadline" default:"30s"`
		PollInterval time.Duration `yaml:"poll_interval" default:"1s"`
		Symbol       string        `yaml:"symbol" default:"BTCUSDT"`
		Interval     string        `yaml:"interval" default:"1h"`
		Strategy     string        `yaml:"strategy" default:"dataflow-test"`
	} `yaml:"dataflow"`
	Ingest struct {
		RateLimit    int           `yaml:"rate_limit" default:"100"`
		RateWindow   time.Duration `yaml:"rate_window" default:"15m"`
		IdleTTL      time.Duration `yaml:"idle_ttl" default:"30m"`
		DedupTTL     time.Duration `yaml:"dedup_ttl" default:"24h"`
		MaxBodyBytes string        `yaml:"max_body_bytes" default:"1M"`
	} `yaml:"ingest"`
	Services []ServiceConfig `yaml:"services" validate:"dive"`
	Scripts  []ScriptConfig  `yaml:"scripts" validate:"dive"`
}

// Route is a topic plus routing key pair on the broker.
type Route struct {
	Topic      string `yaml:"topic" validate:"required"`
	RoutingKey string `yaml:"routing_key" validate:"required"`
}

type RetryConfig struct {
	Attempts   int           `yaml:"attempts" default:"10"`
	BackoffMin time.Duration `yaml:"backoff_min" default:"500ms"`
	BackoffMax time.Duration `yaml:"backoff_max" default:"10s"`
}

type BreakerConfig struct {
	ErrorThreshold float64       `yaml:"error_threshold" default:"0.5" validate:"gt=0,lte=1"`
	MinRequests    uint32        `yaml:"min_requests" default:"1"`
	Window         time.Duration `yaml:"window" default:"10s"`
	Cooldown       time.Duration `yaml:"cooldown" default:"30s"`
	CallTimeout    time.Duration `yaml:"call_timeout" default:"3s"`
}

type ServiceConfig struct {
	Name              string   `yaml:"name" validate:"required"`
	Repository        string   `yaml:"repository" validate:"required"`
	DeploymentURL     string   `yaml:"deployment_url" validate:"required,url"`
	ExpectedEndpoints []string `yaml:"expected_endpoints" validate:"dive,startswith=/"`
}

// ScriptConfig declares one functional probe. Base names an entry of Endpoints
// (signal_entry, ai, news, telegram, chart, subscriber) or is an absolute URL.
type ScriptConfig struct {
	Name           string                 `yaml:"name" validate:"required"`
	Base           string                 `yaml:"base" validate:"required"`
	Method         string                 `yaml:"method" default:"POST" validate:"oneof=GET POST"`
	Path           string                 `yaml:"path" validate:"required,startswith=/"`
	Body           map[string]interface{} `yaml:"body"`
	RequiredFields []string               `yaml:"required_fields"`
	AnyOfFields    []string               `yaml:"any_of_fields"`
	ArrayField     string                 `yaml:"array_field"`
	IDField        string                 `yaml:"id_field"`
	FollowUpPath   string                 `yaml:"follow_up_path"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns a configuration built from defaults only.
func Default() *Config {
	var c Config
	if err := c.finish(); err != nil {
		panic(err)
	}
	return &c
}

func (c *Config) finish() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	if c.Broker.Ingress == (Route{}) {
		c.Broker.Ingress = Route{Topic: "trading.signal", RoutingKey: "signal.received"}
	}
	if c.Broker.Output == (Route{}) {
		c.Broker.Output = Route{Topic: "signals", RoutingKey: "signal.processed"}
	}
	if len(c.Services) == 0 {
		c.Services = DefaultServices()
	}
	if len(c.Scripts) == 0 {
		c.Scripts = DefaultScripts()
	}
	for i := range c.Scripts {
		if err := defaults.Set(&c.Scripts[i]); err != nil {
			return fmt.Errorf("apply defaults: scripts[%d]: %w", i, err)
		}
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment and re-validates.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, ok := lookup(key)
		if !ok {
			return ""
		}
		return strings.TrimSpace(v)
	}

	if v := get("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := get("BROKER_DRIVER"); v != "" {
		c.Broker.Driver = v
	}
	if v := get("RABBITMQ_URL"); v != "" {
		c.Broker.URL = v
	}
	if v := get("BROKER_URL"); v != "" {
		c.Broker.URL = v
	}
	if v := get("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := get("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := get("GITHUB_TOKEN"); v != "" {
		c.SourceControl.Token = v
	}
	if v := get("GITHUB_OWNER"); v != "" {
		c.SourceControl.Owner = v
	}
	if v := get("SIGNAL_ENTRY_URL"); v != "" {
		c.Endpoints.SignalEntry = v
	}
	if v := get("AI_SERVICE_URL"); v != "" {
		c.Endpoints.AI = v
	}
	if v := get("NEWS_SERVICE_URL"); v != "" {
		c.Endpoints.News = v
	}
	if v := get("TELEGRAM_SERVICE_URL"); v != "" {
		c.Endpoints.Telegram = v
	}
	if v := get("CHART_SERVICE_URL"); v != "" {
		c.Endpoints.Chart = v
	}
	if v := get("SUBSCRIBER_SERVICE_URL"); v != "" {
		c.Endpoints.Subscriber = v
	}
	if v := get("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := get("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// Validate checks struct tags and the cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	switch c.Broker.Driver {
	case "kafka":
		if len(c.KafkaBrokers()) == 0 {
			return fmt.Errorf("kafka.brokers or broker.url is required for driver kafka")
		}
	case "nats":
		if c.NATSURL() == "" {
			return fmt.Errorf("nats.url or broker.url is required for driver nats")
		}
	}
	seen := make(map[string]struct{}, len(c.Services))
	for _, s := range c.Services {
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("services: duplicate name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	for _, s := range c.Scripts {
		if _, err := c.ScriptBaseURL(s.Base); err != nil {
			return fmt.Errorf("scripts.%s: %w", s.Name, err)
		}
		if s.FollowUpPath != "" && s.IDField == "" {
			return fmt.Errorf("scripts.%s: follow_up_path requires id_field", s.Name)
		}
	}
	return nil
}

// KafkaBrokers prefers kafka.brokers and falls back to the broker URL list.
func (c *Config) KafkaBrokers() []string {
	if len(c.Kafka.Brokers) > 0 {
		return c.Kafka.Brokers
	}
	return splitList(c.Broker.URL)
}

func (c *Config) NATSURL() string {
	if c.NATS.URL != "" {
		return c.NATS.URL
	}
	return c.Broker.URL
}

// ScriptBaseURL resolves a script base name to a service URL.
func (c *Config) ScriptBaseURL(base string) (string, error) {
	switch base {
	case "signal_entry":
		return c.Endpoints.SignalEntry, nil
	case "ai":
		return c.Endpoints.AI, nil
	case "news":
		return c.Endpoints.News, nil
	case "telegram":
		return c.Endpoints.Telegram, nil
	case "chart":
		return c.Endpoints.Chart, nil
	case "subscriber":
		return c.Endpoints.Subscriber, nil
	}
	if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
		return strings.TrimRight(base, "/"), nil
	}
	return "", fmt.Errorf("unknown base %q", base)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

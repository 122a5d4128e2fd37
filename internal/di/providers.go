package di

import (
	"fmt"
	"strings"

	"SignalFleet/internal/domain/models"
	"SignalFleet/internal/domain/repository"
	domsvc "SignalFleet/internal/domain/service"
	"SignalFleet/internal/handler/api"
	internalrepo "SignalFleet/internal/repository"
	"SignalFleet/internal/service/probe"
	"SignalFleet/internal/service/ratelimit"
	"SignalFleet/internal/service/sourcecontrol"
	"SignalFleet/internal/usecase"
	"SignalFleet/pkg/breaker"
	"SignalFleet/pkg/cache"
	"SignalFleet/pkg/config"
	xhttp "SignalFleet/pkg/http"
	pkgkafka "SignalFleet/pkg/kafka"
	applogger "SignalFleet/pkg/logger"
	"SignalFleet/pkg/metrics"
	pkgnats "SignalFleet/pkg/nats"
	"SignalFleet/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  "stdout",
		Service: "signalfleet",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideEventChannel builds the broker channel for the configured driver. It is not connected yet.
func ProvideEventChannel(cfg *config.Config) (repository.EventChannel, error) {
	switch cfg.Broker.Driver {
	case "nats":
		ch, err := pkgnats.NewChannel(
			pkgnats.WithURL(cfg.NATSURL()),
			pkgnats.WithName(cfg.NATS.Name),
			pkgnats.WithStream(cfg.NATS.Stream, cfg.NATS.Subjects, cfg.NATS.Replicas),
			pkgnats.WithDialTimeout(cfg.Broker.Timeout),
		)
		if err != nil {
			return nil, fmt.Errorf("nats channel: %w", err)
		}
		return ch, nil
	default:
		ch, err := pkgkafka.NewChannel(
			pkgkafka.WithBrokers(cfg.KafkaBrokers()),
			pkgkafka.WithClientID(cfg.Kafka.ClientID),
			pkgkafka.WithCompression(cfg.Kafka.Compression),
			pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
			pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
			pkgkafka.WithTimeouts(cfg.Broker.Timeout, cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
			pkgkafka.WithHashByKey(true),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka channel: %w", err)
		}
		return ch, nil
	}
}

// ProvideCache returns the memory cache, layered over Redis when Redis is enabled and reachable.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mc := cache.NewMemoryCache()
		return mc, func() { _ = mc.Close() }, nil
	}

	rc, err := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		l.Warn("redis unavailable, using memory cache", applogger.String("addr", cfg.Redis.Addr), applogger.Error(err))
		mc := cache.NewMemoryCache()
		return mc, func() { _ = mc.Close() }, nil
	}
	lc := cache.NewLayeredCache(rc, cache.WithL1(cfg.Redis.LocalEntries, cfg.Redis.LocalTTL))
	return lc, func() { _ = lc.Close() }, nil
}

func ProvideReportStore(c cache.Service, cfg *config.Config) repository.ReportStore {
	return internalrepo.NewCacheReportStore(c, cfg.Validation.ReportTTL)
}

func ProvideIdempotencyStore(c cache.Service, cfg *config.Config) repository.IdempotencyStore {
	return internalrepo.NewCacheIdempotencyStore(c, "signal:seen", cfg.Ingest.DedupTTL)
}

func ProvideProber(cfg *config.Config) domsvc.Prober {
	return probe.NewHTTPProber(cfg.Validation.ProbeTimeout)
}

func ProvideRepositoryLookup(cfg *config.Config) domsvc.RepositoryLookup {
	return sourcecontrol.NewGitHub(cfg.SourceControl.BaseURL, cfg.SourceControl.Token, cfg.SourceControl.Timeout)
}

// ProvideBreakerSettings maps the breaker section onto the shared tunables.
func ProvideBreakerSettings(cfg *config.Config) breaker.Settings {
	return breaker.Settings{
		ErrorThreshold: cfg.Breaker.ErrorThreshold,
		MinRequests:    cfg.Breaker.MinRequests,
		Window:         cfg.Breaker.Window,
		Cooldown:       cfg.Breaker.Cooldown,
		CallTimeout:    cfg.Breaker.CallTimeout,
	}
}

// ServiceRegistry converts the configured services into descriptors.
func ServiceRegistry(cfg *config.Config) []models.ServiceDescriptor {
	out := make([]models.ServiceDescriptor, 0, len(cfg.Services))
	for _, s := range cfg.Services {
		out = append(out, models.ServiceDescriptor{
			Name:              s.Name,
			Repository:        s.Repository,
			DeploymentBaseURL: strings.TrimRight(s.DeploymentURL, "/"),
			ExpectedEndpoints: append([]string(nil), s.ExpectedEndpoints...),
		})
	}
	return out
}

// ScriptChecks resolves the configured scripts against the endpoint table.
func ScriptChecks(cfg *config.Config) ([]models.ScriptCheck, error) {
	out := make([]models.ScriptCheck, 0, len(cfg.Scripts))
	for _, s := range cfg.Scripts {
		base, err := cfg.ScriptBaseURL(s.Base)
		if err != nil {
			return nil, fmt.Errorf("script %q: %w", s.Name, err)
		}
		out = append(out, models.ScriptCheck{
			Name:           s.Name,
			BaseURL:        base,
			Method:         s.Method,
			Path:           s.Path,
			Body:           s.Body,
			RequiredFields: s.RequiredFields,
			AnyOfFields:    s.AnyOfFields,
			ArrayField:     s.ArrayField,
			IDField:        s.IDField,
			FollowUpPath:   s.FollowUpPath,
		})
	}
	return out, nil
}

func ProvideFleetValidator(
	cfg *config.Config,
	lookup domsvc.RepositoryLookup,
	prober domsvc.Prober,
	m repository.Metrics,
	l *applogger.Logger,
	bs breaker.Settings,
) (*usecase.FleetValidator, error) {
	return usecase.NewFleetValidator(ServiceRegistry(cfg), cfg.SourceControl.Owner, lookup, prober, m, l, bs.Options()...)
}

func ProvideDataflowCorrelator(
	cfg *config.Config,
	ch repository.EventChannel,
	prober domsvc.Prober,
	m repository.Metrics,
	l *applogger.Logger,
	bs breaker.Settings,
) (*usecase.DataflowCorrelator, error) {
	return usecase.NewDataflowCorrelator(usecase.DataflowConfig{
		Topic:        cfg.Broker.Ingress.Topic,
		RoutingKey:   cfg.Broker.Ingress.RoutingKey,
		Deadline:     cfg.Dataflow.Deadline,
		PollInterval: cfg.Dataflow.PollInterval,
		Symbol:       cfg.Dataflow.Symbol,
		Interval:     cfg.Dataflow.Interval,
		Strategy:     cfg.Dataflow.Strategy,
		Stages:       usecase.DefaultDataflowStages(cfg.Endpoints.AI, cfg.Endpoints.News, cfg.Endpoints.Telegram),
	}, ch, prober, m, l, bs.Options()...)
}

func ProvideScriptValidator(
	cfg *config.Config,
	prober domsvc.Prober,
	m repository.Metrics,
	l *applogger.Logger,
	bs breaker.Settings,
) (*usecase.ScriptValidator, error) {
	checks, err := ScriptChecks(cfg)
	if err != nil {
		return nil, err
	}
	return usecase.NewScriptValidator(checks, prober, m, l, bs.Options()...)
}

func ProvideSignalIngest(cfg *config.Config, ch repository.EventChannel, m repository.Metrics, l *applogger.Logger) *usecase.SignalIngest {
	return usecase.NewSignalIngest(ch, cfg.Broker.Ingress.Topic, cfg.Broker.Ingress.RoutingKey, m, l)
}

func ProvideSignalProcessor(
	cfg *config.Config,
	ch repository.EventChannel,
	seen repository.IdempotencyStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.SignalProcessor {
	return usecase.NewSignalProcessor(cfg.Broker.Ingress.Topic, cfg.Broker.Output.Topic, cfg.Broker.Output.RoutingKey, ch, seen, m, l)
}

// ProvideKafkaConsumer creates the ingress consumer. It returns nil when the
// broker is not Kafka or the consumer is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Broker.Driver != "kafka" || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.KafkaBrokers()),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.MetadataHook{},
		pkgkafka.LoggingHook{Log: l},
	))
	return consumer, nil
}

func ProvideValidationScheduler(cfg *config.Config, fv *usecase.FleetValidator, store repository.ReportStore, l *applogger.Logger) *usecase.ValidationScheduler {
	return usecase.NewValidationScheduler(fv, store, cfg.Validation.ScheduleInterval, l)
}

// ProvideRateLimiter creates the per-IP limiter for the signal front door.
func ProvideRateLimiter(cfg *config.Config) (*ratelimit.Limiter, func()) {
	rl := ratelimit.New(cfg.Ingest.RateLimit, cfg.Ingest.RateWindow, cfg.Ingest.IdleTTL)
	return rl, rl.Stop
}

// ProvideHTTPHandler composes every route of the service.
func ProvideHTTPHandler(
	l *applogger.Logger,
	fv *usecase.FleetValidator,
	df *usecase.DataflowCorrelator,
	sv *usecase.ScriptValidator,
	store repository.ReportStore,
	ingest *usecase.SignalIngest,
	rl *ratelimit.Limiter,
) xhttp.Handler {
	return xhttp.Handlers{
		api.NewValidationEchoHandler(l, fv, df, sv, store),
		api.NewSignalsEchoHandler(l, ingest, rl.Middleware()),
	}
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithBodyLimit(cfg.Ingest.MaxBodyBytes),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	}
	if len(cfg.Server.AllowedOrigins) > 0 {
		opts = append(opts, xhttp.WithCORS(true, cfg.Server.AllowedOrigins...))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	ch repository.EventChannel,
	consumer *pkgkafka.Consumer,
	processor *usecase.SignalProcessor,
	scheduler *usecase.ValidationScheduler,
	srv *xhttp.Server,
) *server.App {
	return server.New(cfg, l, ch, consumer, processor, scheduler, srv)
}

package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SignalFleet/internal/domain/repository"
	"SignalFleet/internal/usecase"
	"SignalFleet/pkg/config"
	xhttp "SignalFleet/pkg/http"
	pkgkafka "SignalFleet/pkg/kafka"
	applogger "SignalFleet/pkg/logger"
	"SignalFleet/pkg/util"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	channel    repository.EventChannel
	consumer   *pkgkafka.Consumer
	processor  pkgkafka.MessageHandler
	scheduler  *usecase.ValidationScheduler
	httpServer *xhttp.Server

	superviseEvery time.Duration
	supervised     chan struct{}
}

// New creates a new App instance with all dependencies. consumer may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	channel repository.EventChannel,
	consumer *pkgkafka.Consumer,
	processor pkgkafka.MessageHandler,
	scheduler *usecase.ValidationScheduler,
	httpServer *xhttp.Server,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:            cfg,
		log:            l,
		channel:        channel,
		consumer:       consumer,
		processor:      processor,
		scheduler:      scheduler,
		httpServer:     httpServer,
		superviseEvery: cfg.Broker.Connect.BackoffMax,
	}
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and shuts them down in reverse order once ctx ends.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.connect(runCtx); err != nil {
		// Keep serving: ingest answers 503 until the supervisor gets through.
		a.log.Error("broker unreachable at startup", applogger.String("driver", a.channel.Driver()), applogger.Error(err))
	}
	a.supervised = make(chan struct{})
	go a.supervise(runCtx)

	if c := a.cfg.Logging.Collector; c.Enabled {
		a.log.AddCollector(&applogger.CollectionConfig{
			Service:        "signalfleet",
			TimeInterval:   c.Interval,
			CountThreshold: c.CountThreshold,
			Topic:          c.Topic,
			RoutingKey:     c.RoutingKey,
			Publisher:      a.channel,
		})
	}

	if a.consumer != nil && a.processor != nil {
		a.consumer.RegisterHandler(a.processor)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			a.consumer = nil
		} else {
			a.log.Info("kafka consumer started", applogger.String("topic", a.processor.Topic()))
		}
	}

	if a.scheduler != nil {
		a.scheduler.Start(runCtx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		cancel()
		_ = a.shutdown()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// connect dials the broker, retrying with jittered exponential backoff.
func (a *App) connect(ctx context.Context) error {
	rc := a.cfg.Broker.Connect
	attempts := rc.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		dctx, cancel := context.WithTimeout(ctx, a.cfg.Broker.Timeout)
		err = a.channel.Connect(dctx)
		cancel()
		if err == nil {
			a.log.Info("broker connected", applogger.String("driver", a.channel.Driver()), applogger.Int("attempt", attempt))
			return nil
		}
		a.log.Warn("broker connect failed",
			applogger.String("driver", a.channel.Driver()),
			applogger.Int("attempt", attempt),
			applogger.Error(err),
		)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(util.Backoff(rc.BackoffMin, rc.BackoffMax, attempt)):
		}
	}
	return fmt.Errorf("broker connect after %d attempts: %w", attempts, err)
}

// supervise re-establishes the broker session whenever it is lost.
func (a *App) supervise(ctx context.Context) {
	defer close(a.supervised)
	every := a.superviseEvery
	if every <= 0 {
		every = 10 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if a.channel.Connected() {
			continue
		}
		dctx, cancel := context.WithTimeout(ctx, a.cfg.Broker.Timeout)
		err := a.channel.Reconnect(dctx)
		cancel()
		if err != nil {
			a.log.Warn("broker reconnect failed", applogger.String("driver", a.channel.Driver()), applogger.Error(err))
			continue
		}
		a.log.Info("broker reconnected", applogger.String("driver", a.channel.Driver()))
	}
}

// shutdown stops components in reverse start order.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.log.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.log.Warn("scheduler stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.supervised != nil {
		select {
		case <-a.supervised:
		case <-ctx.Done():
		}
	}
	// Flush pending error lines while the channel is still open.
	a.log.RemoveCollector()
	if err := a.channel.Close(); err != nil {
		a.log.Warn("broker close error", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}

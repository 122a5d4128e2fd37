package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"SignalFleet/internal/domain/models"
	domrepo "SignalFleet/internal/domain/repository"
	domsvc "SignalFleet/internal/domain/service"
	"SignalFleet/pkg/breaker"
	applogger "SignalFleet/pkg/logger"
	"SignalFleet/pkg/util"

	"golang.org/x/sync/errgroup"
)

// ErrNoRegistry is returned when the validator has no services to check.
var ErrNoRegistry = errors.New("fleet validator: service registry is empty")

// FleetValidator probes every registered service and reports per-check health.
//
// Each check owns a breaker keyed service/check[/path]. The breakers are
// created here and live as long as the validator, so a service that keeps
// failing is skipped quickly on later runs.
type FleetValidator struct {
	services []models.ServiceDescriptor
	owner    string
	lookup   domsvc.RepositoryLookup
	prober   domsvc.Prober
	metrics  domrepo.Metrics
	log      *applogger.Logger
	breakers map[string]*breaker.Breaker
}

func NewFleetValidator(
	services []models.ServiceDescriptor,
	owner string,
	lookup domsvc.RepositoryLookup,
	prober domsvc.Prober,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	breakerOpts ...breaker.Option,
) (*FleetValidator, error) {
	if lookup == nil || prober == nil {
		return nil, errors.New("fleet validator: lookup and prober are required")
	}
	if log == nil {
		log = applogger.Nop()
	}

	v := &FleetValidator{
		services: services,
		owner:    owner,
		lookup:   lookup,
		prober:   prober,
		metrics:  metrics,
		log:      log,
		breakers: make(map[string]*breaker.Breaker),
	}

	newBreaker := func(key string) {
		opts := append([]breaker.Option{}, breakerOpts...)
		opts = append(opts, breaker.WithName(key), breaker.WithLogger(log))
		v.breakers[key] = breaker.New(opts...)
	}
	for _, svc := range services {
		newBreaker(breakerKey(svc.Name, models.CheckSourceControl, ""))
		newBreaker(breakerKey(svc.Name, models.CheckDeployment, ""))
		for _, path := range svc.ExpectedEndpoints {
			newBreaker(breakerKey(svc.Name, models.CheckEndpoint, path))
		}
	}
	return v, nil
}

func breakerKey(service, check, path string) string {
	if path == "" {
		return service + "/" + check
	}
	return service + "/" + check + "/" + strings.TrimPrefix(path, "/")
}

// Services returns the registry the validator was built with.
func (v *FleetValidator) Services() []models.ServiceDescriptor {
	return v.services
}

// ValidateAll runs every check of every service concurrently. Check failures
// are reported in the results; only a misconfigured validator returns an error.
func (v *FleetValidator) ValidateAll(ctx context.Context) (*models.FleetReport, error) {
	if v == nil || len(v.services) == 0 {
		return nil, ErrNoRegistry
	}

	start := time.Now()
	results := make([]models.ValidationResult, len(v.services))

	var g errgroup.Group
	for i, svc := range v.services {
		g.Go(func() error {
			results[i] = v.validateService(ctx, svc)
			return nil
		})
	}
	_ = g.Wait()

	healthy := true
	for _, r := range results {
		healthy = r.Healthy() && healthy
	}

	elapsed := time.Since(start)
	if v.metrics != nil {
		v.metrics.RecordFleetRun(healthy, elapsed.Seconds())
	}
	v.log.Info("fleet validation finished",
		applogger.Int("services", len(results)),
		applogger.Bool("healthy", healthy),
		applogger.Duration("duration_ms", elapsed),
	)

	return &models.FleetReport{
		Results:    results,
		Healthy:    healthy,
		StartedAt:  start.UTC(),
		FinishedAt: time.Now().UTC(),
	}, nil
}

func (v *FleetValidator) validateService(ctx context.Context, svc models.ServiceDescriptor) models.ValidationResult {
	var (
		source, deploy models.CheckOutcome
		endpoints      = make([]models.CheckOutcome, len(svc.ExpectedEndpoints))
		g              errgroup.Group
	)

	g.Go(func() error {
		source = v.checkSourceControl(ctx, svc)
		return nil
	})
	g.Go(func() error {
		deploy = v.checkStatus(ctx, svc.Name, models.CheckDeployment, "", util.JoinURL(svc.DeploymentBaseURL, "/health"))
		return nil
	})
	for i, path := range svc.ExpectedEndpoints {
		g.Go(func() error {
			endpoints[i] = v.checkStatus(ctx, svc.Name, models.CheckEndpoint, path, util.JoinURL(svc.DeploymentBaseURL, path))
			return nil
		})
	}
	_ = g.Wait()

	result := models.ValidationResult{
		Name:                svc.Name,
		SourceControlStatus: source.OK,
		DeploymentStatus:    deploy.OK,
		EndpointsStatus:     make(map[string]bool, len(svc.ExpectedEndpoints)),
	}
	fail := func(key string, o models.CheckOutcome) {
		if o.OK {
			return
		}
		if result.Failures == nil {
			result.Failures = make(map[string]string)
		}
		result.Failures[key] = o.Reason
	}
	fail(models.CheckSourceControl, source)
	fail(models.CheckDeployment, deploy)
	for i, path := range svc.ExpectedEndpoints {
		result.EndpointsStatus[path] = endpoints[i].OK
		fail(models.CheckEndpoint+":"+path, endpoints[i])
	}
	return result
}

func (v *FleetValidator) checkSourceControl(ctx context.Context, svc models.ServiceDescriptor) models.CheckOutcome {
	b := v.breakers[breakerKey(svc.Name, models.CheckSourceControl, "")]
	start := time.Now()

	err := b.Execute(ctx, func(ctx context.Context) error {
		return v.lookup.RepositoryExists(ctx, v.owner, svc.Repository)
	})
	v.record(svc.Name, models.CheckSourceControl, err == nil, start)
	if err != nil {
		// Not found and unauthorized both count as unhealthy; the cause is kept for operators.
		v.log.Warn("source control check failed",
			applogger.String("service", svc.Name),
			applogger.String("repository", v.owner+"/"+svc.Repository),
			applogger.String("cause", failureCause(err)),
			applogger.Error(err),
		)
		return models.Fail(err)
	}
	return models.Pass()
}

// checkStatus is healthy iff GET url answers exactly 200.
func (v *FleetValidator) checkStatus(ctx context.Context, service, check, path, url string) models.CheckOutcome {
	b := v.breakers[breakerKey(service, check, path)]
	start := time.Now()

	err := b.Execute(ctx, func(ctx context.Context) error {
		code, err := v.prober.Status(ctx, url)
		if err != nil {
			return err
		}
		if code != http.StatusOK {
			return &domsvc.ProbeError{Target: url, Status: code}
		}
		return nil
	})
	v.record(service, check, err == nil, start)
	if err != nil {
		v.log.Debug("check failed",
			applogger.String("service", service),
			applogger.String("check", check),
			applogger.String("url", url),
			applogger.String("cause", failureCause(err)),
			applogger.Error(err),
		)
		return models.Fail(err)
	}
	return models.Pass()
}

func (v *FleetValidator) record(service, check string, ok bool, start time.Time) {
	if v.metrics != nil {
		v.metrics.RecordCheck(service, check, ok, time.Since(start).Seconds())
	}
}

// failureCause names the error class for logs.
func failureCause(err error) string {
	var pe *domsvc.ProbeError
	switch {
	case errors.Is(err, domsvc.ErrRepositoryNotFound):
		return "not_found"
	case errors.Is(err, domsvc.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, breaker.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, breaker.ErrCallTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &pe) && pe.Status != 0:
		return fmt.Sprintf("status_%d", pe.Status)
	default:
		return "unreachable"
	}
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"SignalFleet/internal/domain/models"
	domrepo "SignalFleet/internal/domain/repository"
	domsvc "SignalFleet/internal/domain/service"
	"SignalFleet/pkg/breaker"
	applogger "SignalFleet/pkg/logger"
	"SignalFleet/pkg/util"

	"golang.org/x/sync/errgroup"
)

// ErrNoScripts is returned when no functional probes are configured.
var ErrNoScripts = errors.New("script validator: no scripts configured")

// ScriptValidator runs the functional probes against the downstream services.
type ScriptValidator struct {
	checks   []models.ScriptCheck
	prober   domsvc.Prober
	metrics  domrepo.Metrics
	log      *applogger.Logger
	breakers map[string]*breaker.Breaker
	now      func() time.Time
}

func NewScriptValidator(
	checks []models.ScriptCheck,
	prober domsvc.Prober,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	breakerOpts ...breaker.Option,
) (*ScriptValidator, error) {
	if prober == nil {
		return nil, errors.New("script validator: prober is required")
	}
	if log == nil {
		log = applogger.Nop()
	}
	v := &ScriptValidator{
		checks:   checks,
		prober:   prober,
		metrics:  metrics,
		log:      log,
		breakers: make(map[string]*breaker.Breaker, len(checks)),
		now:      time.Now,
	}
	for _, c := range checks {
		if _, dup := v.breakers[c.Name]; dup {
			return nil, fmt.Errorf("script validator: duplicate script %q", c.Name)
		}
		opts := append([]breaker.Option{}, breakerOpts...)
		v.breakers[c.Name] = breaker.New(append(opts, breaker.WithName("script/"+c.Name), breaker.WithLogger(log))...)
	}
	return v, nil
}

// ValidateAll runs every script concurrently. Results keep declaration order.
func (v *ScriptValidator) ValidateAll(ctx context.Context) (*models.ScriptReport, error) {
	if v == nil || len(v.checks) == 0 {
		return nil, ErrNoScripts
	}

	results := make([]models.ScriptResult, len(v.checks))
	var g errgroup.Group
	for i, c := range v.checks {
		g.Go(func() error {
			results[i] = v.run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	report := &models.ScriptReport{OverallStatus: models.ScriptSuccess, Results: results}
	for _, r := range results {
		if r.Status != models.ScriptSuccess {
			report.OverallStatus = models.ScriptFailed
			break
		}
	}
	v.log.Info("script validation finished",
		applogger.Int("scripts", len(results)),
		applogger.String("overall", string(report.OverallStatus)),
	)
	return report, nil
}

func (v *ScriptValidator) run(ctx context.Context, c models.ScriptCheck) models.ScriptResult {
	errs := v.execute(ctx, c)
	ok := len(errs) == 0
	if v.metrics != nil {
		v.metrics.RecordScript(c.Name, ok)
	}

	res := models.ScriptResult{
		ScriptName: c.Name,
		Status:     models.ScriptSuccess,
		Details: models.ScriptDetails{
			FunctionalityWorking: ok,
			LastRunTime:          v.now().UTC(),
			Errors:               []string{},
		},
	}
	if !ok {
		res.Status = models.ScriptFailed
		res.Details.Errors = errs
		v.log.Warn("script failed",
			applogger.String("script", c.Name),
			applogger.Strings("errors", errs),
		)
	}
	return res
}

// execute issues the request (and the follow-up, if any) and returns every
// expectation that did not hold.
func (v *ScriptValidator) execute(ctx context.Context, c models.ScriptCheck) []string {
	b := v.breakers[c.Name]
	url := util.JoinURL(c.BaseURL, c.Path)
	expectsBody := len(c.RequiredFields) > 0 || len(c.AnyOfFields) > 0 || c.ArrayField != "" || c.IDField != ""

	body, err := breaker.Call(ctx, b, func(ctx context.Context) (map[string]interface{}, error) {
		var dest interface{}
		var body map[string]interface{}
		if expectsBody {
			dest = &body
		}
		var err error
		if c.Method == http.MethodGet {
			err = v.prober.GetJSON(ctx, url, dest)
		} else {
			err = v.prober.PostJSON(ctx, url, c.Body, dest)
		}
		return body, err
	})
	if err != nil {
		return []string{err.Error()}
	}

	var errs []string
	for _, f := range c.RequiredFields {
		if _, ok := body[f]; !ok {
			errs = append(errs, fmt.Sprintf("missing field %q", f))
		}
	}
	if len(c.AnyOfFields) > 0 && !hasAny(body, c.AnyOfFields) {
		errs = append(errs, fmt.Sprintf("none of %v present", c.AnyOfFields))
	}
	if c.ArrayField != "" {
		if _, ok := body[c.ArrayField].([]interface{}); !ok {
			errs = append(errs, fmt.Sprintf("field %q is not an array", c.ArrayField))
		}
	}
	if len(errs) > 0 || c.FollowUpPath == "" {
		return errs
	}

	id, ok := body[c.IDField].(string)
	if !ok || id == "" {
		return []string{fmt.Sprintf("field %q missing for follow-up", c.IDField)}
	}
	follow := util.JoinURL(c.BaseURL, util.ExpandID(c.FollowUpPath, id))
	err = b.Execute(ctx, func(ctx context.Context) error {
		return v.prober.GetJSON(ctx, follow, nil)
	})
	if err != nil {
		return []string{"follow-up: " + err.Error()}
	}
	return nil
}

func hasAny(body map[string]interface{}, fields []string) bool {
	for _, f := range fields {
		if _, ok := body[f]; ok {
			return true
		}
	}
	return false
}

package usecase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SignalFleet/internal/domain/models"
	domsvc "SignalFleet/internal/domain/service"
	"SignalFleet/internal/service/probe"
	"SignalFleet/pkg/breaker"
	"SignalFleet/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	mu      sync.Mutex
	missing map[string]error
	calls   map[string]int
	panicOn string
}

func (f *fakeLookup) RepositoryExists(_ context.Context, owner, repo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[repo]++
	if repo == f.panicOn {
		panic("lookup exploded")
	}
	if owner != "your-org" {
		return &domsvc.ProbeError{Target: repo, Status: http.StatusNotFound, Err: domsvc.ErrRepositoryNotFound}
	}
	return f.missing[repo]
}

func (f *fakeLookup) count(repo string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[repo]
}

// newFleetServer answers /health with health and every other path from paths (default 404).
func newFleetServer(t *testing.T, health int, paths map[string]int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(health)
			return
		}
		if code, ok := paths[r.URL.Path]; ok {
			w.WriteHeader(code)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestValidator(t *testing.T, services []models.ServiceDescriptor, lookup domsvc.RepositoryLookup, opts ...breaker.Option) *FleetValidator {
	t.Helper()
	opts = append([]breaker.Option{breaker.WithCallTimeout(time.Second)}, opts...)
	v, err := NewFleetValidator(services, "your-org", lookup, probe.NewHTTPProber(2*time.Second), metrics.Nop{}, nil, opts...)
	require.NoError(t, err)
	return v
}

func TestFleetValidator_EndpointsIndependentOfDeployment(t *testing.T) {
	srv := newFleetServer(t, http.StatusOK, map[string]int{"/a": http.StatusOK, "/b": http.StatusNotFound})
	svc := models.ServiceDescriptor{Name: "svc", Repository: "svc", DeploymentBaseURL: srv.URL, ExpectedEndpoints: []string{"/a", "/b"}}

	report, err := newTestValidator(t, []models.ServiceDescriptor{svc}, &fakeLookup{}).ValidateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	r := report.Results[0]
	assert.Equal(t, map[string]bool{"/a": true, "/b": false}, r.EndpointsStatus)
	assert.True(t, r.DeploymentStatus, "deployment status comes from /health only")
	assert.True(t, r.SourceControlStatus)
	assert.Contains(t, r.Failures, "endpoint:/b")
	assert.False(t, report.Healthy)
}

func TestFleetValidator_ServiceIsolation(t *testing.T) {
	a := newFleetServer(t, http.StatusInternalServerError, nil)
	b := newFleetServer(t, http.StatusOK, map[string]int{"/x": http.StatusOK})

	services := []models.ServiceDescriptor{
		{Name: "A", Repository: "a", DeploymentBaseURL: a.URL, ExpectedEndpoints: []string{"/x"}},
		{Name: "B", Repository: "b", DeploymentBaseURL: b.URL, ExpectedEndpoints: []string{"/x"}},
	}
	report, err := newTestValidator(t, services, &fakeLookup{}).ValidateAll(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, "A", report.Results[0].Name)
	assert.Equal(t, "B", report.Results[1].Name)
	assert.False(t, report.Results[0].DeploymentStatus)
	assert.True(t, report.Results[1].DeploymentStatus)
	assert.True(t, report.Results[1].Healthy())
	assert.False(t, report.Healthy)
}

func TestFleetValidator_PreservesOrderWhenCompletionDiffers(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer slow.Close()
	fast := newFleetServer(t, http.StatusOK, nil)

	services := []models.ServiceDescriptor{
		{Name: "slow", Repository: "slow", DeploymentBaseURL: slow.URL},
		{Name: "fast", Repository: "fast", DeploymentBaseURL: fast.URL},
	}
	report, err := newTestValidator(t, services, &fakeLookup{}).ValidateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "slow", report.Results[0].Name)
	assert.Equal(t, "fast", report.Results[1].Name)
	assert.True(t, report.Healthy)
	assert.Empty(t, report.Results[0].EndpointsStatus)
}

func TestFleetValidator_EndpointMapHasOneKeyPerPath(t *testing.T) {
	srv := newFleetServer(t, http.StatusOK, map[string]int{"/p1": http.StatusOK, "/p3": http.StatusAccepted})
	paths := []string{"/p1", "/p2", "/p3", "/p4", "/p5"}
	svc := models.ServiceDescriptor{Name: "svc", Repository: "svc", DeploymentBaseURL: srv.URL, ExpectedEndpoints: paths}

	report, err := newTestValidator(t, []models.ServiceDescriptor{svc}, &fakeLookup{}).ValidateAll(context.Background())
	require.NoError(t, err)

	got := report.Results[0].EndpointsStatus
	require.Len(t, got, len(paths))
	assert.True(t, got["/p1"])
	assert.False(t, got["/p3"], "only 200 counts as reachable")
	for _, p := range []string{"/p2", "/p4", "/p5"} {
		assert.False(t, got[p], p)
	}
}

func TestFleetValidator_SourceControlFailuresAreFalse(t *testing.T) {
	srv := newFleetServer(t, http.StatusOK, nil)
	lookup := &fakeLookup{missing: map[string]error{
		"gone":    &domsvc.ProbeError{Target: "gone", Status: http.StatusNotFound, Err: domsvc.ErrRepositoryNotFound},
		"private": &domsvc.ProbeError{Target: "private", Status: http.StatusForbidden, Err: domsvc.ErrUnauthorized},
	}}
	services := []models.ServiceDescriptor{
		{Name: "gone", Repository: "gone", DeploymentBaseURL: srv.URL},
		{Name: "private", Repository: "private", DeploymentBaseURL: srv.URL},
		{Name: "ok", Repository: "ok", DeploymentBaseURL: srv.URL},
	}

	report, err := newTestValidator(t, services, lookup).ValidateAll(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Results[0].SourceControlStatus)
	assert.Contains(t, report.Results[0].Failures[models.CheckSourceControl], "repository not found")
	assert.False(t, report.Results[1].SourceControlStatus)
	assert.Contains(t, report.Results[1].Failures[models.CheckSourceControl], "authentication")
	assert.True(t, report.Results[2].SourceControlStatus)
	for _, r := range report.Results {
		assert.True(t, r.DeploymentStatus, r.Name)
	}
}

func TestFleetValidator_PanicInCheckOnlyFailsThatCheck(t *testing.T) {
	srv := newFleetServer(t, http.StatusOK, nil)
	services := []models.ServiceDescriptor{{Name: "svc", Repository: "boom", DeploymentBaseURL: srv.URL}}

	report, err := newTestValidator(t, services, &fakeLookup{panicOn: "boom"}).ValidateAll(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Results[0].SourceControlStatus)
	assert.True(t, report.Results[0].DeploymentStatus)
}

func TestFleetValidator_BreakerPerCheckPersistsAcrossRuns(t *testing.T) {
	var healthHits, aHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			healthHits.Add(1)
			w.WriteHeader(http.StatusOK)
		case "/a":
			aHits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	lookup := &fakeLookup{}
	services := []models.ServiceDescriptor{{Name: "svc", Repository: "svc", DeploymentBaseURL: srv.URL, ExpectedEndpoints: []string{"/a"}}}
	v := newTestValidator(t, services, lookup, breaker.WithCooldown(time.Hour))

	for i := 0; i < 3; i++ {
		report, err := v.ValidateAll(context.Background())
		require.NoError(t, err)
		assert.True(t, report.Results[0].DeploymentStatus, "run %d", i)
		assert.False(t, report.Results[0].EndpointsStatus["/a"], "run %d", i)
	}

	assert.Equal(t, int32(1), aHits.Load(), "open endpoint breaker skips the probe")
	assert.Equal(t, int32(3), healthHits.Load(), "deployment breaker is unaffected")
	assert.Equal(t, 3, lookup.count("svc"))

	report, _ := v.ValidateAll(context.Background())
	assert.Contains(t, report.Results[0].Failures["endpoint:/a"], "svc/endpoint/a: circuit open")
}

func TestFleetValidator_UnreachableDeployment(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	services := []models.ServiceDescriptor{{Name: "down", Repository: "down", DeploymentBaseURL: url, ExpectedEndpoints: []string{"/a"}}}
	report, err := newTestValidator(t, services, &fakeLookup{}).ValidateAll(context.Background())
	require.NoError(t, err)

	r := report.Results[0]
	assert.False(t, r.DeploymentStatus)
	assert.Equal(t, map[string]bool{"/a": false}, r.EndpointsStatus)
	assert.True(t, r.SourceControlStatus)
}

func TestFleetValidator_EmptyRegistry(t *testing.T) {
	v := newTestValidator(t, nil, &fakeLookup{})
	_, err := v.ValidateAll(context.Background())
	assert.ErrorIs(t, err, ErrNoRegistry)

	var nilV *FleetValidator
	_, err = nilV.ValidateAll(context.Background())
	assert.ErrorIs(t, err, ErrNoRegistry)
}

func TestNewFleetValidator_RequiresCollaborators(t *testing.T) {
	_, err := NewFleetValidator(nil, "your-org", nil, probe.NewHTTPProber(time.Second), metrics.Nop{}, nil)
	assert.Error(t, err)
}

func TestFleetValidator_AbortedRunDoesNotTripBreakers(t *testing.T) {
	var slow atomic.Bool
	slow.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slow.Load() {
			select {
			case <-r.Context().Done():
			case <-time.After(200 * time.Millisecond):
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	services := []models.ServiceDescriptor{{Name: "svc", Repository: "svc", DeploymentBaseURL: srv.URL, ExpectedEndpoints: []string{"/a"}}}
	v := newTestValidator(t, services, &fakeLookup{}, breaker.WithCooldown(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	report, err := v.ValidateAll(ctx)
	require.NoError(t, err)
	assert.False(t, report.Results[0].DeploymentStatus)

	slow.Store(false)
	report, err = v.ValidateAll(context.Background())
	require.NoError(t, err)
	r := report.Results[0]
	assert.True(t, r.DeploymentStatus, "%v", r.Failures)
	assert.Equal(t, map[string]bool{"/a": true}, r.EndpointsStatus)
	assert.True(t, report.Healthy)
}

package sourcecontrol

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"SignalFleet/internal/domain/service"
	xhttp "SignalFleet/pkg/http"
	"SignalFleet/pkg/util"
)

const defaultBaseURL = "https://api.github.com"

var _ service.RepositoryLookup = (*GitHub)(nil)

// GitHub looks repositories up through the REST API.
type GitHub struct {
	baseURL string
	client  *xhttp.Client
}

// NewGitHub builds a lookup against baseURL. An empty token means anonymous access.
func NewGitHub(baseURL, token string, timeout time.Duration, opts ...xhttp.ClientOption) *GitHub {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := []xhttp.ClientOption{
		xhttp.WithTimeout(timeout),
		xhttp.WithHeader("Accept", "application/vnd.github+json"),
		xhttp.WithHeader("User-Agent", "signalfleet-validator"),
	}
	if token != "" {
		base = append(base, xhttp.WithHeader("Authorization", "Bearer "+token))
	}
	return &GitHub{
		baseURL: baseURL,
		client:  xhttp.NewClient(append(base, opts...)...),
	}
}

// RepositoryExists returns nil when owner/repo is visible to the credential.
// Not found and auth failures come back as *service.ProbeError wrapping
// service.ErrRepositoryNotFound or service.ErrUnauthorized.
func (g *GitHub) RepositoryExists(ctx context.Context, owner, repo string) error {
	target := util.JoinURL(g.baseURL, "/repos/"+url.PathEscape(owner)+"/"+url.PathEscape(repo))

	resp, err := g.client.SendRequest(ctx, &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: target})
	if err != nil {
		return &service.ProbeError{Target: target, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return &service.ProbeError{Target: target, Status: resp.StatusCode, Err: service.ErrRepositoryNotFound}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &service.ProbeError{Target: target, Status: resp.StatusCode, Err: service.ErrUnauthorized}
	default:
		return &service.ProbeError{Target: target, Status: resp.StatusCode}
	}
}

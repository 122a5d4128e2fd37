package probe

import (
	"context"
	"errors"
	"io"
	"time"

	"SignalFleet/internal/domain/service"
	xhttp "SignalFleet/pkg/http"
	"SignalFleet/pkg/util"
)

var _ service.Prober = (*HTTPProber)(nil)

// HTTPProber issues the outbound requests of every check through one shared client.
type HTTPProber struct {
	client *xhttp.Client
}

// NewHTTPProber builds a prober whose requests are capped at timeout.
// The breaker call timeout usually fires first.
func NewHTTPProber(timeout time.Duration, opts ...xhttp.ClientOption) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)
	return &HTTPProber{client: xhttp.NewClient(opts...)}
}

// Status performs a GET and returns the status code. Only transport failures are errors.
func (p *HTTPProber) Status(ctx context.Context, url string) (int, error) {
	resp, err := p.client.SendRequest(ctx, &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: url})
	if err != nil {
		return 0, &service.ProbeError{Target: url, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

func (p *HTTPProber) GetJSON(ctx context.Context, url string, dest interface{}) error {
	return p.do(ctx, xhttp.MethodGet, url, nil, dest)
}

// PostJSON posts body as JSON and decodes the 2xx answer into dest.
func (p *HTTPProber) PostJSON(ctx context.Context, url string, body, dest interface{}) error {
	return p.do(ctx, xhttp.MethodPost, url, body, dest)
}

func (p *HTTPProber) do(ctx context.Context, method, url string, body, dest interface{}) error {
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: method,
		URL:    url,
		Body:   body,
	}, dest)
	if err == nil {
		return nil
	}
	var re *xhttp.ResponseError
	if errors.As(err, &re) {
		return &service.ProbeError{Target: url, Status: re.Status, Err: errors.New(util.Truncate(re.Body, 120))}
	}
	return &service.ProbeError{Target: url, Err: err}
}

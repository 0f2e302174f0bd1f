// Package connectivity implements the default interfaces.Connectivity
// probe: a lightweight HEAD request against a well-known URL.
package connectivity

import (
	"context"
	"net/http"
	"time"
)

// DefaultProbeURL mirrors the endpoint Chromium's captive-portal detector
// uses: a 204 with no body, cheap to fetch and safe to hit frequently.
const DefaultProbeURL = "https://clients3.google.com/generate_204"

// Probe is an interfaces.Connectivity implementation backed by an HTTP
// HEAD request. Any response at all, even a non-2xx one, is treated as
// "online" -- the point is reachability, not the response itself.
type Probe struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// Options configures a Probe.
type Options struct {
	URL     string
	Timeout time.Duration
}

// DefaultOptions returns the default probe configuration.
func DefaultOptions() *Options {
	return &Options{URL: DefaultProbeURL, Timeout: 3 * time.Second}
}

// New creates a Probe. A nil opts uses DefaultOptions.
func New(opts *Options) *Probe {
	if opts == nil {
		opts = DefaultOptions()
	}
	url := opts.URL
	if url == "" {
		url = DefaultProbeURL
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &Probe{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// IsOnline reports whether the probe URL is reachable within the
// configured timeout.
func (p *Probe) IsOnline(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return true
}

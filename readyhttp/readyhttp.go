// Package readyhttp provides an HTTP-based readiness probe usable as an
// asynclife Service or AsyncOperation start hook: block until a dependency
// answers with a successful status code, retrying with backoff via
// sethgrid/pester rather than hand-rolling a retry loop.
package readyhttp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sethgrid/pester"
)

// Options configures a Probe.
type Options struct {
	// MaxRetries bounds how many attempts pester makes before giving up.
	// Defaults to 5.
	MaxRetries int
	// Backoff is the delay strategy between attempts. Defaults to pester's
	// exponential backoff.
	Backoff pester.BackoffStrategy
	// Client is the *http.Client pester wraps. Defaults to http.DefaultClient.
	Client *http.Client
}

// Probe returns a hook that GETs url, retrying per opts until a 2xx
// response is observed or ctx is cancelled first. It is meant to be
// assigned directly to a ServiceHooks.Start or OperationHooks.Start field.
func Probe(url string, opts Options) func(ctx context.Context) error {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	p := pester.NewExtendedClient(client)
	if opts.MaxRetries > 0 {
		p.MaxRetries = opts.MaxRetries
	} else {
		p.MaxRetries = 5
	}
	if opts.Backoff != nil {
		p.Backoff = opts.Backoff
	} else {
		p.Backoff = pester.ExponentialBackoff
	}

	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := p.Do(req)
		if err != nil {
			return fmt.Errorf("readyhttp: %s did not become ready: %w", url, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("readyhttp: %s returned status %d", url, resp.StatusCode)
		}
		return nil
	}
}

// WaitFor polls url every interval up to timeout, ignoring transport
// errors and non-2xx responses until either a success or the timeout
// elapses. Unlike Probe it never returns an error for a transient failure,
// only for the deadline being exceeded or ctx being cancelled (ctx.Err()) -
// useful when a fixed startup
// budget (rather than a bounded retry count) is the natural fit.
func WaitFor(ctx context.Context, url string, interval, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := http.DefaultClient
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err == nil {
			if resp, err := client.Do(req); err == nil {
				resp.Body.Close()
				if resp.StatusCode >= 200 && resp.StatusCode < 300 {
					return nil
				}
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("readyhttp: %s not ready after %s", url, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

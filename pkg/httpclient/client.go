// Package httpclient builds the retrying HTTP client shared by the provider SDKs.
package httpclient

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultRetryMax = 3
)

// Options configures the client. Zero values use the defaults.
type Options struct {
	// Timeout bounds a single attempt (default: 30s).
	Timeout time.Duration
	// RetryMax is the maximum number of retries (default: 3).
	RetryMax int
}

// New returns a standard *http.Client that retries connection errors, 429 and 5xx responses
// with exponential backoff.
func New(opts Options) *http.Client {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	if opts.RetryMax == 0 {
		opts.RetryMax = defaultRetryMax
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.RetryMax = opts.RetryMax
	retryClient.Logger = nil // callers log at the provider layer

	return retryClient.StandardClient()
}

package transport

import (
	"net/http"
	"net/url"
	"time"

	"github.com/failsafe-go/failsafe-go/failsafehttp"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/failsafe-go/failsafe-go/timeout"

	"github.com/ksyasuda/jimaku-dl/internal/config"
)

// Options configures the outbound HTTP stack shared by the API clients.
type Options struct {
	// Timeout bounds each attempt. Zero means DefaultAttemptTimeout.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// ProxyURL optionally routes requests through a proxy.
	ProxyURL string
}

// DefaultAttemptTimeout bounds a single outbound attempt so an unresponsive
// metadata or index service cannot stall the pipeline indefinitely.
const DefaultAttemptTimeout = 30 * time.Second

// NewHTTPClient builds the client used for all outbound API calls: a cloned
// default transport (optionally proxied), wrapped with response decompression,
// then with a per-attempt timeout and a retry policy for transient failures.
func NewHTTPClient(opts Options) *http.Client {
	logger := config.GetLogger()

	attemptTimeout := opts.Timeout
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 2
	}

	// Clone DefaultTransport to preserve its settings (connection pooling, HTTP/2, etc.)
	baseTransport := http.DefaultTransport.(*http.Transport).Clone()

	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			// Log error but continue without proxy
			logger.Warn().Err(err).Str("proxy", opts.ProxyURL).Msg("Invalid proxy URL, continuing without proxy")
		} else {
			baseTransport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	inner := NewCompressionTransport(baseTransport)

	// Retry transient server errors and transport failures; client errors
	// (4xx) are never retried because they will not heal on their own.
	retry := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && (resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
		}).
		WithBackoff(500*time.Millisecond, 5*time.Second).
		WithMaxRetries(opts.MaxRetries).
		ReturnLastFailure().
		Build()

	attemptLimit := timeout.New[*http.Response](attemptTimeout)

	// Policy order matters: the retry wraps the per-attempt timeout, so each
	// attempt gets a fresh attemptTimeout budget.
	return &http.Client{
		Transport: failsafehttp.NewRoundTripper(inner, retry, attemptLimit),
	}
}

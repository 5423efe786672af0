package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/resilience"
)

// DefaultRequestDelay is the per-host pacing observed to keep EDGAR happy.
const DefaultRequestDelay = 2 * time.Second

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	RequestDelay time.Duration
}

// AdaptiveLimiter wraps a rate.Limiter that slows down on 429 responses.
// On 429 it halves the rate (down to initial/4). Each success recovers 20%,
// never exceeding the configured pace.
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive limiter starting at initialRate.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, capped at the initial rate.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentRate >= a.maxRate {
		return
	}
	newRate := a.currentRate * 1.2
	if newRate > a.maxRate {
		newRate = a.maxRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 0.5
	if newRate < a.minRate {
		newRate = a.minRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
	zap.L().Warn("adaptive rate limit: reducing rate after 429",
		zap.Float64("new_rate", float64(newRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher implements Fetcher with per-host pacing and a required
// User-Agent. It performs a single attempt per call; callers that want
// retries wrap it with resilience.DoVal.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestDelay == 0 {
		opts.RequestDelay = DefaultRequestDelay
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "holdings-cli/1.0"
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		MaxConnsPerHost:     8,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// limiterFor returns the host's limiter, creating it on first use. Requests
// to one host share a single pace regardless of how many workers issue them.
func (f *HTTPFetcher) limiterFor(rawURL string) *AdaptiveLimiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = NewAdaptiveLimiter(rate.Every(f.opts.RequestDelay), 1)
		f.limiters[host] = lim
	}
	return lim
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	lim := f.limiterFor(rawURL)
	if err := lim.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		terr := &model.TransportError{URL: rawURL, Err: err}
		if ctx.Err() != nil {
			return nil, terr
		}
		return nil, resilience.NewTransientError(terr, 0)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		terr := &model.TransportError{URL: rawURL, StatusCode: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests {
			lim.OnRateLimit()
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			te := resilience.NewTransientError(terr, resp.StatusCode)
			te.RetryAfter = resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
			return nil, te
		}
		return nil, terr
	}

	lim.OnSuccess()
	return resp.Body, nil
}

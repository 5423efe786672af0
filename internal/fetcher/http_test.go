package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/resilience"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:    "Test Org ops@example.com",
		Timeout:      5 * time.Second,
		RequestDelay: time.Millisecond,
	})
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Test Org ops@example.com", r.Header.Get("User-Agent"))
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	body, err := f.Download(context.Background(), srv.URL+"/data")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestDownload_NotFoundIsPermanentTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Download(context.Background(), srv.URL+"/missing.xml")
	require.Error(t, err)
	assert.True(t, model.IsTransportError(err))
	assert.False(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "404")
}

func TestDownload_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Download(context.Background(), srv.URL+"/busy")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.True(t, model.IsTransportError(err))
}

func TestDownload_RateLimitedCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Download(context.Background(), srv.URL+"/throttled")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, 7*time.Second, resilience.RetryAfterHint(err))
}

func TestDownload_SingleAttempt(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Download(context.Background(), srv.URL+"/fail")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDownload_RateLimitSlowsHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.Download(context.Background(), srv.URL+"/x")
	require.Error(t, err)

	lim := f.limiterFor(srv.URL + "/x")
	assert.Less(t, float64(lim.Limit()), float64(rate.Every(time.Millisecond)))
}

func TestDownload_PacesRequestsPerHost(t *testing.T) {
	var mu sync.Mutex
	var reqTimes []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqTimes = append(reqTimes, time.Now())
		mu.Unlock()
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{UserAgent: "t t@example.com", RequestDelay: 250 * time.Millisecond})
	for range 3 {
		body, err := f.Download(context.Background(), srv.URL+"/paced")
		require.NoError(t, err)
		body.Close()
	}

	require.Len(t, reqTimes, 3)
	assert.GreaterOrEqual(t, reqTimes[2].Sub(reqTimes[0]), 400*time.Millisecond)
}

func TestDownload_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("late"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher().Download(ctx, srv.URL)
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestReadAll_Limit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	data, err := ReadAll(context.Background(), newTestFetcher(), srv.URL, 4)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(data))
}

func TestAdaptiveLimiter(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 1)

	lim.OnRateLimit()
	assert.InDelta(t, 5.0, float64(lim.Limit()), 0.001)

	lim.OnRateLimit()
	lim.OnRateLimit()
	assert.InDelta(t, 2.5, float64(lim.Limit()), 0.001, "floor is a quarter of the initial rate")

	for range 20 {
		lim.OnSuccess()
	}
	assert.InDelta(t, 10.0, float64(lim.Limit()), 0.001, "recovery never exceeds the configured pace")
}

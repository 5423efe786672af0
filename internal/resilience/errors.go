package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sells-group/holdings-cli/internal/model"
)

// TransientError marks a failed fetch the resolver may try again. RetryAfter
// is the server's spacing hint, zero when EDGAR sent none.
type TransientError struct {
	Err        error
	StatusCode int
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient reports whether another attempt at the same URL could succeed.
// A TransientError in the chain always qualifies. Caller cancellation and
// document errors never do. A model.TransportError is judged by its status.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if model.IsSchemaMismatch(err) || model.IsEmptyResult(err) || model.IsNormalizationError(err) {
		return false
	}

	var tr *model.TransportError
	if errors.As(err, &tr) && tr.StatusCode != 0 {
		return IsTransientHTTPStatus(tr.StatusCode)
	}
	return connectionDropped(err)
}

// IsTransientHTTPStatus reports whether an EDGAR response status is worth
// retrying. 403 is excluded: EDGAR sends it for a missing or undeclared
// User-Agent, which another attempt will not fix.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// RetryAfterHint returns the spacing hint carried by the first TransientError
// in err's chain.
func RetryAfterHint(err error) time.Duration {
	var te *TransientError
	if errors.As(err, &te) {
		return te.RetryAfter
	}
	return 0
}

// ParseRetryAfter reads a Retry-After header in either delay-seconds or
// HTTP-date form. Unparseable or past values yield zero.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return 0
	}
	if d := at.Sub(now); d > 0 {
		return d
	}
	return 0
}

// connectionDropped matches network failures that interrupt a transfer.
func connectionDropped(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{"connection reset by peer", "broken pipe", "server closed idle connection", "unexpected eof"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

package resilience

import "time"

// FromRetryConfig builds a RetryConfig from configured attempt and backoff
// values, keeping defaults for anything non-positive.
func FromRetryConfig(maxAttempts, initialBackoffMs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	return cfg
}

package cron

import "time"

// RetryConfig controls exponential backoff for failed jobs. Retries are
// scheduled on simulated time, so there is no jitter.
type RetryConfig struct {
	MaxRetries int           // max retry attempts (default 3, 0 = no retry)
	BaseDelay  time.Duration // initial backoff delay (default 2s)
	MaxDelay   time.Duration // maximum backoff delay (default 30s)
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// Backoff returns the delay before retry number attempt (0-based):
// min(base * 2^attempt, max).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt > 30 {
		return c.MaxDelay
	}
	delay := c.BaseDelay << uint(attempt)
	if delay > c.MaxDelay || delay <= 0 {
		delay = c.MaxDelay
	}
	return delay
}

// maxErrorBytes is the truncation limit for recorded job errors (16KB).
const maxErrorBytes = 16 * 1024

// TruncateOutput truncates s to maxErrorBytes, appending "...[truncated]" if truncated.
func TruncateOutput(s string) string {
	if len(s) <= maxErrorBytes {
		return s
	}
	return s[:maxErrorBytes] + "...[truncated]"
}

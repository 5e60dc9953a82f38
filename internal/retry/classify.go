package retry

import (
	"context"
	"errors"
	"net"
	"strings"
)

// transientMarkers are message fragments the default heuristic treats as retryable.
var transientMarkers = []string{
	"network",
	"timeout",
	"timed out",
	"connection",
	"econnreset",
	"econnrefused",
	"etimedout",
	"broken pipe",
	"rate limit",
	"too many requests",
	"temporarily unavailable",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
	"internal server error",
	"status 429",
	"status 500",
	"status 502",
	"status 503",
	"status 504",
}

// Classify decides whether err may be retried under cfg.
// Params: retry policy and failed attempt error.
// Returns: true when another attempt is allowed by classification.
func Classify(cfg Config, err error) bool {
	if err == nil {
		return false
	}
	if cfg.ShouldRetry != nil {
		return cfg.ShouldRetry(err)
	}
	if IsPermanent(err) || errors.Is(err, context.Canceled) {
		return false
	}
	if matchAny(cfg.NonRetryableErrors, err) {
		return false
	}
	if len(cfg.RetryableErrors) > 0 {
		return matchAny(cfg.RetryableErrors, err)
	}
	return IsTransient(err)
}

// IsTransient is the default retryable-error heuristic.
// Params: failed attempt error.
// Returns: true for network, timeout, rate-limit (408/429), and 5xx-class failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	type statusCoder interface {
		StatusCode() int
	}
	var coded statusCoder
	if errors.As(err, &coded) {
		code := coded.StatusCode()
		return code == 408 || code == 429 || code >= 500
	}
	message := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

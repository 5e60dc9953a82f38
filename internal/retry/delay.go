package retry

import (
	"math"
	"time"
)

// Delay computes wait before retry number attempt.
// Params: policy, 1-based attempt that just failed, and uniform [0,1) source for jitter.
// Returns: non-negative delay clamped to MaxDelay before jitter.
func Delay(cfg Config, attempt int, rnd func() float64) time.Duration {
	cfg = cfg.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	base := float64(cfg.InitialDelay)
	var raw float64
	switch cfg.Strategy {
	case StrategyLinear:
		raw = base * float64(attempt)
	case StrategyFixed:
		raw = base
	case StrategyFibonacci:
		raw = base * float64(Fibonacci(attempt))
	default:
		raw = base * math.Pow(cfg.Multiplier, float64(attempt-1))
	}
	if cfg.MaxDelay > 0 && raw > float64(cfg.MaxDelay) {
		raw = float64(cfg.MaxDelay)
	}
	if cfg.Jitter && rnd != nil {
		raw += raw * cfg.JitterFactor * (2*rnd() - 1)
	}
	if raw <= 0 || math.IsNaN(raw) {
		return 0
	}
	if raw >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(raw)
}

// Fibonacci returns fib(n) with fib(1)=1, fib(2)=2.
// Params: 1-based index.
// Returns: sequence value, 0 for n<1; saturates instead of overflowing.
func Fibonacci(n int) int64 {
	if n < 1 {
		return 0
	}
	prev, curr := int64(1), int64(1)
	for i := 1; i < n; i++ {
		if curr > math.MaxInt64-prev {
			return math.MaxInt64
		}
		prev, curr = curr, prev+curr
	}
	return curr
}

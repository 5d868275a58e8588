package core

import (
	"math"
	"strings"
	"time"
)

const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// FixedBackoff waits the same duration before every retry.
type FixedBackoff time.Duration

func (b FixedBackoff) NextDelay(int) time.Duration {
	if b < 0 {
		return 0
	}
	return time.Duration(b)
}

// ExponentialBackoff waits Base*Factor^(retry-1), never longer than Cap.
type ExponentialBackoff struct {
	Base   time.Duration
	Cap    time.Duration
	Factor float64
}

func (b ExponentialBackoff) NextDelay(retry int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	limit := b.Cap
	if limit <= 0 {
		limit = 30 * time.Second
	}
	factor := b.Factor
	if factor < 1 {
		factor = 2
	}
	if retry < 1 {
		retry = 1
	}
	delay := float64(base) * math.Pow(factor, float64(retry-1))
	if delay >= float64(limit) || math.IsInf(delay, 0) {
		return limit
	}
	return time.Duration(delay)
}

// BackoffPolicy resolves a dispatcher backoff mode. Unknown modes fall back
// to a fixed delay.
func BackoffPolicy(mode string, delay, limit time.Duration) RetryPolicy {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case BackoffExponential:
		return ExponentialBackoff{Base: delay, Cap: limit}
	default:
		return FixedBackoff(delay)
	}
}

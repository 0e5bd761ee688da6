package scheduler

import (
	"crypto/rand"
	"math/big"
	"time"
)

// DefaultNextRetryDelay implements the spec §4.4 default: effective retry
// delay hours as a flat duration, with no jitter. Handlers that need
// exponential backoff with jitter (order-cancel, payment) call
// JitteredBackoff instead; this default suits CUSTOM/WEBHOOK_NOTIFICATION
// style handlers with no special reprocessing risk.
func DefaultNextRetryDelay(effectiveRetryDelayHours float64) time.Duration {
	return time.Duration(effectiveRetryDelayHours * float64(time.Hour))
}

// JitteredBackoff adds uniform jitter sampled from [base/10, base/4] to
// base, per spec §4.4: "identical failure times across the fleet would
// create thundering-herd reprocessing when a downstream recovers" (§9).
// Falls back to base unmodified if the jitter source fails or the jitter
// window is empty, matching the teacher's calculateRetryDelay fallback.
func JitteredBackoff(base time.Duration) time.Duration {
	low := base / 10
	high := base / 4
	span := high - low
	if span <= 0 {
		return base
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(span)))
	if err != nil {
		return base
	}
	jitter := low + time.Duration(n.Int64())
	return base + jitter
}

// OrderCancelNextRetryDelay implements the order-cancel backoff ladder from
// spec §4.4: base = 2^retryCount·1h for retryCount in {0,1,2}, else the
// fleet default, with jitter applied on top.
func OrderCancelNextRetryDelay(retryCount int, defaultDelayHours float64) time.Duration {
	var base time.Duration
	switch retryCount {
	case 0:
		base = 1 * time.Hour
	case 1:
		base = 2 * time.Hour
	case 2:
		base = 4 * time.Hour
	default:
		base = DefaultNextRetryDelay(defaultDelayHours)
	}
	return JitteredBackoff(base)
}

// PaymentNextRetryDelay implements the payment refund/void backoff ladder
// from spec §4.4, deliberately more conservative than order-cancel to
// reduce duplicate-effect risk: retryCount=0 -> 2h, 1/2 -> (3+3*retryCount)h,
// else the fleet default. Jitter applied on top.
func PaymentNextRetryDelay(retryCount int, defaultDelayHours float64) time.Duration {
	var base time.Duration
	switch retryCount {
	case 0:
		base = 2 * time.Hour
	case 1, 2:
		base = time.Duration(3+3*retryCount) * time.Hour
	default:
		base = DefaultNextRetryDelay(defaultDelayHours)
	}
	return JitteredBackoff(base)
}

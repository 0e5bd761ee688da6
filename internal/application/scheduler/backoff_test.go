package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultNextRetryDelay(t *testing.T) {
	assert.Equal(t, 12*time.Hour, DefaultNextRetryDelay(12))
	assert.Equal(t, 90*time.Minute, DefaultNextRetryDelay(1.5))
}

func TestJitteredBackoff_WithinWindow(t *testing.T) {
	base := 4 * time.Hour
	low := base + base/10
	high := base + base/4

	for i := 0; i < 50; i++ {
		got := JitteredBackoff(base)
		assert.GreaterOrEqual(t, got, low)
		assert.LessOrEqual(t, got, high)
	}
}

func TestJitteredBackoff_TinyBaseFallsBackUnmodified(t *testing.T) {
	// A base small enough that low == high collapses the jitter window.
	assert.Equal(t, time.Nanosecond, JitteredBackoff(time.Nanosecond))
}

func TestOrderCancelNextRetryDelay_Ladder(t *testing.T) {
	d0 := OrderCancelNextRetryDelay(0, 24)
	assert.GreaterOrEqual(t, d0, time.Hour)
	assert.LessOrEqual(t, d0, time.Hour+time.Hour/4)

	d1 := OrderCancelNextRetryDelay(1, 24)
	assert.GreaterOrEqual(t, d1, 2*time.Hour)

	d2 := OrderCancelNextRetryDelay(2, 24)
	assert.GreaterOrEqual(t, d2, 4*time.Hour)

	// Beyond the ladder's explicit rungs, falls back to the fleet default.
	d3 := OrderCancelNextRetryDelay(3, 24)
	assert.GreaterOrEqual(t, d3, 24*time.Hour)
}

func TestPaymentNextRetryDelay_MoreConservativeThanOrderCancel(t *testing.T) {
	payment0 := PaymentNextRetryDelay(0, 24)
	order0 := OrderCancelNextRetryDelay(0, 24)
	assert.Greater(t, payment0, order0)

	payment1 := PaymentNextRetryDelay(1, 24)
	assert.GreaterOrEqual(t, payment1, 6*time.Hour)
}

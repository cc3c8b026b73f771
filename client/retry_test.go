package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyBound(t *testing.T) {
	p := NewRetryPolicy(3)

	// 1 initial + 3 retries: attempts 0..2 retry, attempt 3 stops.
	assert.True(t, p.ShouldRetry("GET", "", 500, nil, 0))
	assert.True(t, p.ShouldRetry("GET", "", 500, nil, 1))
	assert.True(t, p.ShouldRetry("GET", "", 500, nil, 2))
	assert.False(t, p.ShouldRetry("GET", "", 500, nil, 3))
}

func TestRetryPolicyIdempotencyRules(t *testing.T) {
	p := NewRetryPolicy(3)

	assert.True(t, p.ShouldRetry("GET", "", 500, nil, 0))
	assert.True(t, p.ShouldRetry("PUT", "", 500, nil, 0))
	assert.True(t, p.ShouldRetry("DELETE", "", 500, nil, 0))

	assert.False(t, p.ShouldRetry("POST", "", 500, nil, 0),
		"bare POST must never be replayed")
	assert.True(t, p.ShouldRetry("POST", "idem-123", 500, nil, 0),
		"POST with an idempotency key is safe to replay")
}

func TestRetryPolicyStatusClassification(t *testing.T) {
	p := NewRetryPolicy(3)

	assert.True(t, p.ShouldRetry("GET", "", 500, nil, 0))
	assert.True(t, p.ShouldRetry("GET", "", 503, nil, 0))
	assert.False(t, p.ShouldRetry("GET", "", 404, nil, 0))
	assert.False(t, p.ShouldRetry("GET", "", 400, nil, 0))
}

func TestRetryPolicyNetworkErrors(t *testing.T) {
	p := NewRetryPolicy(3)

	assert.True(t, p.ShouldRetry("GET", "", 0, context.DeadlineExceeded, 0))
	assert.True(t, p.ShouldRetry("GET", "", 0, &net.DNSError{IsTimeout: true}, 0))
	assert.False(t, p.ShouldRetry("GET", "", 0, assert.AnError, 0))
}

func TestDelayForExponentialBackoff(t *testing.T) {
	p := NewRetryPolicy(3)

	assert.Equal(t, time.Second, p.DelayFor(0))
	assert.Equal(t, 2*time.Second, p.DelayFor(1))
	assert.Equal(t, 4*time.Second, p.DelayFor(2))
}

func TestIsWarmupError(t *testing.T) {
	assert.True(t, IsWarmupError(503, []byte("Storage Layer Warming Up, try again")))
	assert.True(t, IsWarmupError(500, []byte("storage layer warming up")))
	assert.False(t, IsWarmupError(200, []byte("storage layer warming up")))
	assert.False(t, IsWarmupError(503, []byte("internal error")))
}

package client

import (
	"bytes"
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/velluxe/storefront-core/types"
)

// WarmupSignature is the backend's transient "storage layer warming
// up" marker. A response carrying it gets one extra attempt after a
// fixed delay, outside the generic backoff counter.
const WarmupSignature = "storage layer warming up"

const WarmupRetryDelay = 2 * time.Second

// RetryPolicy bounds automatic retries for a single logical request.
// Retries are restricted to idempotent requests: GET, HEAD, PUT and
// DELETE always qualify; POST qualifies only when the caller attached
// an idempotency key, since replaying a bare POST against a partially
// failed server risks duplicate side effects.
type RetryPolicy struct {
	MaxRetries int
}

func NewRetryPolicy(maxRetries int) *RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryPolicy{MaxRetries: maxRetries}
}

func (p *RetryPolicy) ShouldRetry(method string, idempotencyKey string, status int, err error, attempt int) bool {
	if attempt >= p.MaxRetries {
		return false
	}

	if !isIdempotent(method, idempotencyKey) {
		return false
	}

	if err != nil {
		return IsNetworkError(err)
	}

	return status >= 500
}

// DelayFor returns the exponential backoff before retry number
// attempt (zero-based): 1s, 2s, 4s, ...
func (p *RetryPolicy) DelayFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}

func IsWarmupError(status int, body []byte) bool {
	return status >= 500 && bytes.Contains(bytes.ToLower(body), []byte(WarmupSignature))
}

func isIdempotent(method string, idempotencyKey string) bool {
	switch method {
	case fasthttp.MethodGet, fasthttp.MethodHead, fasthttp.MethodPut, fasthttp.MethodDelete:
		return true
	case fasthttp.MethodPost:
		return idempotencyKey != ""
	default:
		return false
	}
}

func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	if errors.Is(err, types.ErrClientTimeout) {
		return true
	}

	if errors.Is(err, fasthttp.ErrTimeout) ||
		errors.Is(err, fasthttp.ErrDialTimeout) ||
		errors.Is(err, fasthttp.ErrConnectionClosed) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Timeout() || dnsErr.IsTemporary
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNABORTED) ||
			errors.Is(opErr.Err, syscall.EHOSTUNREACH) ||
			errors.Is(opErr.Err, syscall.ENETUNREACH) {
			return true
		}
	}

	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		switch syscallErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED,
			syscall.EHOSTUNREACH, syscall.ENETUNREACH, syscall.ETIMEDOUT:
			return true
		}
	}

	return false
}

func IsBreakerFailure(status int, err error) bool {
	if err != nil {
		return true
	}

	switch status {
	case fasthttp.StatusTooManyRequests,
		fasthttp.StatusRequestTimeout,
		fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable,
		fasthttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigIsNil          = errors.New("config is nil")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrCacheKeyEmpty        = errors.New("cache key empty")
	ErrCacheTypeUnknown     = errors.New("cache type unknown")
	ErrCacheOperationFailed = errors.New("cache operation failed")
	ErrCacheIsDisabled      = errors.New("cache is disabled")
)

var (
	ErrClientRequestFailed   = errors.New("client request failed")
	ErrClientResponseInvalid = errors.New("client response invalid")
	ErrClientTimeout         = errors.New("client timeout")
	ErrClientNotRunning      = errors.New("client not running")
	ErrCircuitBreakerOpen    = errors.New("circuit breaker open")
	ErrUnauthorized          = errors.New("unauthorized")
)

var (
	ErrCartEmpty            = errors.New("cart is empty")
	ErrCartItemNotFound     = errors.New("cart item not found")
	ErrProductUnavailable   = errors.New("product unavailable")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrQuantityBelowMinimum = errors.New("quantity below product minimum")
)

var (
	ErrRewardNotAvailable   = errors.New("reward not available")
	ErrRewardAlreadyApplied = errors.New("reward already applied")
	ErrRewardNotApplied     = errors.New("no reward applied")
	ErrRewardExpired        = errors.New("reward expired")
	ErrRewardRedeemFailed   = errors.New("reward redeem failed")
)

var (
	ErrStorageKeyEmpty       = errors.New("storage key empty")
	ErrStorageNotRunning     = errors.New("storage not running")
	ErrStorageAlreadyRunning = errors.New("storage already running")
	ErrStorageReadFailed     = errors.New("storage read failed")
	ErrStorageWriteFailed    = errors.New("storage write failed")
	ErrCollectionNotFound    = errors.New("collection not found")
	ErrDocumentNotFound      = errors.New("document not found")
)

var (
	ErrRealtimeNotConnected   = errors.New("realtime not connected")
	ErrRealtimeAlreadyRunning = errors.New("realtime already running")
	ErrRealtimeTopicEmpty     = errors.New("realtime topic empty")
	ErrRealtimeConfigInvalid  = errors.New("realtime config invalid")
)

var (
	ErrMetricsIsDisabled = errors.New("metrics manager is disabled")
	ErrJobNameIsEmpty    = errors.New("job name is empty")
	ErrJobIsNil          = errors.New("job is nil")
	ErrJobSpecInvalid    = errors.New("job spec invalid")
	ErrJobExists         = errors.New("job exists")
	ErrJobNotFound       = errors.New("job not found")
)

var (
	ErrServerNotRunning     = errors.New("component not running")
	ErrServerAlreadyRunning = errors.New("component already running")
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrInvalidState         = errors.New("invalid state")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}

// HTTPError carries a non-2xx response through the error chain so call
// sites can branch on status without re-parsing the body.
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, truncateBody(e.Body))
}

func NewHTTPError(status int, body []byte) *HTTPError {
	copied := make([]byte, len(body))
	copy(copied, body)
	return &HTTPError{Status: status, Body: copied}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

func truncateBody(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

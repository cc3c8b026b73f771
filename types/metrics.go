package types

import (
	"time"
)

type MetricsManager interface {
	RecordRequest(method, path string, status int, duration time.Duration)
	RecordCacheHit(path string)
	RecordCacheMiss(path string)
	RecordCoalescedJoin(path string)
	RecordRetry(method, path string)
	RecordCredentialFallback()
	RecordCheckout(outcome string)
	CounterValue(name string) float64
}

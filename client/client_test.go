package client

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velluxe/storefront-core/cache"
	"github.com/velluxe/storefront-core/logger"
	"github.com/velluxe/storefront-core/types"
)

type stubTransport struct {
	mu       sync.Mutex
	calls    int
	requests []*TransportRequest
	handler  func(req *TransportRequest) (*TransportResponse, error)
	delay    time.Duration
}

func (s *stubTransport) RoundTrip(ctx context.Context, req *TransportRequest) (*TransportResponse, error) {
	s.mu.Lock()
	s.calls++
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return s.handler(req)
}

func (s *stubTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubTransport) lastRequest() *TransportRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

func okResponse(body string) func(req *TransportRequest) (*TransportResponse, error) {
	return func(req *TransportRequest) (*TransportResponse, error) {
		return &TransportResponse{Status: 200, Body: []byte(body)}, nil
	}
}

func newTestConfig() *types.APIConfig {
	return &types.APIConfig{
		BaseURL:        "https://shop.example.com",
		Timeout:        5 * time.Second,
		Retries:        3,
		CoalesceGrace:  50 * time.Millisecond,
		SensitivePaths: []string{"/cart", "/orders", "/rewards"},
	}
}

func newTestCache(t *testing.T) types.CacheManager {
	t.Helper()
	c, err := cache.NewMemoryCache(context.Background(), logger.NewNopLogger(), nil)
	require.NoError(t, err)
	return c
}

func newTestClient(t *testing.T, config *types.APIConfig, opts Options) *RequestClient {
	t.Helper()
	c, err := NewRequestClient(context.Background(), logger.NewNopLogger(), config, opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestGetCachesWithinTTL(t *testing.T) {
	transport := &stubTransport{handler: okResponse(`[{"_id":"p1"}]`)}
	c := newTestClient(t, newTestConfig(), Options{
		Transport: transport,
		Cache:     newTestCache(t),
	})

	body1, status1, err := c.Get(context.Background(), "/products", nil)
	require.NoError(t, err)
	assert.Equal(t, 200, status1)

	body2, status2, err := c.Get(context.Background(), "/products", nil)
	require.NoError(t, err)
	assert.Equal(t, 200, status2)

	assert.Equal(t, body1, body2)
	assert.Equal(t, 1, transport.callCount(), "second read within TTL must come from cache")
}

func TestGetCacheExpiry(t *testing.T) {
	transport := &stubTransport{handler: okResponse(`[]`)}
	c := newTestClient(t, newTestConfig(), Options{
		Transport: transport,
		Cache:     newTestCache(t),
		CacheTTL:  50 * time.Millisecond,
	})

	_, _, err := c.Get(context.Background(), "/products", nil)
	require.NoError(t, err)

	time.Sleep(120 * time.Millisecond)

	_, _, err = c.Get(context.Background(), "/products", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, transport.callCount(), "expired entries must refetch")
}

func TestNoCacheBypassesCache(t *testing.T) {
	transport := &stubTransport{handler: okResponse(`[]`)}
	c := newTestClient(t, newTestConfig(), Options{
		Transport: transport,
		Cache:     newTestCache(t),
	})

	opts := &types.CallOptions{NoCache: true}

	_, _, err := c.Get(context.Background(), "/products", opts)
	require.NoError(t, err)
	_, _, err = c.Get(context.Background(), "/products", opts)
	require.NoError(t, err)

	assert.Equal(t, 2, transport.callCount())
}

func TestIdentityScopedCacheIsolation(t *testing.T) {
	transport := &stubTransport{handler: okResponse(`{"items":[]}`)}
	source := &stubSource{token: "token-a"}
	c := newTestClient(t, newTestConfig(), Options{
		Transport: transport,
		Cache:     newTestCache(t),
		Source:    source,
	})

	_, _, err := c.Get(context.Background(), "/cart", nil)
	require.NoError(t, err)

	// Same user again: served from cache.
	_, _, err = c.Get(context.Background(), "/cart", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, transport.callCount())

	// Different credential: own entry, must hit the network.
	source.token = "token-b"
	_, _, err = c.Get(context.Background(), "/cart", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, transport.callCount(), "one user's cart must never be served to another")
}

func TestConcurrentGetsCoalesce(t *testing.T) {
	transport := &stubTransport{
		handler: okResponse(`[{"_id":"p1"}]`),
		delay:   50 * time.Millisecond,
	}
	c := newTestClient(t, newTestConfig(), Options{
		Transport: transport,
		Cache:     newTestCache(t),
	})

	const callers = 10
	var wg sync.WaitGroup
	bodies := make([][]byte, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, _, err := c.Get(context.Background(), "/products", nil)
			assert.NoError(t, err)
			bodies[i] = body
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, transport.callCount(), "simultaneous identical reads share one round trip")
	for i := 1; i < callers; i++ {
		assert.Equal(t, bodies[0], bodies[i])
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	transport := &stubTransport{
		handler: func(req *TransportRequest) (*TransportResponse, error) {
			return &TransportResponse{Status: 404, Body: []byte(`{"error":"not found"}`)}, nil
		},
	}
	c := newTestClient(t, newTestConfig(), Options{Transport: transport})

	_, status, err := c.Get(context.Background(), "/products/missing", nil)

	require.Error(t, err)
	assert.Equal(t, 404, status)
	assert.Equal(t, 1, transport.callCount(), "4xx is final, no retry")

	httpErr, ok := types.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 404, httpErr.Status)
}

func TestServerErrorRetriedWithBackoff(t *testing.T) {
	var attempts int64
	transport := &stubTransport{
		handler: func(req *TransportRequest) (*TransportResponse, error) {
			if atomic.AddInt64(&attempts, 1) == 1 {
				return &TransportResponse{Status: 500, Body: []byte("oops")}, nil
			}
			return &TransportResponse{Status: 200, Body: []byte("ok")}, nil
		},
	}

	config := newTestConfig()
	config.Retries = 1
	c := newTestClient(t, config, Options{Transport: transport})

	start := time.Now()
	body, status, err := c.Get(context.Background(), "/products", nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, []byte("ok"), body)
	assert.Equal(t, 2, transport.callCount())
	assert.GreaterOrEqual(t, elapsed, time.Second, "first retry waits 2^0 seconds")
}

func TestBarePostNotRetried(t *testing.T) {
	transport := &stubTransport{
		handler: func(req *TransportRequest) (*TransportResponse, error) {
			return &TransportResponse{Status: 500, Body: []byte("oops")}, nil
		},
	}
	c := newTestClient(t, newTestConfig(), Options{Transport: transport})

	_, status, err := c.Post(context.Background(), "/orders", map[string]string{"a": "b"}, nil)

	require.Error(t, err)
	assert.Equal(t, 500, status)
	assert.Equal(t, 1, transport.callCount(), "POST without idempotency key must not replay")
}

func TestWarmupRetriedOnce(t *testing.T) {
	var attempts int64
	transport := &stubTransport{
		handler: func(req *TransportRequest) (*TransportResponse, error) {
			if atomic.AddInt64(&attempts, 1) == 1 {
				return &TransportResponse{Status: 503, Body: []byte("storage layer warming up")}, nil
			}
			return &TransportResponse{Status: 200, Body: []byte("ready")}, nil
		},
	}

	config := newTestConfig()
	config.Retries = 0
	c := newTestClient(t, config, Options{Transport: transport})

	start := time.Now()
	body, _, err := c.Get(context.Background(), "/products", nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, []byte("ready"), body)
	assert.Equal(t, 2, transport.callCount())
	assert.GreaterOrEqual(t, elapsed, WarmupRetryDelay, "warm-up retry uses the fixed delay")
}

func TestUnauthorizedClearsTokenAndSensitiveCache(t *testing.T) {
	store := &stubTokenStore{token: "stale"}
	responseCache := newTestCache(t)

	transport := &stubTransport{
		handler: func(req *TransportRequest) (*TransportResponse, error) {
			return &TransportResponse{Status: 401, Body: []byte("unauthorized")}, nil
		},
	}
	c := newTestClient(t, newTestConfig(), Options{
		Transport: transport,
		Cache:     responseCache,
		Fallback:  store,
	})

	// Seed another sensitive entry that must be dropped on 401.
	seeded := sensitiveKeyPrefix + "GET|/rewards/history/u1||stale"
	require.NoError(t, responseCache.Set(seeded, &types.CachedResponse{
		Status: 200,
		Body:   []byte("old"),
	}, time.Minute))

	_, status, err := c.Get(context.Background(), "/cart", nil)

	require.ErrorIs(t, err, types.ErrUnauthorized)
	assert.Equal(t, 401, status)

	_, ok := store.Token()
	assert.False(t, ok, "401 clears the persisted fallback token")

	_, found := responseCache.Get(seeded)
	assert.False(t, found, "sensitive cache entries are invalidated on auth failure")
}

func TestRequestCarriesCredentialAndIdempotencyKey(t *testing.T) {
	transport := &stubTransport{handler: okResponse("ok")}
	c := newTestClient(t, newTestConfig(), Options{
		Transport: transport,
		Source:    &stubSource{token: "live-token"},
	})

	_, _, err := c.Post(context.Background(), "/orders", nil, &types.CallOptions{
		IdempotencyKey: "key-123",
	})
	require.NoError(t, err)

	req := transport.lastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "Bearer live-token", req.Headers["Authorization"])
	assert.Equal(t, "key-123", req.Headers["Idempotency-Key"])
}

func TestBuildURLDowngradesLoopback(t *testing.T) {
	transport := &stubTransport{handler: okResponse("ok")}

	config := newTestConfig()
	config.BaseURL = "https://localhost:3000"
	c := newTestClient(t, config, Options{Transport: transport})

	_, _, err := c.Get(context.Background(), "/products", &types.CallOptions{
		Params: map[string]string{"page": "2"},
	})
	require.NoError(t, err)

	req := transport.lastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "http://localhost:3000/products?page=2", req.URL)
}

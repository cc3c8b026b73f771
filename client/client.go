package client

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/velluxe/storefront-core/types"
	"github.com/velluxe/storefront-core/utils"
)

type State int32

const (
	StateRunning State = iota
	StateStopped
)

// RequestClient is the storefront request layer. It wires the
// fingerprinter, response cache, in-flight coalescer, credential
// resolver, circuit breaker and retry policy around one transport.
// Each instance owns its own cache and registry; there is no
// package-level state.
type RequestClient struct {
	ctx           context.Context
	cancel        context.CancelFunc
	logger        types.Logger
	config        *types.APIConfig
	cacheTTL      time.Duration
	transport     Transport
	cache         types.CacheManager
	coalescer     *Coalescer
	fingerprinter *Fingerprinter
	retry         *RetryPolicy
	creds         *CredentialResolver
	breaker       *CircuitBreaker
	metrics       types.MetricsManager
	baseURL       string
	state         atomic.Value
}

type Options struct {
	Transport Transport
	Cache     types.CacheManager
	CacheTTL  time.Duration
	Source    types.CredentialSource
	Fallback  types.TokenStore
	Metrics   types.MetricsManager
}

func NewRequestClient(ctx context.Context, logger types.Logger, config *types.APIConfig, opts Options) (*RequestClient, error) {
	if config == nil {
		return nil, types.ErrConfigIsNil
	}
	if config.BaseURL == "" {
		return nil, types.Errorf(types.ErrInvalidParameter, "base URL is required")
	}

	clientCtx, cancel := context.WithCancel(ctx)

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	transport := opts.Transport
	if transport == nil {
		transport = NewFastHTTPTransport(timeout)
	}

	cacheTTL := opts.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}

	c := &RequestClient{
		ctx:           clientCtx,
		cancel:        cancel,
		logger:        logger,
		config:        config,
		cacheTTL:      cacheTTL,
		transport:     transport,
		cache:         opts.Cache,
		coalescer:     NewCoalescer(config.CoalesceGrace),
		fingerprinter: NewFingerprinter(config.SensitivePaths),
		retry:         NewRetryPolicy(config.Retries),
		creds:         NewCredentialResolver(opts.Source, opts.Fallback, logger, opts.Metrics),
		breaker:       NewCircuitBreaker(config.CircuitBreaker, logger),
		metrics:       opts.Metrics,
		baseURL:       strings.TrimRight(DowngradeLoopback(config.BaseURL), "/"),
	}

	c.state.Store(StateRunning)

	return c, nil
}

// DefaultCacheTTL is deliberately short: long enough to collapse a
// burst of duplicate reads on mount, short enough to never serve stale
// catalog or cart data.
const DefaultCacheTTL = 5 * time.Second

func (c *RequestClient) Get(ctx context.Context, path string, opts *types.CallOptions) ([]byte, int, error) {
	return c.call(ctx, fasthttp.MethodGet, path, nil, opts)
}

func (c *RequestClient) Post(ctx context.Context, path string, data interface{}, opts *types.CallOptions) ([]byte, int, error) {
	return c.call(ctx, fasthttp.MethodPost, path, data, opts)
}

func (c *RequestClient) Put(ctx context.Context, path string, data interface{}, opts *types.CallOptions) ([]byte, int, error) {
	return c.call(ctx, fasthttp.MethodPut, path, data, opts)
}

func (c *RequestClient) Delete(ctx context.Context, path string, opts *types.CallOptions) ([]byte, int, error) {
	return c.call(ctx, fasthttp.MethodDelete, path, nil, opts)
}

// InvalidateSensitive drops every cached auth-sensitive response.
// Called when the credential changes so one user's cached data is
// never served to another.
func (c *RequestClient) InvalidateSensitive() {
	if c.cache == nil {
		return
	}
	if err := c.cache.InvalidatePrefix(sensitiveKeyPrefix); err != nil {
		c.logger.Warn("Failed to invalidate sensitive cache entries", zap.Error(err))
	}
}

// CacheTTL reports the lifetime applied to cached responses.
func (c *RequestClient) CacheTTL() time.Duration {
	return c.cacheTTL
}

func (c *RequestClient) Close() {
	if !c.state.CompareAndSwap(StateRunning, StateStopped) {
		return
	}
	c.cancel()
}

func (c *RequestClient) IsRunning() bool {
	return c.state.Load().(State) == StateRunning
}

func (c *RequestClient) call(ctx context.Context, method, path string, data interface{}, opts *types.CallOptions) ([]byte, int, error) {
	if !c.IsRunning() {
		return nil, fasthttp.StatusInternalServerError, types.ErrClientNotRunning
	}

	if opts == nil {
		opts = &types.CallOptions{}
	}

	var body []byte
	if data != nil {
		encoded, err := utils.Marshal(data)
		if err != nil {
			return nil, fasthttp.StatusInternalServerError, types.WrapError(err, "failed to marshal request data")
		}
		body = encoded
	}

	credential, origin := c.creds.Resolve(ctx)

	cacheable := method == fasthttp.MethodGet && !opts.NoCache && c.cache != nil
	fingerprint := c.fingerprinter.Compute(method, path, opts.Params, credential)

	if cacheable {
		if cached, ok := c.cache.Get(fingerprint); ok {
			if c.metrics != nil {
				c.metrics.RecordCacheHit(path)
			}
			c.logger.Debug("Cache hit", zap.String("path", path))
			return cached.Body, cached.Status, nil
		}
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(path)
		}
	}

	perform := func() ([]byte, int, error) {
		return c.executeWithRetries(ctx, method, path, body, credential, opts)
	}

	var respBody []byte
	var status int
	var err error

	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordRequest(method, path, status, time.Since(start))
		}
	}()

	if cacheable {
		var joined bool
		respBody, status, joined, err = c.coalescer.BeginOrJoin(fingerprint, perform)
		if joined && c.metrics != nil {
			c.metrics.RecordCoalescedJoin(path)
		}
	} else {
		respBody, status, err = perform()
	}

	if err != nil {
		return nil, status, err
	}

	if cacheable {
		cached := &types.CachedResponse{
			Status:   status,
			Body:     respBody,
			StoredAt: time.Now(),
		}
		if setErr := c.cache.Set(fingerprint, cached, c.cacheTTL); setErr != nil {
			c.logger.Warn("Failed to cache response",
				zap.String("path", path),
				zap.Error(setErr))
		}
	}

	c.logger.Debug("Request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.String("credential_origin", origin))

	return respBody, status, nil
}

func (c *RequestClient) executeWithRetries(ctx context.Context, method, path string, body []byte, credential string, opts *types.CallOptions) ([]byte, int, error) {
	url := c.buildURL(path, opts.Params)

	timeout := c.config.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	maxRetries := c.retry
	if opts.Retry > 0 {
		maxRetries = NewRetryPolicy(opts.Retry)
	}

	headers := make(map[string]string, len(opts.Headers)+2)
	for key, value := range opts.Headers {
		headers[key] = value
	}
	if credential != "" {
		headers[fasthttp.HeaderAuthorization] = "Bearer " + credential
	}
	if opts.IdempotencyKey != "" {
		headers["Idempotency-Key"] = opts.IdempotencyKey
	}

	var lastErr error
	var lastStatus int
	warmupRetried := false
	attempt := 0

	for {
		if !c.breaker.CanExecute() {
			return nil, fasthttp.StatusServiceUnavailable, types.ErrCircuitBreakerOpen
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := c.transport.RoundTrip(callCtx, &TransportRequest{
			Method:  method,
			URL:     url,
			Headers: headers,
			Body:    body,
			Timeout: timeout,
		})
		cancel()

		if err == nil && resp.Status >= 200 && resp.Status < 300 {
			c.breaker.RecordSuccess()
			return resp.Body, resp.Status, nil
		}

		var respBody []byte
		if err != nil {
			lastErr = err
			lastStatus = fasthttp.StatusInternalServerError
		} else {
			respBody = resp.Body
			lastStatus = resp.Status
			lastErr = types.NewHTTPError(resp.Status, resp.Body)
		}

		if IsBreakerFailure(lastStatus, err) {
			c.breaker.RecordFailure()
		}

		if lastStatus == fasthttp.StatusUnauthorized {
			c.creds.HandleUnauthorized()
			c.InvalidateSensitive()
			return nil, lastStatus, types.Errorf(types.ErrUnauthorized, "%s %s", method, path)
		}

		if err == nil && lastStatus >= 400 && lastStatus < 500 {
			return nil, lastStatus, lastErr
		}

		if err == nil && !warmupRetried && IsWarmupError(lastStatus, respBody) {
			warmupRetried = true
			c.logger.Debug("Backend warming up, retrying once",
				zap.String("path", path),
				zap.Duration("delay", WarmupRetryDelay))

			select {
			case <-time.After(WarmupRetryDelay):
				continue
			case <-ctx.Done():
				return nil, lastStatus, types.Errorf(types.ErrClientTimeout, "%v", ctx.Err())
			}
		}

		if !maxRetries.ShouldRetry(method, opts.IdempotencyKey, lastStatus, err, attempt) {
			break
		}

		backoff := maxRetries.DelayFor(attempt)

		if c.metrics != nil {
			c.metrics.RecordRetry(method, path)
		}
		c.logger.Debug("Retrying request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, lastStatus, types.Errorf(types.ErrClientTimeout, "%v", ctx.Err())
		case <-c.ctx.Done():
			return nil, lastStatus, types.ErrClientNotRunning
		}

		attempt++
	}

	return nil, lastStatus, lastErr
}

func (c *RequestClient) buildURL(path string, params map[string]string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	url := DowngradeLoopback(c.baseURL + path)

	if len(params) == 0 {
		return url
	}

	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)

	for key, value := range params {
		args.Set(key, value)
	}

	return url + "?" + args.String()
}

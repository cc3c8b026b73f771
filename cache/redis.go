package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/velluxe/storefront-core/types"
	"github.com/velluxe/storefront-core/utils"
)

type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	KeyPrefix    string        `json:"key_prefix"`
}

// RedisCache shares the response cache between storefront instances
// behind the same backend, e.g. SSR render farms.
type RedisCache struct {
	ctx     context.Context
	logger  types.Logger
	config  *RedisConfig
	client  *redis.Client
	hits    uint64
	misses  uint64
	started int32
}

func NewRedisCache(ctx context.Context, logger types.Logger, config *types.CacheConfig) (types.CacheManager, error) {
	var redisConfig = &RedisConfig{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "storefront",
	}

	if config != nil && config.Config != nil {
		err := utils.UnmarshalConfig(config.Config, redisConfig)
		if err != nil {
			return nil, types.WrapError(err, "failed to unmarshal redis cache config")
		}
	}

	c := &RedisCache{
		ctx:    ctx,
		logger: logger,
		config: redisConfig,
	}

	c.client = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", redisConfig.Host, redisConfig.Port),
		Password:     redisConfig.Password,
		DB:           redisConfig.DB,
		PoolSize:     redisConfig.PoolSize,
		DialTimeout:  redisConfig.DialTimeout,
		ReadTimeout:  redisConfig.ReadTimeout,
		WriteTimeout: redisConfig.WriteTimeout,
	})

	if err := c.client.Ping(ctx).Err(); err != nil {
		return nil, types.WrapError(err, "failed to connect to redis")
	}

	return c, nil
}

func (r *RedisCache) Get(key string) (*types.CachedResponse, bool) {
	if key == "" {
		return nil, false
	}

	result, err := r.client.Get(r.ctx, r.fullKey(key)).Bytes()
	if err != nil {
		atomic.AddUint64(&r.misses, 1)
		return nil, false
	}

	var response types.CachedResponse
	if err := utils.Unmarshal(result, &response); err != nil {
		r.logger.Warn("Failed to decode cached response", zap.Error(err))
		atomic.AddUint64(&r.misses, 1)
		return nil, false
	}

	atomic.AddUint64(&r.hits, 1)
	return &response, true
}

func (r *RedisCache) Set(key string, response *types.CachedResponse, ttl time.Duration) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := utils.Marshal(response)
	if err != nil {
		return types.WrapError(err, "failed to encode cached response")
	}

	if err := r.client.Set(r.ctx, r.fullKey(key), data, ttl).Err(); err != nil {
		return types.Errorf(types.ErrCacheOperationFailed, "set %s: %v", key, err)
	}

	return nil
}

func (r *RedisCache) Delete(key string) error {
	return r.client.Del(r.ctx, r.fullKey(key)).Err()
}

func (r *RedisCache) InvalidatePrefix(prefix string) error {
	if prefix == "" {
		return types.ErrCacheKeyEmpty
	}

	iter := r.client.Scan(r.ctx, 0, r.fullKey(prefix)+"*", 100).Iterator()
	for iter.Next(r.ctx) {
		if err := r.client.Del(r.ctx, iter.Val()).Err(); err != nil {
			return types.Errorf(types.ErrCacheOperationFailed, "invalidate %s: %v", prefix, err)
		}
	}
	return iter.Err()
}

// Sweep is a no-op: Redis expires keys natively.
func (r *RedisCache) Sweep() {}

func (r *RedisCache) Stats() types.CacheStats {
	return types.CacheStats{
		Hits:   atomic.LoadUint64(&r.hits),
		Misses: atomic.LoadUint64(&r.misses),
	}
}

func (r *RedisCache) Start() error {
	if !atomic.CompareAndSwapInt32(&r.started, 0, 1) {
		return types.ErrServerAlreadyRunning
	}
	r.logger.Debug("Redis cache started", zap.String("prefix", r.config.KeyPrefix))
	return nil
}

func (r *RedisCache) Stop() error {
	if !atomic.CompareAndSwapInt32(&r.started, 1, 0) {
		return types.ErrServerNotRunning
	}
	return r.client.Close()
}

func (r *RedisCache) IsRunning() bool {
	return atomic.LoadInt32(&r.started) == 1
}

func (r *RedisCache) fullKey(key string) string {
	return r.config.KeyPrefix + ":" + key
}

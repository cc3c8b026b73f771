package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/velluxe/storefront-core/types"
	"github.com/velluxe/storefront-core/utils"
)

type MemoryState int32

const (
	MemoryStateStopped MemoryState = iota
	MemoryStateStarting
	MemoryStateRunning
	MemoryStateStopping
)

const (
	MaxTTL     = time.Hour
	DefaultTTL = 5 * time.Second
)

type MemoryConfig struct {
	MaxEntries      int    `json:"max_entries"`
	CleanupInterval string `json:"cleanup_interval"`
}

type entry struct {
	response  *types.CachedResponse
	createdAt time.Time
	expiresAt time.Time
}

// MemoryCache stores recent successful responses keyed by request
// fingerprint. Expiry is checked lazily on read; the cleanup routine
// only bounds memory between reads.
type MemoryCache struct {
	ctx             context.Context
	cancel          context.CancelFunc
	config          *MemoryConfig
	logger          types.Logger
	data            map[string]*entry
	hits            uint64
	misses          uint64
	evictions       uint64
	mu              sync.RWMutex
	state           atomic.Value
	defaultTTL      time.Duration
	stopCleanup     chan struct{}
	cleanupDone     chan struct{}
	shutdownTimeout time.Duration
}

func NewMemoryCache(ctx context.Context, logger types.Logger, config *types.CacheConfig) (types.CacheManager, error) {
	var memConfig = &MemoryConfig{
		MaxEntries:      4096,
		CleanupInterval: "1m",
	}

	if config != nil && config.Config != nil {
		err := utils.UnmarshalConfig(config.Config, memConfig)
		if err != nil {
			return nil, types.WrapError(err, "failed to unmarshal memory cache config")
		}
	}

	defaultTTL := DefaultTTL
	if config != nil && config.DefaultTTL > 0 {
		defaultTTL = config.DefaultTTL
	}

	cacheCtx, cancel := context.WithCancel(ctx)

	c := &MemoryCache{
		ctx:             cacheCtx,
		cancel:          cancel,
		logger:          logger,
		config:          memConfig,
		data:            make(map[string]*entry),
		defaultTTL:      defaultTTL,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
		shutdownTimeout: 10 * time.Second,
	}

	c.state.Store(MemoryStateStopped)

	return c, nil
}

func (m *MemoryCache) Get(key string) (*types.CachedResponse, bool) {
	now := time.Now()

	m.mu.RLock()
	e, exists := m.data[key]
	if !exists {
		m.mu.RUnlock()
		atomic.AddUint64(&m.misses, 1)
		return nil, false
	}

	if now.After(e.expiresAt) {
		m.mu.RUnlock()
		m.mu.Lock()
		if e, exists := m.data[key]; exists && now.After(e.expiresAt) {
			delete(m.data, key)
		}
		m.mu.Unlock()

		atomic.AddUint64(&m.misses, 1)
		return nil, false
	}

	response := e.response
	m.mu.RUnlock()

	atomic.AddUint64(&m.hits, 1)

	return response, true
}

func (m *MemoryCache) Set(key string, response *types.CachedResponse, ttl time.Duration) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}

	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	if ttl > MaxTTL {
		ttl = MaxTTL
	}

	now := time.Now()
	e := &entry{
		response:  response,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.MaxEntries > 0 {
		if _, exists := m.data[key]; !exists && len(m.data) >= m.config.MaxEntries {
			m.evictOldestUnsafe()
		}
	}

	m.data[key] = e
	return nil
}

func (m *MemoryCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *MemoryCache) InvalidatePrefix(prefix string) error {
	if prefix == "" {
		return types.ErrCacheKeyEmpty
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *MemoryCache) Stats() types.CacheStats {
	m.mu.RLock()
	entries := len(m.data)
	m.mu.RUnlock()

	return types.CacheStats{
		Hits:      atomic.LoadUint64(&m.hits),
		Misses:    atomic.LoadUint64(&m.misses),
		Evictions: atomic.LoadUint64(&m.evictions),
		Entries:   entries,
	}
}

func (m *MemoryCache) Start() error {
	if !m.transitionState(MemoryStateStopped, MemoryStateStarting) {
		return types.ErrServerAlreadyRunning
	}

	defer func() {
		if m.getState() == MemoryStateStarting {
			m.setState(MemoryStateRunning)
		}
	}()

	if m.config.CleanupInterval != "" {
		go m.startCleanupRoutine()
	} else {
		close(m.cleanupDone)
	}

	m.logger.Debug("Memory cache started")
	return nil
}

func (m *MemoryCache) Stop() error {
	if !m.transitionState(MemoryStateRunning, MemoryStateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		m.setState(MemoryStateStopped)
	}()

	m.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancel()

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case m.stopCleanup <- struct{}{}:
		case <-time.After(time.Second):
		}

		select {
		case <-m.cleanupDone:
		case <-time.After(5 * time.Second):
			m.logger.Warn("Cleanup routine stop timeout")
		}

		return nil
	})

	g.Go(func() error {
		m.mu.Lock()
		cleared := len(m.data)
		m.data = make(map[string]*entry)
		m.mu.Unlock()

		m.logger.Debug("Memory cache cleared", zap.Int("cleared_entries", cleared))
		return nil
	})

	if err := g.Wait(); err != nil {
		m.logger.Error("Error during memory cache shutdown", zap.Error(err))
	}

	return nil
}

func (m *MemoryCache) IsRunning() bool {
	return m.getState() == MemoryStateRunning
}

func (m *MemoryCache) getState() MemoryState {
	return m.state.Load().(MemoryState)
}

func (m *MemoryCache) setState(newState MemoryState) bool {
	return m.state.CompareAndSwap(m.getState(), newState)
}

func (m *MemoryCache) transitionState(from, to MemoryState) bool {
	return m.state.CompareAndSwap(from, to)
}

// Sweep drops expired entries immediately instead of waiting for the
// next cleanup tick.
func (m *MemoryCache) Sweep() {
	m.cleanup()
}

func (m *MemoryCache) cleanup() {
	now := time.Now()

	m.mu.Lock()
	expired := 0
	for key, e := range m.data {
		if now.After(e.expiresAt) {
			delete(m.data, key)
			expired++
		}
	}
	m.mu.Unlock()

	if expired > 0 {
		m.logger.Debug("Cache cleanup completed", zap.Int("expired_entries", expired))
	}
}

func (m *MemoryCache) startCleanupRoutine() {
	defer close(m.cleanupDone)

	interval, err := time.ParseDuration(m.config.CleanupInterval)
	if err != nil {
		m.logger.Error("Invalid cleanup interval, using default 1m",
			zap.String("interval", m.config.CleanupInterval),
			zap.Error(err))
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.stopCleanup:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *MemoryCache) evictOldestUnsafe() {
	var oldestKey string
	var oldestTime time.Time

	for key, e := range m.data {
		if oldestKey == "" || e.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.createdAt
		}
	}

	if oldestKey != "" {
		delete(m.data, oldestKey)
		atomic.AddUint64(&m.evictions, 1)
	}
}

package storefront

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/velluxe/storefront-core/cache"
	"github.com/velluxe/storefront-core/checkout"
	"github.com/velluxe/storefront-core/client"
	"github.com/velluxe/storefront-core/config"
	"github.com/velluxe/storefront-core/logger"
	"github.com/velluxe/storefront-core/maintenance"
	"github.com/velluxe/storefront-core/metrics"
	"github.com/velluxe/storefront-core/realtime"
	"github.com/velluxe/storefront-core/storage"
	"github.com/velluxe/storefront-core/types"
)

type CoreState int32

const (
	CoreStateStopped CoreState = iota
	CoreStateStarting
	CoreStateRunning
	CoreStateStopping
)

// Options carries the host-supplied pieces the core cannot construct
// itself: the user identity and the live session credential source.
type Options struct {
	UserID  string
	Session types.CredentialSource
}

// Core is the explicit composition root. Hosts construct one instance
// per user session; nothing in this package is process-global.
type Core struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger types.Logger
	config *types.CoreConfig
	state  atomic.Value

	client    *client.RequestClient
	cache     types.CacheManager
	store     *storage.SQLiteStore
	documents *storage.CloverStore
	metrics   *metrics.PrometheusMetrics
	realtime  *realtime.WebSocketSubscriber
	scheduler *maintenance.Scheduler

	cart     *checkout.Cart
	rewards  *checkout.RewardManager
	checkout *checkout.Manager
	searches *storage.RecentSearches
}

// New assembles a core from configuration. Start must be called before
// requests are issued.
func New(ctx context.Context, configManager *config.ConfigurationManager, opts Options) (*Core, error) {
	cfg := configManager.GetConfig()
	if cfg == nil {
		return nil, types.ErrConfigIsNil
	}

	log, err := logger.NewDefaultLogger(cfg.Logger)
	if err != nil {
		return nil, types.WrapError(err, "failed to build logger")
	}

	coreCtx, cancel := context.WithCancel(ctx)

	core := &Core{
		ctx:    coreCtx,
		cancel: cancel,
		logger: log,
		config: cfg,
	}
	core.state.Store(CoreStateStopped)

	if err := core.build(opts); err != nil {
		cancel()
		return nil, err
	}

	return core, nil
}

func (c *Core) build(opts Options) error {
	var err error

	c.store, err = storage.NewSQLiteStore(c.logger, c.config.Storage)
	if err != nil {
		return err
	}

	c.documents, err = storage.NewCloverStore(c.logger, c.config.Storage)
	if err != nil {
		return err
	}

	if c.config.Metrics != nil && c.config.Metrics.Enabled {
		c.metrics, err = metrics.NewPrometheusMetrics(c.logger, c.config.Metrics)
		if err != nil {
			return err
		}
	}

	c.cache, err = cache.NewCacheManager(c.ctx, c.logger, c.config.Cache)
	if err != nil && !types.IsError(err, types.ErrCacheIsDisabled) {
		return err
	}

	var metricsManager types.MetricsManager
	if c.metrics != nil {
		metricsManager = c.metrics
	}

	var cacheTTL time.Duration
	if c.config.Cache != nil {
		cacheTTL = c.config.Cache.DefaultTTL
	}

	c.client, err = client.NewRequestClient(c.ctx, c.logger, c.config.API, client.Options{
		Cache:    c.cache,
		CacheTTL: cacheTTL,
		Source:   opts.Session,
		Fallback: c.store,
		Metrics:  metricsManager,
	})
	if err != nil {
		return err
	}

	c.cart = checkout.NewCart(c.client, c.logger, c.config.Checkout, opts.UserID)
	c.rewards = checkout.NewRewardManager(c.client, c.store, c.logger, opts.UserID)
	c.checkout = checkout.NewManager(
		c.client,
		c.cart,
		c.rewards,
		checkout.NewTotalsCalculator(c.config.Checkout),
		c.store,
		c.logger,
		metricsManager,
		opts.UserID,
	)
	c.searches = storage.NewRecentSearches(c.store)

	if c.config.Realtime != nil && c.config.Realtime.Enabled {
		c.realtime, err = realtime.NewWebSocketSubscriber(c.ctx, c.logger, c.config.Realtime)
		if err != nil {
			return err
		}
		c.registerRealtimeHandlers()
	}

	if c.config.Jobs != nil && c.config.Jobs.Enabled {
		c.scheduler, err = maintenance.NewScheduler(c.ctx, c.logger, c.config.Jobs)
		if err != nil {
			return err
		}
		if err := maintenance.RegisterDefaultJobs(c.scheduler, c.config.Jobs, c.cache, c.checkout); err != nil {
			return err
		}
	}

	return nil
}

func (c *Core) registerRealtimeHandlers() {
	_ = c.realtime.Subscribe(types.TopicAuthStateChanged, func(event *types.RealtimeEvent) {
		c.logger.Info("Auth state changed, invalidating identity-scoped cache")
		c.client.InvalidateSensitive()
	})

	_ = c.realtime.Subscribe(types.TopicRewardUpdated, func(event *types.RealtimeEvent) {
		ctx, cancel := context.WithTimeout(c.ctx, c.config.API.Timeout)
		defer cancel()

		if _, err := c.rewards.FetchBalance(ctx); err != nil {
			c.logger.Warn("Failed to refresh reward balance", zap.Error(err))
		}
	})

	_ = c.realtime.Subscribe(types.TopicNotification, func(event *types.RealtimeEvent) {
		if _, err := c.documents.Insert("notifications", event.Payload); err != nil {
			c.logger.Warn("Failed to store notification", zap.Error(err))
		}
	})
}

// Start brings components up in dependency order: storage first, then
// the cache, then the optional stream and scheduler. A pending reward
// marker left by an interrupted session is reconciled last.
func (c *Core) Start() error {
	if !c.transitionState(CoreStateStopped, CoreStateStarting) {
		return types.ErrServerAlreadyRunning
	}

	defer func() {
		if c.getState() == CoreStateStarting {
			c.setState(CoreStateRunning)
		}
	}()

	if err := c.store.Start(); err != nil {
		c.setState(CoreStateStopped)
		return err
	}

	if err := c.documents.Start(); err != nil {
		c.setState(CoreStateStopped)
		return err
	}

	if c.cache != nil {
		if err := c.cache.Start(); err != nil {
			c.setState(CoreStateStopped)
			return err
		}
	}

	if c.realtime != nil {
		if err := c.realtime.Start(); err != nil {
			c.logger.Warn("Realtime stream unavailable, continuing without it", zap.Error(err))
			c.realtime = nil
		}
	}

	if c.scheduler != nil {
		if err := c.scheduler.Start(); err != nil {
			c.setState(CoreStateStopped)
			return err
		}
	}

	if err := c.checkout.Resume(c.ctx); err != nil {
		c.logger.Warn("Pending reward reconciliation failed, will retry on schedule", zap.Error(err))
	}

	c.logger.Info("Storefront core started")
	return nil
}

// Stop shuts components down in reverse order.
func (c *Core) Stop() error {
	if !c.transitionState(CoreStateRunning, CoreStateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		c.setState(CoreStateStopped)
		c.cancel()
	}()

	g := &errgroup.Group{}

	if c.scheduler != nil && c.scheduler.IsRunning() {
		g.Go(c.scheduler.Stop)
	}
	if c.realtime != nil && c.realtime.IsRunning() {
		g.Go(c.realtime.Stop)
	}

	if err := g.Wait(); err != nil {
		c.logger.Error("Error stopping background components", zap.Error(err))
	}

	c.client.Close()

	if c.cache != nil && c.cache.IsRunning() {
		if err := c.cache.Stop(); err != nil {
			c.logger.Error("Error stopping cache", zap.Error(err))
		}
	}

	if err := c.documents.Stop(); err != nil {
		c.logger.Error("Error stopping document store", zap.Error(err))
	}

	if err := c.store.Stop(); err != nil {
		c.logger.Error("Error stopping key-value store", zap.Error(err))
	}

	c.logger.Info("Storefront core stopped gracefully")
	return nil
}

func (c *Core) IsRunning() bool {
	return c.getState() == CoreStateRunning
}

// Accessors for the host application.

func (c *Core) Client() *client.RequestClient       { return c.client }
func (c *Core) Cart() *checkout.Cart                { return c.cart }
func (c *Core) Rewards() *checkout.RewardManager    { return c.rewards }
func (c *Core) Checkout() *checkout.Manager         { return c.checkout }
func (c *Core) Searches() *storage.RecentSearches   { return c.searches }
func (c *Core) Documents() types.DocumentStore      { return c.documents }
func (c *Core) Metrics() *metrics.PrometheusMetrics { return c.metrics }

func (c *Core) getState() CoreState {
	if state, ok := c.state.Load().(CoreState); ok {
		return state
	}
	return CoreStateStopped
}

func (c *Core) setState(state CoreState) {
	c.state.Store(state)
}

func (c *Core) transitionState(from, to CoreState) bool {
	return c.state.CompareAndSwap(from, to)
}

package config

import (
	"context"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/velluxe/storefront-core/types"
)

type Loader struct {
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (l *Loader) LoadFromFile(configPath string) (*types.CoreConfig, error) {
	if configPath == "" {
		return nil, types.ErrConfigNotFound
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, types.WrapError(err, "file not found: "+configPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, err := l.readFileWithTimeout(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file")
	}

	return l.LoadFromBytes(data)
}

// LoadFromBytes parses YAML config, expanding ${VAR} references from the
// environment before unmarshalling.
func (l *Loader) LoadFromBytes(data []byte) (*types.CoreConfig, error) {
	cfg := Defaults()

	expanded := []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, types.WrapError(err, "failed to parse YAML config")
	}

	applyDefaults(cfg)

	if err := l.validator.Struct(cfg); err != nil {
		return nil, types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	return cfg, nil
}

func (l *Loader) Validate(cfg *types.CoreConfig) error {
	if cfg == nil {
		return types.ErrConfigIsNil
	}
	if err := l.validator.Struct(cfg); err != nil {
		return types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}
	return nil
}

func (l *Loader) readFileWithTimeout(ctx context.Context, filepath string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	resultCh := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(filepath)
		resultCh <- result{data: data, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Defaults returns the configuration the storefront core runs with when
// the embedding application does not override anything.
func Defaults() *types.CoreConfig {
	return &types.CoreConfig{
		Name:    "storefront-core",
		Version: "1.0.0",
		API: &types.APIConfig{
			Timeout:       20 * time.Second,
			Retries:       3,
			CoalesceGrace: time.Second,
			SensitivePaths: []string{
				"/cart",
				"/orders",
				"/rewards",
				"/users",
				"/checkout",
			},
			CircuitBreaker: &types.CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				RecoveryTimeout:  30 * time.Second,
				HalfOpenRequests: 2,
			},
		},
		Logger: &types.LoggerConfig{
			Level: "info",
		},
		Cache: &types.CacheConfig{
			Enabled:    true,
			Type:       "memory",
			DefaultTTL: 5 * time.Second,
		},
		Checkout: &types.CheckoutConfig{
			TaxRateBasisPoints:    1200,
			FreeShippingThreshold: 10000,
			ShippingFee:           150,
			CartFetchWatchdog:     8 * time.Second,
		},
		Storage: &types.StorageConfig{
			Path:         "storefront.db",
			DocumentPath: "storefront-docs",
		},
		Realtime: &types.RealtimeConfig{
			Enabled:        false,
			ReconnectDelay: 5 * time.Second,
			MaxRetries:     10,
			PingInterval:   30 * time.Second,
		},
		Metrics: &types.MetricsConfig{
			Enabled:   true,
			Namespace: "storefront",
		},
		Jobs: &types.JobsConfig{
			Enabled:          false,
			Timezone:         "UTC",
			CacheSweepSpec:   "0 */5 * * * *",
			RewardResumeSpec: "0 * * * * *",
		},
	}
}

func applyDefaults(cfg *types.CoreConfig) {
	def := Defaults()

	if cfg.API == nil {
		cfg.API = def.API
	} else {
		if cfg.API.Timeout <= 0 {
			cfg.API.Timeout = def.API.Timeout
		}
		if cfg.API.CoalesceGrace <= 0 {
			cfg.API.CoalesceGrace = def.API.CoalesceGrace
		}
		if len(cfg.API.SensitivePaths) == 0 {
			cfg.API.SensitivePaths = def.API.SensitivePaths
		}
		if cfg.API.CircuitBreaker == nil {
			cfg.API.CircuitBreaker = def.API.CircuitBreaker
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.Cache == nil {
		cfg.Cache = def.Cache
	} else if cfg.Cache.DefaultTTL <= 0 {
		cfg.Cache.DefaultTTL = def.Cache.DefaultTTL
	}
	if cfg.Checkout == nil {
		cfg.Checkout = def.Checkout
	} else if cfg.Checkout.CartFetchWatchdog <= 0 {
		cfg.Checkout.CartFetchWatchdog = def.Checkout.CartFetchWatchdog
	}
	if cfg.Storage == nil {
		cfg.Storage = def.Storage
	}
	if cfg.Realtime == nil {
		cfg.Realtime = def.Realtime
	}
	if cfg.Metrics == nil {
		cfg.Metrics = def.Metrics
	}
	if cfg.Jobs == nil {
		cfg.Jobs = def.Jobs
	}
}

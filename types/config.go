package types

import (
	"time"
)

type ConfigManager interface {
	Load() error
	GetConfig() *CoreConfig
}

type CoreConfig struct {
	Name     string          `yaml:"name" json:"name" validate:"required"`
	Version  string          `yaml:"version" json:"version" validate:"required"`
	API      *APIConfig      `yaml:"api" json:"api" validate:"required"`
	Logger   *LoggerConfig   `yaml:"logger" json:"logger"`
	Cache    *CacheConfig    `yaml:"cache" json:"cache"`
	Checkout *CheckoutConfig `yaml:"checkout" json:"checkout"`
	Storage  *StorageConfig  `yaml:"storage" json:"storage"`
	Realtime *RealtimeConfig `yaml:"realtime" json:"realtime"`
	Metrics  *MetricsConfig  `yaml:"metrics" json:"metrics"`
	Jobs     *JobsConfig     `yaml:"jobs" json:"jobs"`
}

type APIConfig struct {
	BaseURL        string                `yaml:"base_url" json:"base_url" validate:"required,url"`
	Timeout        time.Duration         `yaml:"timeout" json:"timeout"`
	Retries        int                   `yaml:"retries" json:"retries" validate:"min=0,max=10"`
	CoalesceGrace  time.Duration         `yaml:"coalesce_grace" json:"coalesce_grace"`
	SensitivePaths []string              `yaml:"sensitive_paths" json:"sensitive_paths"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`
	HalfOpenRequests int           `yaml:"half_open_requests" json:"half_open_requests"`
}

type LoggerConfig struct {
	Level  string      `yaml:"level" json:"level"`
	Config interface{} `yaml:"config" json:"config"`
}

type CacheConfig struct {
	Enabled    bool          `yaml:"enabled" json:"enabled"`
	Type       string        `yaml:"type" json:"type" validate:"required_if=Enabled true"`
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl" validate:"min=0"`
	Config     interface{}   `yaml:"config" json:"config"`
}

type CheckoutConfig struct {
	TaxRateBasisPoints    int64         `yaml:"tax_rate_basis_points" json:"tax_rate_basis_points" validate:"min=0,max=10000"`
	FreeShippingThreshold int64         `yaml:"free_shipping_threshold" json:"free_shipping_threshold" validate:"min=0"`
	ShippingFee           int64         `yaml:"shipping_fee" json:"shipping_fee" validate:"min=0"`
	CartFetchWatchdog     time.Duration `yaml:"cart_fetch_watchdog" json:"cart_fetch_watchdog"`
}

type StorageConfig struct {
	Path         string `yaml:"path" json:"path"`
	DocumentPath string `yaml:"document_path" json:"document_path"`
}

type RealtimeConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	URL            string        `yaml:"url" json:"url" validate:"required_if=Enabled true"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" json:"reconnect_delay"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	PingInterval   time.Duration `yaml:"ping_interval" json:"ping_interval"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

type JobsConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	Timezone         string `yaml:"timezone" json:"timezone"`
	CacheSweepSpec   string `yaml:"cache_sweep_spec" json:"cache_sweep_spec"`
	RewardResumeSpec string `yaml:"reward_resume_spec" json:"reward_resume_spec"`
}

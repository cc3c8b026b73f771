package config

import (
	"sync/atomic"

	"github.com/velluxe/storefront-core/types"
)

type ConfigurationManager struct {
	config     atomic.Pointer[types.CoreConfig]
	configPath string
	loader     *Loader
}

func NewConfigurationManager(configPath string) (*ConfigurationManager, error) {
	cm := &ConfigurationManager{
		configPath: configPath,
		loader:     NewLoader(),
	}

	if err := cm.Load(); err != nil {
		return nil, types.WrapError(err, "failed to load initial configuration")
	}

	return cm, nil
}

// NewStaticManager wraps an in-memory config, for embedding hosts that
// assemble configuration themselves instead of reading a file.
func NewStaticManager(cfg *types.CoreConfig) (*ConfigurationManager, error) {
	if cfg == nil {
		return nil, types.ErrConfigIsNil
	}

	applyDefaults(cfg)

	cm := &ConfigurationManager{loader: NewLoader()}
	if err := cm.loader.Validate(cfg); err != nil {
		return nil, err
	}

	cm.config.Store(cfg)
	return cm, nil
}

func (cm *ConfigurationManager) Load() error {
	if cm.configPath == "" {
		return types.ErrConfigNotFound
	}

	cfg, err := cm.loader.LoadFromFile(cm.configPath)
	if err != nil {
		return err
	}

	cm.config.Store(cfg)
	return nil
}

func (cm *ConfigurationManager) GetConfig() *types.CoreConfig {
	return cm.config.Load()
}

package config

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/saiset-co/estate-client/types"
)

type ConfigurationManager struct {
	ctx         context.Context
	config      atomic.Pointer[types.ServiceConfig]
	configPath  string
	loader      *Loader
	loadTimeout time.Duration
}

func NewConfigurationManager(ctx context.Context, configPath string) (*ConfigurationManager, error) {
	cm := &ConfigurationManager{
		ctx:         ctx,
		configPath:  configPath,
		loader:      NewLoader(),
		loadTimeout: 30 * time.Second,
	}

	if err := cm.Load(); err != nil {
		return nil, types.WrapError(err, "failed to load initial configuration")
	}

	return cm, nil
}

// NewStaticManager wraps an already built config, validating it first.
func NewStaticManager(config *types.ServiceConfig) (*ConfigurationManager, error) {
	cm := &ConfigurationManager{
		ctx:         context.Background(),
		loader:      NewLoader(),
		loadTimeout: 30 * time.Second,
	}

	if err := cm.loader.Validate(config); err != nil {
		return nil, err
	}

	cm.config.Store(config)
	return cm, nil
}

// Load re-reads the file. The previous config stays in place on failure.
func (cm *ConfigurationManager) Load() error {
	if cm.configPath == "" {
		return types.ErrConfigNotFound
	}

	loadCtx, cancel := context.WithTimeout(cm.ctx, cm.loadTimeout)
	defer cancel()

	config, err := cm.loader.LoadFromFile(loadCtx, cm.configPath)
	if err != nil {
		return types.Errorf(types.ErrConfigLoadFailed, "%v", err)
	}

	cm.config.Store(config)
	return nil
}

func (cm *ConfigurationManager) GetConfig() *types.ServiceConfig {
	return cm.config.Load()
}

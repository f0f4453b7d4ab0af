package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/saiset-co/estate-client/types"
)

const (
	EnvBaseURL = "ESTATE_API_BASE_URL"
	EnvToken   = "ESTATE_API_TOKEN"
)

type Loader struct {
	validator *validator.Validate
	lookupEnv func(string) (string, bool)
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
		lookupEnv: os.LookupEnv,
	}
}

func (l *Loader) LoadFromFile(ctx context.Context, configPath string) (*types.ServiceConfig, error) {
	if configPath == "" {
		return nil, types.ErrConfigNotFound
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, types.WrapError(types.ErrConfigNotFound, "file not found: "+configPath)
	}

	data, err := l.ReadFileWithTimeout(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file")
	}

	return l.LoadFromBytes(data)
}

// LoadFromBytes parses data and validates the result.
func (l *Loader) LoadFromBytes(data []byte) (*types.ServiceConfig, error) {
	config, err := l.Parse(data)
	if err != nil {
		return nil, err
	}

	if err := l.Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Parse applies defaults, the YAML document and env overrides, in that order,
// without validating. Empty data yields the defaults.
func (l *Loader) Parse(data []byte) (*types.ServiceConfig, error) {
	config := l.Defaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, types.Errorf(types.ErrConfigParseFailed, "%v", err)
	}

	l.applyEnv(config)

	return config, nil
}

func (l *Loader) Validate(config *types.ServiceConfig) error {
	if config == nil {
		return types.ErrConfigIsNil
	}

	if err := l.validator.Struct(config); err != nil {
		return types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	return nil
}

func (l *Loader) ReadFileWithTimeout(ctx context.Context, filepath string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resultChan := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(filepath)
		resultChan <- result{data: data, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.data, res.err
	case <-ctx.Done():
		return nil, types.WrapError(ctx.Err(), "file read timeout")
	}
}

func (l *Loader) applyEnv(config *types.ServiceConfig) {
	if value, ok := l.lookupEnv(EnvBaseURL); ok && strings.TrimSpace(value) != "" {
		if config.Client == nil {
			config.Client = &types.ClientConfig{}
		}
		config.Client.BaseURL = strings.TrimRight(strings.TrimSpace(value), "/")
	}

	if value, ok := l.lookupEnv(EnvToken); ok && value != "" {
		if config.Session == nil {
			config.Session = &types.SessionConfig{}
		}
		config.Session.Token = value
	}
}

func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Name: "estate-client",
		Logger: &types.LoggerConfig{
			Level: "info",
		},
		Client: &types.ClientConfig{
			Timeout: 30 * time.Second,
			CircuitBreaker: &types.CircuitBreakerConfig{
				Enabled:          false,
				FailureThreshold: 5,
				RecoveryTimeout:  60 * time.Second,
				HalfOpenRequests: 1,
			},
		},
		Cache: &types.CacheConfig{
			ResourceTTL: 5 * time.Minute,
			LandingTTL:  10 * time.Minute,
			WellKnownKeys: []string{
				"/api/v1/properties/?limit=6&listing_status=APPROVED&listing_type=SALE&page=1",
				"/api/v1/properties/?limit=6&listing_status=APPROVED&listing_type=RENT&page=1",
			},
		},
		Metrics: &types.MetricsConfig{
			Enabled: false,
			Type:    "prometheus",
		},
		Warmers: &types.WarmersConfig{
			Enabled:  false,
			Timezone: "UTC",
		},
		Session: &types.SessionConfig{},
	}
}

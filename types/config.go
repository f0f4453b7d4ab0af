package types

import (
	"time"
)

type ConfigManager interface {
	GetConfig() *ServiceConfig
}

type ServiceConfig struct {
	Name    string         `yaml:"name" json:"name" validate:"required"`
	Version string         `yaml:"version" json:"version"`
	Logger  *LoggerConfig  `yaml:"logger" json:"logger" validate:"required"`
	Client  *ClientConfig  `yaml:"client" json:"client" validate:"required"`
	Cache   *CacheConfig   `yaml:"cache" json:"cache" validate:"required"`
	Metrics *MetricsConfig `yaml:"metrics" json:"metrics"`
	Warmers *WarmersConfig `yaml:"warmers" json:"warmers"`
	Session *SessionConfig `yaml:"session" json:"session"`
}

type LoggerConfig struct {
	Type   string      `yaml:"type" json:"type"`
	Level  string      `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error fatal"`
	Config interface{} `yaml:"config" json:"config"`
}

type ClientConfig struct {
	BaseURL           string                `yaml:"base_url" json:"base_url" validate:"required,url"`
	Timeout           time.Duration         `yaml:"timeout" json:"timeout" validate:"min=0"`
	RequestsPerSecond float64               `yaml:"requests_per_second" json:"requests_per_second" validate:"min=0"`
	Burst             int                   `yaml:"burst" json:"burst" validate:"min=0"`
	CircuitBreaker    *CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	FailureThreshold uint32        `yaml:"failure_threshold" json:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`
	HalfOpenRequests uint32        `yaml:"half_open_requests" json:"half_open_requests"`
}

type CacheConfig struct {
	ResourceTTL   time.Duration `yaml:"resource_ttl" json:"resource_ttl" validate:"gt=0"`
	LandingTTL    time.Duration `yaml:"landing_ttl" json:"landing_ttl" validate:"gt=0"`
	WellKnownKeys []string      `yaml:"well_known_keys" json:"well_known_keys"`
}

type MetricsConfig struct {
	Enabled bool              `yaml:"enabled" json:"enabled"`
	Type    string            `yaml:"type" json:"type" validate:"required_if=Enabled true"`
	Config  interface{}       `yaml:"config" json:"config"`
	Labels  map[string]string `yaml:"labels" json:"labels"`
}

type WarmersConfig struct {
	Enabled  bool           `yaml:"enabled" json:"enabled"`
	Timezone string         `yaml:"timezone" json:"timezone" validate:"required_if=Enabled true"`
	Jobs     []WarmerConfig `yaml:"jobs" json:"jobs" validate:"dive"`
}

type WarmerConfig struct {
	Name        string   `yaml:"name" json:"name" validate:"required"`
	Schedule    string   `yaml:"schedule" json:"schedule" validate:"required"`
	Landing     bool     `yaml:"landing" json:"landing"`
	PropertyIDs []string `yaml:"property_ids" json:"property_ids"`
}

// SessionConfig seeds the in-memory session store, mainly for the CLI.
type SessionConfig struct {
	Token string `yaml:"token" json:"token"`
	Role  string `yaml:"role" json:"role" validate:"omitempty,oneof=AGENT CLIENT"`
}

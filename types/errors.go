package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigIsNil          = errors.New("config is nil")
	ErrConfigLoadFailed     = errors.New("config load failed")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrCacheKeyEmpty   = errors.New("cache key empty")
	ErrCacheTTLInvalid = errors.New("cache ttl invalid")
	ErrCacheIsNil      = errors.New("cache is nil")
)

var (
	ErrClientNotInitialized = errors.New("client not initialized")
	ErrClientBaseURLEmpty   = errors.New("client base url empty")
	ErrRequestFailed        = errors.New("request failed")
	ErrUnexpectedStatus     = errors.New("unexpected status")
	ErrDecodeFailed         = errors.New("response decode failed")
	ErrCircuitBreakerOpen   = errors.New("circuit breaker open")
	ErrRateLimited          = errors.New("rate limit wait failed")
)

var (
	ErrMetricsTypeUnknown = errors.New("metrics type unknown")
	ErrMetricsIsDisabled  = errors.New("metrics manager is disabled")
)

var (
	ErrCronJobExists         = errors.New("cron job exists")
	ErrCronExpressionInvalid = errors.New("cron expression invalid")
	ErrCronJobNameIsEmpty    = errors.New("cron job name is empty")
	ErrCronJobIsNil          = errors.New("cron job is nil")
	ErrCronIsRunning         = errors.New("cron is running")
	ErrCronNotRunning        = errors.New("cron is not running")
	ErrCronJobNotFound       = errors.New("cron job not found")
	ErrCronJobFailed         = errors.New("cron job failed")
	ErrCronJobTimeout        = errors.New("cron job timeout")
)

var (
	ErrLogFileIsEmpty      = errors.New("log file is empty")
	ErrLogFileWrongFormat  = errors.New("log file wrong format")
	ErrLoggerTypeUnknown   = errors.New("logger type unknown")
	ErrLoggerConfigInvalid = errors.New("logger config invalid")
)

var (
	ErrServiceIsRunning = errors.New("service is running")
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotSupported     = errors.New("not supported")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Path       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d for %s", ErrUnexpectedStatus, e.StatusCode, e.Path)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}

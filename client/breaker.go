package client

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/saiset-co/estate-client/types"
)

// CircuitBreaker fails fast once the backend keeps returning transport errors or 5xx.
// A nil *CircuitBreaker lets every call through.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	logger  types.Logger
}

func NewCircuitBreaker(config *types.CircuitBreakerConfig, logger types.Logger, name string) *CircuitBreaker {
	if config == nil || !config.Enabled {
		return nil
	}

	threshold := config.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	halfOpen := config.HalfOpenRequests
	if halfOpen == 0 {
		halfOpen = 1
	}

	recovery := config.RecoveryTimeout
	if recovery <= 0 {
		recovery = 60 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: halfOpen,
		Timeout:     recovery,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: IsBreakerSuccess,
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	if cb == nil {
		return fn()
	}

	_, err := cb.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.Errorf(types.ErrCircuitBreakerOpen, "%v", err)
	}

	return err
}

func (cb *CircuitBreaker) State() string {
	if cb == nil {
		return "disabled"
	}
	return cb.breaker.State().String()
}

// IsBreakerSuccess treats client errors (4xx) as a healthy backend.
func IsBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}

	var statusErr *types.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode < 500
	}

	return false
}

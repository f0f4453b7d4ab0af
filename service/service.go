// Package service assembles the client stack from configuration and runs the
// warmer scheduler until it is told to stop.
package service

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"github.com/saiset-co/estate-client/api"
	"github.com/saiset-co/estate-client/cache"
	"github.com/saiset-co/estate-client/client"
	"github.com/saiset-co/estate-client/config"
	"github.com/saiset-co/estate-client/cron"
	"github.com/saiset-co/estate-client/logger"
	"github.com/saiset-co/estate-client/metrics"
	"github.com/saiset-co/estate-client/session"
	"github.com/saiset-co/estate-client/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

type Service struct {
	ctx     context.Context
	cancel  context.CancelFunc
	config  types.ConfigManager
	logger  types.Logger
	metrics types.MetricsManager
	session *session.MemoryStore
	client  *client.HTTPClient
	api     *api.Service
	cron    *cron.Manager
	state   atomic.Int32
}

type Option func(*options)

type options struct {
	clientOptions []client.Option
	cacheOptions  []cache.Option
	logger        types.Logger
}

// WithClientOptions passes options through to client.NewHTTPClient.
func WithClientOptions(opts ...client.Option) Option {
	return func(o *options) {
		o.clientOptions = append(o.clientOptions, opts...)
	}
}

// WithCacheOptions passes options through to both cache buckets.
func WithCacheOptions(opts ...cache.Option) Option {
	return func(o *options) {
		o.cacheOptions = append(o.cacheOptions, opts...)
	}
}

// WithLogger replaces the logger built from configuration.
func WithLogger(l types.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// NewService loads configPath and builds the stack from it.
func NewService(ctx context.Context, configPath string, opts ...Option) (*Service, error) {
	configManager, err := config.NewConfigurationManager(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to register config manager")
	}

	return New(ctx, configManager, opts...)
}

func New(ctx context.Context, configManager types.ConfigManager, opts ...Option) (*Service, error) {
	if configManager == nil || configManager.GetConfig() == nil {
		return nil, types.ErrConfigIsNil
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := configManager.GetConfig()

	loggerManager := o.logger
	if loggerManager == nil {
		var err error
		loggerManager, err = logger.NewLogger(cfg.Logger)
		if err != nil {
			return nil, types.WrapError(err, "failed to register logger")
		}
	}

	metricsManager, err := metrics.NewManager(cfg.Metrics, loggerManager)
	if err != nil {
		return nil, types.WrapError(err, "failed to register metrics manager")
	}

	store := session.FromConfig(cfg.Session)

	clientOptions := append([]client.Option{client.WithMetrics(metricsManager)}, o.clientOptions...)
	httpClient, err := client.NewHTTPClient(loggerManager, cfg.Client, store, clientOptions...)
	if err != nil {
		return nil, types.WrapError(err, "failed to register http client")
	}

	cacheOptions := append([]cache.Option{cache.WithMetrics(metricsManager)}, o.cacheOptions...)
	apiService, err := api.New(loggerManager, httpClient, store, cfg.Cache, cacheOptions...)
	if err != nil {
		return nil, types.WrapError(err, "failed to register api service")
	}

	serviceCtx, cancel := context.WithCancel(ctx)

	cronManager, err := cron.NewManager(serviceCtx, cfg.Warmers, loggerManager, metricsManager)
	if err != nil {
		cancel()
		return nil, types.WrapError(err, "failed to register cron manager")
	}

	if err := cron.RegisterWarmers(cronManager, apiService, cfg.Warmers); err != nil {
		cancel()
		return nil, err
	}

	s := &Service{
		ctx:     serviceCtx,
		cancel:  cancel,
		config:  configManager,
		logger:  loggerManager,
		metrics: metricsManager,
		session: store,
		client:  httpClient,
		api:     apiService,
		cron:    cronManager,
	}

	loggerManager.Info("Service initialized",
		zap.String("name", cfg.Name),
		zap.String("base_url", httpClient.BaseURL()),
		zap.Duration("resource_ttl", cfg.Cache.ResourceTTL),
		zap.Duration("landing_ttl", cfg.Cache.LandingTTL),
		zap.Int("warmers", len(cronManager.Jobs())))

	return s, nil
}

func (s *Service) API() *api.Service {
	return s.api
}

func (s *Service) Config() *types.ServiceConfig {
	return s.config.GetConfig()
}

func (s *Service) Logger() types.Logger {
	return s.logger
}

func (s *Service) Metrics() types.MetricsManager {
	return s.metrics
}

func (s *Service) Session() *session.MemoryStore {
	return s.session
}

func (s *Service) Client() *client.HTTPClient {
	return s.client
}

func (s *Service) Cron() *cron.Manager {
	return s.cron
}

// Run starts the warmer scheduler and blocks until ctx is done, Stop is
// called or the process receives SIGINT/SIGTERM.
func (s *Service) Run(ctx context.Context) error {
	if !s.transitionState(StateStopped, StateStarting) {
		return types.ErrServiceIsRunning
	}
	defer s.setState(StateStopped)

	if err := s.cron.Start(); err != nil {
		return types.WrapError(err, "failed to start cron manager")
	}

	s.setState(StateRunning)
	s.logger.Info("Service started")

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case <-ctx.Done():
	case <-s.ctx.Done():
	case sig := <-signals:
		s.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	s.setState(StateStopping)
	s.logger.Info("Stopping service...")

	if err := s.cron.Stop(); err != nil {
		s.logger.Error("Error during service shutdown", zap.Error(err))
		return err
	}

	s.logger.Info("Service stopped gracefully")
	return nil
}

// Stop makes a running Run return.
func (s *Service) Stop() {
	s.cancel()
}

// Close flushes the logger. The service must not be used afterwards.
func (s *Service) Close() {
	s.cancel()
	logger.Sync(s.logger)
}

func (s *Service) IsRunning() bool {
	return s.getState() == StateRunning
}

func (s *Service) getState() State {
	return State(s.state.Load())
}

func (s *Service) setState(state State) {
	s.state.Store(int32(state))
}

func (s *Service) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

// Package cache coalesces identical in-flight GETs and keeps their decoded
// JSON payloads for a fixed TTL.
package cache

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/saiset-co/estate-client/metrics"
	"github.com/saiset-co/estate-client/types"
	"github.com/saiset-co/estate-client/utils"
)

const tracerName = "estate-client/cache"

type Config struct {
	// Name labels the bucket in logs and metrics.
	Name string
	TTL  time.Duration
}

type FetchOptions struct {
	UseCache bool
	Params   types.Params
	Headers  map[string]string
	Timeout  time.Duration
}

type Result struct {
	// Data is shared by every caller that received it and must be treated as read-only.
	Data      any
	FromCache bool
}

// EntryInfo describes one stored entry for diagnostics.
type EntryInfo struct {
	Key       string
	Value     any
	StoredAt  time.Time
	Remaining time.Duration
	Valid     bool
}

type RequestCache struct {
	name      string
	logger    types.Logger
	metrics   types.MetricsManager
	requester types.Requester
	store     *MemoryStore
	group     singleflight.Group
	pending   atomic.Int64
	now       func() time.Time
	tracer    trace.Tracer

	// joined, when set, runs once the caller is attached to a flight.
	joined func(key string)
}

type Option func(*RequestCache)

// WithClock replaces time.Now for TTL bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(c *RequestCache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithMetrics(metrics types.MetricsManager) Option {
	return func(c *RequestCache) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

func New(logger types.Logger, requester types.Requester, config Config, opts ...Option) (*RequestCache, error) {
	if requester == nil {
		return nil, types.ErrClientNotInitialized
	}

	if config.TTL <= 0 {
		return nil, types.Errorf(types.ErrCacheTTLInvalid, "bucket %q: %s", config.Name, config.TTL)
	}

	name := config.Name
	if name == "" {
		name = "default"
	}

	c := &RequestCache{
		name:      name,
		logger:    logger,
		metrics:   metrics.NewNoopMetrics(),
		requester: requester,
		now:       time.Now,
		tracer:    otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.store = NewMemoryStore(config.TTL, c.now)

	return c, nil
}

// Fetch returns the payload for GET path?params.
//
// With UseCache a valid stored entry is returned without network access.
// Otherwise, if the same key is already in flight the caller waits for that
// request; else a new request is issued. Successful responses are stored only
// when UseCache is set. Failures are returned as-is and never stored.
//
// The shared request is detached from ctx cancellation; cancelling ctx only
// stops this caller from waiting.
func (c *RequestCache) Fetch(ctx context.Context, path string, opts FetchOptions) (*Result, error) {
	key := BuildKey(path, opts.Params)

	ctx, span := c.tracer.Start(ctx, "cache.Fetch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.bucket", c.name),
			attribute.String("cache.key", key),
			attribute.Bool("cache.use_cache", opts.UseCache),
		),
	)
	defer span.End()

	if opts.UseCache {
		if value, ok := c.store.Get(key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			c.recordResult("hit")
			c.logger.Debug("Cache hit", zap.String("bucket", c.name), zap.String("key", key))
			return &Result{Data: value, FromCache: true}, nil
		}
	}

	span.SetAttributes(attribute.Bool("cache.hit", false))

	// ran stays false for callers that joined another caller's flight.
	var ran atomic.Bool
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		ran.Store(true)
		return c.load(loadCtx, key, path, opts)
	})
	if c.joined != nil {
		c.joined(key)
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			return nil, res.Err
		}
		if res.Shared && !ran.Load() {
			span.SetAttributes(attribute.Bool("cache.coalesced", true))
			c.recordResult("coalesced")
		}
		return &Result{Data: res.Val, FromCache: false}, nil
	case <-ctx.Done():
		span.SetStatus(codes.Error, ctx.Err().Error())
		return nil, ctx.Err()
	}
}

// load runs once per in-flight key.
func (c *RequestCache) load(ctx context.Context, key, path string, opts FetchOptions) (interface{}, error) {
	c.pending.Add(1)
	defer c.pending.Add(-1)

	// Another flight may have stored the key between the caller's lookup and this one.
	if opts.UseCache {
		if value, ok := c.store.Get(key); ok {
			c.recordResult("hit")
			return value, nil
		}
	}

	c.recordResult("miss")

	start := time.Now()
	defer func() {
		c.metrics.Histogram("cache_fetch_duration_seconds",
			[]float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
			map[string]string{"bucket": c.name},
		).Observe(time.Since(start).Seconds())
	}()

	body, statusCode, err := c.requester.Get(ctx, path, QueryString(opts.Params), &types.CallOptions{
		Headers: opts.Headers,
		Timeout: opts.Timeout,
	})
	if err != nil {
		c.logger.Debug("Fetch failed",
			zap.String("bucket", c.name),
			zap.String("key", key),
			zap.Int("status_code", statusCode),
			zap.Error(err))
		return nil, err
	}

	value, err := utils.DecodeAny(body)
	if err != nil {
		return nil, types.Errorf(types.ErrDecodeFailed, "%s: %v", key, err)
	}

	if opts.UseCache {
		if err := c.store.Set(key, value); err != nil {
			return nil, err
		}
		c.updateSize()
	}

	c.logger.Debug("Fetched",
		zap.String("bucket", c.name),
		zap.String("key", key),
		zap.Bool("stored", opts.UseCache),
		zap.Duration("duration", time.Since(start)))

	return value, nil
}

// Invalidate drops every entry whose key contains pattern, or all entries when
// pattern is empty. In-flight requests are left alone and repopulate the cache
// when they complete.
func (c *RequestCache) Invalidate(pattern string) int {
	removed := c.store.Invalidate(pattern)
	c.updateSize()

	c.logger.Debug("Cache invalidated",
		zap.String("bucket", c.name),
		zap.String("pattern", pattern),
		zap.Int("removed", removed))

	return removed
}

// Inspect reports on key without mutating the cache.
func (c *RequestCache) Inspect(key string) (EntryInfo, bool) {
	entry, ok := c.store.Peek(key)
	if !ok {
		return EntryInfo{Key: key}, false
	}

	now := c.now()
	return EntryInfo{
		Key:       key,
		Value:     entry.Value,
		StoredAt:  entry.StoredAt,
		Remaining: entry.Remaining(now, c.store.TTL()),
		Valid:     entry.IsValid(now, c.store.TTL()),
	}, true
}

// Snapshot lists every stored entry, expired ones included, sorted by key.
func (c *RequestCache) Snapshot() []EntryInfo {
	keys := c.store.Keys()
	sort.Strings(keys)

	infos := make([]EntryInfo, 0, len(keys))
	for _, key := range keys {
		if info, ok := c.Inspect(key); ok {
			infos = append(infos, info)
		}
	}
	return infos
}

func (c *RequestCache) Name() string {
	return c.name
}

func (c *RequestCache) TTL() time.Duration {
	return c.store.TTL()
}

// Pending is the number of keys with a request in flight.
func (c *RequestCache) Pending() int {
	return int(c.pending.Load())
}

func (c *RequestCache) Len() int {
	return c.store.Len()
}

func (c *RequestCache) recordResult(result string) {
	c.metrics.Counter("cache_requests_total", map[string]string{
		"bucket": c.name,
		"result": result,
	}).Inc()
}

func (c *RequestCache) updateSize() {
	c.metrics.Gauge("cache_entries", map[string]string{
		"bucket": c.name,
	}).Set(float64(c.store.Len()))
}

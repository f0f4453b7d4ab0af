// Package api exposes the marketplace resources on top of the request cache.
// Methods never return errors: failures are logged and mapped to empty
// results, while the underlying cache.RequestCache propagates them.
package api

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/estate-client/cache"
	"github.com/saiset-co/estate-client/types"
)

const (
	BucketResources = "resources"
	BucketLanding   = "landing"

	landingLimit = 6
)

type ListResult struct {
	Items     []any
	Total     int
	FromCache bool
}

type ItemResult struct {
	Item      any
	FromCache bool
}

// ProfileResult holds the base user record and the role-specific profile.
// Either half is nil when its request failed; RoleProfile is also nil when
// no role is known.
type ProfileResult struct {
	User        any
	RoleProfile any
	Role        string
}

type LandingResult struct {
	Sale ListResult
	Rent ListResult
}

type Service struct {
	logger    types.Logger
	session   types.SessionStore
	resources *cache.RequestCache
	landing   *cache.RequestCache
}

// New builds the resource and landing buckets over requester. opts apply to
// both buckets.
func New(logger types.Logger, requester types.Requester, session types.SessionStore, config *types.CacheConfig, opts ...cache.Option) (*Service, error) {
	if config == nil {
		return nil, types.ErrCacheIsNil
	}

	resources, err := cache.New(logger, requester, cache.Config{Name: BucketResources, TTL: config.ResourceTTL}, opts...)
	if err != nil {
		return nil, types.WrapError(err, "failed to create resource cache")
	}

	landing, err := cache.New(logger, requester, cache.Config{Name: BucketLanding, TTL: config.LandingTTL}, opts...)
	if err != nil {
		return nil, types.WrapError(err, "failed to create landing cache")
	}

	return &Service{
		logger:    logger,
		session:   session,
		resources: resources,
		landing:   landing,
	}, nil
}

func (s *Service) Cache() *cache.RequestCache {
	return s.resources
}

func (s *Service) LandingCache() *cache.RequestCache {
	return s.landing
}

func (s *Service) ListProperties(ctx context.Context, query PropertyQuery) ListResult {
	return s.fetchList(ctx, s.resources, pathProperties, query.params())
}

func (s *Service) GetProperty(ctx context.Context, id string) ItemResult {
	if strings.TrimSpace(id) == "" {
		s.logger.Warn("Property id is empty")
		return ItemResult{}
	}

	return s.fetchItem(ctx, s.resources, propertyPath(id), nil)
}

// GetUserProfile fetches the user record and the profile for the stored role
// concurrently. A failure of one request does not affect the other.
func (s *Service) GetUserProfile(ctx context.Context) ProfileResult {
	var result ProfileResult

	rolePath := ""
	if s.session != nil {
		if role, ok := s.session.Role(); ok {
			result.Role = role
			rolePath = pathClientProfile
			if role == types.RoleAgent {
				rolePath = pathAgentProfile
			}
		}
	}

	var g errgroup.Group

	g.Go(func() error {
		result.User = s.fetchItem(ctx, s.resources, pathUserProfile, nil).Item
		return nil
	})

	if rolePath != "" {
		g.Go(func() error {
			result.RoleProfile = s.fetchItem(ctx, s.resources, rolePath, nil).Item
			return nil
		})
	}

	_ = g.Wait()

	return result
}

func (s *Service) ListTransactions(ctx context.Context, page, limit int) ListResult {
	return s.fetchList(ctx, s.resources, pathHistory, types.Params{
		"page":  optInt(page),
		"limit": optInt(limit),
	})
}

func (s *Service) GetAnalytics(ctx context.Context, query AnalyticsQuery) ItemResult {
	return s.fetchItem(ctx, s.resources, pathAnalytics, query.params())
}

// SearchProperties returns an empty result without touching the network when
// the query is shorter than two characters.
func (s *Service) SearchProperties(ctx context.Context, query SearchQuery) ListResult {
	if utf8.RuneCountInString(query.Query) < minSearchLength {
		return ListResult{Items: []any{}}
	}

	return s.fetchList(ctx, s.resources, pathProperties, query.params())
}

// PrefetchProperties warms the cache with the detail of every id, issuing all
// fetches at once. It is best-effort: each failure is logged and dropped, and
// the call returns once all fetches have settled.
func (s *Service) PrefetchProperties(ctx context.Context, ids []string) {
	var g errgroup.Group

	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}

		path := propertyPath(id)
		g.Go(func() error {
			if _, err := s.resources.Fetch(ctx, path, cache.FetchOptions{UseCache: true}); err != nil {
				s.logger.Debug("Prefetch failed", zap.String("path", path), zap.Error(err))
			}
			return nil
		})
	}

	_ = g.Wait()
}

// Landing loads the first page of approved sale and rent listings from the
// landing bucket.
func (s *Service) Landing(ctx context.Context) LandingResult {
	var result LandingResult
	var g errgroup.Group

	g.Go(func() error {
		result.Sale = s.fetchList(ctx, s.landing, pathProperties, LandingQuery(ListingTypeSale).params())
		return nil
	})
	g.Go(func() error {
		result.Rent = s.fetchList(ctx, s.landing, pathProperties, LandingQuery(ListingTypeRent).params())
		return nil
	})

	_ = g.Wait()

	return result
}

// Invalidate drops matching entries from both buckets; an empty pattern
// clears everything.
func (s *Service) Invalidate(pattern string) int {
	return s.resources.Invalidate(pattern) + s.landing.Invalidate(pattern)
}

// LandingQuery is the listing query behind one landing section.
func LandingQuery(listingType string) PropertyQuery {
	return PropertyQuery{
		ListingStatus: ListingStatusApproved,
		ListingType:   listingType,
		Page:          1,
		Limit:         landingLimit,
	}
}

// LandingKeys are the cache keys Landing populates.
func LandingKeys() []string {
	return []string{
		cache.BuildKey(pathProperties, LandingQuery(ListingTypeSale).params()),
		cache.BuildKey(pathProperties, LandingQuery(ListingTypeRent).params()),
	}
}

func (s *Service) fetchList(ctx context.Context, bucket *cache.RequestCache, path string, params types.Params) ListResult {
	res, err := bucket.Fetch(ctx, path, cache.FetchOptions{UseCache: true, Params: params})
	if err != nil {
		s.logFailure(bucket, path, params, err)
		return ListResult{Items: []any{}}
	}

	list := ExtractList(res.Data)
	if list.Strategy == StrategyDefault {
		s.logger.Warn("Unrecognized list envelope", zap.String("key", cache.BuildKey(path, params)))
	}

	return ListResult{Items: list.Items, Total: list.Total, FromCache: res.FromCache}
}

func (s *Service) fetchItem(ctx context.Context, bucket *cache.RequestCache, path string, params types.Params) ItemResult {
	res, err := bucket.Fetch(ctx, path, cache.FetchOptions{UseCache: true, Params: params})
	if err != nil {
		s.logFailure(bucket, path, params, err)
		return ItemResult{}
	}

	item, strategy := ExtractItem(res.Data)
	if strategy == StrategyDefault {
		s.logger.Warn("Unrecognized item envelope", zap.String("key", cache.BuildKey(path, params)))
	}

	return ItemResult{Item: item, FromCache: res.FromCache}
}

func (s *Service) logFailure(bucket *cache.RequestCache, path string, params types.Params, err error) {
	s.logger.ErrorWithErrStack("Request failed", err,
		zap.String("bucket", bucket.Name()),
		zap.String("key", cache.BuildKey(path, params)))
}

func propertyPath(id string) string {
	return pathProperties + url.PathEscape(strings.Trim(id, "/")) + "/"
}

package api

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/estate-client/cache"
	"github.com/saiset-co/estate-client/client"
	"github.com/saiset-co/estate-client/client/clienttest"
	"github.com/saiset-co/estate-client/logger"
	"github.com/saiset-co/estate-client/session"
	"github.com/saiset-co/estate-client/types"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	backend *clienttest.Backend
	session *session.MemoryStore
	clock   *testClock
	service *Service
}

func newFixture(t *testing.T, handler fasthttp.RequestHandler) *fixture {
	t.Helper()

	backend := clienttest.NewBackend(handler)
	t.Cleanup(backend.Close)

	store := session.NewMemoryStore()
	httpClient, err := client.NewHTTPClient(logger.NewNopLogger(), &types.ClientConfig{
		BaseURL: "https://api.test",
		Timeout: time.Second,
	}, store, client.WithDoer(backend.Doer()))
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	service, err := New(logger.NewNopLogger(), httpClient, store, &types.CacheConfig{
		ResourceTTL: 5000 * time.Millisecond,
		LandingTTL:  10 * time.Minute,
	}, cache.WithClock(clock.Now))
	require.NoError(t, err)

	return &fixture{backend: backend, session: store, clock: clock, service: service}
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(logger.NewNopLogger(), nil, nil, nil)
	assert.ErrorIs(t, err, types.ErrCacheIsNil)
}

func TestListProperties_EndToEnd(t *testing.T) {
	f := newFixture(t, clienttest.JSON(200, `{"data":{"data":[{"id":1},{"id":2}],"total":2}}`))
	ctx := context.Background()
	query := PropertyQuery{ListingType: ListingTypeRent, Page: 1, Limit: 20}

	first := f.service.ListProperties(ctx, query)
	assert.False(t, first.FromCache)
	assert.Len(t, first.Items, 2)
	assert.Equal(t, 2, first.Total)
	assert.Equal(t, []string{
		"https://api.test/api/v1/properties/?limit=20&listing_status=APPROVED&listing_type=RENT&page=1",
	}, f.backend.URIs())

	f.clock.Advance(time.Second)
	second := f.service.ListProperties(ctx, query)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Items, second.Items)
	assert.Equal(t, 1, f.backend.Count())

	f.service.Invalidate("properties")
	third := f.service.ListProperties(ctx, query)
	assert.False(t, third.FromCache)
	assert.Equal(t, 2, f.backend.Count())
}

func TestListProperties_Expiry(t *testing.T) {
	f := newFixture(t, clienttest.JSON(200, `{"data":[]}`))
	ctx := context.Background()

	f.service.ListProperties(ctx, PropertyQuery{})
	f.clock.Advance(5 * time.Second)
	res := f.service.ListProperties(ctx, PropertyQuery{})

	assert.False(t, res.FromCache)
	assert.Equal(t, 2, f.backend.Count())
	assert.Equal(t, "listing_status=APPROVED", f.backend.Requests()[1].Query)
}

func TestListProperties_QueryReplacesCity(t *testing.T) {
	f := newFixture(t, clienttest.JSON(200, `[]`))
	minTotal := 1000.0

	f.service.ListProperties(context.Background(), PropertyQuery{City: "Tbilisi", Query: "sea view", MinTotal: &minTotal})

	requests := f.backend.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "listing_status=APPROVED&min_total=1000&q=sea+view", requests[0].Query)
}

func TestListProperties_FailureReturnsEmpty(t *testing.T) {
	f := newFixture(t, clienttest.JSON(500, `{"detail":"boom"}`))

	res := f.service.ListProperties(context.Background(), PropertyQuery{})
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0, f.service.Cache().Len())
}

func TestGetProperty(t *testing.T) {
	f := newFixture(t, clienttest.Routes(map[string]fasthttp.RequestHandler{
		"/api/v1/properties/42/": clienttest.JSON(200, `{"data":{"id":42,"title":"Flat"}}`),
	}))
	ctx := context.Background()

	res := f.service.GetProperty(ctx, "42")
	assert.Equal(t, map[string]any{"id": float64(42), "title": "Flat"}, res.Item)
	assert.False(t, res.FromCache)

	assert.True(t, f.service.GetProperty(ctx, "42").FromCache)
	assert.Nil(t, f.service.GetProperty(ctx, "7").Item)
	assert.Nil(t, f.service.GetProperty(ctx, " ").Item)
	assert.Equal(t, 2, f.backend.Count())
}

func TestGetUserProfile(t *testing.T) {
	routes := map[string]fasthttp.RequestHandler{
		"/api/v1/users/me/":       clienttest.JSON(200, `{"data":{"id":1,"role":"AGENT"}}`),
		"/api/v1/profile/agent/":  clienttest.JSON(200, `{"data":{"agency":"Acme"}}`),
		"/api/v1/profile/client/": clienttest.JSON(500, `{}`),
	}

	t.Run("agent", func(t *testing.T) {
		f := newFixture(t, clienttest.Routes(routes))
		f.session.SetRole(types.RoleAgent)

		res := f.service.GetUserProfile(context.Background())
		assert.Equal(t, types.RoleAgent, res.Role)
		assert.Equal(t, map[string]any{"id": float64(1), "role": "AGENT"}, res.User)
		assert.Equal(t, map[string]any{"agency": "Acme"}, res.RoleProfile)
	})

	t.Run("client profile fails", func(t *testing.T) {
		f := newFixture(t, clienttest.Routes(routes))
		f.session.SetRole(types.RoleClient)

		res := f.service.GetUserProfile(context.Background())
		assert.NotNil(t, res.User)
		assert.Nil(t, res.RoleProfile)

		paths := []string{}
		for _, r := range f.backend.Requests() {
			paths = append(paths, r.Path)
		}
		assert.ElementsMatch(t, []string{"/api/v1/users/me/", "/api/v1/profile/client/"}, paths)
	})

	t.Run("user fails", func(t *testing.T) {
		f := newFixture(t, clienttest.Routes(map[string]fasthttp.RequestHandler{
			"/api/v1/users/me/":      clienttest.JSON(503, `{}`),
			"/api/v1/profile/agent/": clienttest.JSON(200, `{"data":{"agency":"Acme"}}`),
		}))
		f.session.SetRole(types.RoleAgent)

		res := f.service.GetUserProfile(context.Background())
		assert.Nil(t, res.User)
		assert.Equal(t, map[string]any{"agency": "Acme"}, res.RoleProfile)
		assert.Equal(t, types.RoleAgent, res.Role)
		assert.Equal(t, 2, f.backend.Count())

		_, cached := f.service.Cache().Inspect("/api/v1/users/me/")
		assert.False(t, cached)
	})

	t.Run("no role", func(t *testing.T) {
		f := newFixture(t, clienttest.Routes(routes))

		res := f.service.GetUserProfile(context.Background())
		assert.NotNil(t, res.User)
		assert.Nil(t, res.RoleProfile)
		assert.Equal(t, 1, f.backend.Count())
	})
}

func TestListTransactions(t *testing.T) {
	f := newFixture(t, clienttest.JSON(200, `{"data":{"items":[{"id":"t1"}],"total":15}}`))

	res := f.service.ListTransactions(context.Background(), 2, 10)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, 15, res.Total)
	assert.Equal(t, "/api/v1/history/", f.backend.Requests()[0].Path)
	assert.Equal(t, "limit=10&page=2", f.backend.Requests()[0].Query)
}

func TestGetAnalytics(t *testing.T) {
	f := newFixture(t, clienttest.JSON(200, `{"data":{"views":12}}`))

	res := f.service.GetAnalytics(context.Background(), AnalyticsQuery{PeriodType: "month", Year: 2024})
	assert.Equal(t, map[string]any{"views": float64(12)}, res.Item)
	assert.Equal(t, "period_type=month&year=2024", f.backend.Requests()[0].Query)
}

func TestSearchProperties_Boundary(t *testing.T) {
	f := newFixture(t, clienttest.JSON(200, `{"data":[{"id":1}]}`))
	ctx := context.Background()

	for _, q := range []string{"", "a", "ä"} {
		res := f.service.SearchProperties(ctx, SearchQuery{Query: q})
		assert.Empty(t, res.Items)
		assert.NotNil(t, res.Items)
	}
	assert.Equal(t, 0, f.backend.Count())

	res := f.service.SearchProperties(ctx, SearchQuery{Query: "ab"})
	assert.Len(t, res.Items, 1)
	require.Equal(t, 1, f.backend.Count())
	assert.Equal(t, "limit=10&listing_status=APPROVED&q=ab", f.backend.Requests()[0].Query)
}

func TestPrefetchProperties(t *testing.T) {
	f := newFixture(t, clienttest.Routes(map[string]fasthttp.RequestHandler{
		"/api/v1/properties/1/": clienttest.JSON(200, `{"data":{"id":1}}`),
		"/api/v1/properties/2/": clienttest.JSON(200, `{"data":{"id":2}}`),
	}))
	ctx := context.Background()

	f.service.PrefetchProperties(ctx, []string{"1", "2", "3", "", "1"})

	assert.Equal(t, 2, f.service.Cache().Len())
	assert.LessOrEqual(t, f.backend.Count(), 4)

	before := f.backend.Count()
	assert.True(t, f.service.GetProperty(ctx, "1").FromCache)
	assert.True(t, f.service.GetProperty(ctx, "2").FromCache)
	assert.Equal(t, before, f.backend.Count())
}

func TestPrefetchProperties_AllInFlightTogether(t *testing.T) {
	const count = 20

	gate := make(chan struct{})
	release := sync.OnceFunc(func() { close(gate) })
	var inFlight, peak atomic.Int32

	f := newFixture(t, func(ctx *fasthttp.RequestCtx) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-gate
		inFlight.Add(-1)

		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"data":{"id":1}}`)
	})
	t.Cleanup(release)

	ids := make([]string, count)
	for i := range ids {
		ids[i] = strconv.Itoa(i + 1)
	}

	done := make(chan struct{})
	go func() {
		f.service.PrefetchProperties(context.Background(), ids)
		close(done)
	}()

	require.Eventually(t, func() bool { return peak.Load() == count }, 800*time.Millisecond, 2*time.Millisecond)
	release()
	<-done

	assert.Equal(t, count, f.service.Cache().Len())
	assert.Equal(t, count, f.backend.Count())
}

func TestPrefetchProperties_Empty(t *testing.T) {
	f := newFixture(t, clienttest.JSON(200, `{}`))
	f.service.PrefetchProperties(context.Background(), nil)
	assert.Equal(t, 0, f.backend.Count())
}

func TestLanding(t *testing.T) {
	f := newFixture(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("application/json")
		if string(ctx.QueryArgs().Peek("listing_type")) == ListingTypeSale {
			ctx.SetBodyString(`{"data":[{"id":"s1"},{"id":"s2"}]}`)
			return
		}
		ctx.SetBodyString(`{"data":[{"id":"r1"}]}`)
	})
	ctx := context.Background()

	res := f.service.Landing(ctx)
	assert.Len(t, res.Sale.Items, 2)
	assert.Len(t, res.Rent.Items, 1)
	assert.Equal(t, 2, f.service.LandingCache().Len())
	assert.Equal(t, 0, f.service.Cache().Len())

	for _, key := range LandingKeys() {
		_, ok := f.service.LandingCache().Inspect(key)
		assert.True(t, ok, key)
	}

	f.clock.Advance(9 * time.Minute)
	again := f.service.Landing(ctx)
	assert.True(t, again.Sale.FromCache)
	assert.True(t, again.Rent.FromCache)
	assert.Equal(t, 2, f.backend.Count())
}

func TestLandingKeys(t *testing.T) {
	assert.Equal(t, []string{
		"/api/v1/properties/?limit=6&listing_status=APPROVED&listing_type=SALE&page=1",
		"/api/v1/properties/?limit=6&listing_status=APPROVED&listing_type=RENT&page=1",
	}, LandingKeys())
}

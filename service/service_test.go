package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/estate-client/api"
	"github.com/saiset-co/estate-client/client"
	"github.com/saiset-co/estate-client/client/clienttest"
	"github.com/saiset-co/estate-client/config"
	"github.com/saiset-co/estate-client/logger"
	"github.com/saiset-co/estate-client/types"
)

func testConfig() *types.ServiceConfig {
	cfg := config.NewLoader().Defaults()
	cfg.Client.BaseURL = "https://api.test"
	cfg.Client.Timeout = time.Second
	cfg.Metrics.Enabled = true
	cfg.Session.Token = "t0ken"
	cfg.Session.Role = types.RoleAgent
	cfg.Warmers = &types.WarmersConfig{
		Enabled:  true,
		Timezone: "UTC",
		Jobs: []types.WarmerConfig{
			{Name: "landing", Schedule: "@every 1h", Landing: true},
			{Name: "hot", Schedule: "@every 1h", PropertyIDs: []string{"10"}},
		},
	}
	return cfg
}

func newTestService(t *testing.T) (*Service, *clienttest.Backend) {
	t.Helper()

	backend := clienttest.NewBackend(clienttest.Routes(map[string]fasthttp.RequestHandler{
		"/api/v1/properties/":     clienttest.JSON(200, `{"data":[{"id":1}]}`),
		"/api/v1/properties/10/":  clienttest.JSON(200, `{"data":{"id":10}}`),
		"/api/v1/users/me/":       clienttest.JSON(200, `{"data":{"id":7}}`),
		"/api/v1/profile/agent/":  clienttest.JSON(200, `{"data":{"agency":"A"}}`),
		"/api/v1/profile/client/": clienttest.JSON(200, `{"data":{"client":true}}`),
	}))
	t.Cleanup(backend.Close)

	manager, err := config.NewStaticManager(testConfig())
	require.NoError(t, err)

	svc, err := New(context.Background(), manager,
		WithLogger(logger.NewNopLogger()),
		WithClientOptions(client.WithDoer(backend.Doer())),
	)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	return svc, backend
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrConfigIsNil)
}

func TestNewService_MissingFile(t *testing.T) {
	_, err := NewService(context.Background(), "does-not-exist.yml")
	assert.ErrorIs(t, err, types.ErrConfigLoadFailed)
}

func TestService_Wiring(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()

	profile := svc.API().GetUserProfile(ctx)
	assert.Equal(t, map[string]any{"agency": "A"}, profile.RoleProfile)

	for _, req := range backend.Requests() {
		assert.Equal(t, "Bearer t0ken", req.Header("Authorization"))
	}

	require.Len(t, svc.Cron().Jobs(), 2)
	require.NoError(t, svc.Cron().RunAll(ctx))

	for _, key := range api.LandingKeys() {
		_, ok := svc.API().LandingCache().Inspect(key)
		assert.True(t, ok, key)
	}
	_, ok := svc.API().Cache().Inspect("/api/v1/properties/10/")
	assert.True(t, ok)

	values, err := svc.Metrics().GetMetrics()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, v := range values {
		names[v.Name] = true
	}
	assert.True(t, names["estate_client_cache_requests_total"])
	assert.True(t, names["estate_client_http_client_requests_total"])
	assert.True(t, names["estate_client_cron_job_executions_total"])
}

func TestService_RunUntilStopped(t *testing.T) {
	svc, _ := newTestService(t)

	done := make(chan error, 1)
	go func() {
		done <- svc.Run(context.Background())
	}()

	require.Eventually(t, svc.IsRunning, time.Second, 5*time.Millisecond)
	assert.True(t, svc.Cron().IsRunning())
	assert.ErrorIs(t, svc.Run(context.Background()), types.ErrServiceIsRunning)

	svc.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.False(t, svc.IsRunning())
	assert.False(t, svc.Cron().IsRunning())
}

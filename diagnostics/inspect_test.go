package diagnostics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/estate-client/cache"
	"github.com/saiset-co/estate-client/logger"
	"github.com/saiset-co/estate-client/types"
)

type staticRequester map[string]string

func (s staticRequester) Get(_ context.Context, path, _ string, _ *types.CallOptions) ([]byte, int, error) {
	if body, ok := s[path]; ok {
		return []byte(body), 200, nil
	}
	return nil, 404, &types.StatusError{StatusCode: 404, Path: path}
}

func TestInspect(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c, err := cache.New(logger.NewNopLogger(), staticRequester{
		"/list":   `{"data":{"data":[1,2,3]}}`,
		"/detail": `{"data":{"id":1}}`,
	}, cache.Config{Name: "landing", TTL: 10 * time.Minute}, cache.WithClock(clock))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Fetch(ctx, "/list", cache.FetchOptions{UseCache: true})
	require.NoError(t, err)
	_, err = c.Fetch(ctx, "/detail", cache.FetchOptions{UseCache: true})
	require.NoError(t, err)

	now = now.Add(4 * time.Minute)

	report := Inspect(c, []string{"/list", "/detail", "/missing"})
	assert.Equal(t, "landing", report.Bucket)
	assert.Equal(t, 2, report.Size)
	assert.Equal(t, 0, report.Pending)
	require.Len(t, report.Entries, 3)

	assert.Equal(t, KeyReport{Key: "/list", Present: true, Items: 3, Remaining: 6 * time.Minute}, report.Entries[0])
	assert.Equal(t, 1, report.Entries[1].Items)
	assert.Equal(t, KeyReport{Key: "/missing"}, report.Entries[2])

	out := report.String()
	assert.Contains(t, out, "bucket landing (ttl 10m0s): 2 entries, 0 pending")
	assert.Contains(t, out, "cached   /list items=3 remaining=6m0s")
	assert.Contains(t, out, "missing  /missing")

	now = now.Add(time.Hour)
	all := InspectAll(c)
	require.Len(t, all.Entries, 2)
	assert.Equal(t, "/detail", all.Entries[0].Key)
	assert.True(t, all.Entries[0].Expired)
	assert.Contains(t, all.String(), "expired  /detail items=1")
	assert.Equal(t, 2, c.Len())
}

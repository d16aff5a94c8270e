package services

import (
	"context"
	"testing"
	"time"

	"github.com/localnerve/minisitedb/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPointerCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryPointerCache(time.Minute)

	versionID := uint64(7)
	rec := &models.Minisite{ID: "m1", SiteVersion: 3, CurrentVersionID: &versionID, Geo: &models.GeoPoint{Lat: 1, Lng: 2}}
	gen, ok := cache.Generation(ctx, "m1")
	require.True(t, ok)
	cache.Fill(ctx, rec, gen)

	got, ok := cache.Get(ctx, "m1")
	require.True(t, ok)
	assert.Equal(t, uint64(3), got.SiteVersion)

	// Entries are copies in both directions
	got.Geo.Lat = 99
	*got.CurrentVersionID = 99
	rec.SiteVersion = 4
	again, ok := cache.Get(ctx, "m1")
	require.True(t, ok)
	assert.Equal(t, 1.0, again.Geo.Lat)
	assert.Equal(t, uint64(7), *again.CurrentVersionID)
	assert.Equal(t, uint64(3), again.SiteVersion)

	cache.Invalidate(ctx, "m1", "unknown")
	_, ok = cache.Get(ctx, "m1")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryPointerCacheExpiry(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryPointerCache(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Fill(ctx, &models.Minisite{ID: "m1"}, 0)
	_, ok := cache.Get(ctx, "m1")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get(ctx, "m1")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryPointerCacheSkipsFillAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryPointerCache(time.Minute)

	gen, ok := cache.Generation(ctx, "m1")
	require.True(t, ok)
	cache.Invalidate(ctx, "m1")
	cache.Fill(ctx, &models.Minisite{ID: "m1", Profile: models.Profile{Title: "loaded before the write"}}, gen)
	_, ok = cache.Get(ctx, "m1")
	assert.False(t, ok)

	next, _ := cache.Generation(ctx, "m1")
	assert.Equal(t, gen+1, next)
	cache.Fill(ctx, &models.Minisite{ID: "m1", Profile: models.Profile{Title: "fresh"}}, next)
	got, ok := cache.Get(ctx, "m1")
	require.True(t, ok)
	assert.Equal(t, "fresh", got.Title)

	// other ids keep their own generation
	other, _ := cache.Generation(ctx, "m2")
	assert.Zero(t, other)
}

func TestNewMemoryPointerCacheDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultCacheTTL, NewMemoryPointerCache(0).ttl)
	assert.Equal(t, DefaultCacheTTL, NewRedisPointerCache(nil, -1).ttl)
}

func TestRedisPointerCacheWithoutClient(t *testing.T) {
	ctx := context.Background()
	cache := NewRedisPointerCache(nil, time.Minute)

	assert.False(t, cache.IsAvailable())
	assert.Error(t, cache.Ping(ctx))

	_, ok := cache.Generation(ctx, "m1")
	assert.False(t, ok)
	cache.Fill(ctx, &models.Minisite{ID: "m1"}, 0)
	_, ok = cache.Get(ctx, "m1")
	assert.False(t, ok)
	cache.Invalidate(ctx, "m1")
	assert.Equal(t, "minisite:m1", cache.key("m1"))
	assert.Equal(t, "minisite-gen:m1", cache.genKey("m1"))
}

func TestNewRedisClient(t *testing.T) {
	client, err := NewRedisClient("redis://localhost:6379/2")
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, 2, client.Options().DB)

	_, err = NewRedisClient("not a url")
	assert.Error(t, err)
}

func TestNopPointerCache(t *testing.T) {
	var cache PointerCache = NopPointerCache{}
	_, ok := cache.Generation(context.Background(), "m1")
	assert.False(t, ok)
	cache.Fill(context.Background(), &models.Minisite{ID: "m1"}, 0)
	_, ok = cache.Get(context.Background(), "m1")
	assert.False(t, ok)
}

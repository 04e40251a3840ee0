package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/supplyengine/internal/config"
	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/policy"
	"github.com/andresuchdata/supplyengine/internal/engine/spike"
)

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisHost: "cache", RedisPort: "6380", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = buildRedisOptions(config.CacheConfig{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)

	opts, err = buildRedisOptions(config.CacheConfig{RedisURL: "redis://:secret@redis.internal:6379/3"})
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "http://nope"})
	assert.Error(t, err)
}

func TestPolicyCurveHash(t *testing.T) {
	base := CurveKey{
		Profile:     domain.DefaultPolicy().WithCategoryServiceLevel(domain.CategoryMilk, 0.99).WithCategoryServiceLevel(domain.CategoryCups, 0.9),
		SnapshotTag: "v1",
	}
	same := CurveKey{
		Profile:     domain.DefaultPolicy().WithCategoryServiceLevel(domain.CategoryCups, 0.9).WithCategoryServiceLevel(domain.CategoryMilk, 0.99),
		Grid:        policy.DefaultGrid(),
		SnapshotTag: "v1",
	}
	assert.Equal(t, policyCurveHash(base), policyCurveHash(same), "override order and default grid do not matter")

	changed := []CurveKey{
		{Profile: base.Profile.WithBufferPct(10), SnapshotTag: "v1"},
		{Profile: base.Profile, SnapshotTag: "v2"},
		{Profile: base.Profile, SnapshotTag: "v1", Grid: []float64{0.9, 0.95}},
		{Profile: base.Profile.WithCategoryServiceLevel(domain.CategoryMilk, 0.98), SnapshotTag: "v1"},
	}
	for _, k := range changed {
		assert.NotEqual(t, policyCurveHash(base), policyCurveHash(k))
	}
	assert.Contains(t, buildPolicyCurveKey(base), "policy:curve:")
}

func TestNoopPolicyCurveCache(t *testing.T) {
	c := NewPolicyCurveCache(nil, 0)
	ctx := context.Background()

	require.NoError(t, c.SetCurve(ctx, CurveKey{}, []policy.CurvePoint{{ServiceLevel: 0.9}}))
	_, ok, err := c.GetCurve(ctx, CurveKey{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.InvalidateAll(ctx))
}

func TestBaselineEncoding(t *testing.T) {
	in := map[domain.PairKey]float64{
		{LocationID: "downtown", ItemID: "milk"}: 5.25,
		{LocationID: "harbor", ItemID: "cups"}:   0.1,
	}
	raw := make(map[string]string)
	for k, v := range encodeBaselines(in) {
		raw[k] = v.(string)
	}
	raw["garbage"] = "1"
	raw["downtown|beans"] = "not-a-number"

	assert.Equal(t, in, decodeBaselines(raw))
}

func TestNewBaselineStore_FallsBackToMemory(t *testing.T) {
	store := NewBaselineStore(nil, "")
	_, ok := store.(*spike.MemoryBaselineStore)
	assert.True(t, ok)
}

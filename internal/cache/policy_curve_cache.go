package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/policy"
)

const (
	policyCurveKeyPrefix = "policy:curve"
	curveScanBatchSize   = 100
)

// CurveKey identifies a computed curve: the draft profile, the grid and the
// snapshot it was computed against.
type CurveKey struct {
	Profile     domain.PolicyProfile
	Grid        []float64
	SnapshotTag string
}

type PolicyCurveCache interface {
	GetCurve(ctx context.Context, key CurveKey) ([]policy.CurvePoint, bool, error)
	SetCurve(ctx context.Context, key CurveKey, points []policy.CurvePoint) error
	InvalidateAll(ctx context.Context) error
}

type redisPolicyCurveCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopPolicyCurveCache struct{}

func NewPolicyCurveCache(client *redis.Client, ttl time.Duration) PolicyCurveCache {
	if client == nil {
		return &noopPolicyCurveCache{}
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisPolicyCurveCache{client: client, ttl: ttl}
}

func NewNoopPolicyCurveCache() PolicyCurveCache {
	return &noopPolicyCurveCache{}
}

func (c *redisPolicyCurveCache) GetCurve(ctx context.Context, key CurveKey) ([]policy.CurvePoint, bool, error) {
	payload, err := c.client.Get(ctx, buildPolicyCurveKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var points []policy.CurvePoint
	if err := json.Unmarshal(payload, &points); err != nil {
		return nil, false, fmt.Errorf("decode policy curve cache: %w", err)
	}
	return points, true, nil
}

func (c *redisPolicyCurveCache) SetCurve(ctx context.Context, key CurveKey, points []policy.CurvePoint) error {
	payload, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("encode policy curve cache: %w", err)
	}
	if err := c.client.Set(ctx, buildPolicyCurveKey(key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisPolicyCurveCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, policyCurveKeyPrefix, curveScanBatchSize)
}

func (n *noopPolicyCurveCache) GetCurve(context.Context, CurveKey) ([]policy.CurvePoint, bool, error) {
	return nil, false, nil
}

func (n *noopPolicyCurveCache) SetCurve(context.Context, CurveKey, []policy.CurvePoint) error {
	return nil
}

func (n *noopPolicyCurveCache) InvalidateAll(context.Context) error {
	return nil
}

func buildPolicyCurveKey(key CurveKey) string {
	return fmt.Sprintf("%s:%s", policyCurveKeyPrefix, policyCurveHash(key))
}

func policyCurveHash(key CurveKey) string {
	p := key.Profile
	parts := []string{
		"snapshot=" + strings.TrimSpace(key.SnapshotTag),
		"service_level=" + formatFloat(p.GlobalServiceLevel),
		"buffer_pct=" + formatFloat(p.SafetyStockBufferPct),
		"holding_cost_rate=" + formatFloat(p.HoldingCostRate),
		"auto_transfer=" + formatFloat(p.AutoTransferThreshold),
	}

	if len(p.CategoryServiceLevels) > 0 {
		overrides := make([]string, 0, len(p.CategoryServiceLevels))
		for c, sl := range p.CategoryServiceLevels {
			overrides = append(overrides, string(c)+"="+formatFloat(sl))
		}
		sort.Strings(overrides)
		parts = append(parts, "categories="+strings.Join(overrides, ","))
	}

	grid := key.Grid
	if len(grid) == 0 {
		grid = policy.DefaultGrid()
	}
	levels := make([]string, len(grid))
	for i, sl := range grid {
		levels[i] = formatFloat(sl)
	}
	parts = append(parts, "grid="+strings.Join(levels, ","))

	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

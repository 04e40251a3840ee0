package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/spike"
)

const defaultBaselineKey = "spike:baseline"

// RedisBaselineStore keeps the spike detector's baselines in one redis hash
// keyed by "location|item". Commit swaps the whole hash in a MULTI block so
// readers never observe half a pass.
type RedisBaselineStore struct {
	client *redis.Client
	key    string
}

var _ spike.BaselineStore = (*RedisBaselineStore)(nil)

func NewRedisBaselineStore(client *redis.Client, key string) *RedisBaselineStore {
	if key == "" {
		key = defaultBaselineKey
	}
	return &RedisBaselineStore{client: client, key: key}
}

// NewBaselineStore returns the redis store when a client is configured and
// an in-memory store otherwise.
func NewBaselineStore(client *redis.Client, key string) spike.BaselineStore {
	if client == nil {
		return spike.NewMemoryBaselineStore(nil)
	}
	return NewRedisBaselineStore(client, key)
}

func (s *RedisBaselineStore) Load(ctx context.Context) (map[domain.PairKey]float64, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	return decodeBaselines(raw), nil
}

func (s *RedisBaselineStore) Commit(ctx context.Context, baselines map[domain.PairKey]float64) error {
	fields := encodeBaselines(baselines)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key)
	if len(fields) > 0 {
		pipe.HSet(ctx, s.key, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis baseline commit failed: %w", err)
	}
	return nil
}

func encodeBaselines(baselines map[domain.PairKey]float64) map[string]any {
	fields := make(map[string]any, len(baselines))
	for k, v := range baselines {
		fields[k.String()] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fields
}

func decodeBaselines(raw map[string]string) map[domain.PairKey]float64 {
	out := make(map[domain.PairKey]float64, len(raw))
	for field, value := range raw {
		key, ok := domain.ParsePairKey(field)
		if !ok {
			log.Warn().Str("field", field).Msg("skipping malformed baseline field")
			continue
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Warn().Str("field", field).Str("value", value).Msg("skipping malformed baseline value")
			continue
		}
		out[key] = v
	}
	return out
}

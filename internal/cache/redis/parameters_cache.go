package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/burnable-tech/DAIHard/internal/domain"
)

const defaultParamsTTL = 24 * time.Hour

// ParametersCache implements domain.ParametersCache with one JSON string per
// trade contract.
//
// Amounts are stored already scaled, so the token decimals are part of the
// key. Key schema:
//
//	daihard:params:{decimals}:{lowercase address}
type ParametersCache struct {
	rdb      *redis.Client
	ttl      time.Duration
	decimals int32
}

// NewParametersCache creates a cache for amounts scaled by decimals whose
// entries expire after ttl. A zero ttl falls back to 24h.
func NewParametersCache(c *Client, decimals int32, ttl time.Duration) *ParametersCache {
	if ttl <= 0 {
		ttl = defaultParamsTTL
	}
	return &ParametersCache{rdb: c.Underlying(), ttl: ttl, decimals: decimals}
}

func paramsKey(decimals int32, addr common.Address) string {
	return fmt.Sprintf("daihard:params:%d:%s", decimals, strings.ToLower(addr.Hex()))
}

func (pc *ParametersCache) key(addr common.Address) string {
	return paramsKey(pc.decimals, addr)
}

// GetParameters returns domain.ErrNotFound on a miss.
func (pc *ParametersCache) GetParameters(ctx context.Context, addr common.Address) (domain.Parameters, error) {
	data, err := pc.rdb.Get(ctx, pc.key(addr)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Parameters{}, domain.ErrNotFound
		}
		return domain.Parameters{}, fmt.Errorf("redis: get params %s: %w", addr.Hex(), err)
	}
	return decodeParameters(addr, data)
}

func (pc *ParametersCache) SetParameters(ctx context.Context, addr common.Address, params domain.Parameters) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("redis: marshal params %s: %w", addr.Hex(), err)
	}
	if err := pc.rdb.Set(ctx, pc.key(addr), data, pc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set params %s: %w", addr.Hex(), err)
	}
	return nil
}

func decodeParameters(addr common.Address, data []byte) (domain.Parameters, error) {
	var params domain.Parameters
	if err := json.Unmarshal(data, &params); err != nil {
		return domain.Parameters{}, fmt.Errorf("redis: unmarshal params %s: %w", addr.Hex(), err)
	}
	return params, nil
}

var _ domain.ParametersCache = (*ParametersCache)(nil)

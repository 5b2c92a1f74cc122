package chain

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/burnable-tech/DAIHard/internal/domain"
)

// CachedReader serves trade parameters from a cache. Parameters never change
// for a given trade address, so entries are never invalidated. Cache errors
// are logged and the read falls through to the wrapped reader.
type CachedReader struct {
	inner  Reader
	cache  domain.ParametersCache
	logger *slog.Logger
}

func NewCachedReader(inner Reader, cache domain.ParametersCache, logger *slog.Logger) *CachedReader {
	return &CachedReader{
		inner:  inner,
		cache:  cache,
		logger: logger.With(slog.String("component", "chain_cache")),
	}
}

func (r *CachedReader) Parameters(ctx context.Context, trade common.Address) (domain.Parameters, error) {
	p, err := r.cache.GetParameters(ctx, trade)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		r.logger.Warn("parameters cache read failed", slog.String("trade", trade.Hex()), slog.String("error", err.Error()))
	}

	p, err = r.inner.Parameters(ctx, trade)
	if err != nil {
		return domain.Parameters{}, err
	}
	if err := r.cache.SetParameters(ctx, trade, p); err != nil {
		r.logger.Warn("parameters cache write failed", slog.String("trade", trade.Hex()), slog.String("error", err.Error()))
	}
	return p, nil
}

func (r *CachedReader) TotalCount(ctx context.Context, factory common.Address) (*big.Int, error) {
	return r.inner.TotalCount(ctx, factory)
}

func (r *CachedReader) CreationInfo(ctx context.Context, factory common.Address, id int) (domain.CreationInfo, error) {
	return r.inner.CreationInfo(ctx, factory, id)
}

func (r *CachedReader) State(ctx context.Context, trade common.Address) (domain.State, error) {
	return r.inner.State(ctx, trade)
}

func (r *CachedReader) EventLogs(ctx context.Context, trade common.Address, topic common.Hash, fromBlock uint64) ([]types.Log, error) {
	return r.inner.EventLogs(ctx, trade, topic, fromBlock)
}

package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burnable-tech/DAIHard/internal/domain"
)

type memCache struct {
	entries map[common.Address]domain.Parameters
	getErr  error
}

func (m *memCache) GetParameters(_ context.Context, addr common.Address) (domain.Parameters, error) {
	if m.getErr != nil {
		return domain.Parameters{}, m.getErr
	}
	p, ok := m.entries[addr]
	if !ok {
		return domain.Parameters{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memCache) SetParameters(_ context.Context, addr common.Address, p domain.Parameters) error {
	m.entries[addr] = p
	return nil
}

func TestCachedReader_ServesFromCacheAfterFirstRead(t *testing.T) {
	f := newFakeCaller()
	setParameters(t, f, "USD100")
	cache := &memCache{entries: map[common.Address]domain.Parameters{}}
	r := NewCachedReader(testClient(f), cache, slog.New(slog.NewTextHandler(io.Discard, nil)))

	first, err := r.Parameters(context.Background(), tradeAddr)
	require.NoError(t, err)
	second, err := r.Parameters(context.Background(), tradeAddr)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.calls["getParameters"])
	assert.Contains(t, cache.entries, tradeAddr)
}

func TestCachedReader_FallsThroughOnCacheError(t *testing.T) {
	f := newFakeCaller()
	setParameters(t, f, "USD100")
	cache := &memCache{entries: map[common.Address]domain.Parameters{}, getErr: errors.New("connection refused")}
	r := NewCachedReader(testClient(f), cache, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := r.Parameters(context.Background(), tradeAddr)
	require.NoError(t, err)
	_, err = r.Parameters(context.Background(), tradeAddr)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls["getParameters"])
}

package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// ParametersCache keeps trade parameters by contract address. Parameters never
// change after creation, so entries never need invalidating.
type ParametersCache interface {
	GetParameters(ctx context.Context, addr common.Address) (Parameters, error)
	SetParameters(ctx context.Context, addr common.Address, params Parameters) error
}

// Publisher fans a payload out to everyone listening on channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// SignalBus provides pub/sub between processes.
type SignalBus interface {
	Publisher
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Package chain reads DAIHard factory and trade contracts over JSON-RPC.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/burnable-tech/DAIHard/internal/domain"
)

// ContractCaller is the subset of *ethclient.Client the reader needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Reader is the read interface consumed by the aggregator.
type Reader interface {
	TotalCount(ctx context.Context, factory common.Address) (*big.Int, error)
	CreationInfo(ctx context.Context, factory common.Address, id int) (domain.CreationInfo, error)
	Parameters(ctx context.Context, trade common.Address) (domain.Parameters, error)
	State(ctx context.Context, trade common.Address) (domain.State, error)
	EventLogs(ctx context.Context, trade common.Address, topic common.Hash, fromBlock uint64) ([]types.Log, error)
}

// Options configures a Client.
type Options struct {
	TokenDecimals  int32
	RequestsPerSec float64
	Burst          int
	CallTimeout    time.Duration
}

// Client issues rate-limited eth_call and eth_getLogs requests.
type Client struct {
	caller   ContractCaller
	limiter  *rate.Limiter
	decimals int32
	timeout  time.Duration
	logger   *slog.Logger
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}
	return c, nil
}

// New wraps caller. A non-positive RequestsPerSec disables rate limiting.
func New(caller ContractCaller, opts Options, logger *slog.Logger) *Client {
	limit := rate.Inf
	if opts.RequestsPerSec > 0 {
		limit = rate.Limit(opts.RequestsPerSec)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		caller:   caller,
		limiter:  rate.NewLimiter(limit, burst),
		decimals: opts.TokenDecimals,
		timeout:  opts.CallTimeout,
		logger:   logger.With(slog.String("component", "chain")),
	}
}

func (c *Client) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

// TotalCount returns the number of trades the factory has created.
func (c *Client) TotalCount(ctx context.Context, factory common.Address) (*big.Int, error) {
	callData, err := factoryABI.Pack("getNumTrades")
	if err != nil {
		return nil, fmt.Errorf("chain: pack getNumTrades: %w", err)
	}
	result, err := c.call(ctx, factory, callData)
	if err != nil {
		return nil, fmt.Errorf("chain: getNumTrades: %w", err)
	}
	vals, err := factoryABI.Unpack("getNumTrades", result)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("chain: unpack getNumTrades: %w", err)
	}
	n, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: getNumTrades returned %T", vals[0])
	}
	return n, nil
}

// CreationInfo returns the address and deployment block of trade id.
func (c *Client) CreationInfo(ctx context.Context, factory common.Address, id int) (domain.CreationInfo, error) {
	callData, err := factoryABI.Pack("createdTrades", big.NewInt(int64(id)))
	if err != nil {
		return domain.CreationInfo{}, fmt.Errorf("chain: pack createdTrades: %w", err)
	}
	result, err := c.call(ctx, factory, callData)
	if err != nil {
		return domain.CreationInfo{}, fmt.Errorf("chain: createdTrades(%d): %w", id, err)
	}
	var raw rawCreation
	if err := factoryABI.UnpackIntoInterface(&raw, "createdTrades", result); err != nil {
		return domain.CreationInfo{}, fmt.Errorf("chain: unpack createdTrades(%d): %w", id, err)
	}
	if raw.Blocknum == nil || !raw.Blocknum.IsUint64() {
		return domain.CreationInfo{}, fmt.Errorf("chain: createdTrades(%d): block %v out of range", id, raw.Blocknum)
	}
	return domain.CreationInfo{Address: raw.TradeAddress, BlockNumber: raw.Blocknum.Uint64()}, nil
}

// Parameters reads the immutable creation parameters of a trade.
func (c *Client) Parameters(ctx context.Context, trade common.Address) (domain.Parameters, error) {
	callData, err := tradeABI.Pack("getParameters")
	if err != nil {
		return domain.Parameters{}, fmt.Errorf("chain: pack getParameters: %w", err)
	}
	result, err := c.call(ctx, trade, callData)
	if err != nil {
		return domain.Parameters{}, fmt.Errorf("chain: getParameters %s: %w", trade.Hex(), err)
	}
	var raw rawParameters
	if err := tradeABI.UnpackIntoInterface(&raw, "getParameters", result); err != nil {
		return domain.Parameters{}, fmt.Errorf("chain: unpack getParameters %s: %w", trade.Hex(), err)
	}
	p, err := raw.toDomain(c.decimals)
	if err != nil {
		return domain.Parameters{}, fmt.Errorf("chain: parameters %s: %w", trade.Hex(), err)
	}
	return p, nil
}

// State reads the live state of a trade.
func (c *Client) State(ctx context.Context, trade common.Address) (domain.State, error) {
	callData, err := tradeABI.Pack("getState")
	if err != nil {
		return domain.State{}, fmt.Errorf("chain: pack getState: %w", err)
	}
	result, err := c.call(ctx, trade, callData)
	if err != nil {
		return domain.State{}, fmt.Errorf("chain: getState %s: %w", trade.Hex(), err)
	}
	var raw rawState
	if err := tradeABI.UnpackIntoInterface(&raw, "getState", result); err != nil {
		return domain.State{}, fmt.Errorf("chain: unpack getState %s: %w", trade.Hex(), err)
	}
	s, err := raw.toDomain(c.decimals)
	if err != nil {
		return domain.State{}, fmt.Errorf("chain: state %s: %w", trade.Hex(), err)
	}
	return s, nil
}

// EventLogs returns every log of the trade contract whose first topic is
// topic, starting at fromBlock.
func (c *Client) EventLogs(ctx context.Context, trade common.Address, topic common.Hash, fromBlock uint64) ([]types.Log, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	logs, err := c.caller.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{trade},
		Topics:    [][]common.Hash{{topic}},
	})
	if err != nil {
		return nil, fmt.Errorf("chain: logs %s %s: %w", trade.Hex(), topic.Hex(), err)
	}
	c.logger.Debug("fetched logs",
		slog.String("trade", trade.Hex()),
		slog.String("topic", topic.Hex()),
		slog.Int("count", len(logs)),
	)
	return logs, nil
}

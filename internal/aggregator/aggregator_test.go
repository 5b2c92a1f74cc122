package aggregator

import (
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burnable-tech/DAIHard/internal/chain/events"
	"github.com/burnable-tech/DAIHard/internal/domain"
)

var (
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	responder   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	phaseStart  = time.Unix(1_600_000_000, 0).UTC()
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tradeAddr(id int) common.Address {
	return common.BigToAddress(big.NewInt(int64(0xa000 + id)))
}

func mustType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return ty
}

func openedLog(t *testing.T, methods, pubkey string) types.Log {
	t.Helper()
	args := abi.Arguments{{Type: mustType("string")}, {Type: mustType("string")}}
	data, err := args.Pack(methods, pubkey)
	require.NoError(t, err)
	return types.Log{Topics: []common.Hash{events.MustTopic("Opened")}, Data: data}
}

func committedLog(t *testing.T, who common.Address, pubkey string) types.Log {
	t.Helper()
	args := abi.Arguments{{Type: mustType("address")}, {Type: mustType("string")}}
	data, err := args.Pack(who, pubkey)
	require.NoError(t, err)
	return types.Log{Topics: []common.Hash{events.MustTopic("Committed")}, Data: data}
}

func params() domain.Parameters {
	return domain.Parameters{
		OpenMode:            domain.SellerOpened,
		TradeAmount:         decimal.NewFromInt(100),
		FiatPrice:           domain.FiatValue{Currency: "USD", Amount: decimal.NewFromInt(102)},
		AutorecallInterval:  time.Hour,
		AutoabortInterval:   2 * time.Hour,
		AutoreleaseInterval: 3 * time.Hour,
		BuyerDeposit:        decimal.NewFromInt(30),
		PokeReward:          decimal.NewFromInt(1),
	}
}

func state(phase domain.Phase) domain.State {
	return domain.State{Balance: decimal.NewFromInt(130), Phase: phase, PhaseStartTime: phaseStart}
}

func newAgg(t *testing.T, n int) *Aggregator {
	t.Helper()
	a, initial := New(Config{Factory: factoryAddr}, discard())
	require.Equal(t, []Request{TotalCountRequest{}}, initial)
	reqs := a.Apply(TotalCountResult{Count: big.NewInt(int64(n))})
	require.Len(t, reqs, n)
	return a
}

// load drives slot id through every fetch and returns the requests the last
// step produced.
func load(t *testing.T, a *Aggregator, id int) []Request {
	t.Helper()
	info := domain.CreationInfo{Address: tradeAddr(id), BlockNumber: uint64(100 + id)}
	a.Apply(CreationInfoResult{ID: id, Info: info})
	a.Apply(ParametersResult{ID: id, Parameters: params()})
	a.Apply(OpenedResult{ID: id, Logs: []types.Log{openedLog(t, `[{"type":"bank","info":"bank transfer"}]`, "init-key")}})
	reqs := a.Apply(StateResult{ID: id, State: state(domain.PhaseOpen)})
	require.True(t, a.Trades()[id].IsLoaded())
	return reqs
}

func TestOnTotalCount_AllocatesStubs(t *testing.T) {
	a, _ := New(Config{Factory: factoryAddr}, discard())
	reqs := a.Apply(TotalCountResult{Count: big.NewInt(3)})

	assert.Equal(t, []Request{CreationInfoRequest{ID: 0}, CreationInfoRequest{ID: 1}, CreationInfoRequest{ID: 2}}, reqs)
	trades := a.Trades()
	require.Len(t, trades, 3)
	for i, tr := range trades {
		assert.Equal(t, i, tr.TradeID())
		assert.False(t, tr.IsLoaded())
	}
	assert.Equal(t, Progress{Total: 3, Loaded: 0, CountKnown: true}, a.Progress())
}

func TestOnTotalCount_UnusableCountLeavesCollectionEmpty(t *testing.T) {
	for name, count := range map[string]*big.Int{
		"nil":      nil,
		"negative": big.NewInt(-1),
		"huge":     new(big.Int).Lsh(big.NewInt(1), 80),
	} {
		t.Run(name, func(t *testing.T) {
			a, _ := New(Config{}, discard())
			assert.Empty(t, a.Apply(TotalCountResult{Count: count}))
			assert.Empty(t, a.Trades())
			assert.False(t, a.Progress().CountKnown)
		})
	}

	a, _ := New(Config{}, discard())
	assert.Empty(t, a.Apply(TotalCountResult{Err: errors.New("timeout")}))
	assert.False(t, a.Progress().CountKnown)
}

func TestOnTotalCount_SecondResolutionIgnored(t *testing.T) {
	a := newAgg(t, 2)
	assert.Empty(t, a.Apply(TotalCountResult{Count: big.NewInt(5)}))
	assert.Len(t, a.Trades(), 2)
}

func TestOnCreationInfo_FansOut(t *testing.T) {
	a := newAgg(t, 2)
	info := domain.CreationInfo{Address: tradeAddr(1), BlockNumber: 77}

	reqs := a.Apply(CreationInfoResult{ID: 1, Info: info})
	assert.ElementsMatch(t, []Request{
		ParametersRequest{ID: 1, Address: info.Address},
		StateRequest{ID: 1, Address: info.Address},
		OpenedRequest{ID: 1, Address: info.Address, FromBlock: 77},
	}, reqs)
	assert.Equal(t, &info, a.Trades()[1].(domain.PartialTrade).CreationInfo)
}

func TestLoad_OrderIndependent(t *testing.T) {
	info := domain.CreationInfo{Address: tradeAddr(0), BlockNumber: 10}
	results := []Result{
		StateResult{ID: 0, State: state(domain.PhaseOpen)},
		OpenedResult{ID: 0, Logs: []types.Log{openedLog(t, `[]`, "k")}},
		ParametersResult{ID: 0, Parameters: params()},
		CreationInfoResult{ID: 0, Info: info},
	}
	for _, order := range [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}} {
		a := newAgg(t, 1)
		for i, idx := range order {
			a.Apply(results[idx])
			if i < len(order)-1 {
				assert.False(t, a.Trades()[0].IsLoaded(), "order %v step %d", order, i)
			}
		}
		lt, ok := a.Trades()[0].(domain.LoadedTrade)
		require.True(t, ok, "order %v", order)
		assert.Equal(t, phaseStart.Add(time.Hour), lt.Derived.PhaseEndTime)
		assert.Equal(t, domain.PartialCommInfo{InitiatorPubkey: strPtr("k")}, lt.CommInfo)
		assert.Equal(t, Progress{Total: 1, Loaded: 1, CountKnown: true}, a.Progress())
	}
}

func TestLoadedTrade_IgnoresImmutableUpdates(t *testing.T) {
	a := newAgg(t, 1)
	load(t, a, 0)
	before := a.Trades()[0]

	other := params()
	other.TradeAmount = decimal.NewFromInt(1)
	assert.Empty(t, a.Apply(ParametersResult{ID: 0, Parameters: other}))
	assert.Empty(t, a.Apply(CreationInfoResult{ID: 0, Info: domain.CreationInfo{BlockNumber: 1}}))
	assert.Empty(t, a.Apply(OpenedResult{ID: 0, Logs: []types.Log{openedLog(t, `[]`, "other")}}))

	assert.Equal(t, before, a.Trades()[0])
}

func TestFetchFailure_StallsSlot(t *testing.T) {
	a := newAgg(t, 2)
	load(t, a, 0)

	info := domain.CreationInfo{Address: tradeAddr(1), BlockNumber: 5}
	a.Apply(CreationInfoResult{ID: 1, Info: info})
	a.Apply(ParametersResult{ID: 1, Err: errors.New("execution reverted")})
	a.Apply(StateResult{ID: 1, State: state(domain.PhaseOpen)})
	a.Apply(OpenedResult{ID: 1, Logs: []types.Log{openedLog(t, `[]`, "k")}})

	assert.False(t, a.Trades()[1].IsLoaded())
	assert.Equal(t, Progress{Total: 2, Loaded: 1, CountKnown: true}, a.Progress())
	assert.Equal(t, []Request{StateRequest{ID: 0, Address: tradeAddr(0)}}, a.Refresh())
}

func TestOpenedLogs_MissingEventLeavesSlotPartial(t *testing.T) {
	a := newAgg(t, 1)
	a.Apply(CreationInfoResult{ID: 0, Info: domain.CreationInfo{Address: tradeAddr(0)}})
	a.Apply(ParametersResult{ID: 0, Parameters: params()})
	a.Apply(StateResult{ID: 0, State: state(domain.PhaseOpen)})
	a.Apply(OpenedResult{ID: 0, Logs: nil})

	assert.False(t, a.Trades()[0].IsLoaded())
}

func TestOpenedLogs_UndecodableMethodsStillLoad(t *testing.T) {
	a := newAgg(t, 1)
	a.Apply(CreationInfoResult{ID: 0, Info: domain.CreationInfo{Address: tradeAddr(0)}})
	a.Apply(ParametersResult{ID: 0, Parameters: params()})
	a.Apply(StateResult{ID: 0, State: state(domain.PhaseOpen)})
	a.Apply(OpenedResult{ID: 0, Logs: []types.Log{openedLog(t, "cash only, downtown", "k")}})

	lt, ok := a.Trades()[0].(domain.LoadedTrade)
	require.True(t, ok)
	assert.False(t, lt.PaymentMethods.Decoded())
	assert.Equal(t, "cash only, downtown", lt.PaymentMethods.Raw)
}

func TestRefresh_UpdatesStateAndDerivedValues(t *testing.T) {
	a := newAgg(t, 1)
	load(t, a, 0)

	s := state(domain.PhaseClaimed)
	s.PhaseStartTime = phaseStart.Add(time.Minute)
	a.Apply(StateResult{ID: 0, State: s})

	lt := a.Trades()[0].(domain.LoadedTrade)
	assert.Equal(t, domain.PhaseClaimed, lt.State.Phase)
	assert.Equal(t, s.PhaseStartTime.Add(3*time.Hour), lt.Derived.PhaseEndTime)
}

func TestResponder_TriggersSingleCommittedFetch(t *testing.T) {
	a := newAgg(t, 1)
	reqs := load(t, a, 0)
	assert.Empty(t, reqs)

	s := state(domain.PhaseCommitted)
	s.Responder = &responder
	reqs = a.Apply(StateResult{ID: 0, State: s})
	assert.Equal(t, []Request{CommittedRequest{ID: 0, Address: tradeAddr(0), FromBlock: 100}}, reqs)

	assert.Empty(t, a.Apply(StateResult{ID: 0, State: s}))

	a.Apply(CommittedResult{ID: 0, Logs: []types.Log{committedLog(t, responder, "resp-key")}})
	lt := a.Trades()[0].(domain.LoadedTrade)
	assert.Equal(t, domain.LoadedCommInfo{InitiatorPubkey: "init-key", ResponderPubkey: "resp-key"}, lt.CommInfo)
}

func TestOutOfRangeResultsIgnored(t *testing.T) {
	a := newAgg(t, 1)
	assert.Empty(t, a.Apply(StateResult{ID: 4, State: state(domain.PhaseOpen)}))
	assert.Empty(t, a.Apply(CreationInfoResult{ID: -1}))
	assert.Len(t, a.Trades(), 1)
}

func TestLoaded_InIDOrder(t *testing.T) {
	a := newAgg(t, 3)
	load(t, a, 2)
	load(t, a, 0)

	loaded := a.Loaded()
	require.Len(t, loaded, 2)
	assert.Equal(t, 0, loaded[0].ID)
	assert.Equal(t, 2, loaded[1].ID)
}

func strPtr(s string) *string { return &s }

package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Unix(1_600_000_000, 0).UTC()

func testParams() Parameters {
	return Parameters{
		OpenMode:            SellerOpened,
		TradeAmount:         decimal.NewFromInt(100),
		FiatPrice:           FiatValue{Currency: "USD", Amount: decimal.NewFromInt(105)},
		AutorecallInterval:  2 * time.Hour,
		AutoabortInterval:   3 * time.Hour,
		AutoreleaseInterval: 4 * time.Hour,
		Initiator:           common.HexToAddress("0x01"),
		BuyerDeposit:        decimal.NewFromInt(33),
		PokeReward:          decimal.NewFromInt(1),
	}
}

func testState(phase Phase) State {
	return State{Balance: decimal.NewFromInt(133), Phase: phase, PhaseStartTime: start}
}

func testInfo() CreationInfo {
	return CreationInfo{Address: common.HexToAddress("0xabc"), BlockNumber: 7}
}

func testMethods() PaymentMethods {
	return DecodePaymentMethods(`[{"type":"bank","info":"bank transfer"}]`)
}

type step func(Trade) (Trade, error)

func TestPromote_LoadedOnlyWhenAllFourPresent(t *testing.T) {
	steps := map[string]step{
		"creation": func(tr Trade) (Trade, error) { return WithCreationInfo(tr, testInfo()) },
		"params":   func(tr Trade) (Trade, error) { return WithParameters(tr, testParams()) },
		"state":    func(tr Trade) (Trade, error) { return WithState(tr, testState(PhaseOpen)), nil },
		"methods":  func(tr Trade) (Trade, error) { return WithPaymentMethods(tr, testMethods()) },
	}
	orders := [][]string{
		{"creation", "params", "state", "methods"},
		{"methods", "state", "params", "creation"},
		{"state", "creation", "methods", "params"},
	}

	for _, order := range orders {
		var tr Trade = NewPartialTrade(3)
		for i, name := range order {
			var err error
			tr, err = steps[name](tr)
			require.NoError(t, err)
			if i < len(order)-1 {
				assert.False(t, tr.IsLoaded(), "order %v step %d", order, i)
			}
		}
		require.True(t, tr.IsLoaded(), "order %v", order)
		loaded := tr.(LoadedTrade)
		assert.Equal(t, 3, loaded.ID)
		assert.Equal(t, testInfo(), loaded.CreationInfo)
	}
}

func TestLoadedTrade_RejectsImmutableUpdates(t *testing.T) {
	tr := loadedTrade(t)

	other := testParams()
	other.TradeAmount = decimal.NewFromInt(1)

	got, err := WithParameters(tr, other)
	assert.True(t, errors.Is(err, ErrAlreadyLoaded))
	assert.True(t, got.(LoadedTrade).Parameters.TradeAmount.Equal(decimal.NewFromInt(100)))

	_, err = WithCreationInfo(tr, CreationInfo{BlockNumber: 99})
	assert.ErrorIs(t, err, ErrAlreadyLoaded)

	_, err = WithPaymentMethods(tr, DecodePaymentMethods("[]"))
	assert.ErrorIs(t, err, ErrAlreadyLoaded)
}

func TestWithState_RecomputesPhaseEndTime(t *testing.T) {
	tr := loadedTrade(t)
	p := testParams()

	for _, phase := range []Phase{PhaseCreated, PhaseOpen, PhaseCommitted, PhaseClaimed, PhaseClosed} {
		s := testState(phase)
		s.PhaseStartTime = start.Add(time.Duration(phase) * time.Minute)
		tr = WithState(tr, s)

		loaded := tr.(LoadedTrade)
		assert.Equal(t, s.PhaseStartTime.Add(p.IntervalFor(phase)), loaded.Derived.PhaseEndTime, phase.String())
		assert.Equal(t, phase, loaded.State.Phase)
	}
}

func TestIntervalFor(t *testing.T) {
	p := testParams()
	assert.Equal(t, time.Duration(0), p.IntervalFor(PhaseCreated))
	assert.Equal(t, 2*time.Hour, p.IntervalFor(PhaseOpen))
	assert.Equal(t, 3*time.Hour, p.IntervalFor(PhaseCommitted))
	assert.Equal(t, 4*time.Hour, p.IntervalFor(PhaseClaimed))
	assert.Equal(t, time.Duration(0), p.IntervalFor(PhaseClosed))
}

func TestMargin(t *testing.T) {
	p := testParams()
	m := Margin(p)
	require.NotNil(t, m)
	assert.True(t, m.Equal(decimal.RequireFromString("0.05")), m.String())

	p.TradeAmount = decimal.Zero
	assert.Nil(t, Margin(p))

	p = testParams()
	p.FiatPrice.Amount = decimal.NewFromInt(-3)
	assert.Nil(t, Margin(p))
}

func TestPhaseFromUint(t *testing.T) {
	ph, err := PhaseFromUint(2)
	require.NoError(t, err)
	assert.Equal(t, PhaseCommitted, ph)

	_, err = PhaseFromUint(5)
	assert.ErrorIs(t, err, ErrUnknownPhase)
}

func TestParseOpenMode(t *testing.T) {
	m, err := ParseOpenMode(" Seller ")
	require.NoError(t, err)
	assert.Equal(t, SellerOpened, m)

	m, err = ParseOpenMode("buyer")
	require.NoError(t, err)
	assert.Equal(t, BuyerOpened, m)

	_, err = ParseOpenMode("maker")
	assert.Error(t, err)
}

func TestCommInfo_PromotesOnce(t *testing.T) {
	c, err := SetInitiatorPubkey(PartialCommInfo{}, "init")
	require.NoError(t, err)
	assert.False(t, c.IsLoaded())
	assert.False(t, HasResponderPubkey(c))

	c, err = SetResponderPubkey(c, "resp")
	require.NoError(t, err)
	require.True(t, c.IsLoaded())
	assert.Equal(t, LoadedCommInfo{InitiatorPubkey: "init", ResponderPubkey: "resp"}, c)

	_, err = SetResponderPubkey(c, "other")
	assert.ErrorIs(t, err, ErrAlreadyLoaded)
}

func TestPaymentMethods_Contains(t *testing.T) {
	pm := DecodePaymentMethods(`[{"type":"bank","info":"any bank in the EU"},{"type":"cash","info":"Meet at cafe"}]`)
	require.True(t, pm.Decoded())
	assert.True(t, pm.Contains("bank"))
	assert.False(t, pm.Contains("Bank"))
	assert.True(t, pm.Contains("cafe"))

	broken := DecodePaymentMethods(`bank wire only, {not json`)
	require.False(t, broken.Decoded())
	assert.Nil(t, broken.Methods)
	assert.True(t, broken.Contains("bank wire"))
	assert.False(t, broken.Contains("cash"))
}

func loadedTrade(t *testing.T) Trade {
	t.Helper()
	var tr Trade = NewPartialTrade(1)
	var err error
	tr, err = WithCreationInfo(tr, testInfo())
	require.NoError(t, err)
	tr, err = WithParameters(tr, testParams())
	require.NoError(t, err)
	tr = WithState(tr, testState(PhaseOpen))
	tr, err = WithPaymentMethods(tr, testMethods())
	require.NoError(t, err)
	require.True(t, tr.IsLoaded())
	return tr
}

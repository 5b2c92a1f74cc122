package query

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burnable-tech/DAIHard/internal/domain"
)

var now = time.Unix(1_700_000_000, 0).UTC()

func newEngine() *Engine {
	return New(domain.SellerOpened, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type tradeOpt func(*domain.LoadedTrade)

func withBlock(b uint64) tradeOpt {
	return func(t *domain.LoadedTrade) { t.CreationInfo.BlockNumber = b }
}

func withAmount(n int64) tradeOpt {
	return func(t *domain.LoadedTrade) { t.Parameters.TradeAmount = decimal.NewFromInt(n) }
}

func withFiat(currency string, n int64) tradeOpt {
	return func(t *domain.LoadedTrade) {
		t.Parameters.FiatPrice = domain.FiatValue{Currency: currency, Amount: decimal.NewFromInt(n)}
	}
}

func withPhase(p domain.Phase) tradeOpt {
	return func(t *domain.LoadedTrade) { t.State.Phase = p }
}

func withMode(m domain.OpenMode) tradeOpt {
	return func(t *domain.LoadedTrade) { t.Parameters.OpenMode = m }
}

func withMethods(raw string) tradeOpt {
	return func(t *domain.LoadedTrade) { t.PaymentMethods = domain.DecodePaymentMethods(raw) }
}

func withEnd(end time.Time) tradeOpt {
	return func(t *domain.LoadedTrade) { t.Derived.PhaseEndTime = end }
}

func withAbort(d time.Duration) tradeOpt {
	return func(t *domain.LoadedTrade) { t.Parameters.AutoabortInterval = d }
}

// mkTrade returns an open seller trade ending 1000s after now. Derived values
// are recomputed from parameters unless withEnd overrides them.
func mkTrade(id int, opts ...tradeOpt) domain.LoadedTrade {
	t := domain.LoadedTrade{
		ID:           id,
		CreationInfo: domain.CreationInfo{BlockNumber: uint64(id)},
		Parameters: domain.Parameters{
			OpenMode:           domain.SellerOpened,
			TradeAmount:        decimal.NewFromInt(100),
			FiatPrice:          domain.FiatValue{Currency: "USD", Amount: decimal.NewFromInt(100)},
			AutorecallInterval: 1000 * time.Second,
		},
		State:          domain.State{Phase: domain.PhaseOpen, PhaseStartTime: now},
		CommInfo:       domain.PartialCommInfo{},
		PaymentMethods: domain.DecodePaymentMethods(`[{"type":"bank","info":"bank transfer"}]`),
	}
	t.Derived = domain.Derive(t.Parameters, t.State)
	var end *time.Time
	for _, o := range opts {
		before := t.Derived.PhaseEndTime
		o(&t)
		if !t.Derived.PhaseEndTime.Equal(before) {
			e := t.Derived.PhaseEndTime
			end = &e
		}
	}
	t.Derived = domain.Derive(t.Parameters, t.State)
	if end != nil {
		t.Derived.PhaseEndTime = *end
	}
	return t
}

func ids(trades []domain.LoadedTrade) []int {
	out := make([]int, len(trades))
	for i, t := range trades {
		out[i] = t.ID
	}
	return out
}

func asTrades(ts ...domain.LoadedTrade) []domain.Trade {
	out := make([]domain.Trade, len(ts))
	for i, t := range ts {
		out[i] = t
	}
	return out
}

func TestDefaultFilter(t *testing.T) {
	e := newEngine()

	open := mkTrade(1)
	assert.Equal(t, now.Add(1000*time.Second), open.Derived.PhaseEndTime)
	assert.True(t, e.Filter(now, open))

	assert.False(t, e.Filter(now, mkTrade(1, withPhase(domain.PhaseClosed))))
	assert.False(t, e.Filter(now, mkTrade(1, withMode(domain.BuyerOpened))))
	assert.False(t, e.Filter(now, mkTrade(1, withEnd(now))))
	assert.False(t, e.Filter(now.Add(2000*time.Second), open))
}

func TestView_SkipsPartialTrades(t *testing.T) {
	e := newEngine()
	trades := []domain.Trade{domain.NewPartialTrade(0), mkTrade(1)}
	assert.Equal(t, []int{1}, ids(e.View(now, trades)))
}

func TestDefaultSort_ByCreationBlock(t *testing.T) {
	e := newEngine()
	trades := asTrades(mkTrade(0, withBlock(5)), mkTrade(1, withBlock(2)), mkTrade(2, withBlock(8)))
	assert.Equal(t, []int{1, 0, 2}, ids(e.View(now, trades)))
}

func TestSetSort_TradeAmountDescending(t *testing.T) {
	e := newEngine()
	trades := asTrades(mkTrade(0, withAmount(10)), mkTrade(1, withAmount(30)), mkTrade(2, withAmount(20)))

	e.SetSort(ColumnTradeAmount, false)
	assert.Equal(t, []int{1, 2, 0}, ids(e.View(now, trades)))
	assert.Equal(t, SortSpec{Column: ColumnTradeAmount, Ascending: false}, e.Sort())

	e.SetSort(ColumnTradeAmount, true)
	assert.Equal(t, []int{0, 2, 1}, ids(e.View(now, trades)))
}

func TestSetSort_Columns(t *testing.T) {
	e := newEngine()
	a := mkTrade(0, withFiat("USD", 120), withAbort(3*time.Hour), withEnd(now.Add(time.Hour)))
	b := mkTrade(1, withFiat("USD", 90), withAbort(time.Hour), withEnd(now.Add(3*time.Hour)))
	c := mkTrade(2, withFiat("USD", 100), withAbort(2*time.Hour), withEnd(now.Add(2*time.Hour)))
	trades := asTrades(a, b, c)

	tests := []struct {
		col  Column
		want []int
	}{
		{ColumnExpiring, []int{0, 2, 1}},
		{ColumnFiat, []int{1, 2, 0}},
		{ColumnMargin, []int{1, 2, 0}},
		{ColumnAutoabortWindow, []int{1, 2, 0}},
		{ColumnAutoreleaseWindow, []int{0, 1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.col.String(), func(t *testing.T) {
			e.SetSort(tt.col, true)
			assert.Equal(t, tt.want, ids(e.View(now, trades)))
		})
	}
}

func TestMarginSort_MissingMarginComparesEqual(t *testing.T) {
	e := newEngine()
	e.SetSort(ColumnMargin, true)

	noMargin := mkTrade(0, withAmount(0))
	require.Nil(t, noMargin.Derived.Margin)
	partner := mkTrade(1, withFiat("USD", 150))

	assert.NotPanics(t, func() {
		assert.Equal(t, 0, e.Compare(noMargin, partner))
		assert.Equal(t, 0, e.Compare(partner, noMargin))
	})
}

func TestSetSort_PaymentMethodsFallsBackToCreation(t *testing.T) {
	e := newEngine()
	e.SetSort(ColumnPaymentMethods, false)
	assert.Equal(t, DefaultSort, e.Sort())

	trades := asTrades(mkTrade(0, withBlock(9)), mkTrade(1, withBlock(3)))
	assert.Equal(t, []int{1, 0}, ids(e.View(now, trades)))
}

func TestPaymentTerms(t *testing.T) {
	e := newEngine()
	bank := mkTrade(0, withMethods(`[{"type":"bank","info":"any bank transfer"}]`))
	cash := mkTrade(1, withMethods(`[{"type":"cash","info":"cash drop at mall"}]`))
	rawBank := mkTrade(2, withMethods(`bank, but not json`))

	e.AddTerm("bank")
	assert.Len(t, e.View(now, asTrades(bank, cash, rawBank)), 3, "terms are pending until applied")

	e.Apply()
	assert.Equal(t, []int{0, 2}, ids(e.View(now, asTrades(bank, cash, rawBank))))

	require.NoError(t, e.SetInput(FieldPaymentMethod, "Bank"))
	e.Apply()
	assert.Empty(t, e.View(now, asTrades(bank, cash, rawBank)), "matching is case-sensitive and needs every term")
}

func TestApply_CommitsPendingTermOnce(t *testing.T) {
	e := newEngine()
	e.AddTerm("sepa")
	require.NoError(t, e.SetInput(FieldPaymentMethod, " revolut "))

	q := e.Apply()
	assert.Equal(t, []string{"sepa", "revolut"}, q.PaymentMethodTerms)
	assert.Equal(t, "", e.Inputs().PaymentMethod)

	q = e.Apply()
	assert.Equal(t, []string{"sepa", "revolut"}, q.PaymentMethodTerms)
}

func TestRemoveTerm_OnlyTouchesInputs(t *testing.T) {
	e := newEngine()
	e.AddTerm("sepa")
	e.AddTerm("cash")
	e.Apply()

	e.RemoveTerm("sepa")
	assert.Equal(t, []string{"cash"}, e.Inputs().PaymentMethodTerms)
	assert.Equal(t, []string{"sepa", "cash"}, e.Query().PaymentMethodTerms)
}

func TestRanges(t *testing.T) {
	e := newEngine()
	small := mkTrade(0, withAmount(10), withFiat("USD", 10))
	mid := mkTrade(1, withAmount(50), withFiat("EUR", 52))
	big := mkTrade(2, withAmount(200), withFiat("USD", 190))
	trades := asTrades(small, mid, big)

	require.NoError(t, e.SetInput(FieldMinDai, "20"))
	require.NoError(t, e.SetInput(FieldMaxDai, "200"))
	e.Apply()
	assert.Equal(t, []int{1, 2}, ids(e.View(now, trades)))

	require.NoError(t, e.SetInput(FieldFiatType, "usd"))
	e.Apply()
	assert.Equal(t, []int{2}, ids(e.View(now, trades)))

	require.NoError(t, e.SetInput(FieldMaxFiat, "150"))
	e.Apply()
	assert.Empty(t, e.View(now, trades))
}

func TestApply_InvalidNumbersAreNoBound(t *testing.T) {
	e := newEngine()
	require.NoError(t, e.SetInput(FieldMinDai, "lots"))
	require.NoError(t, e.SetInput(FieldMaxFiat, "1e"))
	q := e.Apply()

	assert.Nil(t, q.DaiRange.Min)
	assert.Nil(t, q.FiatRange.Max)
	assert.Len(t, e.View(now, asTrades(mkTrade(0), mkTrade(1))), 2)
}

func TestSetInput_UnknownField(t *testing.T) {
	assert.Error(t, newEngine().SetInput("color", "red"))
}

func TestReset_Idempotent(t *testing.T) {
	e := newEngine()
	require.NoError(t, e.SetInput(FieldMinDai, "500"))
	e.AddTerm("cash")
	e.Apply()
	e.SetSort(ColumnFiat, false)

	e.Reset()
	inputs, q, s := e.Inputs(), e.Query(), e.Sort()
	e.Reset()

	assert.Equal(t, inputs, e.Inputs())
	assert.Equal(t, q, e.Query())
	assert.Equal(t, s, e.Sort())
	assert.Equal(t, DefaultSort, s)
	assert.Equal(t, SearchInputs{PaymentMethodTerms: []string{}}, inputs)

	trades := asTrades(mkTrade(0, withBlock(4)), mkTrade(1, withBlock(1)))
	assert.Equal(t, []int{1, 0}, ids(e.View(now, trades)))
}

func TestParseColumn(t *testing.T) {
	c, err := ParseColumn("Trade_Amount")
	require.NoError(t, err)
	assert.Equal(t, ColumnTradeAmount, c)

	_, err = ParseColumn("colour")
	assert.Error(t, err)
}

func TestParseOptionalBound(t *testing.T) {
	assert.Nil(t, parseOptionalBound(""))
	assert.Nil(t, parseOptionalBound("  "))
	assert.Nil(t, parseOptionalBound("abc"))
	got := parseOptionalBound(" 12.5 ")
	require.NotNil(t, got)
	assert.True(t, got.Equal(decimal.RequireFromString("12.5")))
}

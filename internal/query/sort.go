package query

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/burnable-tech/DAIHard/internal/domain"
)

// Column is a sortable listing column.
type Column int

const (
	ColumnCreated Column = iota
	ColumnExpiring
	ColumnTradeAmount
	ColumnFiat
	ColumnMargin
	ColumnPaymentMethods
	ColumnAutoabortWindow
	ColumnAutoreleaseWindow
)

var columnNames = [...]string{
	"created",
	"expiring",
	"trade_amount",
	"fiat",
	"margin",
	"payment_methods",
	"autoabort_window",
	"autorelease_window",
}

func (c Column) String() string {
	if c >= 0 && int(c) < len(columnNames) {
		return columnNames[c]
	}
	return fmt.Sprintf("Column(%d)", int(c))
}

func ParseColumn(s string) (Column, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range columnNames {
		if name == s {
			return Column(i), nil
		}
	}
	return 0, fmt.Errorf("query: unknown sort column %q", s)
}

func (c Column) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Column) UnmarshalText(text []byte) error {
	v, err := ParseColumn(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// SortSpec is the active ordering of the listing.
type SortSpec struct {
	Column    Column `json:"column"`
	Ascending bool   `json:"ascending"`
}

// DefaultSort orders by creation block, oldest first.
var DefaultSort = SortSpec{Column: ColumnCreated, Ascending: true}

type comparator func(a, b domain.LoadedTrade) int

func byCreation(a, b domain.LoadedTrade) int {
	return cmp.Compare(a.CreationInfo.BlockNumber, b.CreationInfo.BlockNumber)
}

func byExpiring(a, b domain.LoadedTrade) int {
	return a.Derived.PhaseEndTime.Compare(b.Derived.PhaseEndTime)
}

func byTradeAmount(a, b domain.LoadedTrade) int {
	return a.Parameters.TradeAmount.Cmp(b.Parameters.TradeAmount)
}

func byFiat(a, b domain.LoadedTrade) int {
	return a.Parameters.FiatPrice.Amount.Cmp(b.Parameters.FiatPrice.Amount)
}

// byMargin treats a missing margin on either side as equal.
func byMargin(a, b domain.LoadedTrade) int {
	if a.Derived.Margin == nil || b.Derived.Margin == nil {
		return 0
	}
	return a.Derived.Margin.Cmp(*b.Derived.Margin)
}

func byAutoabort(a, b domain.LoadedTrade) int {
	return cmp.Compare(a.Parameters.AutoabortInterval, b.Parameters.AutoabortInterval)
}

func byAutorelease(a, b domain.LoadedTrade) int {
	return cmp.Compare(a.Parameters.AutoreleaseInterval, b.Parameters.AutoreleaseInterval)
}

func reversed(c comparator) comparator {
	return func(a, b domain.LoadedTrade) int { return c(b, a) }
}

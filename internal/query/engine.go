// Package query holds the user's search state for the trade listing and
// evaluates it as a filter predicate and sort comparator over loaded trades.
//
// Editing inputs never changes what is shown. Only Apply compiles the inputs
// into a new SearchQuery and rebuilds the filter. Engine is not safe for
// concurrent use.
package query

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/burnable-tech/DAIHard/internal/domain"
)

type predicate func(now time.Time, t domain.LoadedTrade) bool

type Engine struct {
	openMode domain.OpenMode
	inputs   SearchInputs
	query    SearchQuery
	sort     SortSpec
	filter   predicate
	compare  comparator
	logger   *slog.Logger
}

// New returns an engine in its reset state for listings of the given mode.
func New(openMode domain.OpenMode, logger *slog.Logger) *Engine {
	e := &Engine{
		openMode: openMode,
		logger:   logger.With(slog.String("component", "query")),
	}
	e.Reset()
	return e
}

func (e *Engine) OpenMode() domain.OpenMode { return e.openMode }

// Inputs returns a copy of the pending inputs.
func (e *Engine) Inputs() SearchInputs { return e.inputs.clone() }

// Query returns the committed query.
func (e *Engine) Query() SearchQuery {
	q := e.query
	q.PaymentMethodTerms = slices.Clone(q.PaymentMethodTerms)
	return q
}

func (e *Engine) Sort() SortSpec { return e.sort }

// SetInput edits one pending input field.
func (e *Engine) SetInput(field, value string) error {
	return e.inputs.set(field, value)
}

// AddTerm appends a payment method term to the pending inputs. An empty term
// commits the pending payment method text instead and clears it.
func (e *Engine) AddTerm(term string) {
	term = strings.TrimSpace(term)
	if term == "" {
		term = strings.TrimSpace(e.inputs.PaymentMethod)
		e.inputs.PaymentMethod = ""
	}
	if term == "" || slices.Contains(e.inputs.PaymentMethodTerms, term) {
		return
	}
	e.inputs.PaymentMethodTerms = append(e.inputs.PaymentMethodTerms, term)
}

// RemoveTerm drops a payment method term from the pending inputs.
func (e *Engine) RemoveTerm(term string) {
	e.inputs.PaymentMethodTerms = slices.DeleteFunc(e.inputs.PaymentMethodTerms, func(s string) bool {
		return s == term
	})
}

// Apply commits any pending payment method text as a term, compiles the
// inputs and rebuilds the filter.
func (e *Engine) Apply() SearchQuery {
	if strings.TrimSpace(e.inputs.PaymentMethod) != "" {
		e.AddTerm("")
	}
	e.query = Compile(e.inputs)
	e.filter = e.buildFilter(e.query)
	e.logger.Debug("search applied",
		slog.Int("terms", len(e.query.PaymentMethodTerms)),
		slog.Bool("dai_bounded", e.query.DaiRange.Min != nil || e.query.DaiRange.Max != nil),
		slog.Bool("fiat_bounded", e.query.FiatRange.Min != nil || e.query.FiatRange.Max != nil),
	)
	return e.Query()
}

// Reset restores default inputs, query, filter and sort.
func (e *Engine) Reset() {
	e.inputs = SearchInputs{PaymentMethodTerms: []string{}}
	e.query = Compile(e.inputs)
	e.filter = e.defaultFilter
	e.sort = DefaultSort
	e.compare = byCreation
}

// SetSort replaces the comparator. Payment methods have no defined order, so
// sorting by them keeps the default creation order.
func (e *Engine) SetSort(col Column, ascending bool) {
	var c comparator
	switch col {
	case ColumnCreated:
		c = byCreation
	case ColumnExpiring:
		c = byExpiring
	case ColumnTradeAmount:
		c = byTradeAmount
	case ColumnFiat:
		c = byFiat
	case ColumnMargin:
		c = byMargin
	case ColumnAutoabortWindow:
		c = byAutoabort
	case ColumnAutoreleaseWindow:
		c = byAutorelease
	case ColumnPaymentMethods:
		e.logger.Warn("sorting by payment methods is undefined, using creation order")
		e.sort = DefaultSort
		e.compare = byCreation
		return
	default:
		e.logger.Warn("unknown sort column, using creation order", slog.Int("column", int(col)))
		e.sort = DefaultSort
		e.compare = byCreation
		return
	}
	if !ascending {
		c = reversed(c)
	}
	e.sort = SortSpec{Column: col, Ascending: ascending}
	e.compare = c
}

// Filter reports whether t belongs in the listing at time now.
func (e *Engine) Filter(now time.Time, t domain.LoadedTrade) bool {
	return e.filter(now, t)
}

// Compare orders two trades under the active sort.
func (e *Engine) Compare(a, b domain.LoadedTrade) int {
	return e.compare(a, b)
}

// View returns the loaded trades that pass the filter, stably sorted.
// Partial trades are never shown.
func (e *Engine) View(now time.Time, trades []domain.Trade) []domain.LoadedTrade {
	out := make([]domain.LoadedTrade, 0, len(trades))
	for _, t := range trades {
		lt, ok := t.(domain.LoadedTrade)
		if !ok || !e.filter(now, lt) {
			continue
		}
		out = append(out, lt)
	}
	slices.SortStableFunc(out, e.compare)
	return out
}

// defaultFilter shows open trades of the configured mode that have not
// expired yet.
func (e *Engine) defaultFilter(now time.Time, t domain.LoadedTrade) bool {
	return t.State.Phase == domain.PhaseOpen &&
		t.Parameters.OpenMode == e.openMode &&
		t.Derived.PhaseEndTime.After(now)
}

func (e *Engine) buildFilter(q SearchQuery) predicate {
	terms := slices.Clone(q.PaymentMethodTerms)
	return func(now time.Time, t domain.LoadedTrade) bool {
		return e.defaultFilter(now, t) &&
			matchesTerms(terms, t.PaymentMethods) &&
			q.DaiRange.Contains(t.Parameters.TradeAmount) &&
			matchesFiat(q, t.Parameters.FiatPrice)
	}
}

// matchesTerms requires every term to appear in the payment methods.
func matchesTerms(terms []string, pm domain.PaymentMethods) bool {
	for _, term := range terms {
		if !pm.Contains(term) {
			return false
		}
	}
	return true
}

func matchesFiat(q SearchQuery, price domain.FiatValue) bool {
	if q.FiatType != nil && !strings.EqualFold(*q.FiatType, price.Currency) {
		return false
	}
	return q.FiatRange.Contains(price.Amount)
}

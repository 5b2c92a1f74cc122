package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Input field names accepted by SetInput.
const (
	FieldMinDai        = "min_dai"
	FieldMaxDai        = "max_dai"
	FieldFiatType      = "fiat_type"
	FieldMinFiat       = "min_fiat"
	FieldMaxFiat       = "max_fiat"
	FieldPaymentMethod = "payment_method"
)

// SearchInputs are the raw strings the user is editing. They only affect the
// listing once applied.
type SearchInputs struct {
	MinDai             string   `json:"min_dai"`
	MaxDai             string   `json:"max_dai"`
	FiatType           string   `json:"fiat_type"`
	MinFiat            string   `json:"min_fiat"`
	MaxFiat            string   `json:"max_fiat"`
	PaymentMethod      string   `json:"payment_method"`
	PaymentMethodTerms []string `json:"payment_method_terms"`
}

func (in SearchInputs) clone() SearchInputs {
	in.PaymentMethodTerms = slices.Clone(in.PaymentMethodTerms)
	if in.PaymentMethodTerms == nil {
		in.PaymentMethodTerms = []string{}
	}
	return in
}

func (in *SearchInputs) set(field, value string) error {
	switch field {
	case FieldMinDai:
		in.MinDai = value
	case FieldMaxDai:
		in.MaxDai = value
	case FieldFiatType:
		in.FiatType = value
	case FieldMinFiat:
		in.MinFiat = value
	case FieldMaxFiat:
		in.MaxFiat = value
	case FieldPaymentMethod:
		in.PaymentMethod = value
	default:
		return fmt.Errorf("query: unknown input field %q", field)
	}
	return nil
}

// Range is an inclusive interval; a nil bound is unconstrained.
type Range struct {
	Min *decimal.Decimal `json:"min,omitempty"`
	Max *decimal.Decimal `json:"max,omitempty"`
}

// Contains reports whether v lies within r.
func (r Range) Contains(v decimal.Decimal) bool {
	if r.Min != nil && v.LessThan(*r.Min) {
		return false
	}
	if r.Max != nil && v.GreaterThan(*r.Max) {
		return false
	}
	return true
}

// SearchQuery is the compiled, committed form of SearchInputs.
type SearchQuery struct {
	DaiRange           Range    `json:"dai_range"`
	FiatType           *string  `json:"fiat_type,omitempty"`
	FiatRange          Range    `json:"fiat_range"`
	PaymentMethodTerms []string `json:"payment_method_terms"`
}

// Compile turns inputs into a query. Unparsable numbers become absent bounds.
func Compile(in SearchInputs) SearchQuery {
	q := SearchQuery{
		DaiRange:           Range{Min: parseOptionalBound(in.MinDai), Max: parseOptionalBound(in.MaxDai)},
		FiatRange:          Range{Min: parseOptionalBound(in.MinFiat), Max: parseOptionalBound(in.MaxFiat)},
		PaymentMethodTerms: slices.Clone(in.PaymentMethodTerms),
	}
	if q.PaymentMethodTerms == nil {
		q.PaymentMethodTerms = []string{}
	}
	if ft := strings.ToUpper(strings.TrimSpace(in.FiatType)); ft != "" {
		q.FiatType = &ft
	}
	return q
}

func parseOptionalBound(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

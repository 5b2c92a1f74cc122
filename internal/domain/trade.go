package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// OpenMode says which side the initiator of a trade takes.
type OpenMode int

const (
	BuyerOpened OpenMode = iota
	SellerOpened
)

func (m OpenMode) String() string {
	switch m {
	case BuyerOpened:
		return "buyer"
	case SellerOpened:
		return "seller"
	default:
		return fmt.Sprintf("OpenMode(%d)", int(m))
	}
}

// ParseOpenMode accepts "buyer" or "seller" (case-insensitive).
func ParseOpenMode(s string) (OpenMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buyer", "buyeropened":
		return BuyerOpened, nil
	case "seller", "selleropened":
		return SellerOpened, nil
	default:
		return 0, fmt.Errorf("domain: unknown open mode %q", s)
	}
}

func (m OpenMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *OpenMode) UnmarshalText(text []byte) error {
	v, err := ParseOpenMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Phase is the lifecycle stage of a trade contract. Phases only move forward.
type Phase uint8

const (
	PhaseCreated Phase = iota
	PhaseOpen
	PhaseCommitted
	PhaseClaimed
	PhaseClosed
)

var phaseNames = [...]string{"created", "open", "committed", "claimed", "closed"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// PhaseFromUint converts the on-chain enum value.
func PhaseFromUint(v uint8) (Phase, error) {
	if int(v) >= len(phaseNames) {
		return 0, fmt.Errorf("domain: phase %d: %w", v, ErrUnknownPhase)
	}
	return Phase(v), nil
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("domain: phase %q: %w", text, ErrUnknownPhase)
}

// CreationInfo is what the factory recorded when the trade contract was deployed.
type CreationInfo struct {
	Address     common.Address `json:"address"`
	BlockNumber uint64         `json:"block_number"`
}

// FiatValue is a price in a named fiat currency.
type FiatValue struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// Parameters are fixed when the trade is created.
type Parameters struct {
	OpenMode            OpenMode        `json:"open_mode"`
	TradeAmount         decimal.Decimal `json:"trade_amount"`
	FiatPrice           FiatValue       `json:"fiat_price"`
	AutorecallInterval  time.Duration   `json:"autorecall_interval"`
	AutoabortInterval   time.Duration   `json:"autoabort_interval"`
	AutoreleaseInterval time.Duration   `json:"autorelease_interval"`
	Initiator           common.Address  `json:"initiator"`
	BuyerDeposit        decimal.Decimal `json:"buyer_deposit"`
	PokeReward          decimal.Decimal `json:"poke_reward"`
}

// IntervalFor returns how long the given phase lasts before it can be poked
// forward. Created and Closed have no timeout.
func (p Parameters) IntervalFor(phase Phase) time.Duration {
	switch phase {
	case PhaseOpen:
		return p.AutorecallInterval
	case PhaseCommitted:
		return p.AutoabortInterval
	case PhaseClaimed:
		return p.AutoreleaseInterval
	default:
		return 0
	}
}

// State is the live part of a trade, refreshed on every tick.
type State struct {
	Balance        decimal.Decimal `json:"balance"`
	Phase          Phase           `json:"phase"`
	PhaseStartTime time.Time       `json:"phase_start_time"`
	Responder      *common.Address `json:"responder,omitempty"`
}

// DerivedValues are recomputed from Parameters and State whenever State changes.
type DerivedValues struct {
	PhaseEndTime time.Time        `json:"phase_end_time"`
	Margin       *decimal.Decimal `json:"margin,omitempty"`
}

// Derive computes the values shown next to a trade that are not stored on chain.
func Derive(p Parameters, s State) DerivedValues {
	return DerivedValues{
		PhaseEndTime: s.PhaseStartTime.Add(p.IntervalFor(s.Phase)),
		Margin:       Margin(p),
	}
}

// Margin is fiatPrice/tradeAmount - 1, or nil if either side is not positive.
func Margin(p Parameters) *decimal.Decimal {
	if !p.TradeAmount.IsPositive() || !p.FiatPrice.Amount.IsPositive() {
		return nil
	}
	m := p.FiatPrice.Amount.DivRound(p.TradeAmount, 16).Sub(decimal.NewFromInt(1))
	return &m
}

// Trade is one slot of the collection, either PartialTrade or LoadedTrade.
type Trade interface {
	TradeID() int
	IsLoaded() bool
	trade()
}

// PartialTrade is a trade still missing at least one of its four fetched fields.
type PartialTrade struct {
	ID             int             `json:"factory_id"`
	CreationInfo   *CreationInfo   `json:"creation_info,omitempty"`
	Parameters     *Parameters     `json:"parameters,omitempty"`
	State          *State          `json:"state,omitempty"`
	PaymentMethods *PaymentMethods `json:"payment_methods,omitempty"`
	CommInfo       SecureCommInfo  `json:"comm_info,omitempty"`
}

// LoadedTrade has every fetched field. Only State (and the values derived
// from it) and CommInfo may change after promotion.
type LoadedTrade struct {
	ID             int            `json:"factory_id"`
	CreationInfo   CreationInfo   `json:"creation_info"`
	Parameters     Parameters     `json:"parameters"`
	State          State          `json:"state"`
	Derived        DerivedValues  `json:"derived"`
	CommInfo       SecureCommInfo `json:"comm_info"`
	PaymentMethods PaymentMethods `json:"payment_methods"`
}

func (t PartialTrade) TradeID() int { return t.ID }
func (t PartialTrade) IsLoaded() bool { return false }
func (PartialTrade) trade() {}

func (t LoadedTrade) TradeID() int { return t.ID }
func (t LoadedTrade) IsLoaded() bool { return true }
func (LoadedTrade) trade() {}

// NewPartialTrade returns the empty stub for a slot.
func NewPartialTrade(id int) PartialTrade {
	return PartialTrade{ID: id, CommInfo: PartialCommInfo{}}
}

// Promote returns a LoadedTrade if all four fetched fields are present, and
// the unchanged PartialTrade otherwise. It only looks at field presence, so
// calling it after every update in any order gives the same result.
func Promote(t PartialTrade) Trade {
	if t.CreationInfo == nil || t.Parameters == nil || t.State == nil || t.PaymentMethods == nil {
		return t
	}
	comm := t.CommInfo
	if comm == nil {
		comm = PartialCommInfo{}
	}
	return LoadedTrade{
		ID:             t.ID,
		CreationInfo:   *t.CreationInfo,
		Parameters:     *t.Parameters,
		State:          *t.State,
		Derived:        Derive(*t.Parameters, *t.State),
		CommInfo:       comm,
		PaymentMethods: *t.PaymentMethods,
	}
}

// WithCreationInfo sets the creation info of a partial trade.
func WithCreationInfo(t Trade, info CreationInfo) (Trade, error) {
	p, ok := t.(PartialTrade)
	if !ok {
		return t, fmt.Errorf("domain: trade %d creation info: %w", t.TradeID(), ErrAlreadyLoaded)
	}
	p.CreationInfo = &info
	return Promote(p), nil
}

// WithParameters sets the parameters of a partial trade.
func WithParameters(t Trade, params Parameters) (Trade, error) {
	p, ok := t.(PartialTrade)
	if !ok {
		return t, fmt.Errorf("domain: trade %d parameters: %w", t.TradeID(), ErrAlreadyLoaded)
	}
	p.Parameters = &params
	return Promote(p), nil
}

// WithPaymentMethods sets the payment methods of a partial trade.
func WithPaymentMethods(t Trade, pm PaymentMethods) (Trade, error) {
	p, ok := t.(PartialTrade)
	if !ok {
		return t, fmt.Errorf("domain: trade %d payment methods: %w", t.TradeID(), ErrAlreadyLoaded)
	}
	p.PaymentMethods = &pm
	return Promote(p), nil
}

// WithState replaces the state wholesale. It is valid in both variants; a
// loaded trade gets its derived values recomputed.
func WithState(t Trade, s State) Trade {
	switch v := t.(type) {
	case PartialTrade:
		v.State = &s
		return Promote(v)
	case LoadedTrade:
		v.State = s
		v.Derived = Derive(v.Parameters, s)
		return v
	default:
		return t
	}
}

// WithCommInfo applies fn to the comm info of either variant.
func WithCommInfo(t Trade, fn func(SecureCommInfo) (SecureCommInfo, error)) (Trade, error) {
	switch v := t.(type) {
	case PartialTrade:
		c, err := fn(v.CommInfo)
		if err != nil {
			return t, err
		}
		v.CommInfo = c
		return v, nil
	case LoadedTrade:
		c, err := fn(v.CommInfo)
		if err != nil {
			return t, err
		}
		v.CommInfo = c
		return v, nil
	default:
		return t, nil
	}
}

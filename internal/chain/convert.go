package chain

import (
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/burnable-tech/DAIHard/internal/domain"
)

type rawCreation struct {
	TradeAddress common.Address
	Blocknum     *big.Int
}

type rawParameters struct {
	Initiator           common.Address
	InitiatorIsBuyer    bool
	DaiAmount           *big.Int
	TotalPrice          string
	BuyerDeposit        *big.Int
	AutorecallInterval  *big.Int
	AutoabortInterval   *big.Int
	AutoreleaseInterval *big.Int
	PokeReward          *big.Int
}

type rawState struct {
	Balance             *big.Int
	Phase               uint8
	PhaseStartTimestamp *big.Int
	Responder           common.Address
}

// TokenAmount converts a base-unit integer into a token amount.
func TokenAmount(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// ParseFiatPrice splits a "<CURRENCY><amount>" string such as "USD120.50".
func ParseFiatPrice(s string) (domain.FiatValue, error) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if i <= 0 {
		return domain.FiatValue{}, fmt.Errorf("chain: fiat price %q: missing currency or amount", s)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(s[i:]))
	if err != nil {
		return domain.FiatValue{}, fmt.Errorf("chain: fiat price %q: %w", s, err)
	}
	return domain.FiatValue{Currency: strings.ToUpper(s[:i]), Amount: amount}, nil
}

func seconds(v *big.Int) (time.Duration, error) {
	if v == nil || !v.IsInt64() || v.Int64() < 0 || v.Int64() > int64(1<<33) {
		return 0, fmt.Errorf("chain: interval %v out of range", v)
	}
	return time.Duration(v.Int64()) * time.Second, nil
}

func (r rawParameters) toDomain(decimals int32) (domain.Parameters, error) {
	price, err := ParseFiatPrice(r.TotalPrice)
	if err != nil {
		return domain.Parameters{}, err
	}
	recall, err := seconds(r.AutorecallInterval)
	if err != nil {
		return domain.Parameters{}, fmt.Errorf("autorecall: %w", err)
	}
	abort, err := seconds(r.AutoabortInterval)
	if err != nil {
		return domain.Parameters{}, fmt.Errorf("autoabort: %w", err)
	}
	release, err := seconds(r.AutoreleaseInterval)
	if err != nil {
		return domain.Parameters{}, fmt.Errorf("autorelease: %w", err)
	}

	mode := domain.SellerOpened
	if r.InitiatorIsBuyer {
		mode = domain.BuyerOpened
	}
	return domain.Parameters{
		OpenMode:            mode,
		TradeAmount:         TokenAmount(r.DaiAmount, decimals),
		FiatPrice:           price,
		AutorecallInterval:  recall,
		AutoabortInterval:   abort,
		AutoreleaseInterval: release,
		Initiator:           r.Initiator,
		BuyerDeposit:        TokenAmount(r.BuyerDeposit, decimals),
		PokeReward:          TokenAmount(r.PokeReward, decimals),
	}, nil
}

func (r rawState) toDomain(decimals int32) (domain.State, error) {
	phase, err := domain.PhaseFromUint(r.Phase)
	if err != nil {
		return domain.State{}, err
	}
	if r.PhaseStartTimestamp == nil || !r.PhaseStartTimestamp.IsInt64() {
		return domain.State{}, fmt.Errorf("chain: phase start %v out of range", r.PhaseStartTimestamp)
	}
	s := domain.State{
		Balance:        TokenAmount(r.Balance, decimals),
		Phase:          phase,
		PhaseStartTime: time.Unix(r.PhaseStartTimestamp.Int64(), 0).UTC(),
	}
	if r.Responder != (common.Address{}) {
		responder := r.Responder
		s.Responder = &responder
	}
	return s, nil
}

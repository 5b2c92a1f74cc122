package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/burnable-tech/DAIHard/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL. Parameters and
// state are kept as JSONB; the columns used for filtering are denormalized
// next to them.
type TradeStore struct {
	pool *pgxpool.Pool
}

func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `factory_id, address, block_number, parameters, state,
	payment_methods_raw, initiator_pubkey, responder_pubkey, recorded_at`

// tradeRow is the column form of a loaded trade.
type tradeRow struct {
	FactoryID       int
	Address         string
	BlockNumber     int64
	OpenMode        string
	Phase           string
	TradeAmount     string
	FiatCurrency    string
	FiatAmount      string
	Parameters      []byte
	State           []byte
	PaymentRaw      string
	InitiatorPubkey *string
	ResponderPubkey *string
	RecordedAt      time.Time
}

func toRow(t domain.LoadedTrade) (tradeRow, error) {
	params, err := json.Marshal(t.Parameters)
	if err != nil {
		return tradeRow{}, fmt.Errorf("marshal parameters: %w", err)
	}
	state, err := json.Marshal(t.State)
	if err != nil {
		return tradeRow{}, fmt.Errorf("marshal state: %w", err)
	}
	row := tradeRow{
		FactoryID:    t.ID,
		Address:      strings.ToLower(t.CreationInfo.Address.Hex()),
		BlockNumber:  int64(t.CreationInfo.BlockNumber),
		OpenMode:     t.Parameters.OpenMode.String(),
		Phase:        t.State.Phase.String(),
		TradeAmount:  t.Parameters.TradeAmount.String(),
		FiatCurrency: t.Parameters.FiatPrice.Currency,
		FiatAmount:   t.Parameters.FiatPrice.Amount.String(),
		Parameters:   params,
		State:        state,
		PaymentRaw:   t.PaymentMethods.Raw,
	}
	switch c := t.CommInfo.(type) {
	case domain.LoadedCommInfo:
		row.InitiatorPubkey, row.ResponderPubkey = &c.InitiatorPubkey, &c.ResponderPubkey
	case domain.PartialCommInfo:
		row.InitiatorPubkey, row.ResponderPubkey = c.InitiatorPubkey, c.ResponderPubkey
	}
	return row, nil
}

// record rebuilds the loaded trade, recomputing derived values and
// re-decoding payment methods from the raw text.
func (r tradeRow) record() (domain.TradeRecord, error) {
	var params domain.Parameters
	if err := json.Unmarshal(r.Parameters, &params); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("unmarshal parameters: %w", err)
	}
	var state domain.State
	if err := json.Unmarshal(r.State, &state); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("unmarshal state: %w", err)
	}

	var comm domain.SecureCommInfo = domain.PartialCommInfo{
		InitiatorPubkey: r.InitiatorPubkey,
		ResponderPubkey: r.ResponderPubkey,
	}
	if r.InitiatorPubkey != nil && r.ResponderPubkey != nil {
		comm = domain.LoadedCommInfo{InitiatorPubkey: *r.InitiatorPubkey, ResponderPubkey: *r.ResponderPubkey}
	}

	return domain.TradeRecord{
		Trade: domain.LoadedTrade{
			ID:             r.FactoryID,
			CreationInfo:   domain.CreationInfo{Address: common.HexToAddress(r.Address), BlockNumber: uint64(r.BlockNumber)},
			Parameters:     params,
			State:          state,
			Derived:        domain.Derive(params, state),
			CommInfo:       comm,
			PaymentMethods: domain.DecodePaymentMethods(r.PaymentRaw),
		},
		RecordedAt: r.RecordedAt,
	}, nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var out []domain.TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanTrade(row pgx.Row) (domain.TradeRecord, error) {
	var r tradeRow
	if err := row.Scan(
		&r.FactoryID, &r.Address, &r.BlockNumber, &r.Parameters, &r.State,
		&r.PaymentRaw, &r.InitiatorPubkey, &r.ResponderPubkey, &r.RecordedAt,
	); err != nil {
		return domain.TradeRecord{}, err
	}
	return r.record()
}

// UpsertBatch writes every trade in one pgx batch. Existing rows keep their
// recorded_at; state, phase and pubkeys are overwritten.
func (s *TradeStore) UpsertBatch(ctx context.Context, trades []domain.LoadedTrade) error {
	if len(trades) == 0 {
		return nil
	}

	const query = `
		INSERT INTO trades (
			factory_id, address, block_number, open_mode, phase,
			trade_amount, fiat_currency, fiat_amount,
			parameters, state, payment_methods_raw,
			initiator_pubkey, responder_pubkey
		) VALUES (
			$1, $2, $3, $4, $5,
			$6::numeric, $7, $8::numeric,
			$9, $10, $11,
			$12, $13
		)
		ON CONFLICT (factory_id) DO UPDATE SET
			phase = EXCLUDED.phase,
			state = EXCLUDED.state,
			initiator_pubkey = COALESCE(EXCLUDED.initiator_pubkey, trades.initiator_pubkey),
			responder_pubkey = COALESCE(EXCLUDED.responder_pubkey, trades.responder_pubkey),
			updated_at = NOW()`

	batch := &pgx.Batch{}
	for _, t := range trades {
		r, err := toRow(t)
		if err != nil {
			return fmt.Errorf("postgres: upsert trade %d: %w", t.ID, err)
		}
		batch.Queue(query,
			r.FactoryID, r.Address, r.BlockNumber, r.OpenMode, r.Phase,
			r.TradeAmount, r.FiatCurrency, r.FiatAmount,
			r.Parameters, r.State, r.PaymentRaw,
			r.InitiatorPubkey, r.ResponderPubkey,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, t := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert trade %d: %w", t.ID, err)
		}
	}
	return nil
}

// GetByID returns domain.ErrNotFound when the trade was never archived.
func (s *TradeStore) GetByID(ctx context.Context, factoryID int) (domain.TradeRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tradeSelectCols+` FROM trades WHERE factory_id = $1`, factoryID)
	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TradeRecord{}, domain.ErrNotFound
		}
		return domain.TradeRecord{}, fmt.Errorf("postgres: get trade %d: %w", factoryID, err)
	}
	return rec, nil
}

// List returns archived trades, newest factory id first.
func (s *TradeStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query, args := listQuery(opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	out, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return out, nil
}

func listQuery(opts domain.ListOpts) (string, []any) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades`
	var args []any
	argIdx := 1

	if opts.Phase != nil {
		query += fmt.Sprintf(" WHERE phase = $%d", argIdx)
		args = append(args, opts.Phase.String())
		argIdx++
	}

	query += " ORDER BY factory_id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}

func (s *TradeStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM trades").Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count trades: %w", err)
	}
	return n, nil
}

var _ domain.TradeStore = (*TradeStore)(nil)

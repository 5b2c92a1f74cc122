// Package aggregator progressively loads every trade created by the factory
// into an index-stable collection and keeps the state of loaded trades fresh.
//
// The Aggregator itself never performs I/O. Every operation returns the
// follow-up Requests it wants executed; results come back through Apply one
// at a time. Runner provides the goroutines, the refresh ticker and the chain
// reads.
package aggregator

import (
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/burnable-tech/DAIHard/internal/chain/events"
	"github.com/burnable-tech/DAIHard/internal/domain"
)

// maxSlots bounds the collection so a garbage count cannot exhaust memory.
const maxSlots = 1 << 20

// Config is fixed for the lifetime of an Aggregator.
type Config struct {
	Factory common.Address
}

// Progress reports how much of the collection is loaded.
type Progress struct {
	Total      int  `json:"total"`
	Loaded     int  `json:"loaded"`
	CountKnown bool `json:"count_known"`
}

// Done reports whether the count is known and every slot is loaded.
func (p Progress) Done() bool {
	return p.CountKnown && p.Loaded == p.Total
}

type Aggregator struct {
	cfg           Config
	trades        []domain.Trade
	countKnown    bool
	commRequested map[int]bool
	logger        *slog.Logger
}

// New returns an empty aggregator and the initial total-count request.
func New(cfg Config, logger *slog.Logger) (*Aggregator, []Request) {
	a := &Aggregator{
		cfg:           cfg,
		commRequested: make(map[int]bool),
		logger:        logger.With(slog.String("component", "aggregator")),
	}
	return a, []Request{TotalCountRequest{}}
}

func (a *Aggregator) Config() Config { return a.cfg }

// Apply merges one fetch result and returns the requests it triggers.
func (a *Aggregator) Apply(res Result) []Request {
	switch r := res.(type) {
	case TotalCountResult:
		if r.Err != nil {
			a.logger.Warn("total count fetch failed", slog.String("error", r.Err.Error()))
			return nil
		}
		return a.OnTotalCount(r.Count)
	case CreationInfoResult:
		if r.Err != nil {
			a.fetchFailed("creation info", r.ID, r.Err)
			return nil
		}
		return a.OnCreationInfo(r.ID, r.Info)
	case ParametersResult:
		if r.Err != nil {
			a.fetchFailed("parameters", r.ID, r.Err)
			return nil
		}
		return a.OnParameters(r.ID, r.Parameters)
	case StateResult:
		if r.Err != nil {
			a.fetchFailed("state", r.ID, r.Err)
			return nil
		}
		return a.OnState(r.ID, r.State)
	case OpenedResult:
		if r.Err != nil {
			a.fetchFailed("opened logs", r.ID, r.Err)
			return nil
		}
		return a.OnOpenedLogs(r.ID, r.Logs)
	case CommittedResult:
		if r.Err != nil {
			a.fetchFailed("committed logs", r.ID, r.Err)
			return nil
		}
		return a.OnCommittedLogs(r.ID, r.Logs)
	default:
		a.logger.Warn("logic error", slog.String("reason", "unknown result type"), slog.Any("result", res))
		return nil
	}
}

// OnTotalCount allocates one partial stub per trade and requests the
// creation info of each. The collection size is fixed after the first call.
func (a *Aggregator) OnTotalCount(count *big.Int) []Request {
	if a.countKnown {
		a.logger.Warn("logic error", slog.String("reason", "total count already resolved"))
		return nil
	}
	if count == nil || !count.IsInt64() || count.Sign() < 0 || count.Int64() > maxSlots {
		a.logger.Warn("unusable total count", slog.Any("count", count))
		return nil
	}

	n := int(count.Int64())
	a.trades = make([]domain.Trade, n)
	reqs := make([]Request, n)
	for id := 0; id < n; id++ {
		a.trades[id] = domain.NewPartialTrade(id)
		reqs[id] = CreationInfoRequest{ID: id}
	}
	a.countKnown = true
	a.logger.Info("trade count resolved", slog.Int("count", n))
	return reqs
}

// OnCreationInfo records where trade id lives and fans out the three
// per-trade fetches.
func (a *Aggregator) OnCreationInfo(id int, info domain.CreationInfo) []Request {
	t, ok := a.slot(id)
	if !ok {
		return nil
	}
	updated, err := domain.WithCreationInfo(t, info)
	if err != nil {
		a.logicError(id, err)
		return nil
	}
	a.trades[id] = updated
	return []Request{
		ParametersRequest{ID: id, Address: info.Address},
		StateRequest{ID: id, Address: info.Address},
		OpenedRequest{ID: id, Address: info.Address, FromBlock: info.BlockNumber},
	}
}

func (a *Aggregator) OnParameters(id int, params domain.Parameters) []Request {
	t, ok := a.slot(id)
	if !ok {
		return nil
	}
	updated, err := domain.WithParameters(t, params)
	if err != nil {
		a.logicError(id, err)
		return nil
	}
	return a.store(id, updated)
}

// OnState replaces the state of trade id wholesale. It is the only update a
// loaded trade accepts.
func (a *Aggregator) OnState(id int, state domain.State) []Request {
	t, ok := a.slot(id)
	if !ok {
		return nil
	}
	return a.store(id, domain.WithState(t, state))
}

// OnOpenedLogs decodes the Opened event of trade id into its payment methods
// and the initiator's comm pubkey.
func (a *Aggregator) OnOpenedLogs(id int, logs []types.Log) []Request {
	t, ok := a.slot(id)
	if !ok {
		return nil
	}
	opened, err := events.DecodeFirst[events.Opened](logs)
	if err != nil {
		a.fetchFailed("opened event", id, err)
		return nil
	}

	pm := domain.DecodePaymentMethods(opened.FiatTransferMethods)
	if !pm.Decoded() {
		a.logger.Debug("payment methods kept as raw text",
			slog.Int("trade_id", id),
			slog.String("error", pm.DecodeError),
		)
	}

	withKey, err := domain.WithCommInfo(t, func(c domain.SecureCommInfo) (domain.SecureCommInfo, error) {
		return domain.SetInitiatorPubkey(c, opened.CommPubkey)
	})
	if err != nil {
		a.logicError(id, err)
		return nil
	}
	updated, err := domain.WithPaymentMethods(withKey, pm)
	if err != nil {
		a.logicError(id, err)
		return nil
	}
	return a.store(id, updated)
}

// OnCommittedLogs decodes the Committed event of trade id into the
// responder's comm pubkey.
func (a *Aggregator) OnCommittedLogs(id int, logs []types.Log) []Request {
	t, ok := a.slot(id)
	if !ok {
		return nil
	}
	committed, err := events.DecodeFirst[events.Committed](logs)
	if err != nil {
		a.fetchFailed("committed event", id, err)
		return nil
	}
	updated, err := domain.WithCommInfo(t, func(c domain.SecureCommInfo) (domain.SecureCommInfo, error) {
		return domain.SetResponderPubkey(c, committed.CommPubkey)
	})
	if err != nil {
		a.logicError(id, err)
		return nil
	}
	a.trades[id] = updated
	return nil
}

// Refresh requests fresh state for every loaded trade. Partial trades are
// skipped; their missing fields are not retried.
func (a *Aggregator) Refresh() []Request {
	var reqs []Request
	for _, t := range a.trades {
		lt, ok := t.(domain.LoadedTrade)
		if !ok {
			continue
		}
		reqs = append(reqs, StateRequest{ID: lt.ID, Address: lt.CreationInfo.Address})
	}
	return reqs
}

// Trades returns a copy of the collection in factory id order.
func (a *Aggregator) Trades() []domain.Trade {
	out := make([]domain.Trade, len(a.trades))
	copy(out, a.trades)
	return out
}

// Loaded returns the loaded trades in factory id order.
func (a *Aggregator) Loaded() []domain.LoadedTrade {
	out := make([]domain.LoadedTrade, 0, len(a.trades))
	for _, t := range a.trades {
		if lt, ok := t.(domain.LoadedTrade); ok {
			out = append(out, lt)
		}
	}
	return out
}

func (a *Aggregator) Progress() Progress {
	p := Progress{Total: len(a.trades), CountKnown: a.countKnown}
	for _, t := range a.trades {
		if t.IsLoaded() {
			p.Loaded++
		}
	}
	return p
}

func (a *Aggregator) store(id int, t domain.Trade) []Request {
	wasLoaded := a.trades[id].IsLoaded()
	a.trades[id] = t
	if !wasLoaded && t.IsLoaded() {
		a.logger.Debug("trade loaded", slog.Int("trade_id", id))
	}
	return a.commFollowUp(id)
}

// commFollowUp issues the one Committed-log fetch a loaded trade needs once a
// responder has appeared.
func (a *Aggregator) commFollowUp(id int) []Request {
	lt, ok := a.trades[id].(domain.LoadedTrade)
	if !ok || a.commRequested[id] {
		return nil
	}
	if lt.State.Responder == nil || lt.State.Phase < domain.PhaseCommitted || domain.HasResponderPubkey(lt.CommInfo) {
		return nil
	}
	a.commRequested[id] = true
	return []Request{CommittedRequest{ID: id, Address: lt.CreationInfo.Address, FromBlock: lt.CreationInfo.BlockNumber}}
}

func (a *Aggregator) slot(id int) (domain.Trade, bool) {
	if id < 0 || id >= len(a.trades) {
		a.logger.Warn("logic error",
			slog.Int("trade_id", id),
			slog.Int("slots", len(a.trades)),
			slog.String("error", domain.ErrSlotOutOfRange.Error()),
		)
		return nil, false
	}
	return a.trades[id], true
}

func (a *Aggregator) fetchFailed(what string, id int, err error) {
	a.logger.Warn("fetch failed",
		slog.String("fetch", what),
		slog.Int("trade_id", id),
		slog.String("error", err.Error()),
	)
}

func (a *Aggregator) logicError(id int, err error) {
	a.logger.Warn("logic error", slog.Int("trade_id", id), slog.String("error", err.Error()))
}

package service

import (
	"context"
	"log/slog"

	"github.com/burnable-tech/DAIHard/internal/aggregator"
	"github.com/burnable-tech/DAIHard/internal/domain"
)

type recordedState struct {
	state    domain.State
	commDone bool
}

func (r recordedState) matches(t domain.LoadedTrade) bool {
	if r.commDone != t.CommInfo.IsLoaded() {
		return false
	}
	a, b := r.state, t.State
	if a.Phase != b.Phase || !a.PhaseStartTime.Equal(b.PhaseStartTime) || !a.Balance.Equal(b.Balance) {
		return false
	}
	if (a.Responder == nil) != (b.Responder == nil) {
		return false
	}
	return a.Responder == nil || *a.Responder == *b.Responder
}

// Recorder archives loaded trades, writing only those that are new or whose
// state changed since the last snapshot.
type Recorder struct {
	store  domain.TradeStore
	seen   map[int]recordedState
	logger *slog.Logger
}

func NewRecorder(store domain.TradeStore, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		seen:   make(map[int]recordedState),
		logger: logger.With(slog.String("component", "recorder")),
	}
}

func (r *Recorder) OnSnapshot(ctx context.Context, snap aggregator.Snapshot) {
	var changed []domain.LoadedTrade
	for _, t := range snap.Loaded() {
		if prev, ok := r.seen[t.ID]; ok && prev.matches(t) {
			continue
		}
		changed = append(changed, t)
	}
	if len(changed) == 0 {
		return
	}

	if err := r.store.UpsertBatch(ctx, changed); err != nil {
		r.logger.Warn("archive trades failed", slog.Int("count", len(changed)), slog.String("error", err.Error()))
		return
	}
	for _, t := range changed {
		r.seen[t.ID] = recordedState{state: t.State, commDone: t.CommInfo.IsLoaded()}
	}
	r.logger.Debug("archived trades", slog.Int("count", len(changed)))
}

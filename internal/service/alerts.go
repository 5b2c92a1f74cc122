package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/burnable-tech/DAIHard/internal/aggregator"
	"github.com/burnable-tech/DAIHard/internal/domain"
)

// EventTradeListed is the notification event type for new listings.
const EventTradeListed = "trade_listed"

// Notifier delivers an event notification.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Alerts notifies about trades that newly enter the listing. Trades already
// listed when the initial load settles are not announced. The load has
// settled once every slot is loaded or once the loaded count stops growing
// between two snapshots, as stalled slots never finish.
type Alerts struct {
	listing    *ListingService
	notifier   Notifier
	seen       map[int]bool
	primed     bool
	lastLoaded int
	logger     *slog.Logger
}

func NewAlerts(listing *ListingService, notifier Notifier, logger *slog.Logger) *Alerts {
	return &Alerts{
		listing:    listing,
		notifier:   notifier,
		seen:       make(map[int]bool),
		lastLoaded: -1,
		logger:     logger.With(slog.String("component", "alerts")),
	}
}

func (a *Alerts) OnSnapshot(ctx context.Context, snap aggregator.Snapshot) {
	if !a.primed && !a.settled(snap.Progress) {
		return
	}
	view := a.listing.ViewOf(snap)
	if !a.primed {
		for _, t := range view.Trades {
			a.seen[t.ID] = true
		}
		a.primed = true
		a.logger.Info("alerts primed", slog.Int("listed", len(view.Trades)))
		return
	}

	for _, t := range view.Trades {
		if a.seen[t.ID] {
			continue
		}
		a.seen[t.ID] = true
		title, msg := describeListing(t.LoadedTrade)
		if err := a.notifier.Notify(ctx, EventTradeListed, title, msg); err != nil {
			a.logger.Warn("listing alert failed", slog.Int("trade_id", t.ID), slog.String("error", err.Error()))
		}
	}
}

func (a *Alerts) settled(p aggregator.Progress) bool {
	if p.Done() {
		return true
	}
	if !p.CountKnown {
		return false
	}
	stalled := p.Loaded == a.lastLoaded
	a.lastLoaded = p.Loaded
	return stalled
}

func describeListing(t domain.LoadedTrade) (string, string) {
	title := fmt.Sprintf("New %s offer #%d", t.Parameters.OpenMode, t.ID)
	msg := fmt.Sprintf("%s DAI for %s %s\nexpires %s\ncontract %s",
		t.Parameters.TradeAmount.StringFixed(2),
		t.Parameters.FiatPrice.Amount.StringFixed(2),
		t.Parameters.FiatPrice.Currency,
		t.Derived.PhaseEndTime.Format("2006-01-02 15:04 MST"),
		t.CreationInfo.Address.Hex(),
	)
	if t.Derived.Margin != nil {
		msg += fmt.Sprintf("\nmargin %s%%", t.Derived.Margin.Shift(2).StringFixed(2))
	}
	return title, msg
}

package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/burnable-tech/DAIHard/internal/aggregator"
	"github.com/burnable-tech/DAIHard/internal/domain"
)

// Pub/sub channels carrying listing updates.
const (
	ChannelListing  = "ch:listing"
	ChannelProgress = "ch:progress"
)

// Envelope is the JSON frame pushed to subscribers.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Publisher pushes every snapshot, rendered under the committed search, to a
// pub/sub channel.
type Publisher struct {
	listing *ListingService
	pub     domain.Publisher
	logger  *slog.Logger
}

func NewPublisher(listing *ListingService, pub domain.Publisher, logger *slog.Logger) *Publisher {
	return &Publisher{
		listing: listing,
		pub:     pub,
		logger:  logger.With(slog.String("component", "publisher")),
	}
}

func (p *Publisher) OnSnapshot(ctx context.Context, snap aggregator.Snapshot) {
	view := p.listing.ViewOf(snap)
	p.publish(ctx, ChannelProgress, Envelope{Type: "progress", Payload: snap.Progress})
	p.publish(ctx, ChannelListing, Envelope{Type: "listing", Payload: view})
}

func (p *Publisher) publish(ctx context.Context, channel string, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("marshal envelope failed", slog.String("type", env.Type), slog.String("error", err.Error()))
		return
	}
	if err := p.pub.Publish(ctx, channel, data); err != nil {
		p.logger.Warn("publish failed", slog.String("channel", channel), slog.String("error", err.Error()))
	}
}

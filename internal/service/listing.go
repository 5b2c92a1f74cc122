// Package service combines the aggregated trade collection with the user's
// search state into the views served to clients, and hosts the listeners that
// push each refreshed snapshot to the outside world.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/burnable-tech/DAIHard/internal/aggregator"
	"github.com/burnable-tech/DAIHard/internal/domain"
	"github.com/burnable-tech/DAIHard/internal/query"
)

// SnapshotSource returns the current trade collection.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (aggregator.Snapshot, error)
}

// TradeView is a loaded trade as shown in the listing.
type TradeView struct {
	domain.LoadedTrade
	Mine bool `json:"mine"`
}

// ListingView is the filtered, sorted listing plus the search that produced it.
type ListingView struct {
	Trades   []TradeView         `json:"trades"`
	Progress aggregator.Progress `json:"progress"`
	Query    query.SearchQuery   `json:"query"`
	Sort     query.SortSpec      `json:"sort"`
	TakenAt  time.Time           `json:"taken_at"`
}

// SearchView is the editable and committed search state.
type SearchView struct {
	OpenMode domain.OpenMode    `json:"open_mode"`
	Inputs   query.SearchInputs `json:"inputs"`
	Query    query.SearchQuery  `json:"query"`
	Sort     query.SortSpec     `json:"sort"`
}

// ListingService serializes access to one query.Engine.
type ListingService struct {
	source SnapshotSource
	user   *common.Address
	now    func() time.Time
	logger *slog.Logger

	mu     sync.Mutex
	engine *query.Engine
}

func NewListingService(source SnapshotSource, engine *query.Engine, user *common.Address, logger *slog.Logger) *ListingService {
	return &ListingService{
		source: source,
		engine: engine,
		user:   user,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "listing_service")),
	}
}

// Listing fetches a fresh snapshot and renders it.
func (s *ListingService) Listing(ctx context.Context) (ListingView, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return ListingView{}, fmt.Errorf("service: listing snapshot: %w", err)
	}
	return s.ViewOf(snap), nil
}

// ViewOf renders snap under the committed search.
func (s *ListingService) ViewOf(snap aggregator.Snapshot) ListingView {
	now := snap.TakenAt
	if now.IsZero() {
		now = s.now()
	}

	s.mu.Lock()
	trades := s.engine.View(now, snap.Trades)
	q, sortSpec := s.engine.Query(), s.engine.Sort()
	s.mu.Unlock()

	views := make([]TradeView, len(trades))
	for i, t := range trades {
		views[i] = TradeView{LoadedTrade: t, Mine: s.involvesUser(t)}
	}
	return ListingView{
		Trades:   views,
		Progress: snap.Progress,
		Query:    q,
		Sort:     sortSpec,
		TakenAt:  now,
	}
}

// Trade returns one slot of the collection, loaded or not.
func (s *ListingService) Trade(ctx context.Context, id int) (domain.Trade, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: trade snapshot: %w", err)
	}
	if id < 0 || id >= len(snap.Trades) {
		return nil, fmt.Errorf("service: trade %d: %w", id, domain.ErrNotFound)
	}
	return snap.Trades[id], nil
}

func (s *ListingService) Progress(ctx context.Context) (aggregator.Progress, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return aggregator.Progress{}, fmt.Errorf("service: progress snapshot: %w", err)
	}
	return snap.Progress, nil
}

func (s *ListingService) Search() SearchView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchLocked()
}

func (s *ListingService) SetInput(field, value string) (SearchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.SetInput(field, value); err != nil {
		return SearchView{}, err
	}
	return s.searchLocked(), nil
}

func (s *ListingService) AddTerm(term string) SearchView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.AddTerm(term)
	return s.searchLocked()
}

func (s *ListingService) RemoveTerm(term string) SearchView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.RemoveTerm(term)
	return s.searchLocked()
}

func (s *ListingService) Apply() SearchView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Apply()
	return s.searchLocked()
}

func (s *ListingService) Reset() SearchView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Reset()
	return s.searchLocked()
}

func (s *ListingService) SetSort(col query.Column, ascending bool) SearchView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.SetSort(col, ascending)
	return s.searchLocked()
}

func (s *ListingService) searchLocked() SearchView {
	return SearchView{
		OpenMode: s.engine.OpenMode(),
		Inputs:   s.engine.Inputs(),
		Query:    s.engine.Query(),
		Sort:     s.engine.Sort(),
	}
}

// involvesUser reports whether the configured user is a party to t.
func (s *ListingService) involvesUser(t domain.LoadedTrade) bool {
	if s.user == nil {
		return false
	}
	if t.Parameters.Initiator == *s.user {
		return true
	}
	return t.State.Responder != nil && *t.State.Responder == *s.user
}

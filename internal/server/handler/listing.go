package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/burnable-tech/DAIHard/internal/domain"
	"github.com/burnable-tech/DAIHard/internal/query"
	"github.com/burnable-tech/DAIHard/internal/service"
)

// ListingService is what the listing and search handlers need from the
// service layer.
type ListingService interface {
	Listing(ctx context.Context) (service.ListingView, error)
	Trade(ctx context.Context, id int) (domain.Trade, error)
	Search() service.SearchView
	SetInput(field, value string) (service.SearchView, error)
	AddTerm(term string) service.SearchView
	RemoveTerm(term string) service.SearchView
	Apply() service.SearchView
	Reset() service.SearchView
	SetSort(col query.Column, ascending bool) service.SearchView
}

// ListingHandler serves the trade listing.
type ListingHandler struct {
	listing ListingService
	logger  *slog.Logger
}

func NewListingHandler(listing ListingService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{listing: listing, logger: logHandler(logger, "listing")}
}

// ListTrades returns the filtered, sorted listing.
// GET /api/trades
func (h *ListingHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	view, err := h.listing.Listing(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: listing failed", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "listing unavailable")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type tradeResponse struct {
	Loaded bool         `json:"loaded"`
	Trade  domain.Trade `json:"trade"`
}

// GetTrade returns one trade by factory id, loaded or not. This is the
// target of a row click in the listing.
// GET /api/trades/{id}
func (h *ListingHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.listing.Trade(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "trade not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get trade failed",
			slog.Int("trade_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusServiceUnavailable, "trade unavailable")
		return
	}
	writeJSON(w, http.StatusOK, tradeResponse{Loaded: t.IsLoaded(), Trade: t})
}

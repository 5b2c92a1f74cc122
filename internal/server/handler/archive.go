package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/burnable-tech/DAIHard/internal/domain"
)

// ArchiveHandler serves trades recorded in the archive store.
type ArchiveHandler struct {
	store  domain.TradeStore
	logger *slog.Logger
}

func NewArchiveHandler(store domain.TradeStore, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{store: store, logger: logHandler(logger, "archive")}
}

type listArchiveResponse struct {
	Trades []domain.TradeRecord `json:"trades"`
	Total  int64                `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// ListTrades returns archived trades with pagination.
// GET /api/archive/trades?limit=50&offset=0&phase=open
func (h *ArchiveHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	records, err := h.store.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archive failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list archived trades")
		return
	}

	total, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count archive failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to count archived trades")
		return
	}

	if records == nil {
		records = []domain.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, listArchiveResponse{
		Trades: records,
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// GetTrade returns the archived record of one trade.
// GET /api/archive/trades/{id}
func (h *ArchiveHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "trade not archived")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get archived trade failed",
			slog.Int("trade_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get archived trade")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

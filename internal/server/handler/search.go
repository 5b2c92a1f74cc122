package handler

import (
	"log/slog"
	"net/http"

	"github.com/burnable-tech/DAIHard/internal/query"
)

// SearchHandler maps the user's search intents onto the listing service.
type SearchHandler struct {
	listing ListingService
	logger  *slog.Logger
}

func NewSearchHandler(listing ListingService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{listing: listing, logger: logHandler(logger, "search")}
}

// GetSearch returns the pending inputs, committed query and sort.
// GET /api/search
func (h *SearchHandler) GetSearch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.listing.Search())
}

type inputRequest struct {
	Value string `json:"value"`
}

// SetInput edits one pending input field.
// PUT /api/search/inputs/{field}
func (h *SearchHandler) SetInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := h.listing.SetInput(pathParam(r, "field"), req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type termRequest struct {
	Term string `json:"term"`
}

// AddTerm appends a payment method term; an empty term commits the pending
// payment method text.
// POST /api/search/terms
func (h *SearchHandler) AddTerm(w http.ResponseWriter, r *http.Request) {
	var req termRequest
	if r.ContentLength != 0 {
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, h.listing.AddTerm(req.Term))
}

// RemoveTerm drops a pending payment method term.
// DELETE /api/search/terms/{term}
func (h *SearchHandler) RemoveTerm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.listing.RemoveTerm(pathParam(r, "term")))
}

// Apply commits the pending inputs.
// POST /api/search/apply
func (h *SearchHandler) Apply(w http.ResponseWriter, r *http.Request) {
	view := h.listing.Apply()
	h.logger.DebugContext(r.Context(), "search applied", slog.Int("terms", len(view.Query.PaymentMethodTerms)))
	writeJSON(w, http.StatusOK, view)
}

// Reset restores the default search and sort.
// POST /api/search/reset
func (h *SearchHandler) Reset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.listing.Reset())
}

// sortRequest leaves Ascending nil when omitted, which means ascending.
type sortRequest struct {
	Column    query.Column `json:"column"`
	Ascending *bool        `json:"ascending"`
}

// SetSort replaces the listing order.
// PUT /api/search/sort
func (h *SearchHandler) SetSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ascending := req.Ascending == nil || *req.Ascending
	writeJSON(w, http.StatusOK, h.listing.SetSort(req.Column, ascending))
}

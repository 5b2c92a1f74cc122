package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burnable-tech/DAIHard/internal/aggregator"
	"github.com/burnable-tech/DAIHard/internal/domain"
	"github.com/burnable-tech/DAIHard/internal/query"
	"github.com/burnable-tech/DAIHard/internal/service"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticSource struct {
	snap aggregator.Snapshot
}

func (s staticSource) Snapshot(context.Context) (aggregator.Snapshot, error) {
	return s.snap, nil
}

func openTrade(id int, amount int64, methods string) domain.Trade {
	start := time.Now().UTC()
	info := domain.CreationInfo{BlockNumber: uint64(id)}
	params := domain.Parameters{
		OpenMode:           domain.SellerOpened,
		TradeAmount:        decimal.NewFromInt(amount),
		FiatPrice:          domain.FiatValue{Currency: "EUR", Amount: decimal.NewFromInt(amount)},
		AutorecallInterval: time.Hour,
	}
	state := domain.State{Phase: domain.PhaseOpen, PhaseStartTime: start}
	pm := domain.DecodePaymentMethods(methods)
	return domain.Promote(domain.PartialTrade{
		ID: id, CreationInfo: &info, Parameters: &params, State: &state, PaymentMethods: &pm,
		CommInfo: domain.PartialCommInfo{},
	})
}

func newMux(t *testing.T) *http.ServeMux {
	t.Helper()
	src := staticSource{snap: aggregator.Snapshot{
		Trades: []domain.Trade{
			openTrade(0, 100, `[{"type":"bank","info":"SEPA"}]`),
			openTrade(1, 40, `[{"type":"cash","info":"cash in Berlin"}]`),
			domain.NewPartialTrade(2),
		},
		Progress: aggregator.Progress{Total: 3, Loaded: 2, CountKnown: true},
	}}
	svc := service.NewListingService(src, query.New(domain.SellerOpened, discard()), nil, discard())
	listing := NewListingHandler(svc, discard())
	search := NewSearchHandler(svc, discard())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", NewHealthHandler(nil, discard()).HealthCheck)
	mux.HandleFunc("GET /api/status", NewStatusHandler("serve", "seller", "0xf0", svc, discard()).GetStatus)
	mux.HandleFunc("GET /api/trades", listing.ListTrades)
	mux.HandleFunc("GET /api/trades/{id}", listing.GetTrade)
	mux.HandleFunc("GET /api/search", search.GetSearch)
	mux.HandleFunc("PUT /api/search/inputs/{field}", search.SetInput)
	mux.HandleFunc("POST /api/search/terms", search.AddTerm)
	mux.HandleFunc("DELETE /api/search/terms/{term}", search.RemoveTerm)
	mux.HandleFunc("POST /api/search/apply", search.Apply)
	mux.HandleFunc("POST /api/search/reset", search.Reset)
	mux.HandleFunc("PUT /api/search/sort", search.SetSort)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

type listingBody struct {
	Trades []struct {
		ID int `json:"factory_id"`
	} `json:"trades"`
	Progress aggregator.Progress `json:"progress"`
}

func listedIDs(t *testing.T, mux http.Handler) []int {
	t.Helper()
	rec := do(t, mux, http.MethodGet, "/api/trades", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body listingBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	ids := make([]int, len(body.Trades))
	for i, tr := range body.Trades {
		ids[i] = tr.ID
	}
	return ids
}

func TestHealth(t *testing.T) {
	rec := do(t, newMux(t), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHealth_DegradedBackend(t *testing.T) {
	h := NewHealthHandler(map[string]CheckFunc{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	}, discard())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Status   string            `json:"status"`
		Backends map[string]string `json:"backends"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Backends["redis"])
	assert.Equal(t, "connection refused", body.Backends["postgres"])
}

func TestStatus(t *testing.T) {
	rec := do(t, newMux(t), http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"progress":{"total":3,"loaded":2,"count_known":true}`)
	assert.Contains(t, rec.Body.String(), `"open_mode":"seller"`)
}

func TestListTrades_DefaultView(t *testing.T) {
	assert.Equal(t, []int{0, 1}, listedIDs(t, newMux(t)))
}

func TestGetTrade(t *testing.T) {
	mux := newMux(t)

	rec := do(t, mux, http.MethodGet, "/api/trades/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"loaded":false`)

	rec = do(t, mux, http.MethodGet, "/api/trades/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"loaded":true`)

	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/api/trades/9", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodGet, "/api/trades/abc", "").Code)
}

func TestSearchFlow(t *testing.T) {
	mux := newMux(t)

	rec := do(t, mux, http.MethodPut, "/api/search/inputs/payment_method", `{"value":"SEPA"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{0, 1}, listedIDs(t, mux), "inputs do not apply by themselves")

	rec = do(t, mux, http.MethodPost, "/api/search/apply", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"payment_method_terms":["SEPA"]`)
	assert.Equal(t, []int{0}, listedIDs(t, mux))

	rec = do(t, mux, http.MethodDelete, "/api/search/terms/SEPA", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, mux, http.MethodPost, "/api/search/terms", `{"term":"cash"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	do(t, mux, http.MethodPost, "/api/search/apply", "")
	assert.Equal(t, []int{1}, listedIDs(t, mux))

	rec = do(t, mux, http.MethodPost, "/api/search/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{0, 1}, listedIDs(t, mux))
}

func TestSetSort(t *testing.T) {
	mux := newMux(t)

	rec := do(t, mux, http.MethodPut, "/api/search/sort", `{"column":"trade_amount","ascending":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sort":{"column":"trade_amount","ascending":true}`)
	assert.Equal(t, []int{1, 0}, listedIDs(t, mux))

	rec = do(t, mux, http.MethodPut, "/api/search/sort", `{"column":"colour"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetSort_DefaultsToAscending(t *testing.T) {
	mux := newMux(t)

	rec := do(t, mux, http.MethodPut, "/api/search/sort", `{"column":"trade_amount"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sort":{"column":"trade_amount","ascending":true}`)
	assert.Equal(t, []int{1, 0}, listedIDs(t, mux))

	rec = do(t, mux, http.MethodPut, "/api/search/sort", `{"column":"trade_amount","ascending":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{0, 1}, listedIDs(t, mux))
}

func TestSetInput_Errors(t *testing.T) {
	mux := newMux(t)
	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodPut, "/api/search/inputs/colour", `{"value":"red"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodPut, "/api/search/inputs/min_dai", `not json`).Code)
}

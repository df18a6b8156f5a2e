package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tradewire/internal/database"
	"github.com/quantfold/tradewire/internal/modules/trading"
	"github.com/quantfold/tradewire/internal/notify"
)

func setupRouter(t *testing.T, publisher trading.NotificationPublisher) http.Handler {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	schema, ok := database.Schema("ledger")
	require.True(t, ok)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	repo := trading.NewTradeRepository(db, zerolog.Nop())
	svc := trading.NewExecutionService(repo, publisher, zerolog.Nop())
	h := NewTradingHandlers(svc, zerolog.Nop())

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return r
}

type failingPublisher struct{}

func (failingPublisher) PublishTrade(context.Context, trading.Trade) error {
	return errors.New("broker gone")
}

func executeTradeRequest(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/trades", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleExecuteTrade(t *testing.T) {
	router := setupRouter(t, notify.NewNoopPublisher(zerolog.Nop()))

	rec := executeTradeRequest(t, router,
		`{"symbol": "AAPL", "side": "Buy", "quantity": 100, "price": 150.50, "user_id": "u1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, "AAPL", body["symbol"])
	assert.Equal(t, "Buy", body["side"])
	assert.Equal(t, "Executed", body["status"])
	assert.InDelta(t, 15050.00, body["total_value"], 0.001)
}

func TestHandleExecuteTradeBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"symbol": `},
		{"invalid side", `{"symbol": "AAPL", "side": "Hold", "quantity": 1, "price": 1, "user_id": "u1"}`},
		{"blank symbol", `{"symbol": "", "side": "Buy", "quantity": 1, "price": 1, "user_id": "u1"}`},
		{"zero quantity", `{"symbol": "AAPL", "side": "Buy", "quantity": 0, "price": 1, "user_id": "u1"}`},
		{"missing user", `{"symbol": "AAPL", "side": "Buy", "quantity": 1, "price": 1}`},
	}

	router := setupRouter(t, notify.NewNoopPublisher(zerolog.Nop()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := executeTradeRequest(t, router, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeBody(t, rec), "error")
		})
	}
}

func TestHandleExecuteTradePublishFailure(t *testing.T) {
	router := setupRouter(t, failingPublisher{})

	rec := executeTradeRequest(t, router,
		`{"symbol": "AAPL", "side": "Buy", "quantity": 100, "price": 150.50, "user_id": "u1"}`)

	// 502: the trade is durable, only the notification was lost
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body, "error")

	tradeBody, ok := body["trade"].(map[string]interface{})
	require.True(t, ok, "response must carry the executed trade")
	assert.Equal(t, "Executed", tradeBody["status"])

	// The trade is retrievable afterwards
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/trades/%v", tradeBody["id"]), nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)
	assert.Equal(t, http.StatusOK, getRec.Code)
}

func TestHandleGetTrade(t *testing.T) {
	router := setupRouter(t, notify.NewNoopPublisher(zerolog.Nop()))

	rec := executeTradeRequest(t, router,
		`{"symbol": "MSFT", "side": "Sell", "quantity": 10, "price": 415.25, "user_id": "u1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/trades/1", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)
	require.Equal(t, http.StatusOK, getRec.Code)

	body := decodeBody(t, getRec)
	assert.Equal(t, "MSFT", body["symbol"])
	assert.Equal(t, "Sell", body["side"])
}

func TestHandleGetTradeNotFound(t *testing.T) {
	router := setupRouter(t, notify.NewNoopPublisher(zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/api/trades/9999", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetTradeInvalidID(t *testing.T) {
	router := setupRouter(t, notify.NewNoopPublisher(zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/api/trades/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListTrades(t *testing.T) {
	router := setupRouter(t, notify.NewNoopPublisher(zerolog.Nop()))

	for i := 0; i < 5; i++ {
		rec := executeTradeRequest(t, router, fmt.Sprintf(
			`{"symbol": "SYM%d", "side": "Buy", "quantity": 1, "price": 10, "user_id": "u1"}`, i))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/trades?page=3&page_size=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(5), body["total_count"])
	assert.Equal(t, float64(3), body["page"])
	assert.Equal(t, float64(2), body["page_size"])

	trades, ok := body["trades"].([]interface{})
	require.True(t, ok)
	assert.Len(t, trades, 1)
}

func TestHandleListTradesFilters(t *testing.T) {
	router := setupRouter(t, notify.NewNoopPublisher(zerolog.Nop()))

	for _, payload := range []string{
		`{"symbol": "AAPL", "side": "Buy", "quantity": 1, "price": 10, "user_id": "u1"}`,
		`{"symbol": "AAPL", "side": "Sell", "quantity": 1, "price": 10, "user_id": "u2"}`,
		`{"symbol": "MSFT", "side": "Buy", "quantity": 1, "price": 10, "user_id": "u1"}`,
	} {
		rec := executeTradeRequest(t, router, payload)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/trades?user_id=u1&symbol=AAPL", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["total_count"])

	// Bad filter values are rejected, not silently ignored
	req = httptest.NewRequest(http.MethodGet, "/api/trades?side=hold", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/trades?from=yesterday", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetStatistics(t *testing.T) {
	router := setupRouter(t, notify.NewNoopPublisher(zerolog.Nop()))

	for _, payload := range []string{
		`{"symbol": "AAPL", "side": "Buy", "quantity": 100, "price": 150.50, "user_id": "u1"}`,
		`{"symbol": "GOOGL", "side": "Sell", "quantity": 50, "price": 2800.75, "user_id": "u1"}`,
	} {
		rec := executeTradeRequest(t, router, payload)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/trades/statistics/u1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["total_trades"])
	assert.InDelta(t, 155087.50, body["total_volume"], 0.001)
	assert.Equal(t, float64(1), body["buy_count"])
	assert.Equal(t, float64(1), body["sell_count"])
	assert.InDelta(t, 77543.75, body["average_trade_value"], 0.001)
}

func TestHandleGetStatisticsUnknownUser(t *testing.T) {
	router := setupRouter(t, notify.NewNoopPublisher(zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/api/trades/statistics/nobody", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(0), body["total_trades"])
	assert.Equal(t, float64(0), body["average_trade_value"])
}

// Package handlers provides HTTP handlers for trade execution and queries.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/quantfold/tradewire/internal/modules/trading"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// TradingHandlers contains HTTP handlers for the trading API
type TradingHandlers struct {
	log     zerolog.Logger
	service *trading.ExecutionService
}

// NewTradingHandlers creates a new trading handlers instance
func NewTradingHandlers(service *trading.ExecutionService, log zerolog.Logger) *TradingHandlers {
	return &TradingHandlers{
		service: service,
		log:     log.With().Str("handler", "trading").Logger(),
	}
}

// HandleExecuteTrade executes a trade
// POST /api/trades
func (h *TradingHandlers) HandleExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol   string  `json:"symbol"`
		Side     string  `json:"side"`
		Quantity int64   `json:"quantity"`
		Price    float64 `json:"price"`
		UserID   string  `json:"user_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	side, err := trading.TradeSideFromString(req.Side)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	trade, err := h.service.ExecuteTrade(r.Context(), trading.TradeRequest{
		Symbol:   req.Symbol,
		Side:     side,
		Quantity: req.Quantity,
		Price:    req.Price,
		UserID:   req.UserID,
	})
	if err != nil {
		var vErr *trading.ValidationError
		var pubErr *trading.PublishError
		switch {
		case errors.As(err, &vErr):
			h.writeError(w, http.StatusBadRequest, vErr.Error())
		case errors.As(err, &pubErr):
			// The trade is durable; only the notification was lost.
			// 502 distinguishes this from a failed execution.
			h.writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error": "trade executed but notification delivery failed",
				"trade": tradeResponse(*trade),
			})
		default:
			h.log.Error().Err(err).Msg("Trade execution failed")
			h.writeError(w, http.StatusInternalServerError, "Trade execution failed")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, tradeResponse(*trade))
}

// HandleGetTrade returns a single trade by id
// GET /api/trades/{id}
func (h *TradingHandlers) HandleGetTrade(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid trade id")
		return
	}

	trade, err := h.service.GetTrade(id)
	if err != nil {
		if errors.Is(err, trading.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Trade not found")
			return
		}
		h.log.Error().Err(err).Int64("trade_id", id).Msg("Failed to get trade")
		h.writeError(w, http.StatusInternalServerError, "Failed to get trade")
		return
	}

	h.writeJSON(w, http.StatusOK, tradeResponse(*trade))
}

// HandleListTrades returns filtered, paginated trade history
// GET /api/trades
func (h *TradingHandlers) HandleListTrades(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page := parseIntParam(r, "page", 1)
	pageSize := parseIntParam(r, "page_size", defaultPageSize)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	trades, total, err := h.service.ListTrades(filter, page, pageSize)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list trades")
		h.writeError(w, http.StatusInternalServerError, "Failed to list trades")
		return
	}

	items := make([]map[string]interface{}, 0, len(trades))
	for _, t := range trades {
		items = append(items, tradeResponse(t))
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades":      items,
		"total_count": total,
		"page":        page,
		"page_size":   pageSize,
	})
}

// HandleGetStatistics returns per-user statistics over executed trades
// GET /api/trades/statistics/{userId}
func (h *TradingHandlers) HandleGetStatistics(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "Missing user id")
		return
	}

	stats, err := h.service.GetStatistics(userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get statistics")
		h.writeError(w, http.StatusInternalServerError, "Failed to get statistics")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// Helper methods

func parseFilter(r *http.Request) (trading.TradeFilter, error) {
	filter := trading.TradeFilter{
		UserID: r.URL.Query().Get("user_id"),
		Symbol: r.URL.Query().Get("symbol"),
	}

	if sideParam := r.URL.Query().Get("side"); sideParam != "" {
		side, err := trading.TradeSideFromString(sideParam)
		if err != nil {
			return trading.TradeFilter{}, err
		}
		filter.Side = side
	}

	if fromParam := r.URL.Query().Get("from"); fromParam != "" {
		from, err := time.Parse(time.RFC3339, fromParam)
		if err != nil {
			return trading.TradeFilter{}, errors.New("invalid 'from' timestamp, expected RFC3339")
		}
		filter.From = from
	}

	if toParam := r.URL.Query().Get("to"); toParam != "" {
		to, err := time.Parse(time.RFC3339, toParam)
		if err != nil {
			return trading.TradeFilter{}, errors.New("invalid 'to' timestamp, expected RFC3339")
		}
		filter.To = to
	}

	return filter, nil
}

func parseIntParam(r *http.Request, name string, defaultValue int) int {
	if param := r.URL.Query().Get(name); param != "" {
		if parsed, err := strconv.Atoi(param); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func tradeResponse(t trading.Trade) map[string]interface{} {
	return map[string]interface{}{
		"id":          t.ID,
		"symbol":      t.Symbol,
		"side":        string(t.Side),
		"quantity":    t.Quantity,
		"price":       t.Price,
		"executed_at": t.ExecutedAt.Format(time.RFC3339),
		"user_id":     t.UserID,
		"status":      string(t.Status),
		"total_value": t.TotalValue(),
	}
}

// writeJSON writes a JSON response
func (h *TradingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *TradingHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

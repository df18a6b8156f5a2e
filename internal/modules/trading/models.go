// Package trading implements the trade execution pipeline: entity lifecycle,
// persistence, and notification publishing.
package trading

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TradeSide represents the direction of a trade
type TradeSide string

const (
	TradeSideBuy  TradeSide = "Buy"
	TradeSideSell TradeSide = "Sell"
)

// TradeSideFromString parses a trade side, case-insensitively
func TradeSideFromString(s string) (TradeSide, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return TradeSideBuy, nil
	case "sell":
		return TradeSideSell, nil
	default:
		return "", fmt.Errorf("invalid trade side: %q", s)
	}
}

// TradeStatus represents the lifecycle state of a trade.
// Transitions are forward-only: Pending -> {Executed, Failed}.
// Executed, Failed and Cancelled are terminal.
type TradeStatus string

const (
	StatusPending   TradeStatus = "Pending"
	StatusExecuted  TradeStatus = "Executed"
	StatusFailed    TradeStatus = "Failed"
	StatusCancelled TradeStatus = "Cancelled"
)

// Trade represents a persisted record of one buy/sell order
type Trade struct {
	ID         int64       `json:"id"`
	Symbol     string      `json:"symbol"`
	Quantity   int64       `json:"quantity"`
	Price      float64     `json:"price"`
	Side       TradeSide   `json:"side"`
	ExecutedAt time.Time   `json:"executed_at"`
	UserID     string      `json:"user_id"`
	Status     TradeStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}

// TotalValue returns quantity * price rounded to 2 decimals.
// Always recomputed, never stored, so it cannot drift.
func (t Trade) TotalValue() float64 {
	return round2(float64(t.Quantity) * t.Price)
}

// Validate checks entity invariants
func (t Trade) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return &ValidationError{Field: "symbol", Reason: "must not be blank"}
	}
	if len(t.Symbol) > 10 {
		return &ValidationError{Field: "symbol", Reason: "must be at most 10 characters"}
	}
	if strings.TrimSpace(t.UserID) == "" {
		return &ValidationError{Field: "user_id", Reason: "must not be blank"}
	}
	if t.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if t.Price <= 0 {
		return &ValidationError{Field: "price", Reason: "must be positive"}
	}
	if t.Side != TradeSideBuy && t.Side != TradeSideSell {
		return &ValidationError{Field: "side", Reason: "must be Buy or Sell"}
	}
	return nil
}

// TradeFilter holds optional list filters. Zero values mean "no filter".
type TradeFilter struct {
	UserID string
	Symbol string
	Side   TradeSide
	From   time.Time
	To     time.Time
}

// Statistics aggregates executed trades for one user
type Statistics struct {
	TotalTrades       int64   `json:"total_trades"`
	TotalVolume       float64 `json:"total_volume"`
	BuyCount          int64   `json:"buy_count"`
	SellCount         int64   `json:"sell_count"`
	AverageTradeValue float64 `json:"average_trade_value"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

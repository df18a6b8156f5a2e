// Package notify implements the durable notification path: publishing trade
// events to an AMQP broker and consuming them with at-least-once semantics.
package notify

import (
	"time"

	"github.com/quantfold/tradewire/internal/modules/trading"
)

// Message is the wire-level notification record. It is an immutable snapshot
// of a trade at publish time, not an entity: its only identity is the source
// trade id.
//
// Field names are a stable contract; decoding is case-insensitive on the
// consuming side (encoding/json matches keys case-insensitively).
type Message struct {
	ID          int64   `json:"id"`
	Symbol      string  `json:"symbol"`
	Quantity    int64   `json:"quantity"`
	Price       float64 `json:"price"`
	TradeType   string  `json:"tradeType"` // "Buy" | "Sell"
	ExecutedAt  string  `json:"executedAt"`
	UserID      string  `json:"userId"`
	Status      string  `json:"status"`
	TotalValue  float64 `json:"totalValue"`
	PublishedAt string  `json:"publishedAt"`
}

// NewMessage builds the notification snapshot for an executed trade
func NewMessage(trade trading.Trade) Message {
	return Message{
		ID:          trade.ID,
		Symbol:      trade.Symbol,
		Quantity:    trade.Quantity,
		Price:       trade.Price,
		TradeType:   string(trade.Side),
		ExecutedAt:  trade.ExecutedAt.UTC().Format(time.RFC3339),
		UserID:      trade.UserID,
		Status:      string(trade.Status),
		TotalValue:  trade.TotalValue(),
		PublishedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

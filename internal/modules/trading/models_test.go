package trading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTrade() Trade {
	return Trade{
		Symbol:     "AAPL",
		Side:       TradeSideBuy,
		Quantity:   100,
		Price:      150.50,
		ExecutedAt: time.Now().UTC(),
		UserID:     "u1",
		Status:     StatusPending,
	}
}

func TestTradeSideFromString(t *testing.T) {
	tests := []struct {
		input   string
		want    TradeSide
		wantErr bool
	}{
		{"Buy", TradeSideBuy, false},
		{"buy", TradeSideBuy, false},
		{"BUY", TradeSideBuy, false},
		{"  sell  ", TradeSideSell, false},
		{"Sell", TradeSideSell, false},
		{"hold", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := TradeSideFromString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTradeValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Trade)
		wantField string
	}{
		{"valid", func(tr *Trade) {}, ""},
		{"blank symbol", func(tr *Trade) { tr.Symbol = "   " }, "symbol"},
		{"symbol too long", func(tr *Trade) { tr.Symbol = "ABCDEFGHIJK" }, "symbol"},
		{"blank user", func(tr *Trade) { tr.UserID = "" }, "user_id"},
		{"zero quantity", func(tr *Trade) { tr.Quantity = 0 }, "quantity"},
		{"negative quantity", func(tr *Trade) { tr.Quantity = -5 }, "quantity"},
		{"zero price", func(tr *Trade) { tr.Price = 0 }, "price"},
		{"negative price", func(tr *Trade) { tr.Price = -1.5 }, "price"},
		{"invalid side", func(tr *Trade) { tr.Side = "Hold" }, "side"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := validTrade()
			tt.mutate(&trade)

			err := trade.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestTradeTotalValue(t *testing.T) {
	tests := []struct {
		name     string
		quantity int64
		price    float64
		want     float64
	}{
		{"whole", 100, 150.50, 15050.00},
		{"fractional", 50, 2800.75, 140037.50},
		{"rounds to cents", 7, 19.99, 139.93},
		{"single share", 1, 0.01, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := validTrade()
			trade.Quantity = tt.quantity
			trade.Price = tt.price
			assert.InDelta(t, tt.want, trade.TotalValue(), 0.001)
		})
	}
}

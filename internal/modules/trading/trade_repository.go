package trading

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TradeRepository handles trade database operations
type TradeRepository struct {
	ledgerDB *sql.DB // ledger.db - trades table
	log      zerolog.Logger
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(ledgerDB *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "trade").Logger(),
	}
}

// Create inserts a new trade record and returns the store-assigned id
func (r *TradeRepository) Create(trade Trade) (int64, error) {
	if err := trade.Validate(); err != nil {
		return 0, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	executedAt := trade.ExecutedAt.UTC().Format(time.RFC3339)

	query := `
		INSERT INTO trades
		(symbol, side, quantity, price, executed_at, user_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.ledgerDB.Exec(query,
		strings.ToUpper(strings.TrimSpace(trade.Symbol)),
		string(trade.Side),
		trade.Quantity,
		trade.Price,
		executedAt,
		trade.UserID,
		string(trade.Status),
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create trade: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get trade id: %w", err)
	}

	r.log.Info().
		Int64("trade_id", id).
		Str("symbol", trade.Symbol).
		Str("side", string(trade.Side)).
		Int64("quantity", trade.Quantity).
		Msg("Trade created")

	return id, nil
}

// UpdateStatus transitions a trade from one status to another.
// The guard on the current status enforces forward-only transitions at the
// store level; a transition from any other state affects zero rows and fails.
func (r *TradeRepository) UpdateStatus(id int64, from, to TradeStatus) error {
	result, err := r.ledgerDB.Exec(
		"UPDATE trades SET status = ? WHERE id = ? AND status = ?",
		string(to), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update trade status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("trade %d is not in status %s", id, from)
	}

	return nil
}

// GetByID retrieves a trade by id. Returns (nil, nil) when no row exists.
func (r *TradeRepository) GetByID(id int64) (*Trade, error) {
	query := `
		SELECT id, symbol, side, quantity, price, executed_at, user_id, status, created_at
		FROM trades WHERE id = ?
	`

	row := r.ledgerDB.QueryRow(query, id)
	trade, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade by id: %w", err)
	}

	return &trade, nil
}

// List retrieves trades matching the filter, ordered by executed_at
// descending, with 1-indexed offset pagination. The total count is computed
// with the same filter but independently of the page slice, so pagination
// metadata always reflects the filter, not the page.
func (r *TradeRepository) List(filter TradeFilter, page, pageSize int) ([]Trade, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	where, args := buildTradeFilter(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM trades" + where
	if err := r.ledgerDB.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count trades: %w", err)
	}

	query := `
		SELECT id, symbol, side, quantity, price, executed_at, user_id, status, created_at
		FROM trades` + where + `
		ORDER BY executed_at DESC
		LIMIT ? OFFSET ?
	`
	pageArgs := append(append([]interface{}{}, args...), pageSize, (page-1)*pageSize)

	rows, err := r.ledgerDB.Query(query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		trade, err := scanTradeFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, total, nil
}

// Statistics computes aggregates over Executed trades for one user
func (r *TradeRepository) Statistics(userID string) (Statistics, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(quantity * price), 0),
			COALESCE(SUM(CASE WHEN side = 'Buy' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN side = 'Sell' THEN 1 ELSE 0 END), 0)
		FROM trades
		WHERE user_id = ? AND status = 'Executed'
	`

	var stats Statistics
	err := r.ledgerDB.QueryRow(query, userID).Scan(
		&stats.TotalTrades,
		&stats.TotalVolume,
		&stats.BuyCount,
		&stats.SellCount,
	)
	if err != nil {
		return Statistics{}, fmt.Errorf("failed to compute statistics: %w", err)
	}

	stats.TotalVolume = round2(stats.TotalVolume)
	// Guard against division by zero for users with no executed trades
	if stats.TotalTrades > 0 {
		stats.AverageTradeValue = round2(stats.TotalVolume / float64(stats.TotalTrades))
	}

	return stats, nil
}

// buildTradeFilter assembles the WHERE clause shared by List and its count
func buildTradeFilter(filter TradeFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Symbol != "" {
		conditions = append(conditions, "symbol = ?")
		args = append(args, strings.ToUpper(strings.TrimSpace(filter.Symbol)))
	}
	if filter.Side != "" {
		conditions = append(conditions, "side = ?")
		args = append(args, string(filter.Side))
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "executed_at >= ?")
		args = append(args, filter.From.UTC().Format(time.RFC3339))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "executed_at <= ?")
		args = append(args, filter.To.UTC().Format(time.RFC3339))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row *sql.Row) (Trade, error) { return scanTradeRow(row) }

func scanTradeFromRows(rows *sql.Rows) (Trade, error) { return scanTradeRow(rows) }

func scanTradeRow(row rowScanner) (Trade, error) {
	var trade Trade
	var side, status string
	var executedAt, createdAt string

	err := row.Scan(
		&trade.ID,
		&trade.Symbol,
		&side,
		&trade.Quantity,
		&trade.Price,
		&executedAt,
		&trade.UserID,
		&status,
		&createdAt,
	)
	if err != nil {
		return trade, err
	}

	trade.Side = TradeSide(side)
	trade.Status = TradeStatus(status)

	if t, err := time.Parse(time.RFC3339, executedAt); err == nil {
		trade.ExecutedAt = t
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		trade.CreatedAt = t
	}

	return trade, nil
}

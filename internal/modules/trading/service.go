package trading

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TradeRepositoryInterface defines the interface for trade persistence
type TradeRepositoryInterface interface {
	// Create inserts a new trade record and returns the store-assigned id
	Create(trade Trade) (int64, error)

	// UpdateStatus transitions a trade between statuses
	UpdateStatus(id int64, from, to TradeStatus) error

	// GetByID retrieves a trade by id, (nil, nil) when absent
	GetByID(id int64) (*Trade, error)

	// List retrieves a filtered, paginated trade page plus the total count
	List(filter TradeFilter, page, pageSize int) ([]Trade, int, error)

	// Statistics computes aggregates over Executed trades for one user
	Statistics(userID string) (Statistics, error)
}

// Compile-time check that TradeRepository implements TradeRepositoryInterface
var _ TradeRepositoryInterface = (*TradeRepository)(nil)

// NotificationPublisher delivers one notification per executed trade.
// Implementations must be safe for concurrent use.
type NotificationPublisher interface {
	PublishTrade(ctx context.Context, trade Trade) error
}

// TradeRequest represents a validated request to execute a trade
type TradeRequest struct {
	Symbol   string
	Side     TradeSide
	Quantity int64
	Price    float64
	UserID   string
}

// ExecutionService turns a trade request into a durably recorded,
// status-correct Trade and attempts to notify interested parties.
//
// The trade store and the notification publisher are never wrapped in one
// atomic unit: a broker outage fails the request even though the underlying
// trade is committed.
type ExecutionService struct {
	log       zerolog.Logger
	tradeRepo TradeRepositoryInterface
	publisher NotificationPublisher
}

// NewExecutionService creates a new trade execution service
func NewExecutionService(
	tradeRepo TradeRepositoryInterface,
	publisher NotificationPublisher,
	log zerolog.Logger,
) *ExecutionService {
	return &ExecutionService{
		log:       log.With().Str("service", "execution").Logger(),
		tradeRepo: tradeRepo,
		publisher: publisher,
	}
}

// ExecuteTrade runs the execution pipeline:
// validate -> insert Pending -> mark Executed -> publish notification.
//
// Once the insert has succeeded, an error return no longer implies the trade
// did not happen: a failed status update leaves a durable Pending row, and a
// failed publish leaves a durable Executed row. Both are reported as typed
// errors so callers and logs can tell the cases apart.
func (s *ExecutionService) ExecuteTrade(ctx context.Context, req TradeRequest) (*Trade, error) {
	// Defense in depth: upstream validation should already have rejected
	// blank identifiers, but a blank row in the ledger is unrecoverable.
	if strings.TrimSpace(req.Symbol) == "" {
		return nil, &ValidationError{Field: "symbol", Reason: "must not be blank"}
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be blank"}
	}

	trade := Trade{
		Symbol:     strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      req.Price,
		ExecutedAt: time.Now().UTC(),
		UserID:     strings.TrimSpace(req.UserID),
		Status:     StatusPending,
	}

	if err := trade.Validate(); err != nil {
		return nil, err
	}

	id, err := s.tradeRepo.Create(trade)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			return nil, err
		}
		s.log.Error().Err(err).Str("symbol", trade.Symbol).Msg("Failed to persist trade")
		return nil, &PersistenceError{Op: "insert", Err: err}
	}
	trade.ID = id

	// Second write to the same row. If it fails the trade stays durably
	// Pending: discoverable, but not self-healing.
	if err := s.tradeRepo.UpdateStatus(id, StatusPending, StatusExecuted); err != nil {
		s.log.Error().
			Err(err).
			Int64("trade_id", id).
			Msg("Trade persisted but stuck in Pending: status update failed")
		return nil, &PersistenceError{Op: "update", Err: err}
	}
	trade.Status = StatusExecuted

	s.log.Info().
		Int64("trade_id", id).
		Str("symbol", trade.Symbol).
		Str("side", string(trade.Side)).
		Float64("total_value", trade.TotalValue()).
		Msg("Trade executed")

	// Best-effort durable send, not transactional with the writes above.
	if err := s.publisher.PublishTrade(ctx, trade); err != nil {
		s.log.Error().
			Err(err).
			Int64("trade_id", id).
			Msg("Trade executed but notification publish failed")
		return &trade, &PublishError{TradeID: id, Err: err}
	}

	return &trade, nil
}

// GetTrade retrieves a single trade. Returns ErrNotFound when absent.
func (s *ExecutionService) GetTrade(id int64) (*Trade, error) {
	trade, err := s.tradeRepo.GetByID(id)
	if err != nil {
		return nil, &PersistenceError{Op: "select", Err: err}
	}
	if trade == nil {
		return nil, ErrNotFound
	}
	return trade, nil
}

// ListTrades retrieves a filtered page of trades plus the total count
func (s *ExecutionService) ListTrades(filter TradeFilter, page, pageSize int) ([]Trade, int, error) {
	trades, total, err := s.tradeRepo.List(filter, page, pageSize)
	if err != nil {
		return nil, 0, &PersistenceError{Op: "select", Err: err}
	}
	return trades, total, nil
}

// GetStatistics computes per-user aggregates over executed trades
func (s *ExecutionService) GetStatistics(userID string) (Statistics, error) {
	stats, err := s.tradeRepo.Statistics(userID)
	if err != nil {
		return Statistics{}, &PersistenceError{Op: "select", Err: err}
	}
	return stats, nil
}

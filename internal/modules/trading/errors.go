package trading

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a trade does not exist
var ErrNotFound = errors.New("trade not found")

// ValidationError reports malformed input, rejected before any persistence
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// PersistenceError reports a store failure. For the initial insert no partial
// state survives; for the status update the trade remains durably Pending.
type PersistenceError struct {
	Op  string // "insert" or "update"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PublishError reports a failed notification publish. The trade is already
// durable when this is returned; callers must not interpret it as "trade did
// not happen".
type PublishError struct {
	TradeID int64
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish notification for trade %d: %v", e.TradeID, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

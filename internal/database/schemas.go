package database

// schemas maps database names to their embedded schema definitions.
// Each schema must be idempotent (IF NOT EXISTS only).
var schemas = map[string]string{
	"ledger": ledgerSchema,
}

// Schema returns the embedded schema for a database name. Callers that manage
// their own connections (tests mostly) apply it directly.
func Schema(name string) (string, bool) {
	schema, ok := schemas[name]
	return schema, ok
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS trades (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol      TEXT    NOT NULL CHECK (length(symbol) > 0 AND length(symbol) <= 10),
    side        TEXT    NOT NULL CHECK (side IN ('Buy', 'Sell')),
    quantity    INTEGER NOT NULL CHECK (quantity > 0),
    price       REAL    NOT NULL CHECK (price > 0),
    executed_at TEXT    NOT NULL,
    user_id     TEXT    NOT NULL CHECK (length(user_id) > 0),
    status      TEXT    NOT NULL CHECK (status IN ('Pending', 'Executed', 'Failed', 'Cancelled')),
    created_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_user_id ON trades(user_id);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
CREATE INDEX IF NOT EXISTS idx_trades_executed_at ON trades(executed_at);
`

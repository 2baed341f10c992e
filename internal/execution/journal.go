package execution

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Journal persists trade fills to SQLite for analysis and audit.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id     TEXT NOT NULL,
		strategy     TEXT NOT NULL,
		action       TEXT NOT NULL,
		symbol       TEXT NOT NULL,
		qty          TEXT NOT NULL,
		price        REAL NOT NULL,
		slippage     REAL DEFAULT 0,
		realized_pnl TEXT DEFAULT '0',
		reason       TEXT,
		filled_at    DATETIME NOT NULL,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(strategy);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_filled_at ON trades(filled_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened trade journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// RecordFill persists a fill to the journal.
func (j *Journal) RecordFill(ctx context.Context, fill Fill) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO trades (order_id, strategy, action, symbol, qty, price, slippage, realized_pnl, reason, filled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fill.OrderID,
		fill.Request.Strategy,
		string(fill.Request.Side),
		fill.Request.Symbol,
		fill.FillQty.String(),
		fill.FillPrice,
		fill.Slippage,
		fill.Realized.String(),
		fill.Request.Reason,
		fill.FilledAt.Format(time.RFC3339),
	)
	return err
}

// TradeRecord represents a row from the trades table.
type TradeRecord struct {
	ID          int64           `json:"id"`
	OrderID     string          `json:"order_id"`
	Strategy    string          `json:"strategy"`
	Action      string          `json:"action"`
	Symbol      string          `json:"symbol"`
	Qty         decimal.Decimal `json:"qty"`
	Price       float64         `json:"price"`
	Slippage    float64         `json:"slippage"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Reason      string          `json:"reason"`
	FilledAt    string          `json:"filled_at"`
}

// GetTrades returns the last N trades, newest first.
func (j *Journal) GetTrades(limit int) ([]TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, order_id, strategy, action, symbol, qty, price, slippage, realized_pnl, reason, filled_at
		 FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var (
			t             TradeRecord
			qty, realized string
		)
		if err := rows.Scan(&t.ID, &t.OrderID, &t.Strategy, &t.Action, &t.Symbol,
			&qty, &t.Price, &t.Slippage, &realized, &t.Reason, &t.FilledAt); err != nil {
			continue
		}
		t.Qty, _ = decimal.NewFromString(qty)
		t.RealizedPnL, _ = decimal.NewFromString(realized)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

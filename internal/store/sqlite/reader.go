package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"trendsignal/internal/marketdata"
	"trendsignal/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to stored candles. It implements
// marketdata.Source for offline evaluation.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// Fetch returns the newest limit candles for symbol/timeframe in ascending
// time order. An empty result is reported as ErrDataUnavailable.
func (r *Reader) Fetch(ctx context.Context, symbol, timeframe string, limit int) (model.Series, error) {
	if limit <= 0 {
		return nil, marketdata.Unavailable(symbol, timeframe, errors.New("limit must be positive"))
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ?
		ORDER BY ts DESC
		LIMIT ?
	`, symbol, timeframe, limit)
	if err != nil {
		return nil, marketdata.Unavailable(symbol, timeframe, fmt.Errorf("sqlite query candles: %w", err))
	}
	defer rows.Close()

	var candles model.Series
	for rows.Next() {
		var (
			c      model.Candle
			tsUnix int64
			volume sql.NullFloat64
		)
		if err := rows.Scan(&tsUnix, &c.Open, &c.High, &c.Low, &c.Close, &volume); err != nil {
			return nil, marketdata.Unavailable(symbol, timeframe, fmt.Errorf("sqlite scan candles: %w", err))
		}
		c.TS = time.Unix(tsUnix, 0).UTC()
		c.Volume = volume.Float64
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, marketdata.Unavailable(symbol, timeframe, err)
	}
	if len(candles) == 0 {
		return nil, marketdata.Unavailable(symbol, timeframe, errors.New("no stored candles"))
	}

	// Newest-first from the query; flip to chronological order.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}

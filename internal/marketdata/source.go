// Package marketdata defines the candle source boundary and the helpers
// shared by every source: timeframe parsing and the CSV candle format.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trendsignal/internal/model"
)

// ErrDataUnavailable is wrapped by every Source failure. A cycle that sees it
// is aborted without partial evaluation.
var ErrDataUnavailable = errors.New("market data unavailable")

// Source fetches the newest candles for a symbol, oldest first, at most
// limit of them.
type Source interface {
	Fetch(ctx context.Context, symbol, timeframe string, limit int) (model.Series, error)
}

// Unavailable wraps err as ErrDataUnavailable with the request context.
func Unavailable(symbol, timeframe string, err error) error {
	if errors.Is(err, ErrDataUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %v", ErrDataUnavailable, symbol, timeframe, err)
}

var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// ParseTimeframe maps a timeframe string (1m, 5m, 15m, 30m, 1h, 4h, 1d) to its
// bar duration.
func ParseTimeframe(tf string) (time.Duration, error) {
	d, ok := timeframes[tf]
	if !ok {
		return 0, fmt.Errorf("unsupported timeframe %q", tf)
	}
	return d, nil
}

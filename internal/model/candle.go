package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnorderedSeries is returned by Series.Validate when timestamps are not
// strictly ascending.
var ErrUnorderedSeries = errors.New("candle series not strictly ascending")

// Candle represents one OHLCV bar for a single instrument.
// Prices are float64 as delivered by the venue.
type Candle struct {
	TS     time.Time `json:"ts"` // bar open time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// HL2 returns the bar midpoint (high+low)/2.
func (c *Candle) HL2() float64 {
	return (c.High + c.Low) / 2
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Series is a window of candles in chronological order. Index 0 is the oldest.
type Series []Candle

// Closes returns the close-price sub-series.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i := range s {
		out[i] = s[i].Close
	}
	return out
}

// Last returns the most recent candle.
func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

// Tail returns the newest n candles (or the whole series if shorter).
func (s Series) Tail(n int) Series {
	if n <= 0 {
		return Series{}
	}
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Validate checks ascending, duplicate-free timestamps and high >= low.
func (s Series) Validate() error {
	for i := range s {
		if s[i].High < s[i].Low {
			return fmt.Errorf("candle %d (%s): high %.8f below low %.8f",
				i, s[i].TS.Format(time.RFC3339), s[i].High, s[i].Low)
		}
		if i > 0 && !s[i].TS.After(s[i-1].TS) {
			return fmt.Errorf("%w: candle %d at %s follows %s", ErrUnorderedSeries,
				i, s[i].TS.Format(time.RFC3339), s[i-1].TS.Format(time.RFC3339))
		}
	}
	return nil
}

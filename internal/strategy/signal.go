// Package strategy derives trade signals from an indicator frame.
//
// Four independent checks (Bollinger Bands, EWMA crossover, EMA crossover and
// Supertrend) run in a fixed order against the last candle of the frame. They
// are gated on the current position: buys only fire when flat, sells only
// when holding. More than one check may fire in the same evaluation.
package strategy

import (
	"fmt"
	"time"

	"trendsignal/internal/model"
)

// Action represents a trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Kind identifies the check that produced a signal.
type Kind string

const (
	KindBollinger     Kind = "BOLLINGER"
	KindEWMACrossover Kind = "EWMA_CROSSOVER"
	KindEMACrossover  Kind = "EMA_CROSSOVER"
	KindSupertrend    Kind = "SUPERTREND"
)

// CheckOrder is the order in which the checks are evaluated and their
// signals emitted.
var CheckOrder = []Kind{KindBollinger, KindEWMACrossover, KindEMACrossover, KindSupertrend}

func (k Kind) displayName() string {
	switch k {
	case KindBollinger:
		return "Bollinger Bands"
	case KindEWMACrossover:
		return "EWMA"
	case KindEMACrossover:
		return "EMA"
	case KindSupertrend:
		return "Supertrend"
	}
	return string(k)
}

// Signal represents a trading signal emitted by one check.
type Signal struct {
	Strategy Kind      `json:"strategy"`
	Action   Action    `json:"action"`
	Symbol   string    `json:"symbol"`
	Price    float64   `json:"price"` // close of the evaluated candle
	TS       time.Time `json:"ts"`
	Index    int       `json:"index"`
	Reason   string    `json:"reason"`
}

// Side maps the signal action to an order side.
func (s Signal) Side() model.Side {
	if s.Action == ActionSell {
		return model.SideSell
	}
	return model.SideBuy
}

// Label returns the human readable signal name, e.g. "Supertrend Buy Signal".
func (s Signal) Label() string {
	dir := "Buy"
	if s.Action == ActionSell {
		dir = "Sell"
	}
	return fmt.Sprintf("%s %s Signal", s.Strategy.displayName(), dir)
}

// String renders the signal as a trade line:
// "2024-01-15T09:00:00Z, BTC/USD bought at price 101.0000 (EWMA Buy Signal)".
func (s Signal) String() string {
	verb := "bought"
	if s.Action == ActionSell {
		verb = "sold"
	}
	return fmt.Sprintf("%s, %s %s at price %.4f (%s)",
		s.TS.UTC().Format(time.RFC3339), s.Symbol, verb, s.Price, s.Label())
}

// Skip records a check that could not run because an indicator value it
// needs is undefined. Index is the candle index of the missing value; it is
// -1 when the frame has no previous candle.
type Skip struct {
	Check     Kind   `json:"check"`
	Indicator string `json:"indicator"`
	Index     int    `json:"index"`
}

func (s Skip) String() string {
	return fmt.Sprintf("%s skipped: %s undefined at index %d", s.Check, s.Indicator, s.Index)
}

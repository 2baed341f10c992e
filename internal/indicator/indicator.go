// Package indicator computes trend and volatility indicators over a candle
// series: true range and ATR, the Supertrend ratchet, Bollinger Bands and
// exponential moving averages.
//
// Every function is a pure batch computation over one evaluation window;
// nothing is carried between calls. Readings that lack history are
// represented as an undefined Value rather than zero.
package indicator

import (
	"encoding/json"
	"strconv"
)

// Value is a single indicator reading that may be undefined because the
// series is shorter than the indicator's lookback.
type Value struct {
	v  float64
	ok bool
}

// Undefined is the "no value" reading.
var Undefined = Value{}

// Some wraps a defined reading.
func Some(v float64) Value {
	return Value{v: v, ok: true}
}

// OK reports whether the reading is defined.
func (x Value) OK() bool { return x.ok }

// Float returns the reading and whether it is defined.
func (x Value) Float() (float64, bool) { return x.v, x.ok }

// Or returns the reading, or fallback when undefined.
func (x Value) Or(fallback float64) float64 {
	if !x.ok {
		return fallback
	}
	return x.v
}

// String renders the reading with 4 decimals, or "-" when undefined.
func (x Value) String() string {
	if !x.ok {
		return "-"
	}
	return strconv.FormatFloat(x.v, 'f', 4, 64)
}

// MarshalJSON encodes an undefined reading as null.
func (x Value) MarshalJSON() ([]byte, error) {
	if !x.ok {
		return []byte("null"), nil
	}
	return json.Marshal(x.v)
}

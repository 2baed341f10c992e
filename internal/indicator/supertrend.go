package indicator

import (
	"math"

	"trendsignal/internal/model"
)

// TrendState is the finalized Supertrend reading for one candle.
type TrendState struct {
	Upper     Value `json:"upperband"`
	Lower     Value `json:"lowerband"`
	InUptrend bool  `json:"in_uptrend"`
}

// Defined reports whether both finalized bands carry a value.
func (t TrendState) Defined() bool {
	return t.Upper.OK() && t.Lower.OK()
}

// Supertrend holds the band inputs and the ratcheted trend sequence.
type Supertrend struct {
	HL2      []float64
	RawUpper []Value
	RawLower []Value
	States   []TrendState
}

// ComputeSupertrend folds the trend state machine over s in ascending index
// order. atr must be aligned with s.
func ComputeSupertrend(s model.Series, atr []Value, multiplier float64) Supertrend {
	n := len(s)
	st := Supertrend{
		HL2:      make([]float64, n),
		RawUpper: make([]Value, n),
		RawLower: make([]Value, n),
		States:   make([]TrendState, n),
	}
	for i := range s {
		st.HL2[i] = s[i].HL2()
		if a, ok := atr[i].Float(); ok {
			st.RawUpper[i] = Some(st.HL2[i] + multiplier*a)
			st.RawLower[i] = Some(st.HL2[i] - multiplier*a)
		}
	}
	if n == 0 {
		return st
	}

	// Candle 0 starts in an uptrend by convention.
	st.States[0] = TrendState{Upper: st.RawUpper[0], Lower: st.RawLower[0], InUptrend: true}
	for i := 1; i < n; i++ {
		st.States[i] = NextTrend(st.States[i-1], s[i].Close, st.RawUpper[i], st.RawLower[i])
	}
	return st
}

// NextTrend computes the trend state of a candle from the previous finalized
// state, the candle's close and its raw bands.
//
// A close above the previous upper band starts an uptrend, a close below the
// previous lower band starts a downtrend; both reset the bands to raw. Otherwise
// the trend persists and the defending band ratchets: the lower band never
// falls during an uptrend, the upper band never rises during a downtrend.
// An undefined previous band compares as +Inf (upper) or -Inf (lower).
func NextTrend(prev TrendState, close float64, rawUpper, rawLower Value) TrendState {
	next := TrendState{Upper: rawUpper, Lower: rawLower}

	switch {
	case close > prev.Upper.Or(math.Inf(1)):
		next.InUptrend = true
	case close < prev.Lower.Or(math.Inf(-1)):
		next.InUptrend = false
	default:
		next.InUptrend = prev.InUptrend
		if next.InUptrend {
			if rawLower.OK() && prev.Lower.OK() && rawLower.v < prev.Lower.v {
				next.Lower = prev.Lower
			}
		} else if rawUpper.OK() && prev.Upper.OK() && rawUpper.v > prev.Upper.v {
			next.Upper = prev.Upper
		}
	}
	return next
}

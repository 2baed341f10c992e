package indicator

import (
	"math"

	"trendsignal/internal/model"
)

// TrueRange returns the per-candle true range:
//
//	max(high-low, |high-prevClose|, |low-prevClose|)
//
// Index 0 is undefined because it has no previous close.
func TrueRange(s model.Series) []Value {
	out := make([]Value, len(s))
	for i := 1; i < len(s); i++ {
		prevClose := s[i-1].Close
		hl := math.Abs(s[i].High - s[i].Low)
		hc := math.Abs(s[i].High - prevClose)
		lc := math.Abs(s[i].Low - prevClose)
		out[i] = Some(math.Max(hl, math.Max(hc, lc)))
	}
	return out
}

// ATR returns the simple moving average of tr over period samples.
// This is a plain rolling mean, not Wilder's smoothing. An undefined input
// restarts the window, so with TrueRange input the first defined ATR is at
// index period.
func ATR(tr []Value, period int) []Value {
	out := make([]Value, len(tr))
	if period <= 0 {
		return out
	}
	w := newWindow(period)
	for i, x := range tr {
		v, ok := x.Float()
		if !ok {
			w.reset()
			continue
		}
		w.push(v)
		if w.ready() {
			out[i] = Some(w.mean())
		}
	}
	return out
}

package indicator

import (
	"time"

	"trendsignal/internal/model"
)

// Params configures every indicator in a Frame.
type Params struct {
	ATRPeriod     int     `json:"atr_period" yaml:"atr_period"`
	ATRMultiplier float64 `json:"atr_multiplier" yaml:"atr_multiplier"`
	BBPeriod      int     `json:"bb_period" yaml:"bb_period"`
	BBStdDevs     float64 `json:"bb_std_devs" yaml:"bb_std_devs"`
	EWMASpan      int     `json:"ewma_span" yaml:"ewma_span"`
	EMASpan       int     `json:"ema_span" yaml:"ema_span"`
}

// DefaultParams returns Supertrend(10, 3), Bollinger(20, 2), EWMA(12), EMA(10).
func DefaultParams() Params {
	return Params{
		ATRPeriod:     10,
		ATRMultiplier: 3,
		BBPeriod:      20,
		BBStdDevs:     2,
		EWMASpan:      12,
		EMASpan:       10,
	}
}

// MinHistory is the shortest series for which every windowed indicator has
// a defined value at the last candle.
func (p Params) MinHistory() int {
	// ATR needs period true ranges, and true range starts at index 1.
	n := p.ATRPeriod + 1
	if p.BBPeriod > n {
		n = p.BBPeriod
	}
	return n
}

// Frame is the per-candle aligned set of indicator values for one window.
type Frame struct {
	Params  Params
	Candles model.Series

	TrueRange []Value
	ATR       []Value
	Trend     Supertrend
	BB        Bollinger
	EWMA      []float64
	EMA       []float64
}

// Compute derives every indicator for s. The Supertrend fold runs strictly in
// index order; the close-only indicators are independent of it.
func Compute(s model.Series, p Params) *Frame {
	f := &Frame{Params: p, Candles: s}

	f.TrueRange = TrueRange(s)
	f.ATR = ATR(f.TrueRange, p.ATRPeriod)
	f.Trend = ComputeSupertrend(s, f.ATR, p.ATRMultiplier)

	closes := s.Closes()
	f.BB = ComputeBollinger(closes, p.BBPeriod, p.BBStdDevs)
	f.EWMA = EMA(closes, p.EWMASpan)
	f.EMA = EMA(closes, p.EMASpan)
	return f
}

// Len returns the number of candles in the frame.
func (f *Frame) Len() int { return len(f.Candles) }

// Row is a flattened view of one frame index, used for reporting.
type Row struct {
	Index     int       `json:"index"`
	TS        time.Time `json:"ts"`
	Close     float64   `json:"close"`
	TrueRange Value     `json:"true_range"`
	ATR       Value     `json:"atr"`
	HL2       float64   `json:"hl2"`
	Upper     Value     `json:"upperband"`
	Lower     Value     `json:"lowerband"`
	InUptrend bool      `json:"in_uptrend"`
	BBMid     Value     `json:"midband"`
	BBStdDev  Value     `json:"stddev"`
	BBUpper   Value     `json:"upperband_bb"`
	BBLower   Value     `json:"lowerband_bb"`
	EWMA      float64   `json:"ewma"`
	EMA       float64   `json:"ema"`
}

// Row returns the values at index i. i must be in range.
func (f *Frame) Row(i int) Row {
	c := f.Candles[i]
	st := f.Trend.States[i]
	return Row{
		Index:     i,
		TS:        c.TS,
		Close:     c.Close,
		TrueRange: f.TrueRange[i],
		ATR:       f.ATR[i],
		HL2:       f.Trend.HL2[i],
		Upper:     st.Upper,
		Lower:     st.Lower,
		InUptrend: st.InUptrend,
		BBMid:     f.BB.Mid[i],
		BBStdDev:  f.BB.StdDev[i],
		BBUpper:   f.BB.Upper[i],
		BBLower:   f.BB.Lower[i],
		EWMA:      f.EWMA[i],
		EMA:       f.EMA[i],
	}
}

// LastRow returns the row of the newest candle.
func (f *Frame) LastRow() (Row, bool) {
	if f.Len() == 0 {
		return Row{}, false
	}
	return f.Row(f.Len() - 1), true
}

package indicator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"trendsignal/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

var t0 = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func bar(i int, high, low, close float64) model.Candle {
	return model.Candle{
		TS:   t0.Add(time.Duration(i) * 5 * time.Minute),
		Open: close, High: high, Low: low, Close: close,
		Volume: 1,
	}
}

func flatSeries(n int, price float64) model.Series {
	s := make(model.Series, n)
	for i := range s {
		s[i] = bar(i, price, price, price)
	}
	return s
}

// randomWalk returns a deterministic OHLC random walk.
func randomWalk(n int, seed int64) model.Series {
	r := rand.New(rand.NewSource(seed))
	s := make(model.Series, n)
	price := 100.0
	for i := range s {
		open := price
		price += r.NormFloat64() * 2
		high := math.Max(open, price) + r.Float64()*1.5
		low := math.Min(open, price) - r.Float64()*1.5
		s[i] = model.Candle{TS: t0.Add(time.Duration(i) * time.Minute), Open: open, High: high, Low: low, Close: price}
	}
	return s
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

func assertValue(t *testing.T, label string, got Value, want float64) {
	t.Helper()
	v, ok := got.Float()
	if !ok {
		t.Errorf("%s: undefined, want %.6f", label, want)
		return
	}
	assertClose(t, label, v, want, 1e-9)
}

// ────────────────────────────────────────────────────────────
// True range / ATR
// ────────────────────────────────────────────────────────────

func TestTrueRange_HandCalculated(t *testing.T) {
	// c1: hl=3, |12-9|=3, |9-9|=0          → 3
	// c2: hl=1, |11-11|=0, |10-11|=1       → 1
	// c3: hl=3, |15-10.5|=4.5, |12-10.5|=1.5 → 4.5 (gap up)
	// c4: hl=2, |9-14|=5, |7-14|=7         → 7 (gap down)
	s := model.Series{
		bar(0, 10, 8, 9),
		bar(1, 12, 9, 11),
		bar(2, 11, 10, 10.5),
		bar(3, 15, 12, 14),
		bar(4, 9, 7, 8),
	}
	tr := TrueRange(s)
	if tr[0].OK() {
		t.Errorf("true range at 0 should be undefined, got %v", tr[0])
	}
	for i, want := range []float64{3, 1, 4.5, 7} {
		assertValue(t, "TR", tr[i+1], want)
	}

	// ATR(3) is a plain mean: index 3 = (3+1+4.5)/3, index 4 = (1+4.5+7)/3
	atr := ATR(tr, 3)
	for i := 0; i < 3; i++ {
		if atr[i].OK() {
			t.Errorf("atr[%d] should be undefined, got %v", i, atr[i])
		}
	}
	assertValue(t, "ATR(3) idx 3", atr[3], 8.5/3)
	assertValue(t, "ATR(3) idx 4", atr[4], 12.5/3)
}

func TestTrueRange_NeverBelowHighLow(t *testing.T) {
	s := randomWalk(300, 7)
	tr := TrueRange(s)
	for i := 1; i < len(s); i++ {
		v, ok := tr[i].Float()
		if !ok {
			t.Fatalf("tr[%d] undefined", i)
		}
		if v < 0 {
			t.Errorf("tr[%d] = %.6f is negative", i, v)
		}
		if v < math.Abs(s[i].High-s[i].Low) {
			t.Errorf("tr[%d] = %.6f below high-low %.6f", i, v, s[i].High-s[i].Low)
		}
	}
}

func TestATR_IsNotWilderSmoothed(t *testing.T) {
	// A single spike leaves the window after exactly period samples with a
	// simple mean; Wilder smoothing would still carry a residue.
	s := flatSeries(12, 100)
	s[3] = bar(3, 110, 100, 100)
	atr := ATR(TrueRange(s), 3)
	assertValue(t, "ATR while spike in window", atr[5], 10.0/3)
	assertValue(t, "ATR after spike leaves", atr[7], 0)
}

func TestATR_ShortSeriesUndefined(t *testing.T) {
	for l := 1; l < 10; l++ {
		f := Compute(randomWalk(l, int64(l)), DefaultParams())
		for i := 0; i < l; i++ {
			if f.ATR[i].OK() {
				t.Errorf("len=%d: atr[%d] should be undefined", l, i)
			}
			if f.Trend.States[i].Upper.OK() || f.Trend.States[i].Lower.OK() {
				t.Errorf("len=%d: supertrend bands at %d should be undefined", l, i)
			}
		}
	}
}

// ────────────────────────────────────────────────────────────
// Bollinger Bands
// ────────────────────────────────────────────────────────────

func TestBollinger_HandCalculated(t *testing.T) {
	// Window 4 over 2,4,4,4 → mean 3.5, sample var = (2.25+.25*3)/3 = 1
	// Next window 4,4,4,5 → mean 4.25, sample var = (.0625*3+.5625)/3 = .25
	bb := ComputeBollinger([]float64{2, 4, 4, 4, 5}, 4, 2)
	for i := 0; i < 3; i++ {
		if bb.Mid[i].OK() || bb.StdDev[i].OK() {
			t.Errorf("bb[%d] should be undefined", i)
		}
	}
	assertValue(t, "mid[3]", bb.Mid[3], 3.5)
	assertValue(t, "std[3]", bb.StdDev[3], 1)
	assertValue(t, "upper[3]", bb.Upper[3], 5.5)
	assertValue(t, "lower[3]", bb.Lower[3], 1.5)
	assertValue(t, "mid[4]", bb.Mid[4], 4.25)
	assertValue(t, "std[4]", bb.StdDev[4], 0.5)
}

func TestBollinger_UndefinedBeforeWindow(t *testing.T) {
	f := Compute(randomWalk(25, 3), DefaultParams())
	for i := 0; i < 19; i++ {
		if f.BB.Mid[i].OK() {
			t.Errorf("midband[%d] should be undefined", i)
		}
	}
	for i := 19; i < 25; i++ {
		if !f.BB.Mid[i].OK() {
			t.Errorf("midband[%d] should be defined", i)
		}
	}
}

func TestBollinger_BandOrdering(t *testing.T) {
	f := Compute(randomWalk(500, 11), DefaultParams())
	for i := range f.Candles {
		lo, ok1 := f.BB.Lower[i].Float()
		mid, ok2 := f.BB.Mid[i].Float()
		up, ok3 := f.BB.Upper[i].Float()
		if !(ok1 && ok2 && ok3) {
			continue
		}
		if lo > mid || mid > up {
			t.Errorf("idx %d: lower %.6f mid %.6f upper %.6f out of order", i, lo, mid, up)
		}
	}
}

// ────────────────────────────────────────────────────────────
// EMA
// ────────────────────────────────────────────────────────────

func TestEMA_HandCalculated(t *testing.T) {
	// span 3 → alpha 0.5, seeded with the first close (no SMA warm-up)
	// 100, 102 → 101, 104 → 102.5, 103 → 102.75
	got := EMA([]float64{100, 102, 104, 103}, 3)
	for i, want := range []float64{100, 101, 102.5, 102.75} {
		assertClose(t, "EMA(3)", got[i], want, 1e-12)
	}
}

func TestEMA_Reconstruction(t *testing.T) {
	s := randomWalk(200, 5)
	closes := s.Closes()
	for _, span := range []int{10, 12} {
		ema := EMA(closes, span)
		alpha := 2 / float64(span+1)
		assertClose(t, "ema[0]", ema[0], closes[0], 0)
		for i := 1; i < len(closes); i++ {
			want := alpha*closes[i] + (1-alpha)*ema[i-1]
			assertClose(t, "ema recursion", ema[i], want, 1e-9)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Scenarios
// ────────────────────────────────────────────────────────────

func TestFrame_FlatSeriesCollapses(t *testing.T) {
	f := Compute(flatSeries(25, 100), DefaultParams())
	for i := 19; i < 25; i++ {
		assertValue(t, "stddev", f.BB.StdDev[i], 0)
		assertValue(t, "upper_bb", f.BB.Upper[i], 100)
		assertValue(t, "lower_bb", f.BB.Lower[i], 100)
		assertValue(t, "mid", f.BB.Mid[i], 100)
	}
	for i := range f.EWMA {
		assertClose(t, "ewma", f.EWMA[i], 100, 1e-12)
		assertClose(t, "ema", f.EMA[i], 100, 1e-12)
	}
}

func TestFrame_SingleCandle(t *testing.T) {
	f := Compute(flatSeries(1, 100), DefaultParams())
	if f.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", f.Len())
	}
	row, ok := f.LastRow()
	if !ok {
		t.Fatal("expected a last row")
	}
	if row.TrueRange.OK() || row.ATR.OK() || row.Upper.OK() || row.Lower.OK() || row.BBMid.OK() {
		t.Errorf("expected windowed indicators undefined, got %+v", row)
	}
	if !row.InUptrend {
		t.Error("candle 0 should start in an uptrend")
	}
}

func TestFrame_Empty(t *testing.T) {
	f := Compute(model.Series{}, DefaultParams())
	if f.Len() != 0 {
		t.Fatalf("expected empty frame")
	}
	if _, ok := f.LastRow(); ok {
		t.Error("expected no last row")
	}
}

func TestParams_MinHistory(t *testing.T) {
	if got := DefaultParams().MinHistory(); got != 20 {
		t.Errorf("MinHistory = %d, want 20", got)
	}
	p := DefaultParams()
	p.ATRPeriod = 30
	if got := p.MinHistory(); got != 31 {
		t.Errorf("MinHistory = %d, want 31", got)
	}
}

func TestValue_Formatting(t *testing.T) {
	if Undefined.String() != "-" {
		t.Errorf("undefined renders as %q", Undefined.String())
	}
	if Some(1.5).String() != "1.5000" {
		t.Errorf("got %q", Some(1.5).String())
	}
	b, _ := Undefined.MarshalJSON()
	if string(b) != "null" {
		t.Errorf("undefined JSON = %s", b)
	}
	if Undefined.Or(7) != 7 || Some(3).Or(7) != 3 {
		t.Error("Or fallback broken")
	}
}

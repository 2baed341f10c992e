package indicator

import "gonum.org/v1/gonum/stat"

// Bollinger holds Bollinger Band series aligned with the input closes.
type Bollinger struct {
	Mid    []Value
	StdDev []Value
	Upper  []Value
	Lower  []Value
}

// ComputeBollinger returns bands of k sample standard deviations (divisor
// n-1) around the period-SMA of closes. Indices below period-1 are undefined.
func ComputeBollinger(closes []float64, period int, k float64) Bollinger {
	n := len(closes)
	bb := Bollinger{
		Mid:    make([]Value, n),
		StdDev: make([]Value, n),
		Upper:  make([]Value, n),
		Lower:  make([]Value, n),
	}
	if period < 2 {
		return bb
	}

	w := newWindow(period)
	scratch := make([]float64, 0, period)
	for i, c := range closes {
		w.push(c)
		if !w.ready() {
			continue
		}
		scratch = w.values(scratch)
		mean, sd := stat.MeanStdDev(scratch, nil)
		bb.Mid[i] = Some(mean)
		bb.StdDev[i] = Some(sd)
		bb.Upper[i] = Some(mean + k*sd)
		bb.Lower[i] = Some(mean - k*sd)
	}
	return bb
}

package indicator

// EMA returns the recursive exponential moving average of closes for the
// given span: alpha = 2/(span+1), ema[0] = closes[0],
// ema[i] = alpha*closes[i] + (1-alpha)*ema[i-1].
//
// Unlike the windowed indicators it is defined from index 0 onward; there is
// no SMA seed.
func EMA(closes []float64, span int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	multiplier := 2.0 / float64(span+1)
	out[0] = closes[0]
	for i := 1; i < len(closes); i++ {
		out[i] = (closes[i] * multiplier) + (out[i-1] * (1 - multiplier))
	}
	return out
}

package indicator

// window is a fixed-size rolling window over float64 samples.
// Uses a preallocated circular buffer and a running sum.
type window struct {
	period int
	buf    []float64 // circular buffer
	idx    int       // next write position
	count  int       // samples received since last reset
	sum    float64
}

func newWindow(period int) *window {
	return &window{
		period: period,
		buf:    make([]float64, period),
	}
}

func (w *window) push(x float64) {
	if w.count >= w.period {
		// Subtract the oldest value being overwritten
		w.sum -= w.buf[w.idx]
	}
	w.buf[w.idx] = x
	w.sum += x
	w.idx = (w.idx + 1) % w.period
	w.count++
}

func (w *window) ready() bool { return w.count >= w.period }

func (w *window) mean() float64 { return w.sum / float64(w.period) }

// values copies the window contents in insertion order into dst.
func (w *window) values(dst []float64) []float64 {
	dst = dst[:0]
	if !w.ready() {
		return append(dst, w.buf[:w.count]...)
	}
	dst = append(dst, w.buf[w.idx:]...)
	return append(dst, w.buf[:w.idx]...)
}

func (w *window) reset() {
	w.idx = 0
	w.count = 0
	w.sum = 0
	for i := range w.buf {
		w.buf[i] = 0
	}
}

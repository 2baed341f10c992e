package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"trendsignal/internal/indicator"
	"trendsignal/internal/logger"
	"trendsignal/internal/model"
)

// ErrPositionUnavailable is returned when the position oracle cannot be read.
var ErrPositionUnavailable = errors.New("position unavailable")

// PositionOracle reports the current exposure for a symbol.
type PositionOracle interface {
	CurrentPosition(ctx context.Context, symbol string) (model.PositionState, error)
}

// PositionMode controls how often the oracle is read during one evaluation.
type PositionMode string

const (
	// PositionSnapshot reads the position once, before the first check.
	PositionSnapshot PositionMode = "snapshot"
	// PositionReread reads the position again before every check, so a
	// fill caused by an earlier check can gate the later ones.
	PositionReread PositionMode = "reread"
)

// ParsePositionMode parses "snapshot" or "reread". Empty means snapshot.
func ParsePositionMode(s string) (PositionMode, error) {
	switch PositionMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", PositionSnapshot:
		return PositionSnapshot, nil
	case PositionReread:
		return PositionReread, nil
	}
	return "", fmt.Errorf("unknown position mode %q (want snapshot or reread)", s)
}

// Evaluation is the outcome of one evaluation.
type Evaluation struct {
	Signals  []Signal
	Skipped  []Skip
	Position model.PositionState // first position read of the evaluation
}

// Evaluator runs the four checks against the last candle of a frame.
// It holds no state between calls.
type Evaluator struct {
	symbol   string
	mode     PositionMode
	onSignal func(context.Context, Signal)
}

// NewEvaluator creates an evaluator for symbol. An empty mode means snapshot.
func NewEvaluator(symbol string, mode PositionMode) *Evaluator {
	if mode == "" {
		mode = PositionSnapshot
	}
	return &Evaluator{symbol: symbol, mode: mode}
}

// Mode returns the position read mode.
func (e *Evaluator) Mode() PositionMode { return e.mode }

// OnSignal registers fn to run as soon as a check fires, before the next
// check reads the position. In reread mode an order placed by fn is visible
// to the remaining checks.
func (e *Evaluator) OnSignal(fn func(ctx context.Context, sig Signal)) {
	e.onSignal = fn
}

// Evaluate runs every check in CheckOrder and returns the emitted signals in
// that order. A check whose indicator values are undefined is skipped and
// recorded, never treated as a negative. An empty frame yields an empty
// evaluation. Oracle failures abort the evaluation with
// ErrPositionUnavailable; signals collected so far are returned with it.
func (e *Evaluator) Evaluate(ctx context.Context, f *indicator.Frame, oracle PositionOracle) (Evaluation, error) {
	var ev Evaluation
	if f == nil || f.Len() == 0 {
		return ev, nil
	}
	last := f.Len() - 1

	var (
		pos  model.PositionState
		read bool
	)
	position := func() (model.PositionState, error) {
		if read && e.mode == PositionSnapshot {
			return pos, nil
		}
		p, err := oracle.CurrentPosition(ctx, e.symbol)
		if err != nil {
			return model.PositionState{}, fmt.Errorf("%w: %s: %v", ErrPositionUnavailable, e.symbol, err)
		}
		if !read {
			ev.Position = p
		}
		pos, read = p, true
		return p, nil
	}

	for _, kind := range CheckOrder {
		if skip := missingInput(kind, f, last); skip != nil {
			ev.Skipped = append(ev.Skipped, *skip)
			slog.DebugContext(ctx, "check skipped", append(logger.Attrs(ctx),
				"check", string(kind), "indicator", skip.Indicator, "index", skip.Index)...)
			continue
		}

		p, err := position()
		if err != nil {
			return ev, err
		}

		action, reason, ok := decide(kind, f, last, p.Holding())
		if !ok {
			continue
		}
		c := f.Candles[last]
		sig := Signal{
			Strategy: kind,
			Action:   action,
			Symbol:   e.symbol,
			Price:    c.Close,
			TS:       c.TS,
			Index:    last,
			Reason:   reason,
		}
		ev.Signals = append(ev.Signals, sig)
		if e.onSignal != nil {
			e.onSignal(ctx, sig)
		}
	}
	return ev, nil
}

// missingInput returns a Skip when a value the check reads is undefined.
func missingInput(kind Kind, f *indicator.Frame, last int) *Skip {
	switch kind {
	case KindBollinger:
		if !f.BB.Lower[last].OK() || !f.BB.Upper[last].OK() {
			return &Skip{Check: kind, Indicator: "bollinger", Index: last}
		}
	case KindEWMACrossover:
		if last < 1 {
			return &Skip{Check: kind, Indicator: "ewma", Index: last - 1}
		}
	case KindEMACrossover:
		if last < 1 {
			return &Skip{Check: kind, Indicator: "ema", Index: last - 1}
		}
	case KindSupertrend:
		if !f.Trend.States[last].Defined() {
			return &Skip{Check: kind, Indicator: "supertrend", Index: last}
		}
	}
	return nil
}

// decide applies the gated rule of one check. Buys need a flat position,
// sells need a holding one.
func decide(kind Kind, f *indicator.Frame, last int, holding bool) (Action, string, bool) {
	c := f.Candles[last].Close
	switch kind {
	case KindBollinger:
		lower, _ := f.BB.Lower[last].Float()
		upper, _ := f.BB.Upper[last].Float()
		if !holding && c < lower {
			return ActionBuy, fmt.Sprintf("close %.4f below lower band %.4f", c, lower), true
		}
		if holding && c > upper {
			return ActionSell, fmt.Sprintf("close %.4f above upper band %.4f", c, upper), true
		}

	case KindEWMACrossover, KindEMACrossover:
		line, name := f.EWMA, "ewma"
		if kind == KindEMACrossover {
			line, name = f.EMA, "ema"
		}
		prev := last - 1
		pc := f.Candles[prev].Close
		if !holding && crossedAbove(pc, line[prev], c, line[last]) {
			return ActionBuy, fmt.Sprintf("close crossed above %s (%.4f > %.4f)", name, c, line[last]), true
		}
		if holding && crossedBelow(pc, line[prev], c, line[last]) {
			return ActionSell, fmt.Sprintf("close crossed below %s (%.4f < %.4f)", name, c, line[last]), true
		}

	case KindSupertrend:
		st := f.Trend.States[last]
		if !holding && st.InUptrend {
			return ActionBuy, fmt.Sprintf("in uptrend, lower band %s", st.Lower), true
		}
		if holding && !st.InUptrend {
			return ActionSell, fmt.Sprintf("in downtrend, upper band %s", st.Upper), true
		}
	}
	return "", "", false
}

// crossedAbove reports a close moving from at-or-below the line to above it.
func crossedAbove(prevClose, prevLine, close, line float64) bool {
	return prevClose <= prevLine && close > line
}

// crossedBelow reports a close moving from at-or-above the line to below it.
func crossedBelow(prevClose, prevLine, close, line float64) bool {
	return prevClose >= prevLine && close < line
}

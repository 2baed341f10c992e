// Package engine runs the evaluation cycle: fetch candles, compute the
// indicator frame, evaluate the checks, submit one order per signal and
// report the outcome to the publishing, notification and metrics sinks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"trendsignal/internal/execution"
	"trendsignal/internal/indicator"
	"trendsignal/internal/logger"
	"trendsignal/internal/marketdata"
	"trendsignal/internal/metrics"
	"trendsignal/internal/model"
	"trendsignal/internal/notification"
	"trendsignal/internal/strategy"
)

// Config is the per-instrument configuration of a Service.
type Config struct {
	Symbol     string
	Timeframe  string
	FetchLimit int
	// MinCandles is the shortest window evaluated; shorter fetches are
	// reported as data unavailable. 0 disables the check.
	MinCandles   int
	TradeSize    decimal.Decimal
	Params       indicator.Params
	PositionMode strategy.PositionMode
	// SessionOpen reports whether the venue is trading. Run skips ticks
	// while it returns false. Nil means always open.
	SessionOpen func(time.Time) bool
}

// SignalPublisher receives the signals of every cycle.
type SignalPublisher interface {
	Publish(ctx context.Context, cycleID string, sigs []strategy.Signal) error
}

// CandleArchive stores fetched candles.
type CandleArchive interface {
	WriteCandles(ctx context.Context, symbol, timeframe string, candles model.Series) error
}

// Deps are the collaborators of a Service. Source, Oracle and Sink are
// required; the rest may be nil.
type Deps struct {
	Source    marketdata.Source
	Oracle    strategy.PositionOracle
	Sink      execution.OrderSink
	Publisher SignalPublisher
	Notifier  notification.Notifier
	Archive   CandleArchive
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
}

// OrderFailure records a signal whose order the sink refused.
type OrderFailure struct {
	Signal strategy.Signal
	Err    error
}

func (f OrderFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Signal.Label(), f.Err)
}

func (f OrderFailure) Unwrap() error { return f.Err }

// Report summarizes one cycle.
type Report struct {
	CycleID  string
	Candles  int
	Last     indicator.Row // zero when nothing was evaluated
	Position model.PositionState
	Signals  []strategy.Signal
	Acks     []model.OrderAck
	Failures []OrderFailure
	Skipped  []strategy.Skip
}

// Service runs evaluation cycles for one instrument. Cycles are serialized.
type Service struct {
	cfg  Config
	deps Deps
	mu   sync.Mutex

	lastMu   sync.RWMutex
	last     Report
	haveLast bool
}

// New validates the wiring and returns a Service.
func New(cfg Config, deps Deps) (*Service, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("engine: nil candle source")
	case deps.Oracle == nil:
		return nil, errors.New("engine: nil position oracle")
	case deps.Sink == nil:
		return nil, errors.New("engine: nil order sink")
	case cfg.Symbol == "":
		return nil, errors.New("engine: empty symbol")
	case !cfg.TradeSize.IsPositive():
		return nil, fmt.Errorf("engine: trade size %s must be positive", cfg.TradeSize)
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 1500
	}
	if cfg.PositionMode == "" {
		cfg.PositionMode = strategy.PositionSnapshot
	}
	return &Service{cfg: cfg, deps: deps}, nil
}

// RunCycle performs one evaluation. A fetch or validation failure aborts the
// cycle with an error wrapping marketdata.ErrDataUnavailable before anything
// is evaluated. An order failure never aborts the cycle; it is recorded in
// Report.Failures and the remaining signals are still submitted.
func (s *Service) RunCycle(ctx context.Context) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	cycleID := logger.NewCycleID(s.cfg.Symbol, start)
	ctx = logger.WithCycleID(ctx, cycleID)
	rep := Report{CycleID: cycleID}
	defer func() { s.storeLast(rep) }()

	series, err := s.fetch(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "cycle aborted", append(logger.Attrs(ctx),
			"symbol", s.cfg.Symbol, "timeframe", s.cfg.Timeframe, "error", err)...)
		s.finish(metrics.ResultDataUnavailable, start, time.Time{}, err)
		return rep, err
	}
	rep.Candles = len(series)

	f := indicator.Compute(series, s.cfg.Params)
	rep.Last, _ = f.LastRow()
	if m := s.deps.Metrics; m != nil {
		m.CandlesEvaluated.Set(float64(len(series)))
		m.SetTrend(rep.Last.InUptrend, f.Trend.States[f.Len()-1].Defined())
	}

	eval := strategy.NewEvaluator(s.cfg.Symbol, s.cfg.PositionMode)
	eval.OnSignal(func(ctx context.Context, sig strategy.Signal) {
		s.execute(ctx, sig, &rep)
	})
	ev, err := eval.Evaluate(ctx, f, s.deps.Oracle)
	rep.Position = ev.Position
	rep.Signals = ev.Signals
	rep.Skipped = ev.Skipped
	if m := s.deps.Metrics; m != nil {
		for _, sk := range ev.Skipped {
			m.SkippedChecksTotal.WithLabelValues(string(sk.Check)).Inc()
		}
	}

	s.publish(ctx, rep.Signals)

	lastTS := series[len(series)-1].TS
	if err != nil {
		slog.ErrorContext(ctx, "evaluation failed", append(logger.Attrs(ctx), "error", err)...)
		s.finish(metrics.ResultError, start, lastTS, err)
		return rep, err
	}

	slog.InfoContext(ctx, "cycle complete", append(logger.Attrs(ctx),
		"symbol", s.cfg.Symbol,
		"candles", rep.Candles,
		"close", rep.Last.Close,
		"in_uptrend", rep.Last.InUptrend,
		"position", rep.Position.String(),
		"signals", len(rep.Signals),
		"order_failures", len(rep.Failures),
		"skipped", len(rep.Skipped),
		"duration_ms", time.Since(start).Milliseconds(),
	)...)
	s.finish(metrics.ResultOK, start, lastTS, nil)
	return rep, nil
}

func (s *Service) storeLast(rep Report) {
	s.lastMu.Lock()
	s.last, s.haveLast = rep, true
	s.lastMu.Unlock()
}

// LastReport returns the report of the most recent cycle, including cycles
// that failed. ok is false before the first cycle.
func (s *Service) LastReport() (rep Report, ok bool) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last, s.haveLast
}

func (s *Service) fetch(ctx context.Context) (model.Series, error) {
	fetchStart := time.Now()
	series, err := s.deps.Source.Fetch(ctx, s.cfg.Symbol, s.cfg.Timeframe, s.cfg.FetchLimit)
	if m := s.deps.Metrics; m != nil {
		m.FetchDuration.Observe(time.Since(fetchStart).Seconds())
	}
	if err != nil {
		return nil, marketdata.Unavailable(s.cfg.Symbol, s.cfg.Timeframe, err)
	}
	if len(series) == 0 {
		return nil, marketdata.Unavailable(s.cfg.Symbol, s.cfg.Timeframe, errors.New("empty series"))
	}
	if err := series.Validate(); err != nil {
		return nil, marketdata.Unavailable(s.cfg.Symbol, s.cfg.Timeframe, err)
	}
	if s.cfg.MinCandles > 0 && len(series) < s.cfg.MinCandles {
		return nil, marketdata.Unavailable(s.cfg.Symbol, s.cfg.Timeframe,
			fmt.Errorf("got %d candles, need %d", len(series), s.cfg.MinCandles))
	}

	if s.deps.Archive != nil {
		if err := s.deps.Archive.WriteCandles(ctx, s.cfg.Symbol, s.cfg.Timeframe, series); err != nil {
			slog.WarnContext(ctx, "candle archive write failed", append(logger.Attrs(ctx), "error", err)...)
		}
	}
	return series, nil
}

// execute submits the order for one signal and reports it.
func (s *Service) execute(ctx context.Context, sig strategy.Signal, rep *Report) {
	slog.InfoContext(ctx, sig.String(), append(logger.Attrs(ctx),
		"strategy", string(sig.Strategy), "action", string(sig.Action), "reason", sig.Reason)...)
	if m := s.deps.Metrics; m != nil {
		m.SignalsTotal.WithLabelValues(string(sig.Strategy), string(sig.Action)).Inc()
	}

	req := model.OrderRequest{
		Symbol:   sig.Symbol,
		Side:     sig.Side(),
		Qty:      s.cfg.TradeSize,
		RefPrice: sig.Price,
		Strategy: string(sig.Strategy),
		Reason:   sig.Reason,
	}
	ack, err := s.deps.Sink.Submit(ctx, req)
	if err != nil {
		rep.Failures = append(rep.Failures, OrderFailure{Signal: sig, Err: err})
		slog.WarnContext(ctx, "order failed", append(logger.Attrs(ctx),
			"strategy", string(sig.Strategy), "side", string(req.Side), "qty", req.Qty.String(), "error", err)...)
		if m := s.deps.Metrics; m != nil {
			m.OrderFailuresTotal.WithLabelValues(string(sig.Strategy)).Inc()
		}
		s.notify(ctx, notification.OrderFailureAlert(logger.CycleID(ctx), sig, err))
		return
	}

	rep.Acks = append(rep.Acks, ack)
	slog.InfoContext(ctx, "order submitted", append(logger.Attrs(ctx),
		"order_id", ack.OrderID, "status", ack.Status, "side", string(ack.Side), "qty", ack.Qty.String())...)
	s.notify(ctx, notification.SignalAlert(logger.CycleID(ctx), sig))
}

func (s *Service) publish(ctx context.Context, sigs []strategy.Signal) {
	if s.deps.Publisher == nil || len(sigs) == 0 {
		return
	}
	if err := s.deps.Publisher.Publish(ctx, logger.CycleID(ctx), sigs); err != nil {
		slog.WarnContext(ctx, "signal publish failed", append(logger.Attrs(ctx), "error", err)...)
	}
}

func (s *Service) notify(ctx context.Context, alert notification.Alert) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.Send(ctx, alert); err != nil {
		slog.WarnContext(ctx, "notification failed", append(logger.Attrs(ctx), "error", err)...)
	}
}

func (s *Service) finish(result string, start, lastCandle time.Time, err error) {
	if m := s.deps.Metrics; m != nil {
		m.ObserveCycle(result, start)
	}
	if h := s.deps.Health; h != nil {
		h.RecordCycle(result, lastCandle, err)
	}
}

// Run executes a cycle immediately and then once per interval until ctx is
// done. Failed cycles are logged and the loop continues. Ticks outside the
// trading session are skipped. A non-positive interval runs a single cycle
// and returns its error.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		_, err := s.RunCycle(ctx)
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("engine started", "symbol", s.cfg.Symbol, "timeframe", s.cfg.Timeframe,
		"interval", interval.String(), "position_mode", string(s.cfg.PositionMode))
	for {
		if s.cfg.SessionOpen == nil || s.cfg.SessionOpen(time.Now()) {
			_, _ = s.RunCycle(ctx)
		} else {
			slog.Debug("session closed, cycle skipped", "symbol", s.cfg.Symbol)
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopped", "symbol", s.cfg.Symbol)
			return nil
		case <-ticker.C:
		}
	}
}

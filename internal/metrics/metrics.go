// Package metrics exposes Prometheus metrics and the /healthz endpoint of the
// trend bot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cycle results used as the "result" label of CyclesTotal.
const (
	ResultOK              = "ok"
	ResultDataUnavailable = "data_unavailable"
	ResultError           = "error"
)

// Metrics holds all Prometheus metrics for the evaluation loop.
type Metrics struct {
	CyclesTotal        *prometheus.CounterVec // labels: result
	SignalsTotal       *prometheus.CounterVec // labels: strategy, action
	OrderFailuresTotal *prometheus.CounterVec // labels: strategy
	SkippedChecksTotal *prometheus.CounterVec // labels: check
	CycleDuration      prometheus.Histogram
	FetchDuration      prometheus.Histogram
	LastCycleTimestamp prometheus.Gauge
	CandlesEvaluated   prometheus.Gauge
	InUptrend          prometheus.Gauge // 1 = uptrend, 0 = downtrend, -1 = undefined

	// Signal publishing circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedSignals     prometheus.Counter
}

// New creates all metrics and registers them on reg. A nil reg registers on
// the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendbot_cycles_total",
			Help: "Evaluation cycles by result (ok, data_unavailable, error)",
		}, []string{"result"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendbot_signals_total",
			Help: "Signals emitted by strategy and action",
		}, []string{"strategy", "action"}),
		OrderFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendbot_order_failures_total",
			Help: "Orders rejected by the order sink, by strategy",
		}, []string{"strategy"}),
		SkippedChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendbot_skipped_checks_total",
			Help: "Checks skipped because an indicator value was undefined",
		}, []string{"check"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trendbot_cycle_duration_seconds",
			Help:    "Wall time of one evaluation cycle including I/O",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trendbot_fetch_duration_seconds",
			Help:    "Candle fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		LastCycleTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trendbot_last_cycle_timestamp_seconds",
			Help: "Unix time of the last completed cycle",
		}),
		CandlesEvaluated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trendbot_candles_evaluated",
			Help: "Number of candles in the last evaluated window",
		}),
		InUptrend: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trendbot_in_uptrend",
			Help: "Supertrend direction at the last candle (1=up, 0=down, -1=undefined)",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trendbot_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendbot_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendbot_redis_buffered_signals_total",
			Help: "Signals buffered locally while the Redis circuit breaker was open",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.SignalsTotal,
		m.OrderFailuresTotal,
		m.SkippedChecksTotal,
		m.CycleDuration,
		m.FetchDuration,
		m.LastCycleTimestamp,
		m.CandlesEvaluated,
		m.InUptrend,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedSignals,
	)

	m.InUptrend.Set(-1)
	return m
}

// ObserveCycle records the outcome and duration of one cycle.
func (m *Metrics) ObserveCycle(result string, start time.Time) {
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(time.Since(start).Seconds())
	m.LastCycleTimestamp.Set(float64(time.Now().Unix()))
}

// SetTrend records the Supertrend direction; defined=false means undefined.
func (m *Metrics) SetTrend(inUptrend, defined bool) {
	switch {
	case !defined:
		m.InUptrend.Set(-1)
	case inUptrend:
		m.InUptrend.Set(1)
	default:
		m.InUptrend.Set(0)
	}
}

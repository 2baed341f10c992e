package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"trendsignal/config"
	"trendsignal/internal/broker/alpaca"
	"trendsignal/internal/engine"
	"trendsignal/internal/execution"
	"trendsignal/internal/marketdata"
	"trendsignal/internal/markethours"
	"trendsignal/internal/metrics"
	"trendsignal/internal/notification"
	"trendsignal/internal/portfolio"
	redisstore "trendsignal/internal/store/redis"
	sqlitestore "trendsignal/internal/store/sqlite"
	"trendsignal/internal/strategy"
)

// app holds every wired collaborator of a running bot and the cleanup for
// each of them.
type app struct {
	cfg     config.Config
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	health  *metrics.HealthStatus

	source    marketdata.Source
	oracle    strategy.PositionOracle
	sink      execution.OrderSink
	publisher *redisstore.Publisher
	redisW    *redisstore.Writer
	archive   *sqlitestore.Writer
	notifier  notification.Notifier

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("[trendbot] close: %v", err)
		}
	}
}

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

func openArchive(path string) (*sqlitestore.Writer, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return sqlitestore.New(sqlitestore.WriterConfig{DBPath: path})
}

// newSource builds the configured candle source.
func newSource(cfg config.Config) (marketdata.Source, func() error, error) {
	switch cfg.DataSource {
	case config.SourceSQLite:
		r, err := sqlitestore.NewReader(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open candle store: %w", err)
		}
		return r, r.Close, nil
	default:
		src := alpaca.NewSource(alpaca.SourceConfig{
			APIKey:     cfg.AlpacaKey,
			APISecret:  cfg.AlpacaSecret,
			AssetClass: cfg.AssetClass,
		})
		return src, func() error { return nil }, nil
	}
}

// buildApp wires the full engine dependency graph from cfg.
func buildApp(cfg config.Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		reg:    prometheus.NewRegistry(),
		health: metrics.NewHealthStatus(),
	}
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.reg)

	src, closeSrc, err := newSource(cfg)
	if err != nil {
		return nil, err
	}
	a.source = src
	a.closers = append(a.closers, closeSrc)

	switch cfg.Broker {
	case config.BrokerAlpaca:
		b := alpaca.NewBroker(alpaca.TradingConfig{
			APIKey:     cfg.AlpacaKey,
			APISecret:  cfg.AlpacaSecret,
			BaseURL:    cfg.AlpacaBaseURL,
			AssetClass: cfg.AssetClass,
		})
		a.oracle, a.sink = b, b
		log.Printf("[trendbot] broker: alpaca (%s)", cfg.AlpacaBaseURL)
	default:
		book := portfolio.New()
		var journal *execution.Journal
		if cfg.JournalPath != "" {
			if err = ensureDir(cfg.JournalPath); err == nil {
				journal, err = execution.NewJournal(cfg.JournalPath)
			}
			if err != nil {
				log.Printf("[trendbot] WARNING: trade journal disabled: %v", err)
			} else {
				a.closers = append(a.closers, journal.Close)
			}
		}
		a.oracle = book
		a.sink = execution.NewPaperExecutor(book, cfg.PaperSlippageBp, journal)
		log.Printf("[trendbot] broker: paper (slippage %d bps)", cfg.PaperSlippageBp)
	}

	// Fetched candles are archived whenever they come from the venue.
	if cfg.DataSource != config.SourceSQLite && cfg.SQLitePath != "" {
		w, err := openArchive(cfg.SQLitePath)
		if err != nil {
			log.Printf("[trendbot] WARNING: candle archive disabled: %v", err)
		} else {
			a.archive = w
			a.closers = append(a.closers, w.Close)
			a.health.SQLiteEnabled = true
		}
	}

	if cfg.RedisAddr != "" {
		w, err := redisstore.New(redisstore.WriterConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Printf("[trendbot] WARNING: signal publishing disabled: %v", err)
		} else {
			cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
			cb.OnStateChange = func(from, to redisstore.State) {
				a.metrics.RedisCircuitBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					a.metrics.RedisCircuitBreakerTrips.Inc()
				}
				log.Printf("[trendbot] redis circuit %s -> %s", from, to)
			}
			a.redisW = w
			a.publisher = redisstore.NewPublisher(w, cb, 1000)
			a.publisher.OnBuffer = a.metrics.RedisBufferedSignals.Inc
			a.closers = append(a.closers, w.Close)
			a.health.RedisEnabled = true
		}
	}

	notifiers := notification.Multi{notification.NewLogNotifier()}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramBotToken != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	a.notifier = notifiers

	return a, nil
}

// engine builds the evaluation service over the wired collaborators.
func (a *app) engine() (*engine.Service, error) {
	mode, err := strategy.ParsePositionMode(a.cfg.PositionMode)
	if err != nil {
		return nil, err
	}
	deps := engine.Deps{
		Source:   a.source,
		Oracle:   a.oracle,
		Sink:     a.sink,
		Notifier: a.notifier,
		Metrics:  a.metrics,
		Health:   a.health,
	}
	// Typed nils must not reach the engine's optional interfaces.
	if a.publisher != nil {
		deps.Publisher = a.publisher
	}
	if a.archive != nil {
		deps.Archive = a.archive
	}
	ecfg := engine.Config{
		Symbol:       a.cfg.Symbol,
		Timeframe:    a.cfg.Timeframe,
		FetchLimit:   a.cfg.FetchLimit,
		MinCandles:   a.cfg.RequiredCandles(),
		TradeSize:    a.cfg.TradeSize,
		Params:       a.cfg.Params(),
		PositionMode: mode,
	}
	if a.cfg.AssetClass == config.AssetEquity {
		ecfg.SessionOpen = markethours.IsMarketOpen
		now := time.Now()
		if !markethours.CalendarCovers(now) {
			log.Printf("[trendbot] WARNING: holiday calendar ends %d; extend internal/markethours", markethours.LastCalendarYear())
		}
		log.Printf("[trendbot] %s", markethours.StatusString(now))
	}
	return engine.New(ecfg, deps)
}

func (a *app) redisClient() *goredis.Client {
	if a.redisW == nil {
		return nil
	}
	return a.redisW.Client()
}

func (a *app) sqlDB() *sql.DB {
	if a.archive == nil {
		return nil
	}
	return a.archive.DB()
}

var errNoRedis = errors.New("REDIS_ADDR is not set")

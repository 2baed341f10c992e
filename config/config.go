package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"trendsignal/internal/indicator"
	"trendsignal/internal/marketdata"
	"trendsignal/internal/strategy"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

const (
	AssetCrypto = "crypto"
	AssetEquity = "equity"

	BrokerPaper  = "paper"
	BrokerAlpaca = "alpaca"

	SourceAlpaca = "alpaca"
	SourceSQLite = "sqlite"
)

// Config holds all application configuration. It is built once by Load and
// passed by value afterwards.
type Config struct {
	// Instrument
	Symbol     string          `yaml:"symbol"`
	AssetClass string          `yaml:"asset_class"`
	Timeframe  string          `yaml:"timeframe"`
	FetchLimit int             `yaml:"fetch_limit"`
	TradeSize  decimal.Decimal `yaml:"-"`

	// Indicators
	Indicators indicator.Params `yaml:"indicators"`

	// Evaluation
	PositionMode string `yaml:"position_mode"`
	MinCandles   int    `yaml:"min_candles"`

	// Venue
	Broker          string `yaml:"broker"`
	DataSource      string `yaml:"data_source"`
	AlpacaKey       string `yaml:"alpaca_key"`
	AlpacaSecret    string `yaml:"alpaca_secret"`
	AlpacaBaseURL   string `yaml:"alpaca_base_url"`
	PaperSlippageBp int64  `yaml:"paper_slippage_bps"`

	// Infrastructure
	SQLitePath    string `yaml:"sqlite_path"`
	JournalPath   string `yaml:"journal_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	MetricsAddr   string `yaml:"metrics_addr"`

	// Notifications
	WebhookURL       string `yaml:"webhook_url"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`

	// Scheduling
	Interval time.Duration `yaml:"interval"`
	LogLevel string        `yaml:"log_level"`
}

// fileConfig mirrors Config for YAML decoding; trade_size is kept as a string
// so that decimal quantities survive the round trip exactly.
type fileConfig struct {
	Config    `yaml:",inline"`
	TradeSize string `yaml:"trade_size"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Symbol:       "BTC/USD",
		AssetClass:   AssetCrypto,
		Timeframe:    "5m",
		FetchLimit:   1500,
		TradeSize:    decimal.RequireFromString("0.0004"),
		Indicators:   indicator.DefaultParams(),
		PositionMode: string(strategy.PositionSnapshot),
		Broker:       BrokerPaper,
		DataSource:   SourceAlpaca,

		AlpacaBaseURL: "https://paper-api.alpaca.markets",
		SQLitePath:    "data/candles.db",
		JournalPath:   "data/trades.db",
		MetricsAddr:   ":9090",
		LogLevel:      "info",
	}
}

// Load reads the configuration like Read and validates it for running the
// bot.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read reads an optional .env file, then the YAML file at path (or
// CONFIG_FILE when path is empty), then environment variables. Environment
// variables win over the file. The result is not validated.
func Read(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] .env not loaded: %v", err)
	}

	cfg := Defaults()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		var err error
		if cfg, err = LoadFile(path, cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML document at path onto base.
func LoadFile(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	fc := fileConfig{Config: base}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	cfg := fc.Config
	cfg.TradeSize = base.TradeSize
	if fc.TradeSize != "" {
		d, err := decimal.NewFromString(fc.TradeSize)
		if err != nil {
			return Config{}, fmt.Errorf("%w: trade_size %q: %v", ErrInvalidConfig, fc.TradeSize, err)
		}
		cfg.TradeSize = d
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg.Symbol = getEnv("SYMBOL", cfg.Symbol)
	cfg.AssetClass = strings.ToLower(getEnv("ASSET_CLASS", cfg.AssetClass))
	cfg.Timeframe = getEnv("TIMEFRAME", cfg.Timeframe)
	cfg.FetchLimit = getEnvInt("FETCHING_LIMIT", cfg.FetchLimit, collect)
	cfg.TradeSize = getEnvDecimal("TRADE_SIZE", cfg.TradeSize, collect)

	p := &cfg.Indicators
	p.ATRPeriod = getEnvInt("ATR_PERIOD", p.ATRPeriod, collect)
	p.ATRMultiplier = getEnvFloat("ATR_MULTIPLIER", p.ATRMultiplier, collect)
	p.BBPeriod = getEnvInt("BB_PERIOD", p.BBPeriod, collect)
	p.BBStdDevs = getEnvFloat("BB_STD_DEVS", p.BBStdDevs, collect)
	p.EWMASpan = getEnvInt("EWMA_SPAN", p.EWMASpan, collect)
	p.EMASpan = getEnvInt("EMA_SPAN", p.EMASpan, collect)

	cfg.PositionMode = strings.ToLower(getEnv("POSITION_MODE", cfg.PositionMode))
	cfg.MinCandles = getEnvInt("MIN_CANDLES", cfg.MinCandles, collect)

	cfg.Broker = strings.ToLower(getEnv("BROKER", cfg.Broker))
	cfg.DataSource = strings.ToLower(getEnv("DATA_SOURCE", cfg.DataSource))
	cfg.AlpacaKey = getEnv("APCA_API_KEY_ID", cfg.AlpacaKey)
	cfg.AlpacaSecret = getEnv("APCA_API_SECRET_KEY", cfg.AlpacaSecret)
	cfg.AlpacaBaseURL = getEnv("APCA_API_BASE_URL", cfg.AlpacaBaseURL)
	slip := getEnvInt("PAPER_SLIPPAGE_BPS", int(cfg.PaperSlippageBp), collect)
	cfg.PaperSlippageBp = int64(slip)

	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)
	cfg.JournalPath = getEnv("JOURNAL_PATH", cfg.JournalPath)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.MetricsAddr = getEnv("METRICS_ADDR", cfg.MetricsAddr)

	cfg.WebhookURL = getEnv("WEBHOOK_URL", cfg.WebhookURL)
	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	cfg.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", cfg.TelegramChatID)

	cfg.Interval = getEnvDuration("INTERVAL", cfg.Interval, collect)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ValidateStore checks only what writing to the candle store needs, so
// offline commands run without venue credentials.
func (c Config) ValidateStore() error {
	var errs []error
	if strings.TrimSpace(c.Symbol) == "" {
		errs = append(errs, errors.New("symbol is empty"))
	}
	if _, err := marketdata.ParseTimeframe(c.Timeframe); err != nil {
		errs = append(errs, fmt.Errorf("timeframe: %w", err))
	}
	if c.SQLitePath == "" {
		errs = append(errs, errors.New("candle store needs SQLITE_PATH"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Symbol) == "" {
		bad("symbol is empty")
	}
	switch c.AssetClass {
	case AssetCrypto, AssetEquity:
	default:
		bad("asset class %q must be crypto or equity", c.AssetClass)
	}
	if _, err := marketdata.ParseTimeframe(c.Timeframe); err != nil {
		bad("timeframe: %v", err)
	}
	if c.FetchLimit <= 0 {
		bad("fetch limit %d must be positive", c.FetchLimit)
	}
	if !c.TradeSize.IsPositive() {
		bad("trade size %s must be positive", c.TradeSize)
	}

	p := c.Indicators
	if p.ATRPeriod <= 0 {
		bad("atr period %d must be positive", p.ATRPeriod)
	}
	if p.ATRMultiplier <= 0 {
		bad("atr multiplier %g must be positive", p.ATRMultiplier)
	}
	if p.BBPeriod < 2 {
		bad("bollinger period %d must be at least 2", p.BBPeriod)
	}
	if p.BBStdDevs <= 0 {
		bad("bollinger std devs %g must be positive", p.BBStdDevs)
	}
	if p.EWMASpan <= 0 || p.EMASpan <= 0 {
		bad("ewma/ema spans (%d, %d) must be positive", p.EWMASpan, p.EMASpan)
	}

	if _, err := strategy.ParsePositionMode(c.PositionMode); err != nil {
		bad("%v", err)
	}
	if c.MinCandles < 0 {
		bad("min candles %d must not be negative", c.MinCandles)
	}

	switch c.Broker {
	case BrokerPaper:
	case BrokerAlpaca:
		if c.AlpacaKey == "" || c.AlpacaSecret == "" {
			bad("alpaca broker needs APCA_API_KEY_ID and APCA_API_SECRET_KEY")
		}
	default:
		bad("broker %q must be paper or alpaca", c.Broker)
	}
	switch c.DataSource {
	case SourceAlpaca:
		if c.AlpacaKey == "" || c.AlpacaSecret == "" {
			bad("alpaca data source needs APCA_API_KEY_ID and APCA_API_SECRET_KEY")
		}
	case SourceSQLite:
		if c.SQLitePath == "" {
			bad("sqlite data source needs SQLITE_PATH")
		}
	default:
		bad("data source %q must be alpaca or sqlite", c.DataSource)
	}
	if (c.TelegramBotToken == "") != (c.TelegramChatID == "") {
		bad("telegram needs both TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
	}
	if c.Interval < 0 {
		bad("interval %s must not be negative", c.Interval)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Params returns the indicator parameters.
func (c Config) Params() indicator.Params { return c.Indicators }

// RequiredCandles is MinCandles, or the indicator warm-up when MinCandles is 0.
func (c Config) RequiredCandles() int {
	if c.MinCandles > 0 {
		return c.MinCandles
	}
	return c.Indicators.MinHistory()
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int, onErr func(error)) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		onErr(fmt.Errorf("%s=%q: not an integer", key, v))
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64, onErr func(error)) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		onErr(fmt.Errorf("%s=%q: not a number", key, v))
		return fallback
	}
	return f
}

func getEnvDecimal(key string, fallback decimal.Decimal, onErr func(error)) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		onErr(fmt.Errorf("%s=%q: not a decimal", key, v))
		return fallback
	}
	return d
}

func getEnvDuration(key string, fallback time.Duration, onErr func(error)) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		onErr(fmt.Errorf("%s=%q: not a duration", key, v))
		return fallback
	}
	return d
}

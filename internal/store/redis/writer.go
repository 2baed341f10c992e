// Package redis publishes evaluation signals to Redis and reads them back.
//
// Each signal is appended to a per-symbol stream, published on a per-symbol
// Pub/Sub channel and stored as the symbol's latest signal:
//
//	XADD    signals:{symbol}
//	PUBLISH pub:signals:{symbol}
//	SET     signal:latest:{symbol}
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"trendsignal/internal/strategy"

	goredis "github.com/go-redis/redis/v8"
)

const (
	signalStreamMaxLen = 10000
	defaultLatestTTL   = 24 * time.Hour
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// SignalMessage is the wire form of one signal.
type SignalMessage struct {
	CycleID  string    `json:"cycle_id"`
	Strategy string    `json:"strategy"`
	Action   string    `json:"action"`
	Label    string    `json:"label"`
	Symbol   string    `json:"symbol"`
	Price    float64   `json:"price"`
	TS       time.Time `json:"ts"`
	Reason   string    `json:"reason"`
}

// NewSignalMessage converts a strategy signal for publishing.
func NewSignalMessage(cycleID string, sig strategy.Signal) SignalMessage {
	return SignalMessage{
		CycleID:  cycleID,
		Strategy: string(sig.Strategy),
		Action:   string(sig.Action),
		Label:    sig.Label(),
		Symbol:   sig.Symbol,
		Price:    sig.Price,
		TS:       sig.TS.UTC(),
		Reason:   sig.Reason,
	}
}

// StreamKey is the stream holding every signal for symbol.
func StreamKey(symbol string) string { return "signals:" + symbol }

// PubSubChannel is the channel signals for symbol are published on.
func PubSubChannel(symbol string) string { return "pub:signals:" + symbol }

// LatestKey holds the most recent signal for symbol.
func LatestKey(symbol string) string { return "signal:latest:" + symbol }

// Writer writes signals to Redis.
type Writer struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

// NewFromClient wraps an existing client without pinging it.
func NewFromClient(client *goredis.Client) *Writer {
	return &Writer{client: client}
}

// writeSignals pipelines XADD + SET + PUBLISH for every message in one
// network roundtrip.
func (w *Writer) writeSignals(ctx context.Context, msgs []SignalMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	pipe := w.client.Pipeline()
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal signal: %w", err)
		}
		jsonData := string(data)

		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: StreamKey(m.Symbol),
			MaxLen: signalStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": jsonData},
		})
		pipe.Set(ctx, LatestKey(m.Symbol), jsonData, defaultLatestTTL)
		pipe.Publish(ctx, PubSubChannel(m.Symbol), jsonData)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis signal pipeline (%d signals): %w", len(msgs), err)
	}
	return nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}

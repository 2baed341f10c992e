package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// ReaderConfig configures the Redis reader.
type ReaderConfig struct {
	Addr     string
	Password string
	DB       int
}

// Reader reads published signals back from Redis.
type Reader struct {
	client *goredis.Client
}

// NewReader creates a new Redis Reader and pings the server.
func NewReader(cfg ReaderConfig) (*Reader, error) {
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

	log.Printf("[redis-reader] connected to %s", cfg.Addr)
	return &Reader{client: client}, nil
}

// Recent returns up to count signals for symbol, newest first.
func (r *Reader) Recent(ctx context.Context, symbol string, count int64) ([]SignalMessage, error) {
	msgs, err := r.client.XRevRangeN(ctx, StreamKey(symbol), "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange %s: %w", StreamKey(symbol), err)
	}
	out := make([]SignalMessage, 0, len(msgs))
	for _, msg := range msgs {
		m, err := decodeStreamMessage(msg)
		if err != nil {
			log.Printf("[redis-reader] skipping %s: %v", msg.ID, err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Latest returns the most recent signal for symbol, or nil if none is stored.
func (r *Reader) Latest(ctx context.Context, symbol string) (*SignalMessage, error) {
	data, err := r.client.Get(ctx, LatestKey(symbol)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", LatestKey(symbol), err)
	}
	var m SignalMessage
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("unmarshal latest signal: %w", err)
	}
	return &m, nil
}

// Subscribe forwards signals published for symbol to out until ctx is
// cancelled.
func (r *Reader) Subscribe(ctx context.Context, symbol string, out chan<- SignalMessage) error {
	sub := r.client.Subscribe(ctx, PubSubChannel(symbol))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", PubSubChannel(symbol), err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m SignalMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				log.Printf("[redis-reader] unmarshal signal error: %v", err)
				continue
			}
			select {
			case out <- m:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func decodeStreamMessage(msg goredis.XMessage) (SignalMessage, error) {
	var m SignalMessage
	data, ok := msg.Values["data"].(string)
	if !ok {
		return m, errors.New("missing data field")
	}
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return m, fmt.Errorf("unmarshal signal: %w", err)
	}
	return m, nil
}

// Client returns the underlying Redis client for health checks.
func (r *Reader) Client() *goredis.Client { return r.client }

// Close closes the reader.
func (r *Reader) Close() error {
	return r.client.Close()
}

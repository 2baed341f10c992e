package redis

import (
	"context"
	"log"
	"sync"
	"time"

	"trendsignal/internal/ringbuf"
	"trendsignal/internal/strategy"
)

const flushTimeout = 10 * time.Second

// signalWriter is the write side of Writer.
type signalWriter interface {
	writeSignals(ctx context.Context, msgs []SignalMessage) error
}

// Publisher writes signals through a circuit breaker. Messages whose write
// fails for any reason are kept in a bounded local buffer and written ahead
// of the next publish, on Replay, or when the breaker closes again.
type Publisher struct {
	writer signalWriter
	cb     *CircuitBreaker

	mu     sync.Mutex
	buffer *ringbuf.Ring[SignalMessage] // drops oldest when full (default cap: 1000)

	// Callbacks
	OnBuffer func()          // called once per newly buffered message (for metrics)
	OnFlush  func(count int) // called after buffered messages were written
}

// NewPublisher creates a Publisher wrapping the given Writer.
func NewPublisher(w *Writer, cb *CircuitBreaker, maxBufferSize int) *Publisher {
	return newPublisher(w, cb, maxBufferSize)
}

func newPublisher(w signalWriter, cb *CircuitBreaker, maxBufferSize int) *Publisher {
	if maxBufferSize <= 0 {
		maxBufferSize = 1000
	}
	p := &Publisher{
		writer: w,
		cb:     cb,
		buffer: ringbuf.New[SignalMessage](maxBufferSize),
	}

	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		if to == StateClosed {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
				defer cancel()
				p.Replay(ctx)
			}()
		}
	}

	return p
}

// Publish writes the signals of one cycle, preceded by any buffered ones.
// On failure everything is buffered and the error is returned so the caller
// can log it; the cycle itself is not affected.
func (p *Publisher) Publish(ctx context.Context, cycleID string, sigs []strategy.Signal) error {
	if len(sigs) == 0 {
		return nil
	}
	msgs := make([]SignalMessage, len(sigs))
	for i, s := range sigs {
		msgs[i] = NewSignalMessage(cycleID, s)
	}

	pending := p.takePending()
	batch := append(pending, msgs...)
	err := p.cb.ExecuteContext(ctx, func(ctx context.Context) error {
		return p.writer.writeSignals(ctx, batch)
	})
	if err != nil {
		p.requeue(pending)
		p.bufferMessages(msgs)
		return err
	}
	p.flushed(len(pending))
	return nil
}

// Replay writes buffered messages through the breaker. Nothing is written
// when the buffer is empty.
func (p *Publisher) Replay(ctx context.Context) error {
	pending := p.takePending()
	if len(pending) == 0 {
		return nil
	}
	err := p.cb.ExecuteContext(ctx, func(ctx context.Context) error {
		return p.writer.writeSignals(ctx, pending)
	})
	if err != nil {
		log.Printf("[publisher] replay of %d buffered signals failed: %v", len(pending), err)
		p.requeue(pending)
		return err
	}
	p.flushed(len(pending))
	return nil
}

// RunReplay calls Replay every interval until ctx is done, so buffered
// signals are written even when no new ones arrive.
func (p *Publisher) RunReplay(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.PendingCount() > 0 {
				p.Replay(ctx)
			}
		}
	}
}

func (p *Publisher) takePending() []SignalMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.Drain()
}

func (p *Publisher) flushed(n int) {
	if n == 0 {
		return
	}
	log.Printf("[publisher] flushed %d buffered signals", n)
	if p.OnFlush != nil {
		p.OnFlush(n)
	}
}

// bufferMessages appends new messages, dropping the oldest when full.
func (p *Publisher) bufferMessages(msgs []SignalMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range msgs {
		if _, dropped := p.buffer.Push(m); dropped {
			log.Printf("[publisher] buffer full, dropped oldest signal")
		}
		if p.OnBuffer != nil {
			p.OnBuffer()
		}
	}
}

// requeue puts msgs back ahead of anything buffered since they were taken.
func (p *Publisher) requeue(msgs []SignalMessage) {
	if len(msgs) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	newer := p.buffer.Drain()
	for _, m := range append(msgs, newer...) {
		if _, dropped := p.buffer.Push(m); dropped {
			log.Printf("[publisher] buffer full, dropped oldest signal")
		}
	}
}

// PendingCount returns the number of buffered messages waiting to be written.
func (p *Publisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.Len()
}

// Breaker returns the circuit breaker guarding the writer.
func (p *Publisher) Breaker() *CircuitBreaker {
	return p.cb
}

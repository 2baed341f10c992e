package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"trendsignal/internal/strategy"
)

func testSignal() strategy.Signal {
	return strategy.Signal{
		Strategy: strategy.KindBollinger,
		Action:   strategy.ActionSell,
		Symbol:   "BTC/USD",
		Price:    43000,
		TS:       time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
	}
}

func TestSignalAlert(t *testing.T) {
	a := SignalAlert("c1", testSignal())
	if a.Level != AlertInfo || a.Title != "Bollinger Bands Sell Signal" {
		t.Errorf("unexpected alert: %+v", a)
	}
	want := "2024-01-15T09:00:00Z, BTC/USD sold at price 43000.0000 (Bollinger Bands Sell Signal)"
	if a.Message != want {
		t.Errorf("message = %q\nwant      %q", a.Message, want)
	}
}

func TestOrderFailureAlert(t *testing.T) {
	a := OrderFailureAlert("c1", testSignal(), errors.New("insufficient balance"))
	if a.Level != AlertWarning || !strings.Contains(a.Message, "insufficient balance") {
		t.Errorf("unexpected alert: %+v", a)
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), SignalAlert("cycle-9", testSignal())); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["level"] != "INFO" || got["symbol"] != "BTC/USD" || got["cycle_id"] != "cycle-9" {
		t.Errorf("unexpected payload: %v", got)
	}
}

// fastRetries retries up to n times without waiting.
func fastRetries(n uint64) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, n)
	}
}

func TestWebhookNotifier_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	n.backOff = fastRetries(5)
	if err := n.Send(context.Background(), Alert{Title: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestWebhookNotifier_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	n.backOff = fastRetries(2)
	err := n.Send(context.Background(), Alert{Title: "x"})
	var serr *StatusError
	if !errors.As(err, &serr) || serr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 StatusError, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3 (1 + 2 retries)", calls.Load())
	}
}

func TestWebhookNotifier_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	n.backOff = fastRetries(5)
	err := n.Send(context.Background(), Alert{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("expected status error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestTelegramNotifier(t *testing.T) {
	var path string
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.apiBase = srv.URL
	if err := n.Send(context.Background(), Alert{Level: AlertWarning, Title: "EMA Buy Signal", Message: "price 1.5", CycleID: "c-1"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("path = %s", path)
	}
	if got["chat_id"] != "42" || got["parse_mode"] != "MarkdownV2" || got["disable_notification"] != nil {
		t.Errorf("unexpected payload: %v", got)
	}
	text, _ := got["text"].(string)
	if !strings.Contains(text, `price 1\.5`) || !strings.Contains(text, `c\-1`) {
		t.Errorf("text not escaped: %q", text)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := escapeMarkdown("a_b.c!"); got != `a\_b\.c\!` {
		t.Errorf("got %q", got)
	}
}

type countingNotifier struct {
	n   int
	err error
}

func (c *countingNotifier) Send(context.Context, Alert) error {
	c.n++
	return c.err
}

func TestMulti(t *testing.T) {
	a := &countingNotifier{err: errors.New("down")}
	b := &countingNotifier{}
	err := Multi{a, b, NewLogNotifier()}.Send(context.Background(), Alert{Title: "t"})
	if a.n != 1 || b.n != 1 {
		t.Errorf("every notifier must be tried: a=%d b=%d", a.n, b.n)
	}
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Errorf("expected joined error, got %v", err)
	}
}

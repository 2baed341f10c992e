// Package notification delivers alerts about signals and order failures to
// external channels (log, webhooks, Telegram).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"

	"trendsignal/internal/strategy"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Symbol  string     `json:"symbol,omitempty"`
	CycleID string     `json:"cycle_id,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// SignalAlert builds the INFO alert for an executed signal, e.g.
// "2024-01-15T09:00:00Z, BTC/USD bought at price 42000.0000 (Supertrend Buy Signal)".
func SignalAlert(cycleID string, sig strategy.Signal) Alert {
	return Alert{
		Level:   AlertInfo,
		Title:   sig.Label(),
		Message: sig.String(),
		Symbol:  sig.Symbol,
		CycleID: cycleID,
	}
}

// OrderFailureAlert builds the WARNING alert for a rejected order.
func OrderFailureAlert(cycleID string, sig strategy.Signal, err error) Alert {
	return Alert{
		Level:   AlertWarning,
		Title:   sig.Label() + " order failed",
		Message: fmt.Sprintf("%s %s at %.4f: %v", sig.Action, sig.Symbol, sig.Price, err),
		Symbol:  sig.Symbol,
		CycleID: cycleID,
	}
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans an alert out to several notifiers. Every notifier is tried;
// the failures are joined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

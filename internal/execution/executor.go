// Package execution turns strategy signals into orders.
//
// An OrderSink accepts one market order per signal and returns the venue's
// acknowledgement. Submission is fire-and-forget: sinks do not wait for a
// fill confirmation and callers do not retry a rejected order.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"trendsignal/internal/model"
)

// ErrOrderRejected wraps every refusal by an order sink (insufficient
// balance, rate limit, validation).
var ErrOrderRejected = errors.New("order rejected")

// OrderSink submits orders to a venue.
type OrderSink interface {
	Submit(ctx context.Context, req model.OrderRequest) (model.OrderAck, error)
}

// DryRun acknowledges every order without executing it.
type DryRun struct {
	mu       sync.Mutex
	orderSeq int64
	orders   []model.OrderRequest
}

// NewDryRun creates a sink that only logs orders.
func NewDryRun() *DryRun {
	return &DryRun{}
}

// Submit logs the order and returns an "accepted" ack with a DRYRUN-n id.
func (d *DryRun) Submit(_ context.Context, req model.OrderRequest) (model.OrderAck, error) {
	if err := validate(req); err != nil {
		return model.OrderAck{}, err
	}
	d.mu.Lock()
	d.orderSeq++
	orderID := fmt.Sprintf("DRYRUN-%d", d.orderSeq)
	d.orders = append(d.orders, req)
	d.mu.Unlock()

	log.Printf("[dryrun] %s %s qty=%s ref=%.4f order=%s reason=%s",
		req.Side, req.Symbol, req.Qty, req.RefPrice, orderID, req.Reason)

	return model.OrderAck{
		OrderID:       orderID,
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Qty:           req.Qty,
		Status:        "accepted",
		SubmittedAt:   time.Now().UTC(),
	}, nil
}

// Orders returns a copy of every order seen.
func (d *DryRun) Orders() []model.OrderRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]model.OrderRequest, len(d.orders))
	copy(cp, d.orders)
	return cp
}

func validate(req model.OrderRequest) error {
	if req.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrOrderRejected)
	}
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		return fmt.Errorf("%w: unknown side %q", ErrOrderRejected, req.Side)
	}
	if !req.Qty.IsPositive() {
		return fmt.Errorf("%w: qty must be positive, got %s", ErrOrderRejected, req.Qty)
	}
	return nil
}

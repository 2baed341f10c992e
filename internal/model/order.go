package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderRequest is a market order handed to an order sink.
type OrderRequest struct {
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Qty           decimal.Decimal `json:"qty"`
	RefPrice      float64         `json:"ref_price"` // close of the signalling candle
	ClientOrderID string          `json:"client_order_id,omitempty"`
	Strategy      string          `json:"strategy"`
	Reason        string          `json:"reason"`
}

// OrderAck is the venue's acknowledgement of a submitted order.
// Submission is fire-and-forget: Status is whatever the venue reported at
// submit time, not a confirmed fill.
type OrderAck struct {
	OrderID       string          `json:"order_id"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Qty           decimal.Decimal `json:"qty"`
	Status        string          `json:"status"`
	FillPrice     float64         `json:"fill_price,omitempty"`
	SubmittedAt   time.Time       `json:"submitted_at"`
}

package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"trendsignal/internal/model"
	"trendsignal/internal/portfolio"
)

// Fill represents a simulated order fill.
type Fill struct {
	OrderID   string             `json:"order_id"`
	Request   model.OrderRequest `json:"request"`
	FillPrice float64            `json:"fill_price"`
	FillQty   decimal.Decimal    `json:"fill_qty"`
	FilledAt  time.Time          `json:"filled_at"`
	Slippage  float64            `json:"slippage"` // simulated slippage per unit
	Realized  decimal.Decimal    `json:"realized_pnl"`
}

// PaperExecutor simulates order execution without venue calls. Fills are
// booked into a portfolio, which then serves as the position oracle, and
// optionally recorded to a trade journal.
type PaperExecutor struct {
	mu       sync.RWMutex
	fills    []Fill
	orderSeq int64

	book    *portfolio.Portfolio
	journal *Journal // optional

	// Simulation parameters
	slippageBps int64 // basis points of slippage (e.g., 5 = 0.05%)
	now         func() time.Time
}

// NewPaperExecutor creates a paper trading executor booking into book.
// slippageBps controls simulated slippage in basis points. journal may be nil.
func NewPaperExecutor(book *portfolio.Portfolio, slippageBps int64, journal *Journal) *PaperExecutor {
	return &PaperExecutor{
		fills:       make([]Fill, 0, 1000),
		book:        book,
		journal:     journal,
		slippageBps: slippageBps,
		now:         time.Now,
	}
}

// GetFills returns a snapshot of all fills.
func (p *PaperExecutor) GetFills() []Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// Submit fills req immediately at its reference price adjusted for slippage.
// A sell against a flat book is rejected.
func (p *PaperExecutor) Submit(ctx context.Context, req model.OrderRequest) (model.OrderAck, error) {
	if err := validate(req); err != nil {
		return model.OrderAck{}, err
	}
	if req.RefPrice <= 0 {
		return model.OrderAck{}, fmt.Errorf("%w: paper fill needs a reference price", ErrOrderRejected)
	}

	// Calculate fill price with simulated slippage
	fillPrice := req.RefPrice
	slippage := 0.0
	if p.slippageBps > 0 {
		slippage = fillPrice * float64(p.slippageBps) / 10000
		if req.Side == model.SideBuy {
			fillPrice += slippage // buy higher
		} else {
			fillPrice -= slippage // sell lower
		}
	}

	p.mu.Lock()
	filledQty, realized, err := p.book.Apply(req.Symbol, req.Side, req.Qty, fillPrice)
	if err != nil {
		p.mu.Unlock()
		if errors.Is(err, portfolio.ErrNothingToSell) {
			return model.OrderAck{}, fmt.Errorf("%w: %v", ErrOrderRejected, err)
		}
		return model.OrderAck{}, err
	}
	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)
	fill := Fill{
		OrderID:   orderID,
		Request:   req,
		FillPrice: fillPrice,
		FillQty:   filledQty,
		FilledAt:  p.now().UTC(),
		Slippage:  slippage,
		Realized:  realized,
	}
	p.fills = append(p.fills, fill)
	p.mu.Unlock()

	log.Printf("[paper] %s %s %s qty=%s price=%.4f (slip=%.4f) order=%s reason=%s",
		req.Side, req.Strategy, req.Symbol, filledQty, fillPrice, slippage, orderID, req.Reason)

	if p.journal != nil {
		if err := p.journal.RecordFill(ctx, fill); err != nil {
			log.Printf("[paper] journal write failed for %s: %v", orderID, err)
		}
	}

	return model.OrderAck{
		OrderID:       orderID,
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Qty:           filledQty,
		Status:        "filled",
		FillPrice:     fillPrice,
		SubmittedAt:   fill.FilledAt,
	}, nil
}

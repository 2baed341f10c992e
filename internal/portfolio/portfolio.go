// Package portfolio keeps the paper position book.
//
// It holds one long position per symbol, updated by paper fills, and answers
// position queries for signal gating. Average entry price and realized P&L
// are tracked per symbol from the fills.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"trendsignal/internal/model"
)

// ErrNothingToSell is returned when a sell is applied to a flat symbol.
var ErrNothingToSell = errors.New("no position to sell")

// Position represents a single symbol position.
type Position struct {
	Symbol      string          `json:"symbol"`
	Qty         decimal.Decimal `json:"qty"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
	LastPrice   decimal.Decimal `json:"last_price"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// UnrealizedPnL returns (last - avg) * qty.
func (p *Position) UnrealizedPnL() decimal.Decimal {
	if p.LastPrice.IsZero() {
		return decimal.Zero
	}
	return p.LastPrice.Sub(p.AvgPrice).Mul(p.Qty)
}

// Portfolio tracks all paper positions.
type Portfolio struct {
	mu        sync.RWMutex
	positions map[string]*Position // key = symbol
}

// New creates a new empty Portfolio.
func New() *Portfolio {
	return &Portfolio{
		positions: make(map[string]*Position),
	}
}

// Seed sets the starting quantity for symbol, e.g. from a previous session.
func (pf *Portfolio) Seed(symbol string, qty decimal.Decimal, avgPrice float64) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	pos := pf.get(symbol)
	pos.Qty = qty
	pos.AvgPrice = decimal.NewFromFloat(avgPrice)
}

func (pf *Portfolio) get(symbol string) *Position {
	pos, ok := pf.positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol}
		pf.positions[symbol] = pos
	}
	return pos
}

// Apply books a fill and returns the quantity actually filled together with
// the realized P&L of the fill. A buy increases the position at a weighted
// average price. A sell reduces it and is capped at the held quantity; a sell
// against a flat position returns ErrNothingToSell.
func (pf *Portfolio) Apply(symbol string, side model.Side, qty decimal.Decimal, price float64) (decimal.Decimal, decimal.Decimal, error) {
	if !qty.IsPositive() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("fill qty must be positive, got %s", qty)
	}
	px := decimal.NewFromFloat(price)

	pf.mu.Lock()
	defer pf.mu.Unlock()
	pos := pf.get(symbol)
	pos.LastPrice = px

	if side == model.SideBuy {
		if pos.Qty.IsZero() {
			pos.AvgPrice = px
		} else {
			// Weighted average price
			totalCost := pos.AvgPrice.Mul(pos.Qty).Add(px.Mul(qty))
			pos.AvgPrice = totalCost.Div(pos.Qty.Add(qty))
		}
		pos.Qty = pos.Qty.Add(qty)
		return qty, decimal.Zero, nil
	}

	if !pos.Qty.IsPositive() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s", ErrNothingToSell, symbol)
	}
	sellQty := decimal.Min(qty, pos.Qty)
	realized := px.Sub(pos.AvgPrice).Mul(sellQty)
	pos.RealizedPnL = pos.RealizedPnL.Add(realized)
	pos.Qty = pos.Qty.Sub(sellQty)
	if !pos.Qty.IsPositive() {
		pos.Qty = decimal.Zero
		pos.AvgPrice = decimal.Zero
	}
	return sellQty, realized, nil
}

// UpdatePrice updates the last price for a position.
func (pf *Portfolio) UpdatePrice(symbol string, price float64) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if pos, ok := pf.positions[symbol]; ok {
		pos.LastPrice = decimal.NewFromFloat(price)
	}
}

// CurrentPosition implements strategy.PositionOracle.
func (pf *Portfolio) CurrentPosition(_ context.Context, symbol string) (model.PositionState, error) {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	pos, ok := pf.positions[symbol]
	if !ok {
		return model.Flat(symbol), nil
	}
	return model.PositionState{Symbol: symbol, Qty: pos.Qty}, nil
}

// GetPositions returns a snapshot of all positions.
func (pf *Portfolio) GetPositions() []Position {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	result := make([]Position, 0, len(pf.positions))
	for _, p := range pf.positions {
		result = append(result, *p)
	}
	return result
}

// TotalRealizedPnL returns the realized P&L across all symbols.
func (pf *Portfolio) TotalRealizedPnL() decimal.Decimal {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	total := decimal.Zero
	for _, p := range pf.positions {
		total = total.Add(p.RealizedPnL)
	}
	return total
}

// TotalUnrealizedPnL returns the total unrealized P&L across all positions.
func (pf *Portfolio) TotalUnrealizedPnL() decimal.Decimal {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	total := decimal.Zero
	for _, p := range pf.positions {
		total = total.Add(p.UnrealizedPnL())
	}
	return total
}

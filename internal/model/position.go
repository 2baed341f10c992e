package model

import "github.com/shopspring/decimal"

// PositionState is the current exposure for one symbol as reported by a
// position oracle. Only long exposure matters to the signal gating.
type PositionState struct {
	Symbol string          `json:"symbol"`
	Qty    decimal.Decimal `json:"qty"` // positive = long
}

// Flat returns a zero position for symbol.
func Flat(symbol string) PositionState {
	return PositionState{Symbol: symbol, Qty: decimal.Zero}
}

// Holding reports whether a nonzero long position is open.
func (p PositionState) Holding() bool {
	return p.Qty.IsPositive()
}

func (p PositionState) String() string {
	if !p.Holding() {
		return "flat"
	}
	return "holding " + p.Qty.String()
}

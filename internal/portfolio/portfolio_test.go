package portfolio

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"trendsignal/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Errorf("%s: got %s, want %s", label, got, want)
	}
}

func TestPortfolio_FlatByDefault(t *testing.T) {
	pf := New()
	pos, err := pf.CurrentPosition(context.Background(), "BTC/USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Holding() {
		t.Errorf("expected flat, got %s", pos)
	}
}

func TestPortfolio_BuyThenSell(t *testing.T) {
	pf := New()

	// Two buys: 1 @ 100, 1 @ 110 → avg 105
	pf.Apply("BTC/USD", model.SideBuy, d("1"), 100)
	pf.Apply("BTC/USD", model.SideBuy, d("1"), 110)

	pos, _ := pf.CurrentPosition(context.Background(), "BTC/USD")
	if !pos.Holding() {
		t.Fatal("expected holding after buys")
	}
	assertDecimal(t, "qty", pos.Qty, "2")
	assertDecimal(t, "avg", pf.GetPositions()[0].AvgPrice, "105")

	// Sell 1 @ 120 → realized (120-105)*1 = 15
	filled, realized, err := pf.Apply("BTC/USD", model.SideSell, d("1"), 120)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDecimal(t, "filled", filled, "1")
	assertDecimal(t, "realized", realized, "15")

	// Unrealized on the remaining unit at last price 120 → 15
	assertDecimal(t, "unrealized", pf.TotalUnrealizedPnL(), "15")
}

func TestPortfolio_SellCappedAtHolding(t *testing.T) {
	pf := New()
	pf.Apply("BTC/USD", model.SideBuy, d("0.0004"), 40000)

	filled, _, err := pf.Apply("BTC/USD", model.SideSell, d("0.0010"), 41000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDecimal(t, "filled", filled, "0.0004")

	pos, _ := pf.CurrentPosition(context.Background(), "BTC/USD")
	if pos.Holding() {
		t.Errorf("expected flat after selling everything, got %s", pos)
	}
	// (41000-40000)*0.0004 = 0.4
	assertDecimal(t, "realized", pf.TotalRealizedPnL(), "0.4")
}

func TestPortfolio_SellWhenFlat(t *testing.T) {
	pf := New()
	_, _, err := pf.Apply("BTC/USD", model.SideSell, d("1"), 100)
	if !errors.Is(err, ErrNothingToSell) {
		t.Errorf("expected ErrNothingToSell, got %v", err)
	}
}

func TestPortfolio_RejectsNonPositiveQty(t *testing.T) {
	pf := New()
	if _, _, err := pf.Apply("BTC/USD", model.SideBuy, decimal.Zero, 100); err == nil {
		t.Error("expected error for zero qty")
	}
}

func TestPortfolio_Seed(t *testing.T) {
	pf := New()
	pf.Seed("ETH/USD", d("2"), 2500)
	pos, _ := pf.CurrentPosition(context.Background(), "ETH/USD")
	assertDecimal(t, "seeded qty", pos.Qty, "2")
	pf.UpdatePrice("ETH/USD", 2600)
	// (2600-2500)*2 = 200
	assertDecimal(t, "unrealized", pf.TotalUnrealizedPnL(), "200")
}

package alpaca

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	sdk "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"

	"trendsignal/internal/execution"
	"trendsignal/internal/model"
	"trendsignal/internal/strategy"
)

// TradingAPI is the subset of the trading client used here.
type TradingAPI interface {
	GetPosition(symbol string) (*sdk.Position, error)
	PlaceOrder(req sdk.PlaceOrderRequest) (*sdk.Order, error)
}

// TradingConfig configures a Broker.
type TradingConfig struct {
	APIKey     string
	APISecret  string
	BaseURL    string
	AssetClass string
}

// Broker reads positions from and submits market orders to an Alpaca
// account. It implements strategy.PositionOracle and execution.OrderSink.
type Broker struct {
	api        TradingAPI
	assetClass string
}

var (
	_ strategy.PositionOracle = (*Broker)(nil)
	_ execution.OrderSink     = (*Broker)(nil)
)

// NewBroker creates a Broker backed by the Alpaca trading client.
func NewBroker(cfg TradingConfig) *Broker {
	client := sdk.NewClient(sdk.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})
	return NewBrokerFromAPI(client, cfg.AssetClass)
}

// NewBrokerFromAPI creates a Broker over an existing client.
func NewBrokerFromAPI(api TradingAPI, assetClass string) *Broker {
	if assetClass == "" {
		assetClass = AssetCrypto
	}
	return &Broker{api: api, assetClass: assetClass}
}

// positionSymbol maps "BTC/USD" to the "BTCUSD" form the positions endpoint
// uses for crypto.
func positionSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// CurrentPosition returns the open quantity for symbol. A 404 from the
// positions endpoint means no position.
func (b *Broker) CurrentPosition(_ context.Context, symbol string) (model.PositionState, error) {
	pos, err := b.api.GetPosition(positionSymbol(symbol))
	if err != nil {
		var apiErr *sdk.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return model.Flat(symbol), nil
		}
		return model.PositionState{}, fmt.Errorf("get position %s: %w", symbol, err)
	}
	if pos == nil {
		return model.Flat(symbol), nil
	}
	return model.PositionState{Symbol: symbol, Qty: pos.Qty}, nil
}

// Submit places a market order. Crypto orders are good-til-cancelled,
// equity orders are day orders.
func (b *Broker) Submit(_ context.Context, req model.OrderRequest) (model.OrderAck, error) {
	if req.Symbol == "" || !req.Qty.IsPositive() {
		return model.OrderAck{}, fmt.Errorf("%w: symbol %q qty %s", execution.ErrOrderRejected, req.Symbol, req.Qty)
	}

	var side sdk.Side
	switch req.Side {
	case model.SideBuy:
		side = sdk.Buy
	case model.SideSell:
		side = sdk.Sell
	default:
		return model.OrderAck{}, fmt.Errorf("%w: unknown side %q", execution.ErrOrderRejected, req.Side)
	}

	tif := sdk.GTC
	if b.assetClass == AssetEquity {
		tif = sdk.Day
	}

	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	qty := req.Qty
	order, err := b.api.PlaceOrder(sdk.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          side,
		Type:          sdk.Market,
		TimeInForce:   tif,
		ClientOrderID: clientID,
	})
	if err != nil {
		return model.OrderAck{}, fmt.Errorf("%w: %s %s %s: %v", execution.ErrOrderRejected, req.Side, req.Qty, req.Symbol, err)
	}

	log.Printf("[alpaca] order %s %s %s qty=%s status=%s client=%s",
		order.ID, req.Side, req.Symbol, req.Qty, order.Status, clientID)

	ack := model.OrderAck{
		OrderID:       order.ID,
		ClientOrderID: clientID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Qty:           req.Qty,
		Status:        order.Status,
		SubmittedAt:   order.SubmittedAt.UTC(),
	}
	if order.FilledAvgPrice != nil {
		ack.FillPrice = order.FilledAvgPrice.InexactFloat64()
	}
	return ack, nil
}

// Package alpaca adapts the Alpaca trading and market data APIs to the
// engine's boundary interfaces: a candle source, a position oracle and an
// order sink.
package alpaca

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	sdk "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	md "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"trendsignal/internal/marketdata"
	"trendsignal/internal/model"
)

const (
	AssetCrypto = "crypto"
	AssetEquity = "equity"
)

// BarsAPI is the subset of the market data client used here.
type BarsAPI interface {
	GetBars(symbol string, req md.GetBarsRequest) ([]md.Bar, error)
	GetCryptoBars(symbol string, req md.GetCryptoBarsRequest) ([]md.CryptoBar, error)
}

// SourceConfig configures a Source.
type SourceConfig struct {
	APIKey    string
	APISecret string
	// AssetClass is "crypto" or "equity".
	AssetClass string
	// RequestsPerSec caps outgoing bar requests. Defaults to 3.
	RequestsPerSec int
	// MaxElapsed bounds the retry loop of one fetch. Defaults to 30s.
	MaxElapsed time.Duration
}

// Source fetches OHLCV candles from Alpaca.
type Source struct {
	api        BarsAPI
	assetClass string
	limiter    *rate.Limiter
	maxElapsed time.Duration
	now        func() time.Time
}

// NewSource creates a Source backed by the Alpaca market data client.
func NewSource(cfg SourceConfig) *Source {
	client := md.NewClient(md.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	})
	return NewSourceFromAPI(client, cfg)
}

// NewSourceFromAPI creates a Source over an existing client.
func NewSourceFromAPI(api BarsAPI, cfg SourceConfig) *Source {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 3
	}
	maxElapsed := cfg.MaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = 30 * time.Second
	}
	asset := cfg.AssetClass
	if asset == "" {
		asset = AssetCrypto
	}
	return &Source{
		api:        api,
		assetClass: asset,
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), rps),
		maxElapsed: maxElapsed,
		now:        time.Now,
	}
}

// Fetch returns the newest limit candles for symbol, oldest first.
// Every failure satisfies errors.Is(err, marketdata.ErrDataUnavailable).
func (s *Source) Fetch(ctx context.Context, symbol, timeframe string, limit int) (model.Series, error) {
	if limit <= 0 {
		return nil, marketdata.Unavailable(symbol, timeframe, fmt.Errorf("limit %d must be positive", limit))
	}
	step, err := marketdata.ParseTimeframe(timeframe)
	if err != nil {
		return nil, marketdata.Unavailable(symbol, timeframe, err)
	}
	tf, err := toTimeFrame(step)
	if err != nil {
		return nil, marketdata.Unavailable(symbol, timeframe, err)
	}

	end := s.now()
	lookback := time.Duration(limit) * step
	if s.assetClass == AssetEquity {
		// Sessions close overnight and at weekends.
		lookback *= 2
	}
	start := end.Add(-lookback)

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, marketdata.Unavailable(symbol, timeframe, err)
	}

	var series model.Series
	operation := func() error {
		var err error
		series, err = s.fetchOnce(symbol, tf, start, end)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = s.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return nil, marketdata.Unavailable(symbol, timeframe, err)
	}

	if len(series) > limit {
		series = series[len(series)-limit:]
	}
	if len(series) == 0 {
		return nil, marketdata.Unavailable(symbol, timeframe, errors.New("no bars returned"))
	}
	log.Printf("[alpaca] fetched %d %s bars for %s", len(series), timeframe, symbol)
	return series, nil
}

func (s *Source) fetchOnce(symbol string, tf md.TimeFrame, start, end time.Time) (model.Series, error) {
	if s.assetClass == AssetEquity {
		bars, err := s.api.GetBars(symbol, md.GetBarsRequest{
			TimeFrame: tf,
			Start:     start,
			End:       end,
		})
		if err != nil {
			return nil, err
		}
		out := make(model.Series, 0, len(bars))
		for _, b := range bars {
			out = append(out, model.Candle{
				TS:     b.Timestamp.UTC(),
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: float64(b.Volume),
			})
		}
		return out, nil
	}

	bars, err := s.api.GetCryptoBars(symbol, md.GetCryptoBarsRequest{
		TimeFrame: tf,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, err
	}
	out := make(model.Series, 0, len(bars))
	for _, b := range bars {
		out = append(out, model.Candle{
			TS:     b.Timestamp.UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return out, nil
}

// retryable reports whether a failed request may succeed on retry: rate
// limits, server errors and transport errors.
func retryable(err error) bool {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}

func toTimeFrame(step time.Duration) (md.TimeFrame, error) {
	switch {
	case step%(24*time.Hour) == 0:
		return md.NewTimeFrame(int(step/(24*time.Hour)), md.Day), nil
	case step%time.Hour == 0:
		return md.NewTimeFrame(int(step/time.Hour), md.Hour), nil
	case step%time.Minute == 0:
		return md.NewTimeFrame(int(step/time.Minute), md.Min), nil
	}
	return md.TimeFrame{}, fmt.Errorf("timeframe %s is not a whole number of minutes", step)
}

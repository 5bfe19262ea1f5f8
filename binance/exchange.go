// Package binance adapts the Binance REST API to the candle source
// interface of the sync engine.
package binance

import (
	"github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"
	"time"
)

const (
	// requestTimeout bounds every single REST call to the exchange.
	requestTimeout = 1 * time.Minute

	// requestInterval and requestBurst shape the client-side request
	// rate. The public klines endpoint has a weight of one, so a
	// request every 250 ms stays far below the per-minute weight cap.
	requestInterval = 250 * time.Millisecond
	requestBurst    = 1
)

// CandleService fetches candles from the Binance REST API. It
// implements the candle source interface of the sync engine.
type CandleService struct {
	client  *binance.Client
	limiter *rate.Limiter
}

func NewCandleService(
	apiKey string,
	secretKey string,
	testnet bool,
) *CandleService {
	if testnet {
		binance.UseTestnet = true
	}

	return &CandleService{
		client:  binance.NewClient(apiKey, secretKey),
		limiter: rate.NewLimiter(rate.Every(requestInterval), requestBurst),
	}
}

package damnrich

import (
	"context"
	"fmt"
	"time"
)

// CandleSource provides candles of a single exchange. Implementations
// return candles ordered by open time ascending and report transport
// problems as errors; an empty result is not an error.
type CandleSource interface {
	// RecentCandles returns up to limit most recent candles of the pair.
	RecentCandles(
		ctx context.Context,
		pair Pair,
		timeframe Timeframe,
		limit int,
	) ([]RawCandle, error)

	// CandlesSince returns up to limit candles of the pair whose open
	// time is at or after the since time.
	CandlesSince(
		ctx context.Context,
		pair Pair,
		timeframe Timeframe,
		since time.Time,
		limit int,
	) ([]RawCandle, error)
}

// SourceRegistry holds the candle sources of all supported exchanges,
// keyed by exchange name. The registry is populated at startup and the
// configured exchange is resolved from it exactly once.
type SourceRegistry struct {
	sources map[string]CandleSource
}

func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{
		sources: make(map[string]CandleSource),
	}
}

func (sr *SourceRegistry) Register(exchange string, source CandleSource) {
	sr.sources[exchange] = source
}

func (sr *SourceRegistry) Source(exchange string) (CandleSource, error) {
	source, exists := sr.sources[exchange]
	if !exists {
		return nil, fmt.Errorf("unknown exchange: [%v]", exchange)
	}

	return source, nil
}

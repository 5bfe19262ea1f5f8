package damnrich

import (
	"fmt"
	"strconv"
	"time"
)

var timeframeUnits = map[byte]time.Duration{
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// Timeframe is a candle interval in the usual exchange notation,
// for example "1m", "4h" or "1d".
type Timeframe string

func ParseTimeframe(value string) (Timeframe, error) {
	if len(value) < 2 {
		return "", fmt.Errorf("malformed timeframe: [%v]", value)
	}

	if _, exists := timeframeUnits[value[len(value)-1]]; !exists {
		return "", fmt.Errorf("unknown timeframe unit: [%v]", value)
	}

	count, err := strconv.Atoi(value[:len(value)-1])
	if err != nil || count <= 0 {
		return "", fmt.Errorf("malformed timeframe: [%v]", value)
	}

	return Timeframe(value), nil
}

// Duration returns the time span covered by one candle of the timeframe.
// It returns zero for values not produced by ParseTimeframe.
func (t Timeframe) Duration() time.Duration {
	if len(t) < 2 {
		return 0
	}

	unit, exists := timeframeUnits[t[len(t)-1]]
	if !exists {
		return 0
	}

	count, err := strconv.Atoi(string(t[:len(t)-1]))
	if err != nil || count <= 0 {
		return 0
	}

	return time.Duration(count) * unit
}

func (t Timeframe) String() string {
	return string(t)
}

// Series identifies one candle history: an exchange, a symbol and
// a timeframe. All candle store queries are keyed by it.
type Series struct {
	ExchangeID int64
	SymbolID   int64
	Timeframe  Timeframe
}

func (s Series) String() string {
	return fmt.Sprintf("%v:%v:%v", s.ExchangeID, s.SymbolID, s.Timeframe)
}

// RawCandle is a single candle tuple as delivered by an exchange, in
// wire order: open time in epoch milliseconds, open, high, low, close
// and volume, optionally followed by quote volume, trade count, taker
// buy base volume and taker buy quote volume.
type RawCandle []string

func (rc RawCandle) OpenTime() (time.Time, error) {
	if len(rc) == 0 {
		return time.Time{}, fmt.Errorf("empty candle tuple")
	}

	milliseconds, err := strconv.ParseInt(rc[0], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf(
			"could not parse open time [%v]: [%v]",
			rc[0],
			err,
		)
	}

	return parseMilliseconds(milliseconds), nil
}

type Candle struct {
	Series

	OpenTime time.Time

	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	QuoteVolume         *float64
	TradeCount          *int64
	TakerBuyBaseVolume  *float64
	TakerBuyQuoteVolume *float64

	// Flagged marks a candle whose open or close price lies outside
	// the low-high range reported by the source.
	Flagged bool
}

func (c *Candle) Equal(other *Candle) bool {
	return c.Series == other.Series &&
		c.OpenTime.Equal(other.OpenTime)
}

func (c *Candle) String() string {
	return fmt.Sprintf(
		"series: %v, time: %v, close: %v",
		c.Series,
		c.OpenTime.Format(time.RFC3339),
		c.Close,
	)
}

type CandleRepository interface {
	// CountCandles returns the number of candles stored for the series.
	CountCandles(series Series) (int, error)

	// OldestOpenTime returns the open time of the oldest candle stored
	// for the series. The boolean result is false when the series holds
	// no candles at all.
	OldestOpenTime(series Series) (time.Time, bool, error)

	// UpsertCandles writes the given candles, replacing stored ones
	// with the same series and open time. The whole batch is written
	// atomically; a failure leaves the store unchanged and reports
	// zero written candles.
	UpsertCandles(candles ...*Candle) (int, error)
}

func parseMilliseconds(milliseconds int64) time.Time {
	return time.Unix(0, milliseconds*int64(time.Millisecond))
}

package damnrich

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Positions of the raw candle tuple. The first six are mandatory.
const (
	rawOpenTime = iota
	rawOpen
	rawHigh
	rawLow
	rawClose
	rawVolume
	rawQuoteVolume
	rawTradeCount
	rawTakerBuyBaseVolume
	rawTakerBuyQuoteVolume
)

const mandatoryRawFields = 6

// NormalizeCandle turns a raw candle tuple into a domain candle of the
// given series. Tuples that are too short, carry unparseable or
// non-finite numbers, violate basic price sanity (non-positive prices,
// negative volume, high below low) or describe a still-forming candle
// are rejected with an error. A candle whose open or close lies outside
// the low-high range is kept but marked as flagged.
func NormalizeCandle(
	series Series,
	raw RawCandle,
	now time.Time,
) (*Candle, error) {
	if len(raw) < mandatoryRawFields {
		return nil, fmt.Errorf(
			"truncated candle tuple with [%v] fields",
			len(raw),
		)
	}

	openTime, err := raw.OpenTime()
	if err != nil {
		return nil, err
	}

	if !openTime.Before(now) {
		return nil, fmt.Errorf(
			"still-forming candle with open time [%v]",
			openTime.Format(time.RFC3339),
		)
	}

	open, err := parsePrice(raw[rawOpen], "open")
	if err != nil {
		return nil, err
	}

	high, err := parsePrice(raw[rawHigh], "high")
	if err != nil {
		return nil, err
	}

	low, err := parsePrice(raw[rawLow], "low")
	if err != nil {
		return nil, err
	}

	closePrice, err := parsePrice(raw[rawClose], "close")
	if err != nil {
		return nil, err
	}

	volume, err := strconv.ParseFloat(raw[rawVolume], 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse volume: [%v]", err)
	}

	// ParseFloat accepts NaN and infinity spellings which the sign
	// checks cannot catch.
	if math.IsNaN(volume) || math.IsInf(volume, 0) {
		return nil, fmt.Errorf("non-finite volume: [%v]", volume)
	}

	if volume < 0 {
		return nil, fmt.Errorf("negative volume: [%v]", volume)
	}

	if high < low {
		return nil, fmt.Errorf(
			"high [%v] below low [%v]",
			high,
			low,
		)
	}

	candle := &Candle{
		Series:   series,
		OpenTime: openTime,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
		Flagged: open > high || open < low ||
			closePrice > high || closePrice < low,
	}

	if candle.QuoteVolume, err = optionalFloat(
		raw,
		rawQuoteVolume,
		"quote volume",
	); err != nil {
		return nil, err
	}

	if candle.TradeCount, err = optionalInt(
		raw,
		rawTradeCount,
		"trade count",
	); err != nil {
		return nil, err
	}

	if candle.TakerBuyBaseVolume, err = optionalFloat(
		raw,
		rawTakerBuyBaseVolume,
		"taker buy base volume",
	); err != nil {
		return nil, err
	}

	if candle.TakerBuyQuoteVolume, err = optionalFloat(
		raw,
		rawTakerBuyQuoteVolume,
		"taker buy quote volume",
	); err != nil {
		return nil, err
	}

	return candle, nil
}

// NormalizeCandles normalizes a whole page of raw tuples, preserving
// their order. Rejected tuples are skipped and returned as errors so
// the caller can log them; they never fail the page.
func NormalizeCandles(
	series Series,
	raws []RawCandle,
	now time.Time,
) ([]*Candle, []error) {
	candles := make([]*Candle, 0, len(raws))
	errs := make([]error, 0)

	for _, raw := range raws {
		candle, err := NormalizeCandle(series, raw, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		candles = append(candles, candle)
	}

	return candles, errs
}

func parsePrice(value, field string) (float64, error) {
	price, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse %v price: [%v]", field, err)
	}

	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("non-finite %v price: [%v]", field, price)
	}

	if price <= 0 {
		return 0, fmt.Errorf("non-positive %v price: [%v]", field, price)
	}

	return price, nil
}

func optionalFloat(raw RawCandle, index int, field string) (*float64, error) {
	if index >= len(raw) || len(raw[index]) == 0 {
		return nil, nil
	}

	value, err := strconv.ParseFloat(raw[index], 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse %v: [%v]", field, err)
	}

	return &value, nil
}

func optionalInt(raw RawCandle, index int, field string) (*int64, error) {
	if index >= len(raw) || len(raw[index]) == 0 {
		return nil, nil
	}

	value, err := strconv.ParseInt(raw[index], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse %v: [%v]", field, err)
	}

	return &value, nil
}

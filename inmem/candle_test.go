package inmem

import (
	damnrich "github.com/HikaRiwwww/damn-rich"
	"testing"
	"time"
)

func TestCandleRepository_UpsertCandles(t *testing.T) {
	repository := NewCandleRepository()
	series := damnrich.Series{ExchangeID: 1, SymbolID: 1, Timeframe: "4h"}

	savedCount, err := repository.UpsertCandles(
		candle(t, series, "2024-06-11T12:00:00Z", 100),
		candle(t, series, "2024-06-11T16:00:00Z", 101),
		candle(t, series, "2024-06-11T20:00:00Z", 102),
	)
	if err != nil {
		t.Fatal(err)
	}

	if savedCount != 3 {
		t.Errorf(
			"unexpected saved count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			3,
			savedCount,
		)
	}

	// Upsert of an already stored open time must replace in place.
	_, err = repository.UpsertCandles(
		candle(t, series, "2024-06-11T16:00:00Z", 999),
	)
	if err != nil {
		t.Fatal(err)
	}

	candles := repository.Candles(series)

	if len(candles) != 3 {
		t.Fatalf(
			"unexpected candles count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			3,
			len(candles),
		)
	}

	if candles[1].Close != 999 {
		t.Errorf(
			"unexpected close of replaced candle\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			999,
			candles[1].Close,
		)
	}
}

func TestCandleRepository_CountCandles(t *testing.T) {
	repository := NewCandleRepository()
	series := damnrich.Series{ExchangeID: 1, SymbolID: 1, Timeframe: "4h"}
	otherSeries := damnrich.Series{ExchangeID: 1, SymbolID: 2, Timeframe: "4h"}

	_, err := repository.UpsertCandles(
		candle(t, series, "2024-06-11T12:00:00Z", 100),
		candle(t, series, "2024-06-11T16:00:00Z", 101),
		candle(t, otherSeries, "2024-06-11T12:00:00Z", 200),
	)
	if err != nil {
		t.Fatal(err)
	}

	count, err := repository.CountCandles(series)
	if err != nil {
		t.Fatal(err)
	}

	if count != 2 {
		t.Errorf(
			"unexpected candles count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			2,
			count,
		)
	}
}

func TestCandleRepository_OldestOpenTime(t *testing.T) {
	repository := NewCandleRepository()
	series := damnrich.Series{ExchangeID: 1, SymbolID: 1, Timeframe: "4h"}

	_, exists, err := repository.OldestOpenTime(series)
	if err != nil {
		t.Fatal(err)
	}

	if exists {
		t.Errorf("unexpected oldest open time for empty series")
	}

	_, err = repository.UpsertCandles(
		candle(t, series, "2024-06-11T16:00:00Z", 101),
		candle(t, series, "2024-06-11T12:00:00Z", 100),
		candle(t, series, "2024-06-11T20:00:00Z", 102),
	)
	if err != nil {
		t.Fatal(err)
	}

	oldestTime, exists, err := repository.OldestOpenTime(series)
	if err != nil {
		t.Fatal(err)
	}

	if !exists {
		t.Fatalf("expected oldest open time to exist")
	}

	expectedTime := parseTime(t, "2024-06-11T12:00:00Z")
	if !oldestTime.Equal(expectedTime) {
		t.Errorf(
			"unexpected oldest open time\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			expectedTime,
			oldestTime,
		)
	}
}

func candle(
	t *testing.T,
	series damnrich.Series,
	openTime string,
	closePrice float64,
) *damnrich.Candle {
	return &damnrich.Candle{
		Series:   series,
		OpenTime: parseTime(t, openTime),
		Open:     closePrice,
		High:     closePrice,
		Low:      closePrice,
		Close:    closePrice,
		Volume:   1,
	}
}

func parseTime(t *testing.T, value string) time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatal(err)
	}

	return parsed
}

package inmem

import (
	damnrich "github.com/HikaRiwwww/damn-rich"
	"sync"
	"time"
)

// CandleRepository is an in-memory candle store with the same visible
// behavior as the postgres one: upserts replace candles with an equal
// identity and a batch is written completely or not at all.
type CandleRepository struct {
	candlesMutex sync.RWMutex
	candles      map[damnrich.Series][]*damnrich.Candle
}

func NewCandleRepository() *CandleRepository {
	return &CandleRepository{
		candles: make(map[damnrich.Series][]*damnrich.Candle),
	}
}

func (cr *CandleRepository) CountCandles(
	series damnrich.Series,
) (int, error) {
	cr.candlesMutex.RLock()
	defer cr.candlesMutex.RUnlock()

	return len(cr.candles[series]), nil
}

func (cr *CandleRepository) OldestOpenTime(
	series damnrich.Series,
) (time.Time, bool, error) {
	cr.candlesMutex.RLock()
	defer cr.candlesMutex.RUnlock()

	candles := cr.candles[series]
	if len(candles) == 0 {
		return time.Time{}, false, nil
	}

	oldest := candles[0].OpenTime
	for _, candle := range candles[1:] {
		if candle.OpenTime.Before(oldest) {
			oldest = candle.OpenTime
		}
	}

	return oldest, true, nil
}

func (cr *CandleRepository) UpsertCandles(
	candles ...*damnrich.Candle,
) (int, error) {
	cr.candlesMutex.Lock()
	defer cr.candlesMutex.Unlock()

	for _, candle := range candles {
		stored := cr.candles[candle.Series]

		replaced := false
		for index, existing := range stored {
			if existing.Equal(candle) {
				stored[index] = candle
				replaced = true
				break
			}
		}

		if !replaced {
			cr.candles[candle.Series] = append(stored, candle)
		}
	}

	return len(candles), nil
}

// Candles returns a snapshot of all candles stored for the series, in
// insertion order.
func (cr *CandleRepository) Candles(
	series damnrich.Series,
) []*damnrich.Candle {
	cr.candlesMutex.RLock()
	defer cr.candlesMutex.RUnlock()

	snapshot := make([]*damnrich.Candle, len(cr.candles[series]))
	copy(snapshot, cr.candles[series])

	return snapshot
}

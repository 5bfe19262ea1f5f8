package binance

import (
	"context"
	damnrich "github.com/HikaRiwwww/damn-rich"
	"github.com/adshao/go-binance/v2"
	"strconv"
	"time"
)

// RecentCandles fetches the newest candles of the pair, up to the given
// limit.
func (cs *CandleService) RecentCandles(
	ctx context.Context,
	pair damnrich.Pair,
	timeframe damnrich.Timeframe,
	limit int,
) ([]damnrich.RawCandle, error) {
	return cs.fetchCandles(ctx, pair, timeframe, nil, limit)
}

// CandlesSince fetches up to limit candles whose open time is at or
// after the given lower bound, oldest first.
func (cs *CandleService) CandlesSince(
	ctx context.Context,
	pair damnrich.Pair,
	timeframe damnrich.Timeframe,
	since time.Time,
	limit int,
) ([]damnrich.RawCandle, error) {
	return cs.fetchCandles(ctx, pair, timeframe, &since, limit)
}

func (cs *CandleService) fetchCandles(
	ctx context.Context,
	pair damnrich.Pair,
	timeframe damnrich.Timeframe,
	since *time.Time,
	limit int,
) ([]damnrich.RawCandle, error) {
	if err := cs.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	requestCtx, cancelRequestCtx := context.WithTimeout(ctx, requestTimeout)
	defer cancelRequestCtx()

	service := cs.client.
		NewKlinesService().
		Symbol(string(pair.Symbol())).
		Interval(string(timeframe)).
		Limit(limit)

	if since != nil {
		service = service.StartTime(since.UnixNano() / 1e6)
	}

	klines, err := service.Do(requestCtx)
	if err != nil {
		return nil, err
	}

	raws := make([]damnrich.RawCandle, len(klines))
	for index := range raws {
		raws[index] = parseKline(klines[index])
	}

	return raws, nil
}

// parseKline rewrites a kline into the positional raw candle layout
// consumed by the normalizer.
func parseKline(kline *binance.Kline) damnrich.RawCandle {
	return damnrich.RawCandle{
		strconv.FormatInt(kline.OpenTime, 10),
		kline.Open,
		kline.High,
		kline.Low,
		kline.Close,
		kline.Volume,
		kline.QuoteAssetVolume,
		strconv.FormatInt(kline.TradeNum, 10),
		kline.TakerBuyBaseAssetVolume,
		kline.TakerBuyQuoteAssetVolume,
	}
}

package postgres

import (
	"database/sql"
	"fmt"
	damnrich "github.com/HikaRiwwww/damn-rich"
	"github.com/jackc/pgtype"
	"time"
)

type CandleRepository struct {
	client *Client
}

func NewCandleRepository(client *Client) *CandleRepository {
	return &CandleRepository{client}
}

func (cr *CandleRepository) CountCandles(
	series damnrich.Series,
) (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM candle
		WHERE exchange_id = $1 AND symbol_id = $2 AND timeframe = $3`

	err := cr.client.instance().Get(
		&count,
		query,
		series.ExchangeID,
		series.SymbolID,
		string(series.Timeframe),
	)
	if err != nil {
		return 0, fmt.Errorf(
			"could not execute query for series [%v]: [%v]",
			series,
			err,
		)
	}

	return count, nil
}

func (cr *CandleRepository) OldestOpenTime(
	series damnrich.Series,
) (time.Time, bool, error) {
	var openTime sql.NullTime

	query := `SELECT MIN(open_time) FROM candle
		WHERE exchange_id = $1 AND symbol_id = $2 AND timeframe = $3`

	err := cr.client.instance().Get(
		&openTime,
		query,
		series.ExchangeID,
		series.SymbolID,
		string(series.Timeframe),
	)
	if err != nil {
		return time.Time{}, false, fmt.Errorf(
			"could not execute query for series [%v]: [%v]",
			series,
			err,
		)
	}

	if !openTime.Valid {
		return time.Time{}, false, nil
	}

	return openTime.Time, true, nil
}

// UpsertCandles writes the given candles within a single transaction.
// A candle sharing its series and open time with a stored one replaces
// it. On any failure the transaction is rolled back and zero written
// candles are reported.
func (cr *CandleRepository) UpsertCandles(
	candles ...*damnrich.Candle,
) (int, error) {
	query := `INSERT INTO
		candle (exchange_id, symbol_id, timeframe, open_time, open_price,
		        high_price, low_price, close_price, volume, quote_volume,
		        taker_buy_base_volume, taker_buy_quote_volume, trade_count,
		        flagged)
		VALUES (:exchange_id, :symbol_id, :timeframe, :open_time, :open_price,
		        :high_price, :low_price, :close_price, :volume, :quote_volume,
		        :taker_buy_base_volume, :taker_buy_quote_volume, :trade_count,
		        :flagged)
		ON CONFLICT (exchange_id, symbol_id, timeframe, open_time)
		DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume,
			quote_volume = EXCLUDED.quote_volume,
			taker_buy_base_volume = EXCLUDED.taker_buy_base_volume,
			taker_buy_quote_volume = EXCLUDED.taker_buy_quote_volume,
			trade_count = EXCLUDED.trade_count,
			flagged = EXCLUDED.flagged`

	transaction, err := cr.client.instance().Beginx()
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction: [%v]", err)
	}

	for _, candle := range candles {
		candleRow, err := new(candleRow).wrap(candle)
		if err != nil {
			_ = transaction.Rollback()
			return 0, fmt.Errorf(
				"could not convert candle [%v] to pg row: [%v]",
				candle,
				err,
			)
		}

		if _, err := transaction.NamedExec(query, candleRow); err != nil {
			_ = transaction.Rollback()
			return 0, fmt.Errorf(
				"could not execute command for candle [%v]: [%v]",
				candle,
				err,
			)
		}
	}

	if err := transaction.Commit(); err != nil {
		return 0, fmt.Errorf("could not commit transaction: [%v]", err)
	}

	return len(candles), nil
}

// Candles returns the stored candles of the series with open times in
// the [from, to) range, oldest first.
func (cr *CandleRepository) Candles(
	series damnrich.Series,
	from time.Time,
	to time.Time,
) ([]*damnrich.Candle, error) {
	var candleRows []candleRow

	query := `SELECT * FROM candle
		WHERE exchange_id = $1 AND symbol_id = $2 AND timeframe = $3
			AND open_time >= $4 AND open_time < $5
		ORDER BY open_time ASC`

	err := cr.client.instance().Select(
		&candleRows,
		query,
		series.ExchangeID,
		series.SymbolID,
		string(series.Timeframe),
		from,
		to,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"could not execute query for series [%v]: [%v]",
			series,
			err,
		)
	}

	candles := make([]*damnrich.Candle, len(candleRows))
	for index := range candles {
		candle, err := candleRows[index].unwrap()
		if err != nil {
			return nil, fmt.Errorf(
				"could not convert candle from pg row: [%v]",
				err,
			)
		}

		candles[index] = candle
	}

	return candles, nil
}

type candleRow struct {
	ExchangeID          int64 `db:"exchange_id"`
	SymbolID            int64 `db:"symbol_id"`
	Timeframe           string
	OpenTime            time.Time      `db:"open_time"`
	OpenPrice           pgtype.Numeric `db:"open_price"`
	HighPrice           pgtype.Numeric `db:"high_price"`
	LowPrice            pgtype.Numeric `db:"low_price"`
	ClosePrice          pgtype.Numeric `db:"close_price"`
	Volume              pgtype.Numeric
	QuoteVolume         pgtype.Numeric `db:"quote_volume"`
	TakerBuyBaseVolume  pgtype.Numeric `db:"taker_buy_base_volume"`
	TakerBuyQuoteVolume pgtype.Numeric `db:"taker_buy_quote_volume"`
	TradeCount          sql.NullInt64  `db:"trade_count"`
	Flagged             bool
}

func (cr *candleRow) wrap(candle *damnrich.Candle) (*candleRow, error) {
	openPrice, err := floatToNumeric(candle.Open)
	if err != nil {
		return nil, err
	}

	highPrice, err := floatToNumeric(candle.High)
	if err != nil {
		return nil, err
	}

	lowPrice, err := floatToNumeric(candle.Low)
	if err != nil {
		return nil, err
	}

	closePrice, err := floatToNumeric(candle.Close)
	if err != nil {
		return nil, err
	}

	volume, err := floatToNumeric(candle.Volume)
	if err != nil {
		return nil, err
	}

	quoteVolume, err := nullableFloatToNumeric(candle.QuoteVolume)
	if err != nil {
		return nil, err
	}

	takerBuyBaseVolume, err := nullableFloatToNumeric(
		candle.TakerBuyBaseVolume,
	)
	if err != nil {
		return nil, err
	}

	takerBuyQuoteVolume, err := nullableFloatToNumeric(
		candle.TakerBuyQuoteVolume,
	)
	if err != nil {
		return nil, err
	}

	tradeCount := sql.NullInt64{}
	if candle.TradeCount != nil {
		tradeCount = sql.NullInt64{Int64: *candle.TradeCount, Valid: true}
	}

	cr.ExchangeID = candle.ExchangeID
	cr.SymbolID = candle.SymbolID
	cr.Timeframe = string(candle.Timeframe)
	cr.OpenTime = candle.OpenTime
	cr.OpenPrice = openPrice
	cr.HighPrice = highPrice
	cr.LowPrice = lowPrice
	cr.ClosePrice = closePrice
	cr.Volume = volume
	cr.QuoteVolume = quoteVolume
	cr.TakerBuyBaseVolume = takerBuyBaseVolume
	cr.TakerBuyQuoteVolume = takerBuyQuoteVolume
	cr.TradeCount = tradeCount
	cr.Flagged = candle.Flagged

	return cr, nil
}

func (cr *candleRow) unwrap() (*damnrich.Candle, error) {
	openPrice, err := numericToFloat(cr.OpenPrice)
	if err != nil {
		return nil, err
	}

	highPrice, err := numericToFloat(cr.HighPrice)
	if err != nil {
		return nil, err
	}

	lowPrice, err := numericToFloat(cr.LowPrice)
	if err != nil {
		return nil, err
	}

	closePrice, err := numericToFloat(cr.ClosePrice)
	if err != nil {
		return nil, err
	}

	volume, err := numericToFloat(cr.Volume)
	if err != nil {
		return nil, err
	}

	quoteVolume, err := numericToNullableFloat(cr.QuoteVolume)
	if err != nil {
		return nil, err
	}

	takerBuyBaseVolume, err := numericToNullableFloat(cr.TakerBuyBaseVolume)
	if err != nil {
		return nil, err
	}

	takerBuyQuoteVolume, err := numericToNullableFloat(cr.TakerBuyQuoteVolume)
	if err != nil {
		return nil, err
	}

	var tradeCount *int64
	if cr.TradeCount.Valid {
		tradeCount = &cr.TradeCount.Int64
	}

	return &damnrich.Candle{
		Series: damnrich.Series{
			ExchangeID: cr.ExchangeID,
			SymbolID:   cr.SymbolID,
			Timeframe:  damnrich.Timeframe(cr.Timeframe),
		},
		OpenTime:            cr.OpenTime,
		Open:                openPrice,
		High:                highPrice,
		Low:                 lowPrice,
		Close:               closePrice,
		Volume:              volume,
		QuoteVolume:         quoteVolume,
		TradeCount:          tradeCount,
		TakerBuyBaseVolume:  takerBuyBaseVolume,
		TakerBuyQuoteVolume: takerBuyQuoteVolume,
		Flagged:             cr.Flagged,
	}, nil
}

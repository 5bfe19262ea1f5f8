package damnrich

import (
	"context"
	"fmt"
	"time"
)

// Default sync engine settings, tuned for the public Binance API.
const (
	DefaultTimeframe           = Timeframe("4h")
	DefaultRecentFetchLimit    = 200
	DefaultBackfillPageLimit   = 500
	DefaultBackfillHorizon     = 365 * 24 * time.Hour
	DefaultCompleteCandleCount = 2000
	DefaultMaxEmptyPageRetries = 100
	DefaultPagePause           = 1 * time.Second
	DefaultSlowPagePause       = 3 * time.Second
	DefaultEmptyPagePause      = 10 * time.Second
	DefaultSymbolPause         = 500 * time.Millisecond
)

// SyncConfig carries all knobs of the sync engine. It is constructed
// once at startup and passed into NewSyncTask.
type SyncConfig struct {
	// Exchange is the catalog name of the synchronized exchange.
	Exchange string

	// Timeframe of the synchronized candle series.
	Timeframe Timeframe

	// RecentFetchLimit is the number of candles requested by an
	// incremental sync of a symbol with complete history.
	RecentFetchLimit int

	// BackfillPageLimit is the page size used while paginating through
	// the history of an incomplete symbol.
	BackfillPageLimit int

	// BackfillHorizon is how far back the history of a symbol is
	// considered interesting. A history spanning the whole horizon
	// counts as complete.
	BackfillHorizon time.Duration

	// CompleteCandleCount is the stored candle count at which a history
	// counts as complete regardless of its span.
	CompleteCandleCount int

	// MaxEmptyPageRetries bounds how often an empty backfill page is
	// retried at the same cursor before the symbol fails.
	MaxEmptyPageRetries int

	// PagePause and SlowPagePause separate consecutive backfill pages;
	// the slow variant applies after a page smaller than one tenth of
	// BackfillPageLimit. EmptyPagePause separates retries of an empty
	// page and SymbolPause separates consecutive symbols.
	PagePause      time.Duration
	SlowPagePause  time.Duration
	EmptyPagePause time.Duration
	SymbolPause    time.Duration
}

func DefaultSyncConfig(exchange string) *SyncConfig {
	return &SyncConfig{
		Exchange:            exchange,
		Timeframe:           DefaultTimeframe,
		RecentFetchLimit:    DefaultRecentFetchLimit,
		BackfillPageLimit:   DefaultBackfillPageLimit,
		BackfillHorizon:     DefaultBackfillHorizon,
		CompleteCandleCount: DefaultCompleteCandleCount,
		MaxEmptyPageRetries: DefaultMaxEmptyPageRetries,
		PagePause:           DefaultPagePause,
		SlowPagePause:       DefaultSlowPagePause,
		EmptyPagePause:      DefaultEmptyPagePause,
		SymbolPause:         DefaultSymbolPause,
	}
}

// SyncTask synchronizes the candle series of all active symbols of one
// exchange into the candle repository. Symbols are processed strictly
// one after another; a single task instance never runs concurrently.
type SyncTask struct {
	config             *SyncConfig
	source             CandleSource
	exchangeRepository ExchangeRepository
	symbolRepository   SymbolRepository
	candleRepository   CandleRepository
	eventService       EventService
	logger             Logger
}

func NewSyncTask(
	config *SyncConfig,
	source CandleSource,
	exchangeRepository ExchangeRepository,
	symbolRepository SymbolRepository,
	candleRepository CandleRepository,
	eventService EventService,
	logger Logger,
) (*SyncTask, error) {
	if _, err := ParseTimeframe(string(config.Timeframe)); err != nil {
		return nil, fmt.Errorf("could not validate timeframe: [%v]", err)
	}

	return &SyncTask{
		config:             config,
		source:             source,
		exchangeRepository: exchangeRepository,
		symbolRepository:   symbolRepository,
		candleRepository:   candleRepository,
		eventService:       eventService,
		logger:             logger,
	}, nil
}

// Execute runs one sync pass over all active symbols of the configured
// exchange and returns true if at least one symbol has been
// synchronized successfully. Per-symbol failures are logged and do not
// affect the remaining symbols. A non-nil error means the pass could
// not start at all: the exchange is unknown, or the symbol catalog is
// unreadable or empty.
func (st *SyncTask) Execute(ctx context.Context) (bool, error) {
	startTime := time.Now()

	exchange, err := st.exchangeRepository.ExchangeByName(st.config.Exchange)
	if err != nil {
		return false, fmt.Errorf(
			"could not resolve exchange [%v]: [%v]",
			st.config.Exchange,
			err,
		)
	}

	symbols, err := st.symbolRepository.ActiveSymbols()
	if err != nil {
		return false, fmt.Errorf("could not get active symbols: [%v]", err)
	}

	if len(symbols) == 0 {
		return false, fmt.Errorf(
			"no active symbols for exchange [%v]",
			st.config.Exchange,
		)
	}

	st.logger.Infof("starting candle sync for [%v] symbols", len(symbols))

	syncedCount := 0

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			st.logger.Warningf("candle sync cancelled")
			break
		}

		symbolLogger := st.logger.WithFields(map[string]interface{}{
			"exchange":  exchange.Name,
			"symbol":    symbol.Ticker,
			"timeframe": st.config.Timeframe.String(),
		})

		err := st.syncSymbol(ctx, symbolLogger, exchange, symbol)
		if err != nil {
			symbolLogger.Errorf("symbol sync failed: [%v]", err)
		} else {
			syncedCount++
		}

		if err := pace(ctx, st.config.SymbolPause); err != nil {
			break
		}
	}

	st.logger.Infof(
		"candle sync finished; synced [%v] of [%v] symbols",
		syncedCount,
		len(symbols),
	)

	if st.eventService != nil {
		st.eventService.Publish(NewSyncFinishedEvent(
			exchange.Name,
			st.config.Timeframe,
			syncedCount,
			len(symbols),
			time.Since(startTime),
		))
	}

	return syncedCount > 0, nil
}

func (st *SyncTask) syncSymbol(
	ctx context.Context,
	logger Logger,
	exchange *Exchange,
	symbol *Symbol,
) error {
	series := Series{
		ExchangeID: exchange.ID,
		SymbolID:   symbol.ID,
		Timeframe:  st.config.Timeframe,
	}

	complete, err := st.historyComplete(logger, series)
	if err != nil {
		return fmt.Errorf("could not classify history: [%v]", err)
	}

	if complete {
		return st.syncRecent(ctx, logger, series, symbol.Pair())
	}

	return st.backfill(ctx, logger, series, symbol.Pair())
}

// historyComplete decides between the incremental and the backfill
// path. A history is complete once it holds enough candles or spans
// the whole backfill horizon.
func (st *SyncTask) historyComplete(
	logger Logger,
	series Series,
) (bool, error) {
	count, err := st.candleRepository.CountCandles(series)
	if err != nil {
		return false, fmt.Errorf("could not count candles: [%v]", err)
	}

	if count >= st.config.CompleteCandleCount {
		logger.Debugf("history complete with [%v] candles", count)
		return true, nil
	}

	oldestTime, exists, err := st.candleRepository.OldestOpenTime(series)
	if err != nil {
		return false, fmt.Errorf("could not get oldest open time: [%v]", err)
	}

	if !exists {
		logger.Debugf("history is empty")
		return false, nil
	}

	if span := time.Since(oldestTime); span >= st.config.BackfillHorizon {
		logger.Debugf("history complete with [%v] span", span)
		return true, nil
	}

	return false, nil
}

func (st *SyncTask) syncRecent(
	ctx context.Context,
	logger Logger,
	series Series,
	pair Pair,
) error {
	logger.Infof("running incremental sync")

	raws, err := st.source.RecentCandles(
		ctx,
		pair,
		series.Timeframe,
		st.config.RecentFetchLimit,
	)
	if err != nil {
		return fmt.Errorf("could not fetch recent candles: [%v]", err)
	}

	if len(raws) == 0 {
		return fmt.Errorf("source returned no recent candles")
	}

	savedCount, err := st.writeCandles(logger, series, raws)
	if err != nil {
		return err
	}

	logger.Infof("incremental sync saved [%v] candles", savedCount)

	return nil
}

// backfill pages through the symbol's history from the lower bound
// towards the time the backfill started. The lower bound is recomputed
// from the store on every run, so an interrupted backfill resumes from
// the stored minimum instead of refetching the whole horizon.
func (st *SyncTask) backfill(
	ctx context.Context,
	logger Logger,
	series Series,
	pair Pair,
) error {
	end := time.Now()
	cursor := end.Add(-st.config.BackfillHorizon)

	oldestTime, exists, err := st.candleRepository.OldestOpenTime(series)
	if err != nil {
		return fmt.Errorf("could not get oldest open time: [%v]", err)
	}

	if exists {
		cursor = oldestTime
	}

	logger.Infof("running backfill from [%v]", cursor.Format(time.RFC3339))

	var fetchedCount, savedCount, emptyRetries int

	for cursor.Before(end) {
		if err := ctx.Err(); err != nil {
			return err
		}

		raws, err := st.source.CandlesSince(
			ctx,
			pair,
			series.Timeframe,
			cursor,
			st.config.BackfillPageLimit,
		)
		if err != nil {
			return fmt.Errorf("could not fetch candles page: [%v]", err)
		}

		if len(raws) == 0 {
			emptyRetries++
			if emptyRetries >= st.config.MaxEmptyPageRetries {
				return fmt.Errorf(
					"backfill aborted after [%v] empty pages at [%v]",
					emptyRetries,
					cursor.Format(time.RFC3339),
				)
			}

			logger.Warningf(
				"empty candles page at [%v]; retry [%v] of [%v]",
				cursor.Format(time.RFC3339),
				emptyRetries,
				st.config.MaxEmptyPageRetries,
			)

			if err := pace(ctx, st.config.EmptyPagePause); err != nil {
				return err
			}
			continue
		}

		emptyRetries = 0

		pageSavedCount, err := st.writeCandles(logger, series, raws)
		if err != nil {
			return err
		}

		fetchedCount += len(raws)
		savedCount += pageSavedCount

		lastOpenTime, err := raws[len(raws)-1].OpenTime()
		if err != nil {
			return fmt.Errorf("could not read page cursor: [%v]", err)
		}

		// Advance past the last received candle. Empty pages leave the
		// cursor untouched so a retry targets the same range.
		cursor = lastOpenTime.Add(series.Timeframe.Duration())

		pause := st.config.PagePause
		if len(raws) < st.config.BackfillPageLimit/10 {
			pause = st.config.SlowPagePause
		}

		if err := pace(ctx, pause); err != nil {
			return err
		}
	}

	if fetchedCount == 0 {
		return fmt.Errorf("backfill fetched no candles")
	}

	logger.Infof(
		"backfill fetched [%v] and saved [%v] candles",
		fetchedCount,
		savedCount,
	)

	return nil
}

// writeCandles normalizes one page and upserts the survivors as a
// single atomic batch. Rejected tuples are logged and skipped; a store
// failure fails the page with zero candles written.
func (st *SyncTask) writeCandles(
	logger Logger,
	series Series,
	raws []RawCandle,
) (int, error) {
	candles, rejected := NormalizeCandles(series, raws, time.Now())

	for _, err := range rejected {
		logger.Warningf("rejecting candle: [%v]", err)
	}

	for _, candle := range candles {
		if candle.Flagged {
			logger.Warningf(
				"accepting candle [%v] with open or close "+
					"outside the low-high range",
				candle,
			)
		}
	}

	if len(candles) == 0 {
		return 0, nil
	}

	savedCount, err := st.candleRepository.UpsertCandles(candles...)
	if err != nil {
		return 0, fmt.Errorf("could not save candles: [%v]", err)
	}

	return savedCount, nil
}

// pace waits the given duration or returns early when the context gets
// cancelled.
func pace(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

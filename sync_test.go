package damnrich_test

import (
	"context"
	"fmt"
	damnrich "github.com/HikaRiwwww/damn-rich"
	"github.com/HikaRiwwww/damn-rich/inmem"
	"strconv"
	"testing"
	"time"
)

func TestSyncTask_CompleteHistoryByCountRunsIncremental(t *testing.T) {
	fixture := newSyncFixture(t, "BTC/USDT")
	fixture.config.CompleteCandleCount = 2000

	series := fixture.series(1)
	fixture.preloadCandles(
		t,
		series,
		time.Now().Add(-30*24*time.Hour),
		time.Minute,
		2000,
	)

	fixture.source.scriptRecent(
		"BTC/USDT",
		rawCandles(time.Now().Add(-8*time.Hour), fixture.config.Timeframe, 2),
	)

	ok, err := fixture.task.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !ok {
		t.Errorf("expected a successful sync pass")
	}

	if calls := fixture.source.recentCalls["BTC/USDT"]; calls != 1 {
		t.Errorf(
			"unexpected recent fetches count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			1,
			calls,
		)
	}

	if calls := len(fixture.source.sinceCalls["BTC/USDT"]); calls != 0 {
		t.Errorf("unexpected backfill fetches count: [%v]", calls)
	}

	count, err := fixture.candles.CountCandles(series)
	if err != nil {
		t.Fatal(err)
	}

	if count != 2002 {
		t.Errorf(
			"unexpected candles count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			2002,
			count,
		)
	}
}

func TestSyncTask_CompleteHistoryBySpanRunsIncremental(t *testing.T) {
	fixture := newSyncFixture(t, "BTC/USDT")

	// A short history whose oldest candle sits exactly at the horizon.
	fixture.preloadCandles(
		t,
		fixture.series(1),
		time.Now().Add(-fixture.config.BackfillHorizon),
		4*time.Hour,
		3,
	)

	fixture.source.scriptRecent(
		"BTC/USDT",
		rawCandles(time.Now().Add(-8*time.Hour), fixture.config.Timeframe, 2),
	)

	ok, err := fixture.task.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !ok {
		t.Errorf("expected a successful sync pass")
	}

	if calls := fixture.source.recentCalls["BTC/USDT"]; calls != 1 {
		t.Errorf("unexpected recent fetches count: [%v]", calls)
	}

	if calls := len(fixture.source.sinceCalls["BTC/USDT"]); calls != 0 {
		t.Errorf("unexpected backfill fetches count: [%v]", calls)
	}
}

func TestSyncTask_IncompleteHistoryRunsBackfill(t *testing.T) {
	fixture := newSyncFixture(t, "BTC/USDT")
	fixture.config.CompleteCandleCount = 2000

	// Just below both completeness thresholds.
	oldestTime := time.UnixMilli(
		time.Now().Add(-364 * 24 * time.Hour).UnixMilli(),
	)
	fixture.preloadCandles(t, fixture.series(1), oldestTime, time.Minute, 1999)

	// No pages scripted: every page comes back empty until the retry
	// budget of the fixture runs out.
	ok, err := fixture.task.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if ok {
		t.Errorf("expected a failed sync pass")
	}

	if calls := fixture.source.recentCalls["BTC/USDT"]; calls != 0 {
		t.Errorf("unexpected recent fetches count: [%v]", calls)
	}

	sinceCalls := fixture.source.sinceCalls["BTC/USDT"]

	if len(sinceCalls) != fixture.config.MaxEmptyPageRetries {
		t.Fatalf(
			"unexpected backfill fetches count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			fixture.config.MaxEmptyPageRetries,
			len(sinceCalls),
		)
	}

	// Backfill resumes from the stored minimum and an empty page never
	// moves the cursor.
	for index, sinceCall := range sinceCalls {
		if !sinceCall.Equal(oldestTime) {
			t.Errorf(
				"unexpected cursor of fetch [%v]\n"+
					"expected: [%v]\n"+
					"actual:   [%v]",
				index,
				oldestTime,
				sinceCall,
			)
		}
	}
}

func TestSyncTask_BackfillPaginates(t *testing.T) {
	fixture := newSyncFixture(t, "BTC/USDT")
	timeframe := fixture.config.Timeframe

	start := time.Now().Add(-365 * 24 * time.Hour)
	pageStep := time.Duration(500) * timeframe.Duration()

	page1 := rawCandles(start, timeframe, 500)
	page2 := rawCandles(start.Add(pageStep), timeframe, 500)
	page3 := rawCandles(start.Add(2*pageStep), timeframe, 50)

	fixture.source.scriptPages("BTC/USDT", page1, page2, page3)

	ok, err := fixture.task.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// The source dries up long before the backfill reaches the present,
	// so the symbol ends up failed; everything fetched so far must be
	// persisted nevertheless.
	if ok {
		t.Errorf("expected a failed sync pass")
	}

	count, err := fixture.candles.CountCandles(fixture.series(1))
	if err != nil {
		t.Fatal(err)
	}

	if count != 1050 {
		t.Errorf(
			"unexpected candles count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			1050,
			count,
		)
	}

	sinceCalls := fixture.source.sinceCalls["BTC/USDT"]

	expectedCalls := 3 + fixture.config.MaxEmptyPageRetries
	if len(sinceCalls) != expectedCalls {
		t.Fatalf(
			"unexpected backfill fetches count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			expectedCalls,
			len(sinceCalls),
		)
	}

	// The cursor always advances to the last open time plus one
	// timeframe duration.
	expectedCursors := []time.Time{
		lastOpenTime(t, page1).Add(timeframe.Duration()),
		lastOpenTime(t, page2).Add(timeframe.Duration()),
		lastOpenTime(t, page3).Add(timeframe.Duration()),
	}

	for index, expectedCursor := range expectedCursors {
		if !sinceCalls[index+1].Equal(expectedCursor) {
			t.Errorf(
				"unexpected cursor of fetch [%v]\n"+
					"expected: [%v]\n"+
					"actual:   [%v]",
				index+1,
				expectedCursor,
				sinceCalls[index+1],
			)
		}
	}

	for index := 1; index < len(sinceCalls); index++ {
		if sinceCalls[index].Before(sinceCalls[index-1]) {
			t.Errorf("cursor moved backwards at fetch [%v]", index)
		}
	}
}

func TestSyncTask_BackfillResumesAndStaysIdempotent(t *testing.T) {
	fixture := newSyncFixture(t, "BTC/USDT")
	timeframe := fixture.config.Timeframe

	firstOpen := time.Now().Add(-43 * time.Hour)
	page1 := rawCandles(firstOpen, timeframe, 10)
	page2 := rawCandles(time.Now().Add(-3*time.Hour), timeframe, 1)

	fixture.source.scriptPages("BTC/USDT", page1, page2)

	ok, err := fixture.task.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !ok {
		t.Errorf("expected a successful sync pass")
	}

	count, err := fixture.candles.CountCandles(fixture.series(1))
	if err != nil {
		t.Fatal(err)
	}

	if count != 11 {
		t.Fatalf(
			"unexpected candles count after first run\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			11,
			count,
		)
	}

	// Serve the very same history again and re-run.
	fixture.source.resetPages()

	ok, err = fixture.task.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !ok {
		t.Errorf("expected a successful second sync pass")
	}

	count, err = fixture.candles.CountCandles(fixture.series(1))
	if err != nil {
		t.Fatal(err)
	}

	if count != 11 {
		t.Errorf(
			"unexpected candles count after second run\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			11,
			count,
		)
	}

	// The second run resumed from the stored minimum.
	sinceCalls := fixture.source.sinceCalls["BTC/USDT"]

	if len(sinceCalls) != 4 {
		t.Fatalf("unexpected backfill fetches count: [%v]", len(sinceCalls))
	}

	expectedResumeCursor := time.UnixMilli(firstOpen.UnixMilli())
	if !sinceCalls[2].Equal(expectedResumeCursor) {
		t.Errorf(
			"unexpected resume cursor\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			expectedResumeCursor,
			sinceCalls[2],
		)
	}
}

func TestSyncTask_EmptyRecentResultFailsSymbol(t *testing.T) {
	fixture := newSyncFixture(t, "BTC/USDT")

	fixture.preloadCandles(
		t,
		fixture.series(1),
		time.Now().Add(-366*24*time.Hour),
		4*time.Hour,
		2,
	)

	// No recent candles scripted: the source yields an empty result.
	ok, err := fixture.task.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if ok {
		t.Errorf("expected a failed sync pass")
	}

	if calls := fixture.source.recentCalls["BTC/USDT"]; calls != 1 {
		t.Errorf("unexpected recent fetches count: [%v]", calls)
	}
}

func TestSyncTask_FailedSymbolDoesNotStopOthers(t *testing.T) {
	fixture := newSyncFixture(t, "BTC/USDT", "ETH/USDT")

	fixture.source.scriptFailure(
		"BTC/USDT",
		fmt.Errorf("connection refused"),
	)
	fixture.source.scriptPages(
		"ETH/USDT",
		rawCandles(time.Now().Add(-3*time.Hour), fixture.config.Timeframe, 1),
	)

	ok, err := fixture.task.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !ok {
		t.Errorf("expected a successful sync pass")
	}

	btcCount, err := fixture.candles.CountCandles(fixture.series(1))
	if err != nil {
		t.Fatal(err)
	}

	if btcCount != 0 {
		t.Errorf("unexpected candles count for failed symbol: [%v]", btcCount)
	}

	ethCount, err := fixture.candles.CountCandles(fixture.series(2))
	if err != nil {
		t.Fatal(err)
	}

	if ethCount != 1 {
		t.Errorf(
			"unexpected candles count for healthy symbol\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			1,
			ethCount,
		)
	}

	if len(fixture.events.events) != 1 {
		t.Fatalf("unexpected events count: [%v]", len(fixture.events.events))
	}

	event := fixture.events.events[0]
	if event.SyncedSymbols != 1 || event.TotalSymbols != 2 {
		t.Errorf(
			"unexpected event counters\n"+
				"expected: [%v/%v]\n"+
				"actual:   [%v/%v]",
			1,
			2,
			event.SyncedSymbols,
			event.TotalSymbols,
		)
	}
}

func TestSyncTask_UnknownExchangeAborts(t *testing.T) {
	fixture := newSyncFixture(t, "BTC/USDT")
	fixture.config.Exchange = "okx"

	ok, err := fixture.task.Execute(context.Background())
	if err == nil {
		t.Fatalf("expected a whole-run error")
	}

	if ok {
		t.Errorf("expected a failed sync pass")
	}
}

func TestSyncTask_NoActiveSymbolsAborts(t *testing.T) {
	fixture := newSyncFixture(t)

	ok, err := fixture.task.Execute(context.Background())
	if err == nil {
		t.Fatalf("expected a whole-run error")
	}

	if ok {
		t.Errorf("expected a failed sync pass")
	}
}

func TestSyncTask_WriteFailureKeepsCommittedBatches(t *testing.T) {
	fixture := newSyncFixture(t, "BTC/USDT")
	timeframe := fixture.config.Timeframe

	repository := &failingCandleRepository{
		CandleRepository: fixture.candles,
		failAfterCalls:   1,
	}
	fixture.buildTask(t, repository)

	start := time.Now().Add(-100 * time.Hour)
	fixture.source.scriptPages(
		"BTC/USDT",
		rawCandles(start, timeframe, 10),
		rawCandles(start.Add(10*timeframe.Duration()), timeframe, 10),
	)

	ok, err := fixture.task.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if ok {
		t.Errorf("expected a failed sync pass")
	}

	// The first batch stays committed, the failed one is not retried.
	count, err := fixture.candles.CountCandles(fixture.series(1))
	if err != nil {
		t.Fatal(err)
	}

	if count != 10 {
		t.Errorf(
			"unexpected candles count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			10,
			count,
		)
	}

	if repository.calls != 2 {
		t.Errorf("unexpected upsert calls count: [%v]", repository.calls)
	}
}

func TestSyncTask_SkipsMalformedAndKeepsFlagged(t *testing.T) {
	fixture := newSyncFixture(t, "BTC/USDT")

	flaggedTime := time.Now().Add(-9 * time.Hour)

	page := []damnrich.RawCandle{
		rawCandleAt(time.Now().Add(-17 * time.Hour)),
		{"not-a-number", "100", "110", "90"},
		{
			strconv.FormatInt(flaggedTime.UnixMilli(), 10),
			"100", "110", "90", "111", "1000",
		},
		rawCandleAt(time.Now().Add(-1 * time.Hour)),
	}

	fixture.source.scriptPages("BTC/USDT", page)

	ok, err := fixture.task.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !ok {
		t.Errorf("expected a successful sync pass")
	}

	candles := fixture.candles.Candles(fixture.series(1))

	if len(candles) != 3 {
		t.Fatalf(
			"unexpected candles count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			3,
			len(candles),
		)
	}

	expectedFlaggedTime := time.UnixMilli(flaggedTime.UnixMilli())

	for _, candle := range candles {
		expectedFlagged := candle.OpenTime.Equal(expectedFlaggedTime)
		if candle.Flagged != expectedFlagged {
			t.Errorf(
				"unexpected flagged state of candle [%v]\n"+
					"expected: [%v]\n"+
					"actual:   [%v]",
				candle,
				expectedFlagged,
				candle.Flagged,
			)
		}
	}
}

func TestSyncTask_CancelStopsPromptly(t *testing.T) {
	fixture := newSyncFixture(t, "BTC/USDT")
	fixture.config.EmptyPagePause = time.Hour

	ctx, cancelCtx := context.WithTimeout(
		context.Background(),
		50*time.Millisecond,
	)
	defer cancelCtx()

	startTime := time.Now()

	ok, err := fixture.task.Execute(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if ok {
		t.Errorf("expected a failed sync pass")
	}

	if elapsed := time.Since(startTime); elapsed > 5*time.Second {
		t.Errorf("sync pass did not stop promptly; took [%v]", elapsed)
	}
}

func TestSyncTask_PublishesSyncEvent(t *testing.T) {
	fixture := newSyncFixture(t, "BTC/USDT")

	fixture.preloadCandles(
		t,
		fixture.series(1),
		time.Now().Add(-366*24*time.Hour),
		4*time.Hour,
		2,
	)

	fixture.source.scriptRecent(
		"BTC/USDT",
		rawCandles(time.Now().Add(-8*time.Hour), fixture.config.Timeframe, 2),
	)

	if _, err := fixture.task.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(fixture.events.events) != 1 {
		t.Fatalf("unexpected events count: [%v]", len(fixture.events.events))
	}

	event := fixture.events.events[0]

	if event.Exchange != "binance" ||
		event.Timeframe != fixture.config.Timeframe ||
		event.SyncedSymbols != 1 ||
		event.TotalSymbols != 1 {
		t.Errorf("unexpected event: [%v]", event)
	}

	if event.Time.IsZero() {
		t.Errorf("unexpected zero event time")
	}
}

type syncFixture struct {
	config    *damnrich.SyncConfig
	source    *stubSource
	exchanges *inmem.ExchangeRepository
	symbols   *inmem.SymbolRepository
	candles   *inmem.CandleRepository
	events    *stubEventService
	task      *damnrich.SyncTask
}

func newSyncFixture(t *testing.T, tickers ...string) *syncFixture {
	config := damnrich.DefaultSyncConfig("binance")
	config.MaxEmptyPageRetries = 3
	config.PagePause = 0
	config.SlowPagePause = 0
	config.EmptyPagePause = 0
	config.SymbolPause = 0

	fixture := &syncFixture{
		config:    config,
		source:    newStubSource(),
		exchanges: inmem.NewExchangeRepository(),
		symbols:   inmem.NewSymbolRepository(),
		candles:   inmem.NewCandleRepository(),
		events:    &stubEventService{},
	}

	catalog := damnrich.NewCatalogInitializer(
		fixture.exchanges,
		fixture.symbols,
		&nopLogger{},
	)

	if err := catalog.EnsureCatalog([]string{"binance"}, tickers); err != nil {
		t.Fatal(err)
	}

	fixture.buildTask(t, fixture.candles)

	return fixture
}

func (sf *syncFixture) buildTask(
	t *testing.T,
	candleRepository damnrich.CandleRepository,
) {
	task, err := damnrich.NewSyncTask(
		sf.config,
		sf.source,
		sf.exchanges,
		sf.symbols,
		candleRepository,
		sf.events,
		&nopLogger{},
	)
	if err != nil {
		t.Fatal(err)
	}

	sf.task = task
}

func (sf *syncFixture) series(symbolID int64) damnrich.Series {
	return damnrich.Series{
		ExchangeID: 1,
		SymbolID:   symbolID,
		Timeframe:  sf.config.Timeframe,
	}
}

func (sf *syncFixture) preloadCandles(
	t *testing.T,
	series damnrich.Series,
	start time.Time,
	step time.Duration,
	count int,
) {
	candles := make([]*damnrich.Candle, count)

	openTime := start
	for index := range candles {
		candles[index] = &damnrich.Candle{
			Series:   series,
			OpenTime: openTime,
			Open:     100,
			High:     110,
			Low:      90,
			Close:    105,
			Volume:   1,
		}

		openTime = openTime.Add(step)
	}

	if _, err := sf.candles.UpsertCandles(candles...); err != nil {
		t.Fatal(err)
	}
}

type stubSource struct {
	recent      map[string][]damnrich.RawCandle
	pages       map[string][][]damnrich.RawCandle
	failures    map[string]error
	pageIndexes map[string]int
	recentCalls map[string]int
	sinceCalls  map[string][]time.Time
}

func newStubSource() *stubSource {
	return &stubSource{
		recent:      make(map[string][]damnrich.RawCandle),
		pages:       make(map[string][][]damnrich.RawCandle),
		failures:    make(map[string]error),
		pageIndexes: make(map[string]int),
		recentCalls: make(map[string]int),
		sinceCalls:  make(map[string][]time.Time),
	}
}

func (ss *stubSource) scriptRecent(
	ticker string,
	raws []damnrich.RawCandle,
) {
	ss.recent[ticker] = raws
}

func (ss *stubSource) scriptPages(
	ticker string,
	pages ...[]damnrich.RawCandle,
) {
	ss.pages[ticker] = pages
}

func (ss *stubSource) scriptFailure(ticker string, err error) {
	ss.failures[ticker] = err
}

func (ss *stubSource) resetPages() {
	ss.pageIndexes = make(map[string]int)
}

func (ss *stubSource) RecentCandles(
	_ context.Context,
	pair damnrich.Pair,
	_ damnrich.Timeframe,
	_ int,
) ([]damnrich.RawCandle, error) {
	ticker := pair.String()

	ss.recentCalls[ticker]++

	if err := ss.failures[ticker]; err != nil {
		return nil, err
	}

	return ss.recent[ticker], nil
}

func (ss *stubSource) CandlesSince(
	_ context.Context,
	pair damnrich.Pair,
	_ damnrich.Timeframe,
	since time.Time,
	_ int,
) ([]damnrich.RawCandle, error) {
	ticker := pair.String()

	ss.sinceCalls[ticker] = append(ss.sinceCalls[ticker], since)

	if err := ss.failures[ticker]; err != nil {
		return nil, err
	}

	index := ss.pageIndexes[ticker]
	if index >= len(ss.pages[ticker]) {
		return nil, nil
	}

	ss.pageIndexes[ticker]++

	return ss.pages[ticker][index], nil
}

type stubEventService struct {
	events []*damnrich.SyncEvent
}

func (ses *stubEventService) Publish(event *damnrich.SyncEvent) {
	ses.events = append(ses.events, event)
}

type failingCandleRepository struct {
	*inmem.CandleRepository
	failAfterCalls int
	calls          int
}

func (fr *failingCandleRepository) UpsertCandles(
	candles ...*damnrich.Candle,
) (int, error) {
	fr.calls++
	if fr.calls > fr.failAfterCalls {
		return 0, fmt.Errorf("store unavailable")
	}

	return fr.CandleRepository.UpsertCandles(candles...)
}

type nopLogger struct{}

func (nl *nopLogger) Debugf(format string, args ...interface{}) {}

func (nl *nopLogger) Infof(format string, args ...interface{}) {}

func (nl *nopLogger) Warningf(format string, args ...interface{}) {}

func (nl *nopLogger) Errorf(format string, args ...interface{}) {}

func (nl *nopLogger) Fatalf(format string, args ...interface{}) {}

func (nl *nopLogger) WithField(key string, value interface{}) damnrich.Logger {
	return nl
}

func (nl *nopLogger) WithFields(
	fields map[string]interface{},
) damnrich.Logger {
	return nl
}

func rawCandles(
	start time.Time,
	timeframe damnrich.Timeframe,
	count int,
) []damnrich.RawCandle {
	raws := make([]damnrich.RawCandle, count)

	openTime := start
	for index := range raws {
		raws[index] = rawCandleAt(openTime)
		openTime = openTime.Add(timeframe.Duration())
	}

	return raws
}

func rawCandleAt(openTime time.Time) damnrich.RawCandle {
	return damnrich.RawCandle{
		strconv.FormatInt(openTime.UnixMilli(), 10),
		"100", "110", "90", "105", "1000",
	}
}

func lastOpenTime(t *testing.T, page []damnrich.RawCandle) time.Time {
	openTime, err := page[len(page)-1].OpenTime()
	if err != nil {
		t.Fatal(err)
	}

	return openTime
}

package damnrich

import (
	"fmt"
	"time"
)

// SyncEvent summarizes one finished sync pass.
type SyncEvent struct {
	Exchange      string
	Timeframe     Timeframe
	SyncedSymbols int
	TotalSymbols  int
	Duration      time.Duration
	Time          time.Time
}

func NewSyncFinishedEvent(
	exchange string,
	timeframe Timeframe,
	syncedSymbols int,
	totalSymbols int,
	duration time.Duration,
) *SyncEvent {
	return &SyncEvent{
		Exchange:      exchange,
		Timeframe:     timeframe,
		SyncedSymbols: syncedSymbols,
		TotalSymbols:  totalSymbols,
		Duration:      duration,
		Time:          time.Now(),
	}
}

func (se *SyncEvent) String() string {
	return fmt.Sprintf(
		"exchange: %v, timeframe: %v, synced: %v/%v, duration: %v",
		se.Exchange,
		se.Timeframe,
		se.SyncedSymbols,
		se.TotalSymbols,
		se.Duration,
	)
}

type EventService interface {
	Publish(event *SyncEvent)
}

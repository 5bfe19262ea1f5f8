package pubsub

import (
	"cloud.google.com/go/pubsub"
	"context"
	"encoding/json"
	damnrich "github.com/HikaRiwwww/damn-rich"
	"time"
)

type EventService struct {
	client *Client
	logger damnrich.Logger
}

func NewEventService(client *Client, logger damnrich.Logger) *EventService {
	return &EventService{client, logger}
}

// Publish sends the sync event on the sync reports topic. Publishing is
// best-effort: failures are logged and never propagated back to the
// sync engine.
func (es *EventService) Publish(event *damnrich.SyncEvent) {
	es.publishOnSyncReportsTopic(context.TODO(), event)
}

func (es *EventService) publishOnSyncReportsTopic(
	ctx context.Context,
	event *damnrich.SyncEvent,
) {
	topicLogger := es.logger.WithField("topic", "sync-reports")

	messageData, err := json.Marshal(&syncReportEvent{
		Exchange:             event.Exchange,
		Timeframe:            event.Timeframe.String(),
		SyncedSymbols:        event.SyncedSymbols,
		TotalSymbols:         event.TotalSymbols,
		DurationMilliseconds: event.Duration.Milliseconds(),
		Time:                 event.Time,
	})
	if err != nil {
		topicLogger.Errorf("could not marshal sync event: [%v]", err)
		return
	}

	es.publishOnTopic(
		ctx,
		es.client.syncReportsTopic,
		messageData,
		topicLogger,
	)
}

func (es *EventService) publishOnTopic(
	ctx context.Context,
	topic *pubsub.Topic,
	messageData []byte,
	topicLogger damnrich.Logger,
) {
	result := topic.Publish(ctx, &pubsub.Message{
		Data: messageData,
	})

	go func() {
		id, err := result.Get(ctx)
		if err != nil {
			topicLogger.Errorf(
				"could not publish sync event: [%v]",
				err,
			)
			return
		}

		topicLogger.Infof("published sync event with ID: [%v]", id)
	}()
}

type syncReportEvent struct {
	Exchange             string
	Timeframe            string
	SyncedSymbols        int
	TotalSymbols         int
	DurationMilliseconds int64
	Time                 time.Time
}

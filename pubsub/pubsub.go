// Package pubsub publishes sync reports on a Google Cloud Pub/Sub
// topic.
package pubsub

import (
	"cloud.google.com/go/pubsub"
	"context"
)

type Client struct {
	syncReportsTopic *pubsub.Topic
}

func NewClient(
	ctx context.Context,
	projectID,
	syncReportsTopicID string,
) (*Client, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return &Client{
		syncReportsTopic: client.Topic(syncReportsTopicID),
	}, nil
}

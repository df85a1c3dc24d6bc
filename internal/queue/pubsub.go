// Package queue provides the country-task queue on Google Cloud Pub/Sub.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	subscriber "cloud.google.com/go/pubsub/v2/apiv1"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/zap"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/news"
)

// leaseExtensionSeconds is the deadline granted by each renewal. Workers
// renew well inside this window, so a crashed worker loses its lease within
// a minute.
const leaseExtensionSeconds = 60

func fullTopicName(projectID, topicID string) string {
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
}

func fullSubscriptionName(projectID, subscriptionID string) string {
	return fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subscriptionID)
}

// PubSubQueue implements news.Queue. Publishing goes through the high-level
// client; receiving uses the low-level subscriber API because the worker
// controls the ack deadline explicitly while a crawl runs.
type PubSubQueue struct {
	client       *pubsub.Client
	sub          *subscriber.SubscriptionAdminClient
	topicName    string
	subscription string
	logger       *zap.Logger
}

// New connects to Pub/Sub using Application Default Credentials.
func New(ctx context.Context, projectID, topicID, subscriptionID string, logger *zap.Logger) (*PubSubQueue, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	sub, err := subscriber.NewSubscriptionAdminClient(ctx)
	if err != nil {
		closeErr := client.Close()
		if closeErr != nil {
			logger.Warn("failed to close pubsub client", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("create subscriber client: %w", err)
	}
	return &PubSubQueue{
		client:       client,
		sub:          sub,
		topicName:    fullTopicName(projectID, topicID),
		subscription: fullSubscriptionName(projectID, subscriptionID),
		logger:       logger,
	}, nil
}

// Enqueue publishes one country task and waits for server acknowledgment.
func (q *PubSubQueue) Enqueue(ctx context.Context, task news.CountryTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	msg := &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"Label": task.Country},
	}
	publisher := q.client.Publisher(q.topicName)
	result := publisher.Publish(ctx, msg)
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publish task for %q: %w", task.Country, err)
	}
	q.logger.Info("task enqueued",
		zap.String("country", task.Country),
		zap.String("message_id", id),
	)
	return nil
}

// Dequeue pulls at most one message and returns its delivery handle. It
// blocks on the server until a message is available or the context ends.
func (q *PubSubQueue) Dequeue(ctx context.Context) (news.Delivery, error) {
	resp, err := q.sub.Pull(ctx, &pubsubpb.PullRequest{
		Subscription: q.subscription,
		MaxMessages:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("pull from %s: %w", q.subscription, err)
	}
	if len(resp.ReceivedMessages) == 0 {
		return nil, nil
	}
	rm := resp.ReceivedMessages[0]
	return &pubsubDelivery{
		queue: q,
		ackID: rm.AckId,
		body:  rm.Message.GetData(),
	}, nil
}

// Close releases both client connections.
func (q *PubSubQueue) Close() error {
	if err := q.sub.Close(); err != nil {
		return fmt.Errorf("close subscriber client: %w", err)
	}
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

// pubsubDelivery is one leased message. Lease control maps onto the ack
// deadline: Renew extends it, Nack zeroes it so the message redelivers, Ack
// settles it.
type pubsubDelivery struct {
	queue *PubSubQueue
	ackID string
	body  []byte
}

func (d *pubsubDelivery) Body() []byte {
	return d.body
}

func (d *pubsubDelivery) Renew(ctx context.Context) error {
	err := d.queue.sub.ModifyAckDeadline(ctx, &pubsubpb.ModifyAckDeadlineRequest{
		Subscription:       d.queue.subscription,
		AckIds:             []string{d.ackID},
		AckDeadlineSeconds: leaseExtensionSeconds,
	})
	if err != nil {
		return fmt.Errorf("extend ack deadline: %w", err)
	}
	return nil
}

func (d *pubsubDelivery) Ack(ctx context.Context) error {
	err := d.queue.sub.Acknowledge(ctx, &pubsubpb.AcknowledgeRequest{
		Subscription: d.queue.subscription,
		AckIds:       []string{d.ackID},
	})
	if err != nil {
		return fmt.Errorf("acknowledge message: %w", err)
	}
	return nil
}

func (d *pubsubDelivery) Nack(ctx context.Context) error {
	err := d.queue.sub.ModifyAckDeadline(ctx, &pubsubpb.ModifyAckDeadlineRequest{
		Subscription:       d.queue.subscription,
		AckIds:             []string{d.ackID},
		AckDeadlineSeconds: 0,
	})
	if err != nil {
		return fmt.Errorf("return message to queue: %w", err)
	}
	return nil
}

func (d *pubsubDelivery) Release() {
	// Nothing held client-side; the lease expires on its own.
}

package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	subscriber "cloud.google.com/go/pubsub/v2/apiv1"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/PureNewsCanada/NewsArticleProcessingApp/internal/news"
)

const (
	testProject = "test-project"
	testTopic   = "crawl-tasks"
	testSub     = "crawl-tasks-worker"
)

func newTestQueue(t *testing.T) *PubSubQueue {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, testProject, option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topicName := fullTopicName(testProject, testTopic)
	_, err = client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)

	subName := fullSubscriptionName(testProject, testSub)
	_, err = client.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{
		Name:               subName,
		Topic:              topicName,
		AckDeadlineSeconds: 10,
	})
	require.NoError(t, err)

	sub, err := subscriber.NewSubscriptionAdminClient(ctx, option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	return &PubSubQueue{
		client:       client,
		sub:          sub,
		topicName:    topicName,
		subscription: subName,
		logger:       zap.NewNop(),
	}
}

func TestEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t)
	task := news.CountryTask{Country: "Canada", CountrySlug: "CA"}
	require.NoError(t, q.Enqueue(context.Background(), task))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	delivery, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, delivery)

	var got news.CountryTask
	require.NoError(t, json.Unmarshal(delivery.Body(), &got))
	require.Equal(t, task, got)

	require.NoError(t, delivery.Renew(ctx))
	require.NoError(t, delivery.Ack(ctx))
	delivery.Release()
}

func TestDequeue_NackRedelivers(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t)
	task := news.CountryTask{Country: "UK", CountrySlug: "GB"}
	require.NoError(t, q.Enqueue(context.Background(), task))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	delivery, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, delivery)
	require.NoError(t, delivery.Nack(ctx))

	// A nacked message comes back.
	redelivered, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, redelivered)

	var got news.CountryTask
	require.NoError(t, json.Unmarshal(redelivered.Body(), &got))
	require.Equal(t, task, got)
	require.NoError(t, redelivered.Ack(ctx))
}

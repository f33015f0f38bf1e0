package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/skylark/aviary/common/config"
	"github.com/skylark/aviary/common/kv"
	"github.com/skylark/aviary/common/models"
	"github.com/skylark/aviary/common/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFanoutFixture(t *testing.T, subscriberCap int) (*FanoutService, *repository.SubscriptionRepository, *repository.NotificationRepository) {
	t.Helper()
	store := kv.NewMemory()
	subs := repository.NewSubscriptionRepository(store)
	notifs := repository.NewNotificationRepository(store)
	fanout := NewFanoutService(subs, notifs, config.FanoutConfig{SubscriberCap: subscriberCap}, testLogger())
	fanout.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return fanout, subs, notifs
}

func TestNotifyCreatesOneNotificationPerSubscriber(t *testing.T) {
	ctx := context.Background()
	fanout, subs, notifs := newFanoutFixture(t, 100)

	require.NoError(t, subs.Put(ctx, &models.Subscription{Tag: "crow", UserEmail: "alice@example.com"}))

	fanout.Notify(ctx, &IngestedEvent{
		FileURL:  "https://bucket.blob.host/uploads/a.jpg",
		Uploader: "bob@example.com",
		Tags:     models.TagCounts{"crow": 2},
	})

	got, err := notifs.ListByRecipient(ctx, "alice@example.com", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	n := got[0]
	assert.Equal(t, "alice@example.com", n.RecipientEmail)
	assert.False(t, n.IsSent)
	assert.NotEmpty(t, n.ID)
	assert.Contains(t, n.Message, "'crow'")
	assert.Contains(t, n.Message, "bob@example.com")
	assert.Contains(t, n.Message, "https://bucket.blob.host/uploads/a.jpg")
}

func TestNotifySkipsUnsubscribedTags(t *testing.T) {
	ctx := context.Background()
	fanout, subs, notifs := newFanoutFixture(t, 100)

	require.NoError(t, subs.Put(ctx, &models.Subscription{Tag: "sparrow", UserEmail: "alice@example.com"}))

	fanout.Notify(ctx, &IngestedEvent{
		FileURL:  "https://bucket.blob.host/uploads/a.jpg",
		Uploader: "bob@example.com",
		Tags:     models.TagCounts{"crow": 1},
	})

	got, err := notifs.ListByRecipient(ctx, "alice@example.com", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNotifyDoesNotCrossTagPrefixes(t *testing.T) {
	ctx := context.Background()
	fanout, subs, notifs := newFanoutFixture(t, 100)

	// "crow" must not pick up subscribers of a tag it merely prefixes.
	require.NoError(t, subs.Put(ctx, &models.Subscription{Tag: "crowned-crane", UserEmail: "carol@example.com"}))

	fanout.Notify(ctx, &IngestedEvent{
		FileURL:  "https://bucket.blob.host/uploads/a.jpg",
		Uploader: "bob@example.com",
		Tags:     models.TagCounts{"crow": 1},
	})

	got, err := notifs.ListByRecipient(ctx, "carol@example.com", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNotifyHonorsSubscriberCap(t *testing.T) {
	ctx := context.Background()
	fanout, subs, notifs := newFanoutFixture(t, 3)

	for i := 0; i < 5; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		require.NoError(t, subs.Put(ctx, &models.Subscription{Tag: "crow", UserEmail: email}))
	}

	fanout.Notify(ctx, &IngestedEvent{
		FileURL:  "https://bucket.blob.host/uploads/a.jpg",
		Uploader: "bob@example.com",
		Tags:     models.TagCounts{"crow": 1},
	})

	total := 0
	for i := 0; i < 5; i++ {
		got, err := notifs.ListByRecipient(ctx, fmt.Sprintf("user%d@example.com", i), 10)
		require.NoError(t, err)
		total += len(got)
	}
	assert.Equal(t, 3, total, "fan-out reads only the first subscriber page")
}

// notificationFailStore fails every write to the notifications table.
type notificationFailStore struct {
	kv.Store
}

func (s *notificationFailStore) Put(ctx context.Context, table, key string, value []byte) error {
	if table == kv.TableNotifications {
		return errors.New("store unavailable")
	}
	return s.Store.Put(ctx, table, key, value)
}

func TestNotifySwallowsWriteFailures(t *testing.T) {
	ctx := context.Background()
	inner := kv.NewMemory()
	store := &notificationFailStore{Store: inner}

	subs := repository.NewSubscriptionRepository(store)
	notifs := repository.NewNotificationRepository(store)
	fanout := NewFanoutService(subs, notifs, config.FanoutConfig{SubscriberCap: 100}, testLogger())

	require.NoError(t, subs.Put(ctx, &models.Subscription{Tag: "crow", UserEmail: "alice@example.com"}))

	// Notify must return normally even though every notification write
	// fails; fan-out never propagates errors to the caller.
	fanout.Notify(ctx, &IngestedEvent{
		FileURL:  "https://bucket.blob.host/uploads/a.jpg",
		Uploader: "bob@example.com",
		Tags:     models.TagCounts{"crow": 1},
	})

	got, err := repository.NewNotificationRepository(inner).ListByRecipient(ctx, "alice@example.com", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHandleEventIgnoresUndecodablePayloads(t *testing.T) {
	fanout, _, _ := newFanoutFixture(t, 100)

	// A bad payload is logged and dropped, never returned to the queue.
	err := fanout.handleEvent(context.Background(), "key", []byte("not json"))
	assert.NoError(t, err)
}

func TestNotifySameMillisecondNotificationsBothSurvive(t *testing.T) {
	ctx := context.Background()
	fanout, subs, notifs := newFanoutFixture(t, 100)

	require.NoError(t, subs.Put(ctx, &models.Subscription{Tag: "crow", UserEmail: "alice@example.com"}))
	require.NoError(t, subs.Put(ctx, &models.Subscription{Tag: "sparrow", UserEmail: "alice@example.com"}))

	// Both tags hit the same recipient within the frozen clock's single
	// millisecond. The unique id in the key keeps the rows distinct.
	fanout.Notify(ctx, &IngestedEvent{
		FileURL:  "https://bucket.blob.host/uploads/a.jpg",
		Uploader: "bob@example.com",
		Tags:     models.TagCounts{"crow": 1, "sparrow": 1},
	})

	got, err := notifs.ListByRecipient(ctx, "alice@example.com", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

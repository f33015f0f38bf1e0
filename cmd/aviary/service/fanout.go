package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/skylark/aviary/common/config"
	"github.com/skylark/aviary/common/logger"
	"github.com/skylark/aviary/common/models"
	"github.com/skylark/aviary/common/queue"
	"github.com/skylark/aviary/common/repository"
)

// IngestedEvent is the queue payload published once per successful
// ingestion and consumed by fan-out.
type IngestedEvent struct {
	FileURL  string           `json:"file_url"`
	Uploader string           `json:"uploader"`
	Tags     models.TagCounts `json:"tags"`
}

// FanoutService turns ingestion events into notification rows for every
// subscriber of every detected tag. The whole component is best-effort:
// nothing here ever fails or rolls back the ingestion that triggered it.
type FanoutService struct {
	subscriptions *repository.SubscriptionRepository
	notifications *repository.NotificationRepository
	cfg           config.FanoutConfig
	log           *logger.Logger
	now           func() time.Time
}

// NewFanoutService creates a new fan-out service
func NewFanoutService(
	subscriptions *repository.SubscriptionRepository,
	notifications *repository.NotificationRepository,
	cfg config.FanoutConfig,
	log *logger.Logger,
) *FanoutService {
	return &FanoutService{
		subscriptions: subscriptions,
		notifications: notifications,
		cfg:           cfg,
		log:           log,
		now:           time.Now,
	}
}

// Start subscribes the service to ingestion events
func (s *FanoutService) Start(ctx context.Context, q queue.Queue) error {
	return q.Subscribe(ctx, queue.TopicMediaIngested, s.handleEvent)
}

func (s *FanoutService) handleEvent(ctx context.Context, key string, value []byte) error {
	var event IngestedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		s.log.Error("undecodable ingestion event", "key", key, "error", err)
		return nil
	}

	s.Notify(ctx, &event)
	return nil
}

// Notify fans one ingestion out to subscribers. Every failure is logged and
// swallowed; partial fan-out is acceptable.
func (s *FanoutService) Notify(ctx context.Context, event *IngestedEvent) {
	for tag := range event.Tags {
		// First page only: at most SubscriberCap subscribers per tag per
		// ingestion, never resumed.
		subs, err := s.subscriptions.ListByTag(ctx, tag, s.cfg.SubscriberCap)
		if err != nil {
			s.log.Error("subscription scan failed", "tag", tag, "error", err)
			continue
		}

		for _, sub := range subs {
			n := &models.Notification{
				RecipientEmail: sub.UserEmail,
				TimestampMS:    s.now().UnixMilli(),
				ID:             uuid.NewString(),
				Message: fmt.Sprintf(
					"A new file with the tag '%s' has been added by %s. URL: %s",
					tag, event.Uploader, event.FileURL,
				),
				IsSent: false,
			}

			if err := s.notifications.Create(ctx, n); err != nil {
				s.log.Error("notification write failed",
					"tag", tag,
					"recipient", sub.UserEmail,
					"error", err,
				)
				continue
			}

			s.log.Info("notification created", "tag", tag, "recipient", sub.UserEmail)
		}
	}
}

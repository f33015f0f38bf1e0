package container

import (
	"context"
	"fmt"

	"github.com/skylark/aviary/cmd/aviary/service"
	"github.com/skylark/aviary/common/blobstore"
	"github.com/skylark/aviary/common/bootstrap"
	"github.com/skylark/aviary/common/detector"
	"github.com/skylark/aviary/common/repository"
	"github.com/skylark/aviary/common/thumbnail"
)

// Container holds all initialized services and repositories (singleton
// pattern: everything is created once at startup and shared by handlers)
type Container struct {
	Components *bootstrap.Components

	// External collaborators
	Blobs    blobstore.Store
	Detector detector.Detector
	Thumbs   thumbnail.Generator

	// Repositories
	MediaRepo        *repository.MediaRepository
	SessionRepo      *repository.SessionRepository
	SubscriptionRepo *repository.SubscriptionRepository
	NotificationRepo *repository.NotificationRepository

	// Services
	AuthService     *service.AuthService
	TagService      *service.TagService
	QueryService    *service.QueryService
	DeletionService *service.DeletionService
	FanoutService   *service.FanoutService
	IngestService   *service.IngestService
}

// NewContainer initializes all services and repositories once
func NewContainer(ctx context.Context, components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	blobs, err := blobstore.NewS3(ctx, cfg.BlobStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob store: %w", err)
	}

	// The detector is pure in its input bytes, so results are memoized by
	// content hash.
	detect := detector.NewCached(
		detector.NewHTTPDetector(cfg.Detector),
		components.Cache,
		cfg.Detector.CacheTTL,
		log,
	)

	thumbs := thumbnail.NewHTTPGenerator(cfg.Thumbnail.Endpoint, cfg.Thumbnail.Timeout)

	c := &Container{
		Components: components,
		Blobs:      blobs,
		Detector:   detect,
		Thumbs:     thumbs,
	}

	// Repositories
	c.MediaRepo = repository.NewMediaRepository(components.Store)
	c.SessionRepo = repository.NewSessionRepository(components.Store)
	c.SubscriptionRepo = repository.NewSubscriptionRepository(components.Store)
	c.NotificationRepo = repository.NewNotificationRepository(components.Store)

	// Services (bottom-up: dependencies first)
	c.AuthService = service.NewAuthService(c.SessionRepo, log)
	c.TagService = service.NewTagService(c.MediaRepo, log)
	c.QueryService = service.NewQueryService(c.MediaRepo, cfg.Query, log)
	c.DeletionService = service.NewDeletionService(c.MediaRepo, blobs, log)
	c.FanoutService = service.NewFanoutService(c.SubscriptionRepo, c.NotificationRepo, cfg.Fanout, log)
	c.IngestService = service.NewIngestService(c.MediaRepo, blobs, detect, thumbs, components.Queue, cfg.BlobStore, log)

	// Fan-out consumes ingestion events for the life of the process.
	if err := c.FanoutService.Start(ctx, components.Queue); err != nil {
		return nil, fmt.Errorf("failed to start fan-out: %w", err)
	}

	return c, nil
}

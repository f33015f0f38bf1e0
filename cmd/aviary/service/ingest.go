package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skylark/aviary/common/blobstore"
	"github.com/skylark/aviary/common/config"
	"github.com/skylark/aviary/common/detector"
	"github.com/skylark/aviary/common/logger"
	"github.com/skylark/aviary/common/models"
	"github.com/skylark/aviary/common/queue"
	"github.com/skylark/aviary/common/repository"
	"github.com/skylark/aviary/common/thumbnail"
)

// IngestService runs the upload pipeline: store the object, detect species,
// generate the thumbnail, write the metadata row, and hand the event to
// fan-out.
type IngestService struct {
	media  *repository.MediaRepository
	blobs  blobstore.Store
	detect detector.Detector
	thumbs thumbnail.Generator
	queue  queue.Queue
	cfg    config.BlobStoreConfig
	log    *logger.Logger
}

// NewIngestService creates a new ingestion service
func NewIngestService(
	media *repository.MediaRepository,
	blobs blobstore.Store,
	detect detector.Detector,
	thumbs thumbnail.Generator,
	q queue.Queue,
	cfg config.BlobStoreConfig,
	log *logger.Logger,
) *IngestService {
	return &IngestService{
		media:  media,
		blobs:  blobs,
		detect: detect,
		thumbs: thumbs,
		queue:  q,
		cfg:    cfg,
		log:    log,
	}
}

// IngestResult reports what was stored for one upload.
type IngestResult struct {
	FileURL      string           `json:"url"`
	ThumbnailURL string           `json:"thumbnail_url,omitempty"`
	Tags         models.TagCounts `json:"tags"`
}

// Ingest processes one uploaded file on behalf of uploader. The thumbnail is
// optional: a failed transform only costs the record its thumbnail_url.
// Fan-out happens asynchronously and can never fail the ingestion.
func (s *IngestService) Ingest(ctx context.Context, uploader, filename string, content []byte) (*IngestResult, error) {
	objectKey := uploadKey(filename)

	if err := s.blobs.Put(ctx, s.cfg.Bucket, objectKey, content); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	fileURL := blobstore.ObjectURL(s.cfg.Bucket, s.cfg.PublicHost, objectKey)

	tags, err := s.detect.Detect(ctx, content)
	if err != nil {
		// The object is already stored but no metadata row will point at
		// it; remove it so the failed ingestion leaves nothing behind.
		if delErr := s.blobs.Delete(ctx, s.cfg.Bucket, objectKey); delErr != nil {
			s.log.Warn("orphaned upload cleanup failed", "key", objectKey, "error", delErr)
		}
		return nil, fmt.Errorf("detect species: %w", err)
	}

	thumbnailURL := s.storeThumbnail(ctx, objectKey, content)

	rec := &models.MediaRecord{
		FileURL:      fileURL,
		Tags:         models.NewTagSet(tags),
		FileType:     "image",
		Uploader:     uploader,
		ThumbnailURL: thumbnailURL,
	}
	if err := s.media.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("save metadata: %w", err)
	}

	s.publishIngested(ctx, &IngestedEvent{
		FileURL:  fileURL,
		Uploader: uploader,
		Tags:     tags,
	})

	s.log.Info("ingestion complete", "file_url", fileURL, "uploader", uploader, "tags", len(tags))

	return &IngestResult{
		FileURL:      fileURL,
		ThumbnailURL: thumbnailURL,
		Tags:         tags,
	}, nil
}

// storeThumbnail generates and uploads the thumbnail, returning its URL or
// empty on any failure.
func (s *IngestService) storeThumbnail(ctx context.Context, objectKey string, content []byte) string {
	thumb, err := s.thumbs.Generate(ctx, content)
	if err != nil || thumb == nil {
		if err != nil {
			s.log.Warn("thumbnail generation failed", "key", objectKey, "error", err)
		}
		return ""
	}

	thumbKey := thumbnailKey(objectKey)
	if err := s.blobs.Put(ctx, s.cfg.Bucket, thumbKey, thumb); err != nil {
		s.log.Warn("thumbnail upload failed", "key", thumbKey, "error", err)
		return ""
	}

	return blobstore.ObjectURL(s.cfg.Bucket, s.cfg.PublicHost, thumbKey)
}

func (s *IngestService) publishIngested(ctx context.Context, event *IngestedEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		s.log.Error("encode ingestion event", "error", err)
		return
	}
	if err := s.queue.Publish(ctx, queue.TopicMediaIngested, event.FileURL, value); err != nil {
		s.log.Error("publish ingestion event", "file_url", event.FileURL, "error", err)
	}
}

// uploadKey places uploads under uploads/<date>/<uuid><ext> so keys never
// collide and stay listable by day.
func uploadKey(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("uploads/%s/%s%s", time.Now().UTC().Format("2006/01/02"), uuid.NewString(), ext)
}

// thumbnailKey derives the thumbnail's object key: uploads/ becomes
// thumbnails/, the extension becomes -thumb.png.
func thumbnailKey(objectKey string) string {
	key := strings.Replace(objectKey, "uploads/", "thumbnails/", 1)
	if ext := path.Ext(key); ext != "" {
		key = strings.TrimSuffix(key, ext)
	}
	return key + "-thumb.png"
}

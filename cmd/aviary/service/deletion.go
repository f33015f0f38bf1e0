package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/skylark/aviary/common/blobstore"
	"github.com/skylark/aviary/common/logger"
	"github.com/skylark/aviary/common/repository"
)

// DeletionService cascades the removal of a media record: primary object,
// thumbnail object, then the metadata row.
type DeletionService struct {
	media *repository.MediaRepository
	blobs blobstore.Store
	log   *logger.Logger
}

// NewDeletionService creates a new deletion service
func NewDeletionService(media *repository.MediaRepository, blobs blobstore.Store, log *logger.Logger) *DeletionService {
	return &DeletionService{
		media: media,
		blobs: blobs,
		log:   log,
	}
}

// DeleteAll removes every listed record with per-item isolation: one URL's
// failure is recorded and the batch continues.
func (s *DeletionService) DeleteAll(ctx context.Context, urls []string) *BatchResult {
	result := &BatchResult{}

	for _, url := range urls {
		if err := s.deleteOne(ctx, url); err != nil {
			s.log.Error("deletion failed", "file_url", url, "error", err)
			result.Errors = append(result.Errors, BatchError{
				URL:    url,
				Reason: fmt.Sprintf("failed to delete %s", url),
			})
			continue
		}
		result.Updated++
	}

	return result
}

func (s *DeletionService) deleteOne(ctx context.Context, url string) error {
	// The metadata row holds the only pointer to the thumbnail, so read it
	// before anything is torn down.
	thumbnailURL := ""
	rec, _, err := s.media.Get(ctx, url)
	if err == nil {
		thumbnailURL = rec.ThumbnailURL
	} else if !errors.Is(err, repository.ErrMediaNotFound) {
		return err
	}

	bucket, key, err := blobstore.ParseObjectURL(url)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, bucket, key); err != nil {
		return fmt.Errorf("delete primary object: %w", err)
	}

	if thumbnailURL != "" {
		thumbBucket, thumbKey, err := blobstore.ParseObjectURL(thumbnailURL)
		if err != nil {
			return err
		}
		if err := s.blobs.Delete(ctx, thumbBucket, thumbKey); err != nil {
			return fmt.Errorf("delete thumbnail object: %w", err)
		}
	}

	// Unconditional: the row may already be gone.
	return s.media.Delete(ctx, url)
}

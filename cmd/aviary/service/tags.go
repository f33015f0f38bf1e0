package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/skylark/aviary/common/logger"
	"github.com/skylark/aviary/common/models"
	"github.com/skylark/aviary/common/repository"
)

// TagOperation selects the mutation direction. On the wire 0 removes and
// 1 adds.
type TagOperation int

const (
	OpRemove TagOperation = 0
	OpAdd    TagOperation = 1
)

// ErrConcurrentUpdate is returned when a record keeps changing under a
// mutation faster than the retry budget allows.
var ErrConcurrentUpdate = errors.New("record modified concurrently, retries exhausted")

// casRetries bounds the read-modify-write retry loop.
const casRetries = 5

// BatchError records one failed item of a batch operation.
type BatchError struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// BatchResult reports a per-item-isolated batch: failures never abort the
// remaining items.
type BatchResult struct {
	Updated int
	Errors  []BatchError
}

// TagService applies tag count deltas to media records
type TagService struct {
	media *repository.MediaRepository
	log   *logger.Logger
}

// NewTagService creates a new tag mutation service
func NewTagService(media *repository.MediaRepository, log *logger.Logger) *TagService {
	return &TagService{
		media: media,
		log:   log,
	}
}

// ApplyTagDelta applies deltas to one record's tag counts and returns the
// updated counts. The write is conditional on the version observed at read
// time and retried on mismatch, so two concurrent mutations never lose a
// delta.
func (s *TagService) ApplyTagDelta(ctx context.Context, url string, op TagOperation, deltas models.TagCounts) (models.TagCounts, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		rec, version, err := s.media.Get(ctx, url)
		if errors.Is(err, repository.ErrMediaNotFound) {
			rec = &models.MediaRecord{FileURL: url, Tags: models.NewTagSet(nil)}
			version = 0
		} else if err != nil {
			return nil, err
		}

		tags := applyDeltas(rec.Tags.Counts, op, deltas)
		rec.Tags = models.NewTagSet(tags)

		ok, err := s.media.PutVersion(ctx, rec, version)
		if err != nil {
			return nil, err
		}
		if ok {
			return tags, nil
		}

		s.log.Debug("tag mutation lost the race, retrying", "file_url", url, "attempt", attempt+1)
	}

	return nil, ErrConcurrentUpdate
}

// ManageTags applies the same deltas to every URL independently. A failure
// on one URL is recorded and processing continues (partial success).
func (s *TagService) ManageTags(ctx context.Context, urls []string, op TagOperation, deltas models.TagCounts) *BatchResult {
	result := &BatchResult{}

	for _, url := range urls {
		if _, err := s.ApplyTagDelta(ctx, url, op, deltas); err != nil {
			s.log.Error("tag mutation failed", "file_url", url, "error", err)
			result.Errors = append(result.Errors, BatchError{
				URL:    url,
				Reason: fmt.Sprintf("failed to update %s", url),
			})
			continue
		}
		result.Updated++
	}

	return result
}

// applyDeltas computes the new counts map. Counts never go below 1: a
// result of zero or less removes the species entirely.
func applyDeltas(current models.TagCounts, op TagOperation, deltas models.TagCounts) models.TagCounts {
	tags := make(models.TagCounts, len(current))
	for species, count := range current {
		tags[species] = count
	}

	for species, n := range deltas {
		var next int
		switch op {
		case OpAdd:
			next = tags[species] + n
		case OpRemove:
			next = tags[species] - n
		}

		// Never store a zero or negative count.
		if next <= 0 {
			delete(tags, species)
		} else {
			tags[species] = next
		}
	}

	return tags
}

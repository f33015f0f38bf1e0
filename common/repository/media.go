package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skylark/aviary/common/kv"
	"github.com/skylark/aviary/common/models"
)

// ErrMediaNotFound is returned when no record exists for a file URL.
var ErrMediaNotFound = errors.New("media record not found")

// MediaRepository handles store operations for media metadata rows
type MediaRepository struct {
	store kv.Store
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(store kv.Store) *MediaRepository {
	return &MediaRepository{store: store}
}

// MediaPage is one page of a full-table scan.
type MediaPage struct {
	Records []models.MediaRecord
	// NextCursor is empty when the table is drained.
	NextCursor string
}

// Get retrieves a record and its current version by file URL
func (r *MediaRepository) Get(ctx context.Context, fileURL string) (*models.MediaRecord, int64, error) {
	value, version, err := r.store.Get(ctx, kv.TableMedia, fileURL)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, 0, ErrMediaNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get media record: %w", err)
	}

	var rec models.MediaRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, 0, fmt.Errorf("decode media record: %w", err)
	}
	rec.FileURL = fileURL

	return &rec, version, nil
}

// Put unconditionally writes a record (overwrite semantics; the whole row is
// replaced, not merged field by field)
func (r *MediaRepository) Put(ctx context.Context, rec *models.MediaRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode media record: %w", err)
	}

	if err := r.store.Put(ctx, kv.TableMedia, rec.FileURL, value); err != nil {
		return fmt.Errorf("put media record: %w", err)
	}
	return nil
}

// PutVersion writes a record only if the row still carries the given
// version; expected 0 creates the row. Returns false on a version mismatch.
func (r *MediaRepository) PutVersion(ctx context.Context, rec *models.MediaRecord, expected int64) (bool, error) {
	value, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode media record: %w", err)
	}

	ok, err := r.store.PutVersion(ctx, kv.TableMedia, rec.FileURL, value, expected)
	if err != nil {
		return false, fmt.Errorf("conditional put media record: %w", err)
	}
	return ok, nil
}

// Delete removes the metadata row; existence is not required
func (r *MediaRepository) Delete(ctx context.Context, fileURL string) error {
	if err := r.store.Delete(ctx, kv.TableMedia, fileURL); err != nil {
		return fmt.Errorf("delete media record: %w", err)
	}
	return nil
}

// ScanPage returns one page of the full-table scan in key order
func (r *MediaRepository) ScanPage(ctx context.Context, cursor string, limit int) (*MediaPage, error) {
	entries, next, err := r.store.Scan(ctx, kv.TableMedia, kv.Range{Cursor: cursor, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("scan media records: %w", err)
	}

	page := &MediaPage{NextCursor: next}
	for _, e := range entries {
		var rec models.MediaRecord
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			// One undecodable row must not abort the whole scan.
			continue
		}
		rec.FileURL = e.Key
		page.Records = append(page.Records, rec)
	}
	return page, nil
}

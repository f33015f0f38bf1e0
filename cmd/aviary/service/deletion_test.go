package service

import (
	"context"
	"testing"

	"github.com/skylark/aviary/common/blobstore"
	"github.com/skylark/aviary/common/kv"
	"github.com/skylark/aviary/common/models"
	"github.com/skylark/aviary/common/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeletionFixture(t *testing.T) (*DeletionService, *repository.MediaRepository, *blobstore.Memory) {
	t.Helper()
	store := kv.NewMemory()
	media := repository.NewMediaRepository(store)
	blobs := blobstore.NewMemory()
	return NewDeletionService(media, blobs, testLogger()), media, blobs
}

func TestDeleteAllCascades(t *testing.T) {
	ctx := context.Background()
	deletion, media, blobs := newDeletionFixture(t)

	url := "https://bucket.blob.host/uploads/a.jpg"
	thumbURL := "https://bucket.blob.host/thumbnails/a-thumb.png"

	require.NoError(t, blobs.Put(ctx, "bucket", "uploads/a.jpg", []byte("primary")))
	require.NoError(t, blobs.Put(ctx, "bucket", "thumbnails/a-thumb.png", []byte("thumb")))
	require.NoError(t, media.Put(ctx, &models.MediaRecord{
		FileURL:      url,
		Tags:         models.NewTagSet(models.TagCounts{"crow": 1}),
		ThumbnailURL: thumbURL,
	}))

	result := deletion.DeleteAll(ctx, []string{url})

	assert.Equal(t, 1, result.Updated)
	assert.Empty(t, result.Errors)

	// Primary object, thumbnail, and metadata row are all gone.
	assert.Equal(t, 0, blobs.Len())
	_, _, err := media.Get(ctx, url)
	assert.ErrorIs(t, err, repository.ErrMediaNotFound)
}

func TestDeleteAllWithoutThumbnail(t *testing.T) {
	ctx := context.Background()
	deletion, media, blobs := newDeletionFixture(t)

	url := "https://bucket.blob.host/uploads/a.jpg"
	require.NoError(t, blobs.Put(ctx, "bucket", "uploads/a.jpg", []byte("primary")))
	require.NoError(t, media.Put(ctx, &models.MediaRecord{
		FileURL: url,
		Tags:    models.NewTagSet(models.TagCounts{"crow": 1}),
	}))

	result := deletion.DeleteAll(ctx, []string{url})
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, blobs.Len())
}

func TestDeleteAllToleratesMissingRow(t *testing.T) {
	ctx := context.Background()
	deletion, _, blobs := newDeletionFixture(t)

	// Object exists but the metadata row was never written (or already
	// removed). Deletion still succeeds.
	require.NoError(t, blobs.Put(ctx, "bucket", "uploads/orphan.jpg", []byte("primary")))

	result := deletion.DeleteAll(ctx, []string{"https://bucket.blob.host/uploads/orphan.jpg"})
	assert.Equal(t, 1, result.Updated)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, blobs.Len())
}

func TestDeleteAllIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	deletion, media, blobs := newDeletionFixture(t)

	good := "https://bucket.blob.host/uploads/good.jpg"
	bad := "https://bucket.blob.host/" // no object key

	require.NoError(t, blobs.Put(ctx, "bucket", "uploads/good.jpg", []byte("primary")))
	require.NoError(t, media.Put(ctx, &models.MediaRecord{
		FileURL: good,
		Tags:    models.NewTagSet(models.TagCounts{"crow": 1}),
	}))

	result := deletion.DeleteAll(ctx, []string{bad, good})

	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, bad, result.Errors[0].URL)

	// The good URL was still deleted despite the earlier failure.
	_, _, err := media.Get(ctx, good)
	assert.ErrorIs(t, err, repository.ErrMediaNotFound)
	assert.Equal(t, 0, blobs.Len())
}

package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/skylark/aviary/common/blobstore"
	"github.com/skylark/aviary/common/config"
	"github.com/skylark/aviary/common/detector"
	"github.com/skylark/aviary/common/kv"
	"github.com/skylark/aviary/common/models"
	"github.com/skylark/aviary/common/queue"
	"github.com/skylark/aviary/common/repository"
	"github.com/skylark/aviary/common/thumbnail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestFixture struct {
	ingest *IngestService
	media  *repository.MediaRepository
	blobs  *blobstore.Memory
	queue  *queue.MemoryQueue
	store  kv.Store
}

func newIngestFixture(t *testing.T, detect detector.Detector, thumbs thumbnail.Generator) *ingestFixture {
	t.Helper()

	store := kv.NewMemory()
	media := repository.NewMediaRepository(store)
	blobs := blobstore.NewMemory()
	q := queue.NewMemoryQueue(testLogger())
	t.Cleanup(func() { _ = q.Close() })

	cfg := config.BlobStoreConfig{Bucket: "aviary", PublicHost: "blob.host"}
	return &ingestFixture{
		ingest: NewIngestService(media, blobs, detect, thumbs, q, cfg, testLogger()),
		media:  media,
		blobs:  blobs,
		queue:  q,
		store:  store,
	}
}

func stubDetector(tags models.TagCounts) detector.Detector {
	return detector.Func(func(ctx context.Context, image []byte) (models.TagCounts, error) {
		return tags, nil
	})
}

func stubThumbnailer(thumb []byte) thumbnail.Generator {
	return thumbnail.Func(func(ctx context.Context, image []byte) ([]byte, error) {
		return thumb, nil
	})
}

func TestIngestStoresObjectRecordAndThumbnail(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, stubDetector(models.TagCounts{"crow": 2}), stubThumbnailer([]byte("thumb")))

	result, err := f.ingest.Ingest(ctx, "alice@example.com", "photo.JPG", []byte("image-bytes"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.FileURL, "https://aviary.blob.host/uploads/"))
	assert.True(t, strings.HasSuffix(result.FileURL, ".jpg"), "extension is lowercased")
	assert.True(t, strings.HasPrefix(result.ThumbnailURL, "https://aviary.blob.host/thumbnails/"))
	assert.True(t, strings.HasSuffix(result.ThumbnailURL, "-thumb.png"))
	assert.Equal(t, models.TagCounts{"crow": 2}, result.Tags)

	// Primary object and thumbnail both landed in the object store.
	assert.Equal(t, 2, f.blobs.Len())

	rec, _, err := f.media.Get(ctx, result.FileURL)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", rec.Uploader)
	assert.Equal(t, "image", rec.FileType)
	assert.Equal(t, result.ThumbnailURL, rec.ThumbnailURL)
	assert.Equal(t, 2, rec.Tags.Count("crow"))
}

func TestIngestThumbnailFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	failing := thumbnail.Func(func(ctx context.Context, image []byte) ([]byte, error) {
		return nil, errors.New("resize service down")
	})
	f := newIngestFixture(t, stubDetector(models.TagCounts{"crow": 1}), failing)

	result, err := f.ingest.Ingest(ctx, "alice@example.com", "photo.jpg", []byte("image-bytes"))
	require.NoError(t, err)
	assert.Empty(t, result.ThumbnailURL)

	// Only the primary object is stored.
	assert.Equal(t, 1, f.blobs.Len())

	rec, _, err := f.media.Get(ctx, result.FileURL)
	require.NoError(t, err)
	assert.Empty(t, rec.ThumbnailURL)
	assert.Equal(t, result.FileURL, rec.Link())
}

func TestIngestDetectorFailureLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	failing := detector.Func(func(ctx context.Context, image []byte) (models.TagCounts, error) {
		return nil, errors.New("detector down")
	})
	f := newIngestFixture(t, failing, stubThumbnailer([]byte("thumb")))

	_, err := f.ingest.Ingest(ctx, "alice@example.com", "photo.jpg", []byte("image-bytes"))
	require.Error(t, err)

	// No metadata row was written for the failed ingestion.
	page, err := f.media.ScanPage(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Records)

	// The already-stored object was cleaned up, not left orphaned.
	assert.Equal(t, 0, f.blobs.Len())
}

func TestIngestFansOutToSubscribers(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, stubDetector(models.TagCounts{"crow": 1}), stubThumbnailer(nil))

	subs := repository.NewSubscriptionRepository(f.store)
	notifs := repository.NewNotificationRepository(f.store)
	require.NoError(t, subs.Put(ctx, &models.Subscription{Tag: "crow", UserEmail: "alice@example.com"}))

	fanout := NewFanoutService(subs, notifs, config.FanoutConfig{SubscriberCap: 100}, testLogger())
	require.NoError(t, fanout.Start(ctx, f.queue))

	result, err := f.ingest.Ingest(ctx, "bob@example.com", "photo.jpg", []byte("image-bytes"))
	require.NoError(t, err)

	// Fan-out is asynchronous; poll briefly for the notification row.
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := notifs.ListByRecipient(ctx, "alice@example.com", 10)
		require.NoError(t, err)
		if len(got) > 0 {
			assert.Contains(t, got[0].Message, result.FileURL)
			assert.Contains(t, got[0].Message, "bob@example.com")
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("notification never arrived")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

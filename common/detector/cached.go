package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/skylark/aviary/common/cache"
	"github.com/skylark/aviary/common/logger"
	"github.com/skylark/aviary/common/models"
)

// Cached memoizes detection results by content hash. Detection is a pure
// function of the image bytes, so identical uploads and repeated
// search-by-file probes skip the model entirely.
type Cached struct {
	inner Detector
	cache cache.Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewCached wraps a detector with a result cache
func NewCached(inner Detector, c cache.Cache, ttl time.Duration, log *logger.Logger) *Cached {
	return &Cached{
		inner: inner,
		cache: c,
		ttl:   ttl,
		log:   log,
	}
}

// Detect returns the cached result when present, otherwise delegates and
// stores. Cache failures degrade to a plain detector call.
func (d *Cached) Detect(ctx context.Context, image []byte) (models.TagCounts, error) {
	key := cacheKey(image)

	if value, ok, err := d.cache.Get(ctx, key); err == nil && ok {
		var counts models.TagCounts
		if err := json.Unmarshal(value, &counts); err == nil {
			d.log.Debug("detector cache hit", "key", key)
			return counts, nil
		}
	}

	counts, err := d.inner.Detect(ctx, image)
	if err != nil {
		return nil, err
	}

	if value, err := json.Marshal(counts); err == nil {
		if err := d.cache.Set(ctx, key, value, d.ttl); err != nil {
			d.log.Warn("detector cache store failed", "key", key, "error", err)
		}
	}

	return counts, nil
}

func cacheKey(image []byte) string {
	sum := sha256.Sum256(image)
	return "detect:" + hex.EncodeToString(sum[:])
}

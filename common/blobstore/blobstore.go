package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrObjectNotFound is returned by Get when no object exists at the key.
var ErrObjectNotFound = errors.New("blobstore: object not found")

// Store is the object store boundary: byte blobs addressed by bucket and
// key. Keys are derived deterministically from a record's stored URL.
type Store interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte) error
	Delete(ctx context.Context, bucket, key string) error
}

// ParseObjectURL extracts the bucket and object key from a stored object
// URL. The bucket is the first label of the host; the key is the path.
func ParseObjectURL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse object URL %q: %w", rawURL, err)
	}

	host := u.Hostname()
	if host == "" {
		return "", "", fmt.Errorf("object URL %q has no host", rawURL)
	}

	bucket = strings.Split(host, ".")[0]
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("object URL %q has no key", rawURL)
	}

	return bucket, key, nil
}

// ObjectURL synthesizes the public URL under which an object is stored.
func ObjectURL(bucket, publicHost, key string) string {
	return fmt.Sprintf("https://%s.%s/%s", bucket, publicHost, key)
}

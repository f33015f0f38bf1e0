package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Table names for the four key spaces served by the store.
const (
	TableMedia         = "media"
	TableSessions      = "sessions"
	TableSubscriptions = "subscriptions"
	TableNotifications = "notifications"
)

// KeySeparator joins the parts of a composite key. The unit separator sorts
// below all printable characters, so a prefix scan over "tag<sep>" returns
// exactly the rows whose first key part equals tag.
const KeySeparator = "\x1f"

// ErrNotFound is returned by Get when no row exists for the key.
var ErrNotFound = errors.New("kv: key not found")

// ErrInvalidKeyPart is returned when a composite key component contains the
// separator byte.
var ErrInvalidKeyPart = errors.New("kv: key part contains the separator")

// Entry is a single row returned by a range scan.
type Entry struct {
	Key     string
	Value   []byte
	Version int64
}

// Range describes an ordered scan. Start is inclusive, End exclusive; empty
// bounds mean the table edge. Cursor is an opaque continuation marker from a
// previous scan; empty starts at Start.
type Range struct {
	Start  string
	End    string
	Cursor string
	Limit  int
}

// Store is an ordered key-value store: point get/put/delete plus ascending
// range scans with pagination cursors. No multi-key transactions are
// provided; callers never assume cross-row consistency.
type Store interface {
	// Get returns the value and version for key, or ErrNotFound.
	Get(ctx context.Context, table, key string) ([]byte, int64, error)

	// Put unconditionally writes value under key.
	Put(ctx context.Context, table, key string, value []byte) error

	// PutVersion writes value only if the row's current version equals
	// expected. Expected 0 means the row must not exist (create-only).
	// Returns false without error when the condition does not hold.
	PutVersion(ctx context.Context, table, key string, value []byte, expected int64) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, table, key string) error

	// Scan returns up to r.Limit entries in ascending key order along with
	// the cursor for the next page. An empty cursor means the range is
	// drained.
	Scan(ctx context.Context, table string, r Range) ([]Entry, string, error)

	Close() error
}

// JoinKey builds a composite key from its parts.
func JoinKey(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

// SplitKey splits a composite key back into its parts.
func SplitKey(key string) []string {
	return strings.Split(key, KeySeparator)
}

// CheckKeyParts rejects components that would corrupt a composite key.
// Callers validate externally supplied parts before joining them.
func CheckKeyParts(parts ...string) error {
	for _, p := range parts {
		if strings.Contains(p, KeySeparator) {
			return fmt.Errorf("%w: %q", ErrInvalidKeyPart, p)
		}
	}
	return nil
}

// PrefixRange returns the scan range covering every key whose first parts
// equal the given ones. The end bound is the byte after the separator
// (0x20), so every key under the prefix sorts below it and both bounds stay
// valid UTF-8 for the text-typed Postgres backend.
func PrefixRange(parts ...string) Range {
	base := JoinKey(parts...)
	return Range{Start: base + KeySeparator, End: base + "\x20"}
}

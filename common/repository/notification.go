package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/skylark/aviary/common/kv"
	"github.com/skylark/aviary/common/models"
)

// NotificationRepository writes fan-out notification rows
type NotificationRepository struct {
	store kv.Store
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(store kv.Store) *NotificationRepository {
	return &NotificationRepository{store: store}
}

// Create writes one notification with ignore-existing semantics: a
// pre-existing row at the same key never blocks the write. The unique id in
// the key makes such collisions practically impossible.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if err := kv.CheckKeyParts(n.RecipientEmail); err != nil {
		return err
	}

	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	key := kv.JoinKey(n.RecipientEmail, formatTimestamp(n.TimestampMS), n.ID)
	if err := r.store.Put(ctx, kv.TableNotifications, key, value); err != nil {
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

// ListByRecipient returns up to limit notifications for one recipient in
// ascending time order (the delivery component's read path)
func (r *NotificationRepository) ListByRecipient(ctx context.Context, email string, limit int) ([]models.Notification, error) {
	if err := kv.CheckKeyParts(email); err != nil {
		return nil, err
	}

	rng := kv.PrefixRange(email)
	rng.Limit = limit

	entries, _, err := r.store.Scan(ctx, kv.TableNotifications, rng)
	if err != nil {
		return nil, fmt.Errorf("scan notifications for %q: %w", email, err)
	}

	out := make([]models.Notification, 0, len(entries))
	for _, e := range entries {
		var n models.Notification
		if err := json.Unmarshal(e.Value, &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// formatTimestamp zero-pads milliseconds so lexical key order matches
// numeric time order.
func formatTimestamp(ms int64) string {
	return fmt.Sprintf("%020d", ms)
}

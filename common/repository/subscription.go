package repository

import (
	"context"
	"fmt"

	"github.com/skylark/aviary/common/kv"
	"github.com/skylark/aviary/common/models"
)

// SubscriptionRepository reads subscription rows. Rows are created by an
// external subscription-management flow; this service never writes them
// outside of tests.
type SubscriptionRepository struct {
	store kv.Store
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(store kv.Store) *SubscriptionRepository {
	return &SubscriptionRepository{store: store}
}

// ListByTag returns up to limit subscribers for one tag, first page only.
// Fan-out never resumes past the first page.
func (r *SubscriptionRepository) ListByTag(ctx context.Context, tag string, limit int) ([]models.Subscription, error) {
	if err := kv.CheckKeyParts(tag); err != nil {
		return nil, err
	}

	// PrefixRange scopes the scan to the whole tag component, so "crow"
	// never picks up "crowned-crane" subscribers.
	rng := kv.PrefixRange(tag)
	rng.Limit = limit

	entries, _, err := r.store.Scan(ctx, kv.TableSubscriptions, rng)
	if err != nil {
		return nil, fmt.Errorf("scan subscriptions for %q: %w", tag, err)
	}

	subs := make([]models.Subscription, 0, len(entries))
	for _, e := range entries {
		parts := kv.SplitKey(e.Key)
		if len(parts) != 2 {
			continue
		}
		subs = append(subs, models.Subscription{Tag: parts[0], UserEmail: parts[1]})
	}
	return subs, nil
}

// Put writes a subscription row (tests and tooling)
func (r *SubscriptionRepository) Put(ctx context.Context, sub *models.Subscription) error {
	if err := kv.CheckKeyParts(sub.Tag, sub.UserEmail); err != nil {
		return err
	}

	key := kv.JoinKey(sub.Tag, sub.UserEmail)
	if err := r.store.Put(ctx, kv.TableSubscriptions, key, []byte("{}")); err != nil {
		return fmt.Errorf("put subscription: %w", err)
	}
	return nil
}

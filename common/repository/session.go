package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skylark/aviary/common/kv"
	"github.com/skylark/aviary/common/models"
)

// ErrSessionNotFound is returned when no session row exists for a token.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository handles store operations for session rows
type SessionRepository struct {
	store kv.Store
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(store kv.Store) *SessionRepository {
	return &SessionRepository{store: store}
}

// Get retrieves a session by token
func (r *SessionRepository) Get(ctx context.Context, token string) (*models.Session, error) {
	value, _, err := r.store.Get(ctx, kv.TableSessions, token)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(value, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	s.Token = token

	return &s, nil
}

// Put writes a session row. The login flow that issues tokens lives outside
// this service; Put exists for tests and operational tooling.
func (r *SessionRepository) Put(ctx context.Context, s *models.Session) error {
	value, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := r.store.Put(ctx, kv.TableSessions, s.Token, value); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Delete removes a session row
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	if err := r.store.Delete(ctx, kv.TableSessions, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skylark/aviary/common/logger"
	"github.com/skylark/aviary/common/repository"
)

// Unauthorized reasons. After an expired token is purged, a retry with the
// same token reports ErrInvalidToken: the store no longer knows it was ever
// valid, and callers must not rely on telling the two apart.
var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// AuthService validates session tokens against the sessions table.
// Expired rows are purged lazily on first sighting; there is no background
// sweep.
type AuthService struct {
	sessions *repository.SessionRepository
	log      *logger.Logger
	now      func() time.Time
}

// NewAuthService creates a new session authenticator
func NewAuthService(sessions *repository.SessionRepository, log *logger.Logger) *AuthService {
	return &AuthService{
		sessions: sessions,
		log:      log,
		now:      time.Now,
	}
}

// Authenticate resolves a bearer token to the acting user's email.
// Every call is independent: no retries, no caching across calls.
func (s *AuthService) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	session, err := s.sessions.Get(ctx, token)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("look up session: %w", err)
	}

	if session.Expired(s.now()) {
		// Best-effort purge; the outcome does not change the verdict.
		if err := s.sessions.Delete(ctx, token); err != nil {
			s.log.Warn("failed to purge expired session", "error", err)
		}
		return "", ErrExpiredToken
	}

	return session.UserEmail, nil
}

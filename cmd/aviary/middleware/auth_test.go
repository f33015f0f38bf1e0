package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/skylark/aviary/cmd/aviary/service"
	"github.com/skylark/aviary/common/kv"
	"github.com/skylark/aviary/common/logger"
	"github.com/skylark/aviary/common/models"
	"github.com/skylark/aviary/common/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthMiddleware(t *testing.T) (echo.MiddlewareFunc, *repository.SessionRepository) {
	t.Helper()
	sessions := repository.NewSessionRepository(kv.NewMemory())
	auth := service.NewAuthService(sessions, logger.New("error", "json"))
	return RequireSession(auth), sessions
}

func TestRequireSessionRejectsMissingToken(t *testing.T) {
	mw, _ := newAuthMiddleware(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	rec := httptest.NewRecorder()

	handler := mw(func(c echo.Context) error {
		t.Fatal("handler must not run without a token")
		return nil
	})

	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing token")
}

func TestRequireSessionRejectsUnknownToken(t *testing.T) {
	mw, _ := newAuthMiddleware(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	req.Header.Set("Authorization", "no-such-token")
	rec := httptest.NewRecorder()

	handler := mw(func(c echo.Context) error { return nil })

	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestRequireSessionSetsUserEmail(t *testing.T) {
	mw, sessions := newAuthMiddleware(t)

	require.NoError(t, sessions.Put(context.Background(), &models.Session{
		Token:     "tok-1",
		UserEmail: "alice@example.com",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	req.Header.Set("Authorization", "tok-1")
	rec := httptest.NewRecorder()

	var seen string
	handler := mw(func(c echo.Context) error {
		seen = GetUserEmail(c)
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", seen)
}

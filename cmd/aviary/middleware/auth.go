package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/skylark/aviary/cmd/aviary/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// UserEmailKey is the context key for the authenticated user's email
const UserEmailKey ContextKey = "user_email"

// RequireSession validates the Authorization header through the session
// authenticator and stores the acting user's email in the request context.
// Failures short-circuit with 401 before any handler runs.
func RequireSession(auth *service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get("Authorization")

			email, err := auth.Authenticate(c.Request().Context(), token)
			if err != nil {
				reason := "unauthorized"
				switch {
				case errors.Is(err, service.ErrMissingToken),
					errors.Is(err, service.ErrInvalidToken),
					errors.Is(err, service.ErrExpiredToken):
					reason = err.Error()
				}
				return c.JSON(http.StatusUnauthorized, map[string]any{
					"error": "Unauthorized: " + reason,
				})
			}

			c.Set(string(UserEmailKey), email)
			return next(c)
		}
	}
}

// GetUserEmail retrieves the authenticated user's email from the request
// context; empty if the route skipped authentication.
func GetUserEmail(c echo.Context) string {
	email := c.Get(string(UserEmailKey))
	if email == nil {
		return ""
	}
	return email.(string)
}

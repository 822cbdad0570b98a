package middleware

import (
	"strings"

	"lupora-api/internal/apperr"
	"lupora-api/internal/auth"

	"github.com/labstack/echo/v4"
)

const (
	claimsKey = "auth_claims"
	userIDKey = "user_id"
)

// Auth requires a valid bearer token and exposes its claims to handlers.
func Auth(tokens auth.TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return apperr.Unauthorized("Access denied. No token provided.")
			}

			claims, err := tokens.Parse(token)
			if err != nil {
				return apperr.Forbidden("Invalid or expired token")
			}

			c.Set(claimsKey, claims)
			c.Set(userIDKey, claims.UserID)
			return next(c)
		}
	}
}

// CurrentUser returns the claims stored by Auth, or nil on public routes.
func CurrentUser(c echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsKey).(*auth.Claims)
	return claims
}

func UserID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

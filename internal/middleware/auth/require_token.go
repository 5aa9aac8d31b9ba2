package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ajali-app/backend/internal/service"
)

// Context keys set for downstream handlers.
const (
	UserIDKey = "userID"
	TokenKey  = "token"
)

type Middleware struct {
	Tokens *service.TokenService
}

// RequireToken extracts the bearer credential from the Authorization header,
// validates it and stores the authenticated user id in the request context.
// The identity is scoped to this request only.
func (m *Middleware) RequireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := ""
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			token = parts[1]
		}

		userID, err := m.Tokens.Validate(token)
		if err != nil {
			return err
		}

		c.Set(UserIDKey, userID)
		c.Set(TokenKey, token)
		return next(c)
	}
}

// UserID returns the authenticated user id placed in the context by
// RequireToken.
func UserID(c echo.Context) string {
	id, _ := c.Get(UserIDKey).(string)
	return id
}

// Token returns the raw bearer token for the current request.
func Token(c echo.Context) string {
	t, _ := c.Get(TokenKey).(string)
	return t
}

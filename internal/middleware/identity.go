package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/jogofacil/field-booking/internal/model"
)

// Context keys written by JWTAuth and RequireSubscription.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
	ctxUser   = "current_user"
)

// UserID returns the authenticated user's id, or "" for anonymous requests.
func UserID(c echo.Context) string {
	s, _ := c.Get(ctxUserID).(string)
	return s
}

// Role returns the authenticated user's role claim.
func Role(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}

// CurrentUser returns the user loaded by RequireSubscription, if any.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(ctxUser).(model.User)
	return u, ok
}

// rateIdentity is the user part of a rate-limit key.
func rateIdentity(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}

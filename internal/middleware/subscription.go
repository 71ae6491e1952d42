package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/jogofacil/field-booking/internal/model"
	"github.com/jogofacil/field-booking/internal/plans"
	"github.com/jogofacil/field-booking/internal/repository"
)

// UserLookup loads the account behind a token.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (model.User, error)
}

// RequireSubscription loads the authenticated user and answers 402 unless
// their plan is active at the clock's current time.  The loaded user is
// available to handlers through CurrentUser.
func RequireSubscription(users UserLookup, clock clockwork.Clock) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := users.GetByID(c.Request().Context(), UserID(c))
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
			}
			if err != nil {
				log.Error().Err(err).Str("user_id", UserID(c)).Msg("subscription check failed")
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}
			if !plans.Active(u, clock.Now()) {
				return c.JSON(http.StatusPaymentRequired, echo.Map{
					"error":        "subscription required",
					"subscription": u.Subscription,
				})
			}
			c.Set(ctxUser, u)
			return next(c)
		}
	}
}

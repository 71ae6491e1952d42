package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports whether the database answers.  Load balancers probe it.
func Health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			log.Error().Err(err).Msg("health: database unreachable")
			return c.String(http.StatusInternalServerError, "Error connecting to DB")
		}
		return c.String(http.StatusOK, "OK - DB Connected")
	}
}

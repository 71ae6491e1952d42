package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/jogofacil/field-booking/internal/repository"
)

// fail maps repository sentinels to status codes.  Anything unexpected is
// logged with the request id and reported as a 500 carrying msg.
func fail(c echo.Context, err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot is not in a state that allows this action"})
	}
	log.Error().Err(err).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Str("path", c.Path()).
		Msg(msg)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

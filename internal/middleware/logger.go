package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequestLogger writes one zerolog line per request.  5xx responses log at
// error level, 4xx at warn.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req, res := c.Request(), c.Response()
			var ev *zerolog.Event
			switch {
			case res.Status >= 500:
				ev = log.Error().Err(err)
			case res.Status >= 400:
				ev = log.Warn()
			default:
				ev = log.Info()
			}
			ev.Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Str("method", req.Method).
				Str("path", c.Path()).
				Str("uri", req.RequestURI).
				Int("status", res.Status).
				Int64("bytes", res.Size).
				Dur("latency", time.Since(start)).
				Str("ip", c.RealIP()).
				Str("user_id", UserID(c)).
				Msg("request")
			return nil
		}
	}
}

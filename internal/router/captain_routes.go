package router

import (
	"github.com/labstack/echo/v4"

	"github.com/jogofacil/field-booking/internal/handler"
	"github.com/jogofacil/field-booking/internal/middleware"
	"github.com/jogofacil/field-booking/internal/model"
)

// RegisterCaptain mounts the booking flow.  Requesting a slot needs an
// active subscription; following up on an existing booking does not.
func RegisterCaptain(e *echo.Echo, s *handler.SlotHandler, g Guards) {
	captain := e.Group("/api", orPass(g.JWT), middleware.RequireRole(model.RoleTeamCaptain, model.RoleAdmin))

	captain.POST("/slots/:id/book", s.Book, orPass(g.Subscription))
	captain.POST("/slots/:id/receipt", s.Receipt)
	captain.POST("/slots/:id/cancel", s.Cancel)
	captain.GET("/my-bookings", s.MyBookings)
}

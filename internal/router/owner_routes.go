package router

import (
	"github.com/labstack/echo/v4"

	"github.com/jogofacil/field-booking/internal/handler"
	"github.com/jogofacil/field-booking/internal/middleware"
	"github.com/jogofacil/field-booking/internal/model"
)

// RegisterOwner mounts field and slot management.  Admins pass the role
// check and the handlers skip the ownership check for them.
func RegisterOwner(e *echo.Echo, f *handler.FieldHandler, s *handler.SlotHandler, g Guards) {
	owner := e.Group("/api", orPass(g.JWT), middleware.RequireRole(model.RoleFieldOwner, model.RoleAdmin))

	owner.PUT("/fields/:id", f.Update)

	owner.POST("/slots", s.Create)
	owner.PUT("/slots/:id", s.Update)
	owner.DELETE("/slots/:id", s.Delete)
	owner.POST("/slots/:id/confirm", s.Confirm)
	owner.POST("/slots/:id/reject", s.Reject)
	owner.GET("/slots/:id/contact", s.Contact)
}

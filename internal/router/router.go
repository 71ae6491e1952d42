// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/jogofacil/field-booking/internal/handler"
	"github.com/jogofacil/field-booking/internal/middleware"
	"github.com/jogofacil/field-booking/internal/model"
)

// Guards holds the middleware shared by the route groups.  Nil entries are
// treated as pass-through.
type Guards struct {
	JWT           echo.MiddlewareFunc // validates the bearer token
	AuthRateLimit echo.MiddlewareFunc // stricter limiter for /api/auth
	Cache         echo.MiddlewareFunc // response cache for public listings
	Subscription  echo.MiddlewareFunc // active-plan check for captains
}

func orPass(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	if mw == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return mw
}

// Handlers lists every handler the API exposes.
type Handlers struct {
	Auth   *handler.AuthHandler
	Users  *handler.UserHandler
	Plans  *handler.PlansHandler
	Fields *handler.FieldHandler
	Slots  *handler.SlotHandler
	Health echo.HandlerFunc
}

// Register mounts the whole API.
func Register(e *echo.Echo, h Handlers, g Guards) {
	RegisterPublic(e, h, g)
	RegisterAuth(e, h.Auth, h.Users, g)
	RegisterOwner(e, h.Fields, h.Slots, g)
	RegisterCaptain(e, h.Slots, g)
}

// RegisterPublic mounts the routes that need no token.
func RegisterPublic(e *echo.Echo, h Handlers, g Guards) {
	if h.Health != nil {
		e.GET("/health", h.Health)
	}
	api := e.Group("/api")
	api.GET("/plans", h.Plans.List)
	api.GET("/fields", h.Fields.List, orPass(g.Cache))
	api.GET("/fields/:id", h.Fields.Get)
	api.GET("/fields/:id/contact", h.Fields.Contact)
	api.GET("/slots", h.Slots.List)
	api.GET("/slots/search", h.Slots.Search)
}

// RegisterAuth mounts sign-up/sign-in under /api/auth and the profile
// routes every authenticated role may use.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, u *handler.UserHandler, g Guards) {
	auth := e.Group("/api/auth", orPass(g.AuthRateLimit))
	auth.POST("/register", a.Register)
	auth.POST("/login", a.Login)
	auth.POST("/refresh", a.Refresh)
	auth.POST("/logout", a.Logout)

	me := e.Group("/api", orPass(g.JWT),
		middleware.RequireRole(model.RoleAdmin, model.RoleFieldOwner, model.RoleTeamCaptain))
	me.GET("/me", a.Me)
	me.GET("/users/:id", u.Get)
	me.PUT("/users/:id", u.Update)
	me.POST("/users/:id/subscription", u.Subscribe)
}

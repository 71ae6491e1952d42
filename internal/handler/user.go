package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/jogofacil/field-booking/internal/middleware"
	"github.com/jogofacil/field-booking/internal/model"
	"github.com/jogofacil/field-booking/internal/plans"
	"github.com/jogofacil/field-booking/internal/repository"
)

// UserHandler serves profile and subscription endpoints.  Every route acts
// on /:id and is limited to the account itself or an admin.
type UserHandler struct {
	Users   UserStore
	Catalog *plans.Catalog
	Clock   clockwork.Clock
}

func NewUserHandler(u UserStore, catalog *plans.Catalog, clock clockwork.Clock) *UserHandler {
	return &UserHandler{Users: u, Catalog: catalog, Clock: clock}
}

func selfOrAdmin(c echo.Context) bool {
	return c.Param("id") == middleware.UserID(c) || middleware.Role(c) == model.RoleAdmin
}

type updateUserReq struct {
	Name        *string       `json:"name"`
	PhoneNumber *string       `json:"phoneNumber"`
	Latitude    *float64      `json:"latitude"`
	Longitude   *float64      `json:"longitude"`
	SubTeams    *[]subTeamReq `json:"subTeams"`
}

// Get returns the profile with sub-teams.
func (h *UserHandler) Get(c echo.Context) error {
	if !selfOrAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err, "load user failed")
	}
	return c.JSON(http.StatusOK, u)
}

// Update edits name, phone, location and, when subTeams is present, replaces
// the whole roster.
func (h *UserHandler) Update(c echo.Context) error {
	if !selfOrAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return badRequest(c, "name must not be empty")
	}
	upd := repository.UserUpdate{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
	if req.SubTeams != nil {
		for _, t := range *req.SubTeams {
			if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.Category) == "" {
				return badRequest(c, "every sub-team needs a name and a category")
			}
		}
		teams := toSubTeams(*req.SubTeams)
		upd.SubTeams = &teams
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.Update(ctx, c.Param("id"), upd)
	if err != nil {
		return fail(c, err, "update user failed")
	}
	return c.JSON(http.StatusOK, u)
}

// Subscribe switches the account to a catalog plan (or NONE) and sets the
// expiry from the plan's duration.  Only admins may grant FREE.
func (h *UserHandler) Subscribe(c echo.Context) error {
	if !selfOrAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	var req struct {
		Plan string `json:"plan"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	plan := strings.ToUpper(strings.TrimSpace(req.Plan))
	if plan == model.PlanFree && middleware.Role(c) != model.RoleAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "FREE plan is granted by admins only"})
	}
	expiry, ok := h.Catalog.Expiry(plan, h.Clock.Now())
	if !ok {
		return badRequest(c, "unknown plan")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.SetSubscription(ctx, c.Param("id"), plan, expiry)
	if err != nil {
		return fail(c, err, "update subscription failed")
	}
	log.Info().Str("user_id", u.ID).Str("plan", plan).Msg("subscription changed")
	return c.JSON(http.StatusOK, u)
}

// PlansHandler lists the subscription catalog.
type PlansHandler struct {
	Catalog *plans.Catalog
}

func (h *PlansHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Catalog.Plans)
}

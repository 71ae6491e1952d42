package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/jogofacil/field-booking/internal/config"
	"github.com/jogofacil/field-booking/internal/middleware"
	"github.com/jogofacil/field-booking/internal/model"
	"github.com/jogofacil/field-booking/internal/repository"
	"github.com/jogofacil/field-booking/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.  OnFieldCreated, when
// set, runs after a field owner registers (the field list cache is purged
// there).
type AuthHandler struct {
	Cfg            config.Config
	Users          UserStore
	Tokens         TokenStore
	OnFieldCreated func(ctx context.Context) error
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, onFieldCreated func(ctx context.Context) error) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, OnFieldCreated: onFieldCreated}
}

// ----- DTOs -----

type subTeamReq struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	LogoURL  string `json:"logoUrl"`
}

type fieldDataReq struct {
	Name                   string          `json:"name"`
	Location               string          `json:"location"`
	HourlyRate             float64         `json:"hourlyRate"`
	CancellationFeePercent float64         `json:"cancellationFeePercent"`
	PixConfig              model.PixConfig `json:"pixConfig"`
	ImageURL               string          `json:"imageUrl"`
	ContactPhone           string          `json:"contactPhone"`
	Latitude               *float64        `json:"latitude"`
	Longitude              *float64        `json:"longitude"`
}

type registerReq struct {
	Email       string        `json:"email"`
	Password    string        `json:"password"`
	Name        string        `json:"name"`
	PhoneNumber string        `json:"phoneNumber"`
	Role        string        `json:"role"`
	Latitude    *float64      `json:"latitude"`
	Longitude   *float64      `json:"longitude"`
	SubTeams    []subTeamReq  `json:"subTeams"`
	FieldData   *fieldDataReq `json:"fieldData"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    model.User `json:"user"`
	Access  tokenPart  `json:"access"`
	Refresh tokenPart  `json:"refresh"`
}

func toSubTeams(in []subTeamReq) []model.SubTeam {
	out := make([]model.SubTeam, 0, len(in))
	for _, t := range in {
		out = append(out, model.SubTeam{Name: t.Name, Category: t.Category, LogoURL: t.LogoURL})
	}
	return out
}

func orDefault(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// issue mints an access token and stores a fresh refresh token for u.
func (h *AuthHandler) issue(ctx context.Context, u model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

// Register creates the account (and, for owners, their field) and returns
// tokens immediately.  ADMIN cannot be self-assigned.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return badRequest(c, "email, password and name are required")
	}

	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role != model.RoleFieldOwner {
		role = model.RoleTeamCaptain
	}
	in := repository.NewUser{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
		Role:         role,
		Subscription: model.PlanNone,
		Latitude:     orDefault(req.Latitude, model.DefaultLatitude),
		Longitude:    orDefault(req.Longitude, model.DefaultLongitude),
		SubTeams:     toSubTeams(req.SubTeams),
	}

	var field *model.Field
	if role == model.RoleFieldOwner {
		fd := req.FieldData
		if fd == nil || strings.TrimSpace(fd.Name) == "" {
			return badRequest(c, "fieldData with a name is required for field owners")
		}
		if fd.HourlyRate < 0 || fd.CancellationFeePercent < 0 || fd.CancellationFeePercent > 100 {
			return badRequest(c, "invalid fieldData pricing")
		}
		in.Subscription = model.PlanFree
		field = &model.Field{
			Name:                   strings.TrimSpace(fd.Name),
			Location:               strings.TrimSpace(fd.Location),
			HourlyRate:             fd.HourlyRate,
			CancellationFeePercent: fd.CancellationFeePercent,
			PixConfig:              fd.PixConfig,
			ImageURL:               fd.ImageURL,
			ContactPhone:           fd.ContactPhone,
			Latitude:               orDefault(fd.Latitude, in.Latitude),
			Longitude:              orDefault(fd.Longitude, in.Longitude),
		}
		if field.ContactPhone == "" {
			field.ContactPhone = in.PhoneNumber
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.Create(ctx, in, field, h.Cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return badRequest(c, "email already registered")
	}
	if err != nil {
		return fail(c, err, "create user failed")
	}
	if field != nil && h.OnFieldCreated != nil {
		if err := h.OnFieldCreated(ctx); err != nil {
			log.Warn().Err(err).Str("user_id", u.ID).Msg("field created but cache purge failed")
		}
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return fail(c, err, "issue tokens failed")
	}
	log.Info().Str("user_id", u.ID).Str("role", u.Role).Msg("user registered")
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return fail(c, err, "query failed")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return fail(c, err, "issue tokens failed")
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh validates a refresh token by hash, revokes it and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return fail(c, err, "revoke refresh failed")
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return fail(c, err, "load user failed")
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return fail(c, err, "issue tokens failed")
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the given refresh token.  With "all": true it revokes
// every session of the token's owner.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
		All          bool   `json:"all"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if req.All {
		err = h.Tokens.RevokeAllForUser(ctx, userID)
	} else {
		err = h.Tokens.RevokeByHash(ctx, hash)
	}
	if err != nil {
		return fail(c, err, "revoke refresh failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, middleware.UserID(c))
	if err != nil {
		return fail(c, err, "load user failed")
	}
	return c.JSON(http.StatusOK, u)
}

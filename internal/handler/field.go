package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/jogofacil/field-booking/internal/booking"
	"github.com/jogofacil/field-booking/internal/middleware"
	"github.com/jogofacil/field-booking/internal/model"
)

// FieldHandler serves field listings and owner edits.  OnChange, when set,
// runs after a successful edit (the server purges the response cache).
type FieldHandler struct {
	Fields   FieldStore
	OnChange func(ctx context.Context) error
}

func NewFieldHandler(f FieldStore, onChange func(ctx context.Context) error) *FieldHandler {
	return &FieldHandler{Fields: f, OnChange: onChange}
}

type updateFieldReq struct {
	Name                   *string          `json:"name"`
	Location               *string          `json:"location"`
	HourlyRate             *float64         `json:"hourlyRate"`
	CancellationFeePercent *float64         `json:"cancellationFeePercent"`
	PixConfig              *model.PixConfig `json:"pixConfig"`
	ImageURL               *string          `json:"imageUrl"`
	ContactPhone           *string          `json:"contactPhone"`
	Latitude               *float64         `json:"latitude"`
	Longitude              *float64         `json:"longitude"`
}

func (h *FieldHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	fields, err := h.Fields.List(ctx)
	if err != nil {
		return fail(c, err, "list fields failed")
	}
	return c.JSON(http.StatusOK, fields)
}

func (h *FieldHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	f, err := h.Fields.GetByID(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err, "load field failed")
	}
	return c.JSON(http.StatusOK, f)
}

// Contact returns a WhatsApp link for a general question to the field.
func (h *FieldHandler) Contact(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	f, err := h.Fields.GetByID(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err, "load field failed")
	}
	msg := booking.InquiryMessage(f)
	return c.JSON(http.StatusOK, contactResp{
		Phone:        f.ContactPhone,
		Message:      msg,
		WhatsAppLink: booking.WhatsAppLink(f.ContactPhone, msg),
	})
}

// Update applies a partial edit.  Owners may only edit their own field;
// admins may edit any.
func (h *FieldHandler) Update(c echo.Context) error {
	var req updateFieldReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	f, err := h.Fields.GetByID(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err, "load field failed")
	}
	if middleware.Role(c) != model.RoleAdmin && f.OwnerID != middleware.UserID(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return badRequest(c, "name must not be empty")
		}
		f.Name = strings.TrimSpace(*req.Name)
	}
	if req.Location != nil {
		f.Location = *req.Location
	}
	if req.HourlyRate != nil {
		if *req.HourlyRate < 0 {
			return badRequest(c, "hourlyRate must not be negative")
		}
		f.HourlyRate = *req.HourlyRate
	}
	if req.CancellationFeePercent != nil {
		if p := *req.CancellationFeePercent; p < 0 || p > 100 {
			return badRequest(c, "cancellationFeePercent must be between 0 and 100")
		}
		f.CancellationFeePercent = *req.CancellationFeePercent
	}
	if req.PixConfig != nil {
		f.PixConfig = *req.PixConfig
	}
	if req.ImageURL != nil {
		f.ImageURL = *req.ImageURL
	}
	if req.ContactPhone != nil {
		f.ContactPhone = *req.ContactPhone
	}
	if req.Latitude != nil {
		f.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		f.Longitude = *req.Longitude
	}

	updated, err := h.Fields.Update(ctx, f)
	if err != nil {
		return fail(c, err, "update field failed")
	}
	if h.OnChange != nil {
		if err := h.OnChange(ctx); err != nil {
			log.Warn().Err(err).Str("field_id", f.ID).Msg("field changed but cache purge failed")
		}
	}
	return c.JSON(http.StatusOK, updated)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/jogofacil/field-booking/internal/ai"
	"github.com/jogofacil/field-booking/internal/booking"
	"github.com/jogofacil/field-booking/internal/middleware"
	"github.com/jogofacil/field-booking/internal/model"
	"github.com/jogofacil/field-booking/internal/queue"
	"github.com/jogofacil/field-booking/internal/repository"
)

// maxSlotsPerRequest bounds a single POST /api/slots after recurring
// expansion.
const maxSlotsPerRequest = 200

// SlotHandler serves the slot catalogue and the booking lifecycle.
type SlotHandler struct {
	Slots           SlotStore
	Fields          FieldStore
	Users           UserStore
	Verifier        ai.Verifier
	Events          queue.Publisher
	Clock           clockwork.Clock
	ReceiptMaxBytes int64
	// Location decides which calendar day "today" is.  Slot dates are local
	// to the fields; nil means UTC.
	Location        *time.Location
}

// ----- DTOs -----

type createSlotReq struct {
	FieldID           string   `json:"fieldId"`
	Date              string   `json:"date"`
	Time              string   `json:"time"`
	MatchType         string   `json:"matchType"`
	HasLocalTeam      bool     `json:"hasLocalTeam"`
	LocalTeamName     string   `json:"localTeamName"`
	AllowedCategories []string `json:"allowedCategories"`
	Price             *float64 `json:"price"`
	Recurring         bool     `json:"recurring"`
}

type updateSlotReq struct {
	Date              *string   `json:"date"`
	Time              *string   `json:"time"`
	MatchType         *string   `json:"matchType"`
	HasLocalTeam      *bool     `json:"hasLocalTeam"`
	LocalTeamName     *string   `json:"localTeamName"`
	AllowedCategories *[]string `json:"allowedCategories"`
	Price             *float64  `json:"price"`
}

type bookReq struct {
	SubTeamID     string `json:"subTeamId"`
	OpponentName  string `json:"opponentName"`
	OpponentPhone string `json:"opponentPhone"`
}

type bookResp struct {
	Slot         model.MatchSlot `json:"slot"`
	Amount       float64         `json:"amount"`
	PixConfig    model.PixConfig `json:"pixConfig"`
	WhatsAppLink string          `json:"whatsappLink"`
	Message      string          `json:"message"`
}

type contactResp struct {
	Phone        string `json:"phone"`
	Message      string `json:"message"`
	WhatsAppLink string `json:"whatsappLink"`
}

type receiptResp struct {
	Slot         model.MatchSlot          `json:"slot"`
	Verification model.VerificationResult `json:"verification"`
}

type cancelResp struct {
	Slot            model.MatchSlot `json:"slot"`
	CancellationFee float64         `json:"cancellationFee"`
}

// ----- helpers -----

func (h *SlotHandler) publish(ctx context.Context, typ string, s model.MatchSlot, mutate func(*queue.BookingEvent)) {
	ev := queue.BookingEvent{
		Type:     typ,
		SlotID:   s.ID,
		FieldID:  s.FieldID,
		UserID:   s.BookedByUserID,
		TeamName: s.BookedByTeamName,
		Category: s.BookedByCategory,
		Date:     s.Date,
		Time:     s.Time,
		Status:   s.Status,
		At:       h.Clock.Now().UTC(),
	}
	if mutate != nil {
		mutate(&ev)
	}
	if err := h.Events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn().Err(err).Str("type", typ).Str("slot_id", s.ID).Msg("booking event not published")
	}
}

// today returns the current local date as YYYY-MM-DD.
func (h *SlotHandler) today() string {
	return h.localNow().Format("2006-01-02")
}

func (h *SlotHandler) localNow() time.Time {
	if h.Location == nil {
		return h.Clock.Now().UTC()
	}
	return h.Clock.Now().In(h.Location)
}

// ownedSlot loads the slot and its field and checks that the caller owns the
// field (or is an admin).  On failure the response has been written and ok
// is false.
func (h *SlotHandler) ownedSlot(ctx context.Context, c echo.Context) (model.MatchSlot, model.Field, bool, error) {
	s, err := h.Slots.GetByID(ctx, c.Param("id"))
	if err != nil {
		return s, model.Field{}, false, fail(c, err, "load slot failed")
	}
	f, err := h.Fields.GetByID(ctx, s.FieldID)
	if err != nil {
		return s, f, false, fail(c, err, "load field failed")
	}
	if middleware.Role(c) != model.RoleAdmin && f.OwnerID != middleware.UserID(c) {
		return s, f, false, c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return s, f, true, nil
}

// bookedSlot loads a slot held by the calling captain.
func (h *SlotHandler) bookedSlot(ctx context.Context, c echo.Context) (model.MatchSlot, model.Field, bool, error) {
	s, err := h.Slots.GetByID(ctx, c.Param("id"))
	if err != nil {
		return s, model.Field{}, false, fail(c, err, "load slot failed")
	}
	if s.Status == model.SlotAvailable || s.BookedByUserID != middleware.UserID(c) {
		return s, model.Field{}, false, c.JSON(http.StatusForbidden, echo.Map{"error": "slot is not booked by you"})
	}
	f, err := h.Fields.GetByID(ctx, s.FieldID)
	if err != nil {
		return s, f, false, fail(c, err, "load field failed")
	}
	return s, f, true, nil
}

func validStatus(s string) bool {
	switch s {
	case model.SlotAvailable, model.SlotPendingVerification, model.SlotConfirmed:
		return true
	}
	return false
}

// ----- public -----

// List returns slots, optionally narrowed by field_id and status.
func (h *SlotHandler) List(c echo.Context) error {
	status := c.QueryParam("status")
	if status != "" && !validStatus(status) {
		return badRequest(c, "invalid status")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	slots, err := h.Slots.List(ctx, repository.SlotFilter{FieldID: c.QueryParam("field_id"), Status: status})
	if err != nil {
		return fail(c, err, "list slots failed")
	}
	return c.JSON(http.StatusOK, slots)
}

func parseFloatParam(c echo.Context, name string) (float64, bool, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, true, err
}

// Search returns upcoming available slots filtered by field name, distance,
// category and period of the day.
func (h *SlotHandler) Search(c echo.Context) error {
	q := booking.SearchQuery{
		Term:     c.QueryParam("q"),
		Category: c.QueryParam("category"),
		Period:   c.QueryParam("period"),
	}
	if !booking.ValidPeriod(q.Period) {
		return badRequest(c, "period must be ALL, MORNING, AFTERNOON or NIGHT")
	}
	lat, hasLat, err1 := parseFloatParam(c, "lat")
	lng, hasLng, err2 := parseFloatParam(c, "lng")
	radius, _, err3 := parseFloatParam(c, "radius_km")
	if err := errors.Join(err1, err2, err3); err != nil {
		return badRequest(c, "lat, lng and radius_km must be numbers")
	}
	if hasLat != hasLng {
		return badRequest(c, "lat and lng must be given together")
	}
	q.HasLocation, q.Lat, q.Lng, q.RadiusKm = hasLat, lat, lng, radius

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	slots, err := h.Slots.List(ctx, repository.SlotFilter{
		Status:   model.SlotAvailable,
		FromDate: h.today(),
	})
	if err != nil {
		return fail(c, err, "list slots failed")
	}
	fields, err := h.Fields.List(ctx)
	if err != nil {
		return fail(c, err, "list fields failed")
	}
	byID := make(map[string]model.Field, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}
	return c.JSON(http.StatusOK, booking.FilterSlots(slots, byID, q))
}

// ----- owner -----

// decodeSlotRequests accepts a single object or an array.
func decodeSlotRequests(body []byte) ([]createSlotReq, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var many []createSlotReq
		err := json.Unmarshal(body, &many)
		return many, err
	}
	var one createSlotReq
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, err
	}
	return []createSlotReq{one}, nil
}

// Create publishes one or more slots on the caller's field.  Recurring
// entries expand to four weekly slots.  The response lists every slot of
// the field.
func (h *SlotHandler) Create(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return badRequest(c, "invalid body")
	}
	reqs, err := decodeSlotRequests(body)
	if err != nil || len(reqs) == 0 {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	isAdmin := middleware.Role(c) == model.RoleAdmin
	var own model.Field
	if !isAdmin {
		if own, err = h.Fields.GetByOwner(ctx, middleware.UserID(c)); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return badRequest(c, "register a field before publishing slots")
			}
			return fail(c, err, "load field failed")
		}
	}

	fields := map[string]model.Field{}
	var toCreate []model.MatchSlot
	for _, r := range reqs {
		f := own
		if isAdmin {
			if r.FieldID == "" {
				return badRequest(c, "fieldId is required")
			}
			if cached, ok := fields[r.FieldID]; ok {
				f = cached
			} else if f, err = h.Fields.GetByID(ctx, r.FieldID); err != nil {
				return fail(c, err, "load field failed")
			}
		} else if r.FieldID != "" && r.FieldID != own.ID {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		fields[f.ID] = f

		base := model.MatchSlot{
			FieldID:           f.ID,
			Date:              strings.TrimSpace(r.Date),
			Time:              r.Time,
			MatchType:         strings.ToUpper(strings.TrimSpace(r.MatchType)),
			HasLocalTeam:      r.HasLocalTeam,
			LocalTeamName:     strings.TrimSpace(r.LocalTeamName),
			AllowedCategories: r.AllowedCategories,
			Price:             f.HourlyRate,
		}
		if base.MatchType == "" {
			base.MatchType = model.MatchFriendly
		}
		if len(base.AllowedCategories) == 0 {
			base.AllowedCategories = []string{model.CategoryOpen}
		}
		if r.Price != nil {
			base.Price = *r.Price
		}
		if base.Time, err = booking.NormalizeTime(base.Time); err != nil {
			return badRequest(c, err.Error())
		}
		if err := booking.ValidateSlot(base); err != nil {
			return badRequest(c, err.Error())
		}
		expanded, err := booking.ExpandRecurring(base, r.Recurring)
		if err != nil {
			return badRequest(c, err.Error())
		}
		toCreate = append(toCreate, expanded...)
		if len(toCreate) > maxSlotsPerRequest {
			return badRequest(c, "too many slots in one request")
		}
	}

	if _, err := h.Slots.CreateMany(ctx, toCreate); err != nil {
		return fail(c, err, "create slots failed")
	}
	log.Info().Int("count", len(toCreate)).Str("user_id", middleware.UserID(c)).Msg("slots created")

	filter := repository.SlotFilter{}
	if len(fields) == 1 {
		for id := range fields {
			filter.FieldID = id
		}
	}
	all, err := h.Slots.List(ctx, filter)
	if err != nil {
		return fail(c, err, "list slots failed")
	}
	return c.JSON(http.StatusCreated, all)
}

// Update edits the schedule of an available slot.  Booking data can only
// change through the lifecycle endpoints.
func (h *SlotHandler) Update(c echo.Context) error {
	var req updateSlotReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	s, _, ok, err := h.ownedSlot(ctx, c)
	if !ok {
		return err
	}
	if req.MatchType != nil {
		mt := strings.ToUpper(strings.TrimSpace(*req.MatchType))
		req.MatchType = &mt
	}
	if req.Time != nil {
		hhmm, err := booking.NormalizeTime(*req.Time)
		if err != nil {
			return badRequest(c, err.Error())
		}
		req.Time = &hhmm
	}
	merged := s
	if req.Date != nil {
		merged.Date = *req.Date
	}
	if req.Time != nil {
		merged.Time = *req.Time
	}
	if req.MatchType != nil {
		merged.MatchType = *req.MatchType
	}
	if req.HasLocalTeam != nil {
		merged.HasLocalTeam = *req.HasLocalTeam
	}
	if req.LocalTeamName != nil {
		merged.LocalTeamName = *req.LocalTeamName
	}
	if req.Price != nil {
		merged.Price = *req.Price
	}
	if err := booking.ValidateSlot(merged); err != nil {
		return badRequest(c, err.Error())
	}
	if req.AllowedCategories != nil && len(*req.AllowedCategories) == 0 {
		return badRequest(c, "allowedCategories must not be empty")
	}

	updated, err := h.Slots.UpdateSchedule(ctx, s.ID, repository.SlotUpdate{
		Date:              req.Date,
		Time:              req.Time,
		MatchType:         req.MatchType,
		HasLocalTeam:      req.HasLocalTeam,
		LocalTeamName:     req.LocalTeamName,
		AllowedCategories: req.AllowedCategories,
		Price:             req.Price,
	})
	if err != nil {
		return fail(c, err, "update slot failed")
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete removes an available slot.
func (h *SlotHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	s, _, ok, err := h.ownedSlot(ctx, c)
	if !ok {
		return err
	}
	if err := h.Slots.Delete(ctx, s.ID); err != nil {
		return fail(c, err, "delete slot failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Confirm accepts the booker's payment.
func (h *SlotHandler) Confirm(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	s, _, ok, err := h.ownedSlot(ctx, c)
	if !ok {
		return err
	}
	confirmed, err := h.Slots.Confirm(ctx, s.ID)
	if err != nil {
		return fail(c, err, "confirm slot failed")
	}
	h.publish(ctx, queue.EventConfirmed, confirmed, nil)
	return c.JSON(http.StatusOK, confirmed)
}

// Reject frees a pending slot, e.g. when no payment arrived.
func (h *SlotHandler) Reject(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	s, _, ok, err := h.ownedSlot(ctx, c)
	if !ok {
		return err
	}
	released, err := h.Slots.Release(ctx, s.ID, model.SlotPendingVerification)
	if err != nil {
		return fail(c, err, "reject slot failed")
	}
	h.publish(ctx, queue.EventRejected, s, func(ev *queue.BookingEvent) { ev.Status = released.Status })
	return c.JSON(http.StatusOK, released)
}

// Contact builds the WhatsApp link from the owner to the booker.
func (h *SlotHandler) Contact(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	s, f, ok, err := h.ownedSlot(ctx, c)
	if !ok {
		return err
	}
	if s.Status == model.SlotAvailable {
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot has no booking"})
	}
	msg := booking.ContactMessage(f, s)
	return c.JSON(http.StatusOK, contactResp{
		Phone:        s.BookedByPhone,
		Message:      msg,
		WhatsAppLink: booking.WhatsAppLink(s.BookedByPhone, msg),
	})
}

// ----- captain -----

// Book requests an available slot for one of the captain's sub-teams and
// returns the payment details plus the WhatsApp handoff to the owner.
func (h *SlotHandler) Book(c echo.Context) error {
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
	}
	team, ok := u.FindSubTeam(req.SubTeamID)
	if !ok {
		return badRequest(c, "subTeamId does not belong to you")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	s, err := h.Slots.GetByID(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err, "load slot failed")
	}
	if s.Status != model.SlotAvailable {
		return fail(c, repository.ErrConflict, "")
	}
	if len(booking.EligibleTeams(s, []model.SubTeam{team})) == 0 {
		return badRequest(c, "team category is not allowed for this slot")
	}
	b := model.Booking{
		UserID:   u.ID,
		Phone:    u.PhoneNumber,
		TeamName: team.Name,
		Category: team.Category,
	}
	if s.MatchType == model.MatchRental {
		b.OpponentTeamName = strings.TrimSpace(req.OpponentName)
		b.OpponentTeamPhone = strings.TrimSpace(req.OpponentPhone)
		if b.OpponentTeamName == "" {
			return badRequest(c, "opponentName is required for rentals")
		}
	}
	f, err := h.Fields.GetByID(ctx, s.FieldID)
	if err != nil {
		return fail(c, err, "load field failed")
	}

	booked, err := h.Slots.RequestBooking(ctx, s.ID, b)
	if err != nil {
		return fail(c, err, "book slot failed")
	}
	h.publish(ctx, queue.EventRequested, booked, nil)

	msg := booking.RequestMessage(booked, team.Name)
	return c.JSON(http.StatusOK, bookResp{
		Slot:         booked,
		Amount:       booked.Price,
		PixConfig:    f.PixConfig,
		WhatsAppLink: booking.WhatsAppLink(f.ContactPhone, msg),
		Message:      msg,
	})
}

// Receipt runs the uploaded PIX receipt through the verifier and stores the
// outcome on the pending slot.  The owner still decides with Confirm.
func (h *SlotHandler) Receipt(c echo.Context) error {
	fh, err := c.FormFile("receipt")
	if err != nil {
		return badRequest(c, "multipart file 'receipt' is required")
	}
	if h.ReceiptMaxBytes > 0 && fh.Size > h.ReceiptMaxBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "receipt too large"})
	}
	file, err := fh.Open()
	if err != nil {
		return badRequest(c, "unreadable receipt")
	}
	defer file.Close()
	img, err := io.ReadAll(file)
	if err != nil || len(img) == 0 {
		return badRequest(c, "unreadable receipt")
	}
	mime := http.DetectContentType(img)
	if !strings.HasPrefix(mime, "image/") {
		return badRequest(c, "receipt must be an image")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	s, f, ok, err := h.bookedSlot(ctx, c)
	if !ok {
		return err
	}
	if s.Status != model.SlotPendingVerification {
		return fail(c, repository.ErrConflict, "")
	}
	receiver := f.PixConfig.Name
	if receiver == "" {
		receiver = f.PixConfig.Key
	}

	// The model call is bounded by the request context, not dbTimeout.
	vr, err := h.Verifier.VerifyPixReceipt(c.Request().Context(), ai.ReceiptInput{
		Image:            img,
		MimeType:         mime,
		ExpectedAmount:   s.Price,
		ExpectedReceiver: receiver,
		Today:            h.localNow(),
	})
	if err != nil {
		return fail(c, err, "receipt verification failed")
	}
	checked := h.Clock.Now().UTC()
	vr.CheckedAt = &checked

	saveCtx, saveCancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer saveCancel()
	saved, err := h.Slots.SaveReceipt(saveCtx, s.ID, vr)
	if err != nil {
		return fail(c, err, "save receipt failed")
	}
	h.publish(ctx, queue.EventReceiptChecked, saved, func(ev *queue.BookingEvent) { ev.Valid = &vr.IsValid })
	return c.JSON(http.StatusOK, receiptResp{Slot: saved, Verification: vr})
}

// Cancel frees the captain's booking.  A confirmed booking owes the field's
// cancellation fee.
func (h *SlotHandler) Cancel(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	s, f, ok, err := h.bookedSlot(ctx, c)
	if !ok {
		return err
	}
	fee := booking.CancellationFee(s, f)
	released, err := h.Slots.ReleaseFor(ctx, s.ID, middleware.UserID(c))
	if err != nil {
		return fail(c, err, "cancel booking failed")
	}
	h.publish(ctx, queue.EventCancelled, s, func(ev *queue.BookingEvent) {
		ev.Status = released.Status
		ev.Fee = fee
	})
	return c.JSON(http.StatusOK, cancelResp{Slot: released, CancellationFee: fee})
}

// MyBookings lists the slots held by the caller, soonest first.
func (h *SlotHandler) MyBookings(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	slots, err := h.Slots.List(ctx, repository.SlotFilter{BookedBy: middleware.UserID(c)})
	if err != nil {
		return fail(c, err, "list bookings failed")
	}
	booking.SortByStart(slots)
	return c.JSON(http.StatusOK, slots)
}

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/jogofacil/field-booking/internal/ai"
	"github.com/jogofacil/field-booking/internal/config"
	"github.com/jogofacil/field-booking/internal/handler"
	"github.com/jogofacil/field-booking/internal/middleware"
	"github.com/jogofacil/field-booking/internal/model"
	"github.com/jogofacil/field-booking/internal/plans"
	"github.com/jogofacil/field-booking/internal/queue"
	"github.com/jogofacil/field-booking/internal/repository"
	"github.com/jogofacil/field-booking/internal/router"
	"github.com/jogofacil/field-booking/internal/utils"
)

const testSecret = "handler-test-secret"

// ----- users -----

type fakeUsers struct {
	mu     sync.Mutex
	seq    int
	byID   map[string]model.User
	fields *fakeFields
}

func (f *fakeUsers) Create(_ context.Context, in repository.NewUser, field *model.Field, cost int) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == strings.ToLower(in.Email) {
			return model.User{}, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(in.Password, cost)
	if err != nil {
		return model.User{}, err
	}
	f.seq++
	u := model.User{
		ID:                 fmt.Sprintf("u%d", f.seq),
		Name:               in.Name,
		Email:              strings.ToLower(in.Email),
		PasswordHash:       hash,
		PhoneNumber:        in.PhoneNumber,
		Role:               in.Role,
		Subscription:       in.Subscription,
		SubscriptionExpiry: in.SubscriptionExpiry,
		Latitude:           in.Latitude,
		Longitude:          in.Longitude,
	}
	for i, t := range in.SubTeams {
		t.ID = fmt.Sprintf("%s-t%d", u.ID, i+1)
		u.SubTeams = append(u.SubTeams, t)
	}
	f.byID[u.ID] = u
	if field != nil {
		field.OwnerID = u.ID
		if field.ID == "" {
			field.ID = "f-" + u.ID
		}
		f.fields.put(*field)
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) Update(_ context.Context, id string, upd repository.UserUpdate) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.PhoneNumber != nil {
		u.PhoneNumber = *upd.PhoneNumber
	}
	if upd.SubTeams != nil {
		u.SubTeams = nil
		for i, t := range *upd.SubTeams {
			t.ID = fmt.Sprintf("%s-n%d", id, i+1)
			u.SubTeams = append(u.SubTeams, t)
		}
	}
	f.byID[id] = u
	return u, nil
}

func (f *fakeUsers) SetSubscription(_ context.Context, id, plan string, expiry *time.Time) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	u.Subscription, u.SubscriptionExpiry = plan, expiry
	f.byID[id] = u
	return u, nil
}

// ----- tokens -----

type fakeTokens struct {
	mu     sync.Mutex
	byHash map[string]string
}

func (f *fakeTokens) StoreRefresh(_ context.Context, userID, hash string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byHash[hash] = userID
	return nil
}

func (f *fakeTokens) ValidateRefresh(_ context.Context, hash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byHash[hash]
	if !ok {
		return "", repository.ErrNotFound
	}
	return id, nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byHash, hash)
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for h, id := range f.byHash {
		if id == userID {
			delete(f.byHash, h)
		}
	}
	return nil
}

// ----- fields -----

type fakeFields struct {
	mu   sync.Mutex
	byID map[string]model.Field
}

func (f *fakeFields) put(fl model.Field) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[fl.ID] = fl
}

func (f *fakeFields) List(context.Context) ([]model.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Field, 0, len(f.byID))
	for _, fl := range f.byID {
		out = append(out, fl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeFields) GetByID(_ context.Context, id string) (model.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl, ok := f.byID[id]
	if !ok {
		return model.Field{}, repository.ErrNotFound
	}
	return fl, nil
}

func (f *fakeFields) GetByOwner(_ context.Context, ownerID string) (model.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fl := range f.byID {
		if fl.OwnerID == ownerID {
			return fl, nil
		}
	}
	return model.Field{}, repository.ErrNotFound
}

func (f *fakeFields) Update(_ context.Context, fl model.Field) (model.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[fl.ID]
	if !ok {
		return model.Field{}, repository.ErrNotFound
	}
	if cur.OwnerID != fl.OwnerID {
		return model.Field{}, repository.ErrForbidden
	}
	f.byID[fl.ID] = fl
	return fl, nil
}

// ----- slots -----

type fakeSlots struct {
	mu   sync.Mutex
	seq  int
	byID map[string]model.MatchSlot
}

func (f *fakeSlots) List(_ context.Context, flt repository.SlotFilter) ([]model.MatchSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.MatchSlot{}
	for _, s := range f.byID {
		if flt.FieldID != "" && s.FieldID != flt.FieldID ||
			flt.Status != "" && s.Status != flt.Status ||
			flt.BookedBy != "" && s.BookedByUserID != flt.BookedBy ||
			flt.FromDate != "" && s.Date < flt.FromDate {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date+out[i].Time < out[j].Date+out[j].Time })
	return out, nil
}

func (f *fakeSlots) GetByID(_ context.Context, id string) (model.MatchSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return model.MatchSlot{}, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeSlots) CreateMany(_ context.Context, slots []model.MatchSlot) ([]model.MatchSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.MatchSlot, 0, len(slots))
	for _, s := range slots {
		f.seq++
		s.ID = fmt.Sprintf("s%d", f.seq)
		s.Status = model.SlotAvailable
		s.IsBooked = false
		f.byID[s.ID] = s
		out = append(out, s)
	}
	return out, nil
}

// guarded applies fn when the slot exists and is in one of from.
func (f *fakeSlots) guarded(id string, fn func(*model.MatchSlot) bool, from ...string) (model.MatchSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return model.MatchSlot{}, repository.ErrNotFound
	}
	for _, st := range from {
		if s.Status == st && fn(&s) {
			f.byID[id] = s
			return s, nil
		}
	}
	return model.MatchSlot{}, repository.ErrConflict
}

func (f *fakeSlots) UpdateSchedule(_ context.Context, id string, upd repository.SlotUpdate) (model.MatchSlot, error) {
	return f.guarded(id, func(s *model.MatchSlot) bool {
		if upd.Date != nil {
			s.Date = *upd.Date
		}
		if upd.Time != nil {
			s.Time = *upd.Time
		}
		if upd.Price != nil {
			s.Price = *upd.Price
		}
		if upd.AllowedCategories != nil {
			s.AllowedCategories = *upd.AllowedCategories
		}
		return true
	}, model.SlotAvailable)
}

func (f *fakeSlots) Delete(_ context.Context, id string) error {
	_, err := f.guarded(id, func(*model.MatchSlot) bool { return true }, model.SlotAvailable)
	if err == nil {
		f.mu.Lock()
		delete(f.byID, id)
		f.mu.Unlock()
	}
	return err
}

func (f *fakeSlots) RequestBooking(_ context.Context, id string, b model.Booking) (model.MatchSlot, error) {
	return f.guarded(id, func(s *model.MatchSlot) bool {
		s.Status, s.IsBooked = model.SlotPendingVerification, true
		s.BookedByUserID, s.BookedByPhone, s.BookedByTeamName, s.BookedByCategory = b.UserID, b.Phone, b.TeamName, b.Category
		s.OpponentTeamName, s.OpponentTeamPhone = b.OpponentTeamName, b.OpponentTeamPhone
		return true
	}, model.SlotAvailable)
}

func (f *fakeSlots) Confirm(_ context.Context, id string) (model.MatchSlot, error) {
	return f.guarded(id, func(s *model.MatchSlot) bool {
		s.Status = model.SlotConfirmed
		return true
	}, model.SlotPendingVerification)
}

func release(s *model.MatchSlot) {
	*s = model.MatchSlot{
		ID: s.ID, FieldID: s.FieldID, Date: s.Date, Time: s.Time, MatchType: s.MatchType,
		HasLocalTeam: s.HasLocalTeam, LocalTeamName: s.LocalTeamName,
		AllowedCategories: s.AllowedCategories, Price: s.Price, Status: model.SlotAvailable,
	}
}

func (f *fakeSlots) Release(_ context.Context, id string, from ...string) (model.MatchSlot, error) {
	if len(from) == 0 {
		from = []string{model.SlotPendingVerification, model.SlotConfirmed}
	}
	return f.guarded(id, func(s *model.MatchSlot) bool { release(s); return true }, from...)
}

func (f *fakeSlots) ReleaseFor(_ context.Context, id, userID string) (model.MatchSlot, error) {
	return f.guarded(id, func(s *model.MatchSlot) bool {
		if s.BookedByUserID != userID {
			return false
		}
		release(s)
		return true
	}, model.SlotPendingVerification, model.SlotConfirmed)
}

func (f *fakeSlots) SaveReceipt(_ context.Context, id string, vr model.VerificationResult) (model.MatchSlot, error) {
	return f.guarded(id, func(s *model.MatchSlot) bool {
		s.Receipt = &vr
		return true
	}, model.SlotPendingVerification)
}

// ----- events / verifier -----

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (p *fakePublisher) Publish(_ context.Context, ev queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fakeVerifier struct {
	got    ai.ReceiptInput
	result model.VerificationResult
}

func (v *fakeVerifier) VerifyPixReceipt(_ context.Context, in ai.ReceiptInput) (model.VerificationResult, error) {
	v.got = in
	return v.result, nil
}

// ----- test server -----

type env struct {
	e        *echo.Echo
	users    *fakeUsers
	tokens   *fakeTokens
	fields   *fakeFields
	slots    *fakeSlots
	events   *fakePublisher
	verifier *fakeVerifier
	purges   int
}

func newEnv(t *testing.T, clock clockwork.Clock) *env {
	t.Helper()
	catalog, err := plans.Load("")
	if err != nil {
		t.Fatalf("plans: %v", err)
	}
	fields := &fakeFields{byID: map[string]model.Field{}}
	en := &env{
		e:        echo.New(),
		users:    &fakeUsers{byID: map[string]model.User{}, fields: fields},
		tokens:   &fakeTokens{byHash: map[string]string{}},
		fields:   fields,
		slots:    &fakeSlots{byID: map[string]model.MatchSlot{}},
		events:   &fakePublisher{},
		verifier: &fakeVerifier{result: model.VerificationResult{IsValid: true, Reason: "ok"}},
	}
	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
	router.Register(en.e, router.Handlers{
		Auth:   handler.NewAuthHandler(cfg, en.users, en.tokens, en.purge),
		Users:  handler.NewUserHandler(en.users, catalog, clock),
		Plans:  &handler.PlansHandler{Catalog: catalog},
		Fields: handler.NewFieldHandler(en.fields, en.purge),
		Slots: &handler.SlotHandler{
			Slots: en.slots, Fields: en.fields, Users: en.users,
			Verifier: en.verifier, Events: en.events, Clock: clock,
			ReceiptMaxBytes: 1 << 20,
			Location:        time.FixedZone("BRT", -3*60*60),
		},
	}, router.Guards{
		JWT:          middleware.JWTAuth(testSecret),
		Subscription: middleware.RequireSubscription(en.users, clock),
	})
	return en
}

func (en *env) purge(context.Context) error {
	en.purges++
	return nil
}

func (en *env) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	en.e.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, u model.User) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, u.ID, u.Role, 15)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// addOwner registers a field owner with a field near São Paulo.
func (en *env) addOwner(t *testing.T, name string) (model.User, model.Field) {
	t.Helper()
	field := &model.Field{
		Name: name, Location: "São Paulo", HourlyRate: 150, CancellationFeePercent: 20,
		PixConfig: model.PixConfig{Key: "pix@" + name, Name: name}, ContactPhone: "+55 11 98888-0000",
		Latitude: -23.55, Longitude: -46.63,
	}
	u, err := en.users.Create(context.Background(), repository.NewUser{
		Name: name + " Owner", Email: name + "@owner.test", Password: "secret",
		Role: model.RoleFieldOwner, Subscription: model.PlanFree,
	}, field, 4)
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	return u, *field
}

// addCaptain registers a captain with one sub-team per category and an
// optional active plan.
func (en *env) addCaptain(t *testing.T, name string, expiry *time.Time, categories ...string) model.User {
	t.Helper()
	var teams []model.SubTeam
	for _, c := range categories {
		teams = append(teams, model.SubTeam{Name: name + " " + c, Category: c})
	}
	plan := model.PlanNone
	if expiry != nil {
		plan = model.PlanMonthly
	}
	u, err := en.users.Create(context.Background(), repository.NewUser{
		Name: name, Email: strings.ToLower(name) + "@captain.test", Password: "secret", PhoneNumber: "11 97777-0000",
		Role: model.RoleTeamCaptain, Subscription: plan, SubscriptionExpiry: expiry, SubTeams: teams,
	}, nil, 4)
	if err != nil {
		t.Fatalf("captain: %v", err)
	}
	return u
}

func (en *env) addSlot(t *testing.T, s model.MatchSlot) model.MatchSlot {
	t.Helper()
	if s.MatchType == "" {
		s.MatchType = model.MatchFriendly
	}
	if len(s.AllowedCategories) == 0 {
		s.AllowedCategories = []string{model.CategoryOpen}
	}
	out, err := en.slots.CreateMany(context.Background(), []model.MatchSlot{s})
	if err != nil {
		t.Fatalf("slot: %v", err)
	}
	return out[0]
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, want, rec.Body.String())
	}
}

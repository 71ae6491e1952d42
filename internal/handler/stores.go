package handler

import (
	"context"
	"time"

	"github.com/jogofacil/field-booking/internal/model"
	"github.com/jogofacil/field-booking/internal/repository"
)

// The handlers depend on these narrow views of the repositories so tests can
// swap in in-memory fakes.  *repository.UserRepo and friends satisfy them.

type UserStore interface {
	Create(ctx context.Context, in repository.NewUser, field *model.Field, cost int) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	Update(ctx context.Context, id string, upd repository.UserUpdate) (model.User, error)
	SetSubscription(ctx context.Context, id, plan string, expiry *time.Time) (model.User, error)
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

type FieldStore interface {
	List(ctx context.Context) ([]model.Field, error)
	GetByID(ctx context.Context, id string) (model.Field, error)
	GetByOwner(ctx context.Context, ownerID string) (model.Field, error)
	Update(ctx context.Context, f model.Field) (model.Field, error)
}

type SlotStore interface {
	List(ctx context.Context, f repository.SlotFilter) ([]model.MatchSlot, error)
	GetByID(ctx context.Context, id string) (model.MatchSlot, error)
	CreateMany(ctx context.Context, slots []model.MatchSlot) ([]model.MatchSlot, error)
	UpdateSchedule(ctx context.Context, id string, upd repository.SlotUpdate) (model.MatchSlot, error)
	Delete(ctx context.Context, id string) error
	RequestBooking(ctx context.Context, id string, b model.Booking) (model.MatchSlot, error)
	Confirm(ctx context.Context, id string) (model.MatchSlot, error)
	Release(ctx context.Context, id string, from ...string) (model.MatchSlot, error)
	ReleaseFor(ctx context.Context, id, userID string) (model.MatchSlot, error)
	SaveReceipt(ctx context.Context, id string, vr model.VerificationResult) (model.MatchSlot, error)
}

var (
	_ UserStore  = (*repository.UserRepo)(nil)
	_ TokenStore = (*repository.TokenRepo)(nil)
	_ FieldStore = (*repository.FieldRepo)(nil)
	_ SlotStore  = (*repository.SlotRepo)(nil)
)

const dbTimeout = 5 * time.Second

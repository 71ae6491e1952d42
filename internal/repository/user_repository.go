package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jogofacil/field-booking/internal/model"
	"github.com/jogofacil/field-booking/internal/utils"
)

// UserRepo persists users and their sub-teams.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NewUser carries the registration data written by Create.
type NewUser struct {
	Name               string
	Email              string
	Password           string
	PhoneNumber        string
	Role               string
	Subscription       string
	SubscriptionExpiry *time.Time
	Latitude           float64
	Longitude          float64
	SubTeams           []model.SubTeam
}

// UserUpdate lists the profile fields PUT /api/users/:id may change.  Nil
// pointers leave the column untouched; a non-nil SubTeams replaces the
// whole roster.
type UserUpdate struct {
	Name        *string
	PhoneNumber *string
	Latitude    *float64
	Longitude   *float64
	SubTeams    *[]model.SubTeam
}

const userCols = "id,name,email,password_hash,phone_number,role,subscription,subscription_expiry,latitude,longitude,created_at,updated_at"

// Create inserts the user, its sub-teams and, for field owners, the field in
// one transaction.  It returns ErrEmailExists on a duplicate e-mail.
func (r *UserRepo) Create(ctx context.Context, in NewUser, field *model.Field, cost int) (model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	hash, err := utils.HashPassword(in.Password, cost)
	if err != nil {
		return model.User{}, err
	}
	id := uuid.NewString()
	ts := now()

	err = inTx(ctx, r.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO users ("+userCols+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?)",
			id, strings.TrimSpace(in.Name), email, hash, in.PhoneNumber, in.Role, in.Subscription,
			nullTime(in.SubscriptionExpiry), in.Latitude, in.Longitude, ts, ts)
		if err != nil {
			if isDuplicate(err) {
				return ErrEmailExists
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if err := insertSubTeams(ctx, tx, id, in.SubTeams); err != nil {
			return err
		}
		if field != nil {
			field.OwnerID = id
			if err := insertField(ctx, tx, field); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, id)
}

// EmailExists reports whether an account uses the given e-mail.
func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(1) FROM users WHERE email=?",
		strings.ToLower(strings.TrimSpace(email))).Scan(&n)
	return n > 0, err
}

// GetByEmail fetches a user (with sub-teams) by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx, "SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", email)
}

// GetByID fetches a user (with sub-teams) by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (model.User, error) {
	var (
		u      model.User
		expiry sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, q, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.PhoneNumber,
		&u.Role, &u.Subscription, &expiry, &u.Latitude, &u.Longitude, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.SubscriptionExpiry = timePtr(expiry)
	u.SubTeams, err = listSubTeams(ctx, r.DB, u.ID)
	return u, err
}

// Update applies the non-nil fields of upd and returns the fresh user.
func (r *UserRepo) Update(ctx context.Context, id string, upd UserUpdate) (model.User, error) {
	sets := []string{"updated_at=?"}
	args := []any{now()}
	if upd.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, strings.TrimSpace(*upd.Name))
	}
	if upd.PhoneNumber != nil {
		sets = append(sets, "phone_number=?")
		args = append(args, strings.TrimSpace(*upd.PhoneNumber))
	}
	if upd.Latitude != nil {
		sets = append(sets, "latitude=?")
		args = append(args, *upd.Latitude)
	}
	if upd.Longitude != nil {
		sets = append(sets, "longitude=?")
		args = append(args, *upd.Longitude)
	}
	args = append(args, id)

	err := inTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ",")+" WHERE id=?", args...)
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if upd.SubTeams == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM sub_teams WHERE user_id=?", id); err != nil {
			return fmt.Errorf("clear sub teams: %w", err)
		}
		return insertSubTeams(ctx, tx, id, *upd.SubTeams)
	})
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, id)
}

// SetSubscription stores a plan and its expiry.
func (r *UserRepo) SetSubscription(ctx context.Context, id, plan string, expiry *time.Time) (model.User, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET subscription=?, subscription_expiry=?, updated_at=? WHERE id=?",
		plan, nullTime(expiry), now(), id)
	if err != nil {
		return model.User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.User{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func insertSubTeams(ctx context.Context, q querier, userID string, teams []model.SubTeam) error {
	for _, t := range teams {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		// client-generated ids are not trusted
		_, err := q.ExecContext(ctx,
			"INSERT INTO sub_teams (id,user_id,name,category,logo_url) VALUES (?,?,?,?,?)",
			uuid.NewString(), userID, name, strings.TrimSpace(t.Category), t.LogoURL)
		if err != nil {
			return fmt.Errorf("insert sub team: %w", err)
		}
	}
	return nil
}

func listSubTeams(ctx context.Context, q querier, userID string) ([]model.SubTeam, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id,user_id,name,category,COALESCE(logo_url,'') FROM sub_teams WHERE user_id=? ORDER BY name", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	teams := []model.SubTeam{}
	for rows.Next() {
		var t model.SubTeam
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Category, &t.LogoURL); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jogofacil/field-booking/internal/model"
)

// SlotRepo provides access to match_slots.  Lifecycle changes are single
// conditional UPDATEs so two captains racing for the same slot cannot both
// win: the loser sees ErrConflict.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a SlotRepo bound to db.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// SlotFilter narrows List.  Empty fields are ignored.
type SlotFilter struct {
	FieldID  string
	Status   string
	BookedBy string
	FromDate string // YYYY-MM-DD, inclusive
}

// SlotUpdate lists the schedule fields an owner may edit while a slot is
// still available.  Nil pointers leave the column untouched.
type SlotUpdate struct {
	Date              *string
	Time              *string
	MatchType         *string
	HasLocalTeam      *bool
	LocalTeamName     *string
	AllowedCategories *[]string
	Price             *float64
}

const slotCols = `id,field_id,slot_date,slot_time,is_booked,match_type,has_local_team,local_team_name,allowed_categories,
	booked_by_team_name,booked_by_user_id,booked_by_phone,booked_by_category,opponent_team_name,opponent_team_phone,
	status,price,receipt_json,created_at,updated_at`

func scanSlot(s rowScanner) (model.MatchSlot, error) {
	var (
		sl      model.MatchSlot
		cats    string
		receipt sql.NullString
	)
	err := s.Scan(&sl.ID, &sl.FieldID, &sl.Date, &sl.Time, &sl.IsBooked, &sl.MatchType, &sl.HasLocalTeam,
		&sl.LocalTeamName, &cats, &sl.BookedByTeamName, &sl.BookedByUserID, &sl.BookedByPhone,
		&sl.BookedByCategory, &sl.OpponentTeamName, &sl.OpponentTeamPhone, &sl.Status, &sl.Price,
		&receipt, &sl.CreatedAt, &sl.UpdatedAt)
	if err != nil {
		return sl, err
	}
	sl.AllowedCategories = []string{}
	if cats != "" {
		if err := json.Unmarshal([]byte(cats), &sl.AllowedCategories); err != nil {
			return sl, fmt.Errorf("decode allowed_categories of slot %s: %w", sl.ID, err)
		}
	}
	if receipt.Valid && receipt.String != "" {
		var vr model.VerificationResult
		if err := json.Unmarshal([]byte(receipt.String), &vr); err == nil {
			sl.Receipt = &vr
		}
	}
	return sl, nil
}

func encodeCategories(cats []string) (string, error) {
	if cats == nil {
		cats = []string{}
	}
	b, err := json.Marshal(cats)
	return string(b), err
}

// List returns slots ordered by date and time.
func (r *SlotRepo) List(ctx context.Context, f SlotFilter) ([]model.MatchSlot, error) {
	where := []string{}
	args := []any{}
	if f.FieldID != "" {
		where = append(where, "field_id=?")
		args = append(args, f.FieldID)
	}
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, f.Status)
	}
	if f.BookedBy != "" {
		where = append(where, "booked_by_user_id=?")
		args = append(args, f.BookedBy)
	}
	if f.FromDate != "" {
		where = append(where, "slot_date>=?")
		args = append(args, f.FromDate)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}
	rows, err := r.db.QueryContext(ctx, "SELECT "+slotCols+" FROM match_slots WHERE "+cond+" ORDER BY slot_date, slot_time, id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.MatchSlot{}
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

// GetByID returns ErrNotFound when the slot does not exist.
func (r *SlotRepo) GetByID(ctx context.Context, id string) (model.MatchSlot, error) {
	sl, err := scanSlot(r.db.QueryRowContext(ctx, "SELECT "+slotCols+" FROM match_slots WHERE id=?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return sl, ErrNotFound
	}
	return sl, err
}

// CreateMany inserts all slots in one transaction, assigning ids and
// timestamps.  New slots always start available and unbooked.
func (r *SlotRepo) CreateMany(ctx context.Context, slots []model.MatchSlot) ([]model.MatchSlot, error) {
	if len(slots) == 0 {
		return []model.MatchSlot{}, nil
	}
	ts := now()
	out := make([]model.MatchSlot, 0, len(slots))
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, sl := range slots {
			sl.ID = uuid.NewString()
			sl.Status = model.SlotAvailable
			sl.IsBooked = false
			sl.CreatedAt, sl.UpdatedAt = ts, ts
			cats, err := encodeCategories(sl.AllowedCategories)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO match_slots (id,field_id,slot_date,slot_time,is_booked,match_type,has_local_team,local_team_name,
				 allowed_categories,status,price,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
				sl.ID, sl.FieldID, sl.Date, sl.Time, false, sl.MatchType, sl.HasLocalTeam, sl.LocalTeamName,
				cats, sl.Status, sl.Price, ts, ts)
			if err != nil {
				return fmt.Errorf("insert slot: %w", err)
			}
			out = append(out, sl)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateSchedule edits an available slot.  Booked slots yield ErrConflict.
func (r *SlotRepo) UpdateSchedule(ctx context.Context, id string, upd SlotUpdate) (model.MatchSlot, error) {
	sets := []string{"updated_at=?"}
	args := []any{now()}
	if upd.Date != nil {
		sets = append(sets, "slot_date=?")
		args = append(args, *upd.Date)
	}
	if upd.Time != nil {
		sets = append(sets, "slot_time=?")
		args = append(args, *upd.Time)
	}
	if upd.MatchType != nil {
		sets = append(sets, "match_type=?")
		args = append(args, *upd.MatchType)
	}
	if upd.HasLocalTeam != nil {
		sets = append(sets, "has_local_team=?")
		args = append(args, *upd.HasLocalTeam)
	}
	if upd.LocalTeamName != nil {
		sets = append(sets, "local_team_name=?")
		args = append(args, *upd.LocalTeamName)
	}
	if upd.AllowedCategories != nil {
		cats, err := encodeCategories(*upd.AllowedCategories)
		if err != nil {
			return model.MatchSlot{}, err
		}
		sets = append(sets, "allowed_categories=?")
		args = append(args, cats)
	}
	if upd.Price != nil {
		sets = append(sets, "price=?")
		args = append(args, *upd.Price)
	}
	q := "UPDATE match_slots SET " + strings.Join(sets, ",") + " WHERE id=? AND status=?"
	args = append(args, id, model.SlotAvailable)
	return r.transition(ctx, id, q, args)
}

// Delete removes an available slot.  Booked slots yield ErrConflict.
func (r *SlotRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM match_slots WHERE id=? AND status=?", id, model.SlotAvailable)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

// RequestBooking moves an available slot to pending_verification and records
// the booker.
func (r *SlotRepo) RequestBooking(ctx context.Context, id string, b model.Booking) (model.MatchSlot, error) {
	q := `UPDATE match_slots SET is_booked=?, status=?, booked_by_user_id=?, booked_by_phone=?, booked_by_team_name=?,
		booked_by_category=?, opponent_team_name=?, opponent_team_phone=?, receipt_json=NULL, updated_at=?
		WHERE id=? AND status=?`
	args := []any{true, model.SlotPendingVerification, b.UserID, b.Phone, b.TeamName, b.Category,
		b.OpponentTeamName, b.OpponentTeamPhone, now(), id, model.SlotAvailable}
	return r.transition(ctx, id, q, args)
}

// Confirm moves a pending slot to confirmed.
func (r *SlotRepo) Confirm(ctx context.Context, id string) (model.MatchSlot, error) {
	q := "UPDATE match_slots SET status=?, updated_at=? WHERE id=? AND status=?"
	args := []any{model.SlotConfirmed, now(), id, model.SlotPendingVerification}
	return r.transition(ctx, id, q, args)
}

// Release puts a booked slot back to available and clears every booker
// column.  from lists the statuses the slot may currently be in.
func (r *SlotRepo) Release(ctx context.Context, id string, from ...string) (model.MatchSlot, error) {
	return r.release(ctx, id, "", from)
}

// ReleaseFor is Release restricted to the captain who holds the booking, so
// a stale cancel cannot free a slot someone else booked meanwhile.
func (r *SlotRepo) ReleaseFor(ctx context.Context, id, userID string) (model.MatchSlot, error) {
	return r.release(ctx, id, userID, nil)
}

func (r *SlotRepo) release(ctx context.Context, id, userID string, from []string) (model.MatchSlot, error) {
	if len(from) == 0 {
		from = []string{model.SlotPendingVerification, model.SlotConfirmed}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	q := `UPDATE match_slots SET is_booked=?, status=?, booked_by_user_id='', booked_by_phone='', booked_by_team_name='',
		booked_by_category='', opponent_team_name='', opponent_team_phone='', receipt_json=NULL, updated_at=?
		WHERE id=? AND status IN (` + placeholders + `)`
	args := []any{false, model.SlotAvailable, now(), id}
	for _, s := range from {
		args = append(args, s)
	}
	if userID != "" {
		q += " AND booked_by_user_id=?"
		args = append(args, userID)
	}
	return r.transition(ctx, id, q, args)
}

// SaveReceipt stores the verification outcome on a pending slot.
func (r *SlotRepo) SaveReceipt(ctx context.Context, id string, vr model.VerificationResult) (model.MatchSlot, error) {
	b, err := json.Marshal(vr)
	if err != nil {
		return model.MatchSlot{}, err
	}
	q := "UPDATE match_slots SET receipt_json=?, updated_at=? WHERE id=? AND status=?"
	args := []any{string(b), now(), id, model.SlotPendingVerification}
	return r.transition(ctx, id, q, args)
}

// transition executes a conditional UPDATE.  When no row matched it tells
// a missing slot (ErrNotFound) from one in the wrong state (ErrConflict).
func (r *SlotRepo) transition(ctx context.Context, id, q string, args []any) (model.MatchSlot, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return model.MatchSlot{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.MatchSlot{}, err
	}
	sl, err := r.GetByID(ctx, id)
	if err != nil {
		return model.MatchSlot{}, err
	}
	if n == 0 {
		return model.MatchSlot{}, ErrConflict
	}
	return sl, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jogofacil/field-booking/internal/model"
)

// FieldRepo provides access to the fields table.  PIX data is stored flat
// (pix_key, pix_name) and mapped onto model.PixConfig here.
type FieldRepo struct {
	db *sql.DB
}

// NewFieldRepo returns a FieldRepo bound to db.
func NewFieldRepo(db *sql.DB) *FieldRepo { return &FieldRepo{db: db} }

const fieldCols = "id,owner_id,name,location,hourly_rate,cancellation_fee_percent,pix_key,pix_name,COALESCE(image_url,''),contact_phone,latitude,longitude"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanField(s rowScanner) (model.Field, error) {
	var f model.Field
	err := s.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Location, &f.HourlyRate, &f.CancellationFeePercent,
		&f.PixConfig.Key, &f.PixConfig.Name, &f.ImageURL, &f.ContactPhone, &f.Latitude, &f.Longitude)
	return f, err
}

func insertField(ctx context.Context, q querier, f *model.Field) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.ImageURL == "" {
		f.ImageURL = model.DefaultFieldImage
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO fields (id,owner_id,name,location,hourly_rate,cancellation_fee_percent,pix_key,pix_name,image_url,contact_phone,latitude,longitude)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		f.ID, f.OwnerID, f.Name, f.Location, f.HourlyRate, f.CancellationFeePercent,
		f.PixConfig.Key, f.PixConfig.Name, f.ImageURL, f.ContactPhone, f.Latitude, f.Longitude)
	if err != nil {
		return fmt.Errorf("insert field: %w", err)
	}
	return nil
}

// List returns every field ordered by name.
func (r *FieldRepo) List(ctx context.Context) ([]model.Field, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+fieldCols+" FROM fields ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Field{}
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetByID returns ErrNotFound when no field has the id.
func (r *FieldRepo) GetByID(ctx context.Context, id string) (model.Field, error) {
	f, err := scanField(r.db.QueryRowContext(ctx, "SELECT "+fieldCols+" FROM fields WHERE id=?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrNotFound
	}
	return f, err
}

// GetByOwner returns the owner's field.  Owners register exactly one.
func (r *FieldRepo) GetByOwner(ctx context.Context, ownerID string) (model.Field, error) {
	f, err := scanField(r.db.QueryRowContext(ctx,
		"SELECT "+fieldCols+" FROM fields WHERE owner_id=? ORDER BY name LIMIT 1", ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrNotFound
	}
	return f, err
}

// Update rewrites the editable columns of f.  Ownership is matched in the
// WHERE clause; a mismatch yields ErrForbidden.
func (r *FieldRepo) Update(ctx context.Context, f model.Field) (model.Field, error) {
	current, err := r.GetByID(ctx, f.ID)
	if err != nil {
		return model.Field{}, err
	}
	if current.OwnerID != f.OwnerID {
		return model.Field{}, ErrForbidden
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE fields SET name=?,location=?,hourly_rate=?,cancellation_fee_percent=?,pix_key=?,pix_name=?,image_url=?,contact_phone=?,latitude=?,longitude=?
		 WHERE id=? AND owner_id=?`,
		f.Name, f.Location, f.HourlyRate, f.CancellationFeePercent, f.PixConfig.Key, f.PixConfig.Name,
		f.ImageURL, f.ContactPhone, f.Latitude, f.Longitude, f.ID, f.OwnerID)
	if err != nil {
		return model.Field{}, fmt.Errorf("update field: %w", err)
	}
	return r.GetByID(ctx, f.ID)
}

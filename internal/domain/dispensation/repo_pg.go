package dispensation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medstock/medstock/internal/domain/shared"
	"github.com/medstock/medstock/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const dispCols = `id, medicine_id, medicine_name, batch_number, quantity,
	patient_name, patient_document, dispenser_name, location_id, created_at`

func (r *repoPG) scan(row pgx.Row) (*Dispensation, error) {
	var d Dispensation
	err := row.Scan(&d.ID, &d.MedicineID, &d.MedicineName, &d.BatchNumber, &d.Quantity,
		&d.PatientName, &d.PatientDocument, &d.DispenserName, &d.LocationID, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("dispensation: %w", shared.ErrNotFound)
	}
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, d *Dispensation) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dispensation (id, medicine_id, medicine_name, batch_number, quantity,
			patient_name, patient_document, dispenser_name, location_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		d.ID, d.MedicineID, d.MedicineName, d.BatchNumber, d.Quantity,
		d.PatientName, d.PatientDocument, d.DispenserName, d.LocationID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Dispensation, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+dispCols+` FROM dispensation WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, locationID uuid.UUID, limit, offset int) ([]*Dispensation, int, error) {
	where := ``
	args := []interface{}{}
	if locationID != uuid.Nil {
		args = append(args, locationID)
		where = ` WHERE location_id = $1`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM dispensation`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+dispCols+` FROM dispensation`+where+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Dispensation
	for rows.Next() {
		d, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, nil
}

package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

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

// =========== Medication Repository ===========

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

const medCols = `id, name, category, batch_number, expiration, manufacturer,
	quantity, min_quantity, unit, location_id, status, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.Name, &m.Category, &m.BatchNumber, &m.Expiration, &m.Manufacturer,
		&m.Quantity, &m.MinQuantity, &m.Unit, &m.LocationID, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("medication: %w", shared.ErrNotFound)
	}
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medication (id, name, category, batch_number, expiration, manufacturer,
			quantity, min_quantity, unit, location_id, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		m.ID, m.Name, m.Category, m.BatchNumber, m.Expiration, m.Manufacturer,
		m.Quantity, m.MinQuantity, m.Unit, m.LocationID, m.Status)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+medCols+` FROM medication WHERE id = $1`, id))
}

func (r *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+medCols+` FROM medication WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) FindByName(ctx context.Context, name string) (*Medication, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `
		SELECT `+medCols+` FROM medication WHERE LOWER(name) = LOWER($1) ORDER BY expiration LIMIT 1`, name))
}

func (r *repoPG) Update(ctx context.Context, m *Medication) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication SET name=$2, category=$3, batch_number=$4, expiration=$5,
			manufacturer=$6, quantity=$7, min_quantity=$8, unit=$9, location_id=$10,
			status=$11, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.Category, m.BatchNumber, m.Expiration,
		m.Manufacturer, m.Quantity, m.MinQuantity, m.Unit, m.LocationID,
		m.Status)
	return err
}

func (r *repoPG) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication SET quantity=$2, status=$3, updated_at=NOW() WHERE id = $1`,
		id, quantity, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("medication %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Medication, int, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		n := fmt.Sprintf("$%d", len(args))
		where += ` AND (name ILIKE ` + n + ` OR category ILIKE ` + n + ` OR batch_number ILIKE ` + n + `)`
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.LocationID != uuid.Nil {
		args = append(args, f.LocationID)
		where += fmt.Sprintf(` AND location_id = $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medication `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+medCols+` FROM medication `+where+
			fmt.Sprintf(` ORDER BY name, expiration LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Medication
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, nil
}

func (r *repoPG) ListLowStock(ctx context.Context, locationID uuid.UUID) ([]*Medication, error) {
	where := `WHERE quantity <= min_quantity`
	args := []interface{}{}
	if locationID != uuid.Nil {
		args = append(args, locationID)
		where += ` AND location_id = $1`
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+medCols+` FROM medication `+where+` ORDER BY quantity`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Medication
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, nil
}

func (r *repoPG) ListExpiringBefore(ctx context.Context, boundary time.Time, locationID uuid.UUID) ([]*Medication, error) {
	where := `WHERE expiration <= $1`
	args := []interface{}{boundary}
	if locationID != uuid.Nil {
		args = append(args, locationID)
		where += ` AND location_id = $2`
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+medCols+` FROM medication `+where+` ORDER BY expiration`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Medication
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, nil
}

// =========== Movement Repository ===========

type movementRepoPG struct{ pool *pgxpool.Pool }

func NewMovementRepoPG(pool *pgxpool.Pool) MovementRepository {
	return &movementRepoPG{pool: pool}
}

func (r *movementRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *movementRepoPG) Create(ctx context.Context, mv *Movement) error {
	mv.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO stock_movement (id, medication_id, delta, reason, actor_name)
		VALUES ($1,$2,$3,$4,$5)`,
		mv.ID, mv.MedicationID, mv.Delta, mv.Reason, mv.ActorName)
	return err
}

func (r *movementRepoPG) ListByMedication(ctx context.Context, medicationID uuid.UUID, limit, offset int) ([]*Movement, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM stock_movement WHERE medication_id = $1`, medicationID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, medication_id, delta, reason, actor_name, created_at
		FROM stock_movement WHERE medication_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, medicationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Movement
	for rows.Next() {
		var mv Movement
		if err := rows.Scan(&mv.ID, &mv.MedicationID, &mv.Delta, &mv.Reason, &mv.ActorName, &mv.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &mv)
	}
	return items, total, nil
}

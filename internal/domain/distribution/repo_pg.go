package distribution

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

// =========== Distribution Repository ===========

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

const distCols = `id, medicine_id, medicine_name, batch_number, quantity,
	source_location, destination_location, requester_name, approver_name,
	location_id, status, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Distribution, error) {
	var d Distribution
	err := row.Scan(&d.ID, &d.MedicineID, &d.MedicineName, &d.BatchNumber, &d.Quantity,
		&d.SourceLocation, &d.DestinationLocation, &d.RequesterName, &d.ApproverName,
		&d.LocationID, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("distribution: %w", shared.ErrNotFound)
	}
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, d *Distribution) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO distribution (id, medicine_id, medicine_name, batch_number, quantity,
			source_location, destination_location, requester_name, approver_name,
			location_id, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.ID, d.MedicineID, d.MedicineName, d.BatchNumber, d.Quantity,
		d.SourceLocation, d.DestinationLocation, d.RequesterName, d.ApproverName,
		d.LocationID, d.Status)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Distribution, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+distCols+` FROM distribution WHERE id = $1`, id))
}

func (r *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Distribution, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+distCols+` FROM distribution WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, d *Distribution) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE distribution SET status=$2, approver_name=$3, updated_at=NOW() WHERE id = $1`,
		d.ID, d.Status, d.ApproverName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("distribution %s: %w", d.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Distribution, int, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		n := fmt.Sprintf("$%d", len(args))
		where += ` AND (medicine_name ILIKE ` + n + ` OR destination_location ILIKE ` + n + ` OR batch_number ILIKE ` + n + `)`
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
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM distribution `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+distCols+` FROM distribution `+where+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Distribution
	for rows.Next() {
		d, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, nil
}

// =========== Request Repository ===========

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewRequestRepoPG(pool *pgxpool.Pool) RequestRepository {
	return &requestRepoPG{pool: pool}
}

func (r *requestRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const reqCols = `id, medicine_id, medicine_name, quantity, unit, urgency,
	justification, requester_name, unit_id, unit_name, status, created_at`

func (r *requestRepoPG) scan(row pgx.Row) (*Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.MedicineID, &req.MedicineName, &req.Quantity, &req.Unit, &req.Urgency,
		&req.Justification, &req.RequesterName, &req.UnitID, &req.UnitName, &req.Status, &req.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("medication request: %w", shared.ErrNotFound)
	}
	return &req, err
}

func (r *requestRepoPG) Create(ctx context.Context, req *Request) error {
	req.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO distribution_request (id, medicine_id, medicine_name, quantity, unit, urgency,
			justification, requester_name, unit_id, unit_name, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		req.ID, req.MedicineID, req.MedicineName, req.Quantity, req.Unit, req.Urgency,
		req.Justification, req.RequesterName, req.UnitID, req.UnitName, req.Status)
	return err
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+reqCols+` FROM distribution_request WHERE id = $1`, id))
}

func (r *requestRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Request, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+reqCols+` FROM distribution_request WHERE id = $1 FOR UPDATE`, id))
}

func (r *requestRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM distribution_request WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("medication request %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *requestRepoPG) List(ctx context.Context, unitID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	where := ``
	args := []interface{}{}
	if unitID != uuid.Nil {
		args = append(args, unitID)
		where = ` WHERE unit_id = $1`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM distribution_request`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+reqCols+` FROM distribution_request`+where+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Request
	for rows.Next() {
		req, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, req)
	}
	return items, total, nil
}

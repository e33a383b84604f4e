package unit

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

const unitCols = `id, name, code, address, city, phone, active, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*HealthUnit, error) {
	var u HealthUnit
	err := row.Scan(&u.ID, &u.Name, &u.Code, &u.Address, &u.City, &u.Phone, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("health unit: %w", shared.ErrNotFound)
	}
	return &u, err
}

func (r *repoPG) Create(ctx context.Context, u *HealthUnit) error {
	u.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO health_unit (id, name, code, address, city, phone, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Name, u.Code, u.Address, u.City, u.Phone, u.Active)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*HealthUnit, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+unitCols+` FROM health_unit WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, u *HealthUnit) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE health_unit SET name=$2, code=$3, address=$4, city=$5, phone=$6, active=$7, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.Name, u.Code, u.Address, u.City, u.Phone, u.Active)
	return err
}

func (r *repoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*HealthUnit, int, error) {
	where := ``
	if activeOnly {
		where = ` WHERE active`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM health_unit`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+unitCols+` FROM health_unit`+where+` ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*HealthUnit
	for rows.Next() {
		u, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, nil
}

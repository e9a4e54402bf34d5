package staff

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardsys/ward/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) Create(ctx context.Context, a *Account) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO staff_account (login, password_hash, doctor_id, display_name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		a.Login, a.PasswordHash, a.DoctorID, a.DisplayName, a.Role,
	).Scan(&a.ID, &a.CreatedAt)
	return db.MapError("create staff account", err, nil)
}

func (r *repoPG) GetByLogin(ctx context.Context, login string) (*Account, error) {
	var a Account
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, login, password_hash, doctor_id, display_name, role, created_at
		FROM staff_account WHERE login = $1`, login,
	).Scan(&a.ID, &a.Login, &a.PasswordHash, &a.DoctorID, &a.DisplayName, &a.Role, &a.CreatedAt)
	if err != nil {
		return nil, db.MapError("get staff account", err, ErrNotFound)
	}
	return &a, nil
}

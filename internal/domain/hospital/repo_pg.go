package hospital

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardsys/ward/internal/platform/apperr"
	"github.com/wardsys/ward/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name, head_doctor_id FROM department ORDER BY id`)
	if err != nil {
		return nil, db.MapError("list departments", err, nil)
	}
	defer rows.Close()

	var items []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.HeadDoctorID); err != nil {
			return nil, db.MapError("scan department", err, nil)
		}
		items = append(items, d)
	}
	return items, db.MapError("list departments", rows.Err(), nil)
}

func (r *repoPG) GetDepartment(ctx context.Context, id int64) (*Department, error) {
	var d Department
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, head_doctor_id FROM department WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.HeadDoctorID)
	if err != nil {
		return nil, db.MapError("get department", err, ErrDepartmentNotFound)
	}
	return &d, nil
}

func (r *repoPG) DepartmentReport(ctx context.Context, id int64) (*DepartmentReport, error) {
	var rep DepartmentReport
	var head *string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT dep.id, dep.name, h.name,
			COALESCE(SUM(c.capacity), 0), COALESCE(SUM(c.occupied), 0)
		FROM department dep
		LEFT JOIN doctor h ON h.id = dep.head_doctor_id
		LEFT JOIN chamber c ON c.department_id = dep.id
		WHERE dep.id = $1
		GROUP BY dep.id, dep.name, h.name`, id,
	).Scan(&rep.DepartmentID, &rep.Name, &head, &rep.TotalCapacity, &rep.Occupied)
	if err != nil {
		return nil, db.MapError("department report", err, ErrDepartmentNotFound)
	}
	rep.HeadDoctor = NotAvailable
	if head != nil && *head != "" {
		rep.HeadDoctor = *head
	}
	rep.Free = rep.TotalCapacity - rep.Occupied
	return &rep, nil
}

func (r *repoPG) queryDoctors(ctx context.Context, op, sql string, args ...interface{}) ([]Doctor, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, db.MapError(op, err, nil)
	}
	defer rows.Close()

	var items []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.DepartmentID, &d.Load); err != nil {
			return nil, db.MapError(op, err, nil)
		}
		items = append(items, d)
	}
	return items, db.MapError(op, rows.Err(), nil)
}

func (r *repoPG) ListDoctors(ctx context.Context, departmentID int64) ([]Doctor, error) {
	if departmentID == 0 {
		return r.queryDoctors(ctx, "list doctors",
			`SELECT id, name, department_id, load FROM doctor ORDER BY department_id, load, id`)
	}
	return r.queryDoctors(ctx, "list doctors",
		`SELECT id, name, department_id, load FROM doctor WHERE department_id = $1 ORDER BY load, id`, departmentID)
}

func (r *repoPG) LockDoctors(ctx context.Context, departmentID int64) ([]Doctor, error) {
	return r.queryDoctors(ctx, "lock doctors", `
		SELECT id, name, department_id, load FROM doctor
		WHERE department_id = $1
		ORDER BY id
		FOR UPDATE`, departmentID)
}

func (r *repoPG) queryChambers(ctx context.Context, op, sql string, args ...interface{}) ([]Chamber, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, db.MapError(op, err, nil)
	}
	defer rows.Close()

	var items []Chamber
	for rows.Next() {
		var c Chamber
		if err := rows.Scan(&c.ID, &c.DepartmentID, &c.Capacity, &c.Occupied); err != nil {
			return nil, db.MapError(op, err, nil)
		}
		items = append(items, c)
	}
	return items, db.MapError(op, rows.Err(), nil)
}

func (r *repoPG) LockChambers(ctx context.Context, departmentID int64) ([]Chamber, error) {
	return r.queryChambers(ctx, "lock chambers", `
		SELECT id, department_id, capacity, occupied FROM chamber
		WHERE department_id = $1
		ORDER BY id
		FOR UPDATE`, departmentID)
}

func (r *repoPG) MostFreeChamber(ctx context.Context) (*Chamber, error) {
	var c Chamber
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, department_id, capacity, occupied FROM chamber
		WHERE occupied < capacity
		ORDER BY capacity - occupied DESC, id
		LIMIT 1`,
	).Scan(&c.ID, &c.DepartmentID, &c.Capacity, &c.Occupied)
	if err != nil {
		return nil, db.MapError("most free chamber", err, ErrNoCapacity)
	}
	return &c, nil
}

func (r *repoPG) IncrementLoad(ctx context.Context, doctorID int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE doctor SET load = load + 1 WHERE id = $1`, doctorID)
	if err != nil {
		return db.MapError("increment doctor load", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("doctor %d", doctorID)
	}
	return nil
}

func (r *repoPG) IncrementOccupied(ctx context.Context, chamberID int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE chamber SET occupied = occupied + 1 WHERE id = $1 AND occupied < capacity`, chamberID)
	if err != nil {
		return db.MapError("increment chamber occupancy", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chamber %d: %w", chamberID, ErrNoCapacity)
	}
	return nil
}

func (r *repoPG) DecrementLoad(ctx context.Context, doctorID int64) (bool, error) {
	return r.decrement(ctx, "release doctor",
		`UPDATE doctor SET load = load - 1 WHERE id = $1 AND load > 0`, doctorID)
}

func (r *repoPG) DecrementOccupied(ctx context.Context, chamberID int64) (bool, error) {
	return r.decrement(ctx, "release chamber",
		`UPDATE chamber SET occupied = occupied - 1 WHERE id = $1 AND occupied > 0`, chamberID)
}

func (r *repoPG) decrement(ctx context.Context, op, sql string, id int64) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, sql, id)
	if err != nil {
		return false, db.MapError(op, err, nil)
	}
	return tag.RowsAffected() == 1, nil
}

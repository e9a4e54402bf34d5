package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardsys/ward/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `a.id, a.doctor_id, a.patient_id, a.scheduled_at, a.about, a.status, a.created_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.ScheduledAt, &a.About, &a.Status, &a.CreatedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (doctor_id, patient_id, scheduled_at, about, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		a.DoctorID, a.PatientID, a.ScheduledAt, a.About, a.Status,
	).Scan(&a.ID, &a.CreatedAt)
	return db.MapError("create appointment", err, nil)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment a WHERE a.id = $1`, id))
	if err != nil {
		return nil, db.MapError("get appointment", err, ErrNotFound)
	}
	return a, nil
}

func (r *repoPG) GetForUpdate(ctx context.Context, id int64) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment a WHERE a.id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, db.MapError("lock appointment", err, ErrNotFound)
	}
	return a, nil
}

func (r *repoPG) SetStatus(ctx context.Context, id int64, s Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE appointment SET status = $2 WHERE id = $1`, id, s)
	if err != nil {
		return db.MapError("set appointment status", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Reschedule(ctx context.Context, id int64, about string, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointment SET about = $2, scheduled_at = $3 WHERE id = $1`, id, about, at)
	if err != nil {
		return db.MapError("reschedule appointment", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List left-joins patient and doctor so rows whose references no longer
// resolve are still returned, with nil names.
func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Row, error) {
	var where string
	var arg interface{}
	switch f.By {
	case ByDoctor:
		where, arg = "a.doctor_id = $1", f.ID
	case ByPatient:
		where, arg = "a.patient_id = $1", f.ID
	case ByStatus:
		where, arg = "a.status = $1", f.Status
	default:
		return nil, fmt.Errorf("unsupported filter %q", f.By)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+`, p.first_name, p.second_name, d.name
		FROM appointment a
		LEFT JOIN patient p ON p.id = a.patient_id
		LEFT JOIN doctor d ON d.id = a.doctor_id
		WHERE `+where+`
		ORDER BY a.scheduled_at NULLS LAST, a.id
		LIMIT $2 OFFSET $3`, arg, limit, offset)
	if err != nil {
		return nil, db.MapError("list appointments", err, nil)
	}
	defer rows.Close()

	var items []*Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.DoctorID, &row.PatientID, &row.ScheduledAt, &row.About,
			&row.Status, &row.CreatedAt, &row.PatientFirstName, &row.PatientSecondName, &row.DoctorName); err != nil {
			return nil, db.MapError("scan appointment", err, nil)
		}
		items = append(items, &row)
	}
	return items, db.MapError("list appointments", rows.Err(), nil)
}

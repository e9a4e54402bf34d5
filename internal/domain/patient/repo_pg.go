package patient

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

const patientCols = `p.id, p.passport, p.first_name, p.second_name, p.date_birth, p.city,
	p.intake_date, p.income_diagnosis, p.outcome_diagnosis, p.discharge_date,
	p.doctor_id, p.chamber_id`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Passport, &p.FirstName, &p.SecondName, &p.DateBirth, &p.City,
		&p.IntakeDate, &p.IncomeDiagnosis, &p.OutcomeDiagnosis, &p.DischargeDate,
		&p.DoctorID, &p.ChamberID)
	return &p, err
}

func scanRow(row pgx.Row) (*Row, error) {
	var r Row
	err := row.Scan(&r.ID, &r.Passport, &r.FirstName, &r.SecondName, &r.DateBirth, &r.City,
		&r.IntakeDate, &r.IncomeDiagnosis, &r.OutcomeDiagnosis, &r.DischargeDate,
		&r.DoctorID, &r.ChamberID, &r.DoctorName)
	return &r, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (passport, first_name, second_name, date_birth, city,
			intake_date, income_diagnosis)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		p.Passport, p.FirstName, p.SecondName, p.DateBirth, p.City,
		p.IntakeDate, p.IncomeDiagnosis,
	).Scan(&p.ID)
	return db.MapError("create patient", err, nil)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient p WHERE p.id = $1`, id))
	if err != nil {
		return nil, db.MapError("get patient", err, ErrNotFound)
	}
	return p, nil
}

func (r *repoPG) GetForUpdate(ctx context.Context, id int64) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient p WHERE p.id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, db.MapError("lock patient", err, ErrNotFound)
	}
	return p, nil
}

func (r *repoPG) FindRow(ctx context.Context, id int64) (*Row, error) {
	row, err := scanRow(r.conn(ctx).QueryRow(ctx, `
		SELECT `+patientCols+`, d.name
		FROM patient p LEFT JOIN doctor d ON d.id = p.doctor_id
		WHERE p.id = $1`, id))
	if err != nil {
		return nil, db.MapError("find patient", err, ErrNotFound)
	}
	return row, nil
}

func (r *repoPG) exec(ctx context.Context, op, sql string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return db.MapError(op, err, nil)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) SetAssignment(ctx context.Context, id, doctorID, chamberID int64) error {
	return r.exec(ctx, "assign patient",
		`UPDATE patient SET doctor_id = $2, chamber_id = $3 WHERE id = $1`, id, doctorID, chamberID)
}

func (r *repoPG) SetOutcome(ctx context.Context, id int64, diagnosis string) error {
	return r.exec(ctx, "set outcome",
		`UPDATE patient SET outcome_diagnosis = $2 WHERE id = $1`, id, diagnosis)
}

func (r *repoPG) Discharge(ctx context.Context, id int64, date time.Time, outcome *string) error {
	return r.exec(ctx, "discharge patient", `
		UPDATE patient
		SET discharge_date = $2, outcome_diagnosis = COALESCE($3, outcome_diagnosis)
		WHERE id = $1`, id, date, outcome)
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Row, error) {
	where := "p.discharge_date IS NULL"
	switch f.State {
	case StateUnassigned:
		where += " AND p.doctor_id IS NULL"
	case StateAssigned:
		where += " AND p.doctor_id IS NOT NULL"
	case StateDischargeable:
		where += " AND p.doctor_id IS NOT NULL AND p.outcome_diagnosis IS NOT NULL"
	default:
		return nil, fmt.Errorf("unsupported patient state %q", f.State)
	}
	args := []interface{}{limit, offset}
	if f.DoctorID != 0 {
		where += " AND p.doctor_id = $3"
		args = append(args, f.DoctorID)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+`, d.name
		FROM patient p LEFT JOIN doctor d ON d.id = p.doctor_id
		WHERE `+where+`
		ORDER BY p.intake_date, p.id
		LIMIT $1 OFFSET $2`, args...)
	if err != nil {
		return nil, db.MapError("list patients", err, nil)
	}
	defer rows.Close()

	var items []*Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, db.MapError("scan patient", err, nil)
		}
		items = append(items, row)
	}
	return items, db.MapError("list patients", rows.Err(), nil)
}

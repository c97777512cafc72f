package appointment

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository serves the patient and doctor registries and stores engine
// state for one clinic.
type PgRepository struct {
	pool     *pgxpool.Pool
	clinicID string
}

func NewPgRepository(pool *pgxpool.Pool, clinicID string) *PgRepository {
	return &PgRepository{pool: pool, clinicID: clinicID}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email, phone *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	p.Phone = phone
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialization *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialization,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialization = specialization
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientName,
		&a.DoctorID,
		&a.DoctorName,
		&a.DoctorSpecialization,
		&a.DateTime,
		&status,
		&a.Reason,
		&a.Notes,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = Status(status)
	return &a, nil
}

// Directory

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialization, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

// State

func (r *PgRepository) LoadState(ctx context.Context) (State, error) {
	st := State{NextID: 1}

	err := r.pool.QueryRow(ctx, `
		SELECT next_id FROM clinic_state WHERE clinic_id = $1
	`, r.clinicID).Scan(&st.NextID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return State{}, errors.Wrap(err, "load next id")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, patient_name, doctor_id, doctor_name, doctor_specialization,
		       date_time, status, reason, notes, created_at
		FROM appointments
		WHERE clinic_id = $1
		ORDER BY id
	`, r.clinicID)
	if err != nil {
		return State{}, errors.Wrap(err, "load appointments")
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return State{}, errors.Wrap(err, "scan appointment")
		}
		st.Appointments = append(st.Appointments, *a)
	}
	if err := rows.Err(); err != nil {
		return State{}, errors.Wrap(err, "load appointments")
	}

	queueRows, err := r.pool.Query(ctx, `
		SELECT appointment_id
		FROM queue_entries
		WHERE clinic_id = $1
		ORDER BY position
	`, r.clinicID)
	if err != nil {
		return State{}, errors.Wrap(err, "load queue")
	}
	st.Queue, err = pgx.CollectRows(queueRows, pgx.RowTo[int64])
	if err != nil {
		return State{}, errors.Wrap(err, "load queue")
	}

	return st, nil
}

// SaveState writes st in one transaction: appointments are upserted, rows no
// longer in st are deleted and the queue is rewritten in order.
func (r *PgRepository) SaveState(ctx context.Context, st State) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin save state")
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, len(st.Appointments))
	batch := &pgx.Batch{}
	for _, a := range st.Appointments {
		ids = append(ids, a.ID)
		batch.Queue(`
			INSERT INTO appointments (clinic_id, id, patient_id, patient_name, doctor_id, doctor_name,
			                          doctor_specialization, date_time, status, reason, notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (clinic_id, id) DO UPDATE
			SET date_time = EXCLUDED.date_time,
			    status = EXCLUDED.status,
			    reason = EXCLUDED.reason,
			    notes = EXCLUDED.notes
		`, r.clinicID, a.ID, a.PatientID, a.PatientName, a.DoctorID, a.DoctorName,
			a.DoctorSpecialization, a.DateTime, string(a.Status), a.Reason, a.Notes, a.CreatedAt)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "upsert appointments")
		}
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM appointments
		WHERE clinic_id = $1 AND NOT (id = ANY($2))
	`, r.clinicID, ids); err != nil {
		return errors.Wrap(err, "delete removed appointments")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM queue_entries WHERE clinic_id = $1`, r.clinicID); err != nil {
		return errors.Wrap(err, "clear queue")
	}

	if len(st.Queue) > 0 {
		rows := make([][]any, 0, len(st.Queue))
		for pos, id := range st.Queue {
			rows = append(rows, []any{r.clinicID, int32(pos), id})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"queue_entries"},
			[]string{"clinic_id", "position", "appointment_id"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return errors.Wrap(err, "write queue")
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO clinic_state (clinic_id, next_id, saved_at)
		VALUES ($1, $2, now())
		ON CONFLICT (clinic_id) DO UPDATE
		SET next_id = EXCLUDED.next_id,
		    saved_at = EXCLUDED.saved_at
	`, r.clinicID, st.NextID); err != nil {
		return errors.Wrap(err, "save next id")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit save state")
	}
	return nil
}

// Events

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (clinic_id, event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, r.clinicID, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return errors.Wrap(err, "insert event log")
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

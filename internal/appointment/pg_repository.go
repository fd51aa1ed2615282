package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dateLayout = "2006-01-02"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&email,
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
	return &p, nil
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	var rawTemplate []byte

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.Specialization,
		&p.ConsultationFee,
		&p.AvailableDays,
		&rawTemplate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	if len(rawTemplate) > 0 {
		if err := json.Unmarshal(rawTemplate, &p.Template); err != nil {
			return nil, fmt.Errorf("decode weekly template: %w", err)
		}
	}
	if p.Template == nil {
		p.Template = WeeklyTemplate{}
	}
	return &p, nil
}

const apptColumns = `id, patient_id, provider_id, date, start_time, end_time, status,
		consultation_type, symptoms, diagnosis, notes, prescription_id,
		meeting_link, meeting_id, is_paid, payment_ref, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProviderID,
		&a.Date,
		&a.TimeSlot.StartTime,
		&a.TimeSlot.EndTime,
		&a.Status,
		&a.ConsultationType,
		&a.Symptoms,
		&a.Diagnosis,
		&a.Notes,
		&a.PrescriptionID,
		&a.MeetingLink,
		&a.MeetingID,
		&a.IsPaid,
		&a.PaymentRef,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, email, created_at, updated_at
		FROM patients
		WHERE user_id = $1
	`, userID)
	return scanPatient(row)
}

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, specialization, consultation_fee, available_days, weekly_template, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (r *PgRepository) GetProviderByUserID(ctx context.Context, userID uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, specialization, consultation_fee, available_days, weekly_template, created_at, updated_at
		FROM providers
		WHERE user_id = $1
	`, userID)
	return scanProvider(row)
}

func (r *PgRepository) ListProviders(ctx context.Context, specialization string, limit, offset int) ([]Provider, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, specialization, consultation_fee, available_days, weekly_template, created_at, updated_at
		FROM providers
		WHERE ($1 = '' OR specialization = $1)
		ORDER BY name ASC
		LIMIT $2 OFFSET $3
	`, specialization, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetAvailability(ctx context.Context, providerID uuid.UUID) (*Availability, error) {
	p, err := r.GetProviderByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return &Availability{
		ProviderID:    p.ID,
		AvailableDays: p.AvailableDays,
		Template:      p.Template,
	}, nil
}

func (r *PgRepository) ReplaceAvailability(ctx context.Context, providerID uuid.UUID, days []string, template WeeklyTemplate) (*Availability, error) {
	rawTemplate, err := json.Marshal(template)
	if err != nil {
		return nil, fmt.Errorf("encode weekly template: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE providers
		SET available_days = $2,
		    weekly_template = $3,
		    updated_at = now()
		WHERE id = $1
	`, providerID, days, rawTemplate)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrProviderNotFound
	}

	return r.GetAvailability(ctx, providerID)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindConflicting(ctx context.Context, providerID uuid.UUID, date time.Time, slot TimeSlot) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND date = $2
		  AND start_time = $3
		  AND end_time = $4
		  AND status IN ('pending', 'confirmed')
	`, providerID, date.Format(dateLayout), slot.StartTime, slot.EndTime)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, provider_id, date, start_time, end_time, status,
			consultation_type, symptoms, notes, meeting_link, meeting_id,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $8, $9, $10, $11, now(), now())
		RETURNING `+apptColumns+`
	`, id, appt.PatientID, appt.ProviderID, appt.Date.Format(dateLayout),
		appt.TimeSlot.StartTime, appt.TimeSlot.EndTime, appt.ConsultationType,
		appt.Symptoms, appt.Notes, appt.MeetingLink, appt.MeetingID)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateBooking
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+apptColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentFields(ctx context.Context, id uuid.UUID, upd AppointmentUpdate) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET symptoms          = COALESCE($2, symptoms),
		    diagnosis         = COALESCE($3, diagnosis),
		    notes             = COALESCE($4, notes),
		    consultation_type = COALESCE($5, consultation_type),
		    prescription_id   = COALESCE($6, prescription_id),
		    is_paid           = COALESCE($7, is_paid),
		    payment_ref       = COALESCE($8, payment_ref),
		    updated_at        = now()
		WHERE id = $1
		RETURNING `+apptColumns+`
	`, id, upd.Symptoms, upd.Diagnosis, upd.Notes, upd.ConsultationType,
		upd.PrescriptionID, upd.IsPaid, upd.PaymentRef)

	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, scope ListScope, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE ($1::uuid IS NULL OR patient_id = $1)
		  AND ($2::uuid IS NULL OR provider_id = $2)
		ORDER BY date DESC, start_time DESC
		LIMIT $3 OFFSET $4
	`, scope.PatientID, scope.ProviderID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListUpcoming(ctx context.Context, scope ListScope, from time.Time, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE ($1::uuid IS NULL OR patient_id = $1)
		  AND ($2::uuid IS NULL OR provider_id = $2)
		  AND date >= $3
		  AND status IN ('pending', 'confirmed')
		ORDER BY date ASC, start_time ASC
		LIMIT $4
	`, scope.PatientID, scope.ProviderID, from.Format(dateLayout), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) FindPastActive(ctx context.Context, before time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE date < $1
		  AND status IN ('pending', 'confirmed')
	`, before.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	var rawMedicines []byte

	err := row.Scan(
		&p.ID,
		&p.AppointmentID,
		&p.PatientID,
		&p.ProviderID,
		&rawMedicines,
		&p.Notes,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, err
	}

	if len(rawMedicines) > 0 {
		if err := json.Unmarshal(rawMedicines, &p.Medicines); err != nil {
			return nil, fmt.Errorf("decode medicines: %w", err)
		}
	}
	return &p, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var rawItems []byte

	err := row.Scan(
		&o.ID,
		&o.PatientID,
		&o.PrescriptionID,
		&rawItems,
		&o.TotalAmount,
		&o.Status,
		&o.PaymentStatus,
		&o.PaymentRef,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if len(rawItems) > 0 {
		if err := json.Unmarshal(rawItems, &o.Items); err != nil {
			return nil, fmt.Errorf("decode order items: %w", err)
		}
	}
	return &o, nil
}

func (r *PgRepository) CreatePrescription(ctx context.Context, p *Prescription) (*Prescription, error) {
	id := uuid.New()

	rawMedicines, err := json.Marshal(p.Medicines)
	if err != nil {
		return nil, fmt.Errorf("encode medicines: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO prescriptions (id, appointment_id, patient_id, provider_id, medicines, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, appointment_id, patient_id, provider_id, medicines, notes, created_at
	`, id, p.AppointmentID, p.PatientID, p.ProviderID, rawMedicines, p.Notes)

	return scanPrescription(row)
}

func (r *PgRepository) GetPrescriptionByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, patient_id, provider_id, medicines, notes, created_at
		FROM prescriptions
		WHERE id = $1
	`, id)
	return scanPrescription(row)
}

func (r *PgRepository) ListPrescriptionsByPatient(ctx context.Context, patientID uuid.UUID) ([]Prescription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, patient_id, provider_id, medicines, notes, created_at
		FROM prescriptions
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateOrder(ctx context.Context, o *Order) (*Order, error) {
	id := uuid.New()

	rawItems, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("encode order items: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO orders (id, patient_id, prescription_id, items, total_amount, status, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'placed', 'pending', now(), now())
		RETURNING id, patient_id, prescription_id, items, total_amount, status, payment_status, payment_ref, created_at, updated_at
	`, id, o.PatientID, o.PrescriptionID, rawItems, o.TotalAmount)

	return scanOrder(row)
}

func (r *PgRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, prescription_id, items, total_amount, status, payment_status, payment_ref, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id)
	return scanOrder(row)
}

func (r *PgRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to OrderStatus) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE orders
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, patient_id, prescription_id, items, total_amount, status, payment_status, payment_ref, created_at, updated_at
	`, id, to, from)

	return scanOrder(row)
}

func (r *PgRepository) MarkOrderPaid(ctx context.Context, id uuid.UUID, status PaymentStatus, paymentRef string) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE orders
		SET payment_status = $2,
		    payment_ref = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, patient_id, prescription_id, items, total_amount, status, payment_status, payment_ref, created_at, updated_at
	`, id, status, paymentRef)

	return scanOrder(row)
}

func (r *PgRepository) ListOrdersByPatient(ctx context.Context, patientID uuid.UUID) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, prescription_id, items, total_amount, status, payment_status, payment_ref, created_at, updated_at
		FROM orders
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	return result, rows.Err()
}

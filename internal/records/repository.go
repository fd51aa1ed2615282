package records

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrOrderNotFound        = errors.New("order not found")
)

// Repository contains the DB interactions for prescriptions and orders.
type Repository interface {
	CreatePrescription(ctx context.Context, p *Prescription) (*Prescription, error)
	GetPrescriptionByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	ListPrescriptionsByPatient(ctx context.Context, patientID uuid.UUID) ([]Prescription, error)

	CreateOrder(ctx context.Context, o *Order) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to OrderStatus) (*Order, error)
	MarkOrderPaid(ctx context.Context, id uuid.UUID, status PaymentStatus, paymentRef string) (*Order, error)
	ListOrdersByPatient(ctx context.Context, patientID uuid.UUID) ([]Order, error)
}

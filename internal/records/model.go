package records

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPlaced     OrderStatus = "placed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

func ParseOrderStatus(raw string) (OrderStatus, bool) {
	switch OrderStatus(raw) {
	case OrderPlaced, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return OrderStatus(raw), true
	}
	return "", false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// MedicineLine is one prescribed medicine.
type MedicineLine struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions,omitempty"`
}

// Prescription is issued against a completed or in-progress appointment and
// carries immutable references back to it.
type Prescription struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	ProviderID    uuid.UUID
	Medicines     []MedicineLine
	Notes         *string
	CreatedAt     time.Time
}

// OrderItem is one line of a medicine order.
type OrderItem struct {
	Medicine string `json:"medicine"`
	Quantity int    `json:"quantity"`
	Price    int    `json:"price"`
}

// Order is a medicine order, optionally tied to a prescription. Payment
// status advances when the gateway confirms capture.
type Order struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	PrescriptionID *uuid.UUID
	Items          []OrderItem
	TotalAmount    int
	Status         OrderStatus
	PaymentStatus  PaymentStatus
	PaymentRef     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

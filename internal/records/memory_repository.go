package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository for tests and local development.
type MemoryRepository struct {
	mu            sync.Mutex
	prescriptions map[uuid.UUID]Prescription
	orders        map[uuid.UUID]Order
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		prescriptions: make(map[uuid.UUID]Prescription),
		orders:        make(map[uuid.UUID]Order),
	}
}

func (m *MemoryRepository) CreatePrescription(ctx context.Context, p *Prescription) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	created := *p
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	m.prescriptions[created.ID] = created

	out := created
	return &out, nil
}

func (m *MemoryRepository) GetPrescriptionByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, ErrPrescriptionNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) ListPrescriptionsByPatient(ctx context.Context, patientID uuid.UUID) ([]Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Prescription
	for _, p := range m.prescriptions {
		if p.PatientID == patientID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryRepository) CreateOrder(ctx context.Context, o *Order) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	created := *o
	created.ID = uuid.New()
	created.Status = OrderPlaced
	created.PaymentStatus = PaymentPending
	created.CreatedAt = now
	created.UpdatedAt = now
	m.orders[created.ID] = created

	out := created
	return &out, nil
}

func (m *MemoryRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

func (m *MemoryRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to OrderStatus) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return nil, ErrOrderNotFound
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	out := o
	return &out, nil
}

func (m *MemoryRepository) MarkOrderPaid(ctx context.Context, id uuid.UUID, status PaymentStatus, paymentRef string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	o.PaymentStatus = status
	o.PaymentRef = &paymentRef
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	out := o
	return &out, nil
}

func (m *MemoryRepository) ListOrdersByPatient(ctx context.Context, patientID uuid.UUID) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Order
	for _, o := range m.orders {
		if o.PatientID == patientID {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

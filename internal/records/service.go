package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mediconnect/telehealth-api/internal/appointment"
)

var (
	ErrInvalidOrderTransition = errors.New("invalid order status transition")
)

var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderPlaced: {
		OrderProcessing: true,
		OrderCancelled:  true,
	},
	OrderProcessing: {
		OrderShipped:   true,
		OrderCancelled: true,
	},
	OrderShipped: {
		OrderDelivered: true,
	},
}

// Service creates prescriptions and orders that hang off the booking ledger.
// It consumes appointments by reference and never mutates their lifecycle.
type Service struct {
	repo    Repository
	booking *appointment.Service
	log     *zap.Logger
}

func NewService(repo Repository, booking *appointment.Service, log *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		booking: booking,
		log:     log,
	}
}

// CreatePrescription issues a prescription against an appointment the acting
// provider owns, and links it back onto the appointment record.
func (s *Service) CreatePrescription(ctx context.Context, actor appointment.Actor, appointmentID uuid.UUID, medicines []MedicineLine, notes *string) (*Prescription, error) {
	if actor.Role != appointment.RoleProvider && actor.Role != appointment.RoleAdmin {
		return nil, appointment.ErrNotAllowed
	}

	// Ownership is enforced by the booking service's view authorization
	appt, err := s.booking.GetAppointment(ctx, actor, appointmentID)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreatePrescription(ctx, &Prescription{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		ProviderID:    appt.ProviderID,
		Medicines:     medicines,
		Notes:         notes,
	})
	if err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}

	if _, err := s.booking.AttachPrescription(ctx, appt.ID, created.ID); err != nil {
		s.log.Warn("prescription created but not linked to appointment",
			zap.String("prescription_id", created.ID.String()),
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err))
	}

	return created, nil
}

// GetPrescription loads a prescription visible to the actor: the patient it
// was issued to, the issuing provider, or an admin.
func (s *Service) GetPrescription(ctx context.Context, actor appointment.Actor, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetPrescriptionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case appointment.RoleAdmin:
		return p, nil
	case appointment.RolePatient:
		patient, err := s.booking.PatientForActor(ctx, actor)
		if err != nil {
			return nil, err
		}
		if patient.ID != p.PatientID {
			return nil, appointment.ErrNotAllowed
		}
		return p, nil
	case appointment.RoleProvider:
		provider, err := s.booking.ProviderForActor(ctx, actor)
		if err != nil {
			return nil, err
		}
		if provider.ID != p.ProviderID {
			return nil, appointment.ErrNotAllowed
		}
		return p, nil
	}
	return nil, appointment.ErrNotAllowed
}

// CreateOrder places a medicine order for the calling patient. When a
// prescription is referenced it must belong to that patient.
func (s *Service) CreateOrder(ctx context.Context, actor appointment.Actor, prescriptionID *uuid.UUID, items []OrderItem, totalAmount int) (*Order, error) {
	patient, err := s.booking.PatientForActor(ctx, actor)
	if err != nil {
		return nil, err
	}

	if prescriptionID != nil {
		p, err := s.repo.GetPrescriptionByID(ctx, *prescriptionID)
		if err != nil {
			return nil, err
		}
		if p.PatientID != patient.ID {
			return nil, appointment.ErrNotAllowed
		}
	}

	created, err := s.repo.CreateOrder(ctx, &Order{
		PatientID:      patient.ID,
		PrescriptionID: prescriptionID,
		Items:          items,
		TotalAmount:    totalAmount,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return created, nil
}

// UpdateOrderStatus advances an order through its lifecycle. Admins drive
// fulfilment; a patient may only cancel their own placed order.
func (s *Service) UpdateOrderStatus(ctx context.Context, actor appointment.Actor, id uuid.UUID, to OrderStatus) (*Order, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case appointment.RoleAdmin:
	case appointment.RolePatient:
		patient, err := s.booking.PatientForActor(ctx, actor)
		if err != nil {
			return nil, err
		}
		if patient.ID != order.PatientID || to != OrderCancelled {
			return nil, appointment.ErrNotAllowed
		}
	default:
		return nil, appointment.ErrNotAllowed
	}

	if !orderTransitions[order.Status][to] {
		return nil, ErrInvalidOrderTransition
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, order.ID, order.Status, to)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrInvalidOrderTransition
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return updated, nil
}

// SettlePayment records the gateway's verdict on an order's payment.
func (s *Service) SettlePayment(ctx context.Context, id uuid.UUID, status PaymentStatus, paymentRef string) (*Order, error) {
	updated, err := s.repo.MarkOrderPaid(ctx, id, status, paymentRef)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListOrders returns the calling patient's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, actor appointment.Actor) ([]Order, error) {
	patient, err := s.booking.PatientForActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.repo.ListOrdersByPatient(ctx, patient.ID)
}

// ListPrescriptions returns the calling patient's prescriptions.
func (s *Service) ListPrescriptions(ctx context.Context, actor appointment.Actor) ([]Prescription, error) {
	patient, err := s.booking.PatientForActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPrescriptionsByPatient(ctx, patient.ID)
}

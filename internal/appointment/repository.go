package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrDuplicateBooking is returned by CreateAppointment when another
	// active appointment already holds the (provider, date, slot) tuple.
	// The Postgres implementation derives it from the partial unique index
	// on active statuses, which makes the insert itself the arbiter of
	// concurrent bookings.
	ErrDuplicateBooking = errors.New("active appointment already exists for this slot")
)

// ListScope narrows a listing to one patient or one provider. Both nil means
// an unscoped (admin) listing.
type ListScope struct {
	PatientID  *uuid.UUID
	ProviderID *uuid.UUID
}

// AppointmentUpdate carries the optional fields of a partial update; nil
// fields are left untouched.
type AppointmentUpdate struct {
	Symptoms         *string
	Diagnosis        *string
	Notes            *string
	ConsultationType *ConsultationType
	PrescriptionID   *uuid.UUID
	IsPaid           *bool
	PaymentRef       *string
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetProviderByUserID(ctx context.Context, userID uuid.UUID) (*Provider, error)

	// Discovery listing; empty specialization means all
	ListProviders(ctx context.Context, specialization string, limit, offset int) ([]Provider, error)

	// Availability template, stored on the provider record
	GetAvailability(ctx context.Context, providerID uuid.UUID) (*Availability, error)
	ReplaceAvailability(ctx context.Context, providerID uuid.UUID, days []string, template WeeklyTemplate) (*Availability, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks: matches only active (pending/confirmed) statuses
	FindConflicting(ctx context.Context, providerID uuid.UUID, date time.Time, slot TimeSlot) (*Appointment, error)

	// Creation and updates
	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	UpdateAppointmentFields(ctx context.Context, id uuid.UUID, upd AppointmentUpdate) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	// Listings
	ListAppointments(ctx context.Context, scope ListScope, limit, offset int) ([]Appointment, error)
	ListUpcoming(ctx context.Context, scope ListScope, from time.Time, limit int) ([]Appointment, error)

	// Missed-appointment worker
	FindPastActive(ctx context.Context, before time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mediconnect/telehealth-api/internal/config"
	redisclient "github.com/mediconnect/telehealth-api/internal/redis"
)

const (
	EventBookingCreated      = "BOOKING_CREATED"
	EventStatusChanged       = "STATUS_CHANGED"
	EventBookingDeleted      = "BOOKING_DELETED"
	EventAvailabilityUpdated = "AVAILABILITY_UPDATED"
)

var (
	ErrDayUnavailable    = errors.New("provider is not available on this weekday")
	ErrSlotNotInTemplate = errors.New("slot does not match an enabled availability window")
	ErrSlotTaken         = errors.New("slot already has an active appointment")
	ErrSlotBeingBooked   = errors.New("slot is currently being booked, please retry")
)

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	meetings MeetingProvider
	cfg      config.Config
	log      *zap.Logger

	// now is swapped in tests to pin the projection anchor
	now func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, meetings MeetingProvider, cfg config.Config, log *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		meetings: meetings,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) today() time.Time {
	return DateOnly(s.now(), s.cfg.Location())
}

// checkSlot runs the four-part booking precondition: provider exists, the
// date's weekday is available, the slot matches an enabled template window,
// and no active appointment holds the tuple. Returns the first failed
// precondition as a sentinel so callers can report exactly what went wrong.
func (s *Service) checkSlot(ctx context.Context, providerID uuid.UUID, date time.Time, slot TimeSlot) error {
	availability, err := s.repo.GetAvailability(ctx, providerID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return err
		}
		return fmt.Errorf("load availability: %w", err)
	}

	weekday := WeekdayName(date)
	if !availability.DayAvailable(weekday) {
		return ErrDayUnavailable
	}
	if !availability.WindowEnabled(weekday, slot) {
		return ErrSlotNotInTemplate
	}

	existing, err := s.repo.FindConflicting(ctx, providerID, date, slot)
	if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return fmt.Errorf("check conflicting appointment: %w", err)
	}
	if existing != nil {
		return ErrSlotTaken
	}

	return nil
}

// CheckAvailability answers the public availability probe. Precondition
// failures, including an unknown provider, read as "not available" rather
// than an error.
func (s *Service) CheckAvailability(ctx context.Context, providerID uuid.UUID, date time.Time, slot TimeSlot) (bool, error) {
	err := s.checkSlot(ctx, providerID, CalendarDate(date, s.cfg.Location()), slot)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrProviderNotFound),
		errors.Is(err, ErrDayUnavailable),
		errors.Is(err, ErrSlotNotInTemplate),
		errors.Is(err, ErrSlotTaken):
		return false, nil
	default:
		return false, err
	}
}

type CreateRequest struct {
	ProviderID       uuid.UUID
	Date             time.Time
	TimeSlot         TimeSlot
	ConsultationType ConsultationType
	Symptoms         *string
	Notes            *string
}

// CreateAppointment reserves a slot for the calling patient. A Redis lock on
// the booking tuple narrows the check-then-insert window; the partial unique
// index on active bookings guarantees that of two racers exactly one insert
// survives, surfacing as ErrSlotTaken for the loser.
func (s *Service) CreateAppointment(ctx context.Context, actor Actor, req CreateRequest) (*Appointment, error) {
	if actor.Role != RolePatient {
		return nil, ErrNotAllowed
	}

	patient, err := s.repo.GetPatientByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	date := CalendarDate(req.Date, s.cfg.Location())

	appt := &Appointment{
		PatientID:        patient.ID,
		ProviderID:       req.ProviderID,
		Date:             date,
		TimeSlot:         req.TimeSlot,
		ConsultationType: req.ConsultationType,
		Symptoms:         req.Symptoms,
		Notes:            req.Notes,
	}
	if appt.ConsultationType == "" {
		appt.ConsultationType = ConsultationInPerson
	}
	if appt.ConsultationType == ConsultationVideo {
		id, link := s.meetings.NewMeeting()
		appt.MeetingID = &id
		appt.MeetingLink = &link
	}

	var created *Appointment

	lockKey := bookingLockKey(req.ProviderID, date, req.TimeSlot)
	err = s.locker.WithLock(ctx, lockKey, func(lockCtx context.Context) error {
		if err := s.checkSlot(lockCtx, req.ProviderID, date, req.TimeSlot); err != nil {
			return err
		}

		created, err = s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			if errors.Is(err, ErrDuplicateBooking) {
				return ErrSlotTaken
			}
			return fmt.Errorf("create pending appointment: %w", err)
		}

		s.logEvent(lockCtx, created.ID, EventBookingCreated, map[string]any{
			"provider_id": req.ProviderID.String(),
			"patient_id":  patient.ID.String(),
			"date":        date.Format(dateLayout),
			"start_time":  req.TimeSlot.StartTime,
			"end_time":    req.TimeSlot.EndTime,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// UpdateStatus applies one state-machine transition under the role policy.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, to Status) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ownPatient, ownProvider, err := s.resolveOwnership(ctx, actor, appt)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor.Role, ActionUpdateStatus, ownPatient, ownProvider); err != nil {
		return nil, err
	}
	if err := checkTransition(actor.Role, appt.Status, to); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Status moved underneath us between load and update
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventStatusChanged, map[string]any{
		"from": string(appt.Status),
		"to":   string(to),
		"role": string(actor.Role),
	})

	return updated, nil
}

// UpdateAppointment applies a partial field update. Unlike the upstream
// system, patients are held to the same ownership check as providers.
func (s *Service) UpdateAppointment(ctx context.Context, actor Actor, id uuid.UUID, upd AppointmentUpdate) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ownPatient, ownProvider, err := s.resolveOwnership(ctx, actor, appt)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor.Role, ActionUpdate, ownPatient, ownProvider); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentFields(ctx, appt.ID, upd)
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return updated, nil
}

// DeleteAppointment physically removes the record. Distinct from
// cancellation: no status check, any authorized actor can delete regardless
// of lifecycle stage.
func (s *Service) DeleteAppointment(ctx context.Context, actor Actor, id uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}

	ownPatient, ownProvider, err := s.resolveOwnership(ctx, actor, appt)
	if err != nil {
		return err
	}
	if err := authorize(actor.Role, ActionDelete, ownPatient, ownProvider); err != nil {
		return err
	}

	if err := s.repo.DeleteAppointment(ctx, appt.ID); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}

	s.logEvent(ctx, appt.ID, EventBookingDeleted, map[string]any{
		"role": string(actor.Role),
	})

	return nil
}

// GetAppointment loads one appointment the actor is allowed to see.
func (s *Service) GetAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ownPatient, ownProvider, err := s.resolveOwnership(ctx, actor, appt)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor.Role, ActionView, ownPatient, ownProvider); err != nil {
		return nil, err
	}

	return appt, nil
}

// ListAppointments returns the actor's appointments, newest first. Admins see
// everything.
func (s *Service) ListAppointments(ctx context.Context, actor Actor, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	scope, err := s.scopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	appointments, err := s.repo.ListAppointments(ctx, scope, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

const upcomingLimit = 10

// ListUpcoming returns the next active appointments from today onward,
// ascending by date.
func (s *Service) ListUpcoming(ctx context.Context, actor Actor) ([]Appointment, error) {
	scope, err := s.scopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	appointments, err := s.repo.ListUpcoming(ctx, scope, s.today(), upcomingLimit)
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	return appointments, nil
}

// ListProviders is the public discovery listing, optionally narrowed to one
// specialization. Ordered by name so paging is stable.
func (s *Service) ListProviders(ctx context.Context, specialization string, limit, offset int) ([]Provider, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	providers, err := s.repo.ListProviders(ctx, specialization, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return providers, nil
}

// GetProvider loads one provider's public profile.
func (s *Service) GetProvider(ctx context.Context, providerID uuid.UUID) (*Provider, error) {
	return s.repo.GetProviderByID(ctx, providerID)
}

// ProviderSlots projects the provider's bookable windows over the configured
// horizon, starting today.
func (s *Service) ProviderSlots(ctx context.Context, providerID uuid.UUID) ([]ProjectedDay, error) {
	availability, err := s.repo.GetAvailability(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return availability.ProjectSlots(s.today(), s.cfg.HorizonDays), nil
}

// UpdateAvailability replaces the provider's available days and weekly
// template wholesale. Providers may only edit their own record.
func (s *Service) UpdateAvailability(ctx context.Context, actor Actor, providerID uuid.UUID, days []string, template WeeklyTemplate) (*Availability, error) {
	switch actor.Role {
	case RoleAdmin:
	case RoleProvider:
		own, err := s.repo.GetProviderByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if own.ID != providerID {
			return nil, ErrNotAllowed
		}
	default:
		return nil, ErrNotAllowed
	}

	if err := ValidateTemplate(days, template); err != nil {
		return nil, err
	}

	updated, err := s.repo.ReplaceAvailability(ctx, providerID, days, template)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, uuid.Nil, EventAvailabilityUpdated, map[string]any{
		"provider_id": providerID.String(),
		"days":        days,
	})

	return updated, nil
}

// MarkPaid records a verified payment against the appointment.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, paymentRef string) (*Appointment, error) {
	paid := true
	return s.repo.UpdateAppointmentFields(ctx, id, AppointmentUpdate{
		IsPaid:     &paid,
		PaymentRef: &paymentRef,
	})
}

// AttachPrescription links a prescription to the appointment.
func (s *Service) AttachPrescription(ctx context.Context, id, prescriptionID uuid.UUID) (*Appointment, error) {
	return s.repo.UpdateAppointmentFields(ctx, id, AppointmentUpdate{
		PrescriptionID: &prescriptionID,
	})
}

// ResolveMissed is called by the worker. Active appointments whose date has
// passed are settled: never-confirmed bookings are cancelled, confirmed ones
// become no-shows.
func (s *Service) ResolveMissed(ctx context.Context) error {
	missed, err := s.repo.FindPastActive(ctx, s.today())
	if err != nil {
		return fmt.Errorf("find past active appointments: %w", err)
	}

	for _, appt := range missed {
		to := StatusNoShow
		if appt.Status == StatusPending {
			to = StatusCancelled
		}

		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			s.log.Warn("failed to resolve missed appointment",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err))
			continue
		}
		s.logEvent(ctx, appt.ID, EventStatusChanged, map[string]any{
			"from":   string(appt.Status),
			"to":     string(to),
			"reason": "worker",
		})
	}

	return nil
}

// PatientForActor resolves the calling patient's profile.
func (s *Service) PatientForActor(ctx context.Context, actor Actor) (*Patient, error) {
	if actor.Role != RolePatient {
		return nil, ErrNotAllowed
	}
	return s.repo.GetPatientByUserID(ctx, actor.UserID)
}

// ProviderForActor resolves the calling provider's profile.
func (s *Service) ProviderForActor(ctx context.Context, actor Actor) (*Provider, error) {
	if actor.Role != RoleProvider {
		return nil, ErrNotAllowed
	}
	return s.repo.GetProviderByUserID(ctx, actor.UserID)
}

func (s *Service) scopeFor(ctx context.Context, actor Actor) (ListScope, error) {
	switch actor.Role {
	case RolePatient:
		patient, err := s.repo.GetPatientByUserID(ctx, actor.UserID)
		if err != nil {
			return ListScope{}, err
		}
		return ListScope{PatientID: &patient.ID}, nil
	case RoleProvider:
		provider, err := s.repo.GetProviderByUserID(ctx, actor.UserID)
		if err != nil {
			return ListScope{}, err
		}
		return ListScope{ProviderID: &provider.ID}, nil
	case RoleAdmin:
		return ListScope{}, nil
	}
	return ListScope{}, ErrNotAllowed
}

func (s *Service) resolveOwnership(ctx context.Context, actor Actor, appt *Appointment) (ownPatient, ownProvider bool, err error) {
	switch actor.Role {
	case RolePatient:
		patient, err := s.repo.GetPatientByUserID(ctx, actor.UserID)
		if err != nil {
			return false, false, err
		}
		return patient.ID == appt.PatientID, false, nil
	case RoleProvider:
		provider, err := s.repo.GetProviderByUserID(ctx, actor.UserID)
		if err != nil {
			return false, false, err
		}
		return false, provider.ID == appt.ProviderID, nil
	}
	return false, false, nil
}

func bookingLockKey(providerID uuid.UUID, date time.Time, slot TimeSlot) string {
	return fmt.Sprintf("lock:booking:%s:%s:%s-%s",
		providerID, date.Format(dateLayout), slot.StartTime, slot.EndTime)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload",
			zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		Payload:   data,
		CreatedAt: s.now(),
	}
	if appointmentID != uuid.Nil {
		apptID := appointmentID
		ev.AppointmentID = &apptID
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("failed to insert event log",
			zap.String("event_type", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err))
	}
}

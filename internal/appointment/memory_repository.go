package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-memory Repository used in tests and
// local development. CreateAppointment enforces the same active-tuple
// uniqueness the Postgres partial index provides, so booking races resolve
// identically against either implementation.
type MemoryRepository struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]Patient
	providers    map[uuid.UUID]Provider
	appointments map[uuid.UUID]Appointment
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		providers:    make(map[uuid.UUID]Provider),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

// SeedPatient inserts a patient record directly.
func (m *MemoryRepository) SeedPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
}

// SeedProvider inserts a provider record directly.
func (m *MemoryRepository) SeedProvider(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.ID] = p
}

// Events returns a copy of the recorded event log.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventLog, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MemoryRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.UserID == userID {
			out := p
			return &out, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (m *MemoryRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) GetProviderByUserID(ctx context.Context, userID uuid.UUID) (*Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.providers {
		if p.UserID == userID {
			out := p
			return &out, nil
		}
	}
	return nil, ErrProviderNotFound
}

func (m *MemoryRepository) ListProviders(ctx context.Context, specialization string, limit, offset int) ([]Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Provider
	for _, p := range m.providers {
		if specialization == "" || p.Specialization == specialization {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryRepository) GetAvailability(ctx context.Context, providerID uuid.UUID) (*Availability, error) {
	p, err := m.GetProviderByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return &Availability{
		ProviderID:    p.ID,
		AvailableDays: p.AvailableDays,
		Template:      p.Template,
	}, nil
}

func (m *MemoryRepository) ReplaceAvailability(ctx context.Context, providerID uuid.UUID, days []string, template WeeklyTemplate) (*Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[providerID]
	if !ok {
		return nil, ErrProviderNotFound
	}
	p.AvailableDays = days
	p.Template = template
	p.UpdatedAt = time.Now()
	m.providers[providerID] = p
	return &Availability{
		ProviderID:    p.ID,
		AvailableDays: p.AvailableDays,
		Template:      p.Template,
	}, nil
}

func (m *MemoryRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (m *MemoryRepository) FindConflicting(ctx context.Context, providerID uuid.UUID, date time.Time, slot TimeSlot) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.findActiveLocked(providerID, date, slot); a != nil {
		return a, nil
	}
	return nil, ErrAppointmentNotFound
}

func (m *MemoryRepository) findActiveLocked(providerID uuid.UUID, date time.Time, slot TimeSlot) *Appointment {
	for _, a := range m.appointments {
		if a.ProviderID == providerID &&
			sameDate(a.Date, date) &&
			a.TimeSlot == slot &&
			a.Status.Active() {
			out := a
			return &out
		}
	}
	return nil
}

func (m *MemoryRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findActiveLocked(appt.ProviderID, appt.Date, appt.TimeSlot) != nil {
		return nil, ErrDuplicateBooking
	}

	now := time.Now()
	created := *appt
	created.ID = uuid.New()
	created.Status = StatusPending
	created.CreatedAt = now
	created.UpdatedAt = now
	m.appointments[created.ID] = created

	out := created
	return &out, nil
}

func (m *MemoryRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	m.appointments[id] = a
	out := a
	return &out, nil
}

func (m *MemoryRepository) UpdateAppointmentFields(ctx context.Context, id uuid.UUID, upd AppointmentUpdate) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if upd.Symptoms != nil {
		a.Symptoms = upd.Symptoms
	}
	if upd.Diagnosis != nil {
		a.Diagnosis = upd.Diagnosis
	}
	if upd.Notes != nil {
		a.Notes = upd.Notes
	}
	if upd.ConsultationType != nil {
		a.ConsultationType = *upd.ConsultationType
	}
	if upd.PrescriptionID != nil {
		a.PrescriptionID = upd.PrescriptionID
	}
	if upd.IsPaid != nil {
		a.IsPaid = *upd.IsPaid
	}
	if upd.PaymentRef != nil {
		a.PaymentRef = upd.PaymentRef
	}
	a.UpdatedAt = time.Now()
	m.appointments[id] = a
	out := a
	return &out, nil
}

func (m *MemoryRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.appointments, id)
	return nil
}

func (m *MemoryRepository) matchScope(a Appointment, scope ListScope) bool {
	if scope.PatientID != nil && a.PatientID != *scope.PatientID {
		return false
	}
	if scope.ProviderID != nil && a.ProviderID != *scope.ProviderID {
		return false
	}
	return true
}

func (m *MemoryRepository) ListAppointments(ctx context.Context, scope ListScope, limit, offset int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appointments {
		if m.matchScope(a, scope) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].TimeSlot.StartTime > result[j].TimeSlot.StartTime
	})

	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryRepository) ListUpcoming(ctx context.Context, scope ListScope, from time.Time, limit int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appointments {
		if m.matchScope(a, scope) && a.Status.Active() && !a.Date.Before(from) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].TimeSlot.StartTime < result[j].TimeSlot.StartTime
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryRepository) FindPastActive(ctx context.Context, before time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appointments {
		if a.Status.Active() && a.Date.Before(before) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

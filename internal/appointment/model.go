package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no-show"
)

// Active reports whether the status occupies its slot. Only pending and
// confirmed appointments block rebooking of the same tuple.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return Status(raw), true
	}
	return "", false
}

type ConsultationType string

const (
	ConsultationInPerson ConsultationType = "in-person"
	ConsultationVideo    ConsultationType = "video"
	ConsultationChat     ConsultationType = "chat"
)

func ParseConsultationType(raw string) (ConsultationType, bool) {
	switch ConsultationType(raw) {
	case ConsultationInPerson, ConsultationVideo, ConsultationChat:
		return ConsultationType(raw), true
	}
	return "", false
}

type Role string

const (
	RolePatient  Role = "patient"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RolePatient, RoleProvider, RoleAdmin:
		return Role(raw), true
	}
	return "", false
}

// Actor is the already-authenticated caller identity every operation receives.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// TimeSlot is a clock-time pair in "HH:MM" form, no date attached.
type TimeSlot struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Window is one bookable range inside a weekday's template. Disabled windows
// stay in the template but are never projected or bookable.
type Window struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Enabled   bool   `json:"enabled"`
}

// WeeklyTemplate maps lowercase weekday names to their bookable windows.
type WeeklyTemplate map[string][]Window

// Availability is a provider's recurring, date-agnostic booking pattern.
type Availability struct {
	ProviderID    uuid.UUID
	AvailableDays []string
	Template      WeeklyTemplate
}

type Patient struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Provider struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Name            string
	Specialization  string
	ConsultationFee int
	AvailableDays   []string
	Template        WeeklyTemplate
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Appointment struct {
	ID               uuid.UUID
	PatientID        uuid.UUID
	ProviderID       uuid.UUID
	Date             time.Time // calendar date, time-of-day stripped
	TimeSlot         TimeSlot
	Status           Status
	ConsultationType ConsultationType
	Symptoms         *string
	Diagnosis        *string
	Notes            *string
	PrescriptionID   *uuid.UUID
	MeetingLink      *string
	MeetingID        *string
	IsPaid           bool
	PaymentRef       *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EventLog is an append-only audit row for booking lifecycle events.
type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// ProjectedDay is one dated instantiation of the weekly template, carrying
// only enabled windows. Derived on every query, never persisted.
type ProjectedDay struct {
	Date    time.Time
	Weekday string
	Windows []Window
}

// WeekdayName renders a date's weekday the way templates key it: lowercase
// English, e.g. "monday".
func WeekdayName(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// DateOnly strips the time-of-day in the given location, leaving midnight.
// The instant is converted first, so this answers "what calendar day is it
// in loc right now".
func DateOnly(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// CalendarDate rebuilds t's own year/month/day at midnight in loc without
// converting the instant. Request dates parse as UTC midnight; converting
// that instant into a zone west of UTC would land on the previous day, so
// the written calendar date is what counts here, not the moment in time.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

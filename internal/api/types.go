package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediconnect/telehealth-api/internal/appointment"
	"github.com/mediconnect/telehealth-api/internal/records"
)

type TimeSlotPayload struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type CreateAppointmentRequest struct {
	ProviderID       string          `json:"provider_id"`
	Date             string          `json:"date"` // YYYY-MM-DD
	TimeSlot         TimeSlotPayload `json:"time_slot"`
	ConsultationType string          `json:"consultation_type,omitempty"`
	Symptoms         *string         `json:"symptoms,omitempty"`
	Notes            *string         `json:"notes,omitempty"`
}

type CheckAvailabilityRequest struct {
	ProviderID string          `json:"provider_id"`
	Date       string          `json:"date"`
	TimeSlot   TimeSlotPayload `json:"time_slot"`
}

type CheckAvailabilityResponse struct {
	Available bool `json:"available"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type UpdateAppointmentRequest struct {
	Symptoms         *string `json:"symptoms,omitempty"`
	Diagnosis        *string `json:"diagnosis,omitempty"`
	Notes            *string `json:"notes,omitempty"`
	ConsultationType *string `json:"consultation_type,omitempty"`
}

type UpdateAvailabilityRequest struct {
	AvailableDays  []string                        `json:"available_days"`
	WeeklyTemplate map[string][]appointment.Window `json:"weekly_template"`
}

type AppointmentResponse struct {
	ID               uuid.UUID       `json:"id"`
	PatientID        uuid.UUID       `json:"patient_id"`
	ProviderID       uuid.UUID       `json:"provider_id"`
	Date             string          `json:"date"`
	TimeSlot         TimeSlotPayload `json:"time_slot"`
	Status           string          `json:"status"`
	ConsultationType string          `json:"consultation_type"`
	Symptoms         *string         `json:"symptoms,omitempty"`
	Diagnosis        *string         `json:"diagnosis,omitempty"`
	Notes            *string         `json:"notes,omitempty"`
	PrescriptionID   *uuid.UUID      `json:"prescription_id,omitempty"`
	MeetingLink      *string         `json:"meeting_link,omitempty"`
	MeetingID        *string         `json:"meeting_id,omitempty"`
	IsPaid           bool            `json:"is_paid"`
	CreatedAt        time.Time       `json:"created_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		PatientID:  a.PatientID,
		ProviderID: a.ProviderID,
		Date:       a.Date.Format("2006-01-02"),
		TimeSlot: TimeSlotPayload{
			StartTime: a.TimeSlot.StartTime,
			EndTime:   a.TimeSlot.EndTime,
		},
		Status:           string(a.Status),
		ConsultationType: string(a.ConsultationType),
		Symptoms:         a.Symptoms,
		Diagnosis:        a.Diagnosis,
		Notes:            a.Notes,
		PrescriptionID:   a.PrescriptionID,
		MeetingLink:      a.MeetingLink,
		MeetingID:        a.MeetingID,
		IsPaid:           a.IsPaid,
		CreatedAt:        a.CreatedAt,
	}
}

func toAppointmentListResponse(list []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAppointmentResponse(&list[i]))
	}
	return out
}

type ProjectedDayResponse struct {
	Date    string               `json:"date"`
	Weekday string               `json:"weekday"`
	Windows []appointment.Window `json:"windows"`
}

type ProviderResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Specialization  string    `json:"specialization"`
	ConsultationFee int       `json:"consultation_fee"`
	AvailableDays   []string  `json:"available_days"`
}

func toProviderResponse(p *appointment.Provider) ProviderResponse {
	return ProviderResponse{
		ID:              p.ID,
		Name:            p.Name,
		Specialization:  p.Specialization,
		ConsultationFee: p.ConsultationFee,
		AvailableDays:   p.AvailableDays,
	}
}

type AvailabilityResponse struct {
	ProviderID     uuid.UUID                       `json:"provider_id"`
	AvailableDays  []string                        `json:"available_days"`
	WeeklyTemplate map[string][]appointment.Window `json:"weekly_template"`
}

type CreatePrescriptionRequest struct {
	AppointmentID string                 `json:"appointment_id"`
	Medicines     []records.MedicineLine `json:"medicines"`
	Notes         *string                `json:"notes,omitempty"`
}

type PrescriptionResponse struct {
	ID            uuid.UUID              `json:"id"`
	AppointmentID uuid.UUID              `json:"appointment_id"`
	PatientID     uuid.UUID              `json:"patient_id"`
	ProviderID    uuid.UUID              `json:"provider_id"`
	Medicines     []records.MedicineLine `json:"medicines"`
	Notes         *string                `json:"notes,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

func toPrescriptionResponse(p *records.Prescription) PrescriptionResponse {
	return PrescriptionResponse{
		ID:            p.ID,
		AppointmentID: p.AppointmentID,
		PatientID:     p.PatientID,
		ProviderID:    p.ProviderID,
		Medicines:     p.Medicines,
		Notes:         p.Notes,
		CreatedAt:     p.CreatedAt,
	}
}

type CreateOrderRequest struct {
	PrescriptionID *string             `json:"prescription_id,omitempty"`
	Items          []records.OrderItem `json:"items"`
	TotalAmount    int                 `json:"total_amount"`
}

type OrderResponse struct {
	ID             uuid.UUID           `json:"id"`
	PatientID      uuid.UUID           `json:"patient_id"`
	PrescriptionID *uuid.UUID          `json:"prescription_id,omitempty"`
	Items          []records.OrderItem `json:"items"`
	TotalAmount    int                 `json:"total_amount"`
	Status         string              `json:"status"`
	PaymentStatus  string              `json:"payment_status"`
	CreatedAt      time.Time           `json:"created_at"`
}

func toOrderResponse(o *records.Order) OrderResponse {
	return OrderResponse{
		ID:             o.ID,
		PatientID:      o.PatientID,
		PrescriptionID: o.PrescriptionID,
		Items:          o.Items,
		TotalAmount:    o.TotalAmount,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		CreatedAt:      o.CreatedAt,
	}
}

type VerifyPaymentRequest struct {
	OrderID       string  `json:"order_id"`
	PaymentID     string  `json:"payment_id"`
	Signature     string  `json:"signature"`
	AppointmentID *string `json:"appointment_id,omitempty"`
	OrderRef      *string `json:"order_ref,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

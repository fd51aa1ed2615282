package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mediconnect/telehealth-api/internal/appointment"
	"github.com/mediconnect/telehealth-api/internal/config"
	"github.com/mediconnect/telehealth-api/internal/payments"
	"github.com/mediconnect/telehealth-api/internal/records"
)

const (
	testJWTSecret     = "test-secret"
	testPaymentSecret = "payment-secret"
)

type passLocker struct{}

func (passLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var allWeekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

type testServer struct {
	handler http.Handler

	provider      appointment.Provider
	providerToken string
	patient       appointment.Patient
	patientToken  string
	adminToken    string

	apptRepo *appointment.MemoryRepository

	// a date inside the projection horizon; available on every weekday
	bookDate string
}

func signToken(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID.String(),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	apptRepo := appointment.NewMemoryRepository()
	cfg := config.Config{
		Timezone:       "UTC",
		HorizonDays:    7,
		MeetingPrefix:  "mediconnect",
		MeetingBaseURL: "https://meet.jit.si",
	}
	booking := appointment.NewService(apptRepo, passLocker{}, appointment.NewHostedMeetings(cfg.MeetingPrefix, cfg.MeetingBaseURL), cfg, zap.NewNop())
	recordsSvc := records.NewService(records.NewMemoryRepository(), booking, zap.NewNop())

	ts := &testServer{apptRepo: apptRepo}

	// Every weekday enabled so the test can book relative to the real clock
	template := make(appointment.WeeklyTemplate, len(allWeekdays))
	for _, day := range allWeekdays {
		template[day] = []appointment.Window{
			{StartTime: "09:00", EndTime: "10:00", Enabled: true},
			{StartTime: "10:00", EndTime: "11:00", Enabled: true},
		}
	}
	ts.provider = appointment.Provider{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		Name:            "Dr. Asha Rao",
		Specialization:  "Cardiology",
		ConsultationFee: 700,
		AvailableDays:   allWeekdays,
		Template:        template,
	}
	apptRepo.SeedProvider(ts.provider)
	ts.providerToken = signToken(t, ts.provider.UserID, "provider")

	ts.patient = appointment.Patient{ID: uuid.New(), UserID: uuid.New(), Name: "Alice"}
	apptRepo.SeedPatient(ts.patient)
	ts.patientToken = signToken(t, ts.patient.UserID, "patient")

	ts.adminToken = signToken(t, uuid.New(), "admin")

	ts.bookDate = time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")

	ts.handler = NewRouter(RouterConfig{
		Booking:   booking,
		Records:   recordsSvc,
		Payments:  payments.NewVerifier("key_test", testPaymentSecret),
		Logger:    zap.NewNop(),
		JWTSecret: testJWTSecret,
		Env:       "test",
		Version:   "test",
	})

	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func (ts *testServer) createAppointment(t *testing.T, slot TimeSlotPayload) AppointmentResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/appointments", ts.patientToken, CreateAppointmentRequest{
		ProviderID: ts.provider.ID.String(),
		Date:       ts.bookDate,
		TimeSlot:   slot,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[AppointmentResponse](t, rec)
}

var slotNine = TimeSlotPayload{StartTime: "09:00", EndTime: "10:00"}

func TestHealthLive(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[LivenessResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	t.Run("missing token", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/appointments", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/appointments", "not.a.jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":  uuid.NewString(),
			"role": "patient",
		})
		signed, err := token.SignedString([]byte("other-secret"))
		require.NoError(t, err)

		rec := ts.do(t, http.MethodGet, "/api/v1/appointments", signed, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown role", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/appointments", signToken(t, uuid.New(), "auditor"), nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestCreateAppointmentEndpoint(t *testing.T) {
	ts := newTestServer(t)

	created := ts.createAppointment(t, slotNine)
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, ts.patient.ID, created.PatientID)
	assert.Equal(t, ts.bookDate, created.Date)
	assert.Nil(t, created.MeetingLink)

	t.Run("double booking conflicts", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/appointments", ts.patientToken, CreateAppointmentRequest{
			ProviderID: ts.provider.ID.String(),
			Date:       ts.bookDate,
			TimeSlot:   slotNine,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("provider role is rejected", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/appointments", ts.providerToken, CreateAppointmentRequest{
			ProviderID: ts.provider.ID.String(),
			Date:       ts.bookDate,
			TimeSlot:   TimeSlotPayload{StartTime: "10:00", EndTime: "11:00"},
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bad date", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/appointments", ts.patientToken, CreateAppointmentRequest{
			ProviderID: ts.provider.ID.String(),
			Date:       "tomorrow",
			TimeSlot:   slotNine,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("slot outside template", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/appointments", ts.patientToken, CreateAppointmentRequest{
			ProviderID: ts.provider.ID.String(),
			Date:       ts.bookDate,
			TimeSlot:   TimeSlotPayload{StartTime: "22:00", EndTime: "23:00"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestVideoAppointmentEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/appointments/video", ts.patientToken, CreateAppointmentRequest{
		ProviderID: ts.provider.ID.String(),
		Date:       ts.bookDate,
		TimeSlot:   slotNine,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeBody[AppointmentResponse](t, rec)
	assert.Equal(t, "video", created.ConsultationType)
	require.NotNil(t, created.MeetingLink)
	require.NotNil(t, created.MeetingID)
}

func TestCheckAvailabilityEndpoint(t *testing.T) {
	ts := newTestServer(t)

	probe := CheckAvailabilityRequest{
		ProviderID: ts.provider.ID.String(),
		Date:       ts.bookDate,
		TimeSlot:   slotNine,
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/appointments/availability", "", probe)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[CheckAvailabilityResponse](t, rec).Available)

	ts.createAppointment(t, slotNine)

	rec = ts.do(t, http.MethodPost, "/api/v1/appointments/availability", "", probe)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[CheckAvailabilityResponse](t, rec).Available)
}

func TestStatusLifecycleEndpoint(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createAppointment(t, slotNine)
	path := fmt.Sprintf("/api/v1/appointments/%s/status", created.ID)

	t.Run("patient cannot confirm", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, path, ts.patientToken, UpdateStatusRequest{Status: "confirmed"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("provider confirms", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, path, ts.providerToken, UpdateStatusRequest{Status: "confirmed"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "confirmed", decodeBody[AppointmentResponse](t, rec).Status)
	})

	t.Run("patient cancels confirmed", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, path, ts.patientToken, UpdateStatusRequest{Status: "cancelled"})
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("terminal state conflicts", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, path, ts.adminToken, UpdateStatusRequest{Status: "confirmed"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown status value", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, path, ts.adminToken, UpdateStatusRequest{Status: "snoozed"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetAndListEndpoints(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createAppointment(t, slotNine)

	t.Run("owner reads own", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/appointments/"+created.ID.String(), ts.patientToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("stranger patient is rejected", func(t *testing.T) {
		stranger := appointment.Patient{ID: uuid.New(), UserID: uuid.New()}
		ts.apptRepo.SeedPatient(stranger)
		rec := ts.do(t, http.MethodGet, "/api/v1/appointments/"+created.ID.String(), signToken(t, stranger.UserID, "patient"), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/appointments/"+uuid.NewString(), ts.patientToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id is a bad request", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/appointments/not-a-uuid", ts.patientToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list scoped to the caller", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/appointments", ts.patientToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[[]AppointmentResponse](t, rec), 1)
	})

	t.Run("upcoming includes the booking", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/appointments/upcoming", ts.patientToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[[]AppointmentResponse](t, rec), 1)
	})
}

func TestProviderDiscoveryEndpoints(t *testing.T) {
	ts := newTestServer(t)

	t.Run("listing is public", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/providers", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		providers := decodeBody[[]ProviderResponse](t, rec)
		require.Len(t, providers, 1)
		assert.Equal(t, ts.provider.ID, providers[0].ID)
		assert.Equal(t, "Cardiology", providers[0].Specialization)
		assert.Equal(t, 700, providers[0].ConsultationFee)
	})

	t.Run("specialization filter", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/providers?specialization=Cardiology", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[[]ProviderResponse](t, rec), 1)

		rec = ts.do(t, http.MethodGet, "/api/v1/providers?specialization=Dermatology", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decodeBody[[]ProviderResponse](t, rec))
	})

	t.Run("profile by id", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/providers/"+ts.provider.ID.String(), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, ts.provider.Name, decodeBody[ProviderResponse](t, rec).Name)
	})

	t.Run("unknown provider is not found", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/providers/"+uuid.NewString(), "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestProviderSlotsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/providers/%s/slots", ts.provider.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	days := decodeBody[[]ProjectedDayResponse](t, rec)
	require.Len(t, days, 7, "available every day over a 7-day horizon")
	for _, day := range days {
		assert.Len(t, day.Windows, 2)
	}
}

func TestUpdateAvailabilityEndpoint(t *testing.T) {
	ts := newTestServer(t)
	path := fmt.Sprintf("/api/v1/providers/%s/availability", ts.provider.ID)

	update := UpdateAvailabilityRequest{
		AvailableDays: []string{"monday"},
		WeeklyTemplate: map[string][]appointment.Window{
			"monday": {{StartTime: "09:00", EndTime: "12:00", Enabled: true}},
		},
	}

	t.Run("patient is rejected", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, path, ts.patientToken, update)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("overlapping windows are rejected", func(t *testing.T) {
		bad := UpdateAvailabilityRequest{
			AvailableDays: []string{"monday"},
			WeeklyTemplate: map[string][]appointment.Window{
				"monday": {
					{StartTime: "09:00", EndTime: "11:00", Enabled: true},
					{StartTime: "10:00", EndTime: "12:00", Enabled: true},
				},
			},
		}
		rec := ts.do(t, http.MethodPut, path, ts.providerToken, bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("owner replaces availability", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, path, ts.providerToken, update)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeBody[AvailabilityResponse](t, rec)
		assert.Equal(t, []string{"monday"}, resp.AvailableDays)
		assert.NotContains(t, resp.WeeklyTemplate, "tuesday")
	})
}

func TestPrescriptionAndOrderEndpoints(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createAppointment(t, slotNine)

	rec := ts.do(t, http.MethodPost, "/api/v1/prescriptions", ts.providerToken, CreatePrescriptionRequest{
		AppointmentID: created.ID.String(),
		Medicines:     []records.MedicineLine{{Name: "Amoxicillin", Dosage: "500mg", Duration: "7 days"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	prescription := decodeBody[PrescriptionResponse](t, rec)
	assert.Equal(t, created.ID, prescription.AppointmentID)

	t.Run("patient cannot prescribe", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/prescriptions", ts.patientToken, CreatePrescriptionRequest{
			AppointmentID: created.ID.String(),
			Medicines:     []records.MedicineLine{{Name: "Amoxicillin", Dosage: "500mg", Duration: "7 days"}},
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("appointment carries the link", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/appointments/"+created.ID.String(), ts.patientToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[AppointmentResponse](t, rec)
		require.NotNil(t, got.PrescriptionID)
		assert.Equal(t, prescription.ID, *got.PrescriptionID)
	})

	prescriptionID := prescription.ID.String()
	rec = ts.do(t, http.MethodPost, "/api/v1/orders", ts.patientToken, CreateOrderRequest{
		PrescriptionID: &prescriptionID,
		Items:          []records.OrderItem{{Medicine: "Amoxicillin", Quantity: 14, Price: 30}},
		TotalAmount:    420,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeBody[OrderResponse](t, rec)
	assert.Equal(t, "placed", order.Status)

	t.Run("patient cancels own order", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, fmt.Sprintf("/api/v1/orders/%s/status", order.ID), ts.patientToken, map[string]string{"status": "cancelled"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "cancelled", decodeBody[OrderResponse](t, rec).Status)
	})

	t.Run("cancelled order conflicts on further updates", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, fmt.Sprintf("/api/v1/orders/%s/status", order.ID), ts.adminToken, map[string]string{"status": "processing"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestVerifyPaymentEndpoint(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createAppointment(t, slotNine)
	apptID := created.ID.String()

	sign := func(orderID, paymentID string) string {
		mac := hmac.New(sha256.New, []byte(testPaymentSecret))
		mac.Write([]byte(orderID + "|" + paymentID))
		return hex.EncodeToString(mac.Sum(nil))
	}

	t.Run("valid signature marks the appointment paid", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/payments/verify", ts.patientToken, VerifyPaymentRequest{
			OrderID:       "order_77",
			PaymentID:     "pay_77",
			Signature:     sign("order_77", "pay_77"),
			AppointmentID: &apptID,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, decodeBody[AppointmentResponse](t, rec).IsPaid)
	})

	t.Run("tampered signature is rejected", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/payments/verify", ts.patientToken, VerifyPaymentRequest{
			OrderID:       "order_77",
			PaymentID:     "pay_78",
			Signature:     sign("order_77", "pay_77"),
			AppointmentID: &apptID,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no target is a bad request", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/payments/verify", ts.patientToken, VerifyPaymentRequest{
			OrderID:   "order_77",
			PaymentID: "pay_77",
			Signature: sign("order_77", "pay_77"),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

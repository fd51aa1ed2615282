package records

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mediconnect/telehealth-api/internal/appointment"
	"github.com/mediconnect/telehealth-api/internal/config"
)

type passLocker struct{}

func (passLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	svc *Service

	provider      appointment.Provider
	providerActor appointment.Actor
	patient       appointment.Patient
	patientActor  appointment.Actor
	adminActor    appointment.Actor

	apptRepo *appointment.MemoryRepository
	appt     *appointment.Appointment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	apptRepo := appointment.NewMemoryRepository()
	cfg := config.Config{Timezone: "UTC", HorizonDays: 7}
	booking := appointment.NewService(apptRepo, passLocker{}, appointment.NewHostedMeetings("mediconnect", "https://meet.jit.si"), cfg, zap.NewNop())

	f := &fixture{svc: NewService(NewMemoryRepository(), booking, zap.NewNop()), apptRepo: apptRepo}

	f.provider = appointment.Provider{ID: uuid.New(), UserID: uuid.New(), Name: "Dr. Asha Rao"}
	apptRepo.SeedProvider(f.provider)
	f.providerActor = appointment.Actor{UserID: f.provider.UserID, Role: appointment.RoleProvider}

	f.patient = appointment.Patient{ID: uuid.New(), UserID: uuid.New(), Name: "Alice"}
	apptRepo.SeedPatient(f.patient)
	f.patientActor = appointment.Actor{UserID: f.patient.UserID, Role: appointment.RolePatient}

	f.adminActor = appointment.Actor{UserID: uuid.New(), Role: appointment.RoleAdmin}

	appt, err := apptRepo.CreateAppointment(context.Background(), &appointment.Appointment{
		PatientID:  f.patient.ID,
		ProviderID: f.provider.ID,
		TimeSlot:   appointment.TimeSlot{StartTime: "09:00", EndTime: "10:00"},
	})
	require.NoError(t, err)
	f.appt = appt

	return f
}

var testMedicines = []MedicineLine{
	{Name: "Amoxicillin", Dosage: "500mg", Duration: "7 days", Instructions: "after meals"},
}

func TestCreatePrescription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreatePrescription(ctx, f.providerActor, f.appt.ID, testMedicines, nil)
	require.NoError(t, err)
	assert.Equal(t, f.appt.ID, created.AppointmentID)
	assert.Equal(t, f.patient.ID, created.PatientID)
	assert.Equal(t, f.provider.ID, created.ProviderID)

	// The appointment now carries the link back
	appt, err := f.apptRepo.GetAppointmentByID(ctx, f.appt.ID)
	require.NoError(t, err)
	require.NotNil(t, appt.PrescriptionID)
	assert.Equal(t, created.ID, *appt.PrescriptionID)
}

func TestCreatePrescriptionAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("patient cannot prescribe", func(t *testing.T) {
		_, err := f.svc.CreatePrescription(ctx, f.patientActor, f.appt.ID, testMedicines, nil)
		assert.ErrorIs(t, err, appointment.ErrNotAllowed)
	})

	t.Run("unrelated provider is rejected", func(t *testing.T) {
		other := appointment.Provider{ID: uuid.New(), UserID: uuid.New()}
		f.apptRepo.SeedProvider(other)
		_, err := f.svc.CreatePrescription(ctx, appointment.Actor{UserID: other.UserID, Role: appointment.RoleProvider}, f.appt.ID, testMedicines, nil)
		assert.ErrorIs(t, err, appointment.ErrNotAllowed)
	})

	t.Run("unknown appointment", func(t *testing.T) {
		_, err := f.svc.CreatePrescription(ctx, f.providerActor, uuid.New(), testMedicines, nil)
		assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
	})
}

func TestGetPrescriptionVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreatePrescription(ctx, f.providerActor, f.appt.ID, testMedicines, nil)
	require.NoError(t, err)

	_, err = f.svc.GetPrescription(ctx, f.patientActor, created.ID)
	assert.NoError(t, err, "issued-to patient can read")

	_, err = f.svc.GetPrescription(ctx, f.providerActor, created.ID)
	assert.NoError(t, err, "issuing provider can read")

	_, err = f.svc.GetPrescription(ctx, f.adminActor, created.ID)
	assert.NoError(t, err)

	stranger := appointment.Patient{ID: uuid.New(), UserID: uuid.New()}
	f.apptRepo.SeedPatient(stranger)
	_, err = f.svc.GetPrescription(ctx, appointment.Actor{UserID: stranger.UserID, Role: appointment.RolePatient}, created.ID)
	assert.ErrorIs(t, err, appointment.ErrNotAllowed)
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	items := []OrderItem{{Medicine: "Amoxicillin", Quantity: 14, Price: 30}}

	t.Run("without prescription", func(t *testing.T) {
		order, err := f.svc.CreateOrder(ctx, f.patientActor, nil, items, 420)
		require.NoError(t, err)
		assert.Equal(t, OrderPlaced, order.Status)
		assert.Equal(t, PaymentPending, order.PaymentStatus)
		assert.Nil(t, order.PrescriptionID)
	})

	t.Run("with own prescription", func(t *testing.T) {
		p, err := f.svc.CreatePrescription(ctx, f.providerActor, f.appt.ID, testMedicines, nil)
		require.NoError(t, err)

		order, err := f.svc.CreateOrder(ctx, f.patientActor, &p.ID, items, 420)
		require.NoError(t, err)
		assert.Equal(t, p.ID, *order.PrescriptionID)
	})

	t.Run("someone else's prescription is rejected", func(t *testing.T) {
		p, err := f.svc.CreatePrescription(ctx, f.providerActor, f.appt.ID, testMedicines, nil)
		require.NoError(t, err)

		stranger := appointment.Patient{ID: uuid.New(), UserID: uuid.New()}
		f.apptRepo.SeedPatient(stranger)
		_, err = f.svc.CreateOrder(ctx, appointment.Actor{UserID: stranger.UserID, Role: appointment.RolePatient}, &p.ID, items, 420)
		assert.ErrorIs(t, err, appointment.ErrNotAllowed)
	})

	t.Run("provider cannot order", func(t *testing.T) {
		_, err := f.svc.CreateOrder(ctx, f.providerActor, nil, items, 420)
		assert.ErrorIs(t, err, appointment.ErrNotAllowed)
	})
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items := []OrderItem{{Medicine: "Amoxicillin", Quantity: 14, Price: 30}}

	t.Run("admin drives fulfilment", func(t *testing.T) {
		order, err := f.svc.CreateOrder(ctx, f.patientActor, nil, items, 420)
		require.NoError(t, err)

		for _, to := range []OrderStatus{OrderProcessing, OrderShipped, OrderDelivered} {
			order, err = f.svc.UpdateOrderStatus(ctx, f.adminActor, order.ID, to)
			require.NoError(t, err)
			assert.Equal(t, to, order.Status)
		}

		_, err = f.svc.UpdateOrderStatus(ctx, f.adminActor, order.ID, OrderCancelled)
		assert.ErrorIs(t, err, ErrInvalidOrderTransition, "delivered is terminal")
	})

	t.Run("patient cancels own placed order", func(t *testing.T) {
		order, err := f.svc.CreateOrder(ctx, f.patientActor, nil, items, 420)
		require.NoError(t, err)

		cancelled, err := f.svc.UpdateOrderStatus(ctx, f.patientActor, order.ID, OrderCancelled)
		require.NoError(t, err)
		assert.Equal(t, OrderCancelled, cancelled.Status)
	})

	t.Run("patient cannot advance fulfilment", func(t *testing.T) {
		order, err := f.svc.CreateOrder(ctx, f.patientActor, nil, items, 420)
		require.NoError(t, err)

		_, err = f.svc.UpdateOrderStatus(ctx, f.patientActor, order.ID, OrderProcessing)
		assert.ErrorIs(t, err, appointment.ErrNotAllowed)
	})

	t.Run("patient cannot cancel shipped order", func(t *testing.T) {
		order, err := f.svc.CreateOrder(ctx, f.patientActor, nil, items, 420)
		require.NoError(t, err)
		_, err = f.svc.UpdateOrderStatus(ctx, f.adminActor, order.ID, OrderProcessing)
		require.NoError(t, err)
		_, err = f.svc.UpdateOrderStatus(ctx, f.adminActor, order.ID, OrderShipped)
		require.NoError(t, err)

		_, err = f.svc.UpdateOrderStatus(ctx, f.patientActor, order.ID, OrderCancelled)
		assert.ErrorIs(t, err, ErrInvalidOrderTransition)
	})
}

func TestSettlePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.patientActor, nil, []OrderItem{{Medicine: "Cetirizine", Quantity: 10, Price: 5}}, 50)
	require.NoError(t, err)

	settled, err := f.svc.SettlePayment(ctx, order.ID, PaymentCompleted, "pay_3Jk91")
	require.NoError(t, err)
	assert.Equal(t, PaymentCompleted, settled.PaymentStatus)
	assert.Equal(t, "pay_3Jk91", *settled.PaymentRef)
}

func TestListOrdersAndPrescriptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePrescription(ctx, f.providerActor, f.appt.ID, testMedicines, nil)
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, f.patientActor, nil, []OrderItem{{Medicine: "Cetirizine", Quantity: 10, Price: 5}}, 50)
	require.NoError(t, err)

	prescriptions, err := f.svc.ListPrescriptions(ctx, f.patientActor)
	require.NoError(t, err)
	assert.Len(t, prescriptions, 1)

	orders, err := f.svc.ListOrders(ctx, f.patientActor)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	stranger := appointment.Patient{ID: uuid.New(), UserID: uuid.New()}
	f.apptRepo.SeedPatient(stranger)
	orders, err = f.svc.ListOrders(ctx, appointment.Actor{UserID: stranger.UserID, Role: appointment.RolePatient})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

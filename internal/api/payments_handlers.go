package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/mediconnect/telehealth-api/internal/appointment"
	"github.com/mediconnect/telehealth-api/internal/payments"
	"github.com/mediconnect/telehealth-api/internal/records"
)

// verifyPaymentHandler checks the gateway callback signature and records the
// capture against whichever record the payment was for: a consultation
// (appointment_id) or a medicine order (order_ref).
func verifyPaymentHandler(verifier *payments.Verifier, bookingSvc *appointment.Service, recordsSvc *records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireActor(w, r); !ok {
			return
		}

		var req VerifyPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "order_id, payment_id and signature are required")
			return
		}

		if !verifier.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
			writeError(w, http.StatusBadRequest, "invalid_signature", "payment signature verification failed")
			return
		}

		switch {
		case req.AppointmentID != nil:
			id, err := uuid.Parse(*req.AppointmentID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
				return
			}
			appt, err := bookingSvc.MarkPaid(r.Context(), id, req.PaymentID)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toAppointmentResponse(appt))

		case req.OrderRef != nil:
			id, err := uuid.Parse(*req.OrderRef)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_order_ref", "order_ref must be a valid UUID")
				return
			}
			order, err := recordsSvc.SettlePayment(r.Context(), id, records.PaymentCompleted, req.PaymentID)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toOrderResponse(order))

		default:
			writeError(w, http.StatusBadRequest, "missing_target", "appointment_id or order_ref is required")
		}
	}
}

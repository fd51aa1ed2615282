package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/mediconnect/telehealth-api/internal/records"
)

func createPrescriptionHandler(svc *records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req CreatePrescriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appointmentID, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
			return
		}
		if len(req.Medicines) == 0 {
			writeError(w, http.StatusBadRequest, "missing_medicines", "at least one medicine is required")
			return
		}

		p, err := svc.CreatePrescription(r.Context(), actor, appointmentID, req.Medicines, req.Notes)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPrescriptionResponse(p))
	}
}

func getPrescriptionHandler(svc *records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		p, err := svc.GetPrescription(r.Context(), actor, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPrescriptionResponse(p))
	}
}

func listPrescriptionsHandler(svc *records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		list, err := svc.ListPrescriptions(r.Context(), actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make([]PrescriptionResponse, 0, len(list))
		for i := range list {
			out = append(out, toPrescriptionResponse(&list[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createOrderHandler(svc *records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if len(req.Items) == 0 {
			writeError(w, http.StatusBadRequest, "missing_items", "at least one order item is required")
			return
		}

		var prescriptionID *uuid.UUID
		if req.PrescriptionID != nil {
			id, err := uuid.Parse(*req.PrescriptionID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_prescription_id", "prescription_id must be a valid UUID")
				return
			}
			prescriptionID = &id
		}

		o, err := svc.CreateOrder(r.Context(), actor, prescriptionID, req.Items, req.TotalAmount)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toOrderResponse(o))
	}
}

func listOrdersHandler(svc *records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		list, err := svc.ListOrders(r.Context(), actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make([]OrderResponse, 0, len(list))
		for i := range list {
			out = append(out, toOrderResponse(&list[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func updateOrderStatusHandler(svc *records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		status, ok := records.ParseOrderStatus(req.Status)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_status", "unsupported order status")
			return
		}

		o, err := svc.UpdateOrderStatus(r.Context(), actor, id, status)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toOrderResponse(o))
	}
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medicove/outpatient-booking/internal/booking"
)

func bookAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		date, err := time.Parse(dateLayout, req.VisitDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_visit_date", "visit_date must be YYYY-MM-DD")
			return
		}

		appt, err := svc.Book(r.Context(), patientID, doctorID, date, booking.TimeWindow(req.TimeWindow))
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req CancelAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		if err := svc.Cancel(r.Context(), id, patientID); err != nil {
			handleBookingError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func startConsultationHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req StartConsultationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rec, err := svc.StartConsultation(r.Context(), id, req.Complaint)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toConsultationResponse(rec))
	}
}

func completeConsultationHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req CompleteConsultationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rec, err := svc.CompleteConsultation(r.Context(), id, booking.ClinicalNotes{
			Complaint:       req.Complaint,
			Diagnosis:       req.Diagnosis,
			Plan:            req.Plan,
			Prescription:    req.Prescription,
			FeeCents:        req.FeeCents,
			DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toConsultationResponse(rec))
	}
}

func createSlotHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		date, err := time.Parse(dateLayout, req.VisitDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_visit_date", "visit_date must be YYYY-MM-DD")
			return
		}

		slot, err := svc.CreateSlot(r.Context(), doctorID, date, booking.TimeWindow(req.TimeWindow), req.TotalQuota)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(slot))
	}
}

func bulkCreateSlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkCreateSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorIDs := make([]uuid.UUID, 0, len(req.DoctorIDs))
		for _, raw := range req.DoctorIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_ids must be valid UUIDs")
				return
			}
			doctorIDs = append(doctorIDs, id)
		}

		from, err := time.Parse(dateLayout, req.FromDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from_date", "from_date must be YYYY-MM-DD")
			return
		}
		to, err := time.Parse(dateLayout, req.ToDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to_date", "to_date must be YYYY-MM-DD")
			return
		}

		windows := make([]booking.TimeWindow, 0, len(req.TimeWindows))
		for _, raw := range req.TimeWindows {
			windows = append(windows, booking.TimeWindow(raw))
		}

		result, err := svc.CreateSlotSweep(r.Context(), doctorIDs, from, to, windows, req.TotalQuota)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := SweepResponse{Created: result.Created, Conflicts: make([]SweepConflict, 0, len(result.Conflicts))}
		for _, c := range result.Conflicts {
			resp.Conflicts = append(resp.Conflicts, SweepConflict{
				DoctorID:   c.DoctorID,
				VisitDate:  c.VisitDate.Format(dateLayout),
				TimeWindow: string(c.Window),
			})
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func deleteSlotHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		if err := svc.DeleteSlot(r.Context(), id); err != nil {
			handleBookingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func setSlotStatusHandler(svc *booking.Service, toClosed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var err error
		if toClosed {
			err = svc.CloseSlot(r.Context(), id)
		} else {
			err = svc.OpenSlot(r.Context(), id)
		}
		if err != nil {
			handleBookingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func doctorVisitsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		dateStr := r.URL.Query().Get("date")
		if dateStr == "" {
			dateStr = time.Now().Format(dateLayout)
		}
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		appts, err := svc.DoctorVisits(r.Context(), id, date)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeAppointmentList(w, appts)
	}
}

func patientAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		limit := queryInt(r, "limit", 20)
		offset := queryInt(r, "offset", 0)

		appts, err := svc.PatientAppointments(r.Context(), id, limit, offset)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeAppointmentList(w, appts)
	}
}

func writeAppointmentList(w http.ResponseWriter, appts []booking.Appointment) {
	resp := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		resp = append(resp, toAppointmentResponse(&appts[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrMaintenance):
		writeError(w, http.StatusServiceUnavailable, "maintenance_mode", err.Error())
	case errors.Is(err, booking.ErrAppointmentTimeInvalid):
		writeError(w, http.StatusBadRequest, "appointment_time_invalid", err.Error())
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrDoctorNoCategory):
		writeError(w, http.StatusUnprocessableEntity, "doctor_no_category", err.Error())
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "schedule_not_found", err.Error())
	case errors.Is(err, booking.ErrScheduleClosed):
		writeError(w, http.StatusConflict, "schedule_closed", err.Error())
	case errors.Is(err, booking.ErrScheduleFull):
		writeError(w, http.StatusConflict, "schedule_full", err.Error())
	case errors.Is(err, booking.ErrSlotExists):
		writeError(w, http.StatusConflict, "schedule_exists", err.Error())
	case errors.Is(err, booking.ErrSlotInUse):
		writeError(w, http.StatusConflict, "schedule_in_use", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrNotOwner):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, booking.ErrCancelCutoff):
		writeError(w, http.StatusConflict, "appointment_cancel_timeout", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrConsultationNotFound):
		writeError(w, http.StatusNotFound, "consultation_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected failure, please retry")
	}
}

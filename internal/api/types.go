package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/medicove/outpatient-booking/internal/booking"
)

const dateLayout = "2006-01-02"

type BookAppointmentRequest struct {
	PatientID  string `json:"patient_id"`
	DoctorID   string `json:"doctor_id"`
	VisitDate  string `json:"visit_date"`
	TimeWindow string `json:"time_window"`
}

type CancelAppointmentRequest struct {
	PatientID string `json:"patient_id"`
}

type StartConsultationRequest struct {
	Complaint string `json:"complaint"`
}

type CompleteConsultationRequest struct {
	Complaint       string `json:"complaint"`
	Diagnosis       string `json:"diagnosis"`
	Plan            string `json:"plan"`
	Prescription    string `json:"prescription"`
	FeeCents        int64  `json:"fee_cents"`
	DurationMinutes int    `json:"duration_minutes"`
}

type CreateSlotRequest struct {
	DoctorID   string `json:"doctor_id"`
	VisitDate  string `json:"visit_date"`
	TimeWindow string `json:"time_window"`
	TotalQuota int    `json:"total_quota"`
}

type BulkCreateSlotsRequest struct {
	DoctorIDs   []string `json:"doctor_ids"`
	FromDate    string   `json:"from_date"`
	ToDate      string   `json:"to_date"`
	TimeWindows []string `json:"time_windows"`
	TotalQuota  int      `json:"total_quota"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	SlotID         uuid.UUID `json:"slot_id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	VisitDate      string    `json:"visit_date"`
	TimeWindow     string    `json:"time_window"`
	QueueNumber    int       `json:"queue_number"`
	Status         string    `json:"status"`
	PatientName    string    `json:"patient_name"`
	DoctorName     string    `json:"doctor_name"`
	DoctorCategory string    `json:"doctor_category"`
	Department     string    `json:"department"`
	CreatedAt      time.Time `json:"created_at"`
}

type ConsultationResponse struct {
	ID              uuid.UUID `json:"id"`
	AppointmentID   uuid.UUID `json:"appointment_id"`
	Status          string    `json:"status"`
	Complaint       string    `json:"complaint,omitempty"`
	Diagnosis       string    `json:"diagnosis,omitempty"`
	Plan            string    `json:"plan,omitempty"`
	Prescription    string    `json:"prescription,omitempty"`
	FeeCents        int64     `json:"fee_cents"`
	DurationMinutes int       `json:"duration_minutes"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type SlotResponse struct {
	ID             uuid.UUID `json:"id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	VisitDate      string    `json:"visit_date"`
	TimeWindow     string    `json:"time_window"`
	TotalQuota     int       `json:"total_quota"`
	RemainingQuota int       `json:"remaining_quota"`
	Status         string    `json:"status"`
}

type SweepConflict struct {
	DoctorID   uuid.UUID `json:"doctor_id"`
	VisitDate  string    `json:"visit_date"`
	TimeWindow string    `json:"time_window"`
}

type SweepResponse struct {
	Created   int             `json:"created"`
	Conflicts []SweepConflict `json:"conflicts"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		SlotID:         a.SlotID,
		DoctorID:       a.DoctorID,
		PatientID:      a.PatientID,
		VisitDate:      a.VisitDate.Format(dateLayout),
		TimeWindow:     string(a.Window),
		QueueNumber:    a.QueueNumber,
		Status:         string(a.Status),
		PatientName:    a.PatientName,
		DoctorName:     a.DoctorName,
		DoctorCategory: a.DoctorCategory,
		Department:     a.Department,
		CreatedAt:      a.CreatedAt,
	}
}

func toConsultationResponse(c *booking.ConsultationRecord) ConsultationResponse {
	return ConsultationResponse{
		ID:              c.ID,
		AppointmentID:   c.AppointmentID,
		Status:          string(c.Status),
		Complaint:       c.Complaint,
		Diagnosis:       c.Diagnosis,
		Plan:            c.Plan,
		Prescription:    c.Prescription,
		FeeCents:        c.FeeCents,
		DurationMinutes: c.DurationMinutes,
		UpdatedAt:       c.UpdatedAt,
	}
}

func toSlotResponse(s *booking.Slot) SlotResponse {
	return SlotResponse{
		ID:             s.ID,
		DoctorID:       s.DoctorID,
		VisitDate:      s.VisitDate.Format(dateLayout),
		TimeWindow:     string(s.Window),
		TotalQuota:     s.TotalQuota,
		RemainingQuota: s.RemainingQuota,
		Status:         string(s.Status),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

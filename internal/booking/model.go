package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusConfirmed  AppointmentStatus = "CONFIRMED"
	StatusInProgress AppointmentStatus = "IN_PROGRESS"
	StatusCompleted  AppointmentStatus = "COMPLETED"
	StatusCancelled  AppointmentStatus = "CANCELLED"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "AVAILABLE"
	SlotClosed    SlotStatus = "CLOSED"
)

type ConsultationStatus string

const (
	ConsultationInProgress ConsultationStatus = "IN_PROGRESS"
	ConsultationCompleted  ConsultationStatus = "COMPLETED"
)

// TimeWindow tags the part of day a slot covers. Each window maps to a fixed
// representative start time used for the cancellation cutoff, independent of
// any future per-slot start times.
type TimeWindow string

const (
	WindowMorning   TimeWindow = "MORNING"
	WindowAfternoon TimeWindow = "AFTERNOON"
	WindowEvening   TimeWindow = "EVENING"
)

func (w TimeWindow) Valid() bool {
	switch w {
	case WindowMorning, WindowAfternoon, WindowEvening:
		return true
	}
	return false
}

// StartHour returns the representative clock hour for the window.
func (w TimeWindow) StartHour() int {
	switch w {
	case WindowMorning:
		return 9
	case WindowAfternoon:
		return 14
	case WindowEvening:
		return 19
	}
	return 0
}

// VisitStart combines a visit date with the window's representative start time.
func VisitStart(date time.Time, w TimeWindow) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), w.StartHour(), 0, 0, 0, date.Location())
}

// DateOnly truncates a timestamp to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

type Doctor struct {
	ID                     uuid.UUID
	Name                   string
	Category               string
	Department             string
	CompletedConsultations int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is the capacity unit for one doctor on one date in one time window.
// RemainingQuota only moves through the conditional decrement / increment in
// the repository; it is never recomputed from appointment counts.
type Slot struct {
	ID             uuid.UUID
	DoctorID       uuid.UUID
	VisitDate      time.Time
	Window         TimeWindow
	TotalQuota     int
	RemainingQuota int
	Status         SlotStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Appointment is one patient's claim on a slot. Patient and doctor details
// are copied at booking time so later profile edits never rewrite history.
// Appointments are cancelled, never deleted.
type Appointment struct {
	ID          uuid.UUID
	SlotID      uuid.UUID
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	VisitDate   time.Time
	Window      TimeWindow
	QueueNumber int
	Status      AppointmentStatus

	// Snapshot fields, frozen at creation.
	PatientName    string
	PatientPhone   string
	DoctorName     string
	DoctorCategory string
	Department     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConsultationRecord is the clinical encounter tied 1:1 to an appointment.
// The appointment_id unique constraint is what makes concurrent start calls
// converge on a single row.
type ConsultationRecord struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Status        ConsultationStatus

	Complaint       string
	Diagnosis       string
	Plan            string
	Prescription    string
	FeeCents        int64
	DurationMinutes int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClinicalNotes carries the fields supplied when a consultation completes.
type ClinicalNotes struct {
	Complaint       string
	Diagnosis       string
	Plan            string
	Prescription    string
	FeeCents        int64
	DurationMinutes int
}

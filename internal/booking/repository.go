package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrSlotNotFound         = errors.New("schedule slot not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrConsultationNotFound = errors.New("consultation record not found")
	ErrSlotExists           = errors.New("schedule slot already exists for doctor, date and window")
	ErrSlotInUse            = errors.New("schedule slot has appointments and cannot be deleted")
)

// Repository contains all DB interactions needed by the service.
//
// CreateAppointment and CancelAppointment are transactional: the quota
// change and the appointment row change commit or fail as one unit. The
// conditional quota decrement is the serialization point for a slot, so
// queue numbers read on the same transaction cannot collide.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Slot capacity store
	CreateSlot(ctx context.Context, slot *Slot) error
	GetSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, window TimeWindow) (*Slot, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	UpdateSlotStatus(ctx context.Context, id uuid.UUID, status SlotStatus) error
	DeleteSlot(ctx context.Context, id uuid.UUID) error

	// Booking transaction: decrement quota if available, allocate the next
	// queue number and insert the appointment. Returns ErrScheduleFull when
	// the slot is exhausted.
	CreateAppointment(ctx context.Context, appt *Appointment) error

	// Cancellation transaction: flip CONFIRMED to CANCELLED and restore one
	// unit of quota. Returns ErrInvalidTransition when the appointment is no
	// longer CONFIRMED.
	CancelAppointment(ctx context.Context, appointmentID, slotID uuid.UUID) error

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListConfirmedByDate(ctx context.Context, date time.Time) ([]Appointment, error)

	// Consultation lifecycle. Upserts are keyed by the unique appointment_id
	// so duplicate starts converge on one row.
	UpsertConsultationStart(ctx context.Context, rec *ConsultationRecord) error
	CompleteConsultation(ctx context.Context, rec *ConsultationRecord) error
	GetConsultationByAppointment(ctx context.Context, appointmentID uuid.UUID) (*ConsultationRecord, error)
	RefreshDoctorCompletedCount(ctx context.Context, doctorID uuid.UUID) (int, error)
}

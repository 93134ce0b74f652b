package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medicove/outpatient-booking/internal/notify"
	"github.com/medicove/outpatient-booking/internal/redisclient"
	"github.com/medicove/outpatient-booking/internal/settings"
)

var (
	ErrMaintenance            = errors.New("system is in maintenance mode")
	ErrAppointmentTimeInvalid = errors.New("appointment date is outside the bookable window")
	ErrDoctorNoCategory       = errors.New("doctor has no category assigned")
	ErrScheduleClosed         = errors.New("schedule slot is closed")
	ErrScheduleFull           = errors.New("schedule slot is fully booked")
	ErrNotOwner               = errors.New("appointment belongs to a different patient")
	ErrCancelCutoff           = errors.New("too close to the visit start to cancel")
	ErrInvalidTransition      = errors.New("invalid appointment status transition")

	// ErrStorage is the generic persistence failure surfaced to callers.
	// The underlying cause is logged, not returned.
	ErrStorage = errors.New("storage failure")
)

type Service struct {
	repo     Repository
	cache    redisclient.Invalidator
	notifier notify.Gateway
	settings settings.Provider
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, cache redisclient.Invalidator, notifier notify.Gateway, sp settings.Provider, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		settings: sp,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) storageErr(op string, err error) error {
	s.logger.Error().Err(err).Str("op", op).Msg("storage failure")
	return fmt.Errorf("%s: %w", op, ErrStorage)
}

// Book reserves one unit of slot capacity for a patient and persists the
// appointment with a snapshot of patient and doctor details. Cache
// invalidation and notifications run after commit and are best effort.
func (s *Service) Book(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time, window TimeWindow) (*Appointment, error) {
	if s.settings.MaintenanceMode(ctx) {
		return nil, ErrMaintenance
	}

	if !window.Valid() {
		return nil, ErrAppointmentTimeInvalid
	}

	day := DateOnly(date)
	today := DateOnly(s.now())
	horizon := today.AddDate(0, 0, s.settings.AdvanceBookingDays(ctx))
	if day.Before(today) || day.After(horizon) {
		return nil, ErrAppointmentTimeInvalid
	}

	patient, err := s.repo.GetPatientByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, s.storageErr("load patient", err)
	}

	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, s.storageErr("load doctor", err)
	}
	if doctor.Category == "" {
		return nil, ErrDoctorNoCategory
	}

	slot, err := s.repo.GetSlot(ctx, doctorID, day, window)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, err
		}
		return nil, s.storageErr("load slot", err)
	}
	if slot.Status != SlotAvailable {
		return nil, ErrScheduleClosed
	}

	appt := &Appointment{
		SlotID:    slot.ID,
		DoctorID:  doctor.ID,
		PatientID: patient.ID,
		VisitDate: day,
		Window:    window,

		PatientName:    patient.Name,
		PatientPhone:   patient.Phone,
		DoctorName:     doctor.Name,
		DoctorCategory: doctor.Category,
		Department:     doctor.Department,
	}

	if err := s.repo.CreateAppointment(ctx, appt); err != nil {
		if errors.Is(err, ErrScheduleFull) {
			return nil, err
		}
		return nil, s.storageErr("create appointment", err)
	}

	s.invalidateFor(ctx, appt)
	s.notifier.Send(ctx, appt.PatientID,
		"Appointment confirmed",
		fmt.Sprintf("Your appointment with %s on %s (%s) is confirmed, queue number %d.",
			appt.DoctorName, day.Format("2006-01-02"), window, appt.QueueNumber),
		notify.EventAppointmentConfirmed)
	s.notifier.Send(ctx, appt.DoctorID,
		"New appointment",
		fmt.Sprintf("%s booked a %s visit on %s, queue number %d.",
			appt.PatientName, window, day.Format("2006-01-02"), appt.QueueNumber),
		notify.EventAppointmentCreated)

	return appt, nil
}

// Cancel releases a CONFIRMED appointment back to its slot. Only the owning
// patient may cancel, and only while the visit start is further away than
// the configured cutoff.
func (s *Service) Cancel(ctx context.Context, appointmentID, patientID uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return s.storageErr("load appointment", err)
	}

	if appt.PatientID != patientID {
		return ErrNotOwner
	}
	if appt.Status != StatusConfirmed {
		return ErrInvalidTransition
	}

	cutoff := time.Duration(s.settings.CancelCutoffHours(ctx)) * time.Hour
	start := VisitStart(appt.VisitDate, appt.Window)
	if s.now().After(start.Add(-cutoff)) {
		return ErrCancelCutoff
	}

	if err := s.repo.CancelAppointment(ctx, appt.ID, appt.SlotID); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return err
		}
		return s.storageErr("cancel appointment", err)
	}

	s.invalidateFor(ctx, appt)
	s.notifier.Send(ctx, appt.PatientID,
		"Appointment cancelled",
		fmt.Sprintf("Your appointment with %s on %s (%s) has been cancelled.",
			appt.DoctorName, appt.VisitDate.Format("2006-01-02"), appt.Window),
		notify.EventAppointmentCancelled)

	return nil
}

// invalidateFor drops the read caches affected by a booking state change:
// the doctor's list and daily stats when the visit is today, and the
// patient's recent appointments always.
func (s *Service) invalidateFor(ctx context.Context, appt *Appointment) {
	keys := []string{redisclient.PatientAppointmentsKey(appt.PatientID)}
	if appt.VisitDate.Equal(DateOnly(s.now())) {
		keys = append(keys,
			redisclient.DoctorVisitsKey(appt.DoctorID, appt.VisitDate),
			redisclient.DailyStatsKey(appt.VisitDate),
		)
	}
	s.cache.Invalidate(ctx, keys...)
}

// -- Slot management --

// CreateSlot opens bookable capacity for one doctor, date and window.
func (s *Service) CreateSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, window TimeWindow, totalQuota int) (*Slot, error) {
	if !window.Valid() || totalQuota <= 0 {
		return nil, ErrAppointmentTimeInvalid
	}
	day := DateOnly(date)
	if day.Before(DateOnly(s.now())) {
		return nil, ErrAppointmentTimeInvalid
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, s.storageErr("load doctor", err)
	}

	slot := &Slot{
		DoctorID:   doctorID,
		VisitDate:  day,
		Window:     window,
		TotalQuota: totalQuota,
		Status:     SlotAvailable,
	}
	if err := s.repo.CreateSlot(ctx, slot); err != nil {
		if errors.Is(err, ErrSlotExists) {
			return nil, err
		}
		return nil, s.storageErr("create slot", err)
	}
	return slot, nil
}

// SlotConflict identifies a sweep triple that already had a slot.
type SlotConflict struct {
	DoctorID  uuid.UUID
	VisitDate time.Time
	Window    TimeWindow
}

// SweepResult reports a bulk scheduling run.
type SweepResult struct {
	Created   int
	Conflicts []SlotConflict
}

// CreateSlotSweep schedules a date range for a set of doctors and windows.
// Triples that already have a slot are skipped and reported as conflicts,
// never overwritten.
func (s *Service) CreateSlotSweep(ctx context.Context, doctorIDs []uuid.UUID, from, to time.Time, windows []TimeWindow, totalQuota int) (*SweepResult, error) {
	if totalQuota <= 0 || len(windows) == 0 || len(doctorIDs) == 0 {
		return nil, ErrAppointmentTimeInvalid
	}
	for _, w := range windows {
		if !w.Valid() {
			return nil, ErrAppointmentTimeInvalid
		}
	}
	first := DateOnly(from)
	last := DateOnly(to)
	if last.Before(first) {
		return nil, ErrAppointmentTimeInvalid
	}

	result := &SweepResult{}
	for _, doctorID := range doctorIDs {
		for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
			for _, window := range windows {
				slot := &Slot{
					DoctorID:   doctorID,
					VisitDate:  day,
					Window:     window,
					TotalQuota: totalQuota,
					Status:     SlotAvailable,
				}
				err := s.repo.CreateSlot(ctx, slot)
				if err != nil {
					if errors.Is(err, ErrSlotExists) {
						result.Conflicts = append(result.Conflicts, SlotConflict{
							DoctorID:  doctorID,
							VisitDate: day,
							Window:    window,
						})
						continue
					}
					return nil, s.storageErr("create slot in sweep", err)
				}
				result.Created++
			}
		}
	}
	return result, nil
}

// DeleteSlot removes an unused slot. Slots with any appointment history are
// kept to preserve queue numbering and the audit trail.
func (s *Service) DeleteSlot(ctx context.Context, slotID uuid.UUID) error {
	err := s.repo.DeleteSlot(ctx, slotID)
	if err == nil || errors.Is(err, ErrSlotNotFound) || errors.Is(err, ErrSlotInUse) {
		return err
	}
	return s.storageErr("delete slot", err)
}

func (s *Service) CloseSlot(ctx context.Context, slotID uuid.UUID) error {
	return s.setSlotStatus(ctx, slotID, SlotClosed)
}

func (s *Service) OpenSlot(ctx context.Context, slotID uuid.UUID) error {
	return s.setSlotStatus(ctx, slotID, SlotAvailable)
}

func (s *Service) setSlotStatus(ctx context.Context, slotID uuid.UUID, status SlotStatus) error {
	err := s.repo.UpdateSlotStatus(ctx, slotID, status)
	if err == nil || errors.Is(err, ErrSlotNotFound) {
		return err
	}
	return s.storageErr("update slot status", err)
}

// -- Queries --

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, s.storageErr("load appointment", err)
	}
	return appt, nil
}

// DoctorVisits returns a doctor's appointment list for one date, ordered by
// queue number.
func (s *Service) DoctorVisits(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	appts, err := s.repo.ListAppointmentsByDoctorDate(ctx, doctorID, DateOnly(date))
	if err != nil {
		return nil, s.storageErr("list doctor visits", err)
	}
	return appts, nil
}

func (s *Service) PatientAppointments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	appts, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, s.storageErr("list patient appointments", err)
	}
	return appts, nil
}

// SendVisitReminders notifies every patient with a CONFIRMED visit on the
// given date. Called by the reminder worker; delivery is best effort.
func (s *Service) SendVisitReminders(ctx context.Context, date time.Time) (int, error) {
	appts, err := s.repo.ListConfirmedByDate(ctx, DateOnly(date))
	if err != nil {
		return 0, s.storageErr("list confirmed visits", err)
	}

	for _, appt := range appts {
		s.notifier.Send(ctx, appt.PatientID,
			"Visit reminder",
			fmt.Sprintf("Reminder: your appointment with %s is on %s (%s), queue number %d.",
				appt.DoctorName, appt.VisitDate.Format("2006-01-02"), appt.Window, appt.QueueNumber),
			notify.EventVisitReminder)
	}
	return len(appts), nil
}

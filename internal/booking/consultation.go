package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/medicove/outpatient-booking/internal/notify"
	"github.com/medicove/outpatient-booking/internal/redisclient"
)

// StartConsultation begins the in-person visit for a booked appointment.
// The call is idempotent: repeated starts update the one existing record,
// and starting an already completed consultation is a no-op success.
func (s *Service) StartConsultation(ctx context.Context, appointmentID uuid.UUID, complaint string) (*ConsultationRecord, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, s.storageErr("load appointment", err)
	}

	switch appt.Status {
	case StatusCancelled:
		return nil, ErrInvalidTransition
	case StatusCompleted:
		rec, err := s.repo.GetConsultationByAppointment(ctx, appointmentID)
		if err != nil {
			if errors.Is(err, ErrConsultationNotFound) {
				return nil, err
			}
			return nil, s.storageErr("load consultation", err)
		}
		return rec, nil
	}

	rec := &ConsultationRecord{
		AppointmentID: appointmentID,
		Status:        ConsultationInProgress,
		Complaint:     complaint,
	}
	if err := s.repo.UpsertConsultationStart(ctx, rec); err != nil {
		return nil, s.storageErr("start consultation", err)
	}

	s.cache.Invalidate(ctx,
		redisclient.DoctorVisitsKey(appt.DoctorID, appt.VisitDate),
		redisclient.DailyStatsKey(appt.VisitDate),
	)

	return rec, nil
}

// CompleteConsultation finalizes the visit with the supplied clinical fields
// and moves both the record and the appointment to COMPLETED. Completing an
// already completed visit is a no-op; the stored clinical fields stay as
// they were. Afterwards the doctor's lifetime completed count is recomputed
// (best effort) and the affected read caches are dropped.
func (s *Service) CompleteConsultation(ctx context.Context, appointmentID uuid.UUID, notes ClinicalNotes) (*ConsultationRecord, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, s.storageErr("load appointment", err)
	}

	switch appt.Status {
	case StatusCancelled:
		return nil, ErrInvalidTransition
	case StatusCompleted:
		rec, err := s.repo.GetConsultationByAppointment(ctx, appointmentID)
		if err != nil {
			if errors.Is(err, ErrConsultationNotFound) {
				return nil, err
			}
			return nil, s.storageErr("load consultation", err)
		}
		return rec, nil
	}

	rec := &ConsultationRecord{
		AppointmentID:   appointmentID,
		Status:          ConsultationCompleted,
		Complaint:       notes.Complaint,
		Diagnosis:       notes.Diagnosis,
		Plan:            notes.Plan,
		Prescription:    notes.Prescription,
		FeeCents:        notes.FeeCents,
		DurationMinutes: notes.DurationMinutes,
	}
	if err := s.repo.CompleteConsultation(ctx, rec); err != nil {
		return nil, s.storageErr("complete consultation", err)
	}

	if _, err := s.repo.RefreshDoctorCompletedCount(ctx, appt.DoctorID); err != nil {
		// Drift here is corrected by the next completion.
		s.logger.Warn().Err(err).Stringer("doctor_id", appt.DoctorID).Msg("completed count refresh failed")
	}

	s.cache.Invalidate(ctx,
		redisclient.DoctorVisitsKey(appt.DoctorID, appt.VisitDate),
		redisclient.DailyStatsKey(appt.VisitDate),
		redisclient.PatientAppointmentsKey(appt.PatientID),
	)

	s.notifier.Send(ctx, appt.PatientID,
		"Visit completed",
		"Your consultation has been completed. The visit summary is available in your records.",
		notify.EventAppointmentCompleted)

	return rec, nil
}

package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func bookOne(t *testing.T, h *harness) *Appointment {
	t.Helper()
	doctorID := h.repo.addDoctor("Dr. Lin", "Attending Physician", "Neurology")
	patientID := h.repo.addPatient("Ann", "555-0101")
	h.repo.addSlot(doctorID, tomorrow(), WindowAfternoon, 5)

	appt, err := h.svc.Book(context.Background(), patientID, doctorID, tomorrow(), WindowAfternoon)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return appt
}

func TestStartConsultationMovesAppointmentInProgress(t *testing.T) {
	h := newHarness()
	appt := bookOne(t, h)

	rec, err := h.svc.StartConsultation(context.Background(), appt.ID, "persistent cough")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if rec.Status != ConsultationInProgress {
		t.Errorf("record status = %s, want %s", rec.Status, ConsultationInProgress)
	}
	if rec.Complaint != "persistent cough" {
		t.Errorf("complaint = %q", rec.Complaint)
	}

	stored, _ := h.svc.GetAppointment(context.Background(), appt.ID)
	if stored.Status != StatusInProgress {
		t.Errorf("appointment status = %s, want %s", stored.Status, StatusInProgress)
	}
}

func TestStartConsultationIsIdempotent(t *testing.T) {
	h := newHarness()
	appt := bookOne(t, h)

	first, err := h.svc.StartConsultation(context.Background(), appt.ID, "first complaint")
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	second, err := h.svc.StartConsultation(context.Background(), appt.ID, "updated complaint")
	if err != nil {
		t.Fatalf("second start: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("record IDs differ: %s vs %s", first.ID, second.ID)
	}
	if second.Complaint != "updated complaint" {
		t.Errorf("complaint = %q, want the later value", second.Complaint)
	}

	h.repo.mu.Lock()
	records := len(h.repo.consultations)
	h.repo.mu.Unlock()
	if records != 1 {
		t.Errorf("consultation records = %d, want 1", records)
	}
}

func TestStartConsultationConcurrentCallsConverge(t *testing.T) {
	h := newHarness()
	appt := bookOne(t, h)

	const callers = 8

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.StartConsultation(context.Background(), appt.ID, "complaint")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}

	h.repo.mu.Lock()
	records := len(h.repo.consultations)
	h.repo.mu.Unlock()
	if records != 1 {
		t.Errorf("consultation records = %d, want 1", records)
	}
}

func TestStartConsultationOnCancelledAppointment(t *testing.T) {
	h := newHarness()
	appt := bookOne(t, h)

	if err := h.svc.Cancel(context.Background(), appt.ID, appt.PatientID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := h.svc.StartConsultation(context.Background(), appt.ID, "complaint"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestStartConsultationAfterCompletionIsNoOp(t *testing.T) {
	h := newHarness()
	appt := bookOne(t, h)

	if _, err := h.svc.StartConsultation(context.Background(), appt.ID, "complaint"); err != nil {
		t.Fatalf("start: %v", err)
	}
	done, err := h.svc.CompleteConsultation(context.Background(), appt.ID, ClinicalNotes{
		Complaint: "complaint", Diagnosis: "flu", Plan: "fluids and rest", FeeCents: 2500, DurationMinutes: 15,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	rec, err := h.svc.StartConsultation(context.Background(), appt.ID, "a different complaint")
	if err != nil {
		t.Fatalf("start after complete: %v", err)
	}
	if rec.Status != ConsultationCompleted {
		t.Errorf("status = %s, want %s", rec.Status, ConsultationCompleted)
	}
	if rec.Diagnosis != done.Diagnosis || rec.Complaint != "complaint" {
		t.Errorf("completed record was modified: %+v", rec)
	}
}

func TestCompleteConsultationStoresClinicalFields(t *testing.T) {
	h := newHarness()
	appt := bookOne(t, h)

	notes := ClinicalNotes{
		Complaint:       "chest pain",
		Diagnosis:       "costochondritis",
		Plan:            "NSAIDs, follow up in two weeks",
		Prescription:    "ibuprofen 400mg",
		FeeCents:        4500,
		DurationMinutes: 25,
	}
	rec, err := h.svc.CompleteConsultation(context.Background(), appt.ID, notes)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if rec.Status != ConsultationCompleted {
		t.Errorf("status = %s, want %s", rec.Status, ConsultationCompleted)
	}
	if rec.Diagnosis != notes.Diagnosis || rec.Prescription != notes.Prescription {
		t.Errorf("clinical fields not stored: %+v", rec)
	}
	if rec.FeeCents != 4500 || rec.DurationMinutes != 25 {
		t.Errorf("fee/duration = %d/%d", rec.FeeCents, rec.DurationMinutes)
	}

	stored, _ := h.svc.GetAppointment(context.Background(), appt.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("appointment status = %s, want %s", stored.Status, StatusCompleted)
	}
	if got := h.gateway.count("APPOINTMENT_COMPLETED"); got != 1 {
		t.Errorf("completion events = %d, want 1", got)
	}
}

func TestCompleteConsultationWithoutStart(t *testing.T) {
	h := newHarness()
	appt := bookOne(t, h)

	// Walk-in completion straight from CONFIRMED.
	rec, err := h.svc.CompleteConsultation(context.Background(), appt.ID, ClinicalNotes{Diagnosis: "healthy"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if rec.Status != ConsultationCompleted {
		t.Errorf("status = %s, want %s", rec.Status, ConsultationCompleted)
	}
}

func TestCompleteConsultationTwiceKeepsFirstRecord(t *testing.T) {
	h := newHarness()
	appt := bookOne(t, h)

	first, err := h.svc.CompleteConsultation(context.Background(), appt.ID, ClinicalNotes{Diagnosis: "original", FeeCents: 1000})
	if err != nil {
		t.Fatalf("first complete: %v", err)
	}
	second, err := h.svc.CompleteConsultation(context.Background(), appt.ID, ClinicalNotes{Diagnosis: "overwrite attempt", FeeCents: 9000})
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}

	if second.Diagnosis != first.Diagnosis || second.FeeCents != first.FeeCents {
		t.Errorf("completed record changed on repeat completion: %+v", second)
	}

	doctor, _ := h.repo.GetDoctorByID(context.Background(), appt.DoctorID)
	if doctor.CompletedConsultations != 1 {
		t.Errorf("completed count = %d, want 1", doctor.CompletedConsultations)
	}
}

func TestCompleteConsultationOnCancelledAppointment(t *testing.T) {
	h := newHarness()
	appt := bookOne(t, h)

	if err := h.svc.Cancel(context.Background(), appt.ID, appt.PatientID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := h.svc.CompleteConsultation(context.Background(), appt.ID, ClinicalNotes{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelAfterConsultationStarted(t *testing.T) {
	h := newHarness()
	appt := bookOne(t, h)

	if _, err := h.svc.StartConsultation(context.Background(), appt.ID, "complaint"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := h.svc.Cancel(context.Background(), appt.ID, appt.PatientID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestCompletedCountRefreshFailureIsAdvisory(t *testing.T) {
	h := newHarness()
	appt := bookOne(t, h)

	h.repo.mu.Lock()
	h.repo.failRefresh = true
	h.repo.mu.Unlock()

	rec, err := h.svc.CompleteConsultation(context.Background(), appt.ID, ClinicalNotes{Diagnosis: "flu"})
	if err != nil {
		t.Fatalf("complete should succeed despite refresh failure: %v", err)
	}
	if rec.Status != ConsultationCompleted {
		t.Errorf("status = %s, want %s", rec.Status, ConsultationCompleted)
	}

	stored, _ := h.svc.GetAppointment(context.Background(), appt.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("appointment status = %s, want %s", stored.Status, StatusCompleted)
	}
}

package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Category,
		&d.Department,
		&d.CompletedConsultations,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.VisitDate,
		&s.Window,
		&s.TotalQuota,
		&s.RemainingQuota,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.DoctorID,
		&a.PatientID,
		&a.VisitDate,
		&a.Window,
		&a.QueueNumber,
		&a.Status,
		&a.PatientName,
		&a.PatientPhone,
		&a.DoctorName,
		&a.DoctorCategory,
		&a.Department,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanConsultation(row pgx.Row) (*ConsultationRecord, error) {
	var c ConsultationRecord

	err := row.Scan(
		&c.ID,
		&c.AppointmentID,
		&c.Status,
		&c.Complaint,
		&c.Diagnosis,
		&c.Plan,
		&c.Prescription,
		&c.FeeCents,
		&c.DurationMinutes,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConsultationNotFound
		}
		return nil, err
	}

	return &c, nil
}

const appointmentColumns = `id, slot_id, doctor_id, patient_id, visit_date, time_window, queue_number, status,
	       patient_name, patient_phone, doctor_name, doctor_category, department, created_at, updated_at`

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, category, department, completed_consultations, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) CreateSlot(ctx context.Context, slot *Slot) error {
	slot.ID = uuid.New()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedule_slots (id, doctor_id, visit_date, time_window, total_quota, remaining_quota, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5, $6, now(), now())
	`, slot.ID, slot.DoctorID, slot.VisitDate, slot.Window, slot.TotalQuota, slot.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotExists
		}
		return fmt.Errorf("insert schedule slot: %w", err)
	}

	slot.RemainingQuota = slot.TotalQuota
	return nil
}

func (r *PgRepository) GetSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, window TimeWindow) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, visit_date, time_window, total_quota, remaining_quota, status, created_at, updated_at
		FROM schedule_slots
		WHERE doctor_id = $1 AND visit_date = $2 AND time_window = $3
	`, doctorID, date, window)
	return scanSlot(row)
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, visit_date, time_window, total_quota, remaining_quota, status, created_at, updated_at
		FROM schedule_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) UpdateSlotStatus(ctx context.Context, id uuid.UUID, status SlotStatus) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE schedule_slots
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("update slot status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `
		DELETE FROM schedule_slots
		WHERE id = $1
		  AND NOT EXISTS (SELECT 1 FROM appointments WHERE slot_id = $1)
	`, id)
	if err != nil {
		return fmt.Errorf("delete schedule slot: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// Either the slot is missing or an appointment references it.
		if _, getErr := r.GetSlotByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrSlotInUse
	}
	return nil
}

// CreateAppointment books one unit of slot capacity. The conditional UPDATE
// takes the slot row lock; the queue-number count and the insert ride on the
// same transaction, so a concurrent booking against the same slot either
// waits behind the lock or observes the committed state.
func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE schedule_slots
		SET remaining_quota = remaining_quota - 1,
		    updated_at = now()
		WHERE id = $1
		  AND remaining_quota > 0
	`, appt.SlotID)
	if err != nil {
		return fmt.Errorf("decrement slot quota: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrScheduleFull
	}

	// Queue numbers count every appointment ever made against the slot,
	// cancelled ones included, so historical numbering stays stable.
	var existing int
	if err := tx.QueryRow(ctx, `
		SELECT count(*) FROM appointments WHERE slot_id = $1
	`, appt.SlotID).Scan(&existing); err != nil {
		return fmt.Errorf("count slot appointments: %w", err)
	}
	appt.QueueNumber = existing + 1

	appt.ID = uuid.New()
	appt.Status = StatusConfirmed

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, slot_id, doctor_id, patient_id, visit_date, time_window, queue_number, status,
		                          patient_name, patient_phone, doctor_name, doctor_category, department, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		RETURNING created_at, updated_at
	`, appt.ID, appt.SlotID, appt.DoctorID, appt.PatientID, appt.VisitDate, appt.Window, appt.QueueNumber, appt.Status,
		appt.PatientName, appt.PatientPhone, appt.DoctorName, appt.DoctorCategory, appt.Department,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}

// CancelAppointment flips a CONFIRMED appointment to CANCELLED and restores
// one unit of quota in the same transaction, so a crash between the two can
// never leak capacity.
func (r *PgRepository) CancelAppointment(ctx context.Context, appointmentID, slotID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
	`, appointmentID, StatusCancelled, StatusConfirmed)
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrInvalidTransition
	}

	_, err = tx.Exec(ctx, `
		UPDATE schedule_slots
		SET remaining_quota = remaining_quota + 1,
		    updated_at = now()
		WHERE id = $1
	`, slotID)
	if err != nil {
		return fmt.Errorf("restore slot quota: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cancel tx: %w", err)
	}
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND visit_date = $2
		ORDER BY queue_number
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY visit_date DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListConfirmedByDate(ctx context.Context, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE visit_date = $1 AND status = $2
		ORDER BY doctor_id, queue_number
	`, date, StatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// UpsertConsultationStart creates the consultation record on first start and
// re-affirms IN_PROGRESS on repeats. The appointment_id unique constraint
// makes racing starts converge on one row; a COMPLETED record is left alone.
func (r *PgRepository) UpsertConsultationStart(ctx context.Context, rec *ConsultationRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin consultation tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		INSERT INTO consultation_records (id, appointment_id, status, complaint, diagnosis, plan, prescription, fee_cents, duration_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '', '', '', 0, 0, now(), now())
		ON CONFLICT (appointment_id) DO UPDATE
		SET status = EXCLUDED.status,
		    complaint = EXCLUDED.complaint,
		    updated_at = now()
		WHERE consultation_records.status <> 'COMPLETED'
	`, uuid.New(), rec.AppointmentID, ConsultationInProgress, rec.Complaint)
	if err != nil {
		return fmt.Errorf("upsert consultation record: %w", err)
	}

	if ct.RowsAffected() > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE appointments
			SET status = $2,
			    updated_at = now()
			WHERE id = $1
			  AND status IN ($3, $2)
		`, rec.AppointmentID, StatusInProgress, StatusConfirmed)
		if err != nil {
			return fmt.Errorf("mark appointment in progress: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit consultation tx: %w", err)
	}

	stored, err := r.GetConsultationByAppointment(ctx, rec.AppointmentID)
	if err != nil {
		return err
	}
	*rec = *stored
	return nil
}

// CompleteConsultation writes the final clinical fields and moves both the
// record and the appointment to COMPLETED, creating the record if a start
// was somehow never persisted.
func (r *PgRepository) CompleteConsultation(ctx context.Context, rec *ConsultationRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin completion tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO consultation_records (id, appointment_id, status, complaint, diagnosis, plan, prescription, fee_cents, duration_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		ON CONFLICT (appointment_id) DO UPDATE
		SET status = EXCLUDED.status,
		    complaint = EXCLUDED.complaint,
		    diagnosis = EXCLUDED.diagnosis,
		    plan = EXCLUDED.plan,
		    prescription = EXCLUDED.prescription,
		    fee_cents = EXCLUDED.fee_cents,
		    duration_minutes = EXCLUDED.duration_minutes,
		    updated_at = now()
	`, uuid.New(), rec.AppointmentID, ConsultationCompleted,
		rec.Complaint, rec.Diagnosis, rec.Plan, rec.Prescription, rec.FeeCents, rec.DurationMinutes)
	if err != nil {
		return fmt.Errorf("upsert consultation completion: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status <> $3
	`, rec.AppointmentID, StatusCompleted, StatusCancelled)
	if err != nil {
		return fmt.Errorf("mark appointment completed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit completion tx: %w", err)
	}

	stored, err := r.GetConsultationByAppointment(ctx, rec.AppointmentID)
	if err != nil {
		return err
	}
	*rec = *stored
	return nil
}

func (r *PgRepository) GetConsultationByAppointment(ctx context.Context, appointmentID uuid.UUID) (*ConsultationRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, status, complaint, diagnosis, plan, prescription, fee_cents, duration_minutes, created_at, updated_at
		FROM consultation_records
		WHERE appointment_id = $1
	`, appointmentID)
	return scanConsultation(row)
}

// RefreshDoctorCompletedCount recomputes the doctor's lifetime completed
// consultation count from the records. Not linearizable with concurrent
// completions; the next completion corrects any drift.
func (r *PgRepository) RefreshDoctorCompletedCount(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET completed_consultations = (
			SELECT count(*)
			FROM consultation_records cr
			JOIN appointments a ON a.id = cr.appointment_id
			WHERE a.doctor_id = $1 AND cr.status = $2
		),
		    updated_at = now()
		WHERE id = $1
		RETURNING completed_consultations
	`, doctorID, ConsultationCompleted).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrDoctorNotFound
		}
		return 0, fmt.Errorf("refresh completed count: %w", err)
	}
	return count, nil
}

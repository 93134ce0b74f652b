package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medicove/outpatient-booking/internal/booking"
	"github.com/medicove/outpatient-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 5000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedSlots(context.Background(), pool, doctorIDs, 14); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	categories := []string{
		"Chief Physician",
		"Associate Chief Physician",
		"Attending Physician",
		"Resident Physician",
	}
	departments := []string{
		"Internal Medicine",
		"Dermatology",
		"Cardiology",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		category := categories[gofakeit.Number(0, len(categories)-1)]
		department := departments[gofakeit.Number(0, len(departments)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, category, department, completed_consultations, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 0, now(), now())
		`, id, name, category, department)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			phone := gofakeit.Phone()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, phone, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, phone)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

func seedSlots(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID, days int) error {
	log.Printf("seeding slots for %d doctors over %d days", len(doctorIDs), days)

	windows := []booking.TimeWindow{booking.WindowMorning, booking.WindowAfternoon, booking.WindowEvening}
	today := booking.DateOnly(time.Now())

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	created := 0
	for _, doctorID := range doctorIDs {
		for d := 0; d < days; d++ {
			date := today.AddDate(0, 0, d)
			for _, window := range windows {
				quota := gofakeit.Number(5, 30)
				_, err := tx.Exec(ctx, `
					INSERT INTO schedule_slots (id, doctor_id, visit_date, time_window, total_quota, remaining_quota, status, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $5, $6, now(), now())
					ON CONFLICT (doctor_id, visit_date, time_window) DO NOTHING
				`, uuid.New(), doctorID, date, window, quota, booking.SlotAvailable)
				if err != nil {
					return err
				}
				created++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("slots seeded: %d", created)
	return nil
}

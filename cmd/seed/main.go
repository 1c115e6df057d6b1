package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindmate/scheduling/internal/db"
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

	ids, err := seedSpecialists(context.Background(), pool, 100)
	if err != nil {
		log.Fatalf("seed specialists: %v", err)
	}
	if err := seedSlots(context.Background(), pool, ids); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

func seedSpecialists(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d specialists", count)

	specializations := []string{
		"anxiety", "depression", "trauma", "relationships",
		"stress", "grief", "addiction", "adhd", "eating_disorders", "ocd",
	}
	languages := []string{"English", "Urdu", "Punjabi", "Sindhi", "Pashto"}
	regions := []string{"Karachi", "Lahore", "Islamabad", "Peshawar", "Quetta"}
	types := []string{"psychologist", "psychiatrist", "counselor", "therapist"}
	modeSets := [][]string{
		{"online"},
		{"in_person"},
		{"hybrid"},
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		ids = append(ids, id)

		_, err := tx.Exec(ctx, `
			INSERT INTO specialists (
				id, full_name, specialist_type, specializations, languages,
				rating, years_experience, modes, session_fee, region, status,
				created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		`,
			id,
			gofakeit.Name(),
			types[gofakeit.Number(0, len(types)-1)],
			pickStrings(specializations, gofakeit.Number(1, 3)),
			pickStrings(languages, gofakeit.Number(1, 2)),
			gofakeit.Float64Range(3.0, 5.0),
			gofakeit.Number(1, 20),
			modeSets[gofakeit.Number(0, len(modeSets)-1)],
			float64(gofakeit.Number(15, 80))*100,
			regions[gofakeit.Number(0, len(regions)-1)],
			"approved",
		)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("specialists seeded")
	return ids, nil
}

// seedSlots gives every specialist two weeks of hourly 9-to-5 slots.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, specialists []uuid.UUID) error {
	log.Printf("seeding slots for %d specialists", len(specialists))

	const batchSize = 20

	base := time.Now().Truncate(24 * time.Hour)

	for offset := 0; offset < len(specialists); offset += batchSize {
		end := offset + batchSize
		if end > len(specialists) {
			end = len(specialists)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for _, specID := range specialists[offset:end] {
			for day := 1; day <= 14; day++ {
				dayStart := base.AddDate(0, 0, day)
				for hour := 9; hour < 17; hour++ {
					start := dayStart.Add(time.Duration(hour) * time.Hour)

					_, err := tx.Exec(ctx, `
						INSERT INTO specialist_slots (id, specialist_id, start_time, end_time)
						VALUES ($1, $2, $3, $4)
					`, uuid.New(), specID, start, start.Add(time.Hour))
					if err != nil {
						_ = tx.Rollback(ctx)
						return err
					}
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("slots seeded: %d/%d specialists", end, len(specialists))
	}

	log.Println("slots seeded")
	return nil
}

func pickStrings(from []string, n int) []string {
	if n >= len(from) {
		n = len(from)
	}
	out := make([]string, 0, n)
	seen := map[int]bool{}
	for len(out) < n {
		idx := gofakeit.Number(0, len(from)-1)
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, from[idx])
	}
	return out
}

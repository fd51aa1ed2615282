package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediconnect/telehealth-api/internal/appointment"
	"github.com/mediconnect/telehealth-api/internal/db"
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

	pool, err := db.ConnectPostgres(ctx, dsn, 4, 1)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedProviders(context.Background(), pool, 50); err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 500); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

var specializations = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

// weekdayPool is what providers get sampled from; weekends stay off.
var weekdayPool = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d providers", count)

	for i := 0; i < count; i++ {
		days := pickDays()
		template := appointment.WeeklyTemplate{}
		for _, day := range days {
			template[day] = []appointment.Window{
				{StartTime: "09:00", EndTime: "10:00", Enabled: true},
				{StartTime: "10:00", EndTime: "11:00", Enabled: true},
				{StartTime: "14:00", EndTime: "15:00", Enabled: gofakeit.Bool()},
			}
		}

		rawTemplate, err := json.Marshal(template)
		if err != nil {
			return err
		}

		_, err = pool.Exec(ctx, `
			INSERT INTO providers (id, user_id, name, specialization, consultation_fee, available_days, weekly_template)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New(), uuid.New(), gofakeit.Name(),
			specializations[gofakeit.Number(0, len(specializations)-1)],
			gofakeit.Number(300, 1500), days, rawTemplate)
		if err != nil {
			return err
		}
	}

	return nil
}

func pickDays() []string {
	n := gofakeit.Number(2, len(weekdayPool))
	seen := map[string]bool{}
	var days []string
	for len(days) < n {
		day := weekdayPool[gofakeit.Number(0, len(weekdayPool)-1)]
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	return days
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	for i := 0; i < count; i++ {
		email := gofakeit.Email()
		_, err := pool.Exec(ctx, `
			INSERT INTO patients (id, user_id, name, email)
			VALUES ($1, $2, $3, $4)
		`, uuid.New(), uuid.New(), gofakeit.Name(), &email)
		if err != nil {
			return err
		}
	}

	return nil
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediconnect/telehealth-api/internal/appointment"
	"github.com/mediconnect/telehealth-api/internal/config"
	"github.com/mediconnect/telehealth-api/internal/db"
)

// simulate probes the no-double-booking guarantee: it aims N concurrent
// booking requests at one (provider, date, slot) tuple and reports how many
// were accepted. Anything other than exactly one 201 is a correctness bug.

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	baseURL := getenv("API_BASE_URL", "http://127.0.0.1:"+cfg.HTTPPort)
	workers := 20

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.PgMaxConns, cfg.PgMinConns)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	patients, err := loadPatientUsers(ctx, pool, workers)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}
	if len(patients) < workers {
		log.Fatalf("need %d seeded patients, found %d (run cmd/seed first)", workers, len(patients))
	}

	providerID, date, slot, err := pickTuple(ctx, pool, cfg)
	if err != nil {
		log.Fatalf("pick booking tuple: %v", err)
	}

	log.Printf("targeting provider=%s date=%s slot=%s-%s with %d workers",
		providerID, date, slot.StartTime, slot.EndTime, workers)

	var created, conflicts, other atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()

			status, err := book(baseURL, cfg.JWTSecret, userID, providerID, date, slot)
			switch {
			case err != nil:
				other.Add(1)
				log.Printf("request error: %v", err)
			case status == http.StatusCreated:
				created.Add(1)
			case status == http.StatusConflict:
				conflicts.Add(1)
			default:
				other.Add(1)
				log.Printf("unexpected status %d", status)
			}
		}(patients[i])
	}
	wg.Wait()

	log.Printf("created=%d conflicts=%d other=%d", created.Load(), conflicts.Load(), other.Load())
	if created.Load() != 1 {
		log.Fatalf("DOUBLE BOOKING: expected exactly 1 created, got %d", created.Load())
	}
	log.Println("no double booking observed")
}

func loadPatientUsers(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `
		SELECT user_id
		FROM patients
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func book(baseURL, secret string, userID, providerID uuid.UUID, date string, slot appointment.TimeSlot) (int, error) {
	token, err := signToken(secret, userID)
	if err != nil {
		return 0, err
	}

	body, err := json.Marshal(map[string]any{
		"provider_id": providerID.String(),
		"date":        date,
		"time_slot": map[string]string{
			"start_time": slot.StartTime,
			"end_time":   slot.EndTime,
		},
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/v1/appointments", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

func signToken(secret string, userID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": "patient",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func pickTuple(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) (uuid.UUID, string, appointment.TimeSlot, error) {
	row := pool.QueryRow(ctx, `
		SELECT id, available_days, weekly_template
		FROM providers
		WHERE array_length(available_days, 1) > 0
		LIMIT 1
	`)

	var providerID uuid.UUID
	var days []string
	var rawTemplate []byte
	if err := row.Scan(&providerID, &days, &rawTemplate); err != nil {
		return uuid.Nil, "", appointment.TimeSlot{}, err
	}

	var template appointment.WeeklyTemplate
	if err := json.Unmarshal(rawTemplate, &template); err != nil {
		return uuid.Nil, "", appointment.TimeSlot{}, err
	}

	availability := appointment.Availability{
		ProviderID:    providerID,
		AvailableDays: days,
		Template:      template,
	}

	for _, day := range availability.ProjectSlots(time.Now().In(cfg.Location()).AddDate(0, 0, 1), cfg.HorizonDays) {
		if len(day.Windows) == 0 {
			continue
		}
		win := day.Windows[0]
		return providerID, day.Date.Format("2006-01-02"), appointment.TimeSlot{
			StartTime: win.StartTime,
			EndTime:   win.EndTime,
		}, nil
	}

	return uuid.Nil, "", appointment.TimeSlot{}, fmt.Errorf("provider %s has no projectable slots", providerID)
}

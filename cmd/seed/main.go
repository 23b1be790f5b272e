// seed fills the store with fake experts and a week of open slots each,
// for local development and the simulator.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/sathi-care/booking-service/internal/booking"
	"github.com/sathi-care/booking-service/internal/config"
	"github.com/sathi-care/booking-service/internal/db"
)

func main() {
	experts := flag.Int("experts", 20, "number of experts to seed slots for")
	days := flag.Int("days", 7, "days of availability per expert")
	perDay := flag.Int("per-day", 8, "slots per expert per day")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())
	repo := booking.NewPgRepository(pool)

	total := 0
	for i := 0; i < *experts; i++ {
		expertID := uuid.New()
		slots := buildSlots(expertID, *days, *perDay)

		created, err := repo.InsertSlots(ctx, slots)
		if err != nil {
			log.Fatalf("seed slots for expert %s: %v", expertID, err)
		}
		total += len(created)
	}

	log.Printf("seed complete: %d slots across %d experts", total, *experts)
}

func buildSlots(expertID uuid.UUID, days, perDay int) []booking.Slot {
	now := time.Now().UTC()
	fee := int64(gofakeit.Number(300, 1500))

	var slots []booking.Slot
	for d := 1; d <= days; d++ {
		// Sessions start at 09:00 UTC, back to back, 50 min + 10 min gap.
		day := now.AddDate(0, 0, d)
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, time.UTC)

		for s := 0; s < perDay; s++ {
			start := dayStart.Add(time.Duration(s) * time.Hour)
			slots = append(slots, booking.Slot{
				ID:           uuid.New(),
				ProviderID:   expertID,
				StartAt:      start,
				EndAt:        start.Add(50 * time.Minute),
				DurationMins: booking.DefaultDurationMins,
				Status:       booking.SlotOpen,
				Notes:        gofakeit.Sentence(4),
				Fee:          fee,
				Currency:     "NPR",
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
	}
	return slots
}

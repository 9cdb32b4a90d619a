// seed inserts a handful of dev schedules into the local database: one far
// enough out to arm normally, one inside the advance window, one already
// past, and four weekly occurrences. Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/example/court-scheduler/internal/infrastructure/postgres"
)

const advanceWindow = 168 * time.Hour

type scheduleSpec struct {
	id         string
	kind       string
	desiredIn  time.Duration
	recurrence string
	courtID    string
}

var seeds = []scheduleSpec{
	// Normal path: trigger is still ahead.
	{"11111111-0000-0000-0000-000000000001", "one-off", advanceWindow + 48*time.Hour, "", "1"},

	// Rescue path: already inside the advance window.
	{"11111111-0000-0000-0000-000000000002", "one-off", 24 * time.Hour, "", "2"},

	// Past-due: reconciliation should leave it pending and warn.
	{"11111111-0000-0000-0000-000000000003", "one-off", -2 * time.Hour, "", ""},

	// Weekly occurrences, pre-expanded the way the create path would.
	{"11111111-0000-0000-0000-000000000004", "recurring", advanceWindow + 1*24*time.Hour, "0 18 * * 6", "1"},
	{"11111111-0000-0000-0000-000000000005", "recurring", advanceWindow + 8*24*time.Hour, "0 18 * * 6", "1"},
	{"11111111-0000-0000-0000-000000000006", "recurring", advanceWindow + 15*24*time.Hour, "0 18 * * 6", "1"},
	{"11111111-0000-0000-0000-000000000007", "recurring", advanceWindow + 22*24*time.Hour, "0 18 * * 6", "1"},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set — run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	now := time.Now()
	var inserted, skipped int

	for _, spec := range seeds {
		desired := now.Add(spec.desiredIn).Truncate(time.Minute)

		var recurrence, courtID *string
		if spec.recurrence != "" {
			recurrence = &spec.recurrence
		}
		if spec.courtID != "" {
			courtID = &spec.courtID
		}

		tag, err := pool.Exec(ctx, `
			INSERT INTO schedules (
				id, kind, desired_at, trigger_at, recurrence,
				court_id, duration_min, status
			) VALUES ($1, $2, $3, $4, $5, $6, 60, 'pending')
			ON CONFLICT (id) DO NOTHING`,
			spec.id, spec.kind, desired, desired.Add(-advanceWindow),
			recurrence, courtID,
		)
		if err != nil {
			log.Fatalf("insert schedule %s: %v", spec.id, err)
		}
		if tag.RowsAffected() == 0 {
			skipped++
		} else {
			inserted++
		}
	}

	fmt.Println("Seed complete")
	fmt.Printf("  Inserted: %d\n", inserted)
	fmt.Printf("  Skipped:  %d (already present)\n", skipped)
}

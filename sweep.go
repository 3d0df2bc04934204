package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// RunExpirySweep reclassifies item statuses once. Exposed separately from the
// scheduler so a sweep can be triggered at startup and from tests.
func RunExpirySweep(cfg Config, db *sql.DB) (int, error) {
	return UpdateExpiryStatuses(db, cfg.ExpiryWarnDays, time.Now())
}

// StartExpirySweepScheduler runs RunExpirySweep daily at the configured
// clock time. The sweep only maintains the status column; it never deletes
// items or sends notifications.
func StartExpirySweepScheduler(cfg Config, db *sql.DB) {
	hour, min, err := parseClock(cfg.ExpirySweepTime)
	if err != nil {
		log.Printf("Invalid expiry_sweep_time '%s': %v — sweep disabled", cfg.ExpirySweepTime, err)
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(fmt.Sprintf("%d %d * * *", min, hour))
	if err != nil {
		log.Printf("Invalid sweep schedule: %v — sweep disabled", err)
		return
	}

	log.Printf("Expiry sweep scheduled daily at %02d:%02d (warn window %d days)", hour, min, cfg.ExpiryWarnDays)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next expiry sweep at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			updated, err := RunExpirySweep(cfg, db)
			if err != nil {
				log.Printf("Expiry sweep error: %v", err)
				continue
			}
			log.Printf("Expiry sweep complete: %d items reclassified", updated)
		}
	}()
}

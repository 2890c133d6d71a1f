package jobs

import (
	"fmt"
	"log"
	"time"

	"loan-allocation-backend/internal/config"

	"github.com/robfig/cron/v3"
)

const defaultRetentionSchedule = "0 3 * * *"

type Purger interface {
	PurgeOlderThan(cutoff time.Time) (int, error)
}

// StartRetention schedules the purge of runs older than cfg.Days. It returns
// a nil scheduler when retention is disabled.
func StartRetention(cfg config.RetentionConfig, p Purger) (*cron.Cron, error) {
	if cfg.Days <= 0 {
		log.Println("[retention] disabled")
		return nil, nil
	}
	if cfg.Schedule == "" {
		cfg.Schedule = defaultRetentionSchedule
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.Schedule, func() {
		if _, err := PurgeExpired(p, cfg.Days, time.Now()); err != nil {
			log.Printf("[retention] purge failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("unable to schedule retention job: %w", err)
	}

	c.Start()
	log.Printf("[AUDIT] retention scheduler started: keep %d days, schedule %q (%s)", cfg.Days, cfg.Schedule, loc)
	return c, nil
}

// PurgeExpired removes runs created more than days before now.
func PurgeExpired(p Purger, days int, now time.Time) (int, error) {
	cutoff := now.AddDate(0, 0, -days)
	n, err := p.PurgeOlderThan(cutoff)
	if err != nil {
		return n, err
	}
	log.Printf("[retention] purged %d runs created before %s", n, cutoff.Format(time.RFC3339))
	return n, nil
}

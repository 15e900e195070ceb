// Package retention prunes expired abuse-tracking state: per-device
// ledgers past their window and resolved moderation audit rows.
package retention

import (
	"log"
	"time"

	"gorm.io/gorm"

	dbpkg "audiogate/internal/db"
	"audiogate/internal/ledger"
)

// Sweeper deletes records older than the configured window. Sweeps are
// idempotent: a second pass with no new data deletes nothing.
type Sweeper struct {
	ledger *ledger.Store
	db     *gorm.DB
	maxAge time.Duration
}

// NewSweeper returns a sweeper with the given retention window. db may
// be nil in tests that only exercise ledger sweeping.
func NewSweeper(ledgerStore *ledger.Store, db *gorm.DB, retentionDays int) *Sweeper {
	return &Sweeper{
		ledger: ledgerStore,
		db:     db,
		maxAge: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// SweepOnce performs a single retention pass and returns the number of
// deleted ledger records.
func (s *Sweeper) SweepOnce(now time.Time) (int, error) {
	deleted, err := s.ledger.Sweep(now, s.maxAge)
	if err != nil {
		return deleted, err
	}

	if s.db != nil {
		cutoff := now.Add(-s.maxAge)
		if err := s.db.Where("created_at <= ?", cutoff).Delete(&dbpkg.ModerationAction{}).Error; err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// StartWorker launches a background goroutine that runs the sweep once
// at startup and then on the configured interval.
func (s *Sweeper) StartWorker(interval time.Duration) {
	go func() {
		if n, err := s.SweepOnce(time.Now()); err != nil {
			log.Printf("retention sweep error (startup): %v", err)
		} else if n > 0 {
			log.Printf("retention sweep (startup): removed %d device ledgers", n)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			if n, err := s.SweepOnce(time.Now()); err != nil {
				log.Printf("retention sweep error: %v", err)
			} else if n > 0 {
				log.Printf("retention sweep: removed %d device ledgers", n)
			}
		}
	}()
}

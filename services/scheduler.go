// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartSessionSweeper runs the server-side jobs that must not depend on any
// client being open: the 24h auto-stop sweep and the daily ledger export.
func (s *NodeService) StartSessionSweeper() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: force-close sessions past the 24h cap
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			closed, err := s.ForceCloseExpired(time.Now())
			if err != nil {
				log.Printf("[Sweeper] DB error: %v", err)
				return
			}
			if closed > 0 {
				log.Printf("⏱️ Auto-stopped %d session(s) past the 24h cap", closed)
			}
		}),
	)

	// Shortly after midnight: export yesterday's ledger to R2
	_, _ = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 10, 0))),
		gocron.NewTask(func() {
			day := time.Now().AddDate(0, 0, -1)
			key, count, err := s.ExportLedgerDay(day)
			if err != nil {
				log.Printf("[LedgerExport] Failed for %s: %v", day.Format("2006-01-02"), err)
				return
			}
			if count > 0 {
				log.Printf("✅ Exported %d ledger entries to %s", count, key)
			}
		}),
	)
}

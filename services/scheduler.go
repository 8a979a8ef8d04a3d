// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartArchiveScheduler archives the previous UTC day's claims every day at 00:10 UTC. The caller
// owns the returned scheduler and must shut it down.
func (a *LedgerArchiver) StartArchiveScheduler(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 10, 0))),
		gocron.NewTask(func() {
			yesterday := time.Now().UTC().AddDate(0, 0, -1)
			if _, err := a.ArchiveDay(ctx, yesterday); err != nil {
				a.Logger.Error("[Scheduler] ledger archive failed", "event", "archive_failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule ledger archive: %w", err)
	}

	sched.Start()
	return sched, nil
}

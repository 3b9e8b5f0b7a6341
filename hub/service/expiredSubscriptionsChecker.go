package service

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// NewExpiredSubscriptionsChecker runs onCheck by the cron expression until the scheduler is shut down.
func NewExpiredSubscriptionsChecker(cleanUpExpiredSubscriptions string, withSeconds bool, onCheck func()) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.Local)) //nolint:gosmopolitan
	if err != nil {
		return nil, fmt.Errorf("cannot create cron job: %w", err)
	}
	_, err = s.NewJob(gocron.CronJob(cleanUpExpiredSubscriptions, withSeconds), gocron.NewTask(onCheck), gocron.WithSingletonMode(gocron.LimitModeReschedule))
	if err != nil {
		return nil, fmt.Errorf("cannot create cron job: %w", err)
	}
	s.Start()
	return s, nil
}

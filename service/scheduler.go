package service

import (
	"time"

	"TikTokAuto-server/config"
	"TikTokAuto-server/logger"

	"github.com/hibiken/asynq"
)

// StartScheduler registers the periodic triggers: acquisition fetch plus
// the four maintenance sweeps. Specs come from config (cron syntax or
// "@every ..." intervals).
func StartScheduler() *asynq.Scheduler {
	scheduler := asynq.NewScheduler(RedisOpt(), &asynq.SchedulerOpts{
		Location: time.UTC,
	})

	mc := config.AppConfig.Maintenance
	entries := []struct {
		spec  string
		typ   string
		queue string
	}{
		{mc.AcquireSpec, TypeAcquireStories, QueueAcquisition},
		{mc.PendingSpec, TypeSweepPendingUploads, QueueMaintenance},
		{mc.RetrySpec, TypeSweepFailedUploads, QueueMaintenance},
		{mc.DeadLetterSpec, TypeSweepDeadLetters, QueueMaintenance},
		{mc.CleanupSpec, TypeSweepRetention, QueueMaintenance},
	}
	for _, e := range entries {
		task := asynq.NewTask(e.typ, nil, asynq.Queue(e.queue), asynq.MaxRetry(0))
		id, err := scheduler.Register(e.spec, task)
		if err != nil {
			logger.S().Fatalf("register %s (%s) failed: %v", e.typ, e.spec, err)
		}
		logger.S().Infof("[scheduler] %s registered at %q (entry %s)", e.typ, e.spec, id)
	}

	go func() {
		if err := scheduler.Run(); err != nil {
			logger.S().Fatalf("scheduler stopped: %v", err)
		}
	}()
	return scheduler
}

package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Cron specs of the background jobs (seconds field not used).
const (
	SpecSessionJobs   = "*/5 * * * *"
	SpecDailyAgenda   = "0 7 * * *"
	SpecLogFlush      = "15 * * * *"
	SpecLogArchive    = "30 3 * * *"
	logFlushAge       = 24 * time.Hour
	archiveJobTimeout = 10 * time.Minute
)

// ScheduleManager owns the cron runner for every periodic job.
type ScheduleManager struct {
	cron        *cron.Cron
	sessions    *NotificationScheduler
	logs        *LogArchiveService
	archiveDays int
}

func NewScheduleManager(sessions *NotificationScheduler, logs *LogArchiveService, archiveDays int) *ScheduleManager {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	return &ScheduleManager{cron: c, sessions: sessions, logs: logs, archiveDays: archiveDays}
}

type cronJob struct {
	name string
	spec string
	fn   func()
}

// Register adds the jobs without starting the runner.
func (sm *ScheduleManager) Register() error {
	jobs := []cronJob{
		{"session-jobs", SpecSessionJobs, sm.runSessionJobs},
		{"daily-agenda", SpecDailyAgenda, func() { sm.sessions.SendDailyScheduleReminder() }},
	}
	if sm.logs != nil {
		jobs = append(jobs,
			cronJob{"log-flush", SpecLogFlush, sm.runLogFlush},
			cronJob{"log-archive", SpecLogArchive, sm.runLogArchive},
		)
	}

	for _, job := range jobs {
		if _, err := sm.cron.AddFunc(job.spec, job.fn); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{"job": job.name, "spec": job.spec}).Info("scheduled job")
	}
	return nil
}

// Start registers the jobs and starts the runner in its own goroutine.
func (sm *ScheduleManager) Start() error {
	if err := sm.Register(); err != nil {
		return err
	}
	sm.cron.Start()
	logrus.Info("schedule manager started")
	return nil
}

// Stop waits for running jobs to finish, up to ctx.
func (sm *ScheduleManager) Stop(ctx context.Context) {
	done := sm.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logrus.Warn("schedule manager stop timed out")
	}
}

// Entries exposes the registered jobs, mostly for tests and diagnostics.
func (sm *ScheduleManager) Entries() []cron.Entry {
	return sm.cron.Entries()
}

func (sm *ScheduleManager) runSessionJobs() {
	sm.sessions.CompleteFinishedSessions()
	sm.sessions.CheckUpcomingSessions()
}

func (sm *ScheduleManager) runLogFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := sm.logs.FlushCachedLogsToDatabase(ctx, time.Now().Add(-logFlushAge)); err != nil {
		logrus.WithError(err).Warn("periodic log flush failed")
	}
}

func (sm *ScheduleManager) runLogArchive() {
	ctx, cancel := context.WithTimeout(context.Background(), archiveJobTimeout)
	defer cancel()
	if _, err := sm.logs.ArchiveOldLogs(ctx, sm.archiveDays); err != nil {
		logrus.WithError(err).Warn("periodic log archive failed")
	}
}

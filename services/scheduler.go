package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"student-progress-system/models"

	"github.com/go-co-op/gocron/v2"
)

// settingsPollInterval is how often the scheduler re-reads SyncSettings to
// pick up schedule changes made through the settings endpoint.
const settingsPollInterval = time.Minute

// SyncScheduler owns the live scheduled batch job and its last-applied
// configuration. Reconcile is idempotent: calling it with unchanged settings
// is a no-op, so the settings poll can run it every minute.
type SyncScheduler struct {
	syncSvc     *SyncService
	settingsSvc *SettingsService
	sched       gocron.Scheduler

	mu          sync.Mutex
	job         gocron.Job
	lastExpr    string
	lastEnabled bool
}

func NewSyncScheduler(syncSvc *SyncService, settingsSvc *SettingsService) (*SyncScheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &SyncScheduler{
		syncSvc:     syncSvc,
		settingsSvc: settingsSvc,
		sched:       sched,
	}, nil
}

// Start applies the current settings, registers the settings poll, and
// starts the underlying scheduler.
func (s *SyncScheduler) Start() error {
	if err := s.refresh(); err != nil {
		log.Printf("[SCHED] initial settings load failed: %v", err)
	}

	_, err := s.sched.NewJob(
		gocron.DurationJob(settingsPollInterval),
		gocron.NewTask(func() {
			if err := s.refresh(); err != nil {
				log.Printf("[SCHED] settings refresh failed: %v", err)
			}
		}),
	)
	if err != nil {
		return err
	}

	s.sched.Start()
	return nil
}

// Stop shuts the scheduler down; in-flight jobs are allowed to finish.
func (s *SyncScheduler) Stop() error {
	return s.sched.Shutdown()
}

func (s *SyncScheduler) refresh() error {
	settings, err := s.settingsSvc.GetOrCreate()
	if err != nil {
		return err
	}
	return s.Reconcile(settings)
}

// Reconcile brings the scheduled batch job in line with the given settings:
// removes it when disabled, leaves it alone when the configuration is
// unchanged, and reschedules it otherwise.
func (s *SyncScheduler) Reconcile(settings *models.SyncSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !settings.IsEnabled {
		if s.job != nil {
			if err := s.sched.RemoveJob(s.job.ID()); err != nil {
				return err
			}
			s.job = nil
			log.Println("[SCHED] batch sync disabled")
		}
		s.lastExpr = ""
		s.lastEnabled = false
		return nil
	}

	if s.job != nil && s.lastEnabled && s.lastExpr == settings.CronExpression {
		return nil
	}

	if s.job != nil {
		if err := s.sched.RemoveJob(s.job.ID()); err != nil {
			return err
		}
		s.job = nil
	}

	job, err := s.sched.NewJob(
		gocron.CronJob(settings.CronExpression, false),
		gocron.NewTask(s.runBatch),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	s.job = job
	s.lastExpr = settings.CronExpression
	s.lastEnabled = true
	log.Printf("[SCHED] batch sync scheduled: %q", settings.CronExpression)
	return nil
}

func (s *SyncScheduler) runBatch() {
	results, err := s.syncSvc.RunBatch(context.Background())
	if err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			log.Println("[SCHED] batch skipped: previous run still in progress")
			return
		}
		log.Printf("[SCHED] batch run failed: %v", err)
		return
	}
	log.Printf("[SCHED] batch run finished: %d student(s) processed", len(results.SyncResults))
}

package playlog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/roylee0704/gron"

	"pld/internal/cloud"
	"pld/internal/playlog/interfaces"
	"pld/internal/providers"
	"pld/internal/services"
	"pld/internal/structures"
)

// Scheduler drives the daemon's periodic work: the flush tick, the
// aggregation tick and the sync tick. Flush and aggregation share one cron;
// the sync tick lives on a second cron so enabling and disabling cloud sync
// never touches the persistence timers.
type Scheduler struct {
	config     *structures.Config
	logger     providers.Logger
	store      services.EventStoreServiceInterface
	engine     services.StatsEngineInterface
	syncEngine cloud.SyncEngineInterface
	cron       *gron.Cron
	syncCron   *gron.Cron
	opsMu      sync.Mutex
	syncMu     sync.Mutex
}

func NewScheduler(config *structures.Config, logger providers.Logger, store services.EventStoreServiceInterface, engine services.StatsEngineInterface, syncEngine cloud.SyncEngineInterface) interfaces.SchedulerInterface {
	return &Scheduler{
		config:     config,
		logger:     logger,
		store:      store,
		engine:     engine,
		syncEngine: syncEngine,
	}
}

func (s *Scheduler) Init() {
	s.cron = gron.New()

	s.cron.AddFunc(gron.Every(s.config.Persistence.SaveInterval), func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()

		if !s.store.Dirty() {
			return
		}
		if err := s.store.Flush(); err != nil {
			return
		}
		s.logger.Infof(providers.TypeApp, "Persisted play log to %s", s.config.Persistence.FilePath)
	})

	if s.config.Statistic.Enabled {
		s.cron.AddFunc(gron.Every(s.config.Statistic.Interval), func() {
			s.aggregate()
		})
		// The current day and month are rolled up once right away so a
		// restart never leaves them stale for a whole interval.
		s.aggregate()
	}

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.StopSync()
}

func (s *Scheduler) Restore() error {
	return s.store.Load()
}

func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.logger.Infof(providers.TypeApp, "Persisting play log to file...")
	return s.store.Flush()
}

// StartSync begins the periodic sync tick. Calling it while the tick is
// already running is a no-op.
func (s *Scheduler) StartSync() {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if s.syncCron != nil {
		return
	}
	c := gron.New()
	c.AddFunc(gron.Every(s.config.CloudSync.SyncInterval), func() {
		s.runSyncPass()
	})
	c.Start()
	s.syncCron = c
	s.logger.Infof(providers.TypeSync, "Sync schedule started, interval %s", s.config.CloudSync.SyncInterval)
}

// StopSync halts the periodic sync tick. Calling it while no tick is running
// is a no-op. A pass already in flight finishes on its own.
func (s *Scheduler) StopSync() {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if s.syncCron == nil {
		return
	}
	s.syncCron.Stop()
	s.syncCron = nil
	s.logger.Infof(providers.TypeSync, "Sync schedule stopped")
}

// aggregate recomputes the rollups for the current day and month from the
// raw log. Empty results are skipped so an aggregate computed while records
// existed is never overwritten by a later pass over an empty window.
func (s *Scheduler) aggregate() {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	now := time.Now()
	records := s.store.Snapshot().PlayRecords

	dayKey := s.engine.DayKey(now)
	if agg := s.engine.AggregateDay(dayKey, s.engine.FilterDay(records, dayKey)); agg != nil {
		s.store.SaveDaily(dayKey, agg)
	}

	monthKey := s.engine.MonthKey(now)
	if agg := s.engine.AggregateMonth(monthKey, s.engine.FilterMonth(records, monthKey)); agg != nil {
		s.store.SaveMonthly(monthKey, agg)
	}

	s.logger.Infof(providers.TypeApp, "Aggregated statistics for %s and %s", dayKey, monthKey)
}

func (s *Scheduler) runSyncPass() {
	_, err := s.syncEngine.Run(context.Background())
	if err != nil && errors.Is(err, cloud.ErrSyncInFlight) {
		s.logger.Warnf(providers.TypeSync, "Skipping sync tick, previous pass still running")
	}
	// Other failures are logged and recorded by the engine itself.
}

package services

import (
	"sync"
	"time"

	"pld/internal/models"
	"pld/internal/playlog/interfaces"
	"pld/internal/providers"
	"pld/internal/structures"
)

type EventStoreServiceInterface interface {
	Append(r *models.PlayRecord) int64
	Query(fromMs, toMs int64) []*models.PlayRecord
	Snapshot() *models.PersistedDocument
	SaveDaily(date string, agg *models.DailyAggregate)
	SaveMonthly(month string, agg *models.MonthlyAggregate)
	GetStreak() *models.Streak
	SetStreak(date string, count int)
	Export(now time.Time) *models.ExportBundle
	Import(bundle *models.ExportBundle) error
	Flush() error
	Load() error
	Len() int
	Dirty() bool
	Revision() int64
	Close()
}

// EventStoreService owns the in-memory play-log document and its on-disk
// copy. All mutations go through it; the scheduler drives Flush on a timer
// and everything else persists lazily through the dirty flag.
type EventStoreService struct {
	conf    *structures.Config
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
	files   interfaces.FileManagerInterface
	backups interfaces.BackupInterface
	doc     *models.Document
	flushMu sync.Mutex
}

func NewEventStoreService(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface, files interfaces.FileManagerInterface, backups interfaces.BackupInterface) EventStoreServiceInterface {
	return &EventStoreService{
		conf:    conf,
		logger:  logger,
		metrics: metrics,
		files:   files,
		backups: backups,
		doc:     models.NewDocument(),
	}
}

func (s *EventStoreService) Append(r *models.PlayRecord) int64 {
	id := s.doc.Append(r)
	s.metrics.IncEventsTotal()
	s.metrics.SetRecordsTotal(s.doc.Len())
	return id
}

func (s *EventStoreService) Query(fromMs, toMs int64) []*models.PlayRecord {
	return s.doc.Query(fromMs, toMs)
}

func (s *EventStoreService) Snapshot() *models.PersistedDocument {
	return s.doc.Snapshot()
}

func (s *EventStoreService) SaveDaily(date string, agg *models.DailyAggregate) {
	s.doc.SaveDaily(date, agg)
}

func (s *EventStoreService) SaveMonthly(month string, agg *models.MonthlyAggregate) {
	s.doc.SaveMonthly(month, agg)
}

func (s *EventStoreService) GetStreak() *models.Streak {
	return s.doc.GetStreak()
}

func (s *EventStoreService) SetStreak(date string, count int) {
	s.doc.SetStreak(date, count)
	s.metrics.SetStreakDays(count)
}

func (s *EventStoreService) Export(now time.Time) *models.ExportBundle {
	return models.NewExportBundle(s.doc.Snapshot(), now)
}

// Import replaces the whole document with the bundle's contents. The previous
// document is archived first, and the replacement is persisted immediately
// rather than waiting for the next flush tick.
func (s *EventStoreService) Import(bundle *models.ExportBundle) error {
	if err := s.backups.Archive(s.doc.Snapshot()); err != nil {
		s.logger.Errorf(providers.TypeApp, "Pre-import backup failed: %s", err)
	}

	s.doc.Replace(bundle.Document())
	s.metrics.SetRecordsTotal(s.doc.Len())
	if streak := s.doc.GetStreak(); streak != nil {
		s.metrics.SetStreakDays(streak.CurrentStreak)
	}

	return s.Flush()
}

// Flush persists the document if it has unsaved changes. A failed write
// leaves the dirty flag set so the next tick retries.
func (s *EventStoreService) Flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	if !s.doc.Dirty() {
		return nil
	}

	revision := s.doc.Revision()
	snapshot := s.doc.Snapshot()

	start := time.Now()
	if err := s.files.Save(s.conf.Persistence.FilePath, snapshot); err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting document: %s", err)
		return err
	}
	s.metrics.ObservePersistenceDuration(time.Since(start))

	s.doc.MarkCleanAt(revision)
	return nil
}

// Load restores the document at startup. A missing or quarantined file
// leaves the store empty; only real I/O failures propagate.
func (s *EventStoreService) Load() error {
	doc, err := s.files.Load(s.conf.Persistence.FilePath)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	s.doc.Replace(doc)
	s.doc.MarkClean()
	s.metrics.SetRecordsTotal(s.doc.Len())
	if streak := s.doc.GetStreak(); streak != nil {
		s.metrics.SetStreakDays(streak.CurrentStreak)
	}
	s.logger.Infof(providers.TypeApp, "Loaded %d play records from %s", s.doc.Len(), s.conf.Persistence.FilePath)
	return nil
}

func (s *EventStoreService) Len() int {
	return s.doc.Len()
}

func (s *EventStoreService) Dirty() bool {
	return s.doc.Dirty()
}

func (s *EventStoreService) Revision() int64 {
	return s.doc.Revision()
}

func (s *EventStoreService) Close() {
	s.backups.Close()
}

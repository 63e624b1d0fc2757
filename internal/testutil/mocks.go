package testutil

import (
	"strconv"
	"sync"
	"time"

	"pld/internal/models"
	"pld/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Entries returns a copy of the recorded log entries.
func (m *MockLogger) Entries() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogEntry, len(m.Logs))
	copy(out, m.Logs)
	return out
}

// HasLevel reports whether at least one entry with the level was recorded.
func (m *MockLogger) HasLevel(level string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Logs {
		if e.Level == level {
			return true
		}
	}
	return false
}

// MockMetrics implements providers.MetricsProviderInterface and counts calls.
type MockMetrics struct {
	mu                  sync.Mutex
	Requests            map[string]int
	CacheHits           int
	CacheMisses         int
	Events              int
	PersistObservations int
	SyncPasses          map[string]int
	SyncObservations    int
	RecordsTotal        int
	StreakDays          int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Requests:   make(map[string]int),
		SyncPasses: make(map[string]int),
	}
}

func (m *MockMetrics) IncRequestsTotal(endpoint string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests[endpoint+":"+strconv.Itoa(status)]++
}

func (m *MockMetrics) ObserveRequestDuration(endpoint string, duration time.Duration) {}

func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}

func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}

func (m *MockMetrics) IncEventsTotal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events++
}

func (m *MockMetrics) ObservePersistenceDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersistObservations++
}

func (m *MockMetrics) IncSyncPasses(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SyncPasses[result]++
}

func (m *MockMetrics) ObserveSyncDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SyncObservations++
}

func (m *MockMetrics) SetRecordsTotal(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordsTotal = n
}

func (m *MockMetrics) SetStreakDays(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StreakDays = n
}

// SyncPassCount returns how often a result was recorded.
func (m *MockMetrics) SyncPassCount(result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SyncPasses[result]
}

// MockEventStore implements services.EventStoreServiceInterface on top of a
// real in-memory document, recording the calls that would touch disk.
type MockEventStore struct {
	mu              sync.Mutex
	Doc             *models.Document
	FlushCalls      int
	FlushErr        error
	LoadCalls       int
	LoadErr         error
	ImportedBundles []*models.ExportBundle
	ImportErr       error
	Closed          bool
}

func NewMockEventStore() *MockEventStore {
	return &MockEventStore{Doc: models.NewDocument()}
}

func (m *MockEventStore) Append(r *models.PlayRecord) int64 {
	return m.Doc.Append(r)
}

func (m *MockEventStore) Query(fromMs, toMs int64) []*models.PlayRecord {
	return m.Doc.Query(fromMs, toMs)
}

func (m *MockEventStore) Snapshot() *models.PersistedDocument {
	return m.Doc.Snapshot()
}

func (m *MockEventStore) SaveDaily(date string, agg *models.DailyAggregate) {
	m.Doc.SaveDaily(date, agg)
}

func (m *MockEventStore) SaveMonthly(month string, agg *models.MonthlyAggregate) {
	m.Doc.SaveMonthly(month, agg)
}

func (m *MockEventStore) GetStreak() *models.Streak {
	return m.Doc.GetStreak()
}

func (m *MockEventStore) SetStreak(date string, count int) {
	m.Doc.SetStreak(date, count)
}

func (m *MockEventStore) Export(now time.Time) *models.ExportBundle {
	return models.NewExportBundle(m.Doc.Snapshot(), now)
}

func (m *MockEventStore) Import(bundle *models.ExportBundle) error {
	m.mu.Lock()
	m.ImportedBundles = append(m.ImportedBundles, bundle)
	err := m.ImportErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.Doc.Replace(bundle.Document())
	return nil
}

func (m *MockEventStore) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlushCalls++
	return m.FlushErr
}

func (m *MockEventStore) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadCalls++
	return m.LoadErr
}

func (m *MockEventStore) Len() int {
	return m.Doc.Len()
}

func (m *MockEventStore) Dirty() bool {
	return m.Doc.Dirty()
}

func (m *MockEventStore) Revision() int64 {
	return m.Doc.Revision()
}

func (m *MockEventStore) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
}

// ImportCount returns how many bundles were imported.
func (m *MockEventStore) ImportCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ImportedBundles)
}

// MockFileManager implements interfaces.FileManagerInterface with injectable
// behavior.
type MockFileManager struct {
	mu        sync.Mutex
	SaveFn    func(fileName string, doc *models.PersistedDocument) error
	LoadFn    func(fileName string) (*models.PersistedDocument, error)
	SaveCalls []*models.PersistedDocument
}

func (m *MockFileManager) Save(fileName string, doc *models.PersistedDocument) error {
	m.mu.Lock()
	m.SaveCalls = append(m.SaveCalls, doc)
	fn := m.SaveFn
	m.mu.Unlock()
	if fn != nil {
		return fn(fileName, doc)
	}
	return nil
}

func (m *MockFileManager) Load(fileName string) (*models.PersistedDocument, error) {
	if m.LoadFn != nil {
		return m.LoadFn(fileName)
	}
	return nil, nil
}

// SaveCount returns how many times Save was called.
func (m *MockFileManager) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SaveCalls)
}

// LastSaved returns the most recently saved document, nil when none.
func (m *MockFileManager) LastSaved() *models.PersistedDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SaveCalls) == 0 {
		return nil
	}
	return m.SaveCalls[len(m.SaveCalls)-1]
}

// MockBackup implements interfaces.BackupInterface.
type MockBackup struct {
	mu           sync.Mutex
	ArchiveFn    func(doc *models.PersistedDocument) error
	ArchiveCalls int
	Closed       bool
}

func (m *MockBackup) Archive(doc *models.PersistedDocument) error {
	m.mu.Lock()
	m.ArchiveCalls++
	fn := m.ArchiveFn
	m.mu.Unlock()
	if fn != nil {
		return fn(doc)
	}
	return nil
}

func (m *MockBackup) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
}

// ArchiveCount returns how many times Archive was called.
func (m *MockBackup) ArchiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ArchiveCalls
}

// MockScheduler implements interfaces.SchedulerInterface and counts calls.
type MockScheduler struct {
	mu             sync.Mutex
	InitCalls      int
	StopCalls      int
	RestoreCalls   int
	RestoreErr     error
	PersistCalls   int
	PersistErr     error
	StartSyncCalls int
	StopSyncCalls  int
}

func (m *MockScheduler) Init() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitCalls++
}

func (m *MockScheduler) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalls++
}

func (m *MockScheduler) Restore() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RestoreCalls++
	return m.RestoreErr
}

func (m *MockScheduler) Persist() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersistCalls++
	return m.PersistErr
}

func (m *MockScheduler) StartSync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartSyncCalls++
}

func (m *MockScheduler) StopSync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopSyncCalls++
}

// StartSyncCount returns how many times StartSync was called.
func (m *MockScheduler) StartSyncCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.StartSyncCalls
}

// StopSyncCount returns how many times StopSync was called.
func (m *MockScheduler) StopSyncCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.StopSyncCalls
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

// MockCompressor implements interfaces.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
	Closed       bool
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	// Default: return as-is (identity)
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {
	m.Closed = true
}

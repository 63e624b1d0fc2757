package models

import (
	"sort"
	"sync"
)

// PersistedDocument is the on-disk JSON shape of the document: the raw play
// log plus the derived aggregate maps and the streak singleton.
type PersistedDocument struct {
	PlayRecords       []*PlayRecord                `json:"playRecords"`
	DailyAggregates   map[string]*DailyAggregate   `json:"dailyAggregates"`
	MonthlyAggregates map[string]*MonthlyAggregate `json:"monthlyAggregates"`
	Streak            *Streak                      `json:"streak"`
}

// Document is the in-memory play-log document. All access goes through the
// mutex; writes flip the dirty flag so the periodic flush knows there is
// something to persist.
type Document struct {
	mu       sync.RWMutex
	records  []*PlayRecord
	daily    map[string]*DailyAggregate
	monthly  map[string]*MonthlyAggregate
	streak   *Streak
	nextID   int64
	dirty    bool
	revision int64
}

func NewDocument() *Document {
	return &Document{
		records: make([]*PlayRecord, 0),
		daily:   make(map[string]*DailyAggregate),
		monthly: make(map[string]*MonthlyAggregate),
		nextID:  1,
	}
}

// Append assigns the next local sequence id, appends the record and marks
// the document dirty. It never fails on well-formed input.
func (d *Document) Append(r *PlayRecord) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	r.ID = d.nextID
	d.nextID++
	d.records = append(d.records, r)
	d.dirty = true
	d.revision++
	return r.ID
}

// Query returns records with fromMs <= timestamp <= toMs, newest first.
// toMs <= 0 means no upper bound.
func (d *Document) Query(fromMs, toMs int64) []*PlayRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*PlayRecord, 0, len(d.records))
	for _, r := range d.records {
		if r.Timestamp < fromMs {
			continue
		}
		if toMs > 0 && r.Timestamp > toMs {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}

func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// SaveDaily replaces the aggregate for one date and marks the document dirty.
func (d *Document) SaveDaily(date string, agg *DailyAggregate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.daily[date] = agg
	d.dirty = true
	d.revision++
}

// SaveMonthly replaces the aggregate for one month and marks the document dirty.
func (d *Document) SaveMonthly(month string, agg *MonthlyAggregate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.monthly[month] = agg
	d.dirty = true
	d.revision++
}

// GetStreak returns the current streak, or nil when no play history exists.
func (d *Document) GetStreak() *Streak {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.streak == nil {
		return nil
	}
	s := *d.streak
	return &s
}

// SetStreak replaces the streak record and marks the document dirty.
func (d *Document) SetStreak(date string, count int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.streak = &Streak{LastListenDate: date, CurrentStreak: count}
	d.dirty = true
	d.revision++
}

// Snapshot returns a copy of the document in its persisted shape. Record and
// aggregate values are shared (they are treated as immutable once stored);
// the containers are copied so callers can iterate without holding the lock.
func (d *Document) Snapshot() *PersistedDocument {
	d.mu.RLock()
	defer d.mu.RUnlock()

	records := make([]*PlayRecord, len(d.records))
	copy(records, d.records)

	daily := make(map[string]*DailyAggregate, len(d.daily))
	for k, v := range d.daily {
		daily[k] = v
	}
	monthly := make(map[string]*MonthlyAggregate, len(d.monthly))
	for k, v := range d.monthly {
		monthly[k] = v
	}

	pd := &PersistedDocument{
		PlayRecords:       records,
		DailyAggregates:   daily,
		MonthlyAggregates: monthly,
	}
	if d.streak != nil {
		s := *d.streak
		pd.Streak = &s
	}
	return pd
}

// Replace swaps in a whole new document body. Missing collections default to
// empty, the id counter restarts above the highest incoming id, records
// without an id are assigned one, and the document is marked dirty.
func (d *Document) Replace(pd *PersistedDocument) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if pd.PlayRecords != nil {
		d.records = pd.PlayRecords
	} else {
		d.records = make([]*PlayRecord, 0)
	}
	if pd.DailyAggregates != nil {
		d.daily = pd.DailyAggregates
	} else {
		d.daily = make(map[string]*DailyAggregate)
	}
	if pd.MonthlyAggregates != nil {
		d.monthly = pd.MonthlyAggregates
	} else {
		d.monthly = make(map[string]*MonthlyAggregate)
	}
	d.streak = pd.Streak

	d.nextID = 1
	for _, r := range d.records {
		if r.ID >= d.nextID {
			d.nextID = r.ID + 1
		}
	}
	for _, r := range d.records {
		if r.ID <= 0 {
			r.ID = d.nextID
			d.nextID++
		}
	}
	d.dirty = true
	d.revision++
}

// Revision is a monotonic counter bumped on every mutation. Cached views of
// the document key on it to avoid serving stale data.
func (d *Document) Revision() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.revision
}

// Dirty reports whether there are unpersisted changes.
func (d *Document) Dirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dirty
}

// MarkClean clears the dirty flag after a successful persist.
func (d *Document) MarkClean() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirty = false
}

// MarkCleanAt clears the dirty flag only if no mutation happened since the
// given revision was observed, so a write racing a flush is never lost.
func (d *Document) MarkCleanAt(revision int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.revision == revision {
		d.dirty = false
	}
}

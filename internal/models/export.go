package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	json "github.com/goccy/go-json"
)

// ExportVersion is the schema version stamped on exported bundles.
const ExportVersion = 1

// ExportBundle is the interchange document: what the export endpoint
// produces, what import accepts and what the sync engine stores remotely.
// ExportDate is epoch milliseconds.
type ExportBundle struct {
	Version           int                          `json:"version"`
	ExportDate        int64                        `json:"exportDate"`
	PlayRecords       []*PlayRecord                `json:"playRecords"`
	DailyAggregates   map[string]*DailyAggregate   `json:"dailyAggregates"`
	MonthlyAggregates map[string]*MonthlyAggregate `json:"monthlyAggregates"`
	Streak            *Streak                      `json:"streak"`
}

func NewExportBundle(pd *PersistedDocument, now time.Time) *ExportBundle {
	return &ExportBundle{
		Version:           ExportVersion,
		ExportDate:        now.UnixMilli(),
		PlayRecords:       pd.PlayRecords,
		DailyAggregates:   pd.DailyAggregates,
		MonthlyAggregates: pd.MonthlyAggregates,
		Streak:            pd.Streak,
	}
}

// Document returns the bundle's data fields as a persisted document. The
// version and export date are metadata and do not carry over.
func (b *ExportBundle) Document() *PersistedDocument {
	return &PersistedDocument{
		PlayRecords:       b.PlayRecords,
		DailyAggregates:   b.DailyAggregates,
		MonthlyAggregates: b.MonthlyAggregates,
		Streak:            b.Streak,
	}
}

// cloneRecords copies every record so canonical renumbering never touches
// records still referenced by the live document.
func cloneRecords(in []*PlayRecord) []*PlayRecord {
	out := make([]*PlayRecord, len(in))
	for i, r := range in {
		c := *r
		out[i] = &c
	}
	return out
}

func sortCanonical(records []*PlayRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Timestamp != records[j].Timestamp {
			return records[i].Timestamp < records[j].Timestamp
		}
		return records[i].IdentityKey() < records[j].IdentityKey()
	})
}

// Canonical returns a copy of the document in canonical form: records cloned
// and ordered by timestamp then identity key, ids reassigned from 1, nil
// collections replaced with empty ones. Documents with the same content
// canonicalize to identical values regardless of record order or numbering.
func (pd *PersistedDocument) Canonical() *PersistedDocument {
	records := cloneRecords(pd.PlayRecords)
	sortCanonical(records)
	for i, r := range records {
		r.ID = int64(i + 1)
	}

	daily := pd.DailyAggregates
	if daily == nil {
		daily = make(map[string]*DailyAggregate)
	}
	monthly := pd.MonthlyAggregates
	if monthly == nil {
		monthly = make(map[string]*MonthlyAggregate)
	}

	return &PersistedDocument{
		PlayRecords:       records,
		DailyAggregates:   daily,
		MonthlyAggregates: monthly,
		Streak:            pd.Streak,
	}
}

// ContentHash returns the SHA-256 hex digest of the canonical JSON encoding
// of the document. Only data participates in the digest: export metadata such
// as the export date never changes it, so round-tripping through export and
// import keeps the hash stable.
func (pd *PersistedDocument) ContentHash() (string, error) {
	data, err := json.Marshal(pd.Canonical())
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

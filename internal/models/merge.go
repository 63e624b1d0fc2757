package models

import "time"

// MergeBundles reconciles two bundles that diverged from a common ancestor:
//
//   - play records: union deduplicated by the identity tuple, then renumbered
//     in canonical order so both sides converge on identical ids;
//   - daily/monthly aggregates: per key, the side reporting the larger
//     totalMinutes wins, ties keep the local value;
//   - streak: the later lastListenDate wins, ties keep the local value.
//
// Inputs are never mutated; records are cloned before renumbering. The result
// is symmetric up to the local-wins tie rule.
func MergeBundles(local, remote *ExportBundle, now time.Time) *ExportBundle {
	records := make([]*PlayRecord, 0, len(local.PlayRecords)+len(remote.PlayRecords))
	seen := make(map[string]bool, cap(records))
	for _, side := range [][]*PlayRecord{local.PlayRecords, remote.PlayRecords} {
		for _, r := range side {
			k := r.IdentityKey()
			if seen[k] {
				continue
			}
			seen[k] = true
			c := *r
			records = append(records, &c)
		}
	}
	sortCanonical(records)
	for i, r := range records {
		r.ID = int64(i + 1)
	}

	daily := make(map[string]*DailyAggregate, len(local.DailyAggregates))
	for k, v := range local.DailyAggregates {
		daily[k] = v
	}
	for k, v := range remote.DailyAggregates {
		if cur, ok := daily[k]; !ok || v.TotalMinutes > cur.TotalMinutes {
			daily[k] = v
		}
	}

	monthly := make(map[string]*MonthlyAggregate, len(local.MonthlyAggregates))
	for k, v := range local.MonthlyAggregates {
		monthly[k] = v
	}
	for k, v := range remote.MonthlyAggregates {
		if cur, ok := monthly[k]; !ok || v.TotalMinutes > cur.TotalMinutes {
			monthly[k] = v
		}
	}

	streak := local.Streak
	if streak == nil {
		streak = remote.Streak
	} else if remote.Streak != nil && remote.Streak.LastListenDate > streak.LastListenDate {
		streak = remote.Streak
	}

	return &ExportBundle{
		Version:           ExportVersion,
		ExportDate:        now.UnixMilli(),
		PlayRecords:       records,
		DailyAggregates:   daily,
		MonthlyAggregates: monthly,
		Streak:            streak,
	}
}

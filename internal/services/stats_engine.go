package services

import (
	"math"
	"sort"
	"time"

	"pld/internal/models"
)

type StatsEngineInterface interface {
	ComputeSnapshot(records []*models.PlayRecord, streak *models.Streak, now time.Time) *models.StatsSnapshot
	AggregateDay(date string, records []*models.PlayRecord) *models.DailyAggregate
	AggregateMonth(month string, records []*models.PlayRecord) *models.MonthlyAggregate
	DayKey(t time.Time) string
	MonthKey(t time.Time) string
	FilterDay(records []*models.PlayRecord, date string) []*models.PlayRecord
	FilterMonth(records []*models.PlayRecord, month string) []*models.PlayRecord
}

// StatsEngine derives analytics from the raw play log. Every method is a pure
// function of its input; the only state is the location used for calendar
// bucketing.
type StatsEngine struct {
	loc *time.Location
}

func NewStatsEngine() StatsEngineInterface {
	return NewStatsEngineIn(time.Local)
}

func NewStatsEngineIn(loc *time.Location) StatsEngineInterface {
	return &StatsEngine{loc: loc}
}

func (e *StatsEngine) localTime(tsMillis int64) time.Time {
	return time.UnixMilli(tsMillis).In(e.loc)
}

func (e *StatsEngine) DayKey(t time.Time) string {
	return t.In(e.loc).Format("2006-01-02")
}

func (e *StatsEngine) MonthKey(t time.Time) string {
	return t.In(e.loc).Format("2006-01")
}

func (e *StatsEngine) FilterDay(records []*models.PlayRecord, date string) []*models.PlayRecord {
	out := make([]*models.PlayRecord, 0)
	for _, r := range records {
		if e.DayKey(e.localTime(r.Timestamp)) == date {
			out = append(out, r)
		}
	}
	return out
}

func (e *StatsEngine) FilterMonth(records []*models.PlayRecord, month string) []*models.PlayRecord {
	out := make([]*models.PlayRecord, 0)
	for _, r := range records {
		if e.MonthKey(e.localTime(r.Timestamp)) == month {
			out = append(out, r)
		}
	}
	return out
}

// tally accumulates per-song or per-artist totals. Display fields keep the
// first value seen so a later rename never rewrites history.
type tally struct {
	id      string
	name    string
	extra   string // artist name for songs, unused for artists
	image   string
	count   int     // qualified plays only
	minutes float64 // all plays
	skips   int
}

// tallySet is a map with stable encounter order, which is what every
// tie-break rule in the rankings falls back to.
type tallySet struct {
	byID  map[string]*tally
	order []*tally
}

func newTallySet() *tallySet {
	return &tallySet{byID: make(map[string]*tally)}
}

func (ts *tallySet) touch(id, name, extra string) *tally {
	if t, ok := ts.byID[id]; ok {
		return t
	}
	t := &tally{id: id, name: name, extra: extra}
	ts.byID[id] = t
	ts.order = append(ts.order, t)
	return t
}

func (ts *tallySet) qualifiedCount() int {
	n := 0
	for _, t := range ts.order {
		if t.count > 0 {
			n++
		}
	}
	return n
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ComputeSnapshot derives the full analytics view from the play log. A play
// counts toward rankings only when it reached the qualified threshold;
// listened minutes always accumulate.
func (e *StatsEngine) ComputeSnapshot(records []*models.PlayRecord, streak *models.Streak, now time.Time) *models.StatsSnapshot {
	songs := newTallySet()
	artists := newTallySet()

	var clock [24]float64
	dayMinutes := make(map[string]float64)
	var dayOrder []string

	monthMinutes := make(map[string]map[string]float64)
	monthArtistOrder := make(map[string][]string)

	var totalMinutes float64
	qualifiedPlays := 0
	skippedRecords := 0
	var firstEver, firstThisYear *models.PlayRecord
	thisYear := now.In(e.loc).Year()

	for _, r := range records {
		minutes := r.Minutes()
		totalMinutes += minutes

		song := songs.touch(r.SongID, r.SongTitle, r.ArtistName)
		song.minutes += minutes
		if song.image == "" && r.ThumbnailURL != "" {
			song.image = r.ThumbnailURL
		}

		artist := artists.touch(r.ArtistID, r.ArtistName, "")
		artist.minutes += minutes
		if artist.image == "" && r.ArtistImageURL != "" {
			artist.image = r.ArtistImageURL
		}

		if r.Qualified() {
			qualifiedPlays++
			song.count++
			artist.count++
		}
		if r.Skipped {
			skippedRecords++
			song.skips++
		}

		local := e.localTime(r.Timestamp)
		clock[local.Hour()] += minutes

		day := e.DayKey(local)
		if _, ok := dayMinutes[day]; !ok {
			dayOrder = append(dayOrder, day)
		}
		dayMinutes[day] += minutes

		month := e.MonthKey(local)
		if _, ok := monthMinutes[month]; !ok {
			monthMinutes[month] = make(map[string]float64)
		}
		if _, ok := monthMinutes[month][r.ArtistID]; !ok {
			monthArtistOrder[month] = append(monthArtistOrder[month], r.ArtistID)
		}
		monthMinutes[month][r.ArtistID] += minutes

		if firstEver == nil || r.Timestamp < firstEver.Timestamp {
			firstEver = r
		}
		if local.Year() == thisYear && (firstThisYear == nil || r.Timestamp < firstThisYear.Timestamp) {
			firstThisYear = r
		}
	}

	snapshot := &models.StatsSnapshot{
		TotalRecords:      len(records),
		QualifiedPlays:    qualifiedPlays,
		TotalMinutes:      round1(totalMinutes),
		UniqueSongs:       songs.qualifiedCount(),
		UniqueArtists:     artists.qualifiedCount(),
		TopSongs:          topSongs(songs, 5),
		TopArtists:        topArtists(artists, 5),
		ListeningClock:    clock,
		MonthlyObsessions: monthlyObsessions(monthMinutes, monthArtistOrder, artists),
		SkipStats:         skipStats(songs, 10),
		SkipRate:          skipRate(skippedRecords, len(records)),
		Streak:            streak,
		GeneratedAt:       now.UnixMilli(),
	}

	for _, day := range dayOrder {
		m := dayMinutes[day]
		if snapshot.PeakDay == nil || m > snapshot.PeakDay.Minutes {
			snapshot.PeakDay = &models.PeakDay{Date: day, Minutes: m}
		}
	}
	if snapshot.PeakDay != nil {
		snapshot.PeakDay.Minutes = round1(snapshot.PeakDay.Minutes)
	}

	if firstEver != nil {
		snapshot.FirstSongEver = firstPlay(firstEver)
	}
	if firstThisYear != nil {
		snapshot.FirstSongThisYear = firstPlay(firstThisYear)
	}

	return snapshot
}

func firstPlay(r *models.PlayRecord) *models.FirstPlay {
	return &models.FirstPlay{
		SongID:     r.SongID,
		Title:      r.SongTitle,
		ArtistName: r.ArtistName,
		Timestamp:  r.Timestamp,
	}
}

// topSongs ranks by qualified plays; encounter order breaks ties. Songs
// without an explicit thumbnail get the synthesized one when their id allows.
func topSongs(songs *tallySet, limit int) []models.SongRank {
	ranked := make([]*tally, len(songs.order))
	copy(ranked, songs.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].count > ranked[j].count
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]models.SongRank, 0, len(ranked))
	for _, t := range ranked {
		image := t.image
		if image == "" {
			image = models.FallbackThumbnail(t.id)
		}
		out = append(out, models.SongRank{
			SongID:       t.id,
			Title:        t.name,
			ArtistName:   t.extra,
			ThumbnailURL: image,
			PlayCount:    t.count,
			Minutes:      round1(t.minutes),
		})
	}
	return out
}

// topArtists ranks by accumulated minutes; encounter order breaks ties.
func topArtists(artists *tallySet, limit int) []models.ArtistRank {
	ranked := make([]*tally, len(artists.order))
	copy(ranked, artists.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].minutes > ranked[j].minutes
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]models.ArtistRank, 0, len(ranked))
	for _, t := range ranked {
		out = append(out, models.ArtistRank{
			ArtistID:  t.id,
			Name:      t.name,
			ImageURL:  t.image,
			PlayCount: t.count,
			Minutes:   round1(t.minutes),
		})
	}
	return out
}

// monthlyObsessions picks the most-listened artist per month, first
// encountered winning ties, months ascending.
func monthlyObsessions(monthMinutes map[string]map[string]float64, order map[string][]string, artists *tallySet) []models.MonthlyObsession {
	months := make([]string, 0, len(monthMinutes))
	for month := range monthMinutes {
		months = append(months, month)
	}
	sort.Strings(months)

	out := make([]models.MonthlyObsession, 0, len(months))
	for _, month := range months {
		var bestID string
		best := -1.0
		for _, artistID := range order[month] {
			if m := monthMinutes[month][artistID]; m > best {
				best = m
				bestID = artistID
			}
		}
		name := bestID
		if t, ok := artists.byID[bestID]; ok {
			name = t.name
		}
		out = append(out, models.MonthlyObsession{
			Month:      month,
			ArtistID:   bestID,
			ArtistName: name,
			Minutes:    round1(best),
		})
	}
	return out
}

// skipStats lists songs that were skipped at least once, most skipped first,
// encounter order on ties.
func skipStats(songs *tallySet, limit int) []models.SkipStat {
	skipped := make([]*tally, 0)
	for _, t := range songs.order {
		if t.skips > 0 {
			skipped = append(skipped, t)
		}
	}
	sort.SliceStable(skipped, func(i, j int) bool {
		return skipped[i].skips > skipped[j].skips
	})
	if len(skipped) > limit {
		skipped = skipped[:limit]
	}

	out := make([]models.SkipStat, 0, len(skipped))
	for _, t := range skipped {
		out = append(out, models.SkipStat{
			SongID:     t.id,
			Title:      t.name,
			ArtistName: t.extra,
			PlayCount:  t.count,
			SkipCount:  t.skips,
		})
	}
	return out
}

func skipRate(skipped, total int) int {
	rate := int(math.Round(100 * float64(skipped) / math.Max(1, float64(total))))
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}

// AggregateDay computes one date's aggregate. Zero records yield nil so an
// existing aggregate is never overwritten by an empty recomputation.
func (e *StatsEngine) AggregateDay(date string, records []*models.PlayRecord) *models.DailyAggregate {
	if len(records) == 0 {
		return nil
	}

	songs := newTallySet()
	artists := newTallySet()
	var hourly [24]float64
	var totalMinutes float64
	playCount := 0
	skipCount := 0

	for _, r := range records {
		minutes := r.Minutes()
		totalMinutes += minutes
		hourly[e.localTime(r.Timestamp).Hour()] += minutes

		song := songs.touch(r.SongID, r.SongTitle, r.ArtistName)
		song.minutes += minutes
		artist := artists.touch(r.ArtistID, r.ArtistName, "")
		artist.minutes += minutes

		if r.Qualified() {
			playCount++
			song.count++
			artist.count++
		}
		if r.Skipped {
			skipCount++
		}
	}

	return &models.DailyAggregate{
		Date:          date,
		TotalMinutes:  round1(totalMinutes),
		PlayCount:     playCount,
		UniqueSongs:   songs.qualifiedCount(),
		UniqueArtists: artists.qualifiedCount(),
		TopSongs:      topEntriesByCount(songs, 10),
		TopArtists:    topEntriesByCount(artists, 10),
		Hourly:        hourly,
		SkipCount:     skipCount,
	}
}

// AggregateMonth computes one month's aggregate; artists rank by minutes.
func (e *StatsEngine) AggregateMonth(month string, records []*models.PlayRecord) *models.MonthlyAggregate {
	if len(records) == 0 {
		return nil
	}

	songs := newTallySet()
	artists := newTallySet()
	var totalMinutes float64
	playCount := 0
	skipCount := 0

	for _, r := range records {
		minutes := r.Minutes()
		totalMinutes += minutes

		song := songs.touch(r.SongID, r.SongTitle, r.ArtistName)
		song.minutes += minutes
		artist := artists.touch(r.ArtistID, r.ArtistName, "")
		artist.minutes += minutes

		if r.Qualified() {
			playCount++
			song.count++
			artist.count++
		}
		if r.Skipped {
			skipCount++
		}
	}

	return &models.MonthlyAggregate{
		Month:         month,
		TotalMinutes:  round1(totalMinutes),
		PlayCount:     playCount,
		UniqueSongs:   songs.qualifiedCount(),
		UniqueArtists: artists.qualifiedCount(),
		TopArtists:    topEntriesByMinutes(artists, 10),
		SkipCount:     skipCount,
	}
}

func topEntriesByCount(ts *tallySet, limit int) []models.TopEntry {
	ranked := make([]*tally, len(ts.order))
	copy(ranked, ts.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].count > ranked[j].count
	})
	return toTopEntries(ranked, limit)
}

func topEntriesByMinutes(ts *tallySet, limit int) []models.TopEntry {
	ranked := make([]*tally, len(ts.order))
	copy(ranked, ts.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].minutes > ranked[j].minutes
	})
	return toTopEntries(ranked, limit)
}

func toTopEntries(ranked []*tally, limit int) []models.TopEntry {
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]models.TopEntry, 0, len(ranked))
	for _, t := range ranked {
		out = append(out, models.TopEntry{
			ID:      t.id,
			Name:    t.name,
			Count:   t.count,
			Minutes: round1(t.minutes),
		})
	}
	return out
}

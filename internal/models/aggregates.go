package models

// TopEntry is one ranked song or artist inside a daily/monthly aggregate.
type TopEntry struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Minutes float64 `json:"minutes"`
}

// DailyAggregate is the derived summary for one local calendar day,
// keyed by ISO date (YYYY-MM-DD). It is recomputed wholesale for "today"
// on every aggregation tick, never patched in place.
type DailyAggregate struct {
	Date          string      `json:"date"`
	TotalMinutes  float64     `json:"totalMinutes"`
	PlayCount     int         `json:"playCount"`
	UniqueSongs   int         `json:"uniqueSongs"`
	UniqueArtists int         `json:"uniqueArtists"`
	TopSongs      []TopEntry  `json:"topSongs"`
	TopArtists    []TopEntry  `json:"topArtists"`
	Hourly        [24]float64 `json:"hourly"`
	SkipCount     int         `json:"skipCount"`
}

// MonthlyAggregate is the derived summary for one month (YYYY-MM).
type MonthlyAggregate struct {
	Month         string     `json:"month"`
	TotalMinutes  float64    `json:"totalMinutes"`
	PlayCount     int        `json:"playCount"`
	UniqueSongs   int        `json:"uniqueSongs"`
	UniqueArtists int        `json:"uniqueArtists"`
	TopArtists    []TopEntry `json:"topArtists"`
	SkipCount     int        `json:"skipCount"`
}

// Streak is the singleton listening-streak record. It exists once play
// history exists and is only ever replaced, never deleted.
type Streak struct {
	LastListenDate string `json:"lastListenDate"`
	CurrentStreak  int    `json:"currentStreak"`
}

package models

// SongRank is one row of the top-songs ranking: qualified plays plus listened
// minutes, carrying the first image seen for the song.
type SongRank struct {
	SongID       string  `json:"songId"`
	Title        string  `json:"title"`
	ArtistName   string  `json:"artistName"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	PlayCount    int     `json:"playCount"`
	Minutes      float64 `json:"minutes"`
}

// ArtistRank is one row of the top-artists ranking, ordered by minutes.
type ArtistRank struct {
	ArtistID  string  `json:"artistId"`
	Name      string  `json:"name"`
	ImageURL  string  `json:"imageUrl,omitempty"`
	PlayCount int     `json:"playCount"`
	Minutes   float64 `json:"minutes"`
}

// MonthlyObsession names the most-listened artist of one calendar month.
type MonthlyObsession struct {
	Month      string  `json:"month"`
	ArtistID   string  `json:"artistId"`
	ArtistName string  `json:"artistName"`
	Minutes    float64 `json:"minutes"`
}

// SkipStat pairs a song's qualified plays with how often it was skipped.
// Only songs with at least one skip appear in the snapshot.
type SkipStat struct {
	SongID     string `json:"songId"`
	Title      string `json:"title"`
	ArtistName string `json:"artistName"`
	PlayCount  int    `json:"playCount"`
	SkipCount  int    `json:"skipCount"`
}

// PeakDay is the local calendar date with the most listened minutes.
type PeakDay struct {
	Date    string  `json:"date"`
	Minutes float64 `json:"minutes"`
}

// FirstPlay identifies the earliest record of a period.
type FirstPlay struct {
	SongID     string `json:"songId"`
	Title      string `json:"title"`
	ArtistName string `json:"artistName"`
	Timestamp  int64  `json:"timestamp"`
}

// StatsSnapshot is the analytics view derived from the whole play log. It is
// recomputed on demand and never persisted.
type StatsSnapshot struct {
	TotalRecords      int                `json:"totalRecords"`
	QualifiedPlays    int                `json:"qualifiedPlays"`
	TotalMinutes      float64            `json:"totalMinutes"`
	UniqueSongs       int                `json:"uniqueSongs"`
	UniqueArtists     int                `json:"uniqueArtists"`
	TopSongs          []SongRank         `json:"topSongs"`
	TopArtists        []ArtistRank       `json:"topArtists"`
	ListeningClock    [24]float64        `json:"listeningClock"`
	PeakDay           *PeakDay           `json:"peakDay,omitempty"`
	MonthlyObsessions []MonthlyObsession `json:"monthlyObsessions"`
	SkipStats         []SkipStat         `json:"skipStats"`
	SkipRate          int                `json:"skipRate"`
	FirstSongEver     *FirstPlay         `json:"firstSongEver,omitempty"`
	FirstSongThisYear *FirstPlay         `json:"firstSongThisYear,omitempty"`
	Streak            *Streak            `json:"streak,omitempty"`
	GeneratedAt       int64              `json:"generatedAt"`
}
